package hash

import (
	"encoding/hex"
	"testing"
)

func TestPBKDF2SHA1Vectors(t *testing.T) {
	// RFC 6070 test vectors.
	testCases := []struct {
		name     string
		password string
		salt     string
		iter     int
		dkLen    int
		want     string
	}{
		{"c1", "password", "salt", 1, 20, "0c60c80f961f0e71f3a9b524af6012062fe037a6"},
		{"c2", "password", "salt", 2, 20, "ea6c014dc72d6f8ccd1ed92ace1d41f0d8de8957"},
		{"c4096", "password", "salt", 4096, 20, "4b007901b765489abead49d926f721d065a429c1"},
		{
			"long", "passwordPASSWORDpassword", "saltSALTsaltSALTsaltSALTsaltSALTsalt", 4096, 25,
			"3d2eec4fe41c849b80c8d83662c0e44a8b291a964cf2f07038",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			want, err := hex.DecodeString(tc.want)
			if err != nil {
				t.Fatalf("bad test vector: %v", err)
			}
			got := PBKDF2SHA1([]byte(tc.password), []byte(tc.salt), tc.iter, tc.dkLen)
			if hex.EncodeToString(got) != hex.EncodeToString(want) {
				t.Errorf("PBKDF2SHA1(%q,%q,%d,%d) = %x; want %x", tc.password, tc.salt, tc.iter, tc.dkLen, got, want)
			}
		})
	}
}
