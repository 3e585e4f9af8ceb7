package hash

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestSHA1Vectors(t *testing.T) {
	testCases := []struct {
		name string
		msg  string
		want string
	}{
		// FIPS 180-1 Appendix A.
		{"abc", "abc", "a9993e364706816aba3e25717850c26c9cd0d89d"},
		// FIPS 180-1 Appendix A.2.
		{
			"two-block",
			"abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq",
			"84983e441c3bd26ebaae4aa1f95129e5e54670f1",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := SHA1([]byte(tc.msg))
			want, err := hex.DecodeString(tc.want)
			if err != nil {
				t.Fatalf("bad test vector: %v", err)
			}
			if !strings.EqualFold(hex.EncodeToString(got[:]), hex.EncodeToString(want)) {
				t.Errorf("SHA1(%q) = %x; want %x", tc.msg, got, want)
			}
		})
	}
}
