package hash

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestHMACSHA1Vectors(t *testing.T) {
	// RFC 2202 test case 1.
	key := bytes.Repeat([]byte{0x0b}, 20)
	msg := []byte("Hi There")
	want, err := hex.DecodeString("b617318655057264e28bc0b6fb378c8ef146be00")
	if err != nil {
		t.Fatalf("bad test vector: %v", err)
	}
	got := HMACSHA1(key, msg)
	if !bytes.Equal(got[:], want) {
		t.Errorf("HMACSHA1() = %x; want %x", got, want)
	}
}
