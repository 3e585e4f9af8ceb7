package hash

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core/stream"
)

func TestSedutilHashCompatibility(t *testing.T) {
	got := HashSedutilDTA("dummy", "S2RBNB0HA12200B")
	want := []byte{
		0x4f, 0x2a, 0xcc, 0xfd, 0x1a, 0x17, 0x64, 0xdc, 0x5b, 0x5b, 0xb3, 0x8f, 0x40, 0xf9, 0x06, 0x8d,
		0x2d, 0x1a, 0x1f, 0x6d, 0xd5, 0x39, 0x27, 0x07, 0xde, 0xa1, 0x4c, 0x3b, 0xb7, 0xde, 0xea, 0xcc,
	}
	if !bytes.Equal(want, got) {
		t.Errorf("Unexpected PBKDF2 hash, got %s want %s", hex.EncodeToString(got), hex.EncodeToString(want))
	}
}

// The hashed PIN is 32 bytes and must marshal as a medium bytes atom
// (0xD0 prefix, one length byte) when sent as a method challenge.
func TestHashedPINAtomEncoding(t *testing.T) {
	got := HashSedutilDTA("testtest", "0123456789ABCDEFGHIJ")
	if len(got) != 32 {
		t.Fatalf("expected a 32-byte hash, got %d bytes", len(got))
	}
	atom := stream.Bytes(got)
	if len(atom) != 34 || atom[0] != 0xD0 || atom[1] != 0x20 {
		t.Errorf("expected medium atom prefix D0 20, got % X (len %d)", atom[:2], len(atom))
	}
}
