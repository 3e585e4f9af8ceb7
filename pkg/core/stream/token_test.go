// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"bytes"
	"errors"
	"testing"
)

// A method response trailer tokenizes to the flat sequence EndOfData,
// StartList, three zero uints, EndList, with 0xFF padding filtered out.
func TestTokenizeStatusTrailer(t *testing.T) {
	in := []byte{0xF9, 0xF0, 0x00, 0x00, 0x00, 0xF1, 0xFF, 0xFF}
	toks, err := Tokenize(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 6 {
		t.Fatalf("got %d tokens, want 6: %+v", len(toks), toks)
	}
	if !toks[0].IsControl(EndOfData) || !toks[1].IsControl(StartList) || !toks[5].IsControl(EndList) {
		t.Errorf("control token shape wrong: %+v", toks)
	}
	for i := 2; i < 5; i++ {
		v, st, ok := toks[i].Uint64()
		if !ok || st != DriveStatusOK || v != 0 {
			t.Errorf("token %d: Uint64() = %d, %d, %v; want 0, OK, true", i, v, st, ok)
		}
	}
}

// Each width emitted by UInt must round-trip through the accessor of the
// matching width.
func TestTokenUintRoundTrip(t *testing.T) {
	values := []uint{0, 63, 64, 255, 256, 65535, 65536, 1<<32 - 1, 1 << 32}
	for _, v := range values {
		toks, err := Tokenize(UInt(v))
		if err != nil {
			t.Fatalf("Tokenize(UInt(%d)) failed: %v", v, err)
		}
		if len(toks) != 1 {
			t.Fatalf("UInt(%d) tokenized to %d tokens", v, len(toks))
		}
		got, st, ok := toks[0].Uint64()
		if !ok || st != DriveStatusOK || got != uint64(v) {
			t.Errorf("Uint64() = %d, %d, %v; want %d", got, st, ok, v)
		}
	}
}

func TestTokenNarrowingOverflow(t *testing.T) {
	toks, err := Tokenize(UInt(0x1234))
	if err != nil {
		t.Fatal(err)
	}
	tok := toks[0]

	if v, st, ok := tok.Uint16(); !ok || st != DriveStatusOK || v != 0x1234 {
		t.Errorf("Uint16() = %#x, %d, %v", v, st, ok)
	}
	if v, st, ok := tok.Uint32(); !ok || st != DriveStatusOK || v != 0x1234 {
		t.Errorf("Uint32() = %#x, %d, %v", v, st, ok)
	}
	// Narrowing below the value's width reports the overflow status.
	if _, st, ok := tok.Uint8(); ok || st != DriveStatusOverflow {
		t.Errorf("Uint8() status = %d, %v; want overflow", st, ok)
	}

	wide, _ := Tokenize(UInt(1 << 40))
	if _, st, ok := wide[0].Uint32(); ok || st != DriveStatusOverflow {
		t.Errorf("Uint32(2^40) status = %d, %v; want overflow", st, ok)
	}
}

func TestTokenWrongType(t *testing.T) {
	byteToks, _ := Tokenize(Bytes([]byte{0xAA, 0xBB}))
	uintToks, _ := Tokenize(UInt(7))
	ctrlToks, _ := Tokenize(Token(StartName))

	if _, st, ok := byteToks[0].Uint64(); ok || st != DriveStatusWrongType {
		t.Errorf("Uint64 on bytes: status %d, %v; want wrong-type", st, ok)
	}
	if _, st, ok := uintToks[0].Bytes(); ok || st != DriveStatusWrongType {
		t.Errorf("Bytes on uint: status %d, %v; want wrong-type", st, ok)
	}
	if _, st, ok := ctrlToks[0].Uint64(); ok || st != DriveStatusWrongType {
		t.Errorf("Uint64 on control: status %d, %v; want wrong-type", st, ok)
	}
	if _, st, ok := ctrlToks[0].Bytes(); ok || st != DriveStatusWrongType {
		t.Errorf("Bytes on control: status %d, %v; want wrong-type", st, ok)
	}

	// Signed atoms are rejected as non-numeric for the unsigned accessors.
	signedToks, err := Tokenize([]byte{0x49}) // tiny signed
	if err != nil {
		t.Fatal(err)
	}
	if _, st, ok := signedToks[0].Uint64(); ok || st != DriveStatusWrongType {
		t.Errorf("Uint64 on signed tiny: status %d, %v; want wrong-type", st, ok)
	}
}

func TestTokenBytesAndString(t *testing.T) {
	toks, err := Tokenize(Bytes([]byte("PIN")))
	if err != nil {
		t.Fatal(err)
	}
	b, st, ok := toks[0].Bytes()
	if !ok || st != DriveStatusOK || !bytes.Equal(b, []byte("PIN")) {
		t.Errorf("Bytes() = %q, %d, %v", b, st, ok)
	}
	s, st, ok := toks[0].String()
	if !ok || st != DriveStatusOK || s != "PIN" {
		t.Errorf("String() = %q, %d, %v", s, st, ok)
	}
}

func TestTokenizeTruncated(t *testing.T) {
	testCases := [][]byte{
		{0xA4, 0x01},             // short atom promising 4 bytes
		{0xD0},                   // medium atom with no length byte
		{0xD0, 0x10, 0x01},       // medium atom promising 16 bytes
		{0xE2, 0x00, 0x01, 0x00}, // long atom promising 256 bytes
	}
	for _, in := range testCases {
		if _, err := Tokenize(in); !errors.Is(err, ErrTruncatedAtom) {
			t.Errorf("Tokenize(% X) = %v; want ErrTruncatedAtom", in, err)
		}
	}
}
