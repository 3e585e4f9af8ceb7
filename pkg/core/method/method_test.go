// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package method

import (
	"bytes"
	"testing"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core/stream"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
)

func TestMethodCallRevertEncoding(t *testing.T) {
	mc := NewMethodCall(uid.InvokingID(uid.AdminSP), uid.MethodIDRevert, 0)
	b, err := mc.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{
		0xF8,                                                 // Call
		0xA8, 0x00, 0x00, 0x02, 0x05, 0x00, 0x00, 0x00, 0x01, // AdminSP
		0xA8, 0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x02, 0x02, // Revert
		0xF0, 0xF1, // empty argument list
		0xF9,                         // EndOfData
		0xF0, 0x00, 0x00, 0x00, 0xF1, // status list
	}
	if !bytes.Equal(b, want) {
		t.Errorf("MarshalBinary() =\n% X\nwant\n% X", b, want)
	}
}

func TestMethodCallAuthenticatePSIDEncoding(t *testing.T) {
	// PSID credentials are sent raw, never hashed; the challenge is the
	// printed label text as a bytes atom under optional parameter 0.
	psid := []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ012345")
	mc := NewMethodCall(uid.InvokeIDThisSP, uid.MethodIDAuthenticate, 0)
	mc.Bytes(uid.AuthorityPSID[:])
	mc.StartOptionalParameter(0, "Challenge")
	mc.Bytes(psid)
	mc.EndOptionalParameter()

	b, err := mc.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := stream.Decode(b)
	if err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	// Call, invoker, method, [authority, StartName, 0, psid, EndName], EOD, status
	if len(decoded) != 6 {
		t.Fatalf("decoded %d elements, want 6: %+v", len(decoded), decoded)
	}
	if !stream.EqualToken(decoded[0], stream.Call) {
		t.Error("missing Call token")
	}
	if !stream.EqualBytes(decoded[1], uid.InvokeIDThisSP[:]) {
		t.Error("wrong invoking ID")
	}
	if !stream.EqualBytes(decoded[2], uid.MethodIDAuthenticate[:]) {
		t.Error("wrong method ID")
	}
	args, ok := decoded[3].(stream.List)
	if !ok || len(args) != 5 {
		t.Fatalf("argument list = %+v", decoded[3])
	}
	if !stream.EqualBytes(args[0], uid.AuthorityPSID[:]) {
		t.Error("wrong authority UID")
	}
	if !stream.EqualToken(args[1], stream.StartName) || !stream.EqualUInt(args[2], 0) {
		t.Error("challenge is not optional parameter 0")
	}
	if !stream.EqualBytes(args[3], psid) {
		t.Error("challenge does not carry the raw PSID")
	}
}

func TestMethodCallUnbalancedList(t *testing.T) {
	mc := NewMethodCall(uid.InvokeIDThisSP, uid.MethodIDGet, 0)
	mc.StartList()
	if _, err := mc.MarshalBinary(); err != ErrMethodListUnbalanced {
		t.Errorf("MarshalBinary() error = %v; want ErrMethodListUnbalanced", err)
	}
}

func TestMethodStatusCodeString(t *testing.T) {
	if got := MethodStatusCode(0x01).String(); got != "method returned status NOT_AUTHORIZED" {
		t.Errorf("String() = %q", got)
	}
	if got := MethodStatusCode(0x42).String(); got != "method returned unknown status code 0x42" {
		t.Errorf("String() = %q", got)
	}
}
