// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feature

import (
	"bytes"
	"testing"
)

func TestReadOpalV2Feature(t *testing.T) {
	desc := []byte{
		0x07, 0xFE, // base ComID
		0x00, 0x01, // number of ComIDs
		0x01,       // range crossing
		0x00, 0x04, // locking SP admins
		0x00, 0x08, // locking SP users
		0x01, // initial C_PIN SID indicator
		0x00, // C_PIN SID behavior on revert
		0x00, 0x00, 0x00, 0x00, 0x00,
	}
	f, err := ReadOpalV2Feature(bytes.NewReader(desc))
	if err != nil {
		t.Fatal(err)
	}
	if f.BaseComID != 0x07FE || f.NumComID != 1 {
		t.Errorf("ComID allocation = %#x/%d", f.BaseComID, f.NumComID)
	}
	if base, count := f.ComIDRange(); base != 0x07FE || count != 1 {
		t.Errorf("ComIDRange() = %#x, %d", base, count)
	}
	if !f.RangeCrossingBehavior || f.NumLockingSPAdminSupported != 4 || f.NumLockingSPUserSupported != 8 {
		t.Errorf("feature body = %+v", f)
	}
	if f.InitialCPINSIDIndicator != 1 || f.BehaviorCPINSIDuponTPerRevert != 0 {
		t.Errorf("C_PIN indicators = %d/%d", f.InitialCPINSIDIndicator, f.BehaviorCPINSIDuponTPerRevert)
	}
}

// Every SSC descriptor satisfies the dialect interface.
func TestSSCDialects(t *testing.T) {
	desc := []byte{0x07, 0xFE, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	v1, err := ReadOpalV1Feature(bytes.NewReader(desc))
	if err != nil {
		t.Fatal(err)
	}
	ent, err := ReadEnterpriseFeature(bytes.NewReader(desc))
	if err != nil {
		t.Fatal(err)
	}
	for _, ssc := range []SSC{v1, ent} {
		if base, _ := ssc.ComIDRange(); base != 0x07FE {
			t.Errorf("ComIDRange() base = %#x; want 0x07FE", base)
		}
	}
}

func TestReadLockingFeature(t *testing.T) {
	f, err := ReadLockingFeature(bytes.NewReader([]byte{0x1B, 0, 0, 0}))
	if err != nil {
		t.Fatal(err)
	}
	if !f.LockingSupported || !f.LockingEnabled || f.Locked || !f.MediaEncryption || !f.MBREnabled {
		t.Errorf("Locking = %+v", f)
	}
	// Bit 6 clear means MBR shadowing is available.
	if !f.MBRShadowing {
		t.Error("MBRShadowing should default to true when bit 6 is clear")
	}

	f, err = ReadLockingFeature(bytes.NewReader([]byte{0x40}))
	if err != nil {
		t.Fatal(err)
	}
	if f.MBRShadowing {
		t.Error("MBRShadowing should be false when the shadowing-absent bit is set")
	}
}

func TestReadBlockSIDFeature(t *testing.T) {
	f, err := ReadBlockSIDFeature(bytes.NewReader([]byte{0x05, 0x01, 0, 0}))
	if err != nil {
		t.Fatal(err)
	}
	if !f.SIDValueState || f.SIDAuthenticationBlockedState || !f.LockingSPFreezeLockSupported || !f.HardwareReset {
		t.Errorf("BlockSID = %+v", f)
	}
}

func TestFeatureCodeString(t *testing.T) {
	if got := CodeOpalV2.String(); got != "Opal SSC V2" {
		t.Errorf("String() = %q", got)
	}
	if got := FeatureCode(0x1234).String(); got != "<unknown feature>" {
		t.Errorf("String() = %q", got)
	}
}

// Truncated descriptors from older drives must not fault; missing tail
// fields read as zero.
func TestShortDescriptor(t *testing.T) {
	f, err := ReadOpalV2Feature(bytes.NewReader([]byte{0x07, 0xFE}))
	if err != nil {
		t.Fatal(err)
	}
	if f.BaseComID != 0x07FE || f.NumComID != 0 {
		t.Errorf("short descriptor = %+v", f)
	}
}
