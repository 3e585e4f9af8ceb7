// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package drive

import (
	"testing"

	"github.com/open-source-firmware/go-tcg-storage/pkg/drive/sgio"
)

func TestATASanitizeTaskFileBlockErase(t *testing.T) {
	feature, lba, count, err := ataSanitizeTaskFile(SanitizeBlockErase, SanitizeOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if feature != 0x0012 {
		t.Errorf("feature = %#04x; want BLOCK ERASE EXT", feature)
	}
	// The LBA field must spell out the "BkEr" guard key.
	if lba != 0x426B4572 {
		t.Errorf("lba = %#x; want the BkEr key", lba)
	}
	if count != 0 {
		t.Errorf("count = %#x; want 0", count)
	}
}

func TestATASanitizeTaskFileOverwrite(t *testing.T) {
	feature, lba, count, err := ataSanitizeTaskFile(SanitizeOverwrite, SanitizeOpts{
		OverwritePattern: 0xDEADBEEF,
		PassCount:        3,
		Invert:           true,
		NoDeallocate:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if feature != 0x0014 {
		t.Errorf("feature = %#04x; want OVERWRITE EXT", feature)
	}
	// "OW" key in LBA bits 47:32, pattern in the low half.
	if lba != 0x4F57<<32|0xDEADBEEF {
		t.Errorf("lba = %#x", lba)
	}
	// Pass count 3 with the invert bit, ZONED NO RESET in the high byte.
	if count != 0x8083 {
		t.Errorf("count = %#04x; want 0x8083", count)
	}
}

func TestATASanitizeTaskFileStatusIdempotent(t *testing.T) {
	feature, lba, count, err := ataSanitizeTaskFile(SanitizeStatus, SanitizeOpts{
		OverwritePattern: 0xDEADBEEF,
		NoDeallocate:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	// A status query carries no key, no options; it only reads registers.
	if feature != sgio.SanitizeStatusExt || lba != 0 || count != 0 {
		t.Errorf("status query encoded payload: feature=%#x lba=%#x count=%#x", feature, lba, count)
	}
}

func TestATASanitizeTaskFileKeys(t *testing.T) {
	testCases := []struct {
		action SanitizeAction
		lba    uint64
	}{
		{SanitizeCryptoErase, 0x43727970},    // "Cryp"
		{SanitizeFreezeLock, 0x46724C6B},     // "FrLk"
		{SanitizeAntifreezeLock, 0x416E7469}, // "Anti"
	}
	for _, tc := range testCases {
		_, lba, _, err := ataSanitizeTaskFile(tc.action, SanitizeOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if lba != tc.lba {
			t.Errorf("action %d: lba = %#x; want %#x", tc.action, lba, tc.lba)
		}
	}
}

func TestNVMeSanitizeDwords(t *testing.T) {
	// Overwrite, 3 passes, pattern 0xDEADBEEF, no-dealloc:
	// action=3, passes in bits 7:4, NO_DEALLOC bit 9.
	cdw10, cdw11, err := nvmeSanitizeDwords(SanitizeOverwrite, SanitizeOpts{
		OverwritePattern: 0xDEADBEEF,
		PassCount:        3,
		NoDeallocate:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if cdw10 != 0x00000233 {
		t.Errorf("cdw10 = %#08x; want 0x00000233", cdw10)
	}
	if cdw11 != 0xDEADBEEF {
		t.Errorf("cdw11 = %#08x; want the overwrite pattern", cdw11)
	}

	// Overwrite with no pass count clamps to one pass.
	cdw10, _, err = nvmeSanitizeDwords(SanitizeOverwrite, SanitizeOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if cdw10 != 0x00000013 {
		t.Errorf("cdw10 = %#08x; want one-pass overwrite", cdw10)
	}

	cdw10, cdw11, err = nvmeSanitizeDwords(SanitizeCryptoErase, SanitizeOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if cdw10 != 4 || cdw11 != 0 {
		t.Errorf("crypto erase: cdw10=%#x cdw11=%#x", cdw10, cdw11)
	}

	// The ATA freeze-lock concept has no NVMe equivalent.
	if _, _, err := nvmeSanitizeDwords(SanitizeFreezeLock, SanitizeOpts{}); err == nil {
		t.Error("expected freeze-lock to be rejected for NVMe")
	}
}
