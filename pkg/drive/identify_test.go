// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drive

import (
	"encoding/binary"
	"testing"
)

// putATAString stores s at off in ATA string order: space-padded to size,
// bytes swapped per 16-bit word.
func putATAString(buf []byte, off, size int, s string) {
	padded := make([]byte, size)
	for i := range padded {
		padded[i] = ' '
	}
	copy(padded, s)
	for i := 0; i+1 < size; i += 2 {
		buf[off+i] = padded[i+1]
		buf[off+i+1] = padded[i]
	}
}

func putWord(buf []byte, word int, v uint16) {
	binary.LittleEndian.PutUint16(buf[word*2:], v)
}

func testATABuf() []byte {
	buf := make([]byte, 512)
	putATAString(buf, 20, 20, "S2RBNB0HA12200B")
	putATAString(buf, 54, 40, "Samsung SSD 850 PRO")
	putATAString(buf, 46, 8, "EXM02B6Q")
	putWord(buf, 80, 0x01F0)   // major revision: ATA8-ACS..ATA/ATAPI-5
	putWord(buf, 49, 0x0200)   // LBA supported
	putWord(buf, 83, 0x4400)   // word valid + 48-bit feature supported
	putWord(buf, 86, 0x0400)   // 48-bit feature enabled
	binary.LittleEndian.PutUint32(buf[120:], 0x0FFFFFFF)         // words 60-61
	binary.LittleEndian.PutUint64(buf[200:], 0x0000000074706355) // words 100-103
	binary.LittleEndian.PutUint32(buf[114:], 16514064)           // words 57-58 (CHS)
	putWord(buf, 217, 1)      // non-rotating
	putWord(buf, 169, 0x0001) // TRIM
	putWord(buf, 59, 0x1000|0x2000|0x8000)
	putWord(buf, 128, 0x0001) // security supported, not enabled
	putWord(buf, 89, 0x8000|100)
	putWord(buf, 90, 100)
	return buf
}

func TestATAIdentifyStrings(t *testing.T) {
	id, err := ParseATAIdentify(testATABuf())
	if err != nil {
		t.Fatal(err)
	}
	if got := id.SerialNumber(); got != "S2RBNB0HA12200B" {
		t.Errorf("SerialNumber() = %q", got)
	}
	if got := id.ModelNumber(); got != "Samsung SSD 850 PRO" {
		t.Errorf("ModelNumber() = %q", got)
	}
	if got := id.FirmwareRevision(); got != "EXM02B6Q" {
		t.Errorf("FirmwareRevision() = %q", got)
	}
	if got := id.MajorRevision(); got != 0x01F0 {
		t.Errorf("MajorRevision() = %#x", got)
	}
	// The raw serial keeps the swapped wire order for use as a hash salt.
	raw := id.RawSerial()
	if string(raw[:4]) != "2SBR" {
		t.Errorf("RawSerial()[:4] = %q, want ATA wire order", raw[:4])
	}
}

func TestATAIdentifyCapacity(t *testing.T) {
	buf := testATABuf()
	id, _ := ParseATAIdentify(buf)
	if !id.SupportsLBA48() {
		t.Fatal("expected LBA48 to be active")
	}
	if got := id.Capacity(); got != 0x74706355 {
		t.Errorf("Capacity() = %#x; want 48-bit value", got)
	}

	// 48-bit feature disabled: fall back to the 28-bit sector count.
	putWord(buf, 86, 0)
	id, _ = ParseATAIdentify(buf)
	if got := id.Capacity(); got != 0x0FFFFFFF {
		t.Errorf("Capacity() = %#x; want 28-bit value", got)
	}

	// No LBA at all: the legacy CHS-derived capacity.
	putWord(buf, 49, 0)
	id, _ = ParseATAIdentify(buf)
	if got := id.Capacity(); got != 16514064 {
		t.Errorf("Capacity() = %d; want CHS value", got)
	}

	if got := id.LogicalSectorSize(); got != 512 {
		t.Errorf("LogicalSectorSize() = %d; want default 512", got)
	}
}

func TestATAIdentifySSD(t *testing.T) {
	id, _ := ParseATAIdentify(testATABuf())
	if got := id.SSDCheckWeight(); got != 2 {
		t.Errorf("SSDCheckWeight() = %d; want 2 (rotation + TRIM)", got)
	}
	if !id.IsSSD() {
		t.Error("IsSSD() = false")
	}
}

func TestATAIdentifySanitizeSupport(t *testing.T) {
	buf := testATABuf()
	id, _ := ParseATAIdentify(buf)

	testCases := []struct {
		action SanitizeAction
		want   SanitizeCapability
	}{
		{SanitizeBlockErase, SanitizeSupported},
		{SanitizeCryptoErase, SanitizeSupported},
		{SanitizeOverwrite, SanitizeUnsupported},
		{SanitizeStatus, SanitizeSupported},
		{SanitizeFreezeLock, SanitizeSupported},
	}
	for _, tc := range testCases {
		if got := id.SanitizeSupport(tc.action); got != tc.want {
			t.Errorf("SanitizeSupport(%d) = %v; want %v", tc.action, got, tc.want)
		}
	}

	// With the security feature enabled the advertised methods need an
	// unfreeze first.
	putWord(buf, 128, 0x0003)
	id, _ = ParseATAIdentify(buf)
	if got := id.SanitizeSupport(SanitizeBlockErase); got != SanitizeNeedsUnfreeze {
		t.Errorf("SanitizeSupport(block erase) = %v; want needs-unfreeze", got)
	}

	// Without the sanitize feature bit nothing is supported.
	putWord(buf, 59, 0x8000)
	id, _ = ParseATAIdentify(buf)
	if got := id.SanitizeSupport(SanitizeBlockErase); got != SanitizeUnsupported {
		t.Errorf("SanitizeSupport(block erase) = %v; want unsupported", got)
	}
}

func TestATASecurityStatus(t *testing.T) {
	buf := testATABuf()
	putWord(buf, 128, 0x002B) // supported, enabled, frozen, enhanced erase
	id, _ := ParseATAIdentify(buf)
	ss := id.SecurityStatus()
	if !ss.Supported || !ss.Enabled || ss.Locked || !ss.Frozen || ss.CountExpired || !ss.EnhancedEraseSupported {
		t.Errorf("SecurityStatus() = %+v", ss)
	}
}

func TestATAEraseSeconds(t *testing.T) {
	testCases := []struct {
		w    uint16
		want int
	}{
		{0, 0},
		{100, 12000},          // legacy format: units of 2 minutes
		{255, -1},             // out of range for the legacy format
		{0x8000 | 100, 200},   // extended format: units of 2 seconds
		{0x8000 | 32767, -1},  // out of range for the extended format
	}
	for _, tc := range testCases {
		if got := ataEraseSeconds(tc.w); got != tc.want {
			t.Errorf("ataEraseSeconds(%#x) = %d; want %d", tc.w, got, tc.want)
		}
	}
}

func TestNVMeIdentifyControllerLayout(t *testing.T) {
	buf := make([]byte, 4096)
	copy(buf[4:], "S1ARNEAG          ")
	copy(buf[24:], "NVMe Test Controller")
	copy(buf[64:], "1B2QEXP7")
	binary.LittleEndian.PutUint32(buf[80:], 0x00010300) // VER: 1.3.0
	binary.LittleEndian.PutUint64(buf[280:], 1<<40)     // TNVMCAP low half
	binary.LittleEndian.PutUint32(buf[328:], 0x3)       // SANICAP: crypto + block erase

	id, err := ParseNVMeIdentifyController(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := id.SerialNumber(); got != "S1ARNEAG" {
		t.Errorf("SerialNumber() = %q", got)
	}
	if got := id.ModelNumber(); got != "NVMe Test Controller" {
		t.Errorf("ModelNumber() = %q", got)
	}
	if got := id.FirmwareRevision(); got != "1B2QEXP7" {
		t.Errorf("FirmwareRevision() = %q", got)
	}
	if maj, min, ter := id.Version(); maj != 1 || min != 3 || ter != 0 {
		t.Errorf("Version() = %d.%d.%d; want 1.3.0", maj, min, ter)
	}
	if got := id.TotalCapacityBytes(); got != 1<<40 {
		t.Errorf("TotalCapacityBytes() = %d", got)
	}

	if got := id.SanitizeSupport(SanitizeCryptoErase); got != SanitizeSupported {
		t.Errorf("SanitizeSupport(crypto) = %v", got)
	}
	if got := id.SanitizeSupport(SanitizeBlockErase); got != SanitizeSupported {
		t.Errorf("SanitizeSupport(block) = %v", got)
	}
	if got := id.SanitizeSupport(SanitizeOverwrite); got != SanitizeUnsupported {
		t.Errorf("SanitizeSupport(overwrite) = %v", got)
	}
}

func TestATAIdentifyShortBuffer(t *testing.T) {
	if _, err := ParseATAIdentify(make([]byte, 100)); err == nil {
		t.Error("expected error on short ATA identify")
	}
	if _, err := ParseNVMeIdentifyController(make([]byte, 100)); err == nil {
		t.Error("expected error on short NVMe identify")
	}
}
