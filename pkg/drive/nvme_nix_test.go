// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package drive

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unsafe"
)

// The SMART / Health Information log page layout is offset-critical:
// critical warning at 0, composite temperature at 1, available spare at 3,
// power cycles at 112, power on hours at 128.
func TestNVMeSmartLogLayout(t *testing.T) {
	if s := unsafe.Sizeof(nvmeSmartLog{}); s != 512 {
		t.Fatalf("nvmeSmartLog is %d bytes; want 512", s)
	}

	buf := make([]byte, 512)
	buf[0] = 0x04                                 // critical warning
	binary.LittleEndian.PutUint16(buf[1:], 0x137) // composite temperature (311 K)
	buf[3] = 99                                   // available spare
	binary.LittleEndian.PutUint64(buf[112:], 1234) // power cycles
	binary.LittleEndian.PutUint64(buf[128:], 5678) // power on hours

	log := &nvmeSmartLog{}
	if err := binary.Read(bytes.NewBuffer(buf), binary.LittleEndian, log); err != nil {
		t.Fatal(err)
	}
	if log.CriticalWarning != 0x04 {
		t.Errorf("CriticalWarning = %#x", log.CriticalWarning)
	}
	if got := binary.LittleEndian.Uint16(log.Temperature[:]); got != 0x137 {
		t.Errorf("Temperature = %#x", got)
	}
	if log.AvailSpare != 99 {
		t.Errorf("AvailSpare = %d", log.AvailSpare)
	}
	if got := le128ToUint64(log.PowerCycles); got != 1234 {
		t.Errorf("PowerCycles = %d", got)
	}
	if got := le128ToUint64(log.PowerOnHours); got != 5678 {
		t.Errorf("PowerOnHours = %d", got)
	}
}

// The sanitize status log carries the progress/status words first, then the
// per-method time estimates.
func TestNVMeSanitizeLogLayout(t *testing.T) {
	buf := make([]byte, 512)
	binary.LittleEndian.PutUint16(buf[0:], 0x8000)     // progress
	binary.LittleEndian.PutUint16(buf[2:], 0x0002)     // status: in progress
	binary.LittleEndian.PutUint32(buf[8:], 600)        // overwrite estimate
	binary.LittleEndian.PutUint32(buf[12:], 60)        // block erase estimate
	binary.LittleEndian.PutUint32(buf[16:], 0xFFFFFFFF) // crypto: unreported

	log := &nvmeSanitizeLogPage{}
	if err := binary.Read(bytes.NewBuffer(buf[:binary.Size(log)]), binary.LittleEndian, log); err != nil {
		t.Fatal(err)
	}
	if log.SanitizeProgress != 0x8000 || log.SanitizeStatus&0x7 != 2 {
		t.Errorf("progress/status = %#x/%#x", log.SanitizeProgress, log.SanitizeStatus)
	}
	if log.EstOverwrite != 600 || log.EstBlockErase != 60 || log.EstCryptoErase != 0xFFFFFFFF {
		t.Errorf("estimates = %d/%d/%#x", log.EstOverwrite, log.EstBlockErase, log.EstCryptoErase)
	}
}
