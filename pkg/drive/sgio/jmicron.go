// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Copyright 2021 Christian Svensson. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// ATA pass-through for JMicron USB-to-ATA bridge chips. These bridges do
// not implement SAT; instead a vendor-specific CDB (opcode 0xDF) carries
// the low-order task-file registers plus a port selector. Magic numbers
// follow hdparm/smartmontools.

package sgio

import (
	"errors"
	"fmt"
)

const (
	JMICRON_VENDOR_CDB = 0xdf

	// Internal command used to read the bridge's own register file.
	jmicronOpReadRegisters = 0xfd
	// Bridge register holding the attached-port status bits.
	jmicronPortStatusReg = 0x720f
)

// ErrLBA48NotSupported is returned for any command that needs the
// high-order register bank; the JMicron vendor CDB only carries the
// low-order registers, so pretending otherwise would silently truncate
// LBAs.
var ErrLBA48NotSupported = errors.New("JMicron bridges do not support 48-bit ATA commands")

// JMicronTaskFile is the low-order ATA register bank the bridge CDB can
// transport.
type JMicronTaskFile struct {
	Feat    uint8
	Nsect   uint8
	Lbal    uint8
	Lbam    uint8
	Lbah    uint8
	Command uint8
}

// jmicronCDB lays out the vendor pass-through CDB: direction in byte 1,
// transfer length in bytes 3-4 (big-endian), the six task-file registers in
// bytes 5-9 and 11, and the port selector in byte 10.
func jmicronCDB(port uint8, toDevice bool, tf JMicronTaskFile, dataBytes int) CDB12 {
	cdb := CDB12{JMICRON_VENDOR_CDB}
	if toDevice {
		cdb[1] = 0x00
	} else {
		cdb[1] = 0x10
	}
	cdb[3] = uint8(dataBytes >> 8)
	cdb[4] = uint8(dataBytes)
	cdb[5] = tf.Feat
	cdb[6] = tf.Nsect
	cdb[7] = tf.Lbal
	cdb[8] = tf.Lbam
	cdb[9] = tf.Lbah
	cdb[10] = port
	cdb[11] = tf.Command
	return cdb
}

// JMicronTaskfileCmd executes one ATA command on the drive behind the
// bridge port. buf may be nil for non-data commands.
func JMicronTaskfileCmd(fd uintptr, port uint8, toDevice bool, tf JMicronTaskFile, buf *[]byte) error {
	dataBytes := 0
	dir := CDBNoData
	if buf != nil && len(*buf) > 0 {
		dataBytes = len(*buf)
		if toDevice {
			dir = CDBToDevice
		} else {
			dir = CDBFromDevice
		}
	}
	cdb := jmicronCDB(port, toDevice, tf, dataBytes)
	if buf == nil {
		empty := []byte{}
		buf = &empty
	}
	return SendCDB(fd, cdb[:], dir, buf)
}

// JMicronDetectPort reads bridge register 0x720F and derives which ATA port
// the disk hangs off: bit 2 selects the master port (0xA0), bit 6 the slave
// port (0xB0). Done once at driver init.
func JMicronDetectPort(fd uintptr) (uint8, error) {
	reg := make([]byte, 1)
	tf := JMicronTaskFile{
		Nsect:   uint8(jmicronPortStatusReg >> 8),
		Lbal:    uint8(jmicronPortStatusReg & 0xff),
		Command: jmicronOpReadRegisters,
	}
	// Register reads address the bridge itself, not a port.
	if err := JMicronTaskfileCmd(fd, 0x00, false, tf, &reg); err != nil {
		return 0, err
	}
	switch {
	case reg[0]&0x04 != 0:
		return 0xa0, nil
	case reg[0]&0x40 != 0:
		return 0xb0, nil
	}
	return 0, fmt.Errorf("no disk attached to JMicron bridge (register 0x%04x = 0x%02x)", jmicronPortStatusReg, reg[0])
}

// JMicronATAIdentifyRaw reads the raw 512-byte ATA IDENTIFY DEVICE data of
// the disk behind the bridge.
func JMicronATAIdentifyRaw(fd uintptr, port uint8) ([]byte, error) {
	buf := make([]byte, 512)
	tf := JMicronTaskFile{
		Nsect:   1,
		Command: ATA_IDENTIFY_DEVICE,
	}
	if err := JMicronTaskfileCmd(fd, port, false, tf, &buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// JMicronTrustedReceive runs ATA TRUSTED RECEIVE through the bridge.
func JMicronTrustedReceive(fd uintptr, port uint8, proto uint8, comID uint16, resp *[]byte) error {
	tf := JMicronTaskFile{
		Feat:    proto,
		Nsect:   uint8(len(*resp) / 512),
		Lbam:    uint8(comID),
		Lbah:    uint8(comID >> 8),
		Command: ATA_TRUSTED_RCV,
	}
	return JMicronTaskfileCmd(fd, port, false, tf, resp)
}

// JMicronTrustedSend runs ATA TRUSTED SEND through the bridge.
func JMicronTrustedSend(fd uintptr, port uint8, proto uint8, comID uint16, in []byte) error {
	tf := JMicronTaskFile{
		Feat:    proto,
		Nsect:   uint8(len(in) / 512),
		Lbam:    uint8(comID),
		Lbah:    uint8(comID >> 8),
		Command: ATA_TRUSTED_SND,
	}
	return JMicronTaskfileCmd(fd, port, true, tf, &in)
}

// JMicronSMARTReadData runs SMART READ DATA through the bridge and returns
// the decoded attribute entries.
func JMicronSMARTReadData(fd uintptr, port uint8) ([]SMARTAttribute, error) {
	buf := make([]byte, 512)
	tf := JMicronTaskFile{
		Feat:    SMART_READ_DATA,
		Nsect:   1,
		Lbam:    smartLBAMid,
		Lbah:    smartLBAHi,
		Command: ATA_SMART,
	}
	if err := JMicronTaskfileCmd(fd, port, false, tf, &buf); err != nil {
		return nil, err
	}
	return parseSMARTAttributes(buf), nil
}
