// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package drive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/dswarbrick/smart/ioctl"
)

const (
	NVME_ADMIN_IDENTIFY      = 0x06
	NVME_ADMIN_GET_LOG_PAGE  = 0x02
	NVME_ADMIN_SANITIZE      = 0x84
	NVME_SECURITY_SEND       = 0x81
	NVME_SECURITY_RECV       = 0x82

	NVME_LOG_SMART           = 0x02
	NVME_LOG_SANITIZE_STATUS = 0x81

	nvmeSanitizeActionExit        = 1
	nvmeSanitizeActionBlockErase  = 2
	nvmeSanitizeActionOverwrite   = 3
	nvmeSanitizeActionCryptoErase = 4

	nvmeSanitizeNoDealloc = 1 << 9
)

var NVME_IOCTL_ADMIN_CMD = ioctl.Iowr('N', 0x41, unsafe.Sizeof(nvmePassthruCommand{}))

// Defined in <linux/nvme_ioctl.h>
type nvmePassthruCommand struct {
	opcode       uint8
	flags        uint8  //nolint:structcheck,unused
	rsvd1        uint16 //nolint:structcheck,unused
	nsid         uint32
	cdw2         uint32 //nolint:structcheck,unused
	cdw3         uint32 //nolint:structcheck,unused
	metadata     uint64 //nolint:structcheck,unused
	addr         uint64
	metadata_len uint32 //nolint:structcheck,unused
	data_len     uint32
	cdw10        uint32
	cdw11        uint32 //nolint:structcheck,unused
	cdw12        uint32 //nolint:structcheck,unused
	cdw13        uint32 //nolint:structcheck,unused
	cdw14        uint32 //nolint:structcheck,unused
	cdw15        uint32 //nolint:structcheck,unused
	timeout_ms   uint32 //nolint:structcheck,unused
	result       uint32 //nolint:structcheck,unused
}

type nvmeAdminCommand nvmePassthruCommand

type nvmeDrive struct {
	fd FdIntf
}

func (d *nvmeDrive) IFRecv(proto SecurityProtocol, sps uint16, data *[]byte) error {
	cmd := nvmeAdminCommand{
		opcode:   NVME_SECURITY_RECV,
		nsid:     0,
		addr:     uint64(uintptr(unsafe.Pointer(&(*data)[0]))),
		data_len: uint32(len(*data)),
		cdw10:    uint32(proto&0xff)<<24 | uint32(sps)<<8,
		cdw11:    uint32(len(*data)),
	}

	err := ioctl.Ioctl(d.fd.Fd(), NVME_IOCTL_ADMIN_CMD, uintptr(unsafe.Pointer(&cmd)))
	runtime.KeepAlive(d.fd)
	return err
}

func (d *nvmeDrive) IFSend(proto SecurityProtocol, sps uint16, data []byte) error {
	cmd := nvmeAdminCommand{
		opcode:   NVME_SECURITY_SEND,
		nsid:     0,
		addr:     uint64(uintptr(unsafe.Pointer(&data[0]))),
		data_len: uint32(len(data)),
		cdw10:    uint32(proto&0xff)<<24 | uint32(sps)<<8,
		cdw11:    uint32(len(data)),
	}

	err := ioctl.Ioctl(d.fd.Fd(), NVME_IOCTL_ADMIN_CMD, uintptr(unsafe.Pointer(&cmd)))
	runtime.KeepAlive(d.fd)
	return err
}

func (d *nvmeDrive) Identify() (*Identity, error) {
	i, err := identifyNvme(d.fd)
	if err != nil {
		return nil, err
	}
	return &Identity{
		Protocol:     "NVMe",
		Model:        i.ModelNumber(),
		SerialNumber: i.SerialNumber(),
		Firmware:     i.FirmwareRevision(),
	}, nil
}

func (d *nvmeDrive) SerialNumber() ([]byte, error) {
	i, err := identifyNvme(d.fd)
	if err != nil {
		return nil, err
	}
	return []byte(i.SerialNumber()), nil
}

// NvmeIdentify returns the decoded 4096-byte IDENTIFY CONTROLLER record.
func (d *nvmeDrive) NvmeIdentify() (*NVMeIdentifyController, error) {
	return identifyNvme(d.fd)
}

// Capacity is the controller's total NVM capacity (TNVMCAP) in bytes.
func (d *nvmeDrive) Capacity() (uint64, error) {
	i, err := identifyNvme(d.fd)
	if err != nil {
		return 0, err
	}
	return i.TotalCapacityBytes(), nil
}

func (d *nvmeDrive) SanitizeCapabilities() (map[SanitizeAction]SanitizeCapability, error) {
	i, err := identifyNvme(d.fd)
	if err != nil {
		return nil, err
	}
	m := map[SanitizeAction]SanitizeCapability{}
	for _, a := range []SanitizeAction{
		SanitizeStatus, SanitizeCryptoErase, SanitizeBlockErase, SanitizeOverwrite,
	} {
		m[a] = i.SanitizeSupport(a)
	}
	return m, nil
}

func (d *nvmeDrive) Close() error {
	return d.fd.Close()
}

func NVMEDrive(fd FdIntf) *nvmeDrive {
	// Save the full object reference to avoid the underlying File-like object
	// to be GC'd
	return &nvmeDrive{fd: fd}
}

func identifyNvmeRaw(fd FdIntf) ([]byte, error) {
	raw := make([]byte, 4096)

	cmd := nvmePassthruCommand{
		opcode:   NVME_ADMIN_IDENTIFY,
		nsid:     0, // Namespace 0, since we are identifying the controller
		addr:     uint64(uintptr(unsafe.Pointer(&raw[0]))),
		data_len: uint32(len(raw)),
		cdw10:    1, // Identify controller
	}

	// TODO: Replace with https://go-review.googlesource.com/c/sys/+/318210/ if accepted
	err := ioctl.Ioctl(fd.Fd(), NVME_IOCTL_ADMIN_CMD, uintptr(unsafe.Pointer(&cmd)))
	runtime.KeepAlive(fd)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func identifyNvme(fd FdIntf) (*NVMeIdentifyController, error) {
	raw, err := identifyNvmeRaw(fd)
	if err != nil {
		return nil, err
	}
	return ParseNVMeIdentifyController(raw)
}

func isNVME(f FdIntf) bool {
	i, err := identifyNvme(f)
	return err == nil && i != nil
}

// nvmeSanitizeLogPage is the NVMe Sanitize Status log page (log identifier
// 0x81), NVMe Base Specification section "Sanitize Status".
type nvmeSanitizeLogPage struct {
	SanitizeProgress uint16
	SanitizeStatus   uint16
	CDW10Info        uint32
	EstOverwrite     uint32
	EstBlockErase    uint32
	EstCryptoErase   uint32
}

func nvmeSanitizeAction(action SanitizeAction) (uint32, error) {
	switch action {
	case SanitizeCryptoErase:
		return nvmeSanitizeActionCryptoErase, nil
	case SanitizeBlockErase:
		return nvmeSanitizeActionBlockErase, nil
	case SanitizeOverwrite:
		return nvmeSanitizeActionOverwrite, nil
	default:
		return 0, fmt.Errorf("unsupported sanitize action %d", action)
	}
}

func nvmeReadSanitizeLog(fd FdIntf) (*nvmeSanitizeLogPage, error) {
	raw := make([]byte, 512)
	cmd := nvmePassthruCommand{
		opcode:   NVME_ADMIN_GET_LOG_PAGE,
		nsid:     0xFFFFFFFF,
		addr:     uint64(uintptr(unsafe.Pointer(&raw[0]))),
		data_len: uint32(len(raw)),
		cdw10:    uint32(NVME_LOG_SANITIZE_STATUS) | (uint32(len(raw)/4-1) << 16),
	}
	err := ioctl.Ioctl(fd.Fd(), NVME_IOCTL_ADMIN_CMD, uintptr(unsafe.Pointer(&cmd)))
	runtime.KeepAlive(fd)
	if err != nil {
		return nil, err
	}

	log := &nvmeSanitizeLogPage{}
	if err := binary.Read(bytes.NewBuffer(raw), binary.LittleEndian, log); err != nil {
		return nil, err
	}
	return log, nil
}

// nvmeSmartLog is the NVMe SMART / Health Information log page (log
// identifier 0x02), NVMe Base Specification section "SMART / Health
// Information". Fields the driver doesn't surface are kept as padding to
// preserve the offsets of the ones that matter.
type nvmeSmartLog struct {
	CriticalWarning  uint8
	Temperature      [2]byte
	AvailSpare       uint8
	SpareThresh      uint8
	PercentUsed      uint8
	_                [26]byte
	DataUnitsRead    [16]byte
	DataUnitsWritten [16]byte
	HostReads        [16]byte
	HostWrites       [16]byte
	CtrlBusyTime     [16]byte
	PowerCycles      [16]byte
	PowerOnHours     [16]byte
	UnsafeShutdowns  [16]byte
	MediaErrors      [16]byte
	NumErrLogEntries [16]byte
	WarningTempTime  uint32
	CritCompTime     uint32
	TempSensor       [8]uint16
	_                [296]byte
}

// le128ToUint64 takes the low 64 bits of an NVMe 128-bit little-endian
// counter; the values this library surfaces never realistically exceed that
// range.
func le128ToUint64(b [16]byte) uint64 {
	return binary.LittleEndian.Uint64(b[:8])
}

func nvmeReadSmartLog(fd FdIntf) (*nvmeSmartLog, error) {
	raw := make([]byte, 512)
	cmd := nvmePassthruCommand{
		opcode:   NVME_ADMIN_GET_LOG_PAGE,
		nsid:     0xFFFFFFFF,
		addr:     uint64(uintptr(unsafe.Pointer(&raw[0]))),
		data_len: uint32(len(raw)),
		cdw10:    uint32(NVME_LOG_SMART) | (uint32(len(raw)/4-1) << 16),
	}
	err := ioctl.Ioctl(fd.Fd(), NVME_IOCTL_ADMIN_CMD, uintptr(unsafe.Pointer(&cmd)))
	runtime.KeepAlive(fd)
	if err != nil {
		return nil, err
	}

	log := &nvmeSmartLog{}
	if err := binary.Read(bytes.NewBuffer(raw), binary.LittleEndian, log); err != nil {
		return nil, err
	}
	return log, nil
}

func (d *nvmeDrive) SmartHealth() (*SmartHealth, error) {
	log, err := nvmeReadSmartLog(d.fd)
	if err != nil {
		return nil, err
	}
	return &SmartHealth{
		CriticalWarning:         log.CriticalWarning,
		CompositeTemperatureK:   binary.LittleEndian.Uint16(log.Temperature[:]),
		AvailableSpare:          log.AvailSpare,
		AvailableSpareThreshold: log.SpareThresh,
		PercentageUsed:          log.PercentUsed,
		PowerCycles:             le128ToUint64(log.PowerCycles),
		PowerOnHours:            le128ToUint64(log.PowerOnHours),
		UnsafeShutdowns:         le128ToUint64(log.UnsafeShutdowns),
		MediaErrors:             le128ToUint64(log.MediaErrors),
		NumErrLogEntries:        le128ToUint64(log.NumErrLogEntries),
	}, nil
}

// nvmeSanitizeDwords encodes a sanitize request into the SANITIZE NVM
// cdw10/cdw11 pair: action in bits 2:0, overwrite pass count in bits 7:4
// (clamped to [1, 15]), NO_DEALLOC in bit 9, and the overwrite pattern in
// cdw11.
func nvmeSanitizeDwords(action SanitizeAction, opts SanitizeOpts) (cdw10, cdw11 uint32, err error) {
	act, err := nvmeSanitizeAction(action)
	if err != nil {
		return 0, 0, err
	}
	cdw10 = act
	if opts.NoDeallocate {
		cdw10 |= nvmeSanitizeNoDealloc
	}
	if action == SanitizeOverwrite {
		passes := opts.PassCount
		if passes <= 0 {
			passes = 1
		}
		if passes > 15 {
			passes = 15
		}
		cdw10 |= uint32(passes&0xf) << 4
		cdw11 = opts.OverwritePattern
	}
	return cdw10, cdw11, nil
}

func (d *nvmeDrive) Sanitize(action SanitizeAction, opts SanitizeOpts) (*SanitizeProgress, error) {
	if action != SanitizeStatus {
		cdw10, cdw11, err := nvmeSanitizeDwords(action, opts)
		if err != nil {
			return nil, err
		}
		cmd := nvmePassthruCommand{
			opcode: NVME_ADMIN_SANITIZE,
			nsid:   0xFFFFFFFF,
			cdw10:  cdw10,
			cdw11:  cdw11,
		}
		err = ioctl.Ioctl(d.fd.Fd(), NVME_IOCTL_ADMIN_CMD, uintptr(unsafe.Pointer(&cmd)))
		runtime.KeepAlive(d.fd)
		if err != nil {
			return nil, err
		}
	}

	log, err := nvmeReadSanitizeLog(d.fd)
	if err != nil {
		return nil, err
	}

	st := log.SanitizeStatus & 0x7
	frac := -1.0
	if log.SanitizeProgress != 0xFFFF {
		frac = float64(log.SanitizeProgress) / 65536
	}
	eta := uint32(0)
	switch action {
	case SanitizeOverwrite:
		eta = log.EstOverwrite
	case SanitizeBlockErase:
		eta = log.EstBlockErase
	case SanitizeCryptoErase:
		eta = log.EstCryptoErase
	}
	if eta == 0xFFFFFFFF {
		eta = 0
	}

	return &SanitizeProgress{
		Succeeded:  st == 1 || st == 4,
		InProgress: st == 2,
		Failed:     st == 3,
		Fraction:   frac,
		ETASeconds: eta,
	}, nil
}
