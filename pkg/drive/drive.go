// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style // license that can be found in the LICENSE file.

package drive

import (
	"bytes"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrNotSupported       = errors.New("operation is not supported")
	ErrDeviceNotSupported = errors.New("device is not supported")
)

type SecurityProtocol int

const (
	SecurityProtocolInformation   SecurityProtocol = 0
	SecurityProtocolTCGManagement SecurityProtocol = 1
	SecurityProtocolTCGTPer       SecurityProtocol = 2
)

type Identity struct {
	Protocol     string
	SerialNumber string
	Model        string
	Firmware     string
}

func (i *Identity) String() string {
	return fmt.Sprintf("Protocol=%s, Model=%s, Serial=%s, Firmware=%s",
		i.Protocol, i.Model, i.SerialNumber, i.Firmware)
}

type DriveIntf interface {
	SendReceive
	Identify
	Closer
}

// FdIntf is the file-descriptor handle a driver back-end issues its
// ioctls against; *os.File satisfies it.
type FdIntf interface {
	Fd() uintptr
	Close() error
}

type SendReceive interface {
	IFRecv(proto SecurityProtocol, sps uint16, data *[]byte) error
	IFSend(proto SecurityProtocol, sps uint16, data []byte) error
}

type Identify interface {
	Identify() (*Identity, error)
	SerialNumber() ([]byte, error)
}

type Closer interface {
	Close() error
}

// CanSanitize reports whether d's back-end implements the Sanitizer
// capability, without issuing any command against the drive.
func CanSanitize(d DriveIntf) bool {
	_, ok := d.(Sanitizer)
	return ok
}

// Sizer is implemented by drive back-ends that can report their total
// capacity in bytes.
type Sizer interface {
	Capacity() (uint64, error)
}

// Capacity returns the drive's total capacity in bytes.
func Capacity(d DriveIntf) (uint64, error) {
	s, ok := d.(Sizer)
	if !ok {
		return 0, ErrNotSupported
	}
	return s.Capacity()
}

// NativeMaxer is implemented by ATA back-ends that can query the native
// (pre-HPA) capacity via READ NATIVE MAX ADDRESS.
type NativeMaxer interface {
	NativeMaxSectors() (uint64, error)
}

// NativeMaxSectors returns the drive's native capacity in sectors.
func NativeMaxSectors(d DriveIntf) (uint64, error) {
	s, ok := d.(NativeMaxer)
	if !ok {
		return 0, ErrNotSupported
	}
	return s.NativeMaxSectors()
}

// DCOIdentifier is implemented by ATA back-ends that can read the Device
// Configuration Overlay identify data.
type DCOIdentifier interface {
	DCOIdentify() ([]byte, error)
}

// DCOIdentify returns the raw 512-byte DEVICE CONFIGURATION IDENTIFY block.
func DCOIdentify(d DriveIntf) ([]byte, error) {
	s, ok := d.(DCOIdentifier)
	if !ok {
		return nil, ErrNotSupported
	}
	return s.DCOIdentify()
}

// CapabilityReporter is implemented by back-ends that can derive the
// per-method sanitize capability from their cached identify data, without
// issuing a sanitize command.
type CapabilityReporter interface {
	SanitizeCapabilities() (map[SanitizeAction]SanitizeCapability, error)
}

// SanitizeCapabilities reports the per-method sanitize tri-state for d.
func SanitizeCapabilities(d DriveIntf) (map[SanitizeAction]SanitizeCapability, error) {
	s, ok := d.(CapabilityReporter)
	if !ok {
		return nil, ErrNotSupported
	}
	return s.SanitizeCapabilities()
}

// Returns a list of supported security protocols.
func SecurityProtocols(d DriveIntf) ([]SecurityProtocol, error) {
	raw := make([]byte, 2048)
	if err := d.IFRecv(SecurityProtocolInformation, 0, &raw); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(raw)
	hdr := struct {
		_      [6]byte
		Length uint16
	}{}
	if err := binary.Read(buf, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to parse security protocol list header: %v", err)
	}
	i := hdr.Length
	list := make([]uint8, i)
	if err := binary.Read(buf, binary.BigEndian, list); err != nil {
		return nil, fmt.Errorf("failed to read security protocol list: %v", err)
	}
	res := []SecurityProtocol{}
	for _, i := range list {
		res = append(res, SecurityProtocol(i))
	}
	return res, nil
}

// Returns the X.509 security certificate from the drive.
func Certificate(d DriveIntf) ([]*x509.Certificate, error) {
	raw := make([]byte, 4096)
	if err := d.IFRecv(SecurityProtocolInformation, 1, &raw); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(raw)
	hdr := struct {
		_    uint16
		Size uint16
	}{}
	if err := binary.Read(buf, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to parse certificate header: %v", err)
	}
	if hdr.Size == 0 {
		return nil, nil
	}
	crtdata := make([]byte, hdr.Size)
	if n, err := buf.Read(crtdata); n != int(hdr.Size) || err != nil {
		return nil, fmt.Errorf("failed to read certificate: error (%v) or underrun", err)
	}
	return x509.ParseCertificates(crtdata)
}
