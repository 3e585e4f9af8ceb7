// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// USB ATA-bridge support. Some USB enclosures hide the ATA device behind a
// vendor-specific pass-through instead of SAT; the bridge chip is
// recognized by its USB vendor/product ID from sysfs and driven through
// the matching vendor CDB in pkg/drive/sgio.

package drive

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/open-source-firmware/go-tcg-storage/pkg/drive/sgio"
)

// jmicronBridges are the JMicron USB-to-ATA bridge chips known to need the
// vendor pass-through (USB VID 0x152d).
var jmicronBridges = map[uint16]string{
	0x2329: "JM20329", // USB->SATA
	0x2336: "JM20336", // USB+SATA->SATA, USB->2xSATA
	0x2338: "JM20337/8", // USB->SATA+PATA, USB+SATA->PATA
	0x2339: "JM20339", // USB->SATA
}

const jmicronVendorID = 0x152d

// sysfsReadHex reads a single hex attribute file such as idVendor.
func sysfsReadHex(path string) (uint16, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

// usbBridgeIDs walks up the sysfs device chain from a block device looking
// for the USB interface that carries idVendor/idProduct attributes. Returns
// ok=false for non-USB devices.
func usbBridgeIDs(device string) (vendor, product uint16, ok bool) {
	name := filepath.Base(device)
	dir, err := filepath.EvalSymlinks(filepath.Join("/sys/class/block", name, "device"))
	if err != nil {
		return 0, 0, false
	}
	for i := 0; i < 8; i++ {
		v, vok := sysfsReadHex(filepath.Join(dir, "idVendor"))
		p, pok := sysfsReadHex(filepath.Join(dir, "idProduct"))
		if vok && pok {
			return v, p, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return 0, 0, false
}

// probeJMicron detects a supported JMicron bridge on the given device and,
// if found, initializes the vendor pass-through (including the one-time
// port discovery). Detection is silent: any failure means "not a bridge"
// and the caller moves on to the next driver.
func probeJMicron(device string, fd FdIntf) (*jmicronDrive, bool) {
	vendor, product, ok := usbBridgeIDs(device)
	if !ok || vendor != jmicronVendorID {
		return nil, false
	}
	if _, known := jmicronBridges[product]; !known {
		return nil, false
	}
	port, err := sgio.JMicronDetectPort(fd.Fd())
	if err != nil {
		return nil, false
	}
	d := &jmicronDrive{fd: fd, port: port}
	if _, err := d.AtaIdentify(); err != nil {
		return nil, false
	}
	return d, true
}

// jmicronDrive drives an ATA disk behind a JMicron USB bridge. Only the
// low-order register bank is reachable, so LBA48-only commands (e.g.
// SANITIZE DEVICE) report sgio.ErrLBA48NotSupported instead of truncating.
type jmicronDrive struct {
	fd   FdIntf
	port uint8
}

func (d *jmicronDrive) IFRecv(proto SecurityProtocol, sps uint16, data *[]byte) error {
	err := sgio.JMicronTrustedReceive(d.fd.Fd(), d.port, uint8(proto), sps, data)
	if err == sgio.ErrIllegalRequest {
		return ErrNotSupported
	}
	return err
}

func (d *jmicronDrive) IFSend(proto SecurityProtocol, sps uint16, data []byte) error {
	err := sgio.JMicronTrustedSend(d.fd.Fd(), d.port, uint8(proto), sps, data)
	if err == sgio.ErrIllegalRequest {
		return ErrNotSupported
	}
	return err
}

func (d *jmicronDrive) AtaIdentify() (*ATAIdentifyPage, error) {
	raw, err := sgio.JMicronATAIdentifyRaw(d.fd.Fd(), d.port)
	if err != nil {
		return nil, err
	}
	return ParseATAIdentify(raw)
}

func (d *jmicronDrive) Identify() (*Identity, error) {
	id, err := d.AtaIdentify()
	if err != nil {
		return nil, err
	}
	return &Identity{
		Protocol:     "USB/ATA",
		Model:        id.ModelNumber(),
		SerialNumber: id.SerialNumber(),
		Firmware:     id.FirmwareRevision(),
	}, nil
}

func (d *jmicronDrive) SerialNumber() ([]byte, error) {
	id, err := d.AtaIdentify()
	if err != nil {
		return nil, err
	}
	return []byte(id.SerialNumber()), nil
}

func (d *jmicronDrive) Capacity() (uint64, error) {
	id, err := d.AtaIdentify()
	if err != nil {
		return 0, err
	}
	return id.CapacityBytes(), nil
}

func (d *jmicronDrive) SmartHealth() (*SmartHealth, error) {
	attrs, err := sgio.JMicronSMARTReadData(d.fd.Fd(), d.port)
	if err != nil {
		return nil, err
	}
	converted := convertSMARTAttributes(attrs)
	return &SmartHealth{
		Attributes:      converted,
		CriticalWarning: ataCriticalWarning(converted),
	}, nil
}

func (d *jmicronDrive) SanitizeCapabilities() (map[SanitizeAction]SanitizeCapability, error) {
	id, err := d.AtaIdentify()
	if err != nil {
		return nil, err
	}
	return ataSanitizeCapabilities(id), nil
}

func (d *jmicronDrive) Sanitize(action SanitizeAction, opts SanitizeOpts) (*SanitizeProgress, error) {
	// SANITIZE DEVICE is a 48-bit command.
	return nil, sgio.ErrLBA48NotSupported
}

func (d *jmicronDrive) Close() error {
	return d.fd.Close()
}
