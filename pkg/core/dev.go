// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"fmt"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core/feature"
	"github.com/open-source-firmware/go-tcg-storage/pkg/drive"
)

// Core is the TCG-facing drive handle: it owns the transport for one
// device and the identity/discovery state read at open time. It is the
// entry point library consumers hand to session and locking setup.
type Core struct {
	drive.DriveIntf
	DiskInfo
}

// DiskInfo aggregates what Identify and Discovery0 learned about the
// device.
type DiskInfo struct {
	*Level0Discovery
	*drive.Identity
}

// Level0Discovery holds one parsed Level 0 discovery response: the header
// fields plus a pointer per known feature descriptor, nil when the drive
// does not advertise it. Feature codes with no decoder are collected in
// UnknownFeatures. (TCG Storage Architecture Core Spec v2.01 rev 1.00;
// the wire length field lives only in the parser.)
type Level0Discovery struct {
	MajorVersion                   int
	MinorVersion                   int
	Vendor                         [32]byte
	TPer                           *feature.TPer
	Locking                        *feature.Locking
	Geometry                       *feature.Geometry
	SecureMsg                      *feature.SecureMsg
	Enterprise                     *feature.Enterprise
	OpalV1                         *feature.OpalV1
	SingleUser                     *feature.SingleUser
	DataStore                      *feature.DataStore
	OpalV2                         *feature.OpalV2
	Opalite                        *feature.Opalite
	PyriteV1                       *feature.PyriteV1
	PyriteV2                       *feature.PyriteV2
	RubyV1                         *feature.RubyV1
	LockingLBA                     *feature.LockingLBA
	BlockSID                       *feature.BlockSID
	NamespaceLocking               *feature.NamespaceLocking
	DataRemoval                    *feature.DataRemoval
	NamespaceGeometry              *feature.NamespaceGeometry
	ShadowMBRForMultipleNamespaces *feature.ShadowMBRForMultipleNamespaces
	SeagatePorts                   *feature.SeagatePorts
	UnknownFeatures                []uint16
}

// NewCore opens the device, reads its identity, and runs the one Level 0
// discovery the handle caches for its lifetime.
func NewCore(device string) (*Core, error) {
	d, err := drive.Open(device)
	if err != nil {
		return nil, fmt.Errorf("open device %s failed: %v", device, err)
	}
	ident, err := d.Identify()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("identify device %s failed: %v", device, err)
	}
	c := &Core{
		DriveIntf: d,
		DiskInfo:  DiskInfo{Identity: ident},
	}
	if err := c.Discovery0(); err != nil {
		d.Close()
		return nil, err
	}
	return c, nil
}

// Discovery0 refreshes the handle's cached Level 0 discovery.
func (c *Core) Discovery0() error {
	d0, err := Discovery0(c.DriveIntf)
	if err != nil {
		return err
	}
	c.DiskInfo.Level0Discovery = d0
	return nil
}

func (c *Core) Close() error {
	return c.DriveIntf.Close()
}
