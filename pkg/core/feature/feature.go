// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Level 0 discovery feature descriptor decoders. Every field is read with
// an explicit byte offset and bit mask over the raw descriptor instead of
// struct layout tricks; the discovery wire format is big-endian and the
// bit assignments below follow the TCG Storage feature set documents.

package feature

import (
	"io"
)

type FeatureCode uint16

const (
	CodeTPer                           FeatureCode = 0x0001
	CodeLocking                        FeatureCode = 0x0002
	CodeGeometry                       FeatureCode = 0x0003
	CodeSecureMsg                      FeatureCode = 0x0004
	CodeEnterprise                     FeatureCode = 0x0100
	CodeOpalV1                         FeatureCode = 0x0200
	CodeSingleUser                     FeatureCode = 0x0201
	CodeDataStore                      FeatureCode = 0x0202
	CodeOpalV2                         FeatureCode = 0x0203
	CodeOpalite                        FeatureCode = 0x0301
	CodePyriteV1                       FeatureCode = 0x0302
	CodePyriteV2                       FeatureCode = 0x0303
	CodeRubyV1                         FeatureCode = 0x0304
	CodeLockingLBA                     FeatureCode = 0x0401
	CodeBlockSID                       FeatureCode = 0x0402
	CodeNamespaceLocking               FeatureCode = 0x0403
	CodeDataRemoval                    FeatureCode = 0x0404
	CodeNamespaceGeometry              FeatureCode = 0x0405
	CodeShadowMBRForMultipleNamespaces FeatureCode = 0x0407
	CodeSeagatePorts                   FeatureCode = 0xC001
)

var featureNames = map[FeatureCode]string{
	CodeTPer:                           "TPer",
	CodeLocking:                        "Locking",
	CodeGeometry:                       "Geometry Reporting",
	CodeSecureMsg:                      "Secure Messaging",
	CodeEnterprise:                     "Enterprise SSC",
	CodeOpalV1:                         "Opal SSC V1",
	CodeSingleUser:                     "Single User Mode",
	CodeDataStore:                      "Additional DataStore Tables",
	CodeOpalV2:                         "Opal SSC V2",
	CodeOpalite:                        "Opalite SSC",
	CodePyriteV1:                       "Pyrite SSC V1",
	CodePyriteV2:                       "Pyrite SSC V2",
	CodeRubyV1:                         "Ruby SSC V1",
	CodeLockingLBA:                     "Locking LBA Ranges Control",
	CodeBlockSID:                       "Block SID Authentication",
	CodeNamespaceLocking:               "Configurable Namespace Locking",
	CodeDataRemoval:                    "Supported Data Removal Mechanism",
	CodeNamespaceGeometry:              "Namespace Geometry Reporting",
	CodeShadowMBRForMultipleNamespaces: "Shadow MBR For Multiple Namespaces",
	CodeSeagatePorts:                   "Seagate Ports",
}

// String names the feature the way the SSC documents title it.
func (c FeatureCode) String() string {
	if n, ok := featureNames[c]; ok {
		return n
	}
	return "<unknown feature>"
}

// descriptor is a feature descriptor body. Its accessors tolerate
// descriptors shorter than the offsets they are asked for (older drives
// truncate optional tails) by reporting zero.
type descriptor []byte

func readDescriptor(rdr io.Reader) (descriptor, error) {
	d, err := io.ReadAll(rdr)
	if err != nil {
		return nil, err
	}
	return descriptor(d), nil
}

func (d descriptor) bit(off int, mask byte) bool {
	return d.byteAt(off)&mask != 0
}

func (d descriptor) byteAt(off int) byte {
	if off >= len(d) {
		return 0
	}
	return d[off]
}

func (d descriptor) u16(off int) uint16 {
	return uint16(d.byteAt(off))<<8 | uint16(d.byteAt(off+1))
}

func (d descriptor) u32(off int) uint32 {
	return uint32(d.u16(off))<<16 | uint32(d.u16(off+2))
}

func (d descriptor) u64(off int) uint64 {
	return uint64(d.u32(off))<<32 | uint64(d.u32(off+4))
}

// CommonSSC is the ComID allocation every security subsystem class
// descriptor starts with. The base ComID and ComID count differ per
// dialect; session setup reads them through the SSC interface without
// caring which dialect provided them.
type CommonSSC struct {
	BaseComID uint16
	NumComID  uint16
}

// ComIDRange returns the statically allocated ComID range the dialect
// advertises.
func (c CommonSSC) ComIDRange() (base, count uint16) {
	return c.BaseComID, c.NumComID
}

// SSC is implemented by every security subsystem class feature.
type SSC interface {
	ComIDRange() (base, count uint16)
}

type TPer struct {
	SyncSupported       bool
	AsyncSupported      bool
	AckNakSupported     bool
	BufferMgmtSupported bool
	StreamingSupported  bool
	ComIDMgmtSupported  bool
}

func ReadTPerFeature(rdr io.Reader) (*TPer, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &TPer{
		SyncSupported:       d.bit(0, 0x01),
		AsyncSupported:      d.bit(0, 0x02),
		AckNakSupported:     d.bit(0, 0x04),
		BufferMgmtSupported: d.bit(0, 0x08),
		StreamingSupported:  d.bit(0, 0x10),
		ComIDMgmtSupported:  d.bit(0, 0x40),
	}, nil
}

type Locking struct {
	LockingSupported bool
	LockingEnabled   bool
	Locked           bool
	MediaEncryption  bool
	MBREnabled       bool
	MBRDone          bool
	MBRShadowing     bool
}

func ReadLockingFeature(rdr io.Reader) (*Locking, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &Locking{
		LockingSupported: d.bit(0, 0x01),
		LockingEnabled:   d.bit(0, 0x02),
		Locked:           d.bit(0, 0x04),
		MediaEncryption:  d.bit(0, 0x08),
		MBREnabled:       d.bit(0, 0x10),
		MBRDone:          d.bit(0, 0x20),
		// Bit 6 is "MBR shadowing NOT supported"; absent means shadowing works.
		MBRShadowing: !d.bit(0, 0x40),
	}, nil
}

type Geometry struct {
	Align                bool
	LogicalBlockSize     uint32
	AlignmentGranularity uint64
	LowestAlignedLBA     uint64
}

func ReadGeometryFeature(rdr io.Reader) (*Geometry, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &Geometry{
		Align:                d.bit(0, 0x01),
		LogicalBlockSize:     d.u32(8),
		AlignmentGranularity: d.u64(12),
		LowestAlignedLBA:     d.u64(20),
	}, nil
}

type SecureMsg struct {
	// Certificate/cipher-suite tail not decoded; nothing in this library
	// negotiates secure messaging.
}

func ReadSecureMsgFeature(rdr io.Reader) (*SecureMsg, error) {
	return &SecureMsg{}, nil
}

type Enterprise struct {
	CommonSSC
	RangeCrossingBehavior bool
}

func ReadEnterpriseFeature(rdr io.Reader) (*Enterprise, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &Enterprise{
		CommonSSC:             CommonSSC{BaseComID: d.u16(0), NumComID: d.u16(2)},
		RangeCrossingBehavior: d.bit(4, 0x01),
	}, nil
}

type OpalV1 struct {
	CommonSSC
}

func ReadOpalV1Feature(rdr io.Reader) (*OpalV1, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &OpalV1{
		CommonSSC: CommonSSC{BaseComID: d.u16(0), NumComID: d.u16(2)},
	}, nil
}

type SingleUser struct {
	NumberLockingObjectsSupported uint32
	Policy                        bool
	Any                           bool
	All                           bool
}

func ReadSingleUserFeature(rdr io.Reader) (*SingleUser, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &SingleUser{
		NumberLockingObjectsSupported: d.u32(0),
		Any:                           d.bit(4, 0x01),
		All:                           d.bit(4, 0x02),
		Policy:                        d.bit(4, 0x04),
	}, nil
}

type DataStore struct {
	MaxTables          uint16
	MaxSizeOfTables    uint32
	TableSizeAlignment uint32
}

func ReadDataStoreFeature(rdr io.Reader) (*DataStore, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &DataStore{
		MaxTables:          d.u16(2),
		MaxSizeOfTables:    d.u32(4),
		TableSizeAlignment: d.u32(8),
	}, nil
}

type OpalV2 struct {
	CommonSSC
	RangeCrossingBehavior         bool
	NumLockingSPAdminSupported    uint16
	NumLockingSPUserSupported     uint16
	InitialCPINSIDIndicator       uint8
	BehaviorCPINSIDuponTPerRevert uint8
}

func ReadOpalV2Feature(rdr io.Reader) (*OpalV2, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &OpalV2{
		CommonSSC:                     CommonSSC{BaseComID: d.u16(0), NumComID: d.u16(2)},
		RangeCrossingBehavior:         d.bit(4, 0x01),
		NumLockingSPAdminSupported:    d.u16(5),
		NumLockingSPUserSupported:     d.u16(7),
		InitialCPINSIDIndicator:       d.byteAt(9),
		BehaviorCPINSIDuponTPerRevert: d.byteAt(10),
	}, nil
}

type Opalite struct {
	CommonSSC
	InitialCPINSIDIndicator       uint8
	BehaviorCPINSIDuponTPerRevert uint8
}

func ReadOpaliteFeature(rdr io.Reader) (*Opalite, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &Opalite{
		CommonSSC:                     CommonSSC{BaseComID: d.u16(0), NumComID: d.u16(2)},
		InitialCPINSIDIndicator:       d.byteAt(8),
		BehaviorCPINSIDuponTPerRevert: d.byteAt(9),
	}, nil
}

type PyriteV1 struct {
	CommonSSC
	InitialCPINSIDIndicator       uint8
	BehaviorCPINSIDuponTPerRevert uint8
}

func ReadPyriteV1Feature(rdr io.Reader) (*PyriteV1, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &PyriteV1{
		CommonSSC:                     CommonSSC{BaseComID: d.u16(0), NumComID: d.u16(2)},
		InitialCPINSIDIndicator:       d.byteAt(8),
		BehaviorCPINSIDuponTPerRevert: d.byteAt(9),
	}, nil
}

type PyriteV2 struct {
	CommonSSC
	InitialCPINSIDIndicator       uint8
	BehaviorCPINSIDuponTPerRevert uint8
}

func ReadPyriteV2Feature(rdr io.Reader) (*PyriteV2, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &PyriteV2{
		CommonSSC:                     CommonSSC{BaseComID: d.u16(0), NumComID: d.u16(2)},
		InitialCPINSIDIndicator:       d.byteAt(8),
		BehaviorCPINSIDuponTPerRevert: d.byteAt(9),
	}, nil
}

type RubyV1 struct {
	CommonSSC
	RangeCrossingBehavior         bool
	NumLockingSPAdminSupported    uint16
	NumLockingSPUserSupported     uint16
	InitialCPINSIDIndicator       uint8
	BehaviorCPINSIDuponTPerRevert uint8
}

func ReadRubyV1Feature(rdr io.Reader) (*RubyV1, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &RubyV1{
		CommonSSC:                     CommonSSC{BaseComID: d.u16(0), NumComID: d.u16(2)},
		RangeCrossingBehavior:         d.bit(4, 0x01),
		NumLockingSPAdminSupported:    d.u16(5),
		NumLockingSPUserSupported:     d.u16(7),
		InitialCPINSIDIndicator:       d.byteAt(9),
		BehaviorCPINSIDuponTPerRevert: d.byteAt(10),
	}, nil
}

type LockingLBA struct {
	// Only the feature's presence matters to this library.
}

func ReadLockingLBAFeature(rdr io.Reader) (*LockingLBA, error) {
	return &LockingLBA{}, nil
}

type BlockSID struct {
	LockingSPFreezeLockState      bool
	LockingSPFreezeLockSupported  bool
	SIDAuthenticationBlockedState bool
	SIDValueState                 bool
	HardwareReset                 bool
}

func ReadBlockSIDFeature(rdr io.Reader) (*BlockSID, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &BlockSID{
		SIDValueState:                 d.bit(0, 0x01),
		SIDAuthenticationBlockedState: d.bit(0, 0x02),
		LockingSPFreezeLockSupported:  d.bit(0, 0x04),
		LockingSPFreezeLockState:      d.bit(0, 0x08),
		HardwareReset:                 d.bit(1, 0x01),
	}, nil
}

type NamespaceLocking struct {
	Range_C                   bool
	Range_P                   bool
	SUM_C                     bool
	MaximumKeyCount           uint32
	UnusedKeyCount            uint32
	MaximumRangesPerNamespace uint32
}

func ReadNamespaceLockingFeature(rdr io.Reader) (*NamespaceLocking, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &NamespaceLocking{
		Range_C:                   d.bit(0, 0x80),
		Range_P:                   d.bit(0, 0x40),
		SUM_C:                     d.bit(0, 0x20),
		MaximumKeyCount:           d.u32(4),
		UnusedKeyCount:            d.u32(8),
		MaximumRangesPerNamespace: d.u32(12),
	}, nil
}

type DataRemoval struct {
	Processing          bool
	SupportedMechanisms uint8
}

func ReadDataRemovalFeature(rdr io.Reader) (*DataRemoval, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &DataRemoval{
		Processing:          d.bit(1, 0x01),
		SupportedMechanisms: d.byteAt(2),
	}, nil
}

type NamespaceGeometry struct {
	// Only the feature's presence matters to this library.
}

func ReadNamespaceGeometryFeature(rdr io.Reader) (*NamespaceGeometry, error) {
	return &NamespaceGeometry{}, nil
}

type ShadowMBRForMultipleNamespaces struct {
	ANS_C bool
}

func ReadShadowMBRForMultipleNamespacesFeature(rdr io.Reader) (*ShadowMBRForMultipleNamespaces, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	return &ShadowMBRForMultipleNamespaces{ANS_C: d.bit(0, 0x01)}, nil
}

type SeagatePort struct {
	PortIdentifier int32
	PortLocked     uint8
}

type SeagatePorts struct {
	Ports []SeagatePort
}

func ReadSeagatePorts(rdr io.Reader) (*SeagatePorts, error) {
	d, err := readDescriptor(rdr)
	if err != nil {
		return nil, err
	}
	f := &SeagatePorts{}
	for off := 0; off+8 <= len(d); off += 8 {
		f.Ports = append(f.Ports, SeagatePort{
			PortIdentifier: int32(d.u32(off)),
			PortLocked:     d.byteAt(off + 4),
		})
	}
	return f, nil
}
