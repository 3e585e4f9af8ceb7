// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Implements TCG Storage Architecture Core Specification TCG Specification Version 2.01

package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core/feature"
	"github.com/open-source-firmware/go-tcg-storage/pkg/drive"
)

type DriveIntf interface {
	IFRecv(proto drive.SecurityProtocol, sps uint16, data *[]byte) error
	IFSend(proto drive.SecurityProtocol, sps uint16, data []byte) error
}

type ComID int
type ComIDRequest [4]byte

const (
	ComIDInvalid     ComID = -1
	ComIDDiscoveryL0 ComID = 1
)

var (
	ComIDRequestVerifyComIDValid ComIDRequest = [4]byte{0x00, 0x00, 0x00, 0x01}
	ComIDRequestStackReset       ComIDRequest = [4]byte{0x00, 0x00, 0x00, 0x02}

	ErrNotSupported = errors.New("device does not support TCG Storage Core")
)

// GetComID requests a dynamically allocated (extended) ComID from the
// TPer's ComID management protocol.
func GetComID(d DriveIntf) (ComID, error) {
	var comID [512]byte
	comIDs := comID[:]
	if err := d.IFRecv(drive.SecurityProtocolTCGTPer, 0, &comIDs); err != nil {
		return ComIDInvalid, err
	}

	c := binary.BigEndian.Uint16(comID[0:2])
	ce := binary.BigEndian.Uint16(comID[2:4])
	return ComID(uint32(c) + uint32(ce)<<16), nil
}

// comIDRequest round-trips one request on the ComID management protocol
// and returns the response payload.
func comIDRequest(d DriveIntf, comID ComID, req ComIDRequest) ([]byte, error) {
	var buf [512]byte
	binary.BigEndian.PutUint16(buf[0:2], uint16(comID&0xffff))
	binary.BigEndian.PutUint16(buf[2:4], uint16((comID&0xffff0000)>>16))
	copy(buf[4:8], req[:])

	if err := d.IFSend(drive.SecurityProtocolTCGTPer, uint16(comID&0xffff), buf[:]); err != nil {
		return nil, err
	}

	buf = [512]byte{}
	bufs := buf[:]
	if err := d.IFRecv(drive.SecurityProtocolTCGTPer, uint16(comID&0xffff), &bufs); err != nil {
		return nil, err
	}

	// TODO: Verify the request code in response?
	size := binary.BigEndian.Uint16(buf[10:12])
	return buf[12 : 12+size], nil
}

// HandleComIDRequest is the exported form of comIDRequest for callers
// that need raw access to the management protocol.
func HandleComIDRequest(d DriveIntf, comID ComID, req ComIDRequest) ([]byte, error) {
	return comIDRequest(d, comID, req)
}

// IsComIDValid checks a ComID's state with the TPer: associated or
// issued counts as usable.
func IsComIDValid(d DriveIntf, comID ComID) (bool, error) {
	res, err := comIDRequest(d, comID, ComIDRequestVerifyComIDValid)
	if err != nil {
		return false, err
	}
	state := binary.BigEndian.Uint32(res[0:4])
	return state == 2 || state == 3, nil
}

// StackReset resets the synchronous protocol stack for a ComID.
func StackReset(d DriveIntf, comID ComID) error {
	res, err := comIDRequest(d, comID, ComIDRequestStackReset)
	if err != nil {
		return err
	}
	if len(res) < 4 {
		// TODO: Implement stack reset pending re-poll
		return fmt.Errorf("stack reset is probably Pending, which is not supported")
	}
	if binary.BigEndian.Uint32(res[0:4]) != 0 {
		return fmt.Errorf("stack reset reported failure")
	}
	return nil
}

// featureParsers dispatches each discovered feature code to its decoder,
// storing the result on the Level0Discovery. Codes outside this map are
// collected, not rejected: new SSCs appear faster than libraries update.
var featureParsers = map[feature.FeatureCode]func(d0 *Level0Discovery, rdr io.Reader) error{
	feature.CodeTPer: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.TPer, err = feature.ReadTPerFeature(rdr)
		return
	},
	feature.CodeLocking: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.Locking, err = feature.ReadLockingFeature(rdr)
		return
	},
	feature.CodeGeometry: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.Geometry, err = feature.ReadGeometryFeature(rdr)
		return
	},
	feature.CodeSecureMsg: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.SecureMsg, err = feature.ReadSecureMsgFeature(rdr)
		return
	},
	feature.CodeEnterprise: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.Enterprise, err = feature.ReadEnterpriseFeature(rdr)
		return
	},
	feature.CodeOpalV1: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.OpalV1, err = feature.ReadOpalV1Feature(rdr)
		return
	},
	feature.CodeSingleUser: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.SingleUser, err = feature.ReadSingleUserFeature(rdr)
		return
	},
	feature.CodeDataStore: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.DataStore, err = feature.ReadDataStoreFeature(rdr)
		return
	},
	feature.CodeOpalV2: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.OpalV2, err = feature.ReadOpalV2Feature(rdr)
		return
	},
	feature.CodeOpalite: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.Opalite, err = feature.ReadOpaliteFeature(rdr)
		return
	},
	feature.CodePyriteV1: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.PyriteV1, err = feature.ReadPyriteV1Feature(rdr)
		return
	},
	feature.CodePyriteV2: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.PyriteV2, err = feature.ReadPyriteV2Feature(rdr)
		return
	},
	feature.CodeRubyV1: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.RubyV1, err = feature.ReadRubyV1Feature(rdr)
		return
	},
	feature.CodeLockingLBA: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.LockingLBA, err = feature.ReadLockingLBAFeature(rdr)
		return
	},
	feature.CodeBlockSID: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.BlockSID, err = feature.ReadBlockSIDFeature(rdr)
		return
	},
	feature.CodeNamespaceLocking: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.NamespaceLocking, err = feature.ReadNamespaceLockingFeature(rdr)
		return
	},
	feature.CodeDataRemoval: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.DataRemoval, err = feature.ReadDataRemovalFeature(rdr)
		return
	},
	feature.CodeNamespaceGeometry: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.NamespaceGeometry, err = feature.ReadNamespaceGeometryFeature(rdr)
		return
	},
	feature.CodeShadowMBRForMultipleNamespaces: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.ShadowMBRForMultipleNamespaces, err = feature.ReadShadowMBRForMultipleNamespacesFeature(rdr)
		return
	},
	feature.CodeSeagatePorts: func(d0 *Level0Discovery, rdr io.Reader) (err error) {
		d0.SeagatePorts, err = feature.ReadSeagatePorts(rdr)
		return
	},
}

// Discovery0 performs a Level 0 SSC discovery: Security Protocol In on
// protocol 0x01, ComID 0x0001, yielding a 48-byte header followed by
// feature descriptors until the declared payload length runs out.
func Discovery0(d DriveIntf) (*Level0Discovery, error) {
	raw := make([]byte, 2048)
	if err := d.IFRecv(drive.SecurityProtocolTCGManagement, uint16(ComIDDiscoveryL0), &raw); err != nil {
		if err == drive.ErrNotSupported {
			return nil, ErrNotSupported
		}
		return nil, err
	}

	buf := bytes.NewBuffer(raw)
	hdr := struct {
		Size   uint32
		Major  uint16
		Minor  uint16
		_      [8]byte
		Vendor [32]byte
	}{}
	if err := binary.Read(buf, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to parse Level 0 discovery: %v", err)
	}
	if hdr.Size == 0 {
		return nil, ErrNotSupported
	}

	d0 := &Level0Discovery{
		MajorVersion: int(hdr.Major),
		MinorVersion: int(hdr.Minor),
	}
	copy(d0.Vendor[:], hdr.Vendor[:])

	// The length field counts from just past itself to the end of the
	// last descriptor.
	remain := int(hdr.Size) - binary.Size(hdr) + 4
	for remain > 0 {
		fhdr := struct {
			Code    feature.FeatureCode
			Version uint8
			Size    uint8
		}{}
		if err := binary.Read(buf, binary.BigEndian, &fhdr); err != nil {
			return nil, fmt.Errorf("failed to parse feature header: %v", err)
		}
		body := io.LimitReader(buf, int64(fhdr.Size))
		if parse, ok := featureParsers[fhdr.Code]; ok {
			if err := parse(d0, body); err != nil {
				return nil, err
			}
		} else {
			d0.UnknownFeatures = append(d0.UnknownFeatures, uint16(fhdr.Code))
		}
		// Skip whatever the decoder left of the descriptor.
		io.Copy(io.Discard, body)
		remain -= binary.Size(fhdr) + int(fhdr.Size)
	}
	return d0, nil
}

// dialects lists the SSC features present in a discovery, most preferred
// first: Opal v2, Opal v1, Enterprise, then the remaining SSCs (Pyrite,
// Ruby, Opalite).
func (d0 *Level0Discovery) dialects() []feature.SSC {
	var out []feature.SSC
	if d0.OpalV2 != nil {
		out = append(out, d0.OpalV2)
	}
	if d0.OpalV1 != nil {
		out = append(out, d0.OpalV1)
	}
	if d0.Enterprise != nil {
		out = append(out, d0.Enterprise)
	}
	if d0.PyriteV1 != nil {
		out = append(out, d0.PyriteV1)
	}
	if d0.PyriteV2 != nil {
		out = append(out, d0.PyriteV2)
	}
	if d0.RubyV1 != nil {
		out = append(out, d0.RubyV1)
	}
	if d0.Opalite != nil {
		out = append(out, d0.Opalite)
	}
	return out
}

// FindComID picks a working ComID for the given device: an auto-allocated
// dynamic ComID when the TPer hands out a valid one, else the base ComID
// advertised by the preferred SSC dialect. It also reports the
// ProtocolLevel the rest of the session should use, based on the presence
// of the Enterprise feature.
func FindComID(d DriveIntf, d0 *Level0Discovery) (ComID, ProtocolLevel, error) {
	proto := ProtocolLevelCore
	if d0.Enterprise != nil {
		proto = ProtocolLevelEnterprise
	}

	comID, err := GetComID(d)
	if err == nil {
		if valid, verr := IsComIDValid(d, comID); verr == nil && valid {
			return comID, proto, nil
		}
	}

	for _, ssc := range d0.dialects() {
		base, _ := ssc.ComIDRange()
		return ComID(base), proto, nil
	}
	return ComIDInvalid, ProtocolLevelUnknown, fmt.Errorf("no supported SSC feature found to select a ComID from")
}
