// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Admin SP tables: C_PIN credentials, TPerInfo, SP life cycle, and the
// TPer-wide factory revert.

package table

import (
	"fmt"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/method"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/stream"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
)

var (
	Admin_C_PIN_ColumnPIN         uint = 3
	Admin_SP_ColumnLifeCycleState uint = 6
)

// Admin_C_PIN_MSID_GetPIN reads the factory default credential. The MSID
// row is readable by Anybody, which is what makes initial take-ownership
// possible.
func Admin_C_PIN_MSID_GetPIN(s *core.Session) ([]byte, error) {
	val, err := GetCell(s, uid.Admin_C_PIN_MSIDRow, Admin_C_PIN_ColumnPIN, "PIN")
	if err != nil {
		return nil, err
	}
	pin, ok := val.([]byte)
	if !ok {
		return nil, fmt.Errorf("malformed PIN column")
	}
	return pin, nil
}

// Admin_C_Pin_SID_SetPIN replaces the SID credential. The value must
// already be hashed per the locking convention in use.
func Admin_C_Pin_SID_SetPIN(s *core.Session, password []byte) error {
	if len(password) < 16 {
		return fmt.Errorf("invalid length of password hash")
	}
	sc := newSetCall(s, uid.Admin_C_PIN_SIDRow)
	sc.NamedBytes(column{uint(stream.OpalPIN), "PIN"}, password)
	return sc.Commit()
}

type Admin_TPerInfoRow struct {
	UID                     uid.RowUID
	Bytes                   *uint64
	GUDID                   *[12]byte
	Generation              *uint32
	FirmwareVersion         *uint32
	ProtocolVersion         *uint32
	SpaceForIssuance        *uint64
	SSC                     []string
	ProgrammaticResetEnable *bool
}

// Admin_TPerInfo reads the TPerInfo row, keyed by its UID the way the
// table is enumerated.
func Admin_TPerInfo(s *core.Session) (map[uid.RowUID]Admin_TPerInfoRow, error) {
	cols, err := GetFullRow(s, uid.Admin_TPerInfoObj)
	if err != nil {
		return nil, err
	}

	row := Admin_TPerInfoRow{}
	r := newRowReader(cols)
	r.UID(&row.UID, column{0, "UID"})
	r.OptU64(&row.Bytes, column{1, "Bytes"})
	r.OptU32(&row.Generation, column{3, "Generation"})
	r.OptU32(&row.FirmwareVersion, column{4, "FirmwareVersion"})
	r.OptU32(&row.ProtocolVersion, column{5, "ProtocolVersion"})
	r.OptU64(&row.SpaceForIssuance, column{6, "SpaceForIssuance"})
	r.OptBool(&row.ProgrammaticResetEnable, column{8, "ProgrammaticResetEnable"})
	if err := r.Err(); err != nil {
		return nil, err
	}

	// The GUDID and SSC list columns have shapes the generic reader does
	// not cover.
	if v, ok := cols["2"]; ok {
		b, ok := v.([]byte)
		if !ok {
			return nil, method.ErrMalformedMethodResponse
		}
		g := [12]byte{}
		copy(g[:], b)
		row.GUDID = &g
	}
	if v, ok := cols["7"]; ok {
		l, ok := v.(stream.List)
		if !ok {
			l = stream.List{v}
		}
		for _, e := range l {
			b, ok := e.([]byte)
			if !ok {
				return nil, method.ErrMalformedMethodResponse
			}
			row.SSC = append(row.SSC, string(b))
		}
	}

	return map[uid.RowUID]Admin_TPerInfoRow{row.UID: row}, nil
}

type LifeCycleState int

const (
	Issued LifeCycleState = 0 + iota
	IssuedDisabled
	IssuedFrozen
	IssuedDisabledFrozen
	IssuedFailed
	_
	_
	_
	ManufacturedInactive
	Manufactured
	ManufacturedDisabled
	ManufacturedFrozen
	ManufacturedDisabledFrozen
	ManufacturedFailed
	_
	_
)

var lifeCycleNames = map[LifeCycleState]string{
	Issued:                     "Issued",
	IssuedDisabled:             "Issued-Disabled",
	IssuedFrozen:               "Issued-Frozen",
	IssuedDisabledFrozen:       "Issued-DisabledFrozen",
	IssuedFailed:               "Issued-Failed",
	ManufacturedInactive:       "Manufactured-Inactive",
	Manufactured:               "Manufactured",
	ManufacturedDisabled:       "Manufactured-Disabled",
	ManufacturedFrozen:         "Manufactured-Frozen",
	ManufacturedDisabledFrozen: "Manufactured-DisabledFrozen",
	ManufacturedFailed:         "Manufactured-Failed",
}

func (l LifeCycleState) String() string {
	if n, ok := lifeCycleNames[l]; ok {
		return n
	}
	if l >= 0 && l <= 15 {
		return "Unassigned"
	}
	return "Invalid LifeCycleState"
}

// Admin_SP_GetLifeCycleState reads the named SP's life cycle column from
// its row in the Admin SP's SP table.
func Admin_SP_GetLifeCycleState(s *core.Session, spid uid.SPID) (LifeCycleState, error) {
	val, err := GetCell(s, uid.RowUID(spid), Admin_SP_ColumnLifeCycleState, "LifeCycleState")
	if err != nil {
		return -1, err
	}
	v, ok := val.(uint)
	if !ok {
		return -1, fmt.Errorf("malformed LifeCycleState column")
	}
	return LifeCycleState(v), nil
}

// RevertTPer issues AdminSP.Revert to factory-reset the entire TPer,
// destroying every SP other than AdminSP itself and returning the device
// to Manufactured-Inactive. The session must already be authenticated as
// SID or PSID. On success the device destroys the session implicitly, so
// auto-close is suppressed rather than sending an EndOfSession into the
// void.
func RevertTPer(s *core.Session) error {
	mc := method.NewMethodCall(uid.InvokingID(uid.AdminSP), uid.MethodIDRevert, s.MethodFlags)
	if _, err := s.ExecuteMethod(mc); err != nil {
		return err
	}
	s.DontAutoClose()
	return nil
}
