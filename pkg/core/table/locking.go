// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Locking SP tables: locking ranges, MBR control, the shadow MBR table,
// and the Enterprise band operations.

package table

import (
	"errors"
	"fmt"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/method"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/stream"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
)

var ErrMBRNotSupproted = errors.New("drive does not support MBR")

type (
	EncryptSupport     uint
	KeysAvailableConds uint
)

type ResetType uint

const (
	ResetPowerOff ResetType = 0
	ResetHardware ResetType = 1
	ResetHotPlug  ResetType = 2
	// The parameter number for KeepGlobalRangeKey SHALL be 0x060000
	// TCG Storage Security Subsystem Class: Opal | Version 2.02 | Revision 1.0 | Page 86
	KeepGlobalRangeKey uint = 0x060000
)

type ProtectMechanism uint

const (
	VendorUnique               ProtectMechanism = 0
	AuthenticationDataRequired ProtectMechanism = 1
)

const ProtectMechanismColumn uint = 3

// Locking table / LockingInfo / MBRControl column assignments.
var (
	colName             = column{1, "Name"}
	colRangeStart       = column{3, "RangeStart"}
	colRangeLength      = column{4, "RangeLength"}
	colReadLockEnabled  = column{5, "ReadLockEnabled"}
	colWriteLockEnabled = column{6, "WriteLockEnabled"}
	colReadLocked       = column{7, "ReadLocked"}
	colWriteLocked      = column{8, "WriteLocked"}
	colLockOnReset      = column{9, "LockOnReset"}
	colActiveKey        = column{10, "ActiveKey"}

	colMBREnable      = column{1, "Enable"}
	colMBRDone        = column{2, "Done"}
	colMBRDoneOnReset = column{3, "MBRDoneOnReset"}
)

func LockingSPActivate(s *core.Session) error {
	mc := method.NewMethodCall(uid.InvokingID(uid.LockingSP), uid.MethodIDActivate, s.MethodFlags)
	_, err := s.ExecuteMethod(mc)
	return err
}

type SecretProtect struct {
	UID              uid.UID
	Table            uid.RowUID
	Column           uint
	ProtectMechanism []ProtectMechanism
}

func LockingSecretProtect(s *core.Session) ([]SecretProtect, error) {
	uids, err := Enumerate(s, uid.Locking_SecretProtect)
	if err != nil {
		return nil, err
	}
	result := make([]SecretProtect, len(uids))
	for i, rowUID := range uids {
		cols, err := GetFullRow(s, rowUID)
		if err != nil {
			return nil, err
		}
		r := newRowReader(cols)
		var tableRef uid.RowUID
		var col *uint32
		r.UID((*uid.RowUID)(&result[i].UID), column{0, "UID"})
		r.UID(&tableRef, column{1, "Table"})
		r.OptU32(&col, column{2, "Column"})
		r.UIntList(column{3, "ProtectMechanisms"}, func(v uint) {
			result[i].ProtectMechanism = append(result[i].ProtectMechanism, ProtectMechanism(v))
		})
		if err := r.Err(); err != nil {
			return nil, err
		}
		result[i].Table = tableRef
		if col != nil {
			result[i].Column = uint(*col)
		}
	}
	return result, nil
}

type LockingInfoRow struct {
	UID                  uid.RowUID
	Name                 *string
	Version              *uint32
	EncryptSupport       *EncryptSupport
	MaxRanges            *uint32
	MaxReEncryptions     *uint32
	KeysAvailableCfg     *KeysAvailableConds
	AlignmentRequired    *bool
	LogicalBlockSize     *uint32
	AlignmentGranularity *uint64
	LowestAlignedLBA     *uint64
}

// LockingInfo reads the LockingInfo row describing the locking table's
// range geometry constraints. Enterprise keeps this row at its own UID.
func LockingInfo(s *core.Session) (*LockingInfoRow, error) {
	rowUID := uid.LockingInfoObj
	if s.ProtocolLevel == core.ProtocolLevelEnterprise {
		rowUID = uid.EnterpriseLockingInfoObj
	}
	cols, err := GetFullRow(s, rowUID)
	if err != nil {
		return nil, err
	}

	row := LockingInfoRow{}
	var encSupport, keysAvail *uint32
	r := newRowReader(cols)
	r.UID(&row.UID, column{0, "UID"})
	r.OptString(&row.Name, colName)
	r.OptU32(&row.Version, column{2, "Version"})
	r.OptU32(&encSupport, column{3, "EncryptSupport"})
	r.OptU32(&row.MaxRanges, column{4, "MaxRanges"})
	r.OptU32(&row.MaxReEncryptions, column{5, "MaxReEncryptions"})
	r.OptU32(&keysAvail, column{6, "KeysAvailableCfg"})
	r.OptBool(&row.AlignmentRequired, column{7, "AlignmentRequired"})
	r.OptU32(&row.LogicalBlockSize, column{8, "LogicalBlockSize"})
	r.OptU64(&row.AlignmentGranularity, column{9, "AlignmentGranularity"})
	r.OptU64(&row.LowestAlignedLBA, column{10, "LowestAlignedLBA"})
	if err := r.Err(); err != nil {
		return nil, err
	}
	if encSupport != nil {
		v := EncryptSupport(*encSupport)
		row.EncryptSupport = &v
	}
	if keysAvail != nil {
		v := KeysAvailableConds(*keysAvail)
		row.KeysAvailableCfg = &v
	}
	return &row, nil
}

func Locking_Enumerate(s *core.Session) ([]uid.RowUID, error) {
	return Enumerate(s, uid.Locking_LockingTable)
}

type LockingRow struct {
	UID              uid.RowUID
	Name             *string
	RangeStart       *uint64
	RangeLength      *uint64
	ReadLockEnabled  *bool
	WriteLockEnabled *bool
	ReadLocked       *bool
	WriteLocked      *bool
	LockOnReset      []ResetType
	ActiveKey        *uid.RowUID
	// NOTE: There are more fields in the standards that have been omited
}

func Locking_Get(s *core.Session, row uid.RowUID) (*LockingRow, error) {
	cols, err := GetFullRow(s, row)
	if err != nil {
		return nil, err
	}
	lr := LockingRow{}
	r := newRowReader(cols)
	r.UID(&lr.UID, column{0, "UID"})
	r.OptString(&lr.Name, colName)
	r.OptU64(&lr.RangeStart, colRangeStart)
	r.OptU64(&lr.RangeLength, colRangeLength)
	r.OptBool(&lr.ReadLockEnabled, colReadLockEnabled)
	r.OptBool(&lr.WriteLockEnabled, colWriteLockEnabled)
	r.OptBool(&lr.ReadLocked, colReadLocked)
	r.OptBool(&lr.WriteLocked, colWriteLocked)
	r.UIntList(colLockOnReset, func(v uint) {
		lr.LockOnReset = append(lr.LockOnReset, ResetType(v))
	})
	r.OptUIDRef(&lr.ActiveKey, colActiveKey)
	if err := r.Err(); err != nil {
		return nil, err
	}
	return &lr, nil
}

// Locking_Set writes the non-nil Name, range and lock columns of row back
// to the locking table. LockOnReset and ActiveKey are not written.
func Locking_Set(s *core.Session, row *LockingRow) error {
	sc := newSetCall(s, row.UID)
	if row.Name != nil {
		sc.NamedBytes(colName, []byte(*row.Name))
	}
	if row.RangeStart != nil {
		sc.NamedUInt(colRangeStart, uint(*row.RangeStart))
	}
	if row.RangeLength != nil {
		sc.NamedUInt(colRangeLength, uint(*row.RangeLength))
	}
	if row.ReadLockEnabled != nil {
		sc.NamedBool(colReadLockEnabled, *row.ReadLockEnabled)
	}
	if row.WriteLockEnabled != nil {
		sc.NamedBool(colWriteLockEnabled, *row.WriteLockEnabled)
	}
	if row.ReadLocked != nil {
		sc.NamedBool(colReadLocked, *row.ReadLocked)
	}
	if row.WriteLocked != nil {
		sc.NamedBool(colWriteLocked, *row.WriteLocked)
	}
	// TODO: LockOnReset and ActiveKey writes
	return sc.Commit()
}

// ConfigureLockingRange disables both lock-enables on the global range,
// the take-ownership default before ranges are configured for real.
func ConfigureLockingRange(s *core.Session) error {
	sc := newSetCall(s, uid.LockingGlobalRange)
	sc.NamedBool(colReadLockEnabled, false)
	sc.NamedBool(colWriteLockEnabled, false)
	return sc.Commit()
}

// Admin_C_Pin_Admin1_SetPIN sets the Admin1 PIN on the Locking SP.
func Admin_C_Pin_Admin1_SetPIN(s *core.Session, password []byte) error {
	if len(password) < 16 {
		return fmt.Errorf("invalid length of password hash")
	}
	sc := newSetCall(s, uid.Admin_C_PIN_Admin1Row)
	sc.NamedBytes(column{uint(stream.OpalPIN), "PIN"}, password)
	return sc.Commit()
}

type MBRControl struct {
	Enable         *bool
	Done           *bool
	MBRDoneOnReset *[]ResetType
}

func MBRControl_Set(s *core.Session, row *MBRControl) error {
	sc := newSetCall(s, uid.MBRControlObj)
	if row.Enable != nil {
		sc.NamedBool(colMBREnable, *row.Enable)
	}
	if row.Done != nil {
		sc.NamedBool(colMBRDone, *row.Done)
	}
	if row.MBRDoneOnReset != nil {
		resets := make([]uint, 0, len(*row.MBRDoneOnReset))
		for _, x := range *row.MBRDoneOnReset {
			resets = append(resets, uint(x))
		}
		sc.NamedUIntList(colMBRDoneOnReset, resets)
	}
	return sc.Commit()
}

type MBRTableInfo struct {
	// Size in bytes
	Size uint32

	// If set, writes need to be a multiple of this value
	MandatoryWriteGranularity uint32

	// If set, reads are recommended to be aligned to this value
	RecommendedAccessGranularity uint32
}

// SuggestBufferSize returns a chunk size for MBR reads/writes that fits
// the negotiated token limits and honours both granularity constraints.
func (m *MBRTableInfo) SuggestBufferSize(s *core.Session) uint {
	ms := s.ControlSession.HostProperties.MaxIndTokenSize
	if s.ControlSession.HostProperties.MaxAggTokenSize > ms {
		ms = s.ControlSession.HostProperties.MaxAggTokenSize
	}
	// Leave headroom for the list and status framing around the data atom.
	ms -= 16
	ms = ms & ^uint(m.MandatoryWriteGranularity-1)
	ms = ms & ^uint(m.RecommendedAccessGranularity-1)
	return ms
}

// MBR_TableInfo reads the shadow MBR table's descriptor row out of the
// Table table.
func MBR_TableInfo(s *core.Session) (*MBRTableInfo, error) {
	cols, err := GetFullRow(s, uid.Base_TableRowForTable(uid.Locking_MBRTable))
	if err != nil {
		if err == ErrEmptyResult {
			return nil, ErrMBRNotSupproted
		}
		return nil, err
	}

	mi := &MBRTableInfo{
		MandatoryWriteGranularity:    1,
		RecommendedAccessGranularity: 1,
	}
	var size, mwg, rag *uint32
	r := newRowReader(cols)
	// Enterprise has no MBR, so only the uinteger column names matter here.
	r.OptU32(&size, column{7, "Rows"})
	r.OptU32(&mwg, column{13, "MandatoryWriteGranularity"})
	r.OptU32(&rag, column{14, "RecommendedAccessGranularity"})
	if err := r.Err(); err != nil {
		return nil, err
	}
	if size == nil || *size == 0 {
		return nil, errors.New("device did not specify MBR size")
	}
	mi.Size = *size
	if mwg != nil {
		mi.MandatoryWriteGranularity = *mwg
	}
	if rag != nil {
		mi.RecommendedAccessGranularity = *rag
	}
	return mi, nil
}

// MBR_Read reads len(p) bytes of the shadow MBR starting at off.
func MBR_Read(s *core.Session, p []byte, off uint32) (int, error) {
	mc := method.NewMethodCall(uid.InvokingID(uid.Locking_MBRTable), uid.OpalGet, s.MethodFlags)
	mc.StartList()
	mc.StartOptionalParameter(CellBlock_StartRow, "startRow")
	mc.UInt(uint(off))
	mc.EndOptionalParameter()
	mc.StartOptionalParameter(CellBlock_EndRow, "endRow")
	mc.UInt(uint(off) + uint(len(p)) - 1)
	mc.EndOptionalParameter()
	mc.EndList()
	res, err := s.ExecuteMethod(mc)
	if err != nil {
		return 0, err
	}
	methodResult, ok := res[0].(stream.List)
	if !ok {
		return 0, method.ErrMalformedMethodResponse
	}
	if len(methodResult) == 0 {
		return 0, ErrEmptyResult
	}
	inner, ok := methodResult[0].([]byte)
	if !ok {
		return 0, method.ErrMalformedMethodResponse
	}
	if len(inner) == 0 {
		return 0, ErrEmptyResult
	}
	return copy(p, inner), nil
}

// LoadPBAImage writes a pre-boot authentication image into the shadow MBR
// table in chunks sized to the negotiated individual-token limit.
func LoadPBAImage(s *core.Session, image []byte) error {
	// Keep headroom below MaxIndTokenSize for the where/value framing, the
	// same margin sedutil-cli leaves.
	maxSize := int(s.ControlSession.TPerProperties.MaxIndTokenSize - 128)
	for off := 0; off < len(image); off += maxSize {
		end := off + maxSize
		if end > len(image) {
			end = len(image)
		}
		mc := method.NewMethodCall(uid.InvokingID(uid.Locking_MBRTable), uid.OpalSet, s.MethodFlags)
		mc.Token(stream.StartName)
		mc.Token(stream.OpalWhere)
		mc.UInt(uint(off))
		mc.Token(stream.EndName)
		mc.Token(stream.StartName)
		mc.Token(stream.OpalValue)
		mc.Bytes(image[off:end])
		mc.Token(stream.EndName)
		if _, err := s.ExecuteMethod(mc); err != nil {
			return fmt.Errorf("MBR write at offset %d failed: %w", off, err)
		}
	}
	return nil
}

// RevertLockingSP reverts the Locking SP to factory state. With keep set,
// the global range's media key survives so the disk stays readable. The
// TPer ends the session itself on success, so auto-close is suppressed.
func RevertLockingSP(s *core.Session, keep bool) error {
	mc := method.NewMethodCall(uid.InvokeIDThisSP, uid.OpalRevertSP, s.MethodFlags)
	if keep {
		mc.Token(stream.StartName)
		mc.UInt(KeepGlobalRangeKey)
		mc.Token(stream.OpalTrue)
		mc.Token(stream.EndName)
	}
	if _, err := s.ExecuteMethod(mc); err != nil {
		return err
	}
	s.DontAutoClose()
	return nil
}

// SetBandMaster0Pin sets the Enterprise BandMaster0 credential.
func SetBandMaster0Pin(s *core.Session, pinHash []byte) error {
	if s.ProtocolLevel != core.ProtocolLevelEnterprise {
		return fmt.Errorf("invalid Protocol Level for operation")
	}
	sc := newSetCall(s, uid.Admin_C_Pin_BandMaster0)
	sc.NamedBytes(column{uint(stream.OpalPIN), "PIN"}, pinHash)
	return sc.Commit()
}

// SetEraseMasterPin sets the Enterprise EraseMaster credential.
func SetEraseMasterPin(s *core.Session, pinHash []byte) error {
	if s.ProtocolLevel != core.ProtocolLevelEnterprise {
		return fmt.Errorf("invalid Protocol Level for operation")
	}
	sc := newSetCall(s, uid.Admin_C_Pin_EraseMaster)
	sc.NamedBytes(column{uint(stream.OpalPIN), "PIN"}, pinHash)
	return sc.Commit()
}

// EraseBand cryptographically erases one Enterprise band.
func EraseBand(s *core.Session, band uid.InvokingID) error {
	if s.ProtocolLevel != core.ProtocolLevelEnterprise {
		return fmt.Errorf("invalid Protocol Level for operation")
	}
	mc := method.NewMethodCall(band, uid.MethodIDEraseEnterprise, s.MethodFlags)
	_, err := s.ExecuteMethod(mc)
	return err
}

// EnableGlobalRangeEnterprise arms and locks the Enterprise global range.
func EnableGlobalRangeEnterprise(s *core.Session) error {
	sc := newSetCall(s, uid.GlobalRangeRowUID)
	sc.NamedBool(colReadLockEnabled, true)
	sc.NamedBool(colWriteLockEnabled, true)
	sc.NamedBool(colReadLocked, true)
	sc.NamedBool(colWriteLocked, true)
	return sc.Commit()
}

// UnlockGlobalRangeEnterprise clears both lock states on an Enterprise
// band.
func UnlockGlobalRangeEnterprise(s *core.Session, band uid.RowUID) error {
	sc := newSetCall(s, band)
	sc.NamedBool(colReadLocked, false)
	sc.NamedBool(colWriteLocked, false)
	return sc.Commit()
}
