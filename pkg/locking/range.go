// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Functions and structures for dealing with lock ranges

package locking

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/table"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
)

type LockRange int

var (
	LockRangeUnspecified LockRange = -1
)

// Range is one locking range (an Enterprise band) and the state the
// authenticated user may see of it.
type Range struct {
	l        *LockingSP
	isGlobal bool

	UID  uid.RowUID
	Name *string
	// All known authoritiers that have access to lock/unlock on this range
	// Only populated with other users if authenticated as an Admin
	// For enterprise this will always be just one user, the band-dedicated BandMasterN for RangeN
	Users map[string]uid.AuthorityObjectUID

	Start LockRange
	End   LockRange

	ReadLockEnabled  bool
	WriteLockEnabled bool

	ReadLocked  bool
	WriteLocked bool

	//LockOnReset SomeType TODO: Create this type from spec
}

// fillRanges enumerates the locking table and decodes each visible range,
// ordered by row UID so the global range lands first.
func fillRanges(s *core.Session, l *LockingSP) error {
	lockList, err := table.Locking_Enumerate(s)
	if err != nil {
		return fmt.Errorf("enumerate ranges failed: %v", err)
	}
	sort.Slice(lockList, func(i, j int) bool {
		return bytes.Compare(lockList[i][:], lockList[j][:]) < 0
	})

	for _, luid := range lockList {
		lr, err := table.Locking_Get(s, luid)
		if err != nil {
			// Not every enumerated row is readable by this authority.
			continue
		}
		l.Ranges = append(l.Ranges, newRange(l, lr))
	}
	return nil
}

func newRange(l *LockingSP, lr *table.LockingRow) *Range {
	r := &Range{l: l, UID: lr.UID}
	if bytes.Equal(r.UID[:], uid.GlobalRangeRowUID[:]) {
		l.GlobalRange = r
		r.isGlobal = true
	}
	if lr.Name != nil && len(*lr.Name) > 0 {
		r.Name = lr.Name
	}
	if lr.RangeStart != nil && lr.RangeLength != nil {
		r.Start = LockRange(*lr.RangeStart)
		r.End = r.Start + LockRange(*lr.RangeLength)
	}
	if lr.ReadLockEnabled != nil && lr.WriteLockEnabled != nil {
		r.ReadLockEnabled = *lr.ReadLockEnabled
		r.WriteLockEnabled = *lr.WriteLockEnabled
	}
	if lr.ReadLocked != nil && lr.WriteLocked != nil {
		r.ReadLocked = *lr.ReadLocked
		r.WriteLocked = *lr.WriteLocked
	}
	// TODO: Enumerate users with permissions on this range
	// TODO: Fill the LockOnReset property
	return r
}

// update writes one partial row for this range and mirrors the change
// locally once the TPer accepts it.
func (r *Range) update(mutate func(row *table.LockingRow), apply func()) error {
	row := &table.LockingRow{}
	copy(row.UID[:], r.UID[:])
	mutate(row)
	if err := table.Locking_Set(r.l.Session, row); err != nil {
		return err
	}
	apply()
	return nil
}

func (r *Range) setReadLocked(v bool) error {
	return r.update(
		func(row *table.LockingRow) { row.ReadLocked = &v },
		func() { r.ReadLocked = v })
}

func (r *Range) setWriteLocked(v bool) error {
	return r.update(
		func(row *table.LockingRow) { row.WriteLocked = &v },
		func() { r.WriteLocked = v })
}

func (r *Range) UnlockRead() error  { return r.setReadLocked(false) }
func (r *Range) LockRead() error    { return r.setReadLocked(true) }
func (r *Range) UnlockWrite() error { return r.setWriteLocked(false) }
func (r *Range) LockWrite() error   { return r.setWriteLocked(true) }

func (r *Range) SetReadLockEnabled(v bool) error {
	return r.update(
		func(row *table.LockingRow) { row.ReadLockEnabled = &v },
		func() { r.ReadLockEnabled = v })
}

func (r *Range) SetWriteLockEnabled(v bool) error {
	return r.update(
		func(row *table.LockingRow) { row.WriteLockEnabled = &v },
		func() { r.WriteLockEnabled = v })
}

// SetRange reconfigures the range's extent. The global range always spans
// the whole medium and cannot be resized.
func (r *Range) SetRange(from LockRange, to LockRange) error {
	if r.isGlobal {
		return fmt.Errorf("cannot modify the global range")
	}
	start := uint64(from)
	length := uint64(to - from)
	return r.update(
		func(row *table.LockingRow) {
			row.RangeStart = &start
			row.RangeLength = &length
		},
		func() {
			r.Start = from
			r.End = to
		})
}

// Erase issues the Enterprise SSC band erase method against this range's
// row, cryptographically erasing the band. Opal/Opalite/Pyrite have no
// equivalent per-range erase method; use drive.Sanitize for those SSCs.
func (r *Range) Erase() error {
	if r.l.Session.ProtocolLevel != core.ProtocolLevelEnterprise {
		return fmt.Errorf("band erase is only defined for the Enterprise SSC")
	}
	if r.isGlobal {
		return fmt.Errorf("cannot erase the global range")
	}
	return table.EraseBand(r.l.Session, uid.InvokingID(r.UID))
}
