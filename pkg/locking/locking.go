// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// High-level locking API for TCG Storage devices

package locking

import (
	"fmt"
	"strings"
	"time"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/table"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
)

// authorityByName maps the authorities this module has well-known UIDs for
// (see pkg/core/uid) to the name an operator would use to select them on a
// command line.
var authorityByName = map[string]uid.AuthorityObjectUID{
	"anybody":     uid.AuthorityAnybody,
	"sid":         uid.AuthoritySID,
	"psid":        uid.AuthorityPSID,
	"admin1":      uid.LockingAuthorityAdmin1,
	"bandmaster0": uid.LockingAuthorityBandMaster0,
}

var (
	LifeCycleStateManufacturedInactive table.LifeCycleState = 8
	LifeCycleStateManufactured         table.LifeCycleState = 9
)

// LockingSP is an authenticated session against the Locking SP plus the
// range state visible to that authority.
type LockingSP struct {
	Session *core.Session
	// All authorities that have been discovered on the SP.
	// This will likely be only the authenticated UID unless authorized as an Admin
	Authorities map[string]uid.AuthorityObjectUID
	// The full range of Ranges (heh!) that the current session has access to see and possibly modify
	GlobalRange *Range
	Ranges      []*Range // Ranges[0] == GlobalRange

	// These are always false on SSC Enterprise
	MBREnabled     bool
	MBRDone        bool
	MBRDoneOnReset []table.ResetType
}

func (l *LockingSP) Close() error {
	return l.Session.Close()
}

func (l *LockingSP) SetMBRDone(v bool) error {
	return table.MBRControl_Set(l.Session, &table.MBRControl{Done: &v})
}

type AdminSPAuthenticator interface {
	AuthenticateAdminSP(s *core.Session) error
}
type LockingSPAuthenticator interface {
	AuthenticateLockingSP(s *core.Session, lmeta *LockingSPMeta) error
}

// authority pairs an authority UID with its proof. Empty fields fall back
// per SP: the SID (Admin SP) or Admin1/BandMaster0 (Locking SP) authority,
// and the MSID as proof.
type authority struct {
	auth  []byte
	proof []byte
}

var DefaultAuthorityWithMSID = &authority{}

func DefaultAuthority(proof []byte) *authority {
	return &authority{proof: proof}
}

func DefaultAdminAuthority(proof []byte) *authority {
	return &authority{proof: proof}
}

// AuthorityFromName resolves one of the authorities named in
// authorityByName (case-insensitive) to an authenticator using proof.
// Unknown names return ok=false rather than guessing at an authority this
// module has no UID for.
func AuthorityFromName(user string, proof []byte) (*authority, bool) {
	a, ok := authorityByName[strings.ToLower(user)]
	if !ok {
		return nil, false
	}
	return &authority{auth: a[:], proof: proof}, true
}

func (a *authority) resolve(fallback uid.AuthorityObjectUID) uid.AuthorityObjectUID {
	out := fallback
	if len(a.auth) > 0 {
		copy(out[:], a.auth)
	}
	return out
}

func (a *authority) AuthenticateAdminSP(s *core.Session) error {
	auth := a.resolve(uid.AuthoritySID)
	proof := a.proof
	if len(proof) == 0 {
		// TODO: Verify with C_PIN behavior and Block SID
		msid, err := table.Admin_C_PIN_MSID_GetPIN(s)
		if err != nil {
			return err
		}
		proof = msid
	}
	return table.ThisSP_Authenticate(s, auth, proof)
}

func (a *authority) AuthenticateLockingSP(s *core.Session, lmeta *LockingSPMeta) error {
	def := uid.LockingAuthorityAdmin1
	if s.ProtocolLevel == core.ProtocolLevelEnterprise {
		def = uid.LockingAuthorityBandMaster0
	}
	auth := a.resolve(def)
	proof := a.proof
	if len(proof) == 0 {
		if len(lmeta.MSID) == 0 {
			return fmt.Errorf("authentication via MSID disabled")
		}
		proof = lmeta.MSID
	}
	return table.ThisSP_Authenticate(s, auth, proof)
}

// LockingSPMeta carries what Initialize learned about the device, enough
// for NewSession to open and authenticate the right Locking SP later.
type LockingSPMeta struct {
	SPID uid.SPID
	MSID []byte
	D0   *core.Level0Discovery
}

// NewSession opens an authenticated Locking SP session and loads the
// range state the authority is allowed to see.
func NewSession(cs *core.ControlSession, lmeta *LockingSPMeta, auth LockingSPAuthenticator, opts ...core.SessionOpt) (*LockingSP, error) {
	if lmeta.D0.Locking == nil {
		return nil, fmt.Errorf("device does not have the Locking feature")
	}
	s, err := cs.NewSession(lmeta.SPID, opts...)
	if err != nil {
		return nil, fmt.Errorf("session creation failed: %v", err)
	}
	if err := auth.AuthenticateLockingSP(s, lmeta); err != nil {
		return nil, fmt.Errorf("authentication failed: %v", err)
	}

	l := &LockingSP{Session: s}

	// TODO: Read these from the Locking SP itself instead of dragging the
	// discovery data along in lmeta.
	l.MBRDone = lmeta.D0.Locking.MBRDone
	l.MBREnabled = lmeta.D0.Locking.MBREnabled
	// TODO: Set MBRDoneOnReset to real value
	l.MBRDoneOnReset = []table.ResetType{table.ResetPowerOff}

	if err := fillRanges(s, l); err != nil {
		return nil, err
	}

	// TODO: Fill l.Authorities with known users for admin actions
	return l, nil
}

type initializeConfig struct {
	auths                    []AdminSPAuthenticator
	activate                 bool
	MaxComPacketSizeOverride uint
	ReceiveRetries           int
	ReceiveInterval          time.Duration
}

type InitializeOpt func(ic *initializeConfig)

func WithAuth(auth AdminSPAuthenticator) InitializeOpt {
	return func(ic *initializeConfig) {
		ic.auths = append(ic.auths, auth)
	}
}

func WithMaxComPacketSize(size uint) InitializeOpt {
	return func(ic *initializeConfig) {
		ic.MaxComPacketSizeOverride = size
	}
}

func WithReceiveTimeout(retries int, interval time.Duration) InitializeOpt {
	return func(ic *initializeConfig) {
		ic.ReceiveRetries = retries
		ic.ReceiveInterval = interval
	}
}

// Initialize selects a ComID, builds the control session, authenticates
// against the Admin SP with the first credential that works, and
// prepares the Locking SP (reading the MSID and, for Opal-family drives,
// checking the life cycle state). The returned control session and meta
// feed NewSession.
func Initialize(coreObj *core.Core, opts ...InitializeOpt) (*core.ControlSession, *LockingSPMeta, error) {
	ic := initializeConfig{
		MaxComPacketSizeOverride: core.DefaultMaxComPacketSize,
		ReceiveRetries:           core.DefaultReceiveRetries,
		ReceiveInterval:          core.DefaultReceiveInterval,
	}
	for _, o := range opts {
		o(&ic)
	}

	d0 := coreObj.DiskInfo.Level0Discovery
	lmeta := &LockingSPMeta{D0: d0}

	comID, proto, err := core.FindComID(coreObj.DriveIntf, d0)
	if err != nil {
		return nil, nil, err
	}
	cs, err := core.NewControlSession(coreObj.DriveIntf, d0,
		core.WithComID(comID),
		core.WithMaxComPacketSize(ic.MaxComPacketSizeOverride),
		core.WithReceiveTimeout(ic.ReceiveRetries, ic.ReceiveInterval))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create control session (comID 0x%04x): %v", comID, err)
	}

	as, err := cs.NewSession(uid.AdminSP)
	if err != nil {
		return nil, nil, fmt.Errorf("admin session creation failed: %v", err)
	}
	defer as.Close()

	if err := authenticateAdmin(as, ic.auths); err != nil {
		return nil, nil, err
	}

	if proto == core.ProtocolLevelEnterprise {
		copy(lmeta.SPID[:], uid.EnterpriseLockingSP[:])
		err = initializeEnterprise(as, &ic, lmeta)
	} else {
		copy(lmeta.SPID[:], uid.LockingSP[:])
		err = initializeOpalFamily(as, &ic, lmeta)
	}
	if err != nil {
		return nil, nil, err
	}
	return cs, lmeta, nil
}

// authenticateAdmin tries each configured credential in order, skipping
// over plain authentication refusals until one is accepted. With no
// credentials configured the session stays at the Anybody level, which is
// enough to read the MSID.
func authenticateAdmin(as *core.Session, auths []AdminSPAuthenticator) error {
	if len(auths) == 0 {
		return nil
	}
	for _, a := range auths {
		err := a.AuthenticateAdminSP(as)
		if err == table.ErrAuthenticationFailed {
			continue
		}
		return err
	}
	return fmt.Errorf("all authentications failed")
}

func initializeEnterprise(s *core.Session, ic *initializeConfig, lmeta *LockingSPMeta) error {
	if msid, err := table.Admin_C_PIN_MSID_GetPIN(s); err == nil {
		lmeta.MSID = msid
	}
	// TODO: Implement take ownership for enterprise if activated in initializeConfig.
	return nil
}

func initializeOpalFamily(s *core.Session, ic *initializeConfig, lmeta *LockingSPMeta) error {
	// TODO: Check C_PIN tries / Block SID before burning PIN attempts on a
	// MSID that cannot work.
	if msid, err := table.Admin_C_PIN_MSID_GetPIN(s); err == nil {
		lmeta.MSID = msid
	}
	// TODO: Take ownership (*before* Activate to ensure that the PINs are copied)
	lcs, err := table.Admin_SP_GetLifeCycleState(s, uid.LockingSP)
	if err != nil {
		return err
	}
	switch lcs {
	case LifeCycleStateManufactured:
		// Already activated.
		return nil
	case LifeCycleStateManufacturedInactive:
		if !ic.activate {
			return fmt.Errorf("locking SP not active, but activation not requested")
		}
		return table.LockingSPActivate(s)
	}
	return fmt.Errorf("unsupported life cycle state on locking SP: %v", lcs)
}
