// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tcgsdiag runs a read-mostly diagnostic suite against one drive: identity
// and security protocol inventory, ComID self-test, Level 0 discovery,
// session stress, Admin SP table reads, and (when the MSID still works) a
// tour of the Locking SP. Optional destructive probes are gated behind
// environment variables.

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/davecgh/go-spew/spew"
	tcg "github.com/open-source-firmware/go-tcg-storage/pkg/core"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/method"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/table"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
	"github.com/open-source-firmware/go-tcg-storage/pkg/drive"
)

func section(title string) {
	fmt.Printf("\n===> %s\n", title)
}

// diagDriveInfo dumps the drive's identity and what the security protocol
// information pages report.
func diagDriveInfo(d drive.DriveIntf) {
	id, err := d.Identify()
	if err != nil {
		log.Fatalf("drive.Identity: %v", err)
	}
	log.Printf("Drive identity: %s", id)

	spl, err := drive.SecurityProtocols(d)
	if err != nil {
		log.Fatalf("drive.SecurityProtocols: %v", err)
	}
	log.Printf("SecurityProtocols: %+v", spl)

	crt, err := drive.Certificate(d)
	if err != nil {
		log.Printf("drive.Certificate: %v", err)
	}
	log.Printf("Drive certificate:")
	spew.Dump(crt)
}

// diagComID exercises dynamic ComID allocation, validation and stack
// reset. Many drives implement none of it, which is fine: the caller
// falls back to the SSC's static base ComID.
func diagComID(d tcg.DriveIntf) tcg.ComID {
	comID, err := tcg.GetComID(d)
	if err != nil {
		log.Printf("Unable to auto-allocate ComID: %v", err)
		return tcg.ComIDInvalid
	}
	log.Printf("Allocated ComID 0x%08x", comID)

	valid, err := tcg.IsComIDValid(d, comID)
	if err != nil || !valid {
		log.Printf("ComID validation failed (valid=%v, err=%v)", valid, err)
		return tcg.ComIDInvalid
	}
	log.Printf("ComID validated successfully")

	if err := tcg.StackReset(d, comID); err != nil {
		log.Printf("Unable to reset the synchronous protocol stack: %v", err)
		return tcg.ComIDInvalid
	}
	log.Printf("Synchronous protocol stack reset successfully")
	return comID
}

// diagControlSession builds the control session, preferring the
// self-tested ComID and falling back to whatever dialect the discovery
// advertises.
func diagControlSession(d tcg.DriveIntf, d0 *tcg.Level0Discovery, comID tcg.ComID) *tcg.ControlSession {
	if comID == tcg.ComIDInvalid {
		var err error
		var proto tcg.ProtocolLevel
		comID, proto, err = tcg.FindComID(d, d0)
		if err != nil {
			log.Printf("No dialect ComID either, giving up: %v", err)
			return nil
		}
		log.Printf("Selected dialect base ComID 0x%08x (%s)", comID, proto.String())
	}

	log.Printf("Creating control session with ComID 0x%08x\n", comID)
	cs, err := tcg.NewControlSession(d, d0, tcg.WithComID(comID))
	if err != nil {
		log.Printf("tcg.NewControlSession failed: %v", err)
		return nil
	}
	log.Printf("Operating using protocol %q", cs.ProtocolLevel.String())
	log.Printf("Negotiated TPerProperties:")
	spew.Dump(cs.TPerProperties)
	log.Printf("Negotiated HostProperties:")
	spew.Dump(cs.HostProperties)

	if err := cs.Close(); err != nil {
		log.Fatalf("Test of ControlSession Close failed: %v", err)
	}
	return cs
}

// openSessions opens as many Admin SP sessions as the TPer will grant, to
// see where the advertised limits really are.
func openSessions(cs *tcg.ControlSession) []*tcg.Session {
	var sessions []*tcg.Session
	maxSessions := 10
	if cs.TPerProperties.MaxSessions != nil {
		maxSessions += int(*cs.TPerProperties.MaxSessions)
	}
	for i := 0; i < maxSessions; i++ {
		opts := []tcg.SessionOpt{}
		if i > 0 && cs.TPerProperties.MaxReadSessions != nil && *cs.TPerProperties.MaxReadSessions > 0 {
			opts = append(opts, tcg.WithReadOnly())
		}
		s, err := cs.NewSession(uid.AdminSP, opts...)
		if errors.Is(err, method.ErrMethodStatusNoSessionsAvailable) ||
			errors.Is(err, method.ErrMethodStatusSPBusy) {
			break
		}
		if err != nil {
			log.Printf("cs.NewSession (#%d) failed: %v", i, err)
			break
		}
		sessions = append(sessions, s)
		log.Printf("Session #%d (HSN=0x%x, TSN=%0x) opened", i, s.HSN, s.TSN)
	}
	return sessions
}

// adminSPReport reads the always-readable Admin SP state and attempts MSID
// authentication. It reports the MSID (if any), whether SID still equals
// MSID, and the Locking SP life cycle state.
func adminSPReport(s *tcg.Session) (msidPin []byte, msidOk bool, llcs table.LifeCycleState) {
	var err error
	msidPin, err = table.Admin_C_PIN_MSID_GetPIN(s)
	if err != nil {
		log.Printf("table.Admin_C_PIN_MSID_GetPIN failed: %v", err)
		msidPin = nil
	} else {
		log.Printf("MSID PIN:\n%s", hex.Dump(msidPin))
	}

	if rnd, err := table.ThisSP_Random(s, 8); err != nil {
		log.Printf("table.ThisSP_Random failed: %v", err)
	} else {
		log.Printf("Generated random numbers: %v", rnd)
	}

	if tperInfo, err := table.Admin_TPerInfo(s); err == nil {
		log.Printf("TPerInfo table:")
		spew.Dump(tperInfo)
	}

	llcs = -1
	if lcs, err := table.Admin_SP_GetLifeCycleState(s, uid.LockingSP); err == nil {
		llcs = lcs
		log.Printf("Life cycle state on Locking SP: %d", lcs)
	}

	if msidPin == nil {
		return nil, false, llcs
	}
	if err := table.ThisSP_Authenticate(s, uid.AuthoritySID, msidPin); err != nil {
		log.Printf("table.ThisSP_Authenticate (SID) failed: %v", err)
		return msidPin, false, llcs
	}
	log.Printf("Successfully authenticated as Admin SID")
	return msidPin, true, llcs
}

// optionalProbes runs the environment-gated mutations: Locking SP
// activation and PSID authentication.
func optionalProbes(s *tcg.Session, llcs *table.LifeCycleState, msidOk bool) {
	if msidOk && *llcs == table.ManufacturedInactive && os.Getenv("TCGSDIAG_ACTIVATE") != "" {
		if err := table.LockingSPActivate(s); err != nil {
			log.Printf("LockingSP.Activate failed: %v", err)
		} else {
			log.Printf("Locking SP activated")
			*llcs = table.Manufactured
		}
	}

	if psid := os.Getenv("TCGSDIAG_PSID"); psid != "" {
		if err := table.ThisSP_Authenticate(s, uid.AuthorityPSID, []byte(psid)); err != nil {
			log.Printf("table.ThisSP_Authenticate (PSID) failed: %v", err)
		} else {
			log.Printf("Successfully authenticated as PSID")
		}
	}
}

// lockingSPReport opens a Locking SP session with the dialect's default
// admin authority and walks the locking tables.
func lockingSPReport(cs *tcg.ControlSession, msidPin []byte) {
	var s *tcg.Session
	var err error
	auth := uid.AuthorityObjectUID{}
	username := ""

	if cs.ProtocolLevel == tcg.ProtocolLevelEnterprise {
		s, err = cs.NewSession(uid.EnterpriseLockingSP)
		auth = uid.LockingAuthorityBandMaster0
		username = "BandMaster0"
	} else {
		s, err = cs.NewSession(uid.LockingSP)
		if os.Getenv("TCGSDIAG_AS_USER") == "" {
			auth = uid.LockingAuthorityAdmin1
			username = "Admin1"
		} else {
			copy(auth[:], []byte{0x00, 0x00, 0x00, 0x09, 0x00, 0x03, 0x00, 0x01}) // User1
			username = "User1"
		}
	}
	if err != nil {
		log.Printf("Could not open Locking SP session: %v", err)
		return
	}
	defer s.Close()

	if err := table.ThisSP_Authenticate(s, auth, msidPin); err != nil {
		log.Printf("table.ThisSP_Authenticate (Locking SP, %s) failed: %v", username, err)
		return
	}
	log.Printf("Successfully authenticated as %s", username)

	log.Printf("Locking SP LockingInfo:")
	spew.Dump(table.LockingInfo(s))

	log.Printf("Locking SP MBRTableInfo:")
	mbi, err := table.MBR_TableInfo(s)
	if err != nil {
		log.Printf("Failed: %v", err)
	} else {
		spew.Dump(mbi)
		mbuf := make([]byte, mbi.SuggestBufferSize(s))
		log.Printf("Reading %d first bytes of MBR", len(mbuf))
		if n, err := table.MBR_Read(s, mbuf, 0); n != len(mbuf) || err != nil {
			log.Printf("Failed: %d, %v", n, err)
		} else {
			log.Printf("MBR start:\n%s", hex.Dump(mbuf[:128]))
		}
	}

	lockList, err := table.Locking_Enumerate(s)
	if err != nil {
		log.Printf("table.Locking_Enumerate failed: %v", err)
		return
	}
	log.Printf("Locking regions:")
	for _, luid := range lockList {
		lr, err := table.Locking_Get(s, luid)
		if err != nil {
			spew.Printf("Region %v: <UNKNOWN> (%v)\n", hex.EncodeToString(luid[:]), err)
		} else {
			spew.Printf("Region %v: %+v\n", hex.EncodeToString(luid[:]), lr)
		}
	}
}

func main() {
	spew.Config.Indent = "  "

	d, err := drive.Open(os.Args[1])
	if err != nil {
		log.Fatalf("drive.Open: %v", err)
	}
	defer d.Close()

	section("DRIVE SECURITY INFORMATION")
	diagDriveInfo(d)

	section("TCG AUTO ComID SELF-TEST")
	comID := diagComID(d)

	section("TCG FEATURE DISCOVERY")
	d0, err := tcg.Discovery0(d)
	if err != nil {
		log.Fatalf("tcg.Discovery0: %v", err)
	}
	spew.Dump(d0)

	section("TCG ADMIN SP SESSION")
	cs := diagControlSession(d, d0, comID)
	if cs == nil {
		log.Printf("No control session, unable to continue")
		return
	}

	sessions := openSessions(cs)
	if len(sessions) == 0 {
		log.Printf("No session, unable to continue")
		return
	}
	log.Printf("Opened %d sessions", len(sessions))

	defer func() {
		log.Printf("Diagnostics done, cleaning up")
		for i, s := range sessions {
			if s == nil {
				log.Printf("Session #%d already closed", i)
				continue
			}
			if err := s.Close(); err != nil {
				log.Fatalf("Session.Close (#%d) failed: %v", i, err)
			}
			log.Printf("Session #%d closed", i)
		}
	}()

	s := sessions[0]
	msidPin, msidOk, llcs := adminSPReport(s)
	optionalProbes(s, &llcs, msidOk)

	log.Printf("Admin SP testing done")
	s.Close()
	sessions[0] = nil

	section("TCG LOCKING SP SESSION")
	if !msidOk {
		log.Printf("SID is changed from MSID, will not continue")
		return
	}
	if llcs == table.ManufacturedInactive {
		log.Printf("Locking SP not activated")
		return
	}
	lockingSPReport(cs, msidPin)
}
