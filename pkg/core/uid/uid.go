// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Implements the well-known UIDs defined by the TCG Storage Architecture
// Core Specification and the Opal/Enterprise SSC feature sets.

package uid

// UID is a general type which all UID shall be based upon.
// Specified in TCG Storage Architecture Core Specification Version 2.01 - Rev 1.0
type UID [8]byte

type RowUID UID

type TableUID UID

type InvokingID UID

type MethodID UID

type SPID UID

type AuthorityObjectUID UID

// Base_TableRowForTable returns the row in the Table Table that describes
// the given table's own metadata. Per "5.3.2.3 Table Table", a table's
// descriptor row is 00 00 00 01 followed by the upper 4 bytes of the
// table's own UID.
func Base_TableRowForTable(t TableUID) RowUID {
	r := RowUID{0x00, 0x00, 0x00, 0x01}
	copy(r[4:], t[:4])
	return r
}

var (
	InvokeIDNull   = InvokingID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	InvokeIDThisSP = InvokingID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	InvokeIDSMU    = InvokingID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF}
)

// Session manager methods, invoked against InvokeIDSMU.
// "5.2.2 Session Manager"
var (
	MethodIDSMProperties   = MethodID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x01}
	MethodIDSMStartSession = MethodID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x02}
	MethodIDSMSyncSession  = MethodID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x03}
	MethodIDSMCloseSession = MethodID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x04}
)

// Core method UIDs, invoked against the row/table/SP they operate on.
// "5.3.3.3 Methods"
var (
	MethodIDGet             = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x16}
	MethodIDSet             = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x17}
	MethodIDNext            = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x08}
	MethodIDAuthenticate    = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x0C}
	MethodIDRandom          = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x01}
	MethodIDActivate        = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x02, 0x03}
	MethodIDAdmin_Activate  = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x02, 0x03}
	MethodIDRevert          = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x02, 0x02}
	MethodIDRevertSP        = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x02, 0x11}
	MethodIDEraseEnterprise = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x08, 0x03}

	// Opal uses uinteger column addressing while Enterprise uses ASCII
	// method names; both share the same method UID space, so these are
	// aliases kept distinct for callers that branch on protocol level.
	OpalGet                    = MethodIDGet
	OpalSet                    = MethodIDSet
	OpalNext                   = MethodIDNext
	OpalRandom                 = MethodIDRandom
	OpalAuthenticate           = MethodIDAuthenticate
	OpalRevertSP               = MethodIDRevertSP
	OpalEnterpriseGet          = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x16}
	OpalEnterpriseSet          = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x17}
	OpalEnterpriseAuthenticate = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x0C}
)

var (
	LockingAuthorityBandMaster0 = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x80, 0x01}
	LockingAuthorityAdmin1      = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x01, 0x00, 0x01}
	AuthorityAnybody            = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x01}
	AuthoritySID                = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x06}
	AuthorityPSID               = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x01, 0xFF, 0x01} // Opal Feature Set: PSID
)

var (
	GlobalRangeRowUID  RowUID = [8]byte{0x00, 0x00, 0x08, 0x02, 0x00, 0x00, 0x00, 0x01}
	LockingGlobalRange RowUID = [8]byte{0x00, 0x00, 0x08, 0x02, 0x00, 0x00, 0x00, 0x01}
)

var (
	AdminSP             = SPID{0x00, 0x00, 0x02, 0x05, 0x00, 0x00, 0x00, 0x01}
	LockingSP           = SPID{0x00, 0x00, 0x02, 0x05, 0x00, 0x00, 0x00, 0x02}
	EnterpriseLockingSP = SPID{0x00, 0x00, 0x02, 0x05, 0x00, 0x01, 0x00, 0x01} // Enterprise SSC
)

// Admin SP object table rows.
// "5.3.2.6 C_PIN (Object Table)"
var (
	Admin_C_PIN_MSIDRow     = RowUID{0x00, 0x00, 0x00, 0x0B, 0x00, 0x00, 0x84, 0x02}
	Admin_C_PIN_SIDRow      = RowUID{0x00, 0x00, 0x00, 0x0B, 0x00, 0x00, 0x00, 0x01}
	Admin_C_PIN_Admin1Row   = RowUID{0x00, 0x00, 0x00, 0x0B, 0x00, 0x01, 0x00, 0x01}
	Admin_C_Pin_BandMaster0 = RowUID{0x00, 0x00, 0x00, 0x0B, 0x00, 0x00, 0x80, 0x01}
	Admin_C_Pin_EraseMaster = RowUID{0x00, 0x00, 0x00, 0x0B, 0x00, 0x00, 0x84, 0x00}
	Admin_TPerInfoObj       = RowUID{0x00, 0x00, 0x02, 0x01, 0x00, 0x00, 0x00, 0x01}
)

// Locking SP tables and rows.
// "4.3.5.2 Locking Table", "4.3.5.5 MBR Control (Object Table)"
var (
	Locking_LockingTable     = TableUID{0x00, 0x00, 0x08, 0x02, 0x00, 0x00, 0x00, 0x00}
	Locking_MBRTable         = TableUID{0x00, 0x00, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00}
	Locking_SecretProtect    = TableUID{0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x00}
	LockingInfoObj           = RowUID{0x00, 0x00, 0x08, 0x01, 0x00, 0x00, 0x00, 0x01}
	EnterpriseLockingInfoObj = RowUID{0x00, 0x00, 0x08, 0x01, 0x00, 0x00, 0x00, 0x01}
	MBRControlObj            = RowUID{0x00, 0x00, 0x08, 0x03, 0x00, 0x00, 0x00, 0x01}
)
