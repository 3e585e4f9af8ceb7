// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Method invocation builder for the TCG data stream: Call framing, the
// argument list, optional parameters in both dialect conventions, and
// the closing EndOfData/status-list trailer.

package method

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core/stream"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
)

type MethodFlag int

const (
	// MethodFlagOptionalAsName makes optional parameters use their ASCII
	// names instead of their uinteger numbers, the Enterprise convention.
	MethodFlagOptionalAsName MethodFlag = 1
)

// MethodStatusCode is the status value a TPer returns in the final status
// list of a method response ("5.1.4 Method Status Codes").
type MethodStatusCode uint

const MethodStatusSuccess MethodStatusCode = 0x00

var (
	ErrMalformedMethodResponse    = errors.New("method response was malformed")
	ErrEmptyMethodResponse        = errors.New("method response was empty")
	ErrMethodListUnbalanced       = errors.New("method argument list is unbalanced")
	ErrTPerClosedSession          = errors.New("TPer forcefully closed our session")
	ErrReceivedUnexpectedResponse = errors.New("method response was unexpected")
	ErrMethodTimeout              = errors.New("method call timed out waiting for a response")
)

// statusText names every status code the Core spec (and the 0.9 draft a
// few drives still follow) can return.
var statusText = map[MethodStatusCode]string{
	0x00: "SUCCESS",
	0x01: "NOT_AUTHORIZED",
	0x02: "OBSOLETE",
	0x03: "SP_BUSY",
	0x04: "SP_FAILED",
	0x05: "SP_DISABLED",
	0x06: "SP_FROZEN",
	0x07: "NO_SESSIONS_AVAILABLE",
	0x08: "UNIQUENESS_CONFLICT",
	0x09: "INSUFFICIENT_SPACE",
	0x0A: "INSUFFICIENT_ROWS",
	0x0B: "INVALID_COMMAND", /* from Core Revision 0.9 Draft */
	0x0C: "INVALID_PARAMETER",
	0x0D: "INVALID_REFERENCE",         /* from Core Revision 0.9 Draft */
	0x0E: "INVALID_SECMSG_PROPERTIES", /* from Core Revision 0.9 Draft */
	0x0F: "TPER_MALFUNCTION",
	0x10: "TRANSACTION_FAILURE",
	0x11: "RESPONSE_OVERFLOW",
	0x12: "AUTHORITY_LOCKED_OUT",
	0x3F: "FAIL",
}

// MethodStatusCodeMap holds one sentinel error per known status code so
// callers can errors.Is against a specific refusal.
var MethodStatusCodeMap = func() map[MethodStatusCode]error {
	m := make(map[MethodStatusCode]error, len(statusText))
	for code, text := range statusText {
		m[code] = fmt.Errorf("method returned status %s", text)
	}
	return m
}()

var (
	ErrMethodStatusNotAuthorized       = MethodStatusCodeMap[0x01]
	ErrMethodStatusSPBusy              = MethodStatusCodeMap[0x03]
	ErrMethodStatusNoSessionsAvailable = MethodStatusCodeMap[0x07]
	ErrMethodStatusInvalidParameter    = MethodStatusCodeMap[0x0C]
	ErrMethodStatusAuthorityLockedOut  = MethodStatusCodeMap[0x12]
)

// String renders the status the way the spec names it, falling back to the
// raw numeric value for anything outside the known set.
func (c MethodStatusCode) String() string {
	if err, ok := MethodStatusCodeMap[c]; ok {
		return err.Error()
	}
	return fmt.Sprintf("method returned unknown status code 0x%02x", uint(c))
}

// Call is anything that can be marshaled onto a session's wire.
type Call interface {
	MarshalBinary() ([]byte, error)
	IsEOS() bool
}

// MethodCall accumulates one method invocation. The depth counter tracks
// unclosed list/name scopes so an unbalanced build fails at marshal time
// instead of confusing the TPer.
type MethodCall struct {
	buf   bytes.Buffer
	depth int
	flags MethodFlag
}

// NewMethodCall opens an invocation of mid on iid and positions the
// writer inside the argument list.
func NewMethodCall(iid uid.InvokingID, mid uid.MethodID, flags MethodFlag) *MethodCall {
	m := &MethodCall{flags: flags}
	m.Token(stream.Call)
	m.Bytes(iid[:])
	m.Bytes(mid[:])
	m.StartList()
	return m
}

// Clone returns an independent copy of the call in its current state.
func (m *MethodCall) Clone() *MethodCall {
	mn := &MethodCall{depth: m.depth, flags: m.flags}
	mn.buf.Write(m.buf.Bytes())
	return mn
}

func (m *MethodCall) IsEOS() bool {
	return false
}

func (m *MethodCall) StartList() {
	m.depth++
	m.Token(stream.StartList)
}

func (m *MethodCall) EndList() {
	m.depth--
	m.Token(stream.EndList)
}

// StartOptionalParameter opens an optional parameter. Core 2.0 names
// optional parameters by their zero-based uinteger position
// ("3.2.1.2 Method Signature Pseudo-code"); Enterprise uses the ASCII
// name, selected via MethodFlagOptionalAsName.
func (m *MethodCall) StartOptionalParameter(id uint, name string) {
	m.depth++
	m.Token(stream.StartName)
	if m.flags&MethodFlagOptionalAsName > 0 {
		m.Bytes([]byte(name))
	} else {
		m.UInt(id)
	}
}

// EndOptionalParameter closes the current optional parameter group.
func (m *MethodCall) EndOptionalParameter() {
	m.depth--
	m.Token(stream.EndName)
}

// NamedUInt appends a name/uinteger pair.
func (m *MethodCall) NamedUInt(name string, val uint) {
	m.Token(stream.StartName)
	m.Bytes([]byte(name))
	m.UInt(val)
	m.Token(stream.EndName)
}

// NamedBool appends a name/boolean pair (booleans ride as uintegers).
func (m *MethodCall) NamedBool(name string, val bool) {
	m.Token(stream.StartName)
	m.Bytes([]byte(name))
	m.Bool(val)
	m.Token(stream.EndName)
}

// Token appends a bare control token.
func (m *MethodCall) Token(t stream.TokenType) {
	m.buf.Write(stream.Token(t))
}

// Bytes appends a byte-sequence atom.
func (m *MethodCall) Bytes(b []byte) {
	m.buf.Write(stream.Bytes(b))
}

// UInt appends an unsigned integer atom.
func (m *MethodCall) UInt(v uint) {
	m.buf.Write(stream.UInt(v))
}

// Bool appends a boolean as an uinteger atom.
func (m *MethodCall) Bool(v bool) {
	if v {
		m.UInt(1)
	} else {
		m.UInt(0)
	}
}

// RawByte appends pre-encoded stream bytes verbatim.
func (m *MethodCall) RawByte(b []byte) {
	m.buf.Write(b)
}

// MarshalBinary closes the argument list, appends EndOfData and the
// host's all-zero status list, and returns the wire form. The call itself
// is left untouched so it can be retried or cloned.
func (m *MethodCall) MarshalBinary() ([]byte, error) {
	mn := m.Clone()
	mn.EndList() // argument list
	mn.Token(stream.EndOfData)
	mn.StartList()
	mn.UInt(uint(MethodStatusSuccess))
	mn.UInt(0) // Reserved
	mn.UInt(0) // Reserved
	mn.EndList()
	if mn.depth != 0 {
		return nil, ErrMethodListUnbalanced
	}
	return mn.buf.Bytes(), nil
}

// EOSMethodCall is the bare EndOfSession token in Call clothing, so
// session teardown can ride the same send path as method invocations.
type EOSMethodCall struct {
}

func (m *EOSMethodCall) MarshalBinary() ([]byte, error) {
	return stream.Token(stream.EndOfSession), nil
}

func (m *EOSMethodCall) IsEOS() bool {
	return true
}
