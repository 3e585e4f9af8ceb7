// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"errors"
	"testing"
	"time"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core/method"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/stream"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
)

// scriptedCom replays canned subpacket payloads, recording everything the
// session sends. An empty payload models the TPer's "not ready yet"
// zero-length ComPacket.
type scriptedCom struct {
	sent      [][]byte
	responses [][]byte
}

func (c *scriptedCom) Send(ses *Session, data []byte) error {
	c.sent = append(c.sent, data)
	return nil
}

func (c *scriptedCom) Receive(ses *Session) ([]byte, error) {
	if len(c.responses) == 0 {
		return nil, nil
	}
	r := c.responses[0]
	c.responses = c.responses[1:]
	return r, nil
}

func testSession(c CommunicationIntf) *Session {
	return &Session{
		c:               c,
		ComID:           ComID(0x07FE),
		HSN:             0x1001,
		TSN:             0x2002,
		ReceiveRetries:  3,
		ReceiveInterval: time.Microsecond,
	}
}

// methodResponse builds "payload EOD [status 0 0]" the way a TPer replies.
func methodResponse(status method.MethodStatusCode, payload ...[]byte) []byte {
	out := []byte{}
	for _, p := range payload {
		out = append(out, stream.Bytes(p)...)
	}
	out = append(out, stream.Token(stream.EndOfData)...)
	out = append(out, stream.Token(stream.StartList)...)
	out = append(out, stream.UInt(uint(status))...)
	out = append(out, stream.UInt(0)...)
	out = append(out, stream.UInt(0)...)
	out = append(out, stream.Token(stream.EndList)...)
	return out
}

func TestExecuteMethodSuccess(t *testing.T) {
	com := &scriptedCom{responses: [][]byte{
		nil, // pending-data drain before send
		nil, // first poll: TPer still busy
		methodResponse(method.MethodStatusSuccess, []byte("PIN")),
	}}
	s := testSession(com)

	mc := method.NewMethodCall(uid.InvokeIDThisSP, uid.MethodIDGet, 0)
	resp, err := s.ExecuteMethod(mc)
	if err != nil {
		t.Fatalf("ExecuteMethod failed: %v", err)
	}
	if len(com.sent) != 1 {
		t.Fatalf("sent %d payloads; want 1", len(com.sent))
	}
	if len(resp) != 1 || !stream.EqualBytes(resp[0], []byte("PIN")) {
		t.Errorf("response = %+v", resp)
	}
}

func TestExecuteMethodErrorStatus(t *testing.T) {
	com := &scriptedCom{responses: [][]byte{
		nil,
		methodResponse(0x01), // NOT_AUTHORIZED
	}}
	s := testSession(com)

	mc := method.NewMethodCall(uid.InvokeIDThisSP, uid.MethodIDGet, 0)
	_, err := s.ExecuteMethod(mc)
	if err == nil {
		t.Fatal("expected an error")
	}
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("error %v is not a ProtocolError", err)
	}
	if perr.Status != 0x01 {
		t.Errorf("status = %#x; want NOT_AUTHORIZED", perr.Status)
	}
	if !errors.Is(err, method.ErrMethodStatusNotAuthorized) {
		t.Error("error does not unwrap to the NOT_AUTHORIZED sentinel")
	}
}

func TestExecuteMethodTimeout(t *testing.T) {
	// The TPer never produces a payload: every poll returns the empty
	// "outstanding data" response until the retry budget runs out.
	com := &scriptedCom{}
	s := testSession(com)

	mc := method.NewMethodCall(uid.InvokeIDThisSP, uid.MethodIDGet, 0)
	_, err := s.ExecuteMethod(mc)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error %v is not a TransportError", err)
	}
	if terr.Kind != KindOperationTimeout {
		t.Errorf("kind = %v; want OperationTimeout", terr.Kind)
	}
	if !errors.Is(err, method.ErrMethodTimeout) {
		t.Error("error does not unwrap to ErrMethodTimeout")
	}
}

func TestSessionClose(t *testing.T) {
	com := &scriptedCom{responses: [][]byte{
		stream.Token(stream.EndOfSession),
	}}
	s := testSession(com)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(com.sent) != 1 || !stream.EqualToken(stream.TokenType(com.sent[0][0]), stream.EndOfSession) {
		t.Errorf("sent = %+v; want a lone EndOfSession token", com.sent)
	}
	// A closed session refuses further work.
	if err := s.Close(); err != ErrSessionAlreadyClosed {
		t.Errorf("second Close = %v; want ErrSessionAlreadyClosed", err)
	}
	mc := method.NewMethodCall(uid.InvokeIDThisSP, uid.MethodIDGet, 0)
	if _, err := s.ExecuteMethod(mc); err != ErrSessionAlreadyClosed {
		t.Errorf("ExecuteMethod after close = %v; want ErrSessionAlreadyClosed", err)
	}
}

// PSID revert happy path: authenticate with the raw printed PSID, then
// AdminSP.Revert. Exactly two method payloads go out, and no EndOfSession
// follows — the TPer destroys the session itself on a successful revert.
func TestPSIDRevertFlow(t *testing.T) {
	com := &scriptedCom{responses: [][]byte{
		nil, // drain before Authenticate
		methodResponse(method.MethodStatusSuccess, []byte{0x01}), // auth result list
		nil, // drain before Revert
		methodResponse(method.MethodStatusSuccess),
	}}
	s := testSession(com)

	auth := method.NewMethodCall(uid.InvokeIDThisSP, uid.MethodIDAuthenticate, s.MethodFlags)
	auth.Bytes(uid.AuthorityPSID[:])
	auth.StartOptionalParameter(0, "Challenge")
	auth.Bytes([]byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ012345"))
	auth.EndOptionalParameter()
	if _, err := s.ExecuteMethod(auth); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	revert := method.NewMethodCall(uid.InvokingID(uid.AdminSP), uid.MethodIDRevert, s.MethodFlags)
	if _, err := s.ExecuteMethod(revert); err != nil {
		t.Fatalf("revert failed: %v", err)
	}

	// The device destroys the session on a successful revert; closing must
	// not put an EndOfSession on the wire.
	s.DontAutoClose()
	if err := s.Close(); err != nil {
		t.Fatalf("close after revert: %v", err)
	}

	if len(com.sent) != 2 {
		t.Fatalf("sent %d payloads; want exactly 2 (authenticate + revert)", len(com.sent))
	}
	for i, p := range com.sent {
		if len(p) == 1 && stream.EqualToken(stream.TokenType(p[0]), stream.EndOfSession) {
			t.Errorf("payload %d is an EndOfSession; the revert path must not auto-close", i)
		}
	}
}

func TestTPerClosedSession(t *testing.T) {
	// A CloseSession method call from the TPer naming our HSN/TSN means it
	// forcefully tore the session down.
	closeCall := []byte{}
	closeCall = append(closeCall, stream.Token(stream.Call)...)
	closeCall = append(closeCall, stream.Bytes(uid.InvokeIDSMU[:])...)
	closeCall = append(closeCall, stream.Bytes(uid.MethodIDSMCloseSession[:])...)
	closeCall = append(closeCall, stream.Token(stream.StartList)...)
	closeCall = append(closeCall, stream.UInt(0x1001)...)
	closeCall = append(closeCall, stream.UInt(0x2002)...)
	closeCall = append(closeCall, stream.Token(stream.EndList)...)

	com := &scriptedCom{responses: [][]byte{nil, closeCall}}
	s := testSession(com)

	mc := method.NewMethodCall(uid.InvokeIDThisSP, uid.MethodIDGet, 0)
	if _, err := s.ExecuteMethod(mc); !errors.Is(err, method.ErrTPerClosedSession) {
		t.Errorf("ExecuteMethod = %v; want ErrTPerClosedSession", err)
	}
}
