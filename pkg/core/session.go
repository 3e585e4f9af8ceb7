// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Session manager and session lifecycle: Properties negotiation,
// StartSession/SyncSession, method execution with the synchronous poll
// loop, and session teardown.

package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core/method"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/stream"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
)

var (
	ErrTPerSyncNotSupported        = errors.New("synchronous operation not supported by TPer")
	ErrTPerBufferMgmtNotSupported  = errors.New("TPer supports buffer management, but that is not implemented in this library")
	ErrInvalidPropertiesResponse   = errors.New("response was not the expected Properties call format")
	ErrInvalidStartSessionResponse = errors.New("response was not the expected SyncSession format")
	ErrPropertiesCallFailed        = errors.New("the properties call returned non-zero")
	ErrSessionAlreadyClosed        = errors.New("the session has been closed by us")

	sessionRand *rand.Rand
)

const (
	DefaultMaxComPacketSize uint = 1024 * 1024
	DefaultReceiveRetries        = 100
	DefaultReceiveInterval       = 10 * time.Millisecond
)

type ProtocolLevel uint

const (
	ProtocolLevelUnknown    ProtocolLevel = 0
	ProtocolLevelEnterprise ProtocolLevel = 1
	ProtocolLevelCore       ProtocolLevel = 2
)

func (p *ProtocolLevel) String() string {
	switch *p {
	case ProtocolLevelEnterprise:
		return "Enterprise"
	case ProtocolLevelCore:
		return "Core V2.0"
	default:
		return "<Unknown>"
	}
}

// Session is one host/TPer session scoped by an HSN/TSN pair on a ComID.
// A Session's methods are not safe for concurrent use; the TPer orders
// commands per ComID anyway.
type Session struct {
	ControlSession *ControlSession
	MethodFlags    method.MethodFlag
	ProtocolLevel  ProtocolLevel
	d              DriveIntf
	c              CommunicationIntf
	closed         bool
	// dontAutoClose suppresses the EndOfSession exchange; set after an
	// operation that makes the TPer destroy the session on its own.
	dontAutoClose bool
	ComID         ComID
	TSN, HSN      int
	// See "3.2.3.3.1.2 SeqNumber"
	SeqLastXmit     int
	SeqLastAcked    int
	SeqNextExpected int
	ReadOnly        bool // Ignored for Control Sessions
	ReceiveRetries  int
	ReceiveInterval time.Duration

	// Authentication requested at session start, when a host challenge
	// was supplied.
	startAuthority uid.AuthorityObjectUID
	startProof     []byte
	startWithAuth  bool
}

// ControlSession is the implicit session-manager session every ComID has.
type ControlSession struct {
	Session
	HostProperties           HostProperties
	TPerProperties           TPerProperties
	MaxComPacketSizeOverride uint
}

type HostProperties struct {
	MaxMethods               uint
	MaxSubpackets            uint
	MaxPacketSize            uint
	MaxPackets               uint
	MaxComPacketSize         uint
	MaxResponseComPacketSize *uint
	MaxIndTokenSize          uint
	MaxAggTokenSize          uint
	ContinuedTokens          bool
	SequenceNumbers          bool
	AckNak                   bool
	Asynchronous             bool
}
type TPerProperties struct {
	MaxMethods               uint
	MaxSubpackets            uint
	MaxPacketSize            uint
	MaxPackets               uint
	MaxComPacketSize         uint
	MaxResponseComPacketSize *uint
	MaxSessions              *uint
	MaxReadSessions          *uint
	MaxIndTokenSize          uint
	MaxAggTokenSize          uint
	MaxAuthentications       *uint
	MaxTransactionLimit      *uint
	DefSessionTimeout        *uint
	MaxSessionTimeout        *uint
	MinSessionTimeout        *uint
	DefTransTimeout          *uint
	MaxTransTimeout          *uint
	MinTransTimeout          *uint
	MaxComIDTime             *uint
	ContinuedTokens          bool
	SequenceNumbers          bool
	AckNak                   bool
	Asynchronous             bool
}

var (
	// Table 168: "Communications Initial Assumptions"
	InitialTPerProperties = TPerProperties{
		MaxSubpackets:    1,
		MaxPacketSize:    1004,
		MaxPackets:       1,
		MaxComPacketSize: 1024,
		MaxIndTokenSize:  968,
		MaxAggTokenSize:  968,
		MaxMethods:       1,
	}
	// Raised to the largest sizes the standards this library implements
	// allow; the Properties exchange negotiates down from here.
	InitialHostProperties = HostProperties{
		MaxSubpackets:    1,
		MaxPacketSize:    2028,
		MaxPackets:       1,
		MaxComPacketSize: 2048,
		MaxIndTokenSize:  1992,
		MaxAggTokenSize:  1992,
		MaxMethods:       1,
	}
)

type SessionOpt func(s *Session)
type ControlSessionOpt func(s *ControlSession)

func WithComID(c ComID) ControlSessionOpt {
	return func(s *ControlSession) {
		s.ComID = c
	}
}

func WithMaxComPacketSize(size uint) ControlSessionOpt {
	return func(s *ControlSession) {
		s.MaxComPacketSizeOverride = size
	}
}

func WithReceiveTimeout(retries int, interval time.Duration) ControlSessionOpt {
	return func(s *ControlSession) {
		s.ReceiveRetries = retries
		s.ReceiveInterval = interval
	}
}

func WithHSN(hsn int) SessionOpt {
	return func(s *Session) {
		s.HSN = hsn
	}
}

func WithReadOnly() SessionOpt {
	return func(s *Session) {
		s.ReadOnly = true
	}
}

// WithHostChallenge authenticates during StartSession instead of with a
// follow-up Authenticate: the challenge rides as the HostChallenge
// parameter and the authority as HostSigningAuthority. On Enterprise the
// TPer expects a separate authenticate exchange, which NewSession then
// issues right after the session opens.
func WithHostChallenge(authority uid.AuthorityObjectUID, proof []byte) SessionOpt {
	return func(s *Session) {
		s.startAuthority = authority
		s.startProof = proof
		s.startWithAuth = true
	}
}

// NewControlSession negotiates communication properties on a ComID and
// returns the control session owning it.
//
// Dynamic ComIDs are rarely implemented, so in practice everything shares
// the SSC's static base ComID and the properties negotiated here can be
// superseded by another host at any time. Sessions opened later re-read
// them from this struct, which is the best a host can do on a shared
// ComID.
func NewControlSession(d DriveIntf, d0 *Level0Discovery, opts ...ControlSessionOpt) (*ControlSession, error) {
	if !d0.TPer.SyncSupported {
		return nil, ErrTPerSyncNotSupported
	}
	if d0.TPer.BufferMgmtSupported {
		return nil, ErrTPerBufferMgmtNotSupported
	}

	hp := InitialHostProperties
	tp := InitialTPerProperties
	s := &ControlSession{
		Session: Session{
			d:               d,
			c:               NewPlainCommunication(d, hp, tp),
			ComID:           ComIDInvalid,
			ReceiveRetries:  DefaultReceiveRetries,
			ReceiveInterval: DefaultReceiveInterval,
		},
		HostProperties:           hp,
		TPerProperties:           tp,
		MaxComPacketSizeOverride: DefaultMaxComPacketSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.ComID == ComIDInvalid {
		var err error
		s.ComID, err = GetComID(d)
		if err != nil {
			return nil, fmt.Errorf("unable to auto-allocate ComID: %v", err)
		}
	}

	if d0.Enterprise != nil {
		// Enterprise predates Core 2.0 and names its optional parameters
		// instead of numbering them.
		s.MethodFlags |= method.MethodFlagOptionalAsName
		s.ProtocolLevel = ProtocolLevelEnterprise
	} else {
		s.ProtocolLevel = ProtocolLevelCore
	}

	// Best-effort reset of the synchronous protocol stack so we don't
	// inherit half-finished state on a shared ComID.
	StackReset(d, s.ComID)

	// Advertise the largest sizes we are prepared to handle; asking for 0
	// ("TPer picks") yields tiny values on real drives.
	rhp := InitialHostProperties
	rhp.MaxComPacketSize = s.MaxComPacketSizeOverride
	rhp.MaxPacketSize = rhp.MaxComPacketSize - 20
	rhp.MaxIndTokenSize = rhp.MaxComPacketSize - 20 - 24 - 12
	rhp.MaxAggTokenSize = rhp.MaxComPacketSize - 20 - 24 - 12
	rhp.MaxSubpackets = 1024
	rhp.MaxPackets = 1024

	hp, tp, err := s.properties(&rhp)
	if err != nil {
		return nil, err
	}

	s.c = NewPlainCommunication(d, hp, tp)
	s.HostProperties = hp
	s.TPerProperties = tp
	return s, nil
}

// NewSession starts a session against a Security Provider. Sessions are
// read-write unless WithReadOnly is given; the HSN comes from the session
// RNG unless pinned with WithHSN. Without a host challenge the session
// starts under the always-authenticated Anybody authority and can be
// elevated later with ThisSP_Authenticate.
func (cs *ControlSession) NewSession(spid uid.SPID, opts ...SessionOpt) (*Session, error) {
	s := &Session{
		MethodFlags:     cs.MethodFlags,
		ProtocolLevel:   cs.ProtocolLevel,
		d:               cs.d,
		c:               cs.c,
		ControlSession:  cs,
		ComID:           cs.ComID,
		HSN:             -1,
		ReceiveRetries:  cs.ReceiveRetries,
		ReceiveInterval: cs.ReceiveInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.HSN > 0xffffffff {
		return nil, fmt.Errorf("too large HSN provided")
	}
	if s.HSN == -1 {
		s.HSN = int(sessionRand.Int31())
	}

	mc, fallback := s.buildStartSession(spid)
	resp, err := cs.ExecuteMethod(mc)
	if errors.Is(err, method.ErrMethodStatusInvalidParameter) && fallback != nil {
		resp, err = cs.ExecuteMethod(fallback)
	}
	if err != nil {
		return nil, err
	}

	if err := s.parseSyncSession(resp); err != nil {
		return nil, err
	}

	// Enterprise ignores the start-session challenge parameters; finish
	// the authentication with the explicit exchange it expects.
	if s.startWithAuth && s.ProtocolLevel == ProtocolLevelEnterprise {
		if err := s.authenticate(s.startAuthority, s.startProof); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// buildStartSession prepares the StartSession invocation plus, when
// optional parameters are attached, a bare variant to retry with on
// TPers that reject them.
func (s *Session) buildStartSession(spid uid.SPID) (mc, fallback *method.MethodCall) {
	mc = method.NewMethodCall(uid.InvokeIDSMU, uid.MethodIDSMStartSession, s.MethodFlags)
	mc.UInt(uint(s.HSN))
	mc.Bytes(spid[:])
	mc.Bool(!s.ReadOnly)

	bare := mc.Clone()
	optional := false

	if s.startWithAuth && s.ProtocolLevel != ProtocolLevelEnterprise {
		mc.StartOptionalParameter(0, "HostChallenge")
		mc.Bytes(s.startProof)
		mc.EndOptionalParameter()
		mc.StartOptionalParameter(3, "HostSigningAuthority")
		mc.Bytes(s.startAuthority[:])
		mc.EndOptionalParameter()
		optional = true
	}
	if s.ProtocolLevel == ProtocolLevelEnterprise {
		// Enterprise drives honour a session timeout here; Core 2.0 drives
		// tend to refuse it with INVALID_PARAMETER.
		mc.StartOptionalParameter(5, "SessionTimeout")
		mc.UInt(30000 /* 30 sec */)
		mc.EndOptionalParameter()
		optional = true
	}

	if !optional {
		return mc, nil
	}
	return mc, bare
}

// parseSyncSession validates the SMU SyncSession response and extracts the
// TPer's session number. The response mirrors a method invocation: Call,
// SMU, SyncSession, then [HSN, TSN, ...].
func (s *Session) parseSyncSession(resp stream.List) error {
	if len(resp) != 4 {
		return ErrInvalidStartSessionResponse
	}
	params, ok := resp[3].(stream.List)
	if !stream.EqualToken(resp[0], stream.Call) ||
		!stream.EqualBytes(resp[1], uid.InvokeIDSMU[:]) ||
		!stream.EqualBytes(resp[2], uid.MethodIDSMSyncSession[:]) ||
		!ok || len(params) < 2 {
		// Likely crosstalk from another host on a shared ComID.
		return ErrInvalidStartSessionResponse
	}
	hsn, ok1 := params[0].(uint)
	tsn, ok2 := params[1].(uint)
	if !ok1 || !ok2 || int(hsn) != s.HSN {
		return ErrInvalidStartSessionResponse
	}
	s.TSN = int(tsn)
	return nil
}

// authenticate runs the explicit authenticate exchange used for the
// Enterprise half of WithHostChallenge. The table package carries the
// general-purpose version; this stays here so session startup has no
// dependency on it.
func (s *Session) authenticate(authority uid.AuthorityObjectUID, proof []byte) error {
	mc := method.NewMethodCall(uid.InvokeIDThisSP, uid.OpalEnterpriseAuthenticate, s.MethodFlags)
	mc.Bytes(authority[:])
	mc.StartOptionalParameter(0, "Challenge")
	mc.Bytes(proof)
	mc.EndOptionalParameter()
	resp, err := s.ExecuteMethod(mc)
	if err != nil {
		return err
	}
	res, ok := resp[0].(stream.List)
	if !ok || len(res) == 0 {
		return method.ErrMalformedMethodResponse
	}
	v, ok := res[0].(uint)
	if !ok {
		return method.ErrMalformedMethodResponse
	}
	if v == 0 {
		return errors.New("authentication failed")
	}
	return nil
}

// properties negotiates communication parameters, sending our preferred
// host properties and returning what the TPer settled on for both sides.
func (cs *ControlSession) properties(rhp *HostProperties) (HostProperties, TPerProperties, error) {
	mc := method.NewMethodCall(uid.InvokeIDSMU, uid.MethodIDSMProperties, cs.Session.MethodFlags)
	mc.StartOptionalParameter(0, "HostProperties")
	mc.StartList()
	mc.NamedUInt("MaxMethods", rhp.MaxMethods)
	mc.NamedUInt("MaxSubpackets", rhp.MaxSubpackets)
	mc.NamedUInt("MaxPacketSize", rhp.MaxPacketSize)
	mc.NamedUInt("MaxPackets", rhp.MaxPackets)
	mc.NamedUInt("MaxComPacketSize", rhp.MaxComPacketSize)
	if rhp.MaxResponseComPacketSize != nil {
		mc.NamedUInt("MaxResponseComPacketSize", *rhp.MaxResponseComPacketSize)
	}
	mc.NamedUInt("MaxIndTokenSize", rhp.MaxIndTokenSize)
	mc.NamedUInt("MaxAggTokenSize", rhp.MaxAggTokenSize)
	mc.NamedBool("ContinuedTokens", rhp.ContinuedTokens)
	mc.NamedBool("SequenceNumbers", rhp.SequenceNumbers)
	mc.NamedBool("AckNak", rhp.AckNak)
	mc.NamedBool("Asynchronous", rhp.Asynchronous)
	mc.EndList()
	mc.EndOptionalParameter()

	resp, err := cs.ExecuteMethod(mc)
	if err != nil {
		return HostProperties{}, TPerProperties{}, err
	}

	if len(resp) != 4 {
		return HostProperties{}, TPerProperties{}, ErrInvalidPropertiesResponse
	}
	params, ok := resp[3].(stream.List)
	if !stream.EqualToken(resp[0], stream.Call) ||
		!stream.EqualBytes(resp[1], uid.InvokeIDSMU[:]) ||
		!stream.EqualBytes(resp[2], uid.MethodIDSMProperties[:]) ||
		!ok || len(params) != 5 {
		return HostProperties{}, TPerProperties{}, ErrInvalidPropertiesResponse
	}

	// First the TPer's properties, then (behind the optional-parameter
	// name) the host properties it granted us.
	tpParams, ok1 := params[0].(stream.List)
	hpParams, ok2 := params[3].(stream.List)
	if !ok1 || !ok2 {
		return HostProperties{}, TPerProperties{}, ErrInvalidPropertiesResponse
	}

	hp := InitialHostProperties
	tp := InitialTPerProperties
	if err := eachNamedUInt(tpParams, tp.assign); err != nil {
		return HostProperties{}, TPerProperties{}, err
	}
	if err := eachNamedUInt(hpParams, hp.assign); err != nil {
		return HostProperties{}, TPerProperties{}, err
	}
	return hp, tp, nil
}

// eachNamedUInt walks a list of StartName/name/value triples, handing
// every uinteger-valued name to assign.
func eachNamedUInt(params stream.List, assign func(name string, v uint)) error {
	for i, p := range params {
		if !stream.EqualToken(p, stream.StartName) {
			continue
		}
		if i+2 >= len(params) {
			return ErrInvalidPropertiesResponse
		}
		n, ok1 := params[i+1].([]byte)
		v, ok2 := params[i+2].(uint)
		if !ok1 || !ok2 {
			return ErrInvalidPropertiesResponse
		}
		assign(string(n), v)
	}
	return nil
}

func (hp *HostProperties) assign(name string, v uint) {
	switch name {
	case "MaxMethods":
		hp.MaxMethods = v
	case "MaxSubpackets":
		hp.MaxSubpackets = v
	case "MaxPacketSize":
		hp.MaxPacketSize = v
	case "MaxPackets":
		hp.MaxPackets = v
	case "MaxComPacketSize":
		hp.MaxComPacketSize = v
	case "MaxResponseComPacketSize":
		hp.MaxResponseComPacketSize = &v
	case "MaxIndTokenSize":
		hp.MaxIndTokenSize = v
	case "MaxAggTokenSize":
		hp.MaxAggTokenSize = v
	case "ContinuedTokens":
		hp.ContinuedTokens = v > 0
	case "SequenceNumbers":
		hp.SequenceNumbers = v > 0
	case "AckNak":
		hp.AckNak = v > 0
	case "Asynchronous":
		hp.Asynchronous = v > 0
	}
}

func (tp *TPerProperties) assign(name string, v uint) {
	switch name {
	case "MaxMethods":
		tp.MaxMethods = v
	case "MaxSubpackets":
		tp.MaxSubpackets = v
	case "MaxPacketSize":
		tp.MaxPacketSize = v
	case "MaxPackets":
		tp.MaxPackets = v
	case "MaxComPacketSize":
		tp.MaxComPacketSize = v
	case "MaxResponseComPacketSize":
		tp.MaxResponseComPacketSize = &v
	case "MaxSessions":
		tp.MaxSessions = &v
	case "MaxReadSessions":
		tp.MaxReadSessions = &v
	case "MaxIndTokenSize":
		tp.MaxIndTokenSize = v
	case "MaxAggTokenSize":
		tp.MaxAggTokenSize = v
	case "MaxAuthentications":
		tp.MaxAuthentications = &v
	case "MaxTransactionLimit":
		tp.MaxTransactionLimit = &v
	case "DefSessionTimeout":
		tp.DefSessionTimeout = &v
	case "MaxSessionTimeout":
		tp.MaxSessionTimeout = &v
	case "MinSessionTimeout":
		tp.MinSessionTimeout = &v
	case "DefTransTimeout":
		tp.DefTransTimeout = &v
	case "MaxTransTimeout":
		tp.MaxTransTimeout = &v
	case "MinTransTimeout":
		tp.MinTransTimeout = &v
	case "MaxComIDTime":
		tp.MaxComIDTime = &v
	case "ContinuedTokens":
		tp.ContinuedTokens = v > 0
	case "SequenceNumbers":
		tp.SequenceNumbers = v > 0
	case "AckNak":
		tp.AckNak = v > 0
	case "Asynchronous":
		tp.Asynchronous = v > 0
	}
}

func (cs *ControlSession) Close() error {
	// Control sessions cannot be closed
	return nil
}

// DontAutoClose marks the session as destroyed on the TPer side; Close
// becomes local bookkeeping only. Used after Revert/RevertSP, which tear
// the session down as a side effect.
func (s *Session) DontAutoClose() {
	s.dontAutoClose = true
}

// Close ends the session, discarding any transport error from the final
// EndOfSession send per the "ignore errors on close" contract. Equivalent
// to CloseContext(context.Background()).
func (s *Session) Close() error {
	return s.CloseContext(context.Background())
}

// CloseContext ends the session. If ctx is cancelled while waiting for
// the TPer's EndOfSession echo, the wait is abandoned and ctx.Err()
// returned; the session is still marked closed since our half was sent.
func (s *Session) CloseContext(ctx context.Context) error {
	if s.closed {
		return ErrSessionAlreadyClosed
	}
	s.closed = true
	if s.dontAutoClose {
		return nil
	}
	if err := s.c.Send(s, stream.Token(stream.EndOfSession)); err != nil {
		// The session is closed on our side either way; a failed final
		// send is not reported.
		return nil
	}

	for i := s.ReceiveRetries; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := s.c.Receive(s)
		if err != nil {
			return err
		}
		if len(resp) > 0 {
			if !stream.EqualToken(resp, stream.EndOfSession) {
				return fmt.Errorf("expected EOS, received other data")
			}
			break
		}
		if i == 0 {
			return newTimeoutError(method.ErrMethodTimeout)
		}
		sleepOrDone(ctx, s.ReceiveInterval)
	}
	return nil
}

// ExecuteMethod sends mc and waits for its response. Equivalent to
// ExecuteMethodContext(context.Background(), mc).
func (s *Session) ExecuteMethod(mc *method.MethodCall) (stream.List, error) {
	return s.ExecuteMethodContext(context.Background(), mc)
}

// ExecuteMethodContext sends mc and polls for its response, honouring ctx
// for cancellation of the poll. The send itself is not cancellable: once
// the command is on the wire the TPer is processing it regardless.
func (s *Session) ExecuteMethodContext(ctx context.Context, mc *method.MethodCall) (stream.List, error) {
	if s.closed {
		return nil, ErrSessionAlreadyClosed
	}
	b, err := mc.MarshalBinary()
	if err != nil {
		return nil, err
	}

	// Synchronous mode: any payload already pending on the ComID belongs
	// to somebody else's exchange.
	resp, err := s.c.Receive(s)
	if err != nil {
		return nil, err
	}
	if len(resp) > 0 {
		return nil, method.ErrReceivedUnexpectedResponse
	}

	if err = s.c.Send(s, b); err != nil {
		return nil, err
	}

	// "3.3.10.2.1 Restrictions (3.b)": until the TPer has prepared the
	// response, IF-RECV yields an empty ComPacket with OutstandingData set.
	// Poll until a payload arrives or the retry budget runs out.
	for i := s.ReceiveRetries; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err = s.c.Receive(s)
		if err != nil {
			return nil, err
		}
		if len(resp) > 0 {
			break
		}
		if i == 0 {
			return nil, newTimeoutError(method.ErrMethodTimeout)
		}
		sleepOrDone(ctx, s.ReceiveInterval)
	}

	reply, err := stream.Decode(resp)
	if err != nil {
		return nil, err
	}
	if len(reply) < 2 {
		return nil, method.ErrEmptyMethodResponse
	}

	if err := s.checkTPerCloseSession(reply); err != nil {
		return nil, err
	}

	// Session-manager methods and regular methods differ in framing, but
	// both end with EndOfData and the status code list.
	tok, ok1 := reply[len(reply)-2].(stream.TokenType)
	status, ok2 := reply[len(reply)-1].(stream.List)
	if !ok1 || !ok2 || tok != stream.EndOfData || len(status) == 0 {
		return nil, method.ErrMalformedMethodResponse
	}
	scRaw, ok := status[0].(uint)
	if !ok {
		return nil, method.ErrMalformedMethodResponse
	}
	if sc := method.MethodStatusCode(scRaw); sc != method.MethodStatusSuccess {
		return nil, newProtocolError(sc)
	}
	return reply[:len(reply)-2], nil
}

// checkTPerCloseSession detects the SMU CloseSession call a TPer sends
// when it forcefully tears our session down.
func (s *Session) checkTPerCloseSession(reply stream.List) error {
	if len(reply) < 4 {
		return nil
	}
	tok, ok1 := reply[0].(stream.TokenType)
	iid, ok2 := reply[1].([]byte)
	mid, ok3 := reply[2].([]byte)
	params, ok4 := reply[3].(stream.List)
	if !ok1 || !ok2 || !ok3 || !ok4 ||
		tok != stream.Call ||
		!bytes.Equal(iid, uid.InvokeIDSMU[:]) ||
		!bytes.Equal(mid, uid.MethodIDSMCloseSession[:]) {
		return nil
	}
	if len(params) < 2 {
		return method.ErrReceivedUnexpectedResponse
	}
	hsn, ok1 := params[0].(uint)
	tsn, ok2 := params[1].(uint)
	if ok1 && ok2 && int(hsn) == s.HSN && int(tsn) == s.TSN {
		return method.ErrTPerClosedSession
	}
	return method.ErrReceivedUnexpectedResponse
}

// sleepOrDone waits for either d to elapse or ctx to be cancelled,
// whichever comes first.
func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Notify sends a prepared method call without expecting a response.
func (s *Session) Notify(mc *method.MethodCall) error {
	b, err := mc.MarshalBinary()
	if err != nil {
		return err
	}
	return s.c.Send(s, b)
}

func init() {
	sessionRand = rand.New(rand.NewSource(time.Now().UTC().UnixNano()))
}
