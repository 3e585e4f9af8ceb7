// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"fmt"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core/method"
)

// TransportErrorKind classifies a failure by the layer it surfaced at.
// Transport errors are never promoted to protocol errors: an IF-RECV/IF-SEND
// that fails at the OS or drive level stays Sys/AtaFailed/NvmeFailed even
// when it happens in the middle of a TCG session.
type TransportErrorKind int

const (
	KindSys TransportErrorKind = iota
	KindNotSupported
	KindIoctlFailed
	KindIoTimeout
	KindAtaFailed
	KindNvmeFailed
	KindOperationTimeout
)

func (k TransportErrorKind) String() string {
	switch k {
	case KindSys:
		return "Sys"
	case KindNotSupported:
		return "NotSupported"
	case KindIoctlFailed:
		return "IoctlFailed"
	case KindIoTimeout:
		return "IoTimeout"
	case KindAtaFailed:
		return "AtaFailed"
	case KindNvmeFailed:
		return "NvmeFailed"
	case KindOperationTimeout:
		return "OperationTimeout"
	default:
		return "Unknown"
	}
}

// TransportError wraps a failure below the TCG method layer: an OS error, an
// ioctl failure, or the session poll loop giving up. DriveStatus carries the
// native drive status word when the caller has one to offer (0 otherwise).
type TransportError struct {
	Kind        TransportErrorKind
	Err         error
	DriveStatus uint32
}

func (e *TransportError) Error() string {
	if e.DriveStatus != 0 {
		return fmt.Sprintf("%s: %v (drive status 0x%x)", e.Kind, e.Err, e.DriveStatus)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError wraps a non-Success TCG method status. It is a sibling of
// TransportError: a method call that round-trips cleanly but is refused by
// the TPer (SP_BUSY, NOT_AUTHORIZED, ...) is a protocol failure, not a
// transport one.
type ProtocolError struct {
	Status method.MethodStatusCode
	Err    error
}

func (e *ProtocolError) Error() string {
	return e.Status.String()
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func newTimeoutError(err error) error {
	return &TransportError{Kind: KindOperationTimeout, Err: err}
}

func newProtocolError(sc method.MethodStatusCode) error {
	err, ok := method.MethodStatusCodeMap[sc]
	if !ok {
		err = fmt.Errorf("method returned unknown status code 0x%02x", uint(sc))
	}
	return &ProtocolError{Status: sc, Err: err}
}
