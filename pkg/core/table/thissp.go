// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Methods invoked on the session's own SP: authentication and the TPer
// random number generator.

package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/method"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/stream"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// ThisSP_Random is equivalent to ThisSP_RandomContext(context.Background(), ...).
func ThisSP_Random(s *core.Session, count uint) ([]byte, error) {
	return ThisSP_RandomContext(context.Background(), s, count)
}

// ThisSP_RandomContext asks the TPer for count random bytes.
func ThisSP_RandomContext(ctx context.Context, s *core.Session, count uint) ([]byte, error) {
	mc := method.NewMethodCall(uid.InvokeIDThisSP, uid.OpalRandom, s.MethodFlags)
	mc.UInt(count)
	resp, err := s.ExecuteMethodContext(ctx, mc)
	if err != nil {
		return nil, err
	}
	res, ok := resp[0].(stream.List)
	if !ok || len(res) == 0 {
		return nil, method.ErrMalformedMethodResponse
	}
	rnd, ok := res[0].([]byte)
	if !ok {
		return nil, method.ErrMalformedMethodResponse
	}
	return rnd, nil
}

// authenticateMethod picks the dialect's authenticate method: the Core 2.0
// Authenticate or the Enterprise EAuthenticate (same UID value, distinct
// selection point).
func authenticateMethod(s *core.Session) uid.MethodID {
	if enterprise(s) {
		return uid.OpalEnterpriseAuthenticate
	}
	return uid.OpalAuthenticate
}

// ThisSP_Authenticate is equivalent to ThisSP_AuthenticateContext(context.Background(), ...).
func ThisSP_Authenticate(s *core.Session, authority uid.AuthorityObjectUID, proof []byte) error {
	return ThisSP_AuthenticateContext(context.Background(), s, authority, proof)
}

// ThisSP_AuthenticateContext elevates the session to the given authority.
// The proof is the challenge parameter: name 0 on Core 2.0 dialects, the
// string "Challenge" on Enterprise (chosen via the session's method
// flags). Success is the method returning uinteger 1; 0 is a refused
// credential.
func ThisSP_AuthenticateContext(ctx context.Context, s *core.Session, authority uid.AuthorityObjectUID, proof []byte) error {
	mc := method.NewMethodCall(uid.InvokeIDThisSP, authenticateMethod(s), s.MethodFlags)
	mc.Bytes(authority[:])
	mc.StartOptionalParameter(0, "Challenge")
	mc.Bytes(proof)
	mc.EndOptionalParameter()
	resp, err := s.ExecuteMethodContext(ctx, mc)
	if err != nil {
		return err
	}
	res, ok := resp[0].(stream.List)
	if !ok || len(res) == 0 {
		return method.ErrMalformedMethodResponse
	}
	switch v := res[0].(type) {
	case uint:
		if v == 0 {
			return ErrAuthenticationFailed
		}
		return nil
	case []byte:
		return fmt.Errorf("got a challenge back, not implemented")
	}
	return method.ErrMalformedMethodResponse
}
