// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// C_PIN credential table rows.
// ref: 5.3.2.12 Credential Table Group - C_PIN (Object Table)
// https://trustedcomputinggroup.org/wp-content/uploads/TCG_Storage_Architecture_Core_Spec_v2.01_r1.00.pdf

package table

import (
	"context"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
)

type CPINInfoRow struct {
	UID         uid.RowUID
	Name        *string
	CommonName  *string
	PIN         []byte
	CharSet     []byte
	TryLimit    *uint32
	Tries       *uint32
	Persistence *bool
}

// CPINInfo is equivalent to CPINInfoContext(context.Background(), s).
func CPINInfo(s *core.Session) (*CPINInfoRow, error) {
	return CPINInfoContext(context.Background(), s)
}

// CPINInfoContext reads the SID credential's C_PIN row, surfacing the
// retry budget columns a caller needs before burning PIN attempts.
func CPINInfoContext(ctx context.Context, s *core.Session) (*CPINInfoRow, error) {
	cols, err := GetFullRowContext(ctx, s, uid.Admin_C_PIN_SIDRow)
	if err != nil {
		return nil, err
	}

	row := CPINInfoRow{}
	r := newRowReader(cols)
	r.UID(&row.UID, column{0, "UID"})
	r.OptString(&row.Name, column{1, "Name"})
	r.OptString(&row.CommonName, column{2, "CommonName"})
	r.Bytes(&row.PIN, column{3, "PIN"})
	r.Bytes(&row.CharSet, column{4, "CharSet"})
	r.OptU32(&row.TryLimit, column{5, "TryLimit"})
	r.OptU32(&row.Tries, column{6, "Tries"})
	r.OptBool(&row.Persistence, column{7, "Persistence"})
	if err := r.Err(); err != nil {
		return nil, err
	}
	return &row, nil
}
