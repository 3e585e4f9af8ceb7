// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Implements TCG Storage Core Table operations

package table

import (
	"github.com/open-source-firmware/go-tcg-storage/pkg/core"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/method"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
)

var (
	Base_TableTable    = TableUID{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	Base_MethodIDTable = TableUID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x00}
)

// Base_Method_IsSupported reports whether a method can be invoked on the
// table identified by the given invoking UID by probing its row in the
// method table. Any failure (including NotAuthorized) is treated as
// unsupported.
func Base_Method_IsSupported(s *core.Session, invoke uid.InvokingID) bool {
	mc := method.NewMethodCall(invoke, uid.MethodIDGet, s.MethodFlags)
	mc.StartList()
	mc.StartOptionalParameter(CellBlock_StartColumn, "startColumn")
	mc.UInt(Table_ColumnUID)
	mc.EndOptionalParameter()
	mc.StartOptionalParameter(CellBlock_EndColumn, "endColumn")
	mc.UInt(Table_ColumnUID)
	mc.EndOptionalParameter()
	mc.EndList()
	_, err := s.ExecuteMethod(mc)
	return err == nil
}
