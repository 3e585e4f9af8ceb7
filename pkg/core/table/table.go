// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Shared plumbing for TCG table access: Get/Set method construction, row
// decoding, and table enumeration. The Core 2.0 dialects address columns
// by uinteger ID while Enterprise addresses them by ASCII name; the
// column type carries both and the right one is chosen per session.

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

type TableUID [8]byte

var (
	CellBlock_StartRow    uint = 1
	CellBlock_EndRow      uint = 2
	CellBlock_StartColumn uint = 3
	CellBlock_EndColumn   uint = 4

	Table_ColumnUID uint = 0

	ErrEmptyResult = errors.New("empty result")
)

// column names one table column in both addressing conventions.
type column struct {
	id   uint
	name string
}

// key returns the map keys row decoding may find the column under.
func (c column) key() (string, string) {
	return fmt.Sprintf("%d", c.id), c.name
}

// enterprise reports whether the session talks to an Enterprise SSC TPer.
func enterprise(s *core.Session) bool {
	return s.ProtocolLevel == core.ProtocolLevelEnterprise
}

// getMethod/setMethod pick the dialect's method UID. Both dialects share
// the same UID values; keeping the split makes the selection point
// explicit should a future dialect diverge.
func getMethod(s *core.Session) uid.MethodID {
	if enterprise(s) {
		return uid.OpalEnterpriseGet
	}
	return uid.OpalGet
}

func setMethod(s *core.Session) uid.MethodID {
	if enterprise(s) {
		return uid.OpalEnterpriseSet
	}
	return uid.OpalSet
}

// addColumnParam emits one cell-block boundary parameter, addressed per
// the session's dialect.
func addColumnParam(s *core.Session, mc *method.MethodCall, param uint, paramName string, col column) {
	mc.StartOptionalParameter(param, paramName)
	if enterprise(s) {
		mc.Bytes([]byte(col.name))
	} else {
		mc.UInt(col.id)
	}
	mc.EndOptionalParameter()
}

// GetCell is equivalent to GetCellContext(context.Background(), ...).
func GetCell(s *core.Session, row uid.RowUID, col uint, colName string) (interface{}, error) {
	return GetCellContext(context.Background(), s, row, col, colName)
}

func GetCellContext(ctx context.Context, s *core.Session, row uid.RowUID, col uint, colName string) (interface{}, error) {
	m, err := GetPartialRowContext(ctx, s, row, col, colName, col, colName)
	if err != nil {
		return nil, err
	}
	for _, v := range m {
		return v, nil
	}
	return nil, ErrEmptyResult
}

// GetPartialRow is equivalent to GetPartialRowContext(context.Background(), ...).
func GetPartialRow(s *core.Session, row uid.RowUID, startCol uint, startColName string, endCol uint, endColName string) (map[string]interface{}, error) {
	return GetPartialRowContext(context.Background(), s, row, startCol, startColName, endCol, endColName)
}

func GetPartialRowContext(ctx context.Context, s *core.Session, row uid.RowUID, startCol uint, startColName string, endCol uint, endColName string) (map[string]interface{}, error) {
	mc := method.NewMethodCall(uid.InvokingID(row), getMethod(s), s.MethodFlags)
	mc.StartList()
	addColumnParam(s, mc, CellBlock_StartColumn, "startColumn", column{startCol, startColName})
	addColumnParam(s, mc, CellBlock_EndColumn, "endColumn", column{endCol, endColName})
	mc.EndList()
	return runGet(ctx, s, mc)
}

// GetFullRow is equivalent to GetFullRowContext(context.Background(), ...).
func GetFullRow(s *core.Session, row uid.RowUID) (map[string]interface{}, error) {
	return GetFullRowContext(context.Background(), s, row)
}

func GetFullRowContext(ctx context.Context, s *core.Session, row uid.RowUID) (map[string]interface{}, error) {
	mc := method.NewMethodCall(uid.InvokingID(row), getMethod(s), s.MethodFlags)
	mc.StartList()
	mc.EndList()
	return runGet(ctx, s, mc)
}

// runGet executes a prepared Get and unwraps the row-values list into a
// column-keyed map.
func runGet(ctx context.Context, s *core.Session, mc *method.MethodCall) (map[string]interface{}, error) {
	resp, err := s.ExecuteMethodContext(ctx, mc)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, ErrEmptyResult
	}
	if enterprise(s) {
		// EGet wraps the method result in one extra list level.
		inner, ok := resp[0].(stream.List)
		if !ok {
			return nil, method.ErrMalformedMethodResponse
		}
		resp = inner
	}
	val, err := parseGetResult(resp)
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return nil, ErrEmptyResult
	}
	return val, nil
}

// Enumerate is equivalent to EnumerateContext(context.Background(), ...).
func Enumerate(s *core.Session, table uid.TableUID) ([]uid.RowUID, error) {
	return EnumerateContext(context.Background(), s, table)
}

func EnumerateContext(ctx context.Context, s *core.Session, table uid.TableUID) ([]uid.RowUID, error) {
	mc := method.NewMethodCall(uid.InvokingID(table), uid.OpalNext, s.MethodFlags)
	resp, err := s.ExecuteMethodContext(ctx, mc)
	if err != nil {
		return nil, err
	}
	result, ok := resp[0].(stream.List)
	if !ok {
		return nil, method.ErrMalformedMethodResponse
	}
	uidrefs, ok := result[0].(stream.List)
	if !ok {
		return nil, method.ErrMalformedMethodResponse
	}
	res := []uid.RowUID{}
	for _, ur := range uidrefs {
		r := uid.RowUID{}
		if !copyRowUID(&r, ur) {
			return nil, method.ErrMalformedMethodResponse
		}
		res = append(res, r)
	}
	return res, nil
}

func parseGetResult(res stream.List) (map[string]interface{}, error) {
	methodResult, ok := res[0].(stream.List)
	if !ok {
		return nil, method.ErrMalformedMethodResponse
	}
	if len(methodResult) == 0 {
		return nil, ErrEmptyResult
	}
	inner, ok := methodResult[0].(stream.List)
	if !ok {
		return nil, method.ErrMalformedMethodResponse
	}
	if len(inner) == 0 {
		return nil, ErrEmptyResult
	}
	return parseRowValues(inner)
}

// parseRowValues maps a RowValues list into column-keyed values. Core 2.0
// names columns with uintegers, Enterprise with ASCII; both become map
// keys as strings.
func parseRowValues(rv stream.List) (map[string]interface{}, error) {
	res := map[string]interface{}{}
	for i := range rv {
		if !stream.EqualToken(rv[i], stream.StartName) {
			continue
		}
		key := ""
		switch n := rv[i+1].(type) {
		case uint:
			key = fmt.Sprintf("%d", n)
		case []byte:
			key = string(n)
		default:
			return nil, method.ErrMalformedMethodResponse
		}
		if !stream.EqualToken(rv[i+2], stream.EndName) {
			res[key] = rv[i+2]
		}
	}
	return res, nil
}

// rowReader decodes the typed columns of one row-values map. Lookups that
// find the column under either addressing convention coerce the value to
// the requested type; a present-but-mistyped value poisons the reader and
// surfaces from Err. Absent columns are skipped, matching how drives omit
// unsupported optional columns.
type rowReader struct {
	cols map[string]interface{}
	err  error
}

func newRowReader(cols map[string]interface{}) *rowReader {
	return &rowReader{cols: cols}
}

func (r *rowReader) Err() error {
	return r.err
}

func (r *rowReader) lookup(col column) (interface{}, bool) {
	if r.err != nil {
		return nil, false
	}
	id, name := col.key()
	if v, ok := r.cols[id]; ok {
		return v, true
	}
	if name != "" {
		if v, ok := r.cols[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (r *rowReader) fail() {
	r.err = method.ErrMalformedMethodResponse
}

// UID fills dst with an 8-byte UID reference column.
func (r *rowReader) UID(dst *uid.RowUID, col column) {
	v, ok := r.lookup(col)
	if !ok {
		return
	}
	if !copyRowUID(dst, v) {
		r.fail()
	}
}

// OptUIDRef fills dst with an optional UID reference column.
func (r *rowReader) OptUIDRef(dst **uid.RowUID, col column) {
	v, ok := r.lookup(col)
	if !ok {
		return
	}
	out := &uid.RowUID{}
	if !copyRowUID(out, v) {
		r.fail()
		return
	}
	*dst = out
}

// OptString fills dst from an ASCII column.
func (r *rowReader) OptString(dst **string, col column) {
	v, ok := r.lookup(col)
	if !ok {
		return
	}
	b, ok := v.([]byte)
	if !ok {
		r.fail()
		return
	}
	s := string(b)
	*dst = &s
}

// Bytes fills dst from a byte-sequence column.
func (r *rowReader) Bytes(dst *[]byte, col column) {
	v, ok := r.lookup(col)
	if !ok {
		return
	}
	b, ok := v.([]byte)
	if !ok {
		r.fail()
		return
	}
	*dst = b
}

// OptU32 fills dst from an uinteger column that fits 32 bits.
func (r *rowReader) OptU32(dst **uint32, col column) {
	v, ok := r.lookup(col)
	if !ok {
		return
	}
	n, ok := v.(uint)
	if !ok {
		r.fail()
		return
	}
	out := uint32(n)
	*dst = &out
}

// OptU64 fills dst from an uinteger column.
func (r *rowReader) OptU64(dst **uint64, col column) {
	v, ok := r.lookup(col)
	if !ok {
		return
	}
	n, ok := v.(uint)
	if !ok {
		r.fail()
		return
	}
	out := uint64(n)
	*dst = &out
}

// OptBool fills dst from a boolean column (encoded as uinteger 0/1).
func (r *rowReader) OptBool(dst **bool, col column) {
	v, ok := r.lookup(col)
	if !ok {
		return
	}
	n, ok := v.(uint)
	if !ok {
		r.fail()
		return
	}
	out := n > 0
	*dst = &out
}

// UIntList passes each element of a list-of-uintegers column to fn.
func (r *rowReader) UIntList(col column, fn func(uint)) {
	v, ok := r.lookup(col)
	if !ok {
		return
	}
	l, ok := v.(stream.List)
	if !ok {
		r.fail()
		return
	}
	for _, e := range l {
		n, ok := e.(uint)
		if !ok {
			r.fail()
			return
		}
		fn(n)
	}
}

func copyRowUID(dst *uid.RowUID, v interface{}) bool {
	b, ok := v.([]byte)
	if !ok || len(b) < 8 {
		return false
	}
	copy(dst[:], b[:8])
	return true
}

// setCall builds a dialect-correct Set invocation: named values addressed
// by uinteger on Core 2.0 dialects, by ASCII name on Enterprise, wrapped
// in the per-dialect Values framing.
type setCall struct {
	s  *core.Session
	mc *method.MethodCall
}

func newSetCall(s *core.Session, row uid.RowUID) *setCall {
	return &setCall{s: s, mc: NewSetCall(s, row)}
}

func (c *setCall) named(col column, emit func(mc *method.MethodCall)) {
	c.mc.Token(stream.StartName)
	if enterprise(c.s) {
		c.mc.Bytes([]byte(col.name))
	} else {
		c.mc.UInt(col.id)
	}
	emit(c.mc)
	c.mc.Token(stream.EndName)
}

func (c *setCall) NamedBytes(col column, v []byte) {
	c.named(col, func(mc *method.MethodCall) { mc.Bytes(v) })
}

func (c *setCall) NamedBool(col column, v bool) {
	c.named(col, func(mc *method.MethodCall) { mc.Bool(v) })
}

func (c *setCall) NamedUInt(col column, v uint) {
	c.named(col, func(mc *method.MethodCall) { mc.UInt(v) })
}

func (c *setCall) NamedUIntList(col column, vs []uint) {
	c.named(col, func(mc *method.MethodCall) {
		mc.StartList()
		for _, v := range vs {
			mc.UInt(v)
		}
		mc.EndList()
	})
}

// Commit closes the Values framing and executes the Set.
func (c *setCall) Commit() error {
	FinishSetCall(c.s, c.mc)
	_, err := c.s.ExecuteMethod(c.mc)
	return err
}

// NewSetCall opens a Set invocation positioned inside the Values list;
// callers append named values and close with FinishSetCall. The Enterprise
// ESet takes two required leading arguments and an extra list level around
// the row values.
func NewSetCall(s *core.Session, row uid.RowUID) *method.MethodCall {
	mc := method.NewMethodCall(uid.InvokingID(row), setMethod(s), s.MethodFlags)
	if enterprise(s) {
		mc.StartList()
		mc.EndList()
		mc.StartList()
		mc.StartList()
	} else {
		mc.StartOptionalParameter(1, "Values")
		mc.StartList()
	}
	return mc
}

func FinishSetCall(s *core.Session, mc *method.MethodCall) {
	if enterprise(s) {
		mc.EndList()
		mc.EndList()
	} else {
		mc.EndList()
		mc.EndOptionalParameter()
	}
}
