// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Implements TCG Storage Core Data Stream

package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
)

type TokenType uint8

type List []interface{}

var (
	StartList        TokenType = 0xF0
	EndList          TokenType = 0xF1
	StartName        TokenType = 0xF2
	EndName          TokenType = 0xF3
	Call             TokenType = 0xF8
	EndOfData        TokenType = 0xF9
	EndOfSession     TokenType = 0xFA
	StartTransaction TokenType = 0xFB
	EndTransaction   TokenType = 0xFC
	EmptyAtom        TokenType = 0xFF
	OpalFalse        TokenType = 0x00
	OpalTrue         TokenType = 0x01
	OpalValue        TokenType = 0x01
	OpalPIN          TokenType = 0x03
	OpalWhere        TokenType = 0x00
	ReadLockEnabled  TokenType = 0x05
	WriteLockEnabled TokenType = 0x06

	ErrUnbalancedList              = errors.New("message contained unbalanced list structures")
	ErrMediumIntegerNotImplemented = errors.New("medium integer atoms are not implemented")
	ErrLongIntegerNotImplemented   = errors.New("long integer atoms are not implemented")
)

var tokenNames = map[TokenType]string{
	StartList:        "StartList",
	EndList:          "EndList",
	StartName:        "StartName",
	EndName:          "EndName",
	Call:             "Call",
	EndOfData:        "EndOfData",
	EndOfSession:     "EndOfSession",
	StartTransaction: "StartTransaction",
	EndTransaction:   "EndTransaction",
	EmptyAtom:        "EmptyAtom",
}

func (t *TokenType) String() string {
	if n, ok := tokenNames[*t]; ok {
		return n
	}
	return "<Unknown>"
}

func Token(tok TokenType) []byte {
	return []byte{byte(tok)}
}

// UInt encodes val as the narrowest atom that can hold it: a tiny atom for
// 0-63, otherwise a short atom with a 1, 2, 4, or 8 byte big-endian payload.
func UInt(val uint) []byte {
	switch {
	case val < 64:
		return []byte{uint8(val)}
	case val <= 0xFF:
		return []byte{0x81, uint8(val)}
	case val <= 0xFFFF:
		x := make([]byte, 3)
		x[0] = 0x82
		binary.BigEndian.PutUint16(x[1:], uint16(val))
		return x
	case val <= 0xFFFFFFFF:
		x := make([]byte, 5)
		x[0] = 0x84
		binary.BigEndian.PutUint32(x[1:], uint32(val))
		return x
	default:
		x := make([]byte, 9)
		x[0] = 0x88
		binary.BigEndian.PutUint64(x[1:], uint64(val))
		return x
	}
}

func Bytes(b []byte) []byte {
	// Tiny atom are not used for binary ("3.2.2.3.1 Simple Tokens – Atoms Overview")
	if len(b) < 16 {
		// Short Atom and 0-Length Atom
		return append([]byte{0xa0 | uint8(len(b))}, b...)
	} else if len(b) < 2048 {
		// Medium atom
		return append([]byte{0xd0 | uint8((len(b)>>8)&0x7), uint8(len(b) & 0xff)}, b...)
	} else {
		// Long atom
		return append([]byte{0xe2, uint8((len(b) >> 16) & 0xff), uint8((len(b) >> 8) & 0xff), uint8((len(b) & 0xff))}, b...)
	}
}

// Decode tokenizes b and folds the flat token sequence into nested lists.
// Unsigned integers come back as uint, byte sequences as owned []byte
// copies, and the remaining control tokens as their TokenType. An EndList
// with no matching StartList is an unbalanced message; an unterminated
// StartList at the end of the buffer is tolerated the way a truncated
// aggregate response would be.
func Decode(b []byte) (List, error) {
	toks, err := Tokenize(b)
	if err != nil {
		return nil, err
	}
	lst, _, err := foldList(toks, 0)
	return lst, err
}

// foldList consumes tokens until the list at the current depth closes (or
// the input runs out) and returns the remaining tokens.
func foldList(toks []Atom, depth int) (List, []Atom, error) {
	res := List{}
	for len(toks) > 0 {
		t := toks[0]
		toks = toks[1:]
		switch {
		case t.IsControl(StartList):
			sub, rest, err := foldList(toks, depth+1)
			if err != nil {
				return nil, nil, err
			}
			res = append(res, sub)
			toks = rest
		case t.IsControl(EndList):
			if depth == 0 {
				return nil, nil, ErrUnbalancedList
			}
			return res, toks, nil
		case t.kind == atomControl:
			res = append(res, t.control)
		default:
			v, err := decodeValue(t)
			if err != nil {
				return nil, nil, err
			}
			res = append(res, v)
		}
	}
	return res, nil, nil
}

// decodeValue converts one data atom into its List representation.
func decodeValue(t Atom) (interface{}, error) {
	if b, _, ok := t.Bytes(); ok {
		owned := make([]byte, len(b))
		copy(owned, b)
		return owned, nil
	}
	switch t.kind {
	case atomTiny:
		return uint(t.payload[0]), nil
	case atomShort:
		var v uint
		for _, x := range t.payload {
			v = v<<8 | uint(x)
		}
		return v, nil
	case atomMedium:
		return nil, ErrMediumIntegerNotImplemented
	}
	return nil, ErrLongIntegerNotImplemented
}

func EqualBytes(obj interface{}, b []byte) bool {
	bd, ok := obj.([]byte)
	if !ok {
		return false
	}
	// Special nil case
	if len(b) == 0 && len(bd) == 0 {
		return true
	}
	return bytes.Equal(b, bd)
}

func EqualToken(obj interface{}, b TokenType) bool {
	byt, ok := obj.([]byte)
	if ok {
		return bytes.Equal(byt, []byte{uint8(b)})
	}
	bd, ok := obj.(TokenType)
	if !ok {
		return false
	}
	return bd == b
}

func EqualUInt(obj interface{}, b uint) bool {
	bd, ok := obj.(uint)
	if !ok {
		return false
	}
	return bd == b
}
