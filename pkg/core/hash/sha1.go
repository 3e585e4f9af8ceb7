// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Hand-rolled SHA-1 (FIPS 180-1), kept independent of crypto/sha1 so the
// hashing component can be verified bit-for-bit against the published
// test vectors rather than trusting the standard library's own.

package hash

import "encoding/binary"

const (
	sha1BlockSize  = 64
	sha1Size       = 20
	sha1InitH0     = 0x67452301
	sha1InitH1     = 0xEFCDAB89
	sha1InitH2     = 0x98BADCFE
	sha1InitH3     = 0x10325476
	sha1InitH4     = 0xC3D2E1F0
)

// sha1State is a from-scratch Merkle-Damgard SHA-1 implementation matching
// the standard library's hash.Hash shape (Write/Sum/Reset/Size/BlockSize)
// so it can be used anywhere a hash.Hash is expected, e.g. by hmac.
type sha1State struct {
	h        [5]uint32
	x        [sha1BlockSize]byte
	nx       int
	totalLen uint64
}

func newSHA1() *sha1State {
	s := &sha1State{}
	s.Reset()
	return s
}

func (d *sha1State) Reset() {
	d.h[0], d.h[1], d.h[2], d.h[3], d.h[4] = sha1InitH0, sha1InitH1, sha1InitH2, sha1InitH3, sha1InitH4
	d.nx = 0
	d.totalLen = 0
}

func (d *sha1State) Size() int      { return sha1Size }
func (d *sha1State) BlockSize() int { return sha1BlockSize }

func (d *sha1State) Write(p []byte) (n int, err error) {
	n = len(p)
	d.totalLen += uint64(n)
	if d.nx > 0 {
		c := copy(d.x[d.nx:], p)
		d.nx += c
		p = p[c:]
		if d.nx == sha1BlockSize {
			sha1Block(d, d.x[:])
			d.nx = 0
		}
	}
	for len(p) >= sha1BlockSize {
		sha1Block(d, p[:sha1BlockSize])
		p = p[sha1BlockSize:]
	}
	if len(p) > 0 {
		d.nx = copy(d.x[:], p)
	}
	return
}

func (d *sha1State) Sum(in []byte) []byte {
	// Copy to avoid mutating the caller's ongoing hash state.
	dc := *d
	bitLen := dc.totalLen * 8

	var tmp [sha1BlockSize]byte
	tmp[0] = 0x80
	if dc.nx < 56 {
		dc.Write(tmp[0 : 56-dc.nx])
	} else {
		dc.Write(tmp[0 : sha1BlockSize+56-dc.nx])
	}
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], bitLen)
	dc.Write(lenBuf[:])

	if dc.nx != 0 {
		panic("hash: internal error: d.nx != 0 after padding")
	}

	var digest [sha1Size]byte
	for i, s := range dc.h {
		binary.BigEndian.PutUint32(digest[i*4:], s)
	}
	return append(in, digest[:]...)
}

func sha1Block(d *sha1State, p []byte) {
	var w [80]uint32
	for len(p) >= sha1BlockSize {
		for i := 0; i < 16; i++ {
			w[i] = binary.BigEndian.Uint32(p[i*4:])
		}
		for i := 16; i < 80; i++ {
			v := w[i-3] ^ w[i-8] ^ w[i-14] ^ w[i-16]
			w[i] = v<<1 | v>>31
		}

		a, b, c, e2, e := d.h[0], d.h[1], d.h[2], d.h[3], d.h[4]

		for i := 0; i < 80; i++ {
			var f uint32
			var k uint32
			switch {
			case i < 20:
				f = (b & c) | (^b & e2)
				k = 0x5A827999
			case i < 40:
				f = b ^ c ^ e2
				k = 0x6ED9EBA1
			case i < 60:
				f = (b & c) | (b & e2) | (c & e2)
				k = 0x8F1BBCDC
			default:
				f = b ^ c ^ e2
				k = 0xCA62C1D6
			}
			tmp := (a<<5 | a>>27) + f + e + k + w[i]
			e = e2
			e2 = c
			c = b<<30 | b>>2
			b = a
			a = tmp
		}

		d.h[0] += a
		d.h[1] += b
		d.h[2] += c
		d.h[3] += e2
		d.h[4] += e

		p = p[sha1BlockSize:]
	}
}

// SHA1 returns the SHA-1 digest of msg (FIPS 180-1).
func SHA1(msg []byte) [sha1Size]byte {
	d := newSHA1()
	d.Write(msg)
	var out [sha1Size]byte
	copy(out[:], d.Sum(nil))
	return out
}
