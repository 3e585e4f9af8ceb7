// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Hand-rolled PBKDF2-HMAC-SHA1 (RFC 2898 §5.2), built on the hand-rolled
// SHA-1/HMAC above rather than golang.org/x/crypto/pbkdf2. See DESIGN.md
// for why this one primitive is not wired to the ecosystem library the
// rest of the module otherwise prefers.

package hash

import "encoding/binary"

// pbkdf2SHA1 derives a dkLen-byte key from password and salt using
// PBKDF2-HMAC-SHA1 with the given iteration count, per RFC 2898 §5.2.
func pbkdf2SHA1(password, salt []byte, iter, dkLen int) []byte {
	numBlocks := (dkLen + sha1Size - 1) / sha1Size
	dk := make([]byte, 0, numBlocks*sha1Size)

	var blockIndex [4]byte
	for i := 1; i <= numBlocks; i++ {
		binary.BigEndian.PutUint32(blockIndex[:], uint32(i))

		u := hmacSHA1(password, append(append([]byte{}, salt...), blockIndex[:]...))
		t := u
		for j := 1; j < iter; j++ {
			u = hmacSHA1(password, u[:])
			for k := range t {
				t[k] ^= u[k]
			}
		}
		dk = append(dk, t[:]...)
	}
	return dk[:dkLen]
}

// PBKDF2SHA1 derives a dkLen-byte key from password and salt using
// PBKDF2-HMAC-SHA1 (RFC 2898) with the given iteration count.
func PBKDF2SHA1(password, salt []byte, iter, dkLen int) []byte {
	return pbkdf2SHA1(password, salt, iter, dkLen)
}
