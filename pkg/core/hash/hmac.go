// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Hand-rolled HMAC (RFC 2104) over the hand-rolled SHA-1 above.

package hash

import "hash"

// hmacSHA1 computes HMAC-SHA1(key, msg) per RFC 2104 §2.
func hmacSHA1(key, msg []byte) [sha1Size]byte {
	h := func() hash.Hash { return newSHA1() }
	blockSize := sha1BlockSize

	if len(key) > blockSize {
		k := SHA1(key)
		key = k[:]
	}
	if len(key) < blockSize {
		padded := make([]byte, blockSize)
		copy(padded, key)
		key = padded
	}

	ipad := make([]byte, blockSize)
	opad := make([]byte, blockSize)
	for i := 0; i < blockSize; i++ {
		ipad[i] = key[i] ^ 0x36
		opad[i] = key[i] ^ 0x5C
	}

	inner := h()
	inner.Write(ipad)
	inner.Write(msg)
	innerSum := inner.Sum(nil)

	outer := h()
	outer.Write(opad)
	outer.Write(innerSum)

	var mac [sha1Size]byte
	copy(mac[:], outer.Sum(nil))
	return mac
}

// HMACSHA1 returns HMAC-SHA1(key, msg) as defined by RFC 2104.
func HMACSHA1(key, msg []byte) [sha1Size]byte {
	return hmacSHA1(key, msg)
}
