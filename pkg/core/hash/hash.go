// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hash

import "fmt"

// HashSedutilDTA derives the PIN hash used by sedutil-cli's "DTA" PBKDF2
// convention: serial padded to 20 bytes as the salt, 75000 iterations,
// 32-byte output. This needs to match https://github.com/Drive-Trust-Alliance/sedutil/.
func HashSedutilDTA(password string, serial string) []byte {
	salt := fmt.Sprintf("%-20s", serial)
	return PBKDF2SHA1([]byte(password), []byte(salt[:20]), 75000, 32)
}
