// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmdutil

import (
	"fmt"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/hash"
)

// PasswordEmbed is the kong flag pair shared by commands that take an
// authentication password: the password itself and the hashing convention
// used to turn it into the on-drive credential.
type PasswordEmbed struct {
	Password string `required:"" env:"PASS" help:"Authentication password"`
	Hash     string `optional:"" env:"HASH" default:"dta" enum:"sedutil-dta,dta,sha1,raw" help:"Password hashing: dta (sedutil PBKDF2-SHA1) or raw (send verbatim, e.g. PSID)"`
}

// GenerateHash derives the credential bytes from the password flag,
// salting with the drive's serial number per the selected convention.
func (t *PasswordEmbed) GenerateHash(coreObj *core.Core) ([]byte, error) {
	if t.Hash == "raw" {
		// Printed credentials like the PSID are the raw proof themselves.
		return []byte(t.Password), nil
	}
	serial, err := coreObj.SerialNumber()
	if err != nil {
		return nil, fmt.Errorf("reading drive serial for salting failed: %v", err)
	}
	switch t.Hash {
	case "sedutil-dta", "dta", "sha1":
		// The Drive-Trust-Alliance sedutil convention: PBKDF2-HMAC-SHA1
		// over the serial-salted password.
		return hash.HashSedutilDTA(t.Password, string(serial)), nil
	}
	return nil, fmt.Errorf("unknown hash method %q", t.Hash)
}
