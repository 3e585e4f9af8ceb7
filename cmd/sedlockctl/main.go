// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/open-source-firmware/go-tcg-storage/pkg/cmdutil"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/hash"
	"github.com/open-source-firmware/go-tcg-storage/pkg/locking"
)

const (
	programName = "sedlockctl"
	programDesc = "List, lock and unlock TCG Opal/Enterprise locking ranges"
)

func main() {
	kctx := kong.Parse(&cli,
		kong.Name(programName),
		kong.Description(programDesc),
		kong.UsageOnError(),
		kong.NamedMapper("accessiblefile", cmdutil.AccessibleFileMapper()),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	coreObj, err := core.NewCore(cli.Device.Device)
	kctx.FatalIfErrorf(err)
	defer coreObj.Close()

	serial, err := coreObj.SerialNumber()
	kctx.FatalIfErrorf(err)

	sidPIN := []byte{}
	if cli.Sidpin != "" {
		switch cli.Sidhash {
		case "sedutil-dta", "dta", "sha1":
			sidPIN = hash.HashSedutilDTA(cli.Sidpin, string(serial))
		default:
			kctx.FatalIfErrorf(fmt.Errorf("unknown hash method %q", cli.Sidhash))
		}
	}

	initOpts := []locking.InitializeOpt{}
	if len(sidPIN) > 0 {
		initOpts = append(initOpts, locking.WithAuth(locking.DefaultAdminAuthority(sidPIN)))
	}
	if cli.Sidpinmsid {
		initOpts = append(initOpts, locking.WithAuth(locking.DefaultAuthorityWithMSID))
	}

	cs, lmeta, err := locking.Initialize(coreObj, initOpts...)
	kctx.FatalIfErrorf(err)
	defer cs.Close()

	pin, err := cli.PasswordEmbed.GenerateHash(coreObj)
	kctx.FatalIfErrorf(err)

	var auth locking.LockingSPAuthenticator
	if cli.User != "" {
		a, ok := locking.AuthorityFromName(cli.User, pin)
		if !ok {
			kctx.FatalIfErrorf(fmt.Errorf("authority %q is not known for this device", cli.User))
		}
		auth = a
	} else {
		auth = locking.DefaultAuthority(pin)
	}

	l, err := locking.NewSession(cs, lmeta, auth)
	kctx.FatalIfErrorf(err)
	defer l.Close()

	err = kctx.Run(&context{session: l})
	kctx.FatalIfErrorf(err)
}
