// Copyright (c) 2022 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// gosedctl manages self-encrypting drives: take-ownership, shadow-MBR
// image loading, revert (SID or PSID), drive-level sanitize, and a
// read-only capability report.

package main

import (
	"github.com/alecthomas/kong"
	"github.com/open-source-firmware/go-tcg-storage/pkg/cmdutil"
)

const (
	programName = "gosedctl"
	programDesc = "Go SED control"
)

func main() {
	options := []kong.Option{
		kong.Name(programName),
		kong.Description(programDesc),
		kong.UsageOnError(),
		kong.NamedMapper("accessiblefile", cmdutil.AccessibleFileMapper()),
		// Prompt for password flags that were not given on the command
		// line; each password is entered once, with no confirming entry.
		kong.Resolvers(cmdutil.ResolvePassword(false)),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
	}

	kctx := kong.Parse(&cli, options...)
	kctx.FatalIfErrorf(kctx.Run(&context{}))
}
