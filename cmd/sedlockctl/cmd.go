// Copyright (c) 2022 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/open-source-firmware/go-tcg-storage/pkg/cmdutil"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/table"
	"github.com/open-source-firmware/go-tcg-storage/pkg/locking"
)

type context struct {
	session *locking.LockingSP
}

type listCmd struct{}

type lockAllCmd struct{}

type unlockAllCmd struct {
	KeepMbrDone bool `optional:"" short:"k" help:"Keep MBRDone status as is"`
}

type mbrDoneCmd struct {
	Done bool `optional:"" help:"Status to set the MBRDone"`
}

type readMBRCmd struct {
	ReadMbrSize int `flag:"" default:"0"`
}

var cli struct {
	Device struct {
		Device    string       `arg:"" required:"" type:"accessiblefile" help:"Path to SED device (e.g. /dev/nvme0)"`
		List      listCmd      `cmd:"" help:"List all ranges (default)"`
		LockAll   lockAllCmd   `cmd:"" help:"Locks all ranges completely"`
		UnlockAll unlockAllCmd `cmd:"" help:"Unlocks all ranges completely"`
		Mbrdone   mbrDoneCmd   `cmd:"" help:"Sets the MBRDone property (hide/show Shadow MBR)"`
		ReadMbr   readMBRCmd   `cmd:"" help:"Prints the binary data in the MBR area"`
	} `arg:""`
	Sidpin                string `optional:""`
	Sidpinmsid            bool   `optional:""`
	Sidhash               string `optional:"" default:"dta" enum:"sedutil-dta,sedutil-sha512,dta,sha1,sha512" help:"Use dta (sha1) for SID Pin hashing; the sha512 values are rejected as unknown"`
	User                  string `optional:"" short:"u"`
	cmdutil.PasswordEmbed `embed:"" help:"Password for locking ranges"`
}

// describeRange renders one range the way an operator wants to read it:
// extent, lock state, and any naming.
func describeRange(r *locking.Range, global bool) string {
	extent := "whole disk"
	if r.End > 0 {
		extent = fmt.Sprintf("%d to %d", r.Start, r.End)
	}
	if !r.WriteLockEnabled && !r.ReadLockEnabled {
		extent = "disabled"
	} else {
		var locks []string
		if r.WriteLocked {
			locks = append(locks, "[write locked]")
		}
		if r.ReadLocked {
			locks = append(locks, "[read locked]")
		}
		if len(locks) > 0 {
			extent += " " + strings.Join(locks, " ")
		}
	}
	if global {
		extent += " [global]"
	}
	if r.Name != nil {
		extent += fmt.Sprintf(" [name=%q]", *r.Name)
	}
	return extent
}

func (l listCmd) Run(ctx *context) error {
	if len(ctx.session.Ranges) == 0 {
		return fmt.Errorf("no available locking ranges as this user")
	}
	for i, r := range ctx.session.Ranges {
		fmt.Printf("Range %3d: %s\n", i, describeRange(r, r == ctx.session.GlobalRange))
	}
	return nil
}

func (u unlockAllCmd) Run(ctx *context) error {
	for i, r := range ctx.session.Ranges {
		if err := r.UnlockRead(); err != nil {
			return fmt.Errorf("read unlock range %d failed: %v", i, err)
		}
		if err := r.UnlockWrite(); err != nil {
			return fmt.Errorf("write unlock range %d failed: %v", i, err)
		}
	}
	if u.KeepMbrDone {
		return nil
	}
	if err := ctx.session.SetMBRDone(true); err != nil {
		return fmt.Errorf("SetMBRDone failed: %v", err)
	}
	return nil
}

func (l lockAllCmd) Run(ctx *context) error {
	for i, r := range ctx.session.Ranges {
		if err := r.LockRead(); err != nil {
			return fmt.Errorf("read lock range %d failed: %v", i, err)
		}
		if err := r.LockWrite(); err != nil {
			return fmt.Errorf("write lock range %d failed: %v", i, err)
		}
	}
	return nil
}

func (m mbrDoneCmd) Run(ctx *context) error {
	if err := ctx.session.SetMBRDone(m.Done); err != nil {
		return fmt.Errorf("SetMBRDone failed: %v", err)
	}
	return nil
}

func (r readMBRCmd) Run(ctx *context) error {
	mbi, err := table.MBR_TableInfo(ctx.session.Session)
	if err != nil {
		return fmt.Errorf("table.MBR_TableInfo failed: %v", err)
	}

	size := mbi.Size
	if r.ReadMbrSize > 0 && uint32(r.ReadMbrSize) < size {
		size = uint32(r.ReadMbrSize)
	}

	chunk := make([]byte, mbi.SuggestBufferSize(ctx.session.Session))
	for pos := uint32(0); pos < size; pos += uint32(len(chunk)) {
		want := uint32(len(chunk))
		if size-pos < want {
			want = size - pos
		}
		n, err := table.MBR_Read(ctx.session.Session, chunk[:want], pos)
		if err != nil || uint32(n) != want {
			return fmt.Errorf("table.MBR_Read failed: %v (read: %d)", err, n)
		}
		if _, err := os.Stdout.Write(chunk[:want]); err != nil {
			return err
		}
	}
	return nil
}
