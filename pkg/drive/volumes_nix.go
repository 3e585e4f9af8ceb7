// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package drive

import (
	"os"
	"path/filepath"
)

// EnumerateVolumes lists the mounted volumes on the system.
func EnumerateVolumes() ([]Volume, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseMounts(f)
}

// EnumerateDrives lists the device nodes of the physical block devices on
// the system, skipping partitions and virtual devices (loop, ramdisks)
// that have no backing hardware in sysfs.
func EnumerateDrives() ([]string, error) {
	sysblk, err := os.ReadDir("/sys/class/block")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, fi := range sysblk {
		name := fi.Name()
		if _, err := os.Stat(filepath.Join("/sys/class/block", name, "device")); err != nil {
			continue
		}
		// Partitions carry a "partition" attribute; whole drives don't.
		if _, err := os.Stat(filepath.Join("/sys/class/block", name, "partition")); err == nil {
			continue
		}
		devpath := filepath.Join("/dev", name)
		if _, err := os.Stat(devpath); err != nil {
			continue
		}
		out = append(out, devpath)
	}
	return out, nil
}
