// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drive

import (
	"bufio"
	"io"
	"strings"
)

// Volume is one mounted filesystem, keyed by its backing device node.
type Volume struct {
	Device      string
	Filesystem  string
	MountPoints []string
}

// OnDrive reports whether the volume's backing device is the given drive or
// one of its partitions.
func (v *Volume) OnDrive(devicePath string) bool {
	rest := strings.TrimPrefix(v.Device, devicePath)
	if rest == v.Device {
		return false
	}
	if rest == "" {
		return true
	}
	if last := devicePath[len(devicePath)-1]; last >= '0' && last <= '9' {
		// nvme0n1p1, mmcblk0p1: the partition number follows a "p".
		if rest[0] != 'p' {
			return false
		}
		rest = rest[1:]
	}
	return rest != "" && strings.Trim(rest, "0123456789") == ""
}

// parseMounts reads /proc/mounts-formatted data, grouping mount points by
// backing device. Pseudo-filesystems whose source is not a device path are
// skipped.
func parseMounts(r io.Reader) ([]Volume, error) {
	var out []Volume
	idx := map[string]int{}
	s := bufio.NewScanner(r)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 3 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		device, mount, fstype := fields[0], fields[1], fields[2]
		if i, ok := idx[device]; ok {
			out[i].MountPoints = append(out[i].MountPoints, mount)
			continue
		}
		idx[device] = len(out)
		out = append(out, Volume{
			Device:      device,
			Filesystem:  fstype,
			MountPoints: []string{mount},
		})
	}
	return out, s.Err()
}
