// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drive

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseMounts(t *testing.T) {
	in := strings.Join([]string{
		"proc /proc proc rw,nosuid,nodev,noexec 0 0",
		"/dev/nvme0n1p2 / ext4 rw,relatime 0 0",
		"/dev/nvme0n1p1 /boot/efi vfat rw,relatime 0 0",
		"/dev/sda1 /data ext4 rw,noatime 0 0",
		"/dev/sda1 /srv/data ext4 rw,noatime 0 0",
		"tmpfs /tmp tmpfs rw 0 0",
	}, "\n")

	vols, err := parseMounts(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []Volume{
		{Device: "/dev/nvme0n1p2", Filesystem: "ext4", MountPoints: []string{"/"}},
		{Device: "/dev/nvme0n1p1", Filesystem: "vfat", MountPoints: []string{"/boot/efi"}},
		{Device: "/dev/sda1", Filesystem: "ext4", MountPoints: []string{"/data", "/srv/data"}},
	}
	if !reflect.DeepEqual(vols, want) {
		t.Errorf("parseMounts() = %+v; want %+v", vols, want)
	}
}

func TestVolumeOnDrive(t *testing.T) {
	v := Volume{Device: "/dev/sda1"}
	if !v.OnDrive("/dev/sda") {
		t.Error("partition not matched to its parent drive")
	}
	if v.OnDrive("/dev/sdb") {
		t.Error("matched an unrelated drive")
	}
}
