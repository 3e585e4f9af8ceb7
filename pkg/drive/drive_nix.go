// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package drive

import (
	"os"
)

// Open probes the drivers able to speak to the device, most specific
// first: the NVMe admin ioctl, then a known USB ATA-bridge chip, then SCSI
// generic (covering both SAT-translated ATA and plain SCSI). The first
// driver whose probe IDENTIFY succeeds wins; probe failures are swallowed
// until the chain is exhausted.
func Open(device string) (DriveIntf, error) {
	d, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	if isNVME(d) {
		return NVMEDrive(d), nil
	}
	if j, ok := probeJMicron(device, d); ok {
		return j, nil
	}
	if isSCSI(d) {
		return SCSIDrive(d), nil
	}

	d.Close()
	return nil, ErrDeviceNotSupported
}
