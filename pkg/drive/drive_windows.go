// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package drive

// Open on Windows is a stub. The probe order mirrors the Linux chain:
// STORAGE_QUERY_PROPERTY with StorageAdapterProtocolSpecificProperty /
// NVMeDataTypeIdentify, the vendor NVMe miniport SRB ("NvmeMini",
// IOCTL_SCSI_MINIPORT), then IOCTL_SCSI_PASS_THROUGH_DIRECT with SAT, then
// IOCTL_ATA_PASS_THROUGH.
//
// TODO: implement the DeviceIoControl-based drivers; until then every open
// reports ErrNotSupported so callers can distinguish "no driver" from an
// OS-level failure.
func Open(device string) (DriveIntf, error) {
	return nil, ErrNotSupported
}

// EnumerateDrives is a stub pending SetupDiGetClassDevs
// (GUID_DEVINTERFACE_DISK) enumeration.
func EnumerateDrives() ([]string, error) {
	return nil, ErrNotSupported
}

// EnumerateVolumes is a stub pending FindFirstVolume /
// GetVolumePathNamesForVolumeName enumeration.
func EnumerateVolumes() ([]Volume, error) {
	return nil, ErrNotSupported
}
