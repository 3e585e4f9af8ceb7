// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drive

// SanitizeAction selects which ATA SANITIZE DEVICE / NVMe SANITIZE NVM
// sub-command to issue.
type SanitizeAction int

const (
	SanitizeStatus SanitizeAction = iota
	SanitizeCryptoErase
	SanitizeBlockErase
	SanitizeOverwrite
	SanitizeFreezeLock
	SanitizeAntifreezeLock
)

// SanitizeOpts carries the parameters for the actions that need them;
// unused fields are ignored by actions that don't need them.
type SanitizeOpts struct {
	// OverwritePattern is the 32-bit pattern written to every addressable
	// block. Only used by SanitizeOverwrite.
	OverwritePattern uint32
	// PassCount is the number of overwrite passes, clamped to [1, 15].
	// Only used by SanitizeOverwrite.
	PassCount int
	// Invert requests that the pattern be bitwise-inverted between passes.
	// Only used by SanitizeOverwrite.
	Invert bool
	// NoDeallocate requests the device not deallocate blocks it can no
	// longer guarantee contain the original data (ATA: ZONED NO RESET;
	// NVMe: NO_DEALLOC).
	NoDeallocate bool
}

// SanitizeProgress is the decoded response of a sanitize status query, or of
// the command that started an operation.
type SanitizeProgress struct {
	Succeeded  bool
	InProgress bool
	Frozen     bool
	Antifreeze bool
	// Failed is only meaningful for the NVMe back-end, which has a distinct
	// FAILED status; the ATA back-end has no equivalent.
	Failed bool
	// Fraction is the estimated completion in [0, 1], or -1 if the device
	// did not report a value.
	Fraction float64
	// ETASeconds is how long the operation is estimated to take, or 0 if
	// unreported. Only the NVMe back-end fills it, with the device's
	// estimate for the action just started; a SanitizeStatus query and the
	// ATA back-end report 0.
	ETASeconds uint32
}

// Sanitizer is implemented by drive back-ends that support a destructive
// sanitize/crypto-erase command set.
type Sanitizer interface {
	Sanitize(action SanitizeAction, opts SanitizeOpts) (*SanitizeProgress, error)
}

// Sanitize issues a sanitize sub-command (or a status query, for
// SanitizeStatus) against d, dispatching to whichever back-end d
// implements.
func Sanitize(d DriveIntf, action SanitizeAction, opts SanitizeOpts) (*SanitizeProgress, error) {
	s, ok := d.(Sanitizer)
	if !ok {
		return nil, ErrNotSupported
	}
	return s.Sanitize(action, opts)
}
