// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

package fs5

import "github.com/fs5kit/fs5/lib/fs5err"

// Sentinel errors callers match with errors.Is(err, fs5.ErrNotFound),
// re-exporting the taxonomy lib/fs5err defines so that package fs5
// itself is the only import most callers need.
var (
	ErrNotFound               = fs5err.ErrNotFound
	ErrExists                 = fs5err.ErrExists
	ErrBadFormat              = fs5err.ErrBadFormat
	ErrBadCipher              = fs5err.ErrBadCipher
	ErrMissingKey             = fs5err.ErrMissingKey
	ErrIncompatibleEncryption = fs5err.ErrIncompatibleEncryption
	ErrRegistryConflict       = fs5err.ErrRegistryConflict
	ErrTransient              = fs5err.ErrTransient
	ErrInvariant              = fs5err.ErrInvariant
)
