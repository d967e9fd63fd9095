// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5err defines the error taxonomy shared by every FS5
// package: a fixed set of kinds that callers distinguish with
// errors.Is, rather than bare errors.New strings that can only be
// matched by message.
package fs5err

import (
	"errors"
	"fmt"
)

// Kind identifies one of the nine error categories a directory
// operation can fail with. The zero Kind is never used.
type Kind int

const (
	// NotFound means a path or hash did not resolve to anything.
	NotFound Kind = iota + 1
	// Exists means create-dir (or a similar insertion) landed on an
	// already-occupied name.
	Exists
	// BadFormat means a CBOR decode failed: the bytes are not a
	// valid (or not a recognized-version) snapshot.
	BadFormat
	// BadCipher means AEAD authentication failed: wrong key or
	// tampered ciphertext.
	BadCipher
	// MissingKey means an encrypted child was reached without the
	// key material needed to decrypt it.
	MissingKey
	// IncompatibleEncryption means a merge was attempted between
	// snapshots with divergent encryption states or keys.
	IncompatibleEncryption
	// RegistryConflict means the retry budget for a stale-revision
	// registry write was exhausted.
	RegistryConflict
	// Transient means a blob-store or registry I/O call failed or
	// timed out; the caller may retry.
	Transient
	// Invariant means an internal consistency check failed (e.g. a
	// fetched blob's hash did not match the hash it was fetched by).
	Invariant
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case Exists:
		return "exists"
	case BadFormat:
		return "bad-format"
	case BadCipher:
		return "bad-cipher"
	case MissingKey:
		return "missing-key"
	case IncompatibleEncryption:
		return "incompatible-encryption"
	case RegistryConflict:
		return "registry-conflict"
	case Transient:
		return "transient"
	case Invariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Error is a wrapped error carrying one of the Kinds above plus the
// operation that failed and, optionally, an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same Kind, or one
// of the Kind sentinels below. This lets callers write
// errors.Is(err, fs5err.ErrNotFound) without caring about Op or Err.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs an *Error for op with the given kind and no
// underlying cause.
func New(op string, kind Kind) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap constructs an *Error for op with the given kind, wrapping an
// underlying cause. If err is nil, returns nil.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Is reports whether err (or any error in its chain) carries kind.
func Is(err error, kind Kind) bool {
	var fsErr *Error
	if errors.As(err, &fsErr) {
		return fsErr.Kind == kind
	}
	return false
}

// Sentinels for errors.Is(err, fs5err.ErrNotFound)-style matching
// against a bare Kind marker (Op and Err empty/nil).
var (
	ErrNotFound               = &Error{Kind: NotFound}
	ErrExists                 = &Error{Kind: Exists}
	ErrBadFormat              = &Error{Kind: BadFormat}
	ErrBadCipher              = &Error{Kind: BadCipher}
	ErrMissingKey             = &Error{Kind: MissingKey}
	ErrIncompatibleEncryption = &Error{Kind: IncompatibleEncryption}
	ErrRegistryConflict       = &Error{Kind: RegistryConflict}
	ErrTransient              = &Error{Kind: Transient}
	ErrInvariant              = &Error{Kind: Invariant}
)
