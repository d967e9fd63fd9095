// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5hash provides the content hash used to address every
// snapshot and file body in FS5: a plain (unkeyed) BLAKE3 digest of
// the final on-disk bytes. Unlike a chunked content store, FS5 never
// needs domain-separated or Merkle-composed hashes — a directory
// snapshot is one whole CBOR blob and a file body is referenced by
// the hash of its plaintext content, so a single hash domain suffices.
package fs5hash

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest. Equality is byte equality.
type Hash [32]byte

// Zero reports whether h is the all-zero hash, used as a sentinel for
// "no content" (e.g. an empty file ref with no body).
func (h Hash) Zero() bool {
	return h == Hash{}
}

// String returns the hex-encoded digest.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Of computes the BLAKE3 hash of data.
func Of(data []byte) Hash {
	digest := blake3.Sum256(data)
	return Hash(digest)
}

// BlobId identifies one immutable byte blob by content hash and size.
// Size is carried alongside the hash rather than recomputed from the
// blob store on every reference so that callers can validate a
// fetched blob's length without reading past it.
type BlobId struct {
	Hash Hash
	Size uint64
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing hash: %w", err)
	}
	if len(decoded) != len(hash) {
		return hash, fmt.Errorf("hash is %d bytes, want %d", len(decoded), len(hash))
	}
	copy(hash[:], decoded)
	return hash, nil
}

// FormatHash returns the hex-encoded string representation of hash.
func FormatHash(hash Hash) string {
	return hash.String()
}

// ShardPath returns the two-level hex sharding components
// (xx, yyyy...) used to lay a hash out under a blob store root,
// keeping any one directory's entry count bounded.
func ShardPath(hash Hash) (string, string) {
	full := hex.EncodeToString(hash[:])
	return full[:2], full[2:]
}

// MarshalBinary implements encoding.BinaryMarshaler so a Hash
// embedded in a CBOR-tagged struct serializes as a compact 32-byte
// string rather than an array of 32 integers. Wire compactness
// matters here: a snapshot's files/dirs maps carry many hashes.
func (h Hash) MarshalBinary() ([]byte, error) {
	return h[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *Hash) UnmarshalBinary(data []byte) error {
	if len(data) != len(*h) {
		return fmt.Errorf("hash is %d bytes, want %d", len(data), len(*h))
	}
	copy(h[:], data)
	return nil
}
