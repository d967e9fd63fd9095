// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5dir defines the wire types for one directory snapshot:
// DirV1 and everything it contains (FileRef version chains, DirRef
// sub-directory pointers, the optional shard table). Field numbers
// match the prior FS5 implementation's wire format so a decoder
// written against either side parses the fields they share.
package fs5dir

import (
	"fmt"

	"github.com/fs5kit/fs5/lib/fs5codec"
	"github.com/fs5kit/fs5/lib/fs5hash"
)

// RawValue holds an undecoded CBOR value, the element type of the
// Extra maps stored under key 22 of FileRef, DirRef and DirHeader.
type RawValue = fs5codec.RawMessage

// Magic is the fixed marker carried as field 0 of every encoded
// DirV1. fs5snapshot.Decode checks it after the CBOR is decoded and
// rejects a snapshot carrying any other value with BadFormat.
const Magic = "FS5.v1"

// Kind distinguishes a live FileRef from a deletion marker.
type Kind uint8

const (
	// ContentBlob is a live file version referencing a content hash.
	ContentBlob Kind = 0
	// Tombstone records a deletion; it carries no hash.
	Tombstone Kind = 1
)

// LinkTag discriminates the two DirLink variants on the wire.
type LinkTag byte

const (
	// LinkFixedHash addresses a sub-directory by the BLAKE3 hash of
	// its encoded snapshot bytes.
	LinkFixedHash LinkTag = 0x1e
	// LinkRegistryKey addresses a sub-directory by an Ed25519 public
	// key whose latest DirRef is discovered through the registry.
	LinkRegistryKey LinkTag = 0xed
)

// DirLink is the tagged 33-byte union carried in DirRef.Link: either
// a fixed content hash or a registry public key. It is encoded as a
// single CBOR byte string (tag byte + 32 payload bytes) via
// MarshalBinary/UnmarshalBinary, matching how fs5hash.Hash encodes.
type DirLink struct {
	Tag     LinkTag
	Payload [32]byte
}

// FixedHashLink builds a DirLink that addresses a sub-directory by
// content hash.
func FixedHashLink(hash fs5hash.Hash) DirLink {
	return DirLink{Tag: LinkFixedHash, Payload: [32]byte(hash)}
}

// RegistryKeyLink builds a DirLink that addresses a sub-directory by
// registry public key.
func RegistryKeyLink(publicKey [32]byte) DirLink {
	return DirLink{Tag: LinkRegistryKey, Payload: publicKey}
}

// Hash returns the fixed hash and true if this link is a
// LinkFixedHash; otherwise (false, Hash{}).
func (l DirLink) Hash() (fs5hash.Hash, bool) {
	if l.Tag != LinkFixedHash {
		return fs5hash.Hash{}, false
	}
	return fs5hash.Hash(l.Payload), true
}

// RegistryPublicKey returns the public key and true if this link is
// a LinkRegistryKey; otherwise (zero, false).
func (l DirLink) RegistryPublicKey() ([32]byte, bool) {
	if l.Tag != LinkRegistryKey {
		return [32]byte{}, false
	}
	return l.Payload, true
}

// MarshalBinary implements encoding.BinaryMarshaler, producing the
// fixed 33-byte wire form: tag byte followed by the 32-byte payload.
func (l DirLink) MarshalBinary() ([]byte, error) {
	out := make([]byte, 33)
	out[0] = byte(l.Tag)
	copy(out[1:], l.Payload[:])
	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (l *DirLink) UnmarshalBinary(data []byte) error {
	if len(data) != 33 {
		return errSize("DirLink", 33, len(data))
	}
	l.Tag = LinkTag(data[0])
	copy(l.Payload[:], data[1:])
	return nil
}

// BlobLocationTag discriminates BlobLocation variants.
type BlobLocationTag byte

const (
	// LocationInline carries the file body inline, no fetch needed.
	LocationInline BlobLocationTag = 0x00
	// LocationHTTP carries a URL the body can be fetched from.
	LocationHTTP BlobLocationTag = 0x01
	// LocationBlake3Multihash carries a BLAKE3 digest as a
	// self-describing multihash-style alternate location.
	LocationBlake3Multihash BlobLocationTag = 0x1e
)

// BlobLocation describes one way to fetch a file body. Data's
// interpretation depends on Tag: raw bytes for LocationInline, a URL
// string for LocationHTTP, a 32-byte digest for
// LocationBlake3Multihash. SHA-1 (0x11), SHA-256 (0x12), and MD5
// (0xd5) multihash tags are part of the wire format but have no
// constant or constructor here: nothing in this module computes or
// verifies those digests, and a location using one of them decodes
// into Tag and Data unchanged.
type BlobLocation struct {
	Tag  BlobLocationTag `cbor:"0,keyasint"`
	Data []byte          `cbor:"1,keyasint"`
}

// InlineLocation wraps body bytes as a BlobLocation.
func InlineLocation(body []byte) BlobLocation {
	return BlobLocation{Tag: LocationInline, Data: body}
}

// HTTPLocation wraps a URL as a BlobLocation.
func HTTPLocation(url string) BlobLocation {
	return BlobLocation{Tag: LocationHTTP, Data: []byte(url)}
}

// Blake3MultihashLocation wraps a BLAKE3 digest as an alternate
// content-addressed BlobLocation.
func Blake3MultihashLocation(hash fs5hash.Hash) BlobLocation {
	return BlobLocation{Tag: LocationBlake3Multihash, Data: append([]byte(nil), hash[:]...)}
}

// FileRef is the metadata for one version of a file, or a tombstone
// recording its deletion. Field numbers are adopted from the prior
// implementation's wire format for the fields both share.
type FileRef struct {
	Kind Kind `cbor:"2,keyasint"`
	// Hash is the plaintext content hash; absent (zero) for tombstones.
	Hash fs5hash.Hash `cbor:"3,keyasint"`
	Size uint64       `cbor:"4,keyasint"`
	// MediaType is an optional MIME type hint.
	MediaType string `cbor:"6,keyasint,omitempty"`
	// TimestampSeconds is the LWW tiebreaker: seconds since epoch.
	// Zero means "no timestamp", treated as 0 by the merge engine.
	TimestampSeconds uint32 `cbor:"7,keyasint,omitempty"`
	// TimestampSubsecNanos refines TimestampSeconds to nanosecond
	// resolution when present (0 means second resolution only).
	TimestampSubsecNanos uint32 `cbor:"8,keyasint,omitempty"`
	// Locations lists alternate ways to fetch the body, for
	// redundancy beyond the primary content-addressed blob store.
	Locations []BlobLocation `cbor:"9,keyasint,omitempty"`
	// HashType identifies the hash algorithm for Hash when it is not
	// plain BLAKE3 (reserved for forward compatibility; FS5 itself
	// only ever writes BLAKE3 and leaves this unset).
	HashType uint8 `cbor:"19,keyasint,omitempty"`
	// FirstVersion is the timestamp of the oldest version in the
	// chain, copied forward on every Put.
	FirstVersion uint32 `cbor:"20,keyasint,omitempty"`
	// VersionCount is 1 + Prev.VersionCount (1 if Prev is nil).
	VersionCount uint32 `cbor:"21,keyasint"`
	// Extra round-trips the map stored under key 22. Other integer
	// keys this struct does not declare are dropped on decode.
	Extra map[uint64]RawValue `cbor:"22,keyasint,omitempty"`
	// Prev is the version this one supersedes, nil for the oldest.
	Prev *FileRef `cbor:"23,keyasint,omitempty"`
}

// IsTombstone reports whether ref records a deletion.
func (ref *FileRef) IsTombstone() bool {
	return ref != nil && ref.Kind == Tombstone
}

// DirRef is a pointer to a sub-directory: how to address it (Link),
// its encoded size, optional alternate locations, optional
// encryption key material, and optional auxiliary metadata.
type DirRef struct {
	Link DirLink `cbor:"2,keyasint"`
	Size uint64  `cbor:"4,keyasint"`
	// TimestampSeconds/TimestampSubsecNanos record when this pointer
	// was last updated, carried for parity with FileRef and for
	// tie-breaking when a header-level merge needs one.
	TimestampSeconds     uint32         `cbor:"7,keyasint,omitempty"`
	TimestampSubsecNanos uint32         `cbor:"8,keyasint,omitempty"`
	Locations            []BlobLocation `cbor:"9,keyasint,omitempty"`
	// KeyMaterial is the raw 32-byte directory encryption key, present
	// only when the sub-directory is encrypted. Callers must move this
	// into a guarded fs5secret.Buffer immediately after decode and
	// never retain the decoded DirV1 carrying it longer than needed.
	KeyMaterial []byte              `cbor:"14,keyasint,omitempty"`
	Extra       map[uint64]RawValue `cbor:"22,keyasint,omitempty"`
}

// Encrypted reports whether this DirRef carries key material for an
// encrypted child.
func (ref *DirRef) Encrypted() bool {
	return ref != nil && len(ref.KeyMaterial) > 0
}

// DirHeader is the snapshot header: the optional shard table and the
// Extra map. The magic marker is carried on DirV1 itself, and whether
// a directory is encrypted is recorded only by the key material on
// its DirRef held by the parent.
type DirHeader struct {
	// Shards, when non-nil, maps shard bucket index to the child
	// actor holding that bucket's entries. An unsharded directory has
	// a nil map.
	Shards map[uint8]DirRef `cbor:"1,keyasint,omitempty"`
	// Extra round-trips the map stored under key 22. Other integer
	// keys this struct does not declare are dropped on decode.
	Extra map[uint64]RawValue `cbor:"22,keyasint,omitempty"`
}

// Sharded reports whether this header describes a sharded directory.
func (h *DirHeader) Sharded() bool {
	return h != nil && len(h.Shards) > 0
}

// DirV1 is one immutable snapshot of one directory's contents.
// Files and dirs are disjoint by name; both are ordered maps whose
// wire form uses lexicographically sorted text-string keys (RFC 8949
// Core Deterministic Encoding sorts map keys for us automatically).
type DirV1 struct {
	MagicValue string             `cbor:"0,keyasint"`
	Header     DirHeader          `cbor:"1,keyasint"`
	Dirs       map[string]DirRef  `cbor:"2,keyasint,omitempty"`
	Files      map[string]FileRef `cbor:"3,keyasint,omitempty"`
}

// New returns an empty, unsharded, unencrypted DirV1 ready to be
// mutated by a directory actor.
func New() DirV1 {
	return DirV1{
		MagicValue: Magic,
		Dirs:       make(map[string]DirRef),
		Files:      make(map[string]FileRef),
	}
}

// ValidMagic reports whether d was decoded from bytes carrying the
// expected magic marker.
func (d *DirV1) ValidMagic() bool {
	return d.MagicValue == Magic
}

func errSize(what string, want, got int) error {
	return fmt.Errorf("%s: is %d bytes, want %d", what, got, want)
}
