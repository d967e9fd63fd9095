// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5cursor implements the opaque continuation token used by
// List and the shard-merging algorithm that turns per-shard sorted
// entry lists into one flat, paginated, lexicographically ordered
// view.
package fs5cursor

import (
	"encoding/base64"
	"sort"

	"github.com/fs5kit/fs5/lib/fs5codec"
	"github.com/fs5kit/fs5/lib/fs5err"
)

// Kind distinguishes a file entry from a sub-directory entry in a
// listing.
type Kind uint8

const (
	KindFile Kind = 0
	KindDir  Kind = 1
)

// Entry is one name in a directory listing.
type Entry struct {
	Name string
	Kind Kind
}

// wireCursor is the CBOR array form encoded/decoded by Encode/Decode:
// [bucket, name, kind].
type wireCursor struct {
	_      struct{} `cbor:",toarray"`
	Bucket uint8
	Name   string
	Kind   uint8
}

// Cursor is the decoded form of a continuation token: the shard
// bucket and (name, kind) of the last entry emitted on the previous
// page.
type Cursor struct {
	Bucket uint8
	Name   string
	Kind   Kind
}

// Encode renders c as the opaque token returned to callers:
// base64url(CBOR([bucket, name, kind])), no padding.
func Encode(c Cursor) (string, error) {
	data, err := fs5codec.Marshal(wireCursor{Bucket: c.Bucket, Name: c.Name, Kind: uint8(c.Kind)})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a token produced by Encode.
func Decode(token string) (Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fs5err.Wrap("fs5cursor.Decode", fs5err.BadFormat, err)
	}
	var wire wireCursor
	if err := fs5codec.Unmarshal(data, &wire); err != nil {
		return Cursor{}, fs5err.Wrap("fs5cursor.Decode", fs5err.BadFormat, err)
	}
	return Cursor{Bucket: wire.Bucket, Name: wire.Name, Kind: Kind(wire.Kind)}, nil
}

// less reports whether (name, kind) should list before (other, otherKind)
// in the single global lexicographic stream: by name first, then by
// kind (files before directories on a name collision — files and
// dirs are disjoint by name within one directory, but across shard
// boundaries in a sharded aggregate the comparison still needs a
// total order).
func less(name string, kind Kind, otherName string, otherKind Kind) bool {
	if name != otherName {
		return name < otherName
	}
	return kind < otherKind
}

// MergePaged merges already name-sorted per-shard entry lists
// (shards[i] holds bucket i's entries) into the single flat
// lexicographic stream, resuming after cursor if non-nil, and
// returns at most limit entries plus a continuation cursor if more
// remain.
//
// A shard's bucket index comes from hashing the name, so it carries
// no relationship to name order: the shard holding the lexicographic
// successor of the last emitted entry can be any bucket, lower or
// higher than the one the cursor was cut from. Resuming by skipping
// shards below cursor.Bucket silently drops whatever those shards
// still had left to emit, so every shard is rescanned on every page
// and resumed purely by comparing against (cursor.Name, cursor.Kind).
func MergePaged(shards [][]Entry, cursor *Cursor, limit int) ([]Entry, *Cursor) {
	type cursorItem struct {
		shard int
		index int
	}

	var candidates []cursorItem
	for shardIndex, entries := range shards {
		start := 0
		if cursor != nil {
			start = sort.Search(len(entries), func(i int) bool {
				return less(cursor.Name, cursor.Kind, entries[i].Name, entries[i].Kind)
			})
		}
		for i := start; i < len(entries); i++ {
			candidates = append(candidates, cursorItem{shard: shardIndex, index: i})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a := shards[candidates[i].shard][candidates[i].index]
		b := shards[candidates[j].shard][candidates[j].index]
		return less(a.Name, a.Kind, b.Name, b.Kind)
	})

	if limit <= 0 || len(candidates) <= limit {
		result := make([]Entry, len(candidates))
		for i, c := range candidates {
			result[i] = shards[c.shard][c.index]
		}
		return result, nil
	}

	result := make([]Entry, limit)
	for i := 0; i < limit; i++ {
		result[i] = shards[candidates[i].shard][candidates[i].index]
	}
	last := candidates[limit-1]
	next := &Cursor{
		Bucket: uint8(last.shard),
		Name:   shards[last.shard][last.index].Name,
		Kind:   shards[last.shard][last.index].Kind,
	}
	return result, next
}
