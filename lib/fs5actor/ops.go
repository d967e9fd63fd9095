// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

package fs5actor

import (
	"github.com/fs5kit/fs5/lib/fs5cursor"
	"github.com/fs5kit/fs5/lib/fs5dir"
)

// Operation is one mailbox command's local payload — what to do once
// path resolution has reached the target actor. Every concrete type
// below implements it.
type Operation interface {
	operation()
}

// OpGet returns the live (non-tombstone) head FileRef for Name.
type OpGet struct{ Name string }

// OpGetAny returns the head FileRef for Name even if it is a
// tombstone.
type OpGetAny struct{ Name string }

// OpPut sets Name's head to Ref, chaining the prior head as Ref.Prev.
type OpPut struct {
	Name string
	Ref  fs5dir.FileRef
}

// OpDelete appends a tombstone head for Name.
type OpDelete struct{ Name string }

// OpCreateDir inserts a new empty child directory named Name.
type OpCreateDir struct {
	Name      string
	Encrypted bool
}

// OpList returns one page of the flat logical listing.
type OpList struct {
	Cursor *fs5cursor.Cursor
	Limit  int
}

// OpSave triggers the recursive post-order save described in
// spec.md §4.4.
type OpSave struct{}

// OpMerge reconciles Other into the target directory's current
// snapshot and marks it dirty if anything changed.
type OpMerge struct{ Other fs5dir.DirV1 }

// OpExportSnapshot returns a copy of the target directory's current
// in-memory DirV1.
type OpExportSnapshot struct{}

// OpResolve returns the *Actor that owns the target directory once
// path resolution reaches it, for subdir() to bind a new Handle to
// without re-walking the path on every subsequent call.
type OpResolve struct{}

// opSetChildRef is an actor-internal command a child sends to its
// DirEntry parent after a successful Save that the parent did not
// start itself (a parent saving its children folds their returned
// DirRefs in directly), installing the new DirRef and marking the
// parent dirty. Not part of the public
// command set in spec §4.3 — it is how that set's prescribed
// "set parent.dirs[name] = new DirRef" step is actually delivered
// through the parent's own mailbox rather than by reaching into its
// state from another goroutine.
type opSetChildRef struct {
	Name string
	Ref  fs5dir.DirRef
}

// opSetShardRef is opSetChildRef's counterpart for a shard child
// updating its parent's header.Shards table.
type opSetShardRef struct {
	Bucket uint8
	Ref    fs5dir.DirRef
}

func (OpGet) operation()            {}
func (OpGetAny) operation()         {}
func (OpPut) operation()            {}
func (OpDelete) operation()         {}
func (OpCreateDir) operation()      {}
func (OpList) operation()           {}
func (OpSave) operation()           {}
func (OpMerge) operation()          {}
func (OpExportSnapshot) operation() {}
func (OpResolve) operation()        {}
func (opSetChildRef) operation()    {}
func (opSetShardRef) operation()    {}
