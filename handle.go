// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5 is the public façade over the directory-actor engine in
// lib/fs5actor: a Handle bound to one directory actor, exposing
// path-keyed operations that resolve through child actors as needed.
package fs5

import (
	"context"
	"crypto/ed25519"

	"github.com/fs5kit/fs5/lib/fs5actor"
	"github.com/fs5kit/fs5/lib/fs5clock"
	"github.com/fs5kit/fs5/lib/fs5cursor"
	"github.com/fs5kit/fs5/lib/fs5dir"
	"github.com/fs5kit/fs5/lib/fs5err"
	"github.com/fs5kit/fs5/lib/fs5resolve"
	"github.com/fs5kit/fs5/lib/fs5secret"
	"github.com/fs5kit/fs5/lib/fs5store"
)

// Handle is bound to one directory actor. file_put/file_get/etc. in
// spec §4.9 resolve a path through that actor's children; subdir
// returns a new Handle bound directly to the actor that path
// resolved to, so repeated operations under it skip re-resolving the
// prefix.
type Handle struct {
	actor *fs5actor.Actor
}

// OpenLocalFile opens (or creates) a root directory whose current
// DirRef is tracked in a CBOR file at rootPath. key is nil for an
// unencrypted root.
func OpenLocalFile(rootPath string, store fs5store.BlobStore, clock fs5clock.Clock, key *fs5secret.Buffer) (*Handle, error) {
	actor, err := fs5actor.NewRootLocalFile(store, clock, rootPath, key)
	if err != nil {
		return nil, err
	}
	return &Handle{actor: actor}, nil
}

// OpenRegistry opens (or creates) a root directory whose current
// DirRef is published as a signed StreamMessage in registry, keyed by
// publicKey and signed with privateKey.
func OpenRegistry(registry fs5store.Registry, store fs5store.BlobStore, clock fs5clock.Clock, publicKey [32]byte, privateKey ed25519.PrivateKey, key *fs5secret.Buffer) (*Handle, error) {
	link := fs5actor.NewRegistryParentLink(publicKey, privateKey)
	actor, err := fs5actor.NewRootRegistry(store, registry, clock, link, key)
	if err != nil {
		return nil, err
	}
	return &Handle{actor: actor}, nil
}

// FilePut enqueues name's new content and returns as soon as the
// actor's mailbox accepts it, without waiting for the mutation to be
// applied (spec "fire-and-forget enqueue"). An error from applying it
// (a resolution failure deep in the path, a missing encryption key,
// say) is discarded: it reaches neither this call nor a later Save.
func (h *Handle) FilePut(ctx context.Context, path string, ref fs5dir.FileRef) error {
	dir, name, err := splitDirName(path)
	if err != nil {
		return err
	}
	return h.actor.Enqueue(ctx, dir, fs5actor.OpPut{Name: name, Ref: ref})
}

// FilePutSync enqueues name's new content and awaits the mutation's
// completion, surfacing any resolution error to the caller.
func (h *Handle) FilePutSync(ctx context.Context, path string, ref fs5dir.FileRef) error {
	return h.filePut(ctx, path, ref)
}

func (h *Handle) filePut(ctx context.Context, path string, ref fs5dir.FileRef) error {
	dir, name, err := splitDirName(path)
	if err != nil {
		return err
	}
	_, err = h.actor.Execute(ctx, dir, fs5actor.OpPut{Name: name, Ref: ref})
	return err
}

// FileGet returns the live (non-tombstone) head FileRef for path, or
// ErrNotFound.
func (h *Handle) FileGet(ctx context.Context, path string) (fs5dir.FileRef, error) {
	dir, name, err := splitDirName(path)
	if err != nil {
		return fs5dir.FileRef{}, err
	}
	result, err := h.actor.Execute(ctx, dir, fs5actor.OpGet{Name: name})
	if err != nil {
		return fs5dir.FileRef{}, err
	}
	return result.(fs5dir.FileRef), nil
}

// FileExists reports whether path has a live (non-tombstone) head.
func (h *Handle) FileExists(ctx context.Context, path string) (bool, error) {
	_, err := h.FileGet(ctx, path)
	if err == nil {
		return true, nil
	}
	if fs5err.Is(err, fs5err.NotFound) {
		return false, nil
	}
	return false, err
}

// FileDelete appends a tombstone for path.
func (h *Handle) FileDelete(ctx context.Context, path string) error {
	dir, name, err := splitDirName(path)
	if err != nil {
		return err
	}
	_, err = h.actor.Execute(ctx, dir, fs5actor.OpDelete{Name: name})
	return err
}

// FileMove relinquishes src and installs its current head at dst,
// tombstoning src. It issues three separate commands (a Get, a Put
// and a Delete) even when src and dst resolve under the same actor,
// since the actor command set has no atomic rename primitive; commands
// from other callers can be applied between them, so the move is not
// atomic.
func (h *Handle) FileMove(ctx context.Context, src, dst string) error {
	ref, err := h.FileGet(ctx, src)
	if err != nil {
		return err
	}
	if err := h.filePut(ctx, dst, ref); err != nil {
		return err
	}
	return h.FileDelete(ctx, src)
}

// CreateDir inserts a new empty sub-directory at path, optionally
// encrypted with a freshly generated key.
func (h *Handle) CreateDir(ctx context.Context, path string, encrypted bool) error {
	dir, name, err := splitDirName(path)
	if err != nil {
		return err
	}
	_, err = h.actor.Execute(ctx, dir, fs5actor.OpCreateDir{Name: name, Encrypted: encrypted})
	return err
}

// Subdir resolves path (creating missing intermediate directories
// along the way) and returns a Handle bound directly to the actor it
// names.
func (h *Handle) Subdir(ctx context.Context, path string) (*Handle, error) {
	components, err := fs5resolve.Split(path)
	if err != nil {
		return nil, err
	}
	result, err := h.actor.Execute(ctx, components, fs5actor.OpResolve{})
	if err != nil {
		return nil, err
	}
	return &Handle{actor: result.(*fs5actor.Actor)}, nil
}

// ListPage is one page of List's flat logical listing.
type ListPage struct {
	Entries []fs5cursor.Entry
	Next    *fs5cursor.Cursor
}

// List returns one page of this directory's (non-tombstone) files and
// sub-directories, sorted lexicographically.
func (h *Handle) List(ctx context.Context, cursor *fs5cursor.Cursor, limit int) (ListPage, error) {
	result, err := h.actor.Execute(ctx, nil, fs5actor.OpList{Cursor: cursor, Limit: limit})
	if err != nil {
		return ListPage{}, err
	}
	page := result.(fs5actor.ListResult)
	return ListPage{Entries: page.Entries, Next: page.Next}, nil
}

// Batch runs f against this Handle, then issues a single Save once f
// returns without error (spec "accumulating mutations, then a single
// save at the end"). If f returns an error, no Save is issued.
func (h *Handle) Batch(ctx context.Context, f func(*Handle) error) error {
	if err := f(h); err != nil {
		return err
	}
	return h.Save(ctx)
}

// Save recursively persists this directory and every dirty descendant
// (spec §4.4), and updates whichever parent link this Handle's root
// actor has.
func (h *Handle) Save(ctx context.Context) error {
	_, err := h.actor.Execute(ctx, nil, fs5actor.OpSave{})
	return err
}

// MergeFromSnapshot reconciles other into this directory with
// last-write-wins semantics (spec §4.5) and marks it dirty if
// anything changed.
func (h *Handle) MergeFromSnapshot(ctx context.Context, other fs5dir.DirV1) error {
	_, err := h.actor.Execute(ctx, nil, fs5actor.OpMerge{Other: other})
	return err
}

// ExportSnapshot returns a copy of this directory's current in-memory
// DirV1, for inspection or as the input to a peer's MergeFromSnapshot.
func (h *Handle) ExportSnapshot(ctx context.Context) (fs5dir.DirV1, error) {
	result, err := h.actor.Execute(ctx, nil, fs5actor.OpExportSnapshot{})
	if err != nil {
		return fs5dir.DirV1{}, err
	}
	return result.(fs5dir.DirV1), nil
}

// splitDirName normalizes and splits a logical path into the
// intermediate components to resolve (possibly empty) and the final
// component the operation targets. An empty or component-less path
// is rejected: every file operation needs a name.
func splitDirName(path string) ([]string, string, error) {
	components, err := fs5resolve.Split(path)
	if err != nil {
		return nil, "", err
	}
	if len(components) == 0 {
		return nil, "", fs5err.New("fs5.splitDirName", fs5err.BadFormat)
	}
	return components[:len(components)-1], components[len(components)-1], nil
}
