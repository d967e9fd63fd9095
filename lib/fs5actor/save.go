// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

package fs5actor

import (
	"context"
	"crypto/ed25519"
	"sort"

	"github.com/fs5kit/fs5/lib/fs5crypto"
	"github.com/fs5kit/fs5/lib/fs5cursor"
	"github.com/fs5kit/fs5/lib/fs5dir"
	"github.com/fs5kit/fs5/lib/fs5err"
	"github.com/fs5kit/fs5/lib/fs5merge"
	"github.com/fs5kit/fs5/lib/fs5secret"
	"github.com/fs5kit/fs5/lib/fs5snapshot"
	"github.com/fs5kit/fs5/lib/fs5store"
)

// registryParentLink is the RegistryKey parent-link descriptor: the
// public key a root publishes its DirRef under, the private key used
// to sign each StreamMessage, and the last revision this process has
// observed accepted (so the next Set strictly increases it).
type registryParentLink struct {
	publicKey  [32]byte
	privateKey ed25519.PrivateKey
	revision   uint64
}

// NewRegistryParentLink builds the descriptor NewRootRegistry expects.
func NewRegistryParentLink(publicKey [32]byte, privateKey ed25519.PrivateKey) *registryParentLink {
	return &registryParentLink{publicKey: publicKey, privateKey: privateKey}
}

func decodeRef(payload []byte, ref *fs5dir.DirRef) error {
	return fs5snapshot.DecodeRef(payload, ref)
}

// applyLocal dispatches an Operation that has already been resolved
// to this actor's own directory.
func (a *Actor) applyLocal(ctx context.Context, op Operation) (any, error) {
	switch o := op.(type) {
	case OpGet:
		return a.opGet(o.Name, false)
	case OpGetAny:
		return a.opGet(o.Name, true)
	case OpPut:
		return a.opPut(ctx, o)
	case OpDelete:
		return a.opDelete(ctx, o)
	case OpCreateDir:
		return a.opCreateDir(ctx, o)
	case OpList:
		return a.opList(ctx, o)
	case OpSave:
		return a.save(ctx)
	case OpMerge:
		return a.opMerge(ctx, o)
	case OpExportSnapshot:
		return a.snapshot, nil
	case OpResolve:
		return a, nil
	case opSetChildRef:
		a.snapshot.Dirs[o.Name] = o.Ref
		a.dirty = true
		return nil, nil
	case opSetShardRef:
		if a.snapshot.Header.Shards == nil {
			a.snapshot.Header.Shards = make(map[uint8]fs5dir.DirRef)
		}
		a.snapshot.Header.Shards[o.Bucket] = o.Ref
		a.dirty = true
		return nil, nil
	default:
		return nil, fs5err.New("fs5actor.applyLocal", fs5err.Invariant)
	}
}

func (a *Actor) opGet(name string, includeTombstones bool) (any, error) {
	ref, ok := a.snapshot.Files[name]
	if !ok {
		return nil, fs5err.New("fs5actor.opGet", fs5err.NotFound)
	}
	if ref.IsTombstone() && !includeTombstones {
		return nil, fs5err.New("fs5actor.opGet", fs5err.NotFound)
	}
	return ref, nil
}

func (a *Actor) opPut(ctx context.Context, o OpPut) (any, error) {
	if prev, ok := a.snapshot.Files[o.Name]; ok {
		previous := prev
		o.Ref.Prev = &previous
		o.Ref.FirstVersion = prev.FirstVersion
		o.Ref.VersionCount = prev.VersionCount + 1
	} else {
		o.Ref.VersionCount = 1
		o.Ref.FirstVersion = o.Ref.TimestampSeconds
	}
	a.snapshot.Files[o.Name] = o.Ref
	a.dirty = true
	if err := a.autoShardIfNeeded(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

// opDelete always succeeds: it appends a tombstone head for Name,
// whether or not Name ever had a live entry and whether or not the
// current head is already a tombstone, so a delete is always recorded
// rather than failing to find something to delete.
func (a *Actor) opDelete(ctx context.Context, o OpDelete) (any, error) {
	now := a.clock.Now()
	tombstone := fs5dir.FileRef{
		Kind:             fs5dir.Tombstone,
		TimestampSeconds: uint32(now.Unix()),
	}

	if prev, existed := a.snapshot.Files[o.Name]; existed {
		previous := prev
		tombstone.FirstVersion = prev.FirstVersion
		tombstone.VersionCount = prev.VersionCount + 1
		tombstone.Prev = &previous
	} else {
		tombstone.FirstVersion = tombstone.TimestampSeconds
		tombstone.VersionCount = 1
	}

	a.snapshot.Files[o.Name] = tombstone
	a.dirty = true
	return nil, a.autoShardIfNeeded(ctx)
}

func (a *Actor) opCreateDir(ctx context.Context, o OpCreateDir) (any, error) {
	if _, exists := a.snapshot.Dirs[o.Name]; exists {
		return nil, fs5err.New("fs5actor.opCreateDir", fs5err.Exists)
	}
	if a.snapshot.Header.Sharded() {
		// Sharded directories route creation through the shard child,
		// which never reaches this handler directly; guard anyway.
		return nil, fs5err.New("fs5actor.opCreateDir", fs5err.Invariant)
	}

	ref := fs5dir.DirRef{}
	if o.Encrypted {
		childKey, err := fs5crypto.NewRandomKey()
		if err != nil {
			return nil, err
		}
		ref.KeyMaterial = append([]byte(nil), childKey.Bytes()...)
		childKey.Close()
	}
	a.snapshot.Dirs[o.Name] = ref
	a.dirty = true
	if _, err := a.childActor(ctx, o.Name, ref); err != nil {
		return nil, err
	}
	return nil, a.autoShardIfNeeded(ctx)
}

// opList returns one page of the flat logical listing (spec §4.6). An
// unsharded directory lists its own Files/Dirs maps directly, sorted
// into a single shard-0 stream. A sharded directory asks each shard
// child for its own sorted listing and lets MergePaged fold the
// per-shard streams into one; a cursor resumes every shard after its
// (name, kind), whichever bucket that entry came from.
func (a *Actor) opList(ctx context.Context, o OpList) (any, error) {
	var shardLists [][]fs5cursor.Entry

	if a.snapshot.Header.Sharded() {
		shardLists = make([][]fs5cursor.Entry, len(a.snapshot.Header.Shards))
		for bucket := range a.snapshot.Header.Shards {
			child, err := a.shardChildActor(ctx, bucket)
			if err != nil {
				return nil, err
			}
			result, err := child.Execute(ctx, nil, OpList{Limit: 0})
			if err != nil {
				return nil, err
			}
			shardLists[bucket] = result.(ListResult).Entries
		}
	} else {
		entries := make([]fs5cursor.Entry, 0, len(a.snapshot.Files)+len(a.snapshot.Dirs))
		for name, ref := range a.snapshot.Files {
			if ref.IsTombstone() {
				continue
			}
			entries = append(entries, fs5cursor.Entry{Name: name, Kind: fs5cursor.KindFile})
		}
		for name := range a.snapshot.Dirs {
			entries = append(entries, fs5cursor.Entry{Name: name, Kind: fs5cursor.KindDir})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Name != entries[j].Name {
				return entries[i].Name < entries[j].Name
			}
			return entries[i].Kind < entries[j].Kind
		})
		shardLists = [][]fs5cursor.Entry{entries}
	}

	page, next := fs5cursor.MergePaged(shardLists, o.Cursor, o.Limit)
	return ListResult{Entries: page, Next: next}, nil
}

// ListResult is OpList's return value.
type ListResult struct {
	Entries []fs5cursor.Entry
	Next    *fs5cursor.Cursor
}

func (a *Actor) opMerge(ctx context.Context, o OpMerge) (any, error) {
	save := func(snapshot fs5dir.DirV1, encrypted bool, keyMaterial []byte) (fs5dir.DirRef, error) {
		return a.encodeAndStore(snapshot, keyMaterial)
	}
	merged, err := fs5merge.Merge(a.snapshot, o.Other, loadRefSnapshot(a.blobStore), save)
	if err != nil {
		return nil, err
	}
	a.snapshot = merged
	a.dirty = true
	return nil, a.autoShardIfNeeded(ctx)
}

// loadRefSnapshot returns the fs5merge.Loader used for both opMerge
// and saveToRegistry: each DirRef in a snapshot carries its own key
// material (or none, if unencrypted), so decryption never depends on
// which actor is doing the loading.
func loadRefSnapshot(store fs5store.BlobStore) func(fs5dir.DirRef) (fs5dir.DirV1, error) {
	return func(ref fs5dir.DirRef) (fs5dir.DirV1, error) {
		var key *fs5secret.Buffer
		if len(ref.KeyMaterial) > 0 {
			buffer, err := fs5secret.NewFromBytes(append([]byte(nil), ref.KeyMaterial...))
			if err != nil {
				return fs5dir.DirV1{}, err
			}
			key = buffer
			defer key.Close()
		}
		snapshot, _, err := loadSnapshot(store, ref, key)
		return snapshot, err
	}
}

// save performs the recursive post-order persistence described in
// spec §4.4: save dirty children first, fold their new refs into this
// directory's own snapshot, then encode, encrypt, hash, and write this
// directory's own blob, and finally update whichever parent link this
// actor has. It returns (*fs5dir.DirRef)(nil) if nothing was dirty.
func (a *Actor) save(ctx context.Context) (any, error) {
	// savingParentKey marks the context a parent hands to its children's
	// OpSave. Such a child leaves the parent-link update to the parent,
	// which folds the returned DirRef in below and cannot serve an
	// opSetChildRef/opSetShardRef while it waits on the child.
	type savingParentKey struct{}
	childCtx := context.WithValue(ctx, savingParentKey{}, a)

	for name, child := range a.children {
		result, err := child.Execute(childCtx, nil, OpSave{})
		if err != nil {
			return nil, err
		}
		if ref, ok := result.(*fs5dir.DirRef); ok && ref != nil {
			a.snapshot.Dirs[name] = *ref
			a.dirty = true
		}
	}
	for bucket, child := range a.shardChildren {
		result, err := child.Execute(childCtx, nil, OpSave{})
		if err != nil {
			return nil, err
		}
		if ref, ok := result.(*fs5dir.DirRef); ok && ref != nil {
			if a.snapshot.Header.Shards == nil {
				a.snapshot.Header.Shards = make(map[uint8]fs5dir.DirRef)
			}
			a.snapshot.Header.Shards[bucket] = *ref
			a.dirty = true
		}
	}

	if !a.dirty {
		var nilRef *fs5dir.DirRef
		return nilRef, nil
	}

	var keyMaterial []byte
	if a.key != nil {
		keyMaterial = append([]byte(nil), a.key.Bytes()...)
	}
	newRef, err := a.encodeAndStore(a.snapshot, keyMaterial)
	if err != nil {
		return nil, err
	}

	if a.parent == nil || ctx.Value(savingParentKey{}) != a.parent {
		if err := a.persistParentLink(ctx, newRef); err != nil {
			return nil, err
		}
	}

	a.dirty = false
	if hash, ok := newRef.Link.Hash(); ok {
		a.currentHash = hash
	}
	a.currentSize = newRef.Size
	result := newRef
	return &result, nil
}

func (a *Actor) encodeAndStore(snapshot fs5dir.DirV1, keyMaterial []byte) (fs5dir.DirRef, error) {
	var key *fs5secret.Buffer
	if len(keyMaterial) > 0 {
		buffer, err := fs5secret.NewFromBytes(append([]byte(nil), keyMaterial...))
		if err != nil {
			return fs5dir.DirRef{}, err
		}
		key = buffer
		defer key.Close()
	}

	blob, hash, err := fs5snapshot.Encode(snapshot, key)
	if err != nil {
		return fs5dir.DirRef{}, err
	}
	if err := a.blobStore.Put(context.Background(), hash, blob); err != nil {
		return fs5dir.DirRef{}, fs5err.Wrap("fs5actor.encodeAndStore", fs5err.Transient, err)
	}

	ref := fs5dir.DirRef{Link: fs5dir.FixedHashLink(hash), Size: uint64(len(blob))}
	if len(keyMaterial) > 0 {
		ref.KeyMaterial = append([]byte(nil), keyMaterial...)
	}
	return ref, nil
}

func (a *Actor) persistParentLink(ctx context.Context, newRef fs5dir.DirRef) error {
	switch {
	case a.parent != nil && !a.isShardChild:
		_, err := a.parent.Execute(ctx, nil, opSetChildRef{Name: a.parentName, Ref: newRef})
		return err
	case a.parent != nil && a.isShardChild:
		_, err := a.parent.Execute(ctx, nil, opSetShardRef{Bucket: a.parentBucket, Ref: newRef})
		return err
	case a.localFilePath != "":
		return fs5store.WriteParentFile(a.localFilePath, newRef)
	case a.registryLink != nil:
		return a.saveToRegistry(ctx, newRef)
	default:
		return nil
	}
}

// saveToRegistry publishes newRef as the root's latest StreamMessage
// (spec §4.4 step 5, RegistryKey variant). A stale-revision response
// carries the registry's current entry; the actor merges that entry's
// snapshot into its own, re-encodes, and retries, bounded by
// retryBudget.
func (a *Actor) saveToRegistry(ctx context.Context, newRef fs5dir.DirRef) error {
	for attempt := 0; attempt < retryBudget; attempt++ {
		payload, err := fs5snapshot.EncodeRef(newRef)
		if err != nil {
			return err
		}

		revision := a.registryLink.revision + 1
		if wallClock := uint64(a.clock.Now().UnixMilli()); wallClock+1 > revision {
			revision = wallClock + 1
		}
		msg := fs5store.SignedBy(a.registryLink.publicKey, revision, payload, a.registryLink.privateKey)

		current, err := a.registry.Set(ctx, msg)
		if err == nil {
			a.registryLink.revision = revision
			return nil
		}
		if !fs5err.Is(err, fs5err.RegistryConflict) || current == nil {
			return err
		}

		var remoteRef fs5dir.DirRef
		if err := decodeRef(current.Payload, &remoteRef); err != nil {
			return err
		}
		remoteSnapshot, _, err := loadSnapshot(a.blobStore, remoteRef, a.key)
		if err != nil {
			return err
		}

		save := func(snapshot fs5dir.DirV1, encrypted bool, keyMaterial []byte) (fs5dir.DirRef, error) {
			return a.encodeAndStore(snapshot, keyMaterial)
		}
		merged, err := fs5merge.Merge(a.snapshot, remoteSnapshot, loadRefSnapshot(a.blobStore), save)
		if err != nil {
			return err
		}
		a.snapshot = merged
		a.registryLink.revision = current.Revision

		var keyMaterial []byte
		if a.key != nil {
			keyMaterial = append([]byte(nil), a.key.Bytes()...)
		}
		retryRef, err := a.encodeAndStore(merged, keyMaterial)
		if err != nil {
			return err
		}
		newRef = retryRef
	}
	return fs5err.New("fs5actor.saveToRegistry", fs5err.RegistryConflict)
}
