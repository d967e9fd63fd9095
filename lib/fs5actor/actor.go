// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5actor implements the per-directory single-writer state
// machine: each Actor owns exactly one live DirV1, processes mutation
// commands from a FIFO mailbox one at a time, spawns child actors
// lazily, and recursively saves itself and its dirty children.
package fs5actor

import (
	"context"

	"github.com/fs5kit/fs5/lib/fs5clock"
	"github.com/fs5kit/fs5/lib/fs5crypto"
	"github.com/fs5kit/fs5/lib/fs5dir"
	"github.com/fs5kit/fs5/lib/fs5err"
	"github.com/fs5kit/fs5/lib/fs5hash"
	"github.com/fs5kit/fs5/lib/fs5resolve"
	"github.com/fs5kit/fs5/lib/fs5secret"
	"github.com/fs5kit/fs5/lib/fs5snapshot"
	"github.com/fs5kit/fs5/lib/fs5store"
)

// mailboxCapacity bounds how many commands may be enqueued on one
// actor before Execute blocks the caller. A directory actor processes
// its mailbox strictly in order (spec §4.3 "Mailbox"), so this is a
// backpressure valve, not a correctness parameter.
const mailboxCapacity = 64

// shardThreshold is the encoded-size trigger for auto-sharding, per
// spec §4.3 ("~64 KiB target") and §9 (fixed for determinism).
const shardThreshold = 64 * 1024

// initialShardCount is N in spec §4.3: the number of buckets a
// directory promotes itself into the first time it shards.
const initialShardCount = 16

// retryBudget bounds how many merge-and-retry cycles a RegistryKey
// save attempts before surfacing RegistryConflict (spec §4.4
// "Failure semantics").
const retryBudget = 5

// command is one mailbox entry: a path to resolve further (possibly
// empty, meaning "apply Op here") and the operation to apply once
// resolution reaches its target.
type command struct {
	ctx    context.Context
	path   []string
	op     Operation
	result chan commandResult
}

type commandResult struct {
	value any
	err   error
}

// Actor owns one directory's live snapshot and mailbox. The zero
// value is not usable; construct with NewRootLocalFile or
// NewRootRegistry, or via routing from a parent.
type Actor struct {
	mailbox chan *command

	clock     fs5clock.Clock
	blobStore fs5store.BlobStore
	registry  fs5store.Registry

	// key is the directory's own encryption key, nil if unencrypted.
	key *fs5secret.Buffer

	snapshot fs5dir.DirV1
	dirty    bool

	currentHash fs5hash.Hash
	currentSize uint64

	children      map[string]*Actor
	shardChildren map[uint8]*Actor

	// Parent-link descriptor: exactly one of the following applies.
	parent        *Actor
	parentName    string
	parentBucket  uint8
	isShardChild  bool
	localFilePath string
	registryLink  *registryParentLink
}

// NewRootLocalFile constructs (or loads) the root actor whose latest
// DirRef is discovered from a CBOR file at path (spec §3 "LocalFile
// parent link"). If the file does not exist, a fresh empty root is
// created; the first Save will write it.
func NewRootLocalFile(store fs5store.BlobStore, clock fs5clock.Clock, path string, key *fs5secret.Buffer) (*Actor, error) {
	actor := newBareActor(store, nil, clock, key)
	actor.localFilePath = path

	ref, err := fs5store.ReadParentFile(path)
	if err != nil {
		if fs5err.Is(err, fs5err.NotFound) {
			actor.snapshot = fs5dir.New()
			go actor.run()
			return actor, nil
		}
		return nil, err
	}

	snapshot, hash, err := loadSnapshot(store, ref, key)
	if err != nil {
		return nil, err
	}
	actor.snapshot = snapshot
	actor.currentHash = hash
	actor.currentSize = ref.Size
	go actor.run()
	return actor, nil
}

// NewRootRegistry constructs (or loads) the root actor whose latest
// DirRef is the payload of a signed StreamMessage in the registry,
// keyed by publicKey (spec §3 "RegistryKey parent link").
func NewRootRegistry(store fs5store.BlobStore, registry fs5store.Registry, clock fs5clock.Clock, link *registryParentLink, key *fs5secret.Buffer) (*Actor, error) {
	actor := newBareActor(store, registry, clock, key)
	actor.registryLink = link

	msg, ok, err := registry.Get(context.Background(), link.publicKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		actor.snapshot = fs5dir.New()
		go actor.run()
		return actor, nil
	}

	var ref fs5dir.DirRef
	if err := decodeRef(msg.Payload, &ref); err != nil {
		return nil, err
	}
	link.revision = msg.Revision

	snapshot, hash, err := loadSnapshot(store, ref, key)
	if err != nil {
		return nil, err
	}
	actor.snapshot = snapshot
	actor.currentHash = hash
	actor.currentSize = ref.Size
	go actor.run()
	return actor, nil
}

func newBareActor(store fs5store.BlobStore, registry fs5store.Registry, clock fs5clock.Clock, key *fs5secret.Buffer) *Actor {
	return &Actor{
		mailbox:       make(chan *command, mailboxCapacity),
		clock:         clock,
		blobStore:     store,
		registry:      registry,
		key:           key,
		children:      make(map[string]*Actor),
		shardChildren: make(map[uint8]*Actor),
	}
}

// Execute enqueues a command and blocks until it completes or ctx is
// canceled. path is the remaining sequence of names to resolve
// before applying op; an empty path means "apply op to this actor's
// own directory".
func (a *Actor) Execute(ctx context.Context, path []string, op Operation) (any, error) {
	cmd := &command{ctx: ctx, path: path, op: op, result: make(chan commandResult, 1)}

	select {
	case a.mailbox <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-cmd.result:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Enqueue sends a command to the mailbox and returns once it has been
// accepted, without waiting for it to be applied. This is the
// fire-and-forget half of the dual put API (spec §4.9 file_put vs
// file_put_sync): the mailbox still processes commands strictly in
// order, so an Enqueue followed by an Execute on the same actor
// observes the Enqueue's effect. The command's result is discarded:
// an error from applying it is reported neither to this call's caller
// nor to a later Save.
func (a *Actor) Enqueue(ctx context.Context, path []string, op Operation) error {
	cmd := &command{ctx: ctx, path: path, op: op, result: make(chan commandResult, 1)}

	select {
	case a.mailbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) run() {
	for cmd := range a.mailbox {
		value, err := a.handle(cmd)
		cmd.result <- commandResult{value: value, err: err}
	}
}

func (a *Actor) handle(cmd *command) (any, error) {
	if len(cmd.path) > 0 {
		name := cmd.path[0]
		child, err := a.routeChild(cmd.ctx, name, createsIntermediateDirs(cmd.op))
		if err != nil {
			return nil, err
		}
		return child.Execute(cmd.ctx, cmd.path[1:], cmd.op)
	}
	return a.applyLocal(cmd.ctx, cmd.op)
}

// createsIntermediateDirs reports whether resolving a path for this
// operation should create missing intermediate directories rather
// than fail with NotFound. subdir() and file writes behave like
// "mkdir -p"; reads and deletes do not conjure directories that were
// never created (Open Question resolution, recorded in DESIGN.md).
func createsIntermediateDirs(op Operation) bool {
	switch op.(type) {
	case OpPut, OpCreateDir, OpResolve:
		return true
	default:
		return false
	}
}

func (a *Actor) routeChild(ctx context.Context, name string, createMissing bool) (*Actor, error) {
	if a.snapshot.Header.Sharded() {
		bucket := uint8(fs5resolve.Bucket(name, len(a.snapshot.Header.Shards)))
		return a.shardChildActor(ctx, bucket)
	}

	if ref, ok := a.snapshot.Dirs[name]; ok {
		return a.childActor(ctx, name, ref)
	}

	if !createMissing {
		return nil, fs5err.New("fs5actor.routeChild", fs5err.NotFound)
	}

	ref, err := a.newChildRef(name)
	if err != nil {
		return nil, err
	}
	a.snapshot.Dirs[name] = ref
	a.dirty = true

	child, err := a.childActor(ctx, name, ref)
	if err != nil {
		return nil, err
	}
	if err := a.autoShardIfNeeded(ctx); err != nil {
		return nil, err
	}
	return child, nil
}

// newChildRef builds the DirRef for a freshly created, not-yet-saved
// sub-directory, inheriting encryption from this directory if it is
// encrypted (spec §4.2 "inherits encryption").
func (a *Actor) newChildRef(name string) (fs5dir.DirRef, error) {
	if a.key == nil {
		return fs5dir.DirRef{}, nil
	}
	childKey, err := fs5crypto.DeriveChildKey(a.key, name)
	if err != nil {
		return fs5dir.DirRef{}, err
	}
	defer childKey.Close()
	return fs5dir.DirRef{KeyMaterial: append([]byte(nil), childKey.Bytes()...)}, nil
}

func (a *Actor) childActor(ctx context.Context, name string, ref fs5dir.DirRef) (*Actor, error) {
	if child, ok := a.children[name]; ok {
		return child, nil
	}
	child, err := a.spawnChild(ctx, ref)
	if err != nil {
		return nil, err
	}
	child.parent = a
	child.parentName = name
	a.children[name] = child
	return child, nil
}

func (a *Actor) shardChildActor(ctx context.Context, bucket uint8) (*Actor, error) {
	if child, ok := a.shardChildren[bucket]; ok {
		return child, nil
	}
	ref, ok := a.snapshot.Header.Shards[bucket]
	if !ok {
		return nil, fs5err.New("fs5actor.shardChildActor", fs5err.Invariant)
	}
	child, err := a.spawnChild(ctx, ref)
	if err != nil {
		return nil, err
	}
	child.parent = a
	child.parentBucket = bucket
	child.isShardChild = true
	a.shardChildren[bucket] = child
	return child, nil
}

func (a *Actor) spawnChild(ctx context.Context, ref fs5dir.DirRef) (*Actor, error) {
	var key *fs5secret.Buffer
	if len(ref.KeyMaterial) > 0 {
		buffer, err := fs5secret.NewFromBytes(append([]byte(nil), ref.KeyMaterial...))
		if err != nil {
			return nil, err
		}
		key = buffer
	}

	child := newBareActor(a.blobStore, a.registry, a.clock, key)

	if hash, ok := ref.Link.Hash(); ok && !hash.Zero() {
		snapshot, loadedHash, err := loadSnapshot(a.blobStore, ref, key)
		if err != nil {
			return nil, err
		}
		child.snapshot = snapshot
		child.currentHash = loadedHash
		child.currentSize = ref.Size
	} else {
		child.snapshot = fs5dir.New()
	}

	go child.run()
	return child, nil
}

func loadSnapshot(store fs5store.BlobStore, ref fs5dir.DirRef, key *fs5secret.Buffer) (fs5dir.DirV1, fs5hash.Hash, error) {
	hash, ok := ref.Link.Hash()
	if !ok {
		return fs5dir.DirV1{}, fs5hash.Hash{}, fs5err.New("fs5actor.loadSnapshot", fs5err.Invariant)
	}
	if ref.Encrypted() && key == nil {
		return fs5dir.DirV1{}, fs5hash.Hash{}, fs5err.New("fs5actor.loadSnapshot", fs5err.MissingKey)
	}

	blob, err := store.Get(context.Background(), hash)
	if err != nil {
		return fs5dir.DirV1{}, fs5hash.Hash{}, err
	}
	if fs5hash.Of(blob) != hash {
		return fs5dir.DirV1{}, fs5hash.Hash{}, fs5err.New("fs5actor.loadSnapshot", fs5err.Invariant)
	}

	snapshot, err := fs5snapshot.Decode(blob, key)
	if err != nil {
		return fs5dir.DirV1{}, fs5hash.Hash{}, err
	}
	return snapshot, hash, nil
}
