// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

package fs5actor

import (
	"context"

	"github.com/fs5kit/fs5/lib/fs5dir"
	"github.com/fs5kit/fs5/lib/fs5resolve"
	"github.com/fs5kit/fs5/lib/fs5snapshot"
)

// autoShardIfNeeded checks whether this directory's encoded size has
// crossed shardThreshold and, if so and it is not already sharded,
// promotes it into initialShardCount buckets (spec §4.3 "Sharding").
func (a *Actor) autoShardIfNeeded(ctx context.Context) error {
	if a.snapshot.Header.Sharded() || a.isShardChild {
		return nil
	}

	size, err := fs5snapshot.EncodedSize(a.snapshot, a.key != nil)
	if err != nil {
		return err
	}
	if size <= shardThreshold {
		return nil
	}

	return a.shardNow(ctx)
}

// shardNow partitions this directory's Files and Dirs across
// initialShardCount fresh bucket directories, routed by
// fs5resolve.Bucket(name). Each shard inherits this directory's own
// encryption key unchanged: sharding reorganizes where entries live,
// it is not a new encryption boundary. Any already-live child actor
// for a sub-directory being moved is reparented onto its new shard
// actor rather than dropped, so in-flight mailboxes stay valid.
func (a *Actor) shardNow(ctx context.Context) error {
	buckets := make([]fs5dir.DirV1, initialShardCount)
	for i := range buckets {
		buckets[i] = fs5dir.New()
	}

	for name, ref := range a.snapshot.Files {
		bucket := fs5resolve.Bucket(name, initialShardCount)
		buckets[bucket].Files[name] = ref
	}

	movedChildren := make(map[int]map[string]*Actor)
	for name, ref := range a.snapshot.Dirs {
		bucket := fs5resolve.Bucket(name, initialShardCount)
		buckets[bucket].Dirs[name] = ref
		if child, live := a.children[name]; live {
			if movedChildren[bucket] == nil {
				movedChildren[bucket] = make(map[string]*Actor)
			}
			movedChildren[bucket][name] = child
			delete(a.children, name)
		}
	}

	a.shardChildren = make(map[uint8]*Actor, initialShardCount)
	a.snapshot.Header.Shards = make(map[uint8]fs5dir.DirRef, initialShardCount)

	for bucket, snapshot := range buckets {
		child := newBareActor(a.blobStore, a.registry, a.clock, a.key)
		child.snapshot = snapshot
		child.parent = a
		child.parentBucket = uint8(bucket)
		child.isShardChild = true
		child.dirty = true
		for name, live := range movedChildren[bucket] {
			live.parent = child
			live.parentName = name
			live.isShardChild = false
			child.children[name] = live
		}
		go child.run()

		a.shardChildren[uint8(bucket)] = child
		a.snapshot.Header.Shards[uint8(bucket)] = fs5dir.DirRef{}
	}

	a.snapshot.Files = make(map[string]fs5dir.FileRef)
	a.snapshot.Dirs = make(map[string]fs5dir.DirRef)
	a.dirty = true
	return nil
}
