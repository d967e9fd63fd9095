// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5gc implements the reachability walk a blob store sweep
// uses to decide what it may delete: every hash transitively
// reachable from a root, including historical FileRef versions.
package fs5gc

import (
	"github.com/fs5kit/fs5/lib/fs5dir"
	"github.com/fs5kit/fs5/lib/fs5hash"
)

// Loader fetches and decodes the snapshot a DirRef points at. It
// must itself decrypt when key material is available. If it returns
// an error (MissingKey for a snapshot it cannot decrypt, say),
// CollectReachable stops and returns that error.
type Loader func(ref fs5dir.DirRef) (fs5dir.DirV1, error)

// CollectReachable performs a depth-first walk from a root snapshot
// (already decoded, with rootHash its own blob hash) and returns the
// mark set: every hash that must survive a GC sweep. It is a superset
// of every hash appearing in any FileRef (any version) or DirRef
// reachable from the root; nothing else is required (spec P7).
func CollectReachable(rootHash fs5hash.Hash, root fs5dir.DirV1, load Loader) (map[fs5hash.Hash]struct{}, error) {
	marks := map[fs5hash.Hash]struct{}{rootHash: {}}
	if err := walk(root, load, marks); err != nil {
		return nil, err
	}
	return marks, nil
}

func walk(dir fs5dir.DirV1, load Loader, marks map[fs5hash.Hash]struct{}) error {
	for _, fileRef := range dir.Files {
		chain := &fileRef
		for chain != nil {
			if !chain.Hash.Zero() {
				marks[chain.Hash] = struct{}{}
			}
			chain = chain.Prev
		}
	}

	for _, dirRef := range dir.Dirs {
		hash, ok := dirRef.Link.Hash()
		if !ok {
			// A registry-rooted child's reachable hash is whatever the
			// registry currently serves for its public key, which this
			// walk does not resolve on its own; the caller is expected
			// to have already dereferenced the registry entry into a
			// DirRef carrying a fixed hash before reaching this point.
			continue
		}
		if _, seen := marks[hash]; seen {
			continue
		}
		marks[hash] = struct{}{}

		childSnapshot, err := load(dirRef)
		if err != nil {
			return err
		}
		if err := walk(childSnapshot, load, marks); err != nil {
			return err
		}
	}

	for _, shardRef := range dir.Header.Shards {
		hash, ok := shardRef.Link.Hash()
		if !ok {
			continue
		}
		if _, seen := marks[hash]; seen {
			continue
		}
		marks[hash] = struct{}{}

		shardSnapshot, err := load(shardRef)
		if err != nil {
			return err
		}
		if err := walk(shardSnapshot, load, marks); err != nil {
			return err
		}
	}

	return nil
}
