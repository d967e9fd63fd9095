// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5merge reconciles two directory snapshots with
// last-write-wins semantics over file timestamps, preserving version
// history and tombstones on both sides, and recursing into shared
// sub-directories.
package fs5merge

import (
	"bytes"

	"github.com/fs5kit/fs5/lib/fs5dir"
	"github.com/fs5kit/fs5/lib/fs5err"
)

// Loader fetches and decodes the sub-snapshot a DirRef points at, so
// Merge can recurse into a sub-directory present on both sides. It is
// the caller's responsibility to supply decryption keys as needed;
// Loader should return a MissingKey error (see lib/fs5err) if it
// cannot.
type Loader func(ref fs5dir.DirRef) (fs5dir.DirV1, error)

// Saver persists a freshly merged sub-directory snapshot (encoding,
// encrypting under the given key material if any, hashing, and
// writing to the blob store) and returns the DirRef to install in the
// parent's dirs map. encrypted/keyMaterial are carried forward
// unchanged from the pre-merge ref, since mergeDirRef already
// verified both sides agree on encryption state.
type Saver func(snapshot fs5dir.DirV1, encrypted bool, keyMaterial []byte) (fs5dir.DirRef, error)

// Merge produces a new DirV1 combining local and remote. Files and
// sub-directories merge to the same result whichever side is passed
// as local, up to the deterministic tiebreak in mergeFileRef. The
// shard table does not: a bucket present in both headers keeps
// local's DirRef and the two buckets' contents are not merged, so for
// sharded headers the result depends on argument order.
func Merge(local, remote fs5dir.DirV1, load Loader, save Saver) (fs5dir.DirV1, error) {
	merged := fs5dir.New()

	for name := range union(local.Files, remote.Files) {
		localRef, hasLocal := local.Files[name]
		remoteRef, hasRemote := remote.Files[name]

		switch {
		case hasLocal && hasRemote:
			merged.Files[name] = mergeFileRef(localRef, remoteRef)
		case hasLocal:
			merged.Files[name] = localRef
		default:
			merged.Files[name] = remoteRef
		}
	}

	for name := range union(local.Dirs, remote.Dirs) {
		localRef, hasLocal := local.Dirs[name]
		remoteRef, hasRemote := remote.Dirs[name]

		switch {
		case hasLocal && hasRemote:
			mergedRef, err := mergeDirRef(name, localRef, remoteRef, load, save)
			if err != nil {
				return fs5dir.DirV1{}, err
			}
			merged.Dirs[name] = mergedRef
		case hasLocal:
			merged.Dirs[name] = localRef
		default:
			merged.Dirs[name] = remoteRef
		}
	}

	header, err := mergeHeaders(local.Header, remote.Header)
	if err != nil {
		return fs5dir.DirV1{}, err
	}
	merged.Header = header

	return merged, nil
}

// timestampKey combines seconds and sub-second nanos into a single
// comparable value, refining second-granularity ties per §5 of
// SPEC_FULL.md.
func timestampKey(seconds, subsecNanos uint32) uint64 {
	return uint64(seconds)*1e9 + uint64(subsecNanos)
}

// mergeFileRef resolves a head-to-head conflict for one name present
// on both sides: the strictly later timestamp wins; ties break on hash
// bytes (greater wins) for determinism. A tombstone participates in
// this comparison exactly like a live entry — only its timestamp
// matters for who wins.
//
// When the two heads have genuinely diverged from a shared ancestor —
// neither side's version chain already contains the other's head —
// the losing side is grafted under the winner's Prev rather than
// discarded, so a branch that loses the LWW race is still reachable
// from the merged chain instead of disappearing from history.
func mergeFileRef(local, remote fs5dir.FileRef) fs5dir.FileRef {
	localKey := timestampKey(local.TimestampSeconds, local.TimestampSubsecNanos)
	remoteKey := timestampKey(remote.TimestampSeconds, remote.TimestampSubsecNanos)

	winner, loser := local, remote
	switch {
	case remoteKey > localKey:
		winner, loser = remote, local
	case localKey == remoteKey && bytes.Compare(remote.Hash[:], local.Hash[:]) > 0:
		winner, loser = remote, local
	}

	if chainContainsVersion(winner, loser) || chainContainsVersion(loser, winner) {
		// One side's chain already contains the other's head: this is
		// a fast-forward, not a divergence, so the winner already
		// carries the full history.
		return winner
	}

	merged := winner
	grafted := loser
	merged.Prev = &grafted
	merged.VersionCount = loser.VersionCount + 1
	if loser.FirstVersion != 0 && (merged.FirstVersion == 0 || loser.FirstVersion < merged.FirstVersion) {
		merged.FirstVersion = loser.FirstVersion
	}
	return merged
}

// chainContainsVersion reports whether ref or any version in its Prev
// chain is the same version as target. Tombstones all share the zero
// hash, so identity is Hash plus Kind and timestamp rather than Hash
// alone — otherwise two independently-diverged tombstones would look
// like the same version and wrongly short-circuit the splice below.
func chainContainsVersion(ref, target fs5dir.FileRef) bool {
	for cur := &ref; cur != nil; cur = cur.Prev {
		if cur.Hash == target.Hash && cur.Kind == target.Kind &&
			cur.TimestampSeconds == target.TimestampSeconds &&
			cur.TimestampSubsecNanos == target.TimestampSubsecNanos {
			return true
		}
	}
	return false
}

func mergeDirRef(name string, local, remote fs5dir.DirRef, load Loader, save Saver) (fs5dir.DirRef, error) {
	if local.Encrypted() != remote.Encrypted() {
		return fs5dir.DirRef{}, fs5err.New("fs5merge.mergeDirRef:"+name, fs5err.IncompatibleEncryption)
	}
	if local.Encrypted() && !bytes.Equal(local.KeyMaterial, remote.KeyMaterial) {
		return fs5dir.DirRef{}, fs5err.New("fs5merge.mergeDirRef:"+name, fs5err.IncompatibleEncryption)
	}

	localSnapshot, err := load(local)
	if err != nil {
		return fs5dir.DirRef{}, err
	}
	remoteSnapshot, err := load(remote)
	if err != nil {
		return fs5dir.DirRef{}, err
	}

	mergedSnapshot, err := Merge(localSnapshot, remoteSnapshot, load, save)
	if err != nil {
		return fs5dir.DirRef{}, err
	}

	ref, err := save(mergedSnapshot, local.Encrypted(), local.KeyMaterial)
	if err != nil {
		return fs5dir.DirRef{}, err
	}

	later := local
	if timestampKey(remote.TimestampSeconds, remote.TimestampSubsecNanos) > timestampKey(local.TimestampSeconds, local.TimestampSubsecNanos) {
		later = remote
	}
	ref.TimestampSeconds = later.TimestampSeconds
	ref.TimestampSubsecNanos = later.TimestampSubsecNanos
	return ref, nil
}

func mergeHeaders(local, remote fs5dir.DirHeader) (fs5dir.DirHeader, error) {
	if !local.Sharded() && !remote.Sharded() {
		return fs5dir.DirHeader{}, nil
	}
	// Re-sharding after a header-level merge is performed by the
	// directory actor (it owns the auto-sharding threshold and the
	// shard child actors); the merge engine only needs to signal that
	// a re-shard is required by returning an unsharded header when the
	// two sides' shard counts disagree, matching "unsharded first and
	// re-sharded after merge".
	if len(local.Shards) == len(remote.Shards) {
		merged := make(map[uint8]fs5dir.DirRef, len(local.Shards))
		for bucket, ref := range local.Shards {
			merged[bucket] = ref
		}
		for bucket, ref := range remote.Shards {
			if _, exists := merged[bucket]; !exists {
				merged[bucket] = ref
			}
		}
		return fs5dir.DirHeader{Shards: merged}, nil
	}
	return fs5dir.DirHeader{}, nil
}

func union[V any](a, b map[string]V) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}
