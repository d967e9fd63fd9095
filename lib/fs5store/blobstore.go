// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5store defines the abstract persistence contracts a
// directory actor saves through — a content-addressed blob store and
// a signed registry — plus one reference implementation of each: a
// local-disk blob store, atomic per write, and an in-memory registry.
package fs5store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fs5kit/fs5/lib/fs5err"
	"github.com/fs5kit/fs5/lib/fs5hash"
)

// BlobStore is the content-addressed byte store the core consumes.
// Put MUST be idempotent and MUST reject bytes whose BLAKE3 hash does
// not equal the given hash. Get on a missing hash returns a
// *fs5err.Error with Kind NotFound.
type BlobStore interface {
	Put(ctx context.Context, hash fs5hash.Hash, data []byte) error
	Get(ctx context.Context, hash fs5hash.Hash) ([]byte, error)
	Exists(ctx context.Context, hash fs5hash.Hash) (bool, error)
	Delete(ctx context.Context, hash fs5hash.Hash) error
}

// LocalBlobStore is a filesystem-backed BlobStore rooted at a single
// directory. Blobs are sharded by the first byte of the hex digest
// (root/xx/<remaining hex digits>) to keep any one directory's entry
// count bounded,
// and written via create-temp-then-rename for atomicity.
type LocalBlobStore struct {
	root string
}

// NewLocalBlobStore creates a LocalBlobStore rooted at root, creating
// the root and its tmp subdirectory if they do not exist.
func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	for _, dir := range []string{root, filepath.Join(root, "tmp")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating blob store directory %s: %w", dir, err)
		}
	}
	return &LocalBlobStore{root: root}, nil
}

// Put writes data at hash's shard path. If the target already exists
// it is left untouched (content-addressed dedup: identical bytes
// collapse to identical paths) rather than rewritten.
func (s *LocalBlobStore) Put(ctx context.Context, hash fs5hash.Hash, data []byte) error {
	if fs5hash.Of(data) != hash {
		return fs5err.New("fs5store.LocalBlobStore.Put", fs5err.Invariant)
	}

	finalPath := s.path(hash)
	if _, err := os.Stat(finalPath); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating blob shard directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Join(s.root, "tmp"), "blob-*")
	if err != nil {
		return fmt.Errorf("creating temp blob file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing blob data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing blob data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp blob file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		// Another writer may have raced us to the same hash; since
		// content is identical by construction, treat EEXIST as success.
		if _, statErr := os.Stat(finalPath); statErr == nil {
			success = true
			return nil
		}
		return fmt.Errorf("renaming blob to %s: %w", finalPath, err)
	}

	success = true
	return nil
}

// Get reads the blob at hash.
func (s *LocalBlobStore) Get(ctx context.Context, hash fs5hash.Hash) ([]byte, error) {
	data, err := os.ReadFile(s.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fs5err.Wrap("fs5store.LocalBlobStore.Get", fs5err.NotFound, err)
		}
		return nil, fs5err.Wrap("fs5store.LocalBlobStore.Get", fs5err.Transient, err)
	}
	return data, nil
}

// Exists reports whether a blob for hash is present.
func (s *LocalBlobStore) Exists(ctx context.Context, hash fs5hash.Hash) (bool, error) {
	_, err := os.Stat(s.path(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stating blob %s: %w", hash, err)
}

// Delete removes the blob at hash. Used only by garbage collection.
func (s *LocalBlobStore) Delete(ctx context.Context, hash fs5hash.Hash) error {
	if err := os.Remove(s.path(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob %s: %w", hash, err)
	}
	return nil
}

func (s *LocalBlobStore) path(hash fs5hash.Hash) string {
	prefix, rest := fs5hash.ShardPath(hash)
	return filepath.Join(s.root, prefix, rest)
}
