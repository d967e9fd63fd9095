// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

package fs5store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fs5kit/fs5/lib/fs5codec"
	"github.com/fs5kit/fs5/lib/fs5dir"
	"github.com/fs5kit/fs5/lib/fs5err"
)

// RootFileName is the conventional filename for the LocalFile parent
// link: the CBOR-encoded DirRef pointing at the current root
// snapshot.
const RootFileName = "root.fs5.cbor"

// SnapshotsFileName is the conventional filename for named historical
// DirRefs that extend the GC root set beyond the current head.
const SnapshotsFileName = "snapshots.fs5.cbor"

// WriteParentFile atomically writes ref's CBOR encoding to path via
// create-temp-then-rename, the same pattern LocalBlobStore uses for
// blob writes.
func WriteParentFile(path string, ref fs5dir.DirRef) error {
	data, err := fs5codec.Marshal(ref)
	if err != nil {
		return fmt.Errorf("encoding parent link: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating parent link directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp parent link file: %w", err)
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
		return fmt.Errorf("writing parent link: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing parent link: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp parent link file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming parent link to %s: %w", path, err)
	}

	success = true
	return nil
}

// ReadParentFile reads and decodes the DirRef at path.
func ReadParentFile(path string) (fs5dir.DirRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs5dir.DirRef{}, fs5err.Wrap("fs5store.ReadParentFile", fs5err.NotFound, err)
		}
		return fs5dir.DirRef{}, fmt.Errorf("reading parent link %s: %w", path, err)
	}

	var ref fs5dir.DirRef
	if err := fs5codec.Unmarshal(data, &ref); err != nil {
		return fs5dir.DirRef{}, fs5err.Wrap("fs5store.ReadParentFile", fs5err.BadFormat, err)
	}
	return ref, nil
}
