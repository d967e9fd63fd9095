// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

package fs5

import (
	"context"
	"crypto/ed25519"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fs5kit/fs5/lib/fs5clock"
	"github.com/fs5kit/fs5/lib/fs5dir"
	"github.com/fs5kit/fs5/lib/fs5hash"
	"github.com/fs5kit/fs5/lib/fs5store"
)

func openLocalTestHandle(t *testing.T) *Handle {
	t.Helper()
	store, err := fs5store.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBlobStore: %v", err)
	}
	path := filepath.Join(t.TempDir(), fs5store.RootFileName)
	handle, err := OpenLocalFile(path, store, testClock(), nil)
	if err != nil {
		t.Fatalf("OpenLocalFile: %v", err)
	}
	return handle
}

func fileRefFor(content string) fs5dir.FileRef {
	return fs5dir.FileRef{
		Kind: fs5dir.ContentBlob,
		Hash: fs5hash.Of([]byte(content)),
		Size: uint64(len(content)),
	}
}

func TestFilePutSyncFileGetRoundTrip(t *testing.T) {
	handle := openLocalTestHandle(t)
	ctx := context.Background()

	if err := handle.FilePutSync(ctx, "/photos/beach.jpg", fileRefFor("jpeg bytes")); err != nil {
		t.Fatalf("FilePutSync: %v", err)
	}

	ref, err := handle.FileGet(ctx, "/photos/beach.jpg")
	if err != nil {
		t.Fatalf("FileGet: %v", err)
	}
	if ref.Hash != fs5hash.Of([]byte("jpeg bytes")) {
		t.Fatal("FileGet returned the wrong content hash")
	}
}

func TestFileExists(t *testing.T) {
	handle := openLocalTestHandle(t)
	ctx := context.Background()

	ok, err := handle.FileExists(ctx, "/a.txt")
	if err != nil {
		t.Fatalf("FileExists: %v", err)
	}
	if ok {
		t.Fatal("FileExists reported true before any put")
	}

	if err := handle.FilePutSync(ctx, "/a.txt", fileRefFor("a")); err != nil {
		t.Fatalf("FilePutSync: %v", err)
	}
	ok, err = handle.FileExists(ctx, "/a.txt")
	if err != nil {
		t.Fatalf("FileExists: %v", err)
	}
	if !ok {
		t.Fatal("FileExists reported false after put")
	}
}

func TestFileDeleteThenGetNotFound(t *testing.T) {
	handle := openLocalTestHandle(t)
	ctx := context.Background()

	if err := handle.FilePutSync(ctx, "/doomed.txt", fileRefFor("doomed")); err != nil {
		t.Fatalf("FilePutSync: %v", err)
	}
	if err := handle.FileDelete(ctx, "/doomed.txt"); err != nil {
		t.Fatalf("FileDelete: %v", err)
	}
	if _, err := handle.FileGet(ctx, "/doomed.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FileGet after delete returned %v, want ErrNotFound", err)
	}
}

func TestFileDeleteOnNeverCreatedThenAgainChainsTombstones(t *testing.T) {
	handle := openLocalTestHandle(t)
	ctx := context.Background()

	if err := handle.FileDelete(ctx, "/never-existed.txt"); err != nil {
		t.Fatalf("FileDelete on a path with no prior entry: %v", err)
	}
	if _, err := handle.FileGet(ctx, "/never-existed.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FileGet after delete-without-put returned %v, want ErrNotFound", err)
	}

	snapshot, err := handle.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	first := snapshot.Files["never-existed.txt"]
	if !first.IsTombstone() || first.VersionCount != 1 {
		t.Fatalf("first delete left %+v, want a version-1 tombstone", first)
	}

	if err := handle.FileDelete(ctx, "/never-existed.txt"); err != nil {
		t.Fatalf("second FileDelete on an already-tombstoned path: %v", err)
	}
	snapshot, err = handle.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	second := snapshot.Files["never-existed.txt"]
	if !second.IsTombstone() || second.VersionCount != 2 {
		t.Fatalf("second delete left %+v, want a version-2 tombstone", second)
	}
	if second.Prev == nil || !second.Prev.IsTombstone() {
		t.Fatal("second delete did not chain onto the first tombstone")
	}
}

func TestFileMoveRelocatesContentAndTombstonesSource(t *testing.T) {
	handle := openLocalTestHandle(t)
	ctx := context.Background()

	if err := handle.FilePutSync(ctx, "/src/report.pdf", fileRefFor("report bytes")); err != nil {
		t.Fatalf("FilePutSync: %v", err)
	}
	if err := handle.FileMove(ctx, "/src/report.pdf", "/dst/report.pdf"); err != nil {
		t.Fatalf("FileMove: %v", err)
	}

	if _, err := handle.FileGet(ctx, "/src/report.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FileGet on moved-away source returned %v, want ErrNotFound", err)
	}
	ref, err := handle.FileGet(ctx, "/dst/report.pdf")
	if err != nil {
		t.Fatalf("FileGet on move destination: %v", err)
	}
	if ref.Hash != fs5hash.Of([]byte("report bytes")) {
		t.Fatal("moved file lost its content")
	}
}

func TestCreateDirThenSubdirOperations(t *testing.T) {
	handle := openLocalTestHandle(t)
	ctx := context.Background()

	if err := handle.CreateDir(ctx, "/docs", false); err != nil {
		t.Fatalf("CreateDir: %v", err)
	}
	sub, err := handle.Subdir(ctx, "/docs")
	if err != nil {
		t.Fatalf("Subdir: %v", err)
	}
	if err := sub.FilePutSync(ctx, "/readme.md", fileRefFor("readme contents")); err != nil {
		t.Fatalf("FilePutSync via Subdir handle: %v", err)
	}

	ref, err := handle.FileGet(ctx, "/docs/readme.md")
	if err != nil {
		t.Fatalf("FileGet via the original handle: %v", err)
	}
	if ref.Hash != fs5hash.Of([]byte("readme contents")) {
		t.Fatal("wrong content when reached through both the original path and a resolved Subdir handle")
	}
}

func TestEncryptedSubdirIsolatesKeyMaterial(t *testing.T) {
	handle := openLocalTestHandle(t)
	ctx := context.Background()

	if err := handle.CreateDir(ctx, "/vault", true); err != nil {
		t.Fatalf("CreateDir(encrypted): %v", err)
	}
	if err := handle.FilePutSync(ctx, "/vault/secret.txt", fileRefFor("classified")); err != nil {
		t.Fatalf("FilePutSync: %v", err)
	}
	if err := handle.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ref, err := handle.FileGet(ctx, "/vault/secret.txt")
	if err != nil {
		t.Fatalf("FileGet through the encrypted subdirectory: %v", err)
	}
	if ref.Hash != fs5hash.Of([]byte("classified")) {
		t.Fatal("wrong content retrieved through an encrypted subdirectory")
	}
}

func TestListReturnsPutEntriesSorted(t *testing.T) {
	handle := openLocalTestHandle(t)
	ctx := context.Background()

	for _, name := range []string{"/zebra.txt", "/alpha.txt", "/mango.txt"} {
		if err := handle.FilePutSync(ctx, name, fileRefFor(name)); err != nil {
			t.Fatalf("FilePutSync(%s): %v", name, err)
		}
	}

	page, err := handle.List(ctx, nil, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Entries) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(page.Entries))
	}
	want := []string{"alpha.txt", "mango.txt", "zebra.txt"}
	for i, w := range want {
		if page.Entries[i].Name != w {
			t.Fatalf("entries[%d] = %q, want %q", i, page.Entries[i].Name, w)
		}
	}
}

func TestBatchAppliesAllMutations(t *testing.T) {
	handle := openLocalTestHandle(t)
	ctx := context.Background()

	err := handle.Batch(ctx, func(h *Handle) error {
		if err := h.FilePutSync(ctx, "/one.txt", fileRefFor("one")); err != nil {
			return err
		}
		return h.FilePutSync(ctx, "/two.txt", fileRefFor("two"))
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	snapshot, err := handle.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	if len(snapshot.Files) != 2 {
		t.Fatalf("snapshot has %d files, want 2", len(snapshot.Files))
	}
}

func TestBatchReturnsCallbackError(t *testing.T) {
	handle := openLocalTestHandle(t)
	ctx := context.Background()
	sentinel := errors.New("boom")

	err := handle.Batch(ctx, func(h *Handle) error {
		if err := h.FilePutSync(ctx, "/partial.txt", fileRefFor("partial")); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Batch returned %v, want the sentinel error", err)
	}
}

func TestMergeFromSnapshotMergesLiveState(t *testing.T) {
	handle := openLocalTestHandle(t)
	ctx := context.Background()

	other := fs5dir.New()
	other.Files["peer.txt"] = fs5dir.FileRef{
		Kind: fs5dir.ContentBlob, Hash: fs5hash.Of([]byte("peer content")),
		TimestampSeconds: 100, VersionCount: 1,
	}

	if err := handle.MergeFromSnapshot(ctx, other); err != nil {
		t.Fatalf("MergeFromSnapshot: %v", err)
	}

	ref, err := handle.FileGet(ctx, "/peer.txt")
	if err != nil {
		t.Fatalf("FileGet after merge: %v", err)
	}
	if ref.Hash != fs5hash.Of([]byte("peer content")) {
		t.Fatal("merge did not bring in the peer's file")
	}
}

func TestOpenRegistryRoundTrip(t *testing.T) {
	store, err := fs5store.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBlobStore: %v", err)
	}
	registry := fs5store.NewLocalRegistry()
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	var key [32]byte
	copy(key[:], publicKey)

	handle, err := OpenRegistry(registry, store, testClock(), key, privateKey, nil)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	ctx := context.Background()

	if err := handle.FilePutSync(ctx, "/remote.txt", fileRefFor("remote content")); err != nil {
		t.Fatalf("FilePutSync: %v", err)
	}
	if err := handle.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := OpenRegistry(registry, store, testClock(), key, privateKey, nil)
	if err != nil {
		t.Fatalf("OpenRegistry (reopen): %v", err)
	}
	ref, err := reopened.FileGet(ctx, "/remote.txt")
	if err != nil {
		t.Fatalf("FileGet after reopening from the registry: %v", err)
	}
	if ref.Hash != fs5hash.Of([]byte("remote content")) {
		t.Fatal("reopened registry root lost its published content")
	}
}

func TestFilePutOnEmptyPathIsRejected(t *testing.T) {
	handle := openLocalTestHandle(t)
	if err := handle.FilePutSync(context.Background(), "/", fileRefFor("x")); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("FilePutSync on an empty path returned %v, want ErrBadFormat", err)
	}
}

func TestSubdirKeyInheritanceAcrossEncryptedAncestor(t *testing.T) {
	handle := openLocalTestHandle(t)
	ctx := context.Background()

	if err := handle.CreateDir(ctx, "/vault", true); err != nil {
		t.Fatalf("CreateDir(encrypted): %v", err)
	}
	// Resolving a deeper path under the encrypted directory should
	// transparently create an intermediate directory that inherits
	// encryption, per fs5crypto.DeriveChildKey.
	if err := handle.FilePutSync(ctx, "/vault/inner/deep.txt", fileRefFor("deep secret")); err != nil {
		t.Fatalf("FilePutSync through an inherited-encryption intermediate dir: %v", err)
	}
	ref, err := handle.FileGet(ctx, "/vault/inner/deep.txt")
	if err != nil {
		t.Fatalf("FileGet: %v", err)
	}
	if ref.Hash != fs5hash.Of([]byte("deep secret")) {
		t.Fatal("wrong content through an inherited-encryption intermediate directory")
	}
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testClock() fs5clock.Clock {
	return fs5clock.Fake(epoch)
}
