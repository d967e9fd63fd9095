// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

package fs5crypto

import (
	"bytes"
	"testing"

	"github.com/fs5kit/fs5/lib/fs5err"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	defer key.Close()

	plaintext := []byte("a directory snapshot's worth of bytes")
	sealed, err := Seal(plaintext, key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if len(sealed) != len(plaintext)+Overhead {
		t.Fatalf("sealed length = %d, want %d", len(sealed), len(plaintext)+Overhead)
	}

	opened, err := Open(sealed, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: got %q, want %q", opened, plaintext)
	}
}

func TestSealProducesDistinctCiphertextEachTime(t *testing.T) {
	key, err := NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	defer key.Close()

	plaintext := []byte("same plaintext every time")
	first, err := Seal(plaintext, key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	second, err := Seal(plaintext, key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatal("two Seal calls on the same plaintext produced identical ciphertext (nonce reuse)")
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	key, err := NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	defer key.Close()
	other, err := NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	defer other.Close()

	sealed, err := Seal([]byte("secret"), key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := Open(sealed, other); !fs5err.Is(err, fs5err.BadCipher) {
		t.Fatalf("Open with wrong key returned %v, want BadCipher", err)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key, err := NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	defer key.Close()

	sealed, err := Seal([]byte("secret payload"), key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xFF

	if _, err := Open(sealed, key); !fs5err.Is(err, fs5err.BadCipher) {
		t.Fatalf("Open with tampered ciphertext returned %v, want BadCipher", err)
	}
}

func TestOpenRejectsTooShortInput(t *testing.T) {
	key, err := NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	defer key.Close()

	if _, err := Open([]byte("short"), key); !fs5err.Is(err, fs5err.BadCipher) {
		t.Fatalf("Open with short input returned %v, want BadCipher", err)
	}
}

func TestDeriveChildKeyIsDeterministic(t *testing.T) {
	parent, err := NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	defer parent.Close()

	first, err := DeriveChildKey(parent, "photos")
	if err != nil {
		t.Fatalf("DeriveChildKey: %v", err)
	}
	defer first.Close()
	second, err := DeriveChildKey(parent, "photos")
	if err != nil {
		t.Fatalf("DeriveChildKey: %v", err)
	}
	defer second.Close()

	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatal("DeriveChildKey produced different keys for the same parent and name")
	}
}

func TestDeriveChildKeyDependsOnName(t *testing.T) {
	parent, err := NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	defer parent.Close()

	photos, err := DeriveChildKey(parent, "photos")
	if err != nil {
		t.Fatalf("DeriveChildKey: %v", err)
	}
	defer photos.Close()
	videos, err := DeriveChildKey(parent, "videos")
	if err != nil {
		t.Fatalf("DeriveChildKey: %v", err)
	}
	defer videos.Close()

	if bytes.Equal(photos.Bytes(), videos.Bytes()) {
		t.Fatal("DeriveChildKey produced the same key for two different child names")
	}
}

func TestDeriveChildKeyDependsOnParent(t *testing.T) {
	parentA, err := NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	defer parentA.Close()
	parentB, err := NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	defer parentB.Close()

	childA, err := DeriveChildKey(parentA, "same-name")
	if err != nil {
		t.Fatalf("DeriveChildKey: %v", err)
	}
	defer childA.Close()
	childB, err := DeriveChildKey(parentB, "same-name")
	if err != nil {
		t.Fatalf("DeriveChildKey: %v", err)
	}
	defer childB.Close()

	if bytes.Equal(childA.Bytes(), childB.Bytes()) {
		t.Fatal("DeriveChildKey produced the same key under two different parent keys")
	}
}

func TestNewRandomKeyIsKeySizeBytes(t *testing.T) {
	key, err := NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	defer key.Close()
	if len(key.Bytes()) != KeySize {
		t.Fatalf("key length = %d, want %d", len(key.Bytes()), KeySize)
	}
}
