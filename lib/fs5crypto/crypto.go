// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5crypto derives and applies per-directory encryption
// keys. Keys are 32-byte XChaCha20-Poly1305 keys held in guarded
// memory (lib/fs5secret) and travel with a directory's DirRef rather
// than living in a separate key store: whoever can load the parent
// can decrypt the child.
package fs5crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/fs5kit/fs5/lib/fs5err"
	"github.com/fs5kit/fs5/lib/fs5secret"
)

// KeySize is the size in bytes of every directory encryption key.
const KeySize = 32

// Overhead is the number of bytes an encrypted snapshot carries
// beyond the plaintext: a 24-byte random nonce prefix and a 16-byte
// Poly1305 authentication tag suffix.
const Overhead = chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// hkdfInfoChildKey is the HKDF info string used to derive an
// intermediate directory's key from its parent's key when a caller
// asks for key inheritance rather than a fresh random key. Changing
// this string invalidates every previously derived child key.
var hkdfInfoChildKey = []byte("fs5.dirkey.child.v1")

// NewRandomKey generates a fresh random directory key, for
// CreateDir(encrypted=true) when no parent key is being inherited.
func NewRandomKey() (*fs5secret.Buffer, error) {
	raw := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return nil, fmt.Errorf("generating random directory key: %w", err)
	}
	return fs5secret.NewFromBytes(raw)
}

// DeriveChildKey derives a new directory key from a parent key and
// the child's name, for intermediate directories created while
// resolving a path under an encrypted ancestor (spec: "inherits
// encryption ... with a freshly derived per-directory key"). The
// parentKey is borrowed and not closed; the returned Buffer is owned
// by the caller.
func DeriveChildKey(parentKey *fs5secret.Buffer, childName string) (*fs5secret.Buffer, error) {
	info := make([]byte, len(hkdfInfoChildKey)+len(childName))
	copy(info, hkdfInfoChildKey)
	copy(info[len(hkdfInfoChildKey):], childName)

	reader := hkdf.New(sha256.New, parentKey.Bytes(), nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, fmt.Errorf("deriving child directory key: %w", err)
	}
	return fs5secret.NewFromBytes(derived)
}

// Seal encrypts plaintext snapshot bytes under key, producing
// nonce(24) || ciphertext || tag(16) with an empty AAD, per the
// wire/hash stability contract: the returned bytes are exactly what
// gets hashed and written to the blob store.
func Seal(plaintext []byte, key *fs5secret.Buffer) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	output := make([]byte, len(nonce), len(nonce)+len(plaintext)+aead.Overhead())
	copy(output, nonce[:])
	output = aead.Seal(output, nonce[:], plaintext, nil)
	return output, nil
}

// Open decrypts bytes produced by Seal. Returns a *fs5err.Error with
// Kind BadCipher if the blob is too short or authentication fails.
func Open(sealed []byte, key *fs5secret.Buffer) ([]byte, error) {
	if len(sealed) < Overhead {
		return nil, fs5err.New("fs5crypto.Open", fs5err.BadCipher)
	}

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	nonce := sealed[:chacha20poly1305.NonceSizeX]
	ciphertext := sealed[chacha20poly1305.NonceSizeX:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fs5err.Wrap("fs5crypto.Open", fs5err.BadCipher, err)
	}
	return plaintext, nil
}
