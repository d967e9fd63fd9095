// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

package fs5store

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/fs5kit/fs5/lib/fs5err"
)

// StreamMessage is one entry in the signed registry: a monotonically
// revisioned, signed payload keyed by an Ed25519 public key.
type StreamMessage struct {
	Key       [32]byte
	Revision  uint64
	Payload   []byte
	Signature [64]byte
}

// SignedBy constructs a StreamMessage with key/revision/payload,
// signed by privateKey (which must correspond to the 32-byte public
// key embedded in key).
func SignedBy(key [32]byte, revision uint64, payload []byte, privateKey ed25519.PrivateKey) StreamMessage {
	signature := ed25519.Sign(privateKey, signingInput(key, revision, payload))
	msg := StreamMessage{Key: key, Revision: revision, Payload: payload}
	copy(msg.Signature[:], signature)
	return msg
}

// Verify reports whether msg's signature is valid for its key,
// revision, and payload.
func (msg StreamMessage) Verify() bool {
	return ed25519.Verify(ed25519.PublicKey(msg.Key[:]), signingInput(msg.Key, msg.Revision, msg.Payload), msg.Signature[:])
}

func signingInput(key [32]byte, revision uint64, payload []byte) []byte {
	input := make([]byte, 0, 32+8+len(payload))
	input = append(input, key[:]...)
	for shift := 56; shift >= 0; shift -= 8 {
		input = append(input, byte(revision>>shift))
	}
	input = append(input, payload...)
	return input
}

// Registry is the abstract signed-KV registry the core consumes. Set
// MUST reject a message whose revision is not strictly greater than
// the currently stored revision for that key, returning the stored
// message instead so the caller can merge and retry.
type Registry interface {
	Get(ctx context.Context, key [32]byte) (*StreamMessage, bool, error)
	Set(ctx context.Context, msg StreamMessage) (*StreamMessage, error)
}

// LocalRegistry is an in-memory Registry, suitable as the reference
// implementation for tests and for single-process deployments that
// do not need a networked registry.
type LocalRegistry struct {
	mu      sync.Mutex
	entries map[[32]byte]StreamMessage
}

// NewLocalRegistry creates an empty in-memory registry.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{entries: make(map[[32]byte]StreamMessage)}
}

// Get returns the current entry for key, if any.
func (r *LocalRegistry) Get(ctx context.Context, key [32]byte) (*StreamMessage, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Set installs msg if its revision is strictly greater than the
// stored one and its signature verifies. On a stale revision, it
// returns the currently stored entry and a *fs5err.Error with Kind
// RegistryConflict so the caller can merge and retry.
func (r *LocalRegistry) Set(ctx context.Context, msg StreamMessage) (*StreamMessage, error) {
	if !msg.Verify() {
		return nil, fs5err.New("fs5store.LocalRegistry.Set", fs5err.BadCipher)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.entries[msg.Key]
	if exists && msg.Revision <= current.Revision {
		return &current, fs5err.New("fs5store.LocalRegistry.Set", fs5err.RegistryConflict)
	}

	r.entries[msg.Key] = msg
	return nil, nil
}
