// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

package fs5secret

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds a directory key in memory that is locked against
// swapping, excluded from core dumps, and zeroed on Close. The backing
// memory is allocated via mmap outside the Go heap, so the garbage
// collector never moves or copies it.
//
// A Buffer must not be copied after creation. After Close, any access
// to its contents panics; Close itself is idempotent.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a zero-filled secret buffer of the given size.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("fs5secret: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("fs5secret: mmap: %w", err)
	}
	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("fs5secret: mlock: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("fs5secret: madvise(MADV_DONTDUMP): %w", err)
	}

	return &Buffer{data: data, length: size}, nil
}

// NewFromBytes copies source into a fresh secret buffer and zeroes
// source in place, so the caller's plaintext copy of the key does not
// linger on the heap once the protected copy exists. Typical callers
// are fs5crypto.NewRandomKey, fs5crypto.DeriveChildKey, and any code
// lifting a DirRef's raw KeyMaterial into a guarded buffer before use.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("fs5secret: cannot create buffer from empty source")
	}

	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, source)
	Zero(source)
	return buffer, nil
}

// Bytes returns the key material. The returned slice aliases the mmap
// region directly — callers must not retain it past the Buffer's
// lifetime. Panics if the buffer has been closed.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("fs5secret: read from closed buffer")
	}
	return b.data[:b.length]
}

// String returns a heap copy of the key material as a string. Go
// strings are immutable and must live on the heap, so this trades away
// the mmap guard; prefer Bytes for anything that doesn't strictly need
// a string. Panics if the buffer has been closed.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("fs5secret: read from closed buffer")
	}
	return string(b.data[:b.length])
}

// Len returns the size of the key material.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Close zeros, unlocks, and unmaps the buffer. Safe to call more than
// once.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	for index := range b.data {
		b.data[index] = 0
	}

	var firstErr error
	if err := unix.Munlock(b.data); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("fs5secret: munlock: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("fs5secret: munmap: %w", err)
	}
	b.data = nil
	return firstErr
}

// Zero overwrites data with zero bytes in place. Used to scrub a
// plaintext key copy (e.g. bytes read from a file or stdin) once its
// contents have been moved into a Buffer.
func Zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
