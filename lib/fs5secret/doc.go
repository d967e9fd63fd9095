// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5secret guards the symmetric keys that flow through a
// directory tree: the XChaCha20-Poly1305 key carried in an encrypted
// DirRef's KeyMaterial field, keys generated fresh for a new encrypted
// directory, and keys HKDF-derived for a child.
//
// [Buffer] backs its contents with an anonymous mmap region that is
// locked into physical RAM (no swap) and excluded from core dumps, so a
// key a caller loaded once into a Buffer and later Closed does not
// linger in a page the kernel could write to disk. The Go heap gives no
// such guarantee — the garbage collector is free to copy live bytes
// around, and a slice backing a secret can outlive every reference to
// it until the next collection.
package fs5secret
