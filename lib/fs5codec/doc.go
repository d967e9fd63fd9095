// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5codec provides FS5's standard CBOR encoding configuration.
//
// Every on-disk and on-wire structure in FS5 — directory snapshots,
// parent-link files, registry payloads, list cursors — is
// CBOR, encoded with RFC 8949 Core Deterministic Encoding (§4.2):
// sorted map keys, smallest integer form, no indefinite-length items.
// Same logical value always produces identical bytes, which is what
// lets a directory snapshot's content hash double as an equality test.
//
// For buffer-oriented operations (snapshots, parent-link files,
// registry payloads):
//
//	data, err := fs5codec.Marshal(value)
//	err = fs5codec.Unmarshal(data, &value)
//
// Stream-oriented counterparts are also provided:
//
//	encoder := fs5codec.NewEncoder(w)
//	decoder := fs5codec.NewDecoder(r)
//
// Struct fields use `cbor:"N,keyasint"` tags so that wire field names
// never bloat the encoding — see spec.md §4.1 ("CBOR map using numeric
// keys"). Integer keys a struct does not declare are dropped on
// decode; the Extra maps on DirHeader/FileRef/DirRef carry only the
// map stored under their own key 22 through a decode/re-encode cycle.
package fs5codec
