// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5resolve splits and normalizes the logical paths the
// public façade accepts, and computes the shard bucket a name routes
// to once a directory has auto-sharded.
package fs5resolve

import (
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/unicode/norm"

	"github.com/fs5kit/fs5/lib/fs5err"
)

// Normalize applies NFC normalization to a single path component.
// Two byte-distinct but canonically equivalent names (e.g. an "é"
// written as one codepoint versus "e" + combining acute) compare
// equal after Normalize, matching the path resolver's equality rule
// (spec P6).
func Normalize(name string) string {
	return norm.NFC.String(name)
}

// Split breaks a logical path into its normalized components. A
// leading "/" is stripped; empty components (from "//" or a
// trailing "/") are rejected, as are "." and "..", and any component
// containing "/" after splitting cannot occur by construction. A
// component containing a NUL byte is rejected.
//
// An empty path (after stripping a leading "/") splits to zero
// components, meaning "the directory itself".
func Split(path string) ([]string, error) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil, nil
	}

	rawComponents := strings.Split(path, "/")
	components := make([]string, 0, len(rawComponents))
	for _, raw := range rawComponents {
		if raw == "" {
			return nil, fs5err.New("fs5resolve.Split", fs5err.BadFormat)
		}
		if raw == "." || raw == ".." {
			return nil, fs5err.New("fs5resolve.Split", fs5err.BadFormat)
		}
		if strings.IndexByte(raw, 0) >= 0 {
			return nil, fs5err.New("fs5resolve.Split", fs5err.BadFormat)
		}
		components = append(components, Normalize(raw))
	}
	return components, nil
}

// Bucket computes the shard bucket a name routes to within a shard
// table of shardCount buckets, using XXH3_64 as the spec mandates.
func Bucket(name string, shardCount int) int {
	if shardCount <= 0 {
		return 0
	}
	sum := xxh3.HashString(name)
	return int(sum % uint64(shardCount))
}
