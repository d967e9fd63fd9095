// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

package fs5testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer, for tests that need many
// distinguishable file or directory names in one actor.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
