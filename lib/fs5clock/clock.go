// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

package fs5clock

import "time"

// Clock abstracts the single wall-clock read a directory actor needs:
// the current time, used to stamp FileRef tombstones and to arbitrate
// registry revisions. Production code injects Real(); tests inject
// Fake() for deterministic revision and LWW-tiebreak scenarios.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}
