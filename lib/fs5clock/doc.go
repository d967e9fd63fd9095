// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5clock provides the injectable time source used for every
// wall-clock read in a directory actor: tombstone timestamps on
// FileRef and registry revision arbitration
// (revision = max(previous+1, wall_clock_ms+1)).
//
// Actors and the root façade accept a Clock field instead of calling
// time.Now directly, so registry conflict/retry races and LWW timestamp
// ties can be driven deterministically from a test.
//
//	clock := fs5clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	actor, err := fs5actor.NewRootLocalFile(store, clock, path, nil)
//	clock.Advance(time.Second) // next Now() call moves forward
package fs5clock
