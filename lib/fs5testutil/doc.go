// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5testutil provides the handful of helpers shared across
// fs5's own test files.
//
// [RequireReceive] and [RequireSend] encapsulate the timeout safety
// valve pattern (select with time.After fallback) for tests that drive
// an Actor's mailbox from more than one goroutine — a test that signals
// completion over a channel should never be able to hang the suite if
// the actor deadlocks.
//
// [UniqueID] generates disambiguated names for tests that put many
// files or sub-directories into the same actor and need names that
// sort predictably without colliding.
package fs5testutil
