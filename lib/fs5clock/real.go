// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

package fs5clock

import "time"

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
