// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package humanize formats byte counts and plain counts for log output.
package humanize

import (
	"fmt"
	"math"

	"github.com/cockroachdb/redact"
)

type config struct {
	scale    float64
	suffixes []string
}

// Bytes produces human readable representations of byte counts, using
// power-of-1024 units (1.5KB, 333MB, ...).
var Bytes = config{1024, []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}}

// Count produces human readable representations of unitless counts, using
// power-of-1000 units (1.5K, 333M, ...).
var Count = config{1000, []string{"", "K", "M", "G", "T"}}

// Int64 returns the humanized representation of v.
func (c config) Int64(v int64) redact.SafeString {
	if v < 0 {
		return "-" + c.Uint64(uint64(-v))
	}
	return c.Uint64(uint64(v))
}

// Uint64 returns the humanized representation of v.
func (c config) Uint64(v uint64) redact.SafeString {
	f := float64(v)
	unit := 0
	for f >= c.scale && unit+1 < len(c.suffixes) {
		f /= c.scale
		unit++
	}
	var s string
	switch {
	case unit == 0:
		s = fmt.Sprintf("%d%s", v, c.suffixes[unit])
	case math.Trunc(f) == f:
		s = fmt.Sprintf("%.0f%s", f, c.suffixes[unit])
	default:
		s = fmt.Sprintf("%.1f%s", f, c.suffixes[unit])
	}
	return redact.SafeString(s)
}
