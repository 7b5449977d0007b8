// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

import (
	"time"

	"github.com/cockroachdb/tokenbucket"
)

// mergePacer throttles the byte throughput of merge executors so background
// merging does not saturate the disk under foreground traffic. A nil pacer
// does not throttle.
type mergePacer struct {
	tb tokenbucket.TokenBucket
}

// newMergePacer returns a pacer limited to bytesPerSec, or nil if
// bytesPerSec is zero or negative.
func newMergePacer(bytesPerSec int64) *mergePacer {
	if bytesPerSec <= 0 {
		return nil
	}
	p := &mergePacer{}
	p.tb.Init(tokenbucket.TokensPerSecond(bytesPerSec), tokenbucket.Tokens(bytesPerSec))
	return p
}

// pace blocks until the bucket admits n bytes.
func (p *mergePacer) pace(n uint64) {
	if p == nil || n == 0 {
		return
	}
	for {
		fulfilled, tryAgainAfter := p.tb.TryToFulfill(tokenbucket.Tokens(n))
		if fulfilled {
			return
		}
		time.Sleep(tryAgainAfter)
	}
}
