// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"github.com/cockroachdb/errors"
)

// ErrNotEnoughSpace is the marker error for a merge attempt that could not
// reserve disk space for its output. It is a transient condition: the attempt
// is abandoned and retried on a later scheduling cycle.
var ErrNotEnoughSpace = errors.New("mergetree: not enough free disk space")

// ErrCorruption is the marker error for data corruption detected while
// reading or merging parts. Unlike ordinary executor failures it is
// table-fatal: automatic merging stops until operator intervention.
var ErrCorruption = errors.New("mergetree: corruption")

// ErrStorageClosed is returned by operations invoked after Shutdown or Drop.
var ErrStorageClosed = errors.New("mergetree: storage closed")

// MarkCorruption marks err as a corruption error.
func MarkCorruption(err error) error {
	return errors.Mark(err, ErrCorruption)
}

// IsCorruption reports whether err is marked as a corruption error.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorruption)
}

// IsNotEnoughSpace reports whether err is marked as a disk capacity error.
func IsNotEnoughSpace(err error) bool {
	return errors.Is(err, ErrNotEnoughSpace)
}
