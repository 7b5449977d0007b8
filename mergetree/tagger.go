// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

import (
	"github.com/snowzjy/ClickHouse/internal/base"
	"github.com/snowzjy/ClickHouse/internal/diskspace"
)

// mergeClaim marks a group of parts as currently merging and holds a disk
// reservation sized to their total byte count (a conservative bound, since a
// merge does not normally grow its inputs). While the claim is live no other
// merge can select the parts. Release is unconditional on every exit path of
// a merge step, success and failure alike.
type mergeClaim struct {
	set         *PartSet
	parts       []*DataPart
	reservation *diskspace.Reservation
	released    bool
}

// newMergeClaimLocked reserves disk space for the group and tags it in the
// part set. The caller must hold the part set's mutex: claim construction
// must be in the same critical section as the selection that produced parts,
// otherwise two invocations could claim overlapping groups.
//
// A reservation failure is returned as a capacity error (marked
// base.ErrNotEnoughSpace) and the part set is left untouched. A tagging
// failure is an assertion error: it cannot happen unless the selection
// discipline was violated.
func newMergeClaimLocked(
	set *PartSet, monitor *diskspace.Monitor, parts []*DataPart,
) (*mergeClaim, error) {
	reservation, err := monitor.Reserve(totalPartBytes(parts))
	if err != nil {
		return nil, err
	}
	if err := set.tagMergingLocked(parts); err != nil {
		reservation.Release()
		return nil, err
	}
	return &mergeClaim{set: set, parts: parts, reservation: reservation}, nil
}

// Release removes the claim's tags and returns the reserved space. It is
// idempotent. An untagging failure is a bug; it is logged rather than
// propagated so the release of the reservation still happens.
func (c *mergeClaim) Release(logger base.Logger) {
	if c.released {
		return
	}
	c.released = true
	if err := c.set.untagMerging(c.parts); err != nil {
		logger.Errorf("mergetree: releasing merge claim: %+v", err)
	}
	c.reservation.Release()
}
