// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

import (
	"testing"

	"github.com/snowzjy/ClickHouse/internal/base"
	"github.com/snowzjy/ClickHouse/internal/diskspace"
	"github.com/stretchr/testify/require"
)

func testMonitor(avail uint64) *diskspace.Monitor {
	return diskspace.NewMonitor("/data", func(string) (diskspace.Usage, error) {
		return diskspace.Usage{TotalBytes: avail * 2, AvailBytes: avail}, nil
	})
}

func TestMergeClaimLifecycle(t *testing.T) {
	s := NewPartSet(nil)
	a := testPart(1, 1, 0, 30)
	b := testPart(2, 2, 0, 30)
	require.NoError(t, s.AddCommitted(a, b))
	monitor := testMonitor(100)

	s.mu.Lock()
	claim, err := newMergeClaimLocked(s, monitor, []*DataPart{a, b})
	s.mu.Unlock()
	require.NoError(t, err)

	// Live claim: parts tagged, space reserved.
	snap := s.Snapshot()
	require.True(t, snap.Merging(a.Name))
	require.True(t, snap.Merging(b.Name))
	snap.Close()
	require.EqualValues(t, 60, monitor.Reserved())

	claim.Release(base.DefaultLogger)
	snap = s.Snapshot()
	require.False(t, snap.Merging(a.Name))
	require.False(t, snap.Merging(b.Name))
	snap.Close()
	require.EqualValues(t, 0, monitor.Reserved())

	// Release is idempotent: a second release must not untag a claim taken
	// by someone else or free someone else's reservation.
	s.mu.Lock()
	claim2, err := newMergeClaimLocked(s, monitor, []*DataPart{a, b})
	s.mu.Unlock()
	require.NoError(t, err)
	claim.Release(base.DefaultLogger)
	snap = s.Snapshot()
	require.True(t, snap.Merging(a.Name))
	snap.Close()
	require.EqualValues(t, 60, monitor.Reserved())
	claim2.Release(base.DefaultLogger)
}

func TestMergeClaimCapacityFailure(t *testing.T) {
	s := NewPartSet(nil)
	a := testPart(1, 1, 0, 80)
	b := testPart(2, 2, 0, 80)
	require.NoError(t, s.AddCommitted(a, b))
	monitor := testMonitor(100)

	s.mu.Lock()
	claim, err := newMergeClaimLocked(s, monitor, []*DataPart{a, b})
	s.mu.Unlock()
	require.Nil(t, claim)
	require.Error(t, err)
	require.True(t, base.IsNotEnoughSpace(err))

	// The failed attempt left no trace: no tags, no reservation.
	snap := s.Snapshot()
	require.False(t, snap.Merging(a.Name))
	require.False(t, snap.Merging(b.Name))
	snap.Close()
	require.EqualValues(t, 0, monitor.Reserved())
}

func TestMergeClaimReservationReleasedOnTagFailure(t *testing.T) {
	s := NewPartSet(nil)
	a := testPart(1, 1, 0, 10)
	b := testPart(2, 2, 0, 10)
	require.NoError(t, s.AddCommitted(a, b))
	monitor := testMonitor(100)

	s.mu.Lock()
	require.NoError(t, s.tagMergingLocked([]*DataPart{a}))
	// Claiming an already tagged part fails the assertion; the reservation
	// taken moments earlier must be returned.
	claim, err := newMergeClaimLocked(s, monitor, []*DataPart{a, b})
	s.mu.Unlock()
	require.Nil(t, claim)
	require.Error(t, err)
	require.EqualValues(t, 0, monitor.Reserved())
}
