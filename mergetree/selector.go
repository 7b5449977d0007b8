// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

// MergeSettings bounds the write amplification of background merging. Small
// recent parts are merged frequently, which is cheap; large parts are merged
// rarely, which is expensive, and only with peers of comparable size.
type MergeSettings struct {
	// MaxPartsToMerge caps the number of parts combined by one merge.
	MaxPartsToMerge int
	// MaxSizeRatio rejects candidate groups whose largest part exceeds
	// MaxSizeRatio times their smallest part. It keeps merges balanced: a
	// huge part is not rewritten just to absorb a tiny neighbor.
	MaxSizeRatio float64
	// MaxBytesToMerge caps the total input size of one merge.
	MaxBytesToMerge uint64
}

// EnsureDefaults fills in unset settings with default values.
func (s *MergeSettings) EnsureDefaults() {
	if s.MaxPartsToMerge <= 0 {
		s.MaxPartsToMerge = 10
	}
	if s.MaxSizeRatio <= 1 {
		s.MaxSizeRatio = 3
	}
	if s.MaxBytesToMerge == 0 {
		s.MaxBytesToMerge = 150 << 30 // 150 GB
	}
}

// selectPartsToMerge picks the next group of at least two parts to merge
// from a part set snapshot, or nil if nothing is eligible. It is a pure
// function of the snapshot: no locks, no I/O. The caller runs it inside the
// part set's critical section so that the returned group can be tagged
// before any concurrent invocation selects again.
//
// A part is eligible if it is committed and not claimed by an in-flight
// merge; a group must be a contiguous block-number run within one partition,
// since the merge result covers the union of the input ranges.
//
// In normal mode, groups must satisfy the settings' size and ratio bounds,
// and among acceptable groups the one with the largest total byte count
// wins (compaction that most reduces the part count). In aggressive mode
// (the OPTIMIZE path) the bounds are ignored and the longest eligible run is
// taken, so repeated aggressive steps converge to the minimal reachable
// part count.
func selectPartsToMerge(snap *PartSnapshot, aggressive bool, settings MergeSettings) []*DataPart {
	var best []*DataPart
	var bestBytes uint64
	for _, run := range eligibleRuns(snap) {
		if aggressive {
			g := run
			if len(g) > settings.MaxPartsToMerge {
				g = g[:settings.MaxPartsToMerge]
			}
			if len(g) > len(best) || (len(g) == len(best) && totalPartBytes(g) > bestBytes) {
				best = g
				bestBytes = totalPartBytes(g)
			}
			continue
		}
		maxLen := len(run)
		if maxLen > settings.MaxPartsToMerge {
			maxLen = settings.MaxPartsToMerge
		}
		for length := 2; length <= maxLen; length++ {
			for lo := 0; lo+length <= len(run); lo++ {
				g := run[lo : lo+length]
				bytes, ok := groupWithinBounds(g, settings)
				if ok && bytes > bestBytes {
					best = g
					bestBytes = bytes
				}
			}
		}
	}
	if len(best) < 2 {
		return nil
	}
	return best
}

// groupWithinBounds reports whether the group satisfies the size and ratio
// bounds, returning its total byte count.
func groupWithinBounds(g []*DataPart, settings MergeSettings) (uint64, bool) {
	var total, smallest, largest uint64
	for i, p := range g {
		total += p.Size
		if i == 0 || p.Size < smallest {
			smallest = p.Size
		}
		if p.Size > largest {
			largest = p.Size
		}
	}
	if total > settings.MaxBytesToMerge {
		return total, false
	}
	if float64(largest) > settings.MaxSizeRatio*float64(smallest) {
		return total, false
	}
	return total, true
}

// eligibleRuns splits the snapshot into maximal runs of block-adjacent
// eligible parts. A tagged or non-committed part breaks the run on both
// sides: merging across it would produce a result whose block range covers
// a part it did not consume.
func eligibleRuns(snap *PartSnapshot) [][]*DataPart {
	var runs [][]*DataPart
	var run []*DataPart
	flush := func() {
		if len(run) >= 2 {
			runs = append(runs, run)
		}
		run = nil
	}
	for _, p := range snap.Parts {
		if p.State() != PartCommitted || snap.Merging(p.Name) {
			flush()
			continue
		}
		if len(run) > 0 && !run[len(run)-1].Name.AdjacentTo(p.Name) {
			flush()
		}
		run = append(run, p)
	}
	flush()
	return runs
}
