// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// PartName identifies an on-disk part and encodes its position in the merge
// history. The printed form is
//
//	<partitionID>_<minBlock>_<maxBlock>_<level>
//
// where [minBlock, maxBlock] is the contiguous range of insertion block
// numbers covered by the part and level counts how many generations of
// merging produced it (a freshly written part has level 0 and
// minBlock == maxBlock). Two parts of one partition never cover overlapping
// block ranges, so the block range is both an identity and an ordering key.
type PartName struct {
	PartitionID string
	MinBlock    int64
	MaxBlock    int64
	Level       uint32
}

// String returns the canonical printed form of the name.
func (n PartName) String() string {
	return fmt.Sprintf("%s_%d_%d_%d", n.PartitionID, n.MinBlock, n.MaxBlock, n.Level)
}

// SafeFormat implements redact.SafeFormatter. Part names carry no user data.
func (n PartName) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s_%d_%d_%d", redact.SafeString(n.PartitionID), n.MinBlock, n.MaxBlock, n.Level)
}

// ParsePartName parses the canonical printed form of a part name.
func ParsePartName(s string) (PartName, error) {
	i := strings.Index(s, "_")
	if i <= 0 {
		return PartName{}, errors.Newf("invalid part name %q", s)
	}
	var n PartName
	n.PartitionID = s[:i]
	fields := strings.Split(s[i+1:], "_")
	if len(fields) != 3 {
		return PartName{}, errors.Newf("invalid part name %q", s)
	}
	var err error
	if n.MinBlock, err = strconv.ParseInt(fields[0], 10, 64); err != nil {
		return PartName{}, errors.Wrapf(err, "invalid part name %q", s)
	}
	if n.MaxBlock, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
		return PartName{}, errors.Wrapf(err, "invalid part name %q", s)
	}
	level, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return PartName{}, errors.Wrapf(err, "invalid part name %q", s)
	}
	n.Level = uint32(level)
	if n.MinBlock > n.MaxBlock || n.MinBlock < 0 {
		return PartName{}, errors.Newf("invalid part name %q: bad block range", s)
	}
	return n, nil
}

// Compare orders part names by partition, then by block range, then by
// level. Within one partition block ranges of live parts are disjoint, so
// this yields key-range order.
func (n PartName) Compare(o PartName) int {
	if c := strings.Compare(n.PartitionID, o.PartitionID); c != 0 {
		return c
	}
	switch {
	case n.MinBlock < o.MinBlock:
		return -1
	case n.MinBlock > o.MinBlock:
		return 1
	}
	switch {
	case n.MaxBlock < o.MaxBlock:
		return -1
	case n.MaxBlock > o.MaxBlock:
		return 1
	}
	switch {
	case n.Level < o.Level:
		return -1
	case n.Level > o.Level:
		return 1
	}
	return 0
}

// AdjacentTo reports whether o immediately follows n in the same partition
// with no block-number gap. Only adjacent parts can be merged without
// involving the parts between them.
func (n PartName) AdjacentTo(o PartName) bool {
	return n.PartitionID == o.PartitionID && n.MaxBlock+1 == o.MinBlock
}

// Covers reports whether n's block range contains o's.
func (n PartName) Covers(o PartName) bool {
	return n.PartitionID == o.PartitionID && n.MinBlock <= o.MinBlock && o.MaxBlock <= n.MaxBlock
}

// MergedPartName returns the name of the part produced by merging the
// contiguous run of parts. The result covers the union of the input block
// ranges at one level above the deepest input, so levels grow monotonically
// through merge lineage regardless of where the deepest part sits in the
// run.
func MergedPartName(names []PartName) PartName {
	var level uint32
	for _, n := range names {
		if n.Level > level {
			level = n.Level
		}
	}
	return PartName{
		PartitionID: names[0].PartitionID,
		MinBlock:    names[0].MinBlock,
		MaxBlock:    names[len(names)-1].MaxBlock,
		Level:       level + 1,
	}
}
