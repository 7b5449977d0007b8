// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/snowzjy/ClickHouse/internal/base"
)

// PartState tracks the lifecycle of a part. A part is created Temporary by a
// write or a merge, becomes Committed when it is registered in the table's
// part set, and becomes Obsolete the instant a merge that consumed it
// commits its replacement. Committed parts are never mutated in place.
type PartState int32

const (
	// PartTemporary is a part that has been written but not yet registered.
	PartTemporary PartState = iota
	// PartCommitted is a part that is visible to readers.
	PartCommitted
	// PartObsolete is a part that has been replaced by a merge result. It is
	// physically deleted once no reader holds a reference to it.
	PartObsolete
)

// String implements fmt.Stringer.
func (s PartState) String() string {
	switch s {
	case PartTemporary:
		return "temporary"
	case PartCommitted:
		return "committed"
	case PartObsolete:
		return "obsolete"
	default:
		return "unknown"
	}
}

// DataPart is the metadata of one immutable on-disk segment. The column data
// behind it is owned by the out-of-scope physical layer; this package only
// tracks identity, size and lifecycle.
type DataPart struct {
	// Name identifies the part and orders it within its partition.
	Name base.PartName
	// Size is the on-disk byte size of the part.
	Size uint64
	// Rows is the number of rows stored in the part.
	Rows uint64
	// MinKey and MaxKey are the bounds of the sorting key within the part.
	// They are opaque to this package.
	MinKey, MaxKey []byte

	state atomic.Int32

	// refs counts the part set's own reference plus one reference per open
	// snapshot. When the count of an Obsolete part reaches zero the deleter
	// registered with the part set runs (deferred physical deletion).
	refs atomic.Int32

	deleter func(*DataPart)
}

// NewDataPart returns a Temporary part with the given metadata.
func NewDataPart(name base.PartName, size, rows uint64, minKey, maxKey []byte) *DataPart {
	p := &DataPart{
		Name:   name,
		Size:   size,
		Rows:   rows,
		MinKey: minKey,
		MaxKey: maxKey,
	}
	p.state.Store(int32(PartTemporary))
	return p
}

// State returns the part's lifecycle state.
func (p *DataPart) State() PartState {
	return PartState(p.state.Load())
}

func (p *DataPart) setState(s PartState) {
	p.state.Store(int32(s))
}

func (p *DataPart) ref() {
	p.refs.Add(1)
}

func (p *DataPart) unref() {
	switch v := p.refs.Add(-1); {
	case v < 0:
		panic(errors.AssertionFailedf("mergetree: part %s refcount below zero", p.Name))
	case v == 0:
		if p.State() == PartObsolete && p.deleter != nil {
			p.deleter(p)
		}
	}
}

func totalPartBytes(parts []*DataPart) uint64 {
	var n uint64
	for _, p := range parts {
		n += p.Size
	}
	return n
}

func totalPartRows(parts []*DataPart) uint64 {
	var n uint64
	for _, p := range parts {
		n += p.Rows
	}
	return n
}

func partNames(parts []*DataPart) []base.PartName {
	names := make([]base.PartName, len(parts))
	for i, p := range parts {
		names[i] = p.Name
	}
	return names
}
