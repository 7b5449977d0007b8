// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/snowzjy/ClickHouse/internal/base"
)

// PartSet is the authoritative collection of one table's on-disk parts plus
// the subset currently claimed by an in-flight merge. All mutations happen
// under one mutex and are complete logical transactions: an observer taking
// a snapshot sees either the pre-merge part group or its replacement, never
// a mix.
//
// Invariants: the merging set is a subset of the committed set; a part
// appears in at most one live merge claim; committed parts never share a
// name.
type PartSet struct {
	// deleter runs when an obsolete part's last reference is dropped. It is
	// the hook for the out-of-scope physical deletion collaborator.
	deleter func(*DataPart)

	mu sync.Mutex
	// committed is ordered by PartName.Compare.
	committed []*DataPart
	merging   map[base.PartName]struct{}
	// discarded is set by DiscardAll. Later registrations are refused, so a
	// write racing a drop cannot strand a part the deleter never sees.
	discarded bool
}

// NewPartSet returns an empty part set. deleter may be nil.
func NewPartSet(deleter func(*DataPart)) *PartSet {
	return &PartSet{
		deleter: deleter,
		merging: map[base.PartName]struct{}{},
	}
}

// PartSnapshot is a point-in-time view of a part set. It holds a reference
// on every part it contains, deferring physical deletion of parts that a
// merge obsoletes while the snapshot is open. Callers must Close it.
type PartSnapshot struct {
	// Parts is ordered by PartName.Compare.
	Parts   []*DataPart
	merging map[base.PartName]struct{}
	closed  bool
}

// Merging reports whether the named part was claimed by an in-flight merge
// at snapshot time.
func (s *PartSnapshot) Merging(name base.PartName) bool {
	_, ok := s.merging[name]
	return ok
}

// Close releases the snapshot's part references. Closing twice is a no-op.
func (s *PartSnapshot) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for _, p := range s.Parts {
		p.unref()
	}
}

// Snapshot returns a point-in-time view of the committed parts and the
// merging flags.
func (s *PartSet) Snapshot() *PartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *PartSet) snapshotLocked() *PartSnapshot {
	snap := &PartSnapshot{
		Parts:   make([]*DataPart, len(s.committed)),
		merging: make(map[base.PartName]struct{}, len(s.merging)),
	}
	copy(snap.Parts, s.committed)
	for _, p := range snap.Parts {
		p.ref()
	}
	for name := range s.merging {
		snap.merging[name] = struct{}{}
	}
	return snap
}

// Len returns the number of committed parts.
func (s *PartSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

// TotalBytes returns the byte size of all committed parts.
func (s *PartSet) TotalBytes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalPartBytes(s.committed)
}

// AddCommitted registers parts, promoting them from Temporary to Committed
// in one transaction. This is the single registration point shared by the
// write path and by table load, so merge selection sees all parts uniformly.
func (s *PartSet) AddCommitted(parts ...*DataPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return base.ErrStorageClosed
	}
	for _, p := range parts {
		if p.State() != PartTemporary {
			return errors.AssertionFailedf("mergetree: committing part %s in state %s", p.Name, p.State())
		}
		if s.findLocked(p.Name) >= 0 {
			return errors.AssertionFailedf("mergetree: committing duplicate part %s", p.Name)
		}
	}
	for _, p := range parts {
		p.deleter = s.deleter
		p.setState(PartCommitted)
		p.ref() // the set's own reference
		s.insertLocked(p)
	}
	return nil
}

// ReplaceParts atomically installs output in place of inputs: output becomes
// Committed and every input becomes Obsolete within one critical section.
// Inputs must all be Committed members of the set.
func (s *PartSet) ReplaceParts(inputs []*DataPart, output *DataPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range inputs {
		if s.findLocked(p.Name) < 0 {
			return errors.AssertionFailedf("mergetree: replacing part %s not in the set", p.Name)
		}
	}
	if output.State() != PartTemporary {
		return errors.AssertionFailedf("mergetree: merge result %s in state %s", output.Name, output.State())
	}
	if s.findLocked(output.Name) >= 0 {
		return errors.AssertionFailedf("mergetree: merge result %s already in the set", output.Name)
	}
	for _, p := range inputs {
		s.removeLocked(p.Name)
		p.setState(PartObsolete)
	}
	output.deleter = s.deleter
	output.setState(PartCommitted)
	output.ref()
	s.insertLocked(output)
	// Dropping the set's references last: a part whose replacement is not yet
	// visible is never handed to the deleter.
	for _, p := range inputs {
		p.unref()
	}
	return nil
}

// DiscardAll obsoletes every committed part (used by Drop). Untouched by
// merge claims by the time it is called: the caller has already stopped
// background merging.
func (s *PartSet) DiscardAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = true
	for _, p := range s.committed {
		p.setState(PartObsolete)
		p.unref()
	}
	s.committed = nil
	s.merging = map[base.PartName]struct{}{}
}

// tagMergingLocked inserts parts into the merging set. Tagging an already tagged
// part is an internal-consistency bug: selection and tagging happen inside
// the same critical section, so concurrent selection of one part is
// impossible.
func (s *PartSet) tagMergingLocked(parts []*DataPart) error {
	for _, p := range parts {
		if _, ok := s.merging[p.Name]; ok {
			return errors.AssertionFailedf("mergetree: tagging already tagged part %s", p.Name)
		}
		if s.findLocked(p.Name) < 0 {
			return errors.AssertionFailedf("mergetree: tagging part %s not in the set", p.Name)
		}
	}
	for _, p := range parts {
		s.merging[p.Name] = struct{}{}
	}
	return nil
}

// untagMerging removes parts from the merging set. Untagging an absent part
// is the same bug class as tagging a tagged one.
func (s *PartSet) untagMerging(parts []*DataPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range parts {
		if _, ok := s.merging[p.Name]; !ok {
			return errors.AssertionFailedf("mergetree: untagging already untagged part %s", p.Name)
		}
	}
	for _, p := range parts {
		delete(s.merging, p.Name)
	}
	return nil
}

func (s *PartSet) findLocked(name base.PartName) int {
	i := sort.Search(len(s.committed), func(i int) bool {
		return s.committed[i].Name.Compare(name) >= 0
	})
	if i < len(s.committed) && s.committed[i].Name == name {
		return i
	}
	return -1
}

func (s *PartSet) insertLocked(p *DataPart) {
	i := sort.Search(len(s.committed), func(i int) bool {
		return s.committed[i].Name.Compare(p.Name) >= 0
	})
	s.committed = append(s.committed, nil)
	copy(s.committed[i+1:], s.committed[i:])
	s.committed[i] = p
}

func (s *PartSet) removeLocked(name base.PartName) {
	i := s.findLocked(name)
	if i < 0 {
		panic(errors.AssertionFailedf("mergetree: removing part %s not in the set", name))
	}
	s.committed = append(s.committed[:i], s.committed[i+1:]...)
}
