// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

import (
	"github.com/cockroachdb/errors"
	"github.com/snowzjy/ClickHouse/internal/base"
)

// preparedAlter is the result of a successful prepare phase: a validated
// candidate schema bound to the version it was computed from.
type preparedAlter struct {
	baseVersion uint64
	next        *Schema
}

// prepareAlter validates cmds against the current schema and computes the
// candidate snapshot. It touches no live state and may run concurrently with
// ongoing merges: schema changes apply to logical interpretation, not to
// already-committed part data.
func (s *StorageMergeTree) prepareAlter(cmds []AlterCmd) (*preparedAlter, error) {
	cur := s.schema.Load()
	next, err := applyAlter(cur, cmds)
	if err != nil {
		return nil, err
	}
	return &preparedAlter{baseVersion: cur.Version, next: next}, nil
}

// commitAlter swaps the prepared candidate in as the live schema. The swap
// happens under the part set's mutex, the same exclusion point merge commits
// use, so no reader or merge observes a half-applied change. Commit without
// a matching successful prepare is a protocol violation.
func (s *StorageMergeTree) commitAlter(prepared *preparedAlter) error {
	if prepared == nil || prepared.next == nil {
		return errors.AssertionFailedf("mergetree: alter commit without prepare")
	}
	s.parts.mu.Lock()
	defer s.parts.mu.Unlock()
	cur := s.schema.Load()
	if cur.Version != prepared.baseVersion {
		return errors.AssertionFailedf(
			"mergetree: alter commit against schema version %d, but prepared against %d",
			cur.Version, prepared.baseVersion)
	}
	s.schema.Store(prepared.next)
	return nil
}

// Alter applies a change set: prepare, then commit. A failed prepare fails
// the whole operation with no state mutated. Concurrent Alter calls are
// serialized; merges begun under the old schema complete unaffected.
func (s *StorageMergeTree) Alter(cmds []AlterCmd) error {
	if s.shutdownCalled.Load() {
		return base.ErrStorageClosed
	}
	s.alterMu.Lock()
	defer s.alterMu.Unlock()
	prepared, err := s.prepareAlter(cmds)
	if err != nil {
		return err
	}
	if err := s.commitAlter(prepared); err != nil {
		return err
	}
	s.opts.EventListener.SchemaChange(SchemaChangeInfo{
		Table:       s.Name(),
		FromVersion: prepared.baseVersion,
		ToVersion:   prepared.next.Version,
	})
	return nil
}
