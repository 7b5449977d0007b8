// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/snowzjy/ClickHouse/internal/base"
	"github.com/snowzjy/ClickHouse/internal/bgpool"
)

// MergeJob describes one merge handed to the executor.
type MergeJob struct {
	// Inputs are the claimed parts, in key-range order.
	Inputs []*DataPart
	// OutputName is the name the result part must carry.
	OutputName base.PartName
	// Schema is the schema snapshot current when the merge began. A schema
	// swapped in mid-merge does not affect it; parts are immutable and the
	// read path applies the live schema on top.
	Schema *Schema
	// SignColumn is set for ModeCollapsing tables: rows that differ only in
	// the sign column's +1/-1 value collapse away during the merge.
	SignColumn string
	// ReservedBytes is the size of the disk reservation held for the job.
	ReservedBytes uint64
	// Progress must be called by the executor as output bytes are written;
	// it applies the table's write pacing.
	Progress func(bytes uint64)
}

// MergeExecutor produces one committed part from a claim's parts. It is the
// out-of-scope physical merge algorithm; implementations run outside the
// part set's critical section and must return a Temporary part. An error
// marked with base.ErrCorruption is table-fatal; any other error makes the
// merge step report "no work" and be retried later.
type MergeExecutor interface {
	Execute(ctx context.Context, job MergeJob) (*DataPart, error)
}

// TableSnapshot is the consistent view handed to the read path: a part
// snapshot plus the schema current at snapshot time. Callers must Close it.
type TableSnapshot struct {
	Parts  *PartSnapshot
	Schema *Schema
}

// Close releases the snapshot's part references.
func (s *TableSnapshot) Close() {
	s.Parts.Close()
}

// StorageMergeTree owns one table's part set and drives its background
// merging: one recurring task registered with the shared worker pool picks
// part groups, claims them, and runs the merge executor. ALTER, the write
// path and the read path all serialize with merging through the part set's
// single exclusion point.
type StorageMergeTree struct {
	opts Options

	mu struct {
		sync.Mutex
		name string
		path string
	}

	parts   *PartSet
	schema  atomic.Pointer[Schema]
	metrics *Metrics
	pacer   *mergePacer

	// alterMu serializes ALTER operations so prepare and commit of two
	// change sets cannot interleave.
	alterMu sync.Mutex

	taskHandle *bgpool.TaskHandle

	shutdownCalled atomic.Bool
	dropped        atomic.Bool
	// broken is set when a merge fails with corruption; automatic merging
	// stops until operator intervention.
	broken atomic.Bool

	// blockCounter allocates block numbers for newly written parts.
	blockCounter atomic.Int64

	// ctx is canceled by Drop (not by Shutdown: a merge in flight at
	// shutdown runs to completion).
	ctx       context.Context
	cancelCtx context.CancelFunc
}

// Open creates a table instance over the given schema and registers its
// background merge task with the pool in opts.
func Open(name, path string, schema *Schema, opts Options) (*StorageMergeTree, error) {
	if err := opts.EnsureDefaults(); err != nil {
		return nil, err
	}
	if schema == nil {
		return nil, errors.New("mergetree: nil schema")
	}
	if err := schema.validate(); err != nil {
		return nil, err
	}
	if opts.Mode == ModeCollapsing {
		if _, ok := schema.Column(opts.SignColumn); !ok {
			return nil, errors.Newf("mergetree: sign column %q does not exist", opts.SignColumn)
		}
	}
	s := &StorageMergeTree{
		opts:  opts,
		pacer: newMergePacer(opts.MaxMergeWriteRate),
	}
	s.mu.name = name
	s.mu.path = path
	s.parts = NewPartSet(opts.PartDeleter)
	s.schema.Store(schema)
	s.metrics = newMetrics(name, s.parts)
	if opts.MetricsRegisterer != nil {
		if err := s.metrics.register(opts.MetricsRegisterer); err != nil {
			return nil, err
		}
	}
	s.ctx, s.cancelCtx = context.WithCancel(context.Background())
	s.taskHandle = opts.Pool.Register(s.mergeTask)
	return s, nil
}

// Name returns the table name.
func (s *StorageMergeTree) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.name
}

// Path returns the table's data path.
func (s *StorageMergeTree) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.path
}

// Metrics returns the table's collectors.
func (s *StorageMergeTree) Metrics() *Metrics {
	return s.metrics
}

// Schema returns the current schema snapshot.
func (s *StorageMergeTree) Schema() *Schema {
	return s.schema.Load()
}

// AllocateBlock returns a fresh block number for a part about to be written.
func (s *StorageMergeTree) AllocateBlock() int64 {
	return s.blockCounter.Add(1)
}

// Append registers freshly written Temporary parts as Committed through the
// same mutation point merges use, so merge selection sees them uniformly.
func (s *StorageMergeTree) Append(parts ...*DataPart) error {
	if s.shutdownCalled.Load() {
		return base.ErrStorageClosed
	}
	for _, p := range parts {
		n := p.Name.MaxBlock
		for {
			cur := s.blockCounter.Load()
			if n <= cur || s.blockCounter.CompareAndSwap(cur, n) {
				break
			}
		}
	}
	return s.parts.AddCommitted(parts...)
}

// Read returns the consistent view the read path consumes: committed parts
// plus the current schema. The schema is loaded before the part snapshot so
// every part in the snapshot was committed no later than the schema the
// caller will interpret it through.
func (s *StorageMergeTree) Read() (*TableSnapshot, error) {
	if s.shutdownCalled.Load() {
		return nil, base.ErrStorageClosed
	}
	schema := s.schema.Load()
	return &TableSnapshot{Parts: s.parts.Snapshot(), Schema: schema}, nil
}

// Optimize performs one aggressive merge step, ignoring the size and ratio
// bounds of normal selection, and reports whether anything was merged.
// Callers wanting full compaction invoke it until it returns false.
func (s *StorageMergeTree) Optimize() bool {
	return s.mergeStep(true)
}

// Rename updates the table's name and path. Physical relocation of the data
// directory is the storage collaborator's job; this updates the identity the
// table logs and labels under.
func (s *StorageMergeTree) Rename(newPath, newName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.path = newPath
	s.mu.name = newName
}

// Shutdown stops background merging. It blocks until any in-flight merge
// task invocation has returned; after Shutdown the table's task is never
// invoked again. A merge already executing runs to completion. Idempotent.
func (s *StorageMergeTree) Shutdown() {
	if s.shutdownCalled.Swap(true) {
		return
	}
	s.opts.Pool.Unregister(s.taskHandle)
}

// Drop shuts the table down and discards its parts. Parts still referenced
// by open snapshots are deleted when the last reference drops.
func (s *StorageMergeTree) Drop() {
	s.Shutdown()
	if s.dropped.Swap(true) {
		return
	}
	s.cancelCtx()
	s.parts.DiscardAll()
}

// mergeTask is the recurring task registered with the background pool.
func (s *StorageMergeTree) mergeTask() bool {
	return s.mergeStep(false)
}

// mergeStep selects, claims and executes one merge. It returns whether
// useful work was done; the scheduler backs off on false. Failures never
// propagate: capacity errors and executor errors are converted into "no
// work", corruption marks the table broken.
func (s *StorageMergeTree) mergeStep(aggressive bool) bool {
	if s.shutdownCalled.Load() || s.broken.Load() {
		return false
	}

	// Selection and claim construction share one critical section: no two
	// concurrent steps can select overlapping groups.
	s.parts.mu.Lock()
	snap := s.parts.snapshotLocked()
	candidates := selectPartsToMerge(snap, aggressive, s.opts.MergeSettings)
	if candidates == nil {
		s.parts.mu.Unlock()
		snap.Close()
		return false
	}
	claim, err := newMergeClaimLocked(s.parts, s.opts.DiskMonitor, candidates)
	s.parts.mu.Unlock()
	snap.Close()
	if err != nil {
		if base.IsNotEnoughSpace(err) {
			// Transient: retried on a later cycle, space may free up.
			s.metrics.MergesNoSpace.Inc()
			s.opts.Logger.Infof("[%s] merge deferred: %v", s.Name(), err)
		} else {
			s.metrics.MergesFailed.Inc()
			s.opts.Logger.Errorf("[%s] merge claim failed: %+v", s.Name(), err)
			s.opts.EventListener.BackgroundError(err)
		}
		return false
	}
	defer claim.Release(s.opts.Logger)

	return s.executeClaim(claim, aggressive)
}

// executeClaim drives the merge executor for a live claim, outside the part
// set's critical section, and commits the result.
func (s *StorageMergeTree) executeClaim(claim *mergeClaim, aggressive bool) bool {
	inputs := claim.parts
	outputName := base.MergedPartName(partNames(inputs))
	totalBytes := totalPartBytes(inputs)

	s.metrics.MergesStarted.Inc()
	s.metrics.RunningMerges.Inc()
	defer s.metrics.RunningMerges.Dec()
	s.opts.EventListener.MergeBegin(MergeBeginInfo{
		Table:      s.Name(),
		Parts:      partNames(inputs),
		TotalBytes: totalBytes,
		Aggressive: aggressive,
	})

	start := crtime.NowMono()
	output, err := s.opts.Executor.Execute(s.ctx, MergeJob{
		Inputs:        inputs,
		OutputName:    outputName,
		Schema:        s.schema.Load(),
		SignColumn:    s.opts.SignColumn,
		ReservedBytes: claim.reservation.Size(),
		Progress:      s.pacer.pace,
	})
	if err == nil {
		if output == nil {
			err = errors.AssertionFailedf("mergetree: executor returned neither part nor error")
		} else if output.Name != outputName {
			err = errors.AssertionFailedf(
				"mergetree: executor produced part %s, expected %s", output.Name, outputName)
		} else {
			err = s.parts.ReplaceParts(inputs, output)
		}
	}
	elapsed := start.Elapsed()

	if err != nil {
		s.metrics.MergesFailed.Inc()
		if base.IsCorruption(err) {
			// Table-fatal: stop automatic merging until an operator steps in.
			// The visible part set is unchanged.
			s.broken.Store(true)
			s.opts.Logger.Errorf("[%s] corruption during merge, stopping background merges: %+v",
				s.Name(), err)
		} else {
			s.opts.Logger.Errorf("[%s] merge failed: %+v", s.Name(), err)
		}
		s.opts.EventListener.BackgroundError(err)
		s.opts.EventListener.MergeEnd(MergeEndInfo{
			Table:    s.Name(),
			Inputs:   len(inputs),
			Duration: elapsed,
			Err:      err,
		})
		return false
	}

	s.metrics.MergesCompleted.Inc()
	s.metrics.MergedBytes.Add(float64(totalBytes))
	s.metrics.MergedRows.Add(float64(totalPartRows(inputs)))
	s.opts.EventListener.MergeEnd(MergeEndInfo{
		Table:    s.Name(),
		Output:   output.Name,
		Inputs:   len(inputs),
		Bytes:    output.Size,
		Rows:     output.Rows,
		Duration: elapsed,
	})
	return true
}

// Broken reports whether merging was stopped by corruption.
func (s *StorageMergeTree) Broken() bool {
	return s.broken.Load()
}

// ClearBroken re-enables merging after corruption stopped it. This is the
// operator intervention path: call it only once the damaged parts have been
// repaired or removed. The merge task resumes on its next scheduling cycle.
func (s *StorageMergeTree) ClearBroken() {
	if s.broken.Swap(false) {
		s.opts.Logger.Infof("[%s] broken flag cleared, resuming merges", s.Name())
	}
}
