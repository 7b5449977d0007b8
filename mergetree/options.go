// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/snowzjy/ClickHouse/internal/base"
	"github.com/snowzjy/ClickHouse/internal/bgpool"
	"github.com/snowzjy/ClickHouse/internal/diskspace"
)

// Mode selects the part-merging behavior variant of a table. It is fixed at
// table construction.
type Mode int

const (
	// ModeOrdinary merges parts by plain interleaving of sorted rows.
	ModeOrdinary Mode = iota
	// ModeCollapsing additionally collapses pairs of rows that differ only
	// in the value of a sign column (+1/-1), the way incremental updates are
	// folded away during merges.
	ModeCollapsing
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeOrdinary:
		return "Ordinary"
	case ModeCollapsing:
		return "Collapsing"
	default:
		return "unknown"
	}
}

// Options holds the collaborators and settings of a StorageMergeTree. Pool,
// DiskMonitor and Executor are required.
type Options struct {
	// Pool is the process-wide background worker pool the table registers
	// its merge task with.
	Pool *bgpool.Pool
	// DiskMonitor accounts free space on the volume holding the table's
	// data. Tables sharing a volume share a monitor.
	DiskMonitor *diskspace.Monitor
	// Executor performs the physical merge of claimed parts.
	Executor MergeExecutor
	// PartDeleter runs when an obsolete part's last reference drops. It is
	// the hook for the out-of-scope physical deletion collaborator.
	// Optional.
	PartDeleter func(*DataPart)

	// Mode selects the merging behavior variant.
	Mode Mode
	// SignColumn names the +1/-1 column of a ModeCollapsing table. Must be
	// set iff Mode is ModeCollapsing.
	SignColumn string

	// MergeSettings bounds merge candidate selection.
	MergeSettings MergeSettings

	// MaxMergeWriteRate throttles the merge executor's write throughput, in
	// bytes per second. Zero disables pacing.
	MaxMergeWriteRate int64

	// Logger defaults to base.DefaultLogger.
	Logger base.Logger
	// EventListener receives notifications of merge lifecycle events. Nil
	// callbacks are allowed.
	EventListener *EventListener
	// MetricsRegisterer optionally receives the table's prometheus
	// collectors.
	MetricsRegisterer prometheus.Registerer
}

// EnsureDefaults fills in unset options with default values and validates
// the required collaborators.
func (o *Options) EnsureDefaults() error {
	if o.Pool == nil {
		return errors.New("mergetree: Options.Pool is required")
	}
	if o.DiskMonitor == nil {
		return errors.New("mergetree: Options.DiskMonitor is required")
	}
	if o.Executor == nil {
		return errors.New("mergetree: Options.Executor is required")
	}
	switch o.Mode {
	case ModeOrdinary:
		if o.SignColumn != "" {
			return errors.New("mergetree: SignColumn set on an Ordinary table")
		}
	case ModeCollapsing:
		if o.SignColumn == "" {
			return errors.New("mergetree: Collapsing table requires a SignColumn")
		}
	default:
		return errors.Newf("mergetree: unknown mode %d", o.Mode)
	}
	o.MergeSettings.EnsureDefaults()
	o.Logger = base.LoggerOrDefault(o.Logger)
	if o.EventListener == nil {
		o.EventListener = &EventListener{}
	}
	o.EventListener.EnsureDefaults()
	return nil
}
