// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

import (
	"time"

	"github.com/cockroachdb/redact"
	"github.com/snowzjy/ClickHouse/internal/base"
	"github.com/snowzjy/ClickHouse/internal/humanize"
)

// MergeBeginInfo contains the arguments to the MergeBegin event.
type MergeBeginInfo struct {
	Table      string
	Parts      []base.PartName
	TotalBytes uint64
	Aggressive bool
}

func (i MergeBeginInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i MergeBeginInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("[%s] merging %d parts (%s)", redact.SafeString(i.Table), len(i.Parts),
		humanize.Bytes.Uint64(i.TotalBytes))
	if i.Aggressive {
		w.SafeString(" [aggressive]")
	}
	for _, name := range i.Parts {
		w.Printf(" %s", name)
	}
}

// MergeEndInfo contains the arguments to the MergeEnd event.
type MergeEndInfo struct {
	Table    string
	Output   base.PartName
	Inputs   int
	Bytes    uint64
	Rows     uint64
	Duration time.Duration
	// Err is set when the merge failed; the part set is unchanged in that
	// case.
	Err error
}

func (i MergeEndInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i MergeEndInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	if i.Err != nil {
		w.Printf("[%s] merge of %d parts failed after %.2fs: %v",
			redact.SafeString(i.Table), i.Inputs, i.Duration.Seconds(), i.Err)
		return
	}
	w.Printf("[%s] merged %d parts into %s (%s, %s rows) in %.2fs",
		redact.SafeString(i.Table), i.Inputs, i.Output,
		humanize.Bytes.Uint64(i.Bytes), humanize.Count.Uint64(i.Rows), i.Duration.Seconds())
}

// SchemaChangeInfo contains the arguments to the SchemaChange event.
type SchemaChangeInfo struct {
	Table       string
	FromVersion uint64
	ToVersion   uint64
}

func (i SchemaChangeInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i SchemaChangeInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("[%s] schema changed: version %d -> %d",
		redact.SafeString(i.Table), i.FromVersion, i.ToVersion)
}

// EventListener is a struct of callbacks invoked on table events. All
// callbacks run synchronously inside the operation that triggered them and
// must not block.
type EventListener struct {
	// BackgroundError is invoked on errors inside background merge steps,
	// including table-fatal corruption.
	BackgroundError func(error)
	// MergeBegin is invoked after a merge claim is constructed, before the
	// executor starts.
	MergeBegin func(MergeBeginInfo)
	// MergeEnd is invoked after a merge step finishes, on success and
	// failure.
	MergeEnd func(MergeEndInfo)
	// SchemaChange is invoked after an ALTER commits.
	SchemaChange func(SchemaChangeInfo)
}

// EnsureDefaults replaces nil callbacks with no-ops.
func (l *EventListener) EnsureDefaults() {
	if l.BackgroundError == nil {
		l.BackgroundError = func(error) {}
	}
	if l.MergeBegin == nil {
		l.MergeBegin = func(MergeBeginInfo) {}
	}
	if l.MergeEnd == nil {
		l.MergeEnd = func(MergeEndInfo) {}
	}
	if l.SchemaChange == nil {
		l.SchemaChange = func(SchemaChangeInfo) {}
	}
}

// MakeLoggingEventListener creates an EventListener that logs all events to
// the given logger.
func MakeLoggingEventListener(logger base.Logger) EventListener {
	logger = base.LoggerOrDefault(logger)
	return EventListener{
		BackgroundError: func(err error) {
			logger.Errorf("background error: %+v", err)
		},
		MergeBegin: func(info MergeBeginInfo) {
			logger.Infof("%s", info)
		},
		MergeEnd: func(info MergeEndInfo) {
			logger.Infof("%s", info)
		},
		SchemaChange: func(info SchemaChangeInfo) {
			logger.Infof("%s", info)
		},
	}
}
