// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package diskspace tracks free space on a storage volume and issues scoped,
// counted reservations against it. Every background merge reserves the sum
// of its input part sizes before starting, so concurrent merges on one
// volume cannot be double-counted into the same free-space budget.
package diskspace

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/snowzjy/ClickHouse/internal/base"
	"github.com/snowzjy/ClickHouse/internal/humanize"
)

// Usage reports the capacity of the volume backing a path.
type Usage struct {
	// TotalBytes is the total size of the volume.
	TotalBytes uint64
	// AvailBytes is the amount of space available to the current process.
	AvailBytes uint64
}

// StatFn returns the current usage of the volume backing path.
type StatFn func(path string) (Usage, error)

// Monitor tracks outstanding reservations against one volume. All tables
// whose data lives on the volume share a single Monitor.
type Monitor struct {
	path string
	stat StatFn

	mu struct {
		sync.Mutex
		reserved uint64
	}
}

// NewMonitor returns a Monitor for the volume backing path. stat must not be
// nil.
func NewMonitor(path string, stat StatFn) *Monitor {
	if stat == nil {
		panic(errors.AssertionFailedf("diskspace: nil StatFn"))
	}
	return &Monitor{path: path, stat: stat}
}

// Path returns the path the monitor was created for.
func (m *Monitor) Path() string { return m.path }

// Reserved returns the total size of outstanding reservations.
func (m *Monitor) Reserved() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.reserved
}

// Unreserved returns the volume's available space minus outstanding
// reservations.
func (m *Monitor) Unreserved() (uint64, error) {
	u, err := m.stat(m.path)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.AvailBytes < m.mu.reserved {
		return 0, nil
	}
	return u.AvailBytes - m.mu.reserved, nil
}

// Reserve claims size bytes of the volume's free space for the duration of
// one merge. It fails with an error marked base.ErrNotEnoughSpace if size
// exceeds the space still unreserved. The caller must arrange for Release to
// run on every exit path.
func (m *Monitor) Reserve(size uint64) (*Reservation, error) {
	u, err := m.stat(m.path)
	if err != nil {
		return nil, errors.Wrapf(err, "diskspace: statting %q", m.path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.AvailBytes < m.mu.reserved+size {
		return nil, errors.Mark(
			errors.Newf("diskspace: cannot reserve %s on %q: %s available, %s already reserved",
				humanize.Bytes.Uint64(size), m.path,
				humanize.Bytes.Uint64(u.AvailBytes), humanize.Bytes.Uint64(m.mu.reserved)),
			base.ErrNotEnoughSpace)
	}
	m.mu.reserved += size
	return &Reservation{monitor: m, size: size}, nil
}

// Reservation is a counted claim against a Monitor's free space. It exists
// only for the duration of one merge.
type Reservation struct {
	monitor  *Monitor
	size     uint64
	released bool
}

// Size returns the reserved byte count.
func (r *Reservation) Size() uint64 { return r.size }

// Release returns the reserved space to the monitor. Calling Release more
// than once is a no-op.
func (r *Reservation) Release() {
	if r == nil || r.released {
		return
	}
	r.released = true
	m := r.monitor
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mu.reserved < r.size {
		panic(errors.AssertionFailedf(
			"diskspace: releasing %d reserved bytes but only %d outstanding", r.size, m.mu.reserved))
	}
	m.mu.reserved -= r.size
}
