// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors of one table.
type Metrics struct {
	MergesStarted   prometheus.Counter
	MergesCompleted prometheus.Counter
	MergesFailed    prometheus.Counter
	MergesNoSpace   prometheus.Counter
	MergedBytes     prometheus.Counter
	MergedRows      prometheus.Counter
	RunningMerges   prometheus.Gauge
	CommittedParts  prometheus.GaugeFunc
	CommittedBytes  prometheus.GaugeFunc
}

func newMetrics(table string, parts *PartSet) *Metrics {
	labels := prometheus.Labels{"table": table}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergetree",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	m := &Metrics{
		MergesStarted:   counter("merges_started_total", "Merge steps that claimed parts and started the executor."),
		MergesCompleted: counter("merges_completed_total", "Merges that committed a result part."),
		MergesFailed:    counter("merges_failed_total", "Merges that failed in the executor or on commit."),
		MergesNoSpace:   counter("merges_no_space_total", "Merge attempts abandoned for lack of reservable disk space."),
		MergedBytes:     counter("merged_bytes_total", "Input bytes consumed by completed merges."),
		MergedRows:      counter("merged_rows_total", "Input rows consumed by completed merges."),
		RunningMerges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mergetree",
			Name:        "running_merges",
			Help:        "Merges currently executing.",
			ConstLabels: labels,
		}),
		CommittedParts: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "mergetree",
			Name:        "committed_parts",
			Help:        "Parts currently committed in the table.",
			ConstLabels: labels,
		}, func() float64 { return float64(parts.Len()) }),
		CommittedBytes: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "mergetree",
			Name:        "committed_bytes",
			Help:        "Byte size of the committed parts.",
			ConstLabels: labels,
		}, func() float64 { return float64(parts.TotalBytes()) }),
	}
	return m
}

// register adds all collectors to reg.
func (m *Metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.MergesStarted, m.MergesCompleted, m.MergesFailed, m.MergesNoSpace,
		m.MergedBytes, m.MergedRows, m.RunningMerges, m.CommittedParts, m.CommittedBytes,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
