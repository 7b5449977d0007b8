// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/snowzjy/ClickHouse/internal/base"
	"github.com/stretchr/testify/require"
)

// parseSnapshot builds a part snapshot from lines of the form
//
//	<part-name>:<size> [merging]
func parseSnapshot(t *testing.T, td *datadriven.TestData) *PartSnapshot {
	snap := &PartSnapshot{merging: map[base.PartName]struct{}{}}
	for _, line := range strings.Split(strings.TrimSpace(td.Input), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		nameAndSize := strings.Split(fields[0], ":")
		if len(nameAndSize) != 2 {
			td.Fatalf(t, "malformed part %q", line)
		}
		name, err := base.ParsePartName(nameAndSize[0])
		if err != nil {
			td.Fatalf(t, "%v", err)
		}
		size, err := strconv.ParseUint(nameAndSize[1], 10, 64)
		if err != nil {
			td.Fatalf(t, "%v", err)
		}
		p := NewDataPart(name, size, size, nil, nil)
		p.setState(PartCommitted)
		for _, f := range fields[1:] {
			switch f {
			case "merging":
				snap.merging[name] = struct{}{}
			case "temporary":
				p.setState(PartTemporary)
			default:
				td.Fatalf(t, "unknown flag %q", f)
			}
		}
		snap.Parts = append(snap.Parts, p)
	}
	return snap
}

func TestSelectPartsToMerge(t *testing.T) {
	datadriven.RunTest(t, "testdata/selector", func(t *testing.T, td *datadriven.TestData) string {
		if td.Cmd != "select" {
			td.Fatalf(t, "unknown command %q", td.Cmd)
		}
		settings := MergeSettings{}
		settings.EnsureDefaults()
		if td.HasArg("max-parts") {
			td.ScanArgs(t, "max-parts", &settings.MaxPartsToMerge)
		}
		if td.HasArg("ratio") {
			var ratio string
			td.ScanArgs(t, "ratio", &ratio)
			v, err := strconv.ParseFloat(ratio, 64)
			require.NoError(t, err)
			settings.MaxSizeRatio = v
		}
		if td.HasArg("max-bytes") {
			var maxBytes uint64
			td.ScanArgs(t, "max-bytes", &maxBytes)
			settings.MaxBytesToMerge = maxBytes
		}
		aggressive := td.HasArg("aggressive")

		snap := parseSnapshot(t, td)
		group := selectPartsToMerge(snap, aggressive, settings)
		if group == nil {
			return "(none)"
		}
		var sb strings.Builder
		for i, p := range group {
			if i > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "%s", p.Name)
		}
		return sb.String()
	})
}

func TestSelectNeverPicksTaggedParts(t *testing.T) {
	// Whatever the snapshot, a part claimed by an in-flight merge must not
	// be selected again.
	snap := &PartSnapshot{merging: map[base.PartName]struct{}{}}
	for i := 0; i < 16; i++ {
		name := base.PartName{PartitionID: "all", MinBlock: int64(i + 1), MaxBlock: int64(i + 1)}
		p := NewDataPart(name, 10, 10, nil, nil)
		p.setState(PartCommitted)
		snap.Parts = append(snap.Parts, p)
		if i%3 == 0 {
			snap.merging[name] = struct{}{}
		}
	}
	settings := MergeSettings{}
	settings.EnsureDefaults()
	for _, aggressive := range []bool{false, true} {
		group := selectPartsToMerge(snap, aggressive, settings)
		require.NotNil(t, group)
		for _, p := range group {
			require.False(t, snap.Merging(p.Name), "selected tagged part %s", p.Name)
		}
	}
}
