// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"testing"

	"github.com/cockroachdb/redact"
	"github.com/stretchr/testify/require"
)

func TestParsePartName(t *testing.T) {
	testCases := []struct {
		s        string
		expected PartName
		ok       bool
	}{
		{"20260301_1_1_0", PartName{"20260301", 1, 1, 0}, true},
		{"20260301_1_7_2", PartName{"20260301", 1, 7, 2}, true},
		{"all_0_100_11", PartName{"all", 0, 100, 11}, true},
		{"", PartName{}, false},
		{"20260301", PartName{}, false},
		{"20260301_1_1", PartName{}, false},
		{"20260301_7_1_0", PartName{}, false},
		{"20260301_x_1_0", PartName{}, false},
		{"20260301_1_1_0_9", PartName{}, false},
	}
	for _, c := range testCases {
		t.Run(c.s, func(t *testing.T) {
			n, err := ParsePartName(c.s)
			if !c.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.expected, n)
			require.Equal(t, c.s, n.String())
		})
	}
}

func TestPartNameCompare(t *testing.T) {
	ordered := []string{
		"20260301_1_1_0",
		"20260301_2_5_1",
		"20260301_6_6_0",
		"20260302_1_1_0",
	}
	for i := range ordered {
		for j := range ordered {
			a, err := ParsePartName(ordered[i])
			require.NoError(t, err)
			b, err := ParsePartName(ordered[j])
			require.NoError(t, err)
			switch {
			case i < j:
				require.Negative(t, a.Compare(b), "%s vs %s", a, b)
			case i > j:
				require.Positive(t, a.Compare(b), "%s vs %s", a, b)
			default:
				require.Zero(t, a.Compare(b))
			}
		}
	}
}

func TestPartNameAdjacentTo(t *testing.T) {
	a := PartName{"p", 1, 3, 1}
	b := PartName{"p", 4, 4, 0}
	c := PartName{"p", 6, 6, 0}
	d := PartName{"q", 4, 4, 0}
	require.True(t, a.AdjacentTo(b))
	require.False(t, b.AdjacentTo(a))
	require.False(t, a.AdjacentTo(c))
	require.False(t, a.AdjacentTo(d))
}

func TestMergedPartName(t *testing.T) {
	first := PartName{"p", 1, 3, 2}
	last := PartName{"p", 4, 6, 1}
	m := MergedPartName([]PartName{first, last})
	require.Equal(t, PartName{"p", 1, 6, 3}, m)
	require.True(t, m.Covers(first))
	require.True(t, m.Covers(last))
	require.False(t, first.Covers(m))

	// The deepest part of a run is not necessarily at either end; the
	// result's level must still exceed it.
	m = MergedPartName([]PartName{
		{"p", 1, 1, 0},
		{"p", 2, 5, 3},
		{"p", 6, 6, 0},
	})
	require.Equal(t, PartName{"p", 1, 6, 4}, m)
}

func TestPartNameSafeFormat(t *testing.T) {
	n := PartName{"20260301", 1, 7, 2}
	require.Equal(t, redact.RedactableString("20260301_1_7_2"), redact.Sprintf("%s", n))
}
