// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package mergetree implements the background merge subsystem of a
// MergeTree table: bookkeeping of the table's immutable on-disk parts,
// selection of adjacent part groups to merge, disk-space reservation ahead
// of each merge, scheduling over a shared bounded worker pool, and
// two-phase ALTER coordination.
//
// The physical merge algorithm, the on-disk part format and the query read
// path are out of scope; they plug in through the MergeExecutor interface,
// the DataPart metadata and the TableSnapshot view.
package mergetree
