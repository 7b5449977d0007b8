// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build linux

package diskspace

import "golang.org/x/sys/unix"

// DefaultStat statfs-es the volume backing path.
//
// Bavail is used rather than Bfree so the monitor sees the space available
// to an unprivileged process, and Frsize rather than Bsize because on Linux
// the block counts are in Frsize units (the statfs/statvfs discrepancy GNU
// coreutils also works around).
func DefaultStat(path string) (Usage, error) {
	stat := unix.Statfs_t{}
	if err := unix.Statfs(path, &stat); err != nil {
		return Usage{}, err
	}
	return Usage{
		TotalBytes: uint64(stat.Frsize) * stat.Blocks,
		AvailBytes: uint64(stat.Frsize) * stat.Bavail,
	}, nil
}
