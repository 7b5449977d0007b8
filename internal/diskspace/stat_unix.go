// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build darwin || openbsd || dragonfly || freebsd

package diskspace

import "golang.org/x/sys/unix"

// DefaultStat statfs-es the volume backing path.
func DefaultStat(path string) (Usage, error) {
	stat := unix.Statfs_t{}
	if err := unix.Statfs(path, &stat); err != nil {
		return Usage{}, err
	}
	return Usage{
		TotalBytes: uint64(stat.Bsize) * uint64(stat.Blocks),
		AvailBytes: uint64(stat.Bsize) * uint64(stat.Bavail),
	}, nil
}
