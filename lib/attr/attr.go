// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package attr

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/p4fs/lib/clock"
)

const (
	// DirectoryPermissions is owner read/execute.
	DirectoryPermissions = 0o500

	// FilePermissions is owner read-only.
	FilePermissions = 0o400

	// DirectoryLinks counts "." and the implicit link from the parent.
	DirectoryLinks = 2

	// FileLinks is zero: hard links are not tracked.
	FileLinks = 0
)

// Record is the translated POSIX metadata for one filesystem entity.
// Records are values: the With* methods return modified copies and
// never touch the receiver.
type Record struct {
	// Mode holds exactly one file type bit (S_IFDIR, S_IFREG or
	// S_IFLNK) plus the permission bits.
	Mode uint32

	// Nlink is the hard link count.
	Nlink uint32

	// Ctime, Mtime and Atime are whole seconds since the Unix epoch.
	Ctime int64
	Mtime int64
	Atime int64

	// Size is the content length in bytes. Always zero for
	// directories.
	Size int64
}

// IsDir reports whether the record describes a directory.
func (r Record) IsDir() bool {
	return r.Mode&unix.S_IFMT == unix.S_IFDIR
}

// IsRegular reports whether the record describes a regular file.
func (r Record) IsRegular() bool {
	return r.Mode&unix.S_IFMT == unix.S_IFREG
}

// Type returns only the file type bits of Mode.
func (r Record) Type() uint32 {
	return r.Mode & unix.S_IFMT
}

// Permissions returns only the permission bits of Mode.
func (r Record) Permissions() uint32 {
	return r.Mode &^ unix.S_IFMT
}

// WithTimestamp returns a copy of r with ctime, mtime and atime all
// set to epoch.
func (r Record) WithTimestamp(epoch int64) Record {
	r.Ctime = epoch
	r.Mtime = epoch
	r.Atime = epoch
	return r
}

// WithSize returns a copy of r with Size set.
func (r Record) WithSize(size int64) Record {
	r.Size = size
	return r
}

// Model synthesizes default records. The only input besides the
// entity kind is the wall clock.
type Model struct {
	clock clock.Clock
}

// NewModel returns a Model stamping records with the given clock. A
// nil clock uses clock.Real().
func NewModel(c clock.Clock) *Model {
	if c == nil {
		c = clock.Real()
	}
	return &Model{clock: c}
}

// Directory returns the default record for a directory, timestamped
// with the current time.
func (m *Model) Directory() Record {
	return m.stamped(unix.S_IFDIR|DirectoryPermissions, DirectoryLinks)
}

// File returns the default record for a regular file, timestamped
// with the current time and with no size.
func (m *Model) File() Record {
	return m.stamped(unix.S_IFREG|FilePermissions, FileLinks)
}

func (m *Model) stamped(mode, links uint32) Record {
	now := EpochSeconds(m.clock.Now())
	return Record{
		Mode:  mode,
		Nlink: links,
		Ctime: now,
		Mtime: now,
		Atime: now,
	}
}

// EpochSeconds returns the whole seconds elapsed between the Unix
// epoch and t. Sub-second precision is truncated toward zero, so
// instants before the epoch round up rather than down (unlike
// time.Time.Unix, which floors).
func EpochSeconds(t time.Time) int64 {
	seconds := t.Unix()
	if seconds < 0 && t.Nanosecond() > 0 {
		seconds++
	}
	return seconds
}
