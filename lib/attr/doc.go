// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package attr synthesizes POSIX attribute records for the entities
// of a read-only depot filesystem.
//
// A [Record] is a plain value: mode, link count, three timestamps in
// whole seconds since the Unix epoch, and a size. [Model] builds the
// default record for a directory or a regular file; callers that know
// more about a specific entity (a revision timestamp, a byte size)
// derive a new record with [Record.WithTimestamp] and
// [Record.WithSize]. Nothing here performs I/O or knows about the
// depot.
//
// Permission policy is fixed: directories are 0500 with two links,
// files are 0400 with zero links. The filesystem is read-only end to
// end, and depot content is versioned rather than hard-linked.
package attr
