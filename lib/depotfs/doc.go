// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package depotfs mounts a depot as a read-only FUSE filesystem.
//
// The mount mirrors the depot namespace one to one: the mount root is
// the depot root "//", its children are the depots, and below them
// are depot directories and the head revisions of depot files. Every
// kernel request is answered through a depot.Adapter; nothing is
// cached here beyond what the kernel keeps for the configured entry
// and attribute timeouts.
//
// # Read Path
//
// Open fetches the complete head content and keeps it in the file
// handle; Read slices that buffer. Files are opened with direct I/O
// because the size reported by getattr comes from the revision log
// while the bytes served can differ: non-text content is served as
// empty.
//
// # Concurrency
//
// The adapter talks to one depot connection, so adapter calls from
// concurrent kernel requests are serialized through a single mutex.
// Reads of an already opened file do not touch the adapter.
//
// # Write Path
//
// None. The filesystem is mounted read-only, and opens for writing
// fail with EROFS.
package depotfs
