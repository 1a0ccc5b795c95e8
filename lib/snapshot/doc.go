// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot records depot answers to a file and replays them
// without a server.
//
// A [Recorder] wraps any depot.Transport, forwards every query, and
// keeps each successful answer keyed by the query and its argument.
// [Recorder.WriteFile] persists the collected [Snapshot]. [Load] reads
// it back into a [Replayer], which implements depot.Transport by
// looking answers up; a query that was never recorded fails with
// [ErrNotRecorded]. Mounting a replayed snapshot gives an offline,
// frozen view of exactly the part of the depot that was browsed while
// recording, which is also how the filesystem tests get deterministic
// depot content.
//
// # File format
//
//	offset  size  field
//	0       8     magic "P4FSSNP1"
//	8       1     compression (0 none, 1 lz4, 2 zstd)
//	9       8     uncompressed body length, big-endian
//	17      32    BLAKE3 keyed digest of bytes 8..16 and the body
//	49      ...   body: compressed CBOR encoding of the Snapshot
//
// The CBOR encoding is deterministic (see lib/codec), so recording the
// same answers twice produces byte-identical files. The digest is
// verified before anything is decompressed or decoded.
//
// # Sealed snapshots
//
// With [WriteOptions.Recipients] set, the whole file above is
// encrypted to those age recipients (see lib/sealed). [Load] detects
// the age header and decrypts with the identities it is given before
// verifying the snapshot itself.
package snapshot
