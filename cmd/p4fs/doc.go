// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// P4fs mounts a Perforce depot as a read-only FUSE filesystem. Every
// directory listing, attribute lookup and file read becomes a p4
// query against the configured server, so the mount always shows the
// head revisions.
//
// Usage:
//
//	p4fs [flags] <mountpoint>
//
// Connection settings come from a YAML config file (--config or
// P4FS_CONFIG), overridden by flags; p4 falls back to its own
// environment for anything left empty. With --record the answers the
// mount received are saved to a snapshot file at unmount, and
// --replay serves a recorded snapshot without a server.
//
// The filesystem runs in the foreground until SIGINT or SIGTERM, or
// until it is unmounted with fusermount -u.
package main
