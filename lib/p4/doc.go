// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package p4 provides typed, read-only access to a Perforce depot
// through the p4 command line client.
//
// Every query runs "p4 -ztag -Mj <command>" and decodes the tagged
// JSON objects p4 writes, one per line. Connection parameters (port,
// user, client host, workspace, charset) are injected as global flags
// by the [Client], the same way for every command. Parameters left
// empty fall through to p4's own environment handling (P4PORT,
// P4CONFIG, tickets), so a workstation that already has a working p4
// setup needs no extra configuration.
//
// # Messages and exception levels
//
// p4 reports errors and warnings as messages with a severity rather
// than as distinct output streams. A query for an empty location,
// for example, produces a "no such file(s)" warning. The
// [ExceptionLevel] chosen at [Connect] decides which severities turn
// into a returned [*CommandError]:
//
//   - [RaiseNone]: messages never fail a query.
//   - [RaiseErrors]: failed and fatal messages fail; warnings do not.
//     Filesystem mounts use this level so that empty directories list
//     as empty instead of failing.
//   - [RaiseWarnings]: warnings fail too.
//
// There is no default level; the zero value is rejected so that every
// caller states the policy explicitly.
//
// # Record types
//
// [FileRecord] (from "p4 files"), [Revision] (from "p4 filelog") and
// [Content] (from "p4 fstat" + "p4 print") carry just the fields the
// filesystem needs. [FileType.IsText] and [Action.IsDelete] classify
// the depot's file type and change action strings.
package p4
