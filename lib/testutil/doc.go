// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for p4fs packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls. Mount and shutdown tests
// use them to bound waits on goroutines that talk to the kernel.
//
// [WriteFile] creates a fixture file in a per-test directory and
// [DiscardLogger] returns a logger for code under test whose output
// does not matter.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
