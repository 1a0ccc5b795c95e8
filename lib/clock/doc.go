// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable wall clock for testability.
//
// Attribute synthesis stamps every default record with the current
// time. Production code injects Real(); tests inject Fake() so that
// synthesized timestamps are deterministic:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	model := attr.NewModel(c)
//	c.Advance(5 * time.Second)
package clock
