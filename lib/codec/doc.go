// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration for on-disk
// state, currently the recorded depot snapshots.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same recorded answers always produce identical bytes, so a snapshot
// digest identifies its content. Timestamps are written as RFC 3339
// text so that a decoded time keeps its location.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types serialized here carry `cbor` struct tags.
package codec
