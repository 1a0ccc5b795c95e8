// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption for recorded depot snapshots.
// A snapshot holds file content from the depot, so it can be sealed to
// one or more age x25519 recipients when it is written and opened with
// a matching identity file when it is replayed.
//
// Ciphertext is the binary age format, written to disk as is.
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair
//   - [Encrypt] -- encrypt to age public key recipients
//   - [Decrypt] -- decrypt with parsed identities
//   - [LoadIdentities] -- read an age identity file
//   - [IsSealed] -- detect age ciphertext
//   - [ParsePublicKey] -- recipient validation
package sealed
