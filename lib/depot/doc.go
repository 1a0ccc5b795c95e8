// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package depot maps depot queries onto filesystem listings, attribute
// records and file content.
//
// The [Adapter] is the translation layer between a FUSE dispatcher and
// a [Transport]. It works in depot path syntax: a filesystem path is
// converted once with [DepotPath], which prefixes a separator so that
// "/main/README" becomes "//main/README" and the mount root becomes
// [Root]. The adapter never caches; every call issues fresh queries,
// and every attribute record is built from the [attr.Model] at the
// moment of the call.
//
// Three queries cover everything:
//
//   - ListDirectory: "dirs <path>/*" and, except at the depot root,
//     "files <path>/*". Deleted heads are dropped and names are made
//     relative to the listed directory.
//   - Attributes: "dirs <path>" first, because a directory match wins
//     over a file of the same name. Otherwise the configured
//     [Strategy] resolves the file from its revision log or from a
//     flat listing.
//   - FileContents: the head revision's bytes for text-classified
//     types, and an empty result for everything else.
//
// Transport errors are wrapped with the failing query and returned
// unchanged in kind. There are no retries.
package depot
