// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for p4fs.
//
// Configuration comes from at most one file, named by the --config
// flag or the P4FS_CONFIG environment variable (see [Locate]). There
// is no automatic discovery. Without a file, [Default] applies and
// command line flags supply the rest; flags always override file
// values.
//
// The file is YAML. A file named .json or .jsonc is read as JSON with
// comments and trailing commas allowed (tidwall/jsonc); since JSON is
// valid YAML the same decoder and unknown-key checks apply.
//
// Variable expansion is performed on connection and path fields
// after loading: ${HOME} and ${VAR:-default} patterns are expanded,
// so a shared file can say "port: ${P4PORT:-ssl:perforce:1666}". No
// other environment variables override config values.
//
// [Config.Validate] checks the merged result with declarative
// go-playground/validator rules plus a few cross-field checks, and
// reports every problem at once.
package config
