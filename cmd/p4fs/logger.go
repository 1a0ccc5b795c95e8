// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/p4fs/lib/config"
)

// newLogger builds the process logger from the log configuration.
func newLogger(options config.LogConfig, output io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(options.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	switch options.Format {
	case "text":
		return slog.New(slog.NewTextHandler(output, handlerOptions)), nil
	case "json", "":
		return slog.New(slog.NewJSONHandler(output, handlerOptions)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want json or text)", options.Format)
	}
}
