// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUsage marks command line mistakes. Fatal exits with status 2 for
// errors wrapping it, following the convention of flag parsers.
var ErrUsage = errors.New("usage error")

// Fatal writes "error: err" to stderr and exits: status 2 for usage
// errors, 1 for everything else. Use it in main() for errors from
// run() where the structured logger may not be initialized.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes the error line and returns the exit status.
func report(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	if errors.Is(err, ErrUsage) {
		return 2
	}
	return 1
}
