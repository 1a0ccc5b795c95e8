// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword reads the Perforce password for --login. On a terminal
// it prompts with echo disabled; otherwise it reads the first line of
// stdin, so the password can be piped in.
func readPassword(stdin *os.File, prompt io.Writer) (string, error) {
	fileDescriptor := int(stdin.Fd())
	if term.IsTerminal(fileDescriptor) {
		fmt.Fprint(prompt, "Perforce password: ")
		passwordBytes, err := term.ReadPassword(fileDescriptor)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		if len(passwordBytes) == 0 {
			return "", errors.New("empty password")
		}
		return string(passwordBytes), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("no password on stdin (pipe one in or run from a terminal)")
	}
	return password, nil
}
