// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package p4

import (
	"fmt"
	"strings"
)

// Severity is the p4 message severity. Values match the server's
// E_EMPTY .. E_FATAL levels.
type Severity int

const (
	SeverityEmpty   Severity = 0
	SeverityInfo    Severity = 1
	SeverityWarning Severity = 2
	SeverityFailed  Severity = 3
	SeverityFatal   Severity = 4
)

// String returns the lower-case name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityEmpty:
		return "empty"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityFailed:
		return "failed"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ExceptionLevel selects which message severities fail a query.
type ExceptionLevel int

const (
	// RaiseNone never fails a query because of a message. Only a p4
	// process that cannot run, or exits non-zero without reporting
	// anything, produces an error.
	RaiseNone ExceptionLevel = iota + 1

	// RaiseErrors fails on failed and fatal messages.
	RaiseErrors

	// RaiseWarnings fails on warnings, failed and fatal messages.
	RaiseWarnings
)

// String returns the configuration name of the level.
func (l ExceptionLevel) String() string {
	switch l {
	case RaiseNone:
		return "none"
	case RaiseErrors:
		return "errors"
	case RaiseWarnings:
		return "warnings"
	default:
		return fmt.Sprintf("unset(%d)", int(l))
	}
}

// ParseExceptionLevel parses "none", "errors" or "warnings".
func ParseExceptionLevel(name string) (ExceptionLevel, error) {
	switch name {
	case "none":
		return RaiseNone, nil
	case "errors":
		return RaiseErrors, nil
	case "warnings":
		return RaiseWarnings, nil
	default:
		return 0, fmt.Errorf("unknown exception level %q (want none, errors or warnings)", name)
	}
}

func (l ExceptionLevel) valid() bool {
	return l >= RaiseNone && l <= RaiseWarnings
}

// raises reports whether a message of the given severity fails a
// query at this level.
func (l ExceptionLevel) raises(severity Severity) bool {
	switch l {
	case RaiseErrors:
		return severity >= SeverityFailed
	case RaiseWarnings:
		return severity >= SeverityWarning
	default:
		return false
	}
}

// Message is one message reported by p4.
type Message struct {
	Severity Severity

	// Generic is the server's generic error code (E_NOTYET,
	// E_EMPTY, ...). Zero when the message came from plain stderr.
	Generic int

	Text string
}

// benignStderr lists stderr texts that p4 emits for empty results.
// They are classified as warnings so that RaiseErrors ignores them.
var benignStderr = []string{
	"no such file(s)",
	"not in client view",
	"no file(s) at that changelist",
	"no file(s) at that revision",
	"file(s) up-to-date",
}

// stderrMessages turns plain stderr output into messages. p4 writes
// most messages as tagged JSON on stdout, but client-side failures
// (connection refused, bad flags) arrive as text on stderr.
func stderrMessages(stderr string) []Message {
	var messages []Message
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		severity := SeverityFailed
		for _, benign := range benignStderr {
			if strings.Contains(line, benign) {
				severity = SeverityWarning
				break
			}
		}
		messages = append(messages, Message{Severity: severity, Text: line})
	}
	return messages
}

// CommandError reports a p4 query that failed, either because the
// process could not run or because it reported messages at or above
// the client's exception level.
type CommandError struct {
	// Command is the p4 command and its arguments, without the
	// connection flags.
	Command string

	// Severity is the highest severity among Messages.
	Severity Severity

	// Messages are all messages the command reported.
	Messages []Message

	// Err is the underlying process error, if any.
	Err error
}

func (e *CommandError) Error() string {
	var texts []string
	for _, message := range e.Messages {
		if message.Severity >= SeverityWarning {
			texts = append(texts, message.Text)
		}
	}
	detail := strings.Join(texts, "; ")
	switch {
	case detail != "" && e.Err != nil:
		return fmt.Sprintf("p4 %s: %s (%v)", e.Command, detail, e.Err)
	case detail != "":
		return fmt.Sprintf("p4 %s: %s", e.Command, detail)
	case e.Err != nil:
		return fmt.Sprintf("p4 %s: %v", e.Command, e.Err)
	default:
		return fmt.Sprintf("p4 %s: failed", e.Command)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func maxSeverity(messages []Message) Severity {
	highest := SeverityEmpty
	for _, message := range messages {
		if message.Severity > highest {
			highest = message.Severity
		}
	}
	return highest
}
