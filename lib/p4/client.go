// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package p4

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultBinary is the p4 executable looked up in PATH when
// Options.Binary is empty.
const DefaultBinary = "p4"

// commandWaitDelay bounds how long a cancelled command waits for a
// child that still holds its stdout or stderr open.
const commandWaitDelay = 500 * time.Millisecond

// Options configures a Client. Empty connection fields are not
// passed to p4, which then falls back to its environment.
type Options struct {
	// Binary is the p4 executable. Empty uses DefaultBinary.
	Binary string

	// Port is the server address (P4PORT), e.g. "ssl:perforce:1666".
	Port string

	// User is the Perforce user (P4USER).
	User string

	// Host overrides the client host name (P4HOST).
	Host string

	// Client is the client workspace (P4CLIENT). Depot-syntax
	// queries do not need one.
	Client string

	// Charset is the unicode server charset (P4CHARSET).
	Charset string

	// ExceptionLevel selects which message severities fail a query.
	// Required: the zero value is rejected by Connect.
	ExceptionLevel ExceptionLevel

	// Logger receives one debug record per command. If nil, a
	// no-op logger is used.
	Logger *slog.Logger
}

// Client runs p4 commands against one server connection. The
// connection parameters are fixed at Connect.
type Client struct {
	options Options
	info    ServerInfo
}

// Connect validates options and runs "p4 info" once to confirm the
// server is reachable and to record its identity.
func Connect(ctx context.Context, options Options) (*Client, error) {
	if !options.ExceptionLevel.valid() {
		return nil, fmt.Errorf("p4 exception level is required (none, errors or warnings)")
	}
	if options.Binary == "" {
		options.Binary = DefaultBinary
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	client := &Client{options: options}

	objects, err := client.runTagged(ctx, "info")
	if err != nil {
		return nil, fmt.Errorf("connecting to depot: %w", err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("connecting to depot: p4 info returned no server information")
	}
	client.info = parseServerInfo(objects[0])

	client.options.Logger.Info("connected to depot",
		"server", client.info.ServerAddress,
		"version", client.info.ServerVersion,
		"user", client.info.UserName,
	)
	return client, nil
}

// Info returns the server identity recorded at Connect.
func (c *Client) Info() ServerInfo {
	return c.info
}

// ExceptionLevel returns the level the client was connected with.
func (c *Client) ExceptionLevel() ExceptionLevel {
	return c.options.ExceptionLevel
}

// globalArgs returns the connection flags that precede every command.
func (c *Client) globalArgs() []string {
	var args []string
	if c.options.Port != "" {
		args = append(args, "-p", c.options.Port)
	}
	if c.options.User != "" {
		args = append(args, "-u", c.options.User)
	}
	if c.options.Host != "" {
		args = append(args, "-H", c.options.Host)
	}
	if c.options.Client != "" {
		args = append(args, "-c", c.options.Client)
	}
	if c.options.Charset != "" {
		args = append(args, "-C", c.options.Charset)
	}
	return args
}

// Command returns an *exec.Cmd for a p4 command without running it.
// The connection flags are prepended; the caller controls Stdin,
// Stdout and Stderr. Once ctx is done the process is killed and Wait
// gives up on its output after commandWaitDelay.
func (c *Client) Command(ctx context.Context, args ...string) *exec.Cmd {
	fullArgs := append(c.globalArgs(), args...)
	command := exec.CommandContext(ctx, c.options.Binary, fullArgs...)
	command.WaitDelay = commandWaitDelay
	return command
}

// execute runs a p4 command and returns its stdout and stderr. The
// returned error is non-nil only when the process could not start or
// exited non-zero; callers decide what a non-zero exit means once
// they have looked at the reported messages.
func (c *Client) execute(ctx context.Context, stdin io.Reader, args ...string) ([]byte, string, error) {
	var stdout, stderr bytes.Buffer
	command := c.Command(ctx, args...)
	command.Stdin = stdin
	command.Stdout = &stdout
	command.Stderr = &stderr

	c.options.Logger.Debug("p4 command", "args", strings.Join(args, " "))

	err := command.Run()
	if err != nil && ctx.Err() != nil {
		// The kill is ours; report the cancellation, not the signal.
		return nil, "", &CommandError{
			Command:  strings.Join(args, " "),
			Severity: SeverityFatal,
			Err:      ctx.Err(),
		}
	}
	if err != nil {
		var exitError *exec.ExitError
		if !errors.As(err, &exitError) {
			return nil, "", &CommandError{
				Command:  strings.Join(args, " "),
				Severity: SeverityFatal,
				Err:      err,
			}
		}
	}
	return stdout.Bytes(), stderr.String(), err
}

// check applies the exception level to the messages of a finished
// command.
func (c *Client) check(args []string, messages []Message, exitErr error) error {
	severity := maxSeverity(messages)
	if c.options.ExceptionLevel.raises(severity) {
		return &CommandError{
			Command:  strings.Join(args, " "),
			Severity: severity,
			Messages: messages,
			Err:      exitErr,
		}
	}
	// A non-zero exit that nothing explains is always a failure.
	if exitErr != nil && len(messages) == 0 {
		return &CommandError{
			Command:  strings.Join(args, " "),
			Severity: SeverityFailed,
			Err:      exitErr,
		}
	}
	return nil
}

// runTagged runs "p4 -ztag -Mj <args>" and returns the data objects.
// Message objects are separated out and checked against the exception
// level.
func (c *Client) runTagged(ctx context.Context, args ...string) ([]tagged, error) {
	taggedArgs := append([]string{"-ztag", "-Mj"}, args...)
	stdout, stderr, exitErr := c.execute(ctx, nil, taggedArgs...)
	var commandError *CommandError
	if errors.As(exitErr, &commandError) {
		return nil, commandError
	}

	objects, messages, err := decodeTagged(stdout)
	if err != nil {
		return nil, fmt.Errorf("p4 %s: decoding output: %w", strings.Join(args, " "), err)
	}
	messages = append(messages, stderrMessages(stderr)...)

	if err := c.check(args, messages, exitErr); err != nil {
		return nil, err
	}
	for _, message := range messages {
		if message.Severity >= SeverityWarning {
			c.options.Logger.Debug("p4 message",
				"command", args[0],
				"severity", message.Severity.String(),
				"text", message.Text,
			)
		}
	}
	return objects, nil
}

// runRaw runs an untagged p4 command and returns stdout unparsed.
func (c *Client) runRaw(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	stdout, stderr, exitErr := c.execute(ctx, stdin, args...)
	var commandError *CommandError
	if errors.As(exitErr, &commandError) {
		return nil, commandError
	}
	if err := c.check(args, stderrMessages(stderr), exitErr); err != nil {
		return nil, err
	}
	return stdout, nil
}

// decodeTagged decodes the stream of JSON objects p4 writes with
// -ztag -Mj. Objects with a "severity" field (or the marshal-style
// "code": "error") are messages; all others are data.
func decodeTagged(output []byte) ([]tagged, []Message, error) {
	decoder := json.NewDecoder(bytes.NewReader(output))
	decoder.UseNumber()

	var objects []tagged
	var messages []Message
	for {
		var raw map[string]any
		err := decoder.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		object := make(tagged, len(raw))
		for key, value := range raw {
			object[key] = stringify(value)
		}

		if message, ok := asMessage(object); ok {
			messages = append(messages, message)
			continue
		}
		objects = append(objects, object)
	}
	return objects, messages, nil
}

func asMessage(object tagged) (Message, bool) {
	severityText, hasSeverity := object["severity"]
	if !hasSeverity && object["code"] != "error" && object["code"] != "info" {
		return Message{}, false
	}

	message := Message{Text: strings.TrimSpace(object["data"])}
	if severity, err := strconv.Atoi(severityText); err == nil {
		message.Severity = Severity(severity)
	} else if object["code"] == "info" {
		message.Severity = SeverityInfo
	} else {
		message.Severity = SeverityFailed
	}
	if generic, err := strconv.Atoi(object["generic"]); err == nil {
		message.Generic = generic
	}
	return message, true
}

func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}
