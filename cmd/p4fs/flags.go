// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/p4fs/lib/config"
	"github.com/bureau-foundation/p4fs/lib/process"
)

// invocation is the parsed command line.
type invocation struct {
	config      *config.Config
	login       bool
	showVersion bool
	showHelp    bool
}

// flagValues holds the raw flag values. Only flags given on the
// command line override the config file.
type flagValues struct {
	configPath     string
	port           string
	user           string
	host           string
	client         string
	charset        string
	binary         string
	exceptionLevel string
	strategy       string
	allowOther     bool
	debug          bool
	record         string
	replay         string
	compression    string
	recipients     []string
	identity       string
	logLevel       string
	logFormat      string
	login          bool
	showVersion    bool
	help           bool
}

func newFlagSet(values *flagValues, output io.Writer) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("p4fs", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.SortFlags = false

	flagSet.StringVar(&values.configPath, "config", "", "path to the YAML config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVarP(&values.port, "port", "p", "", "Perforce server address (P4PORT)")
	flagSet.StringVarP(&values.user, "user", "u", "", "Perforce user (P4USER)")
	flagSet.StringVarP(&values.host, "host", "H", "", "client host name (P4HOST)")
	flagSet.StringVarP(&values.client, "client", "c", "", "client workspace (P4CLIENT)")
	flagSet.StringVarP(&values.charset, "charset", "C", "", "unicode server charset (P4CHARSET)")
	flagSet.StringVar(&values.binary, "p4", "", "p4 executable (default: p4 in PATH)")
	flagSet.StringVar(&values.exceptionLevel, "exception-level", "", "p4 message severity that fails a query: none, errors or warnings")
	flagSet.StringVar(&values.strategy, "strategy", "", "file attribute strategy: filelog (with sizes) or files (faster, no sizes)")
	flagSet.BoolVar(&values.allowOther, "allow-other", false, "allow other users to access the mount")
	flagSet.BoolVar(&values.debug, "debug", false, "log every FUSE request")
	flagSet.BoolVar(&values.login, "login", false, "run p4 login with a password read from the terminal or stdin")
	flagSet.StringVar(&values.record, "record", "", "save every depot answer to this snapshot file at unmount")
	flagSet.StringVar(&values.replay, "replay", "", "serve a recorded snapshot instead of querying a server")
	flagSet.StringVar(&values.compression, "record-compression", "", "snapshot compression: none, lz4 or zstd")
	flagSet.StringArrayVar(&values.recipients, "record-recipient", nil, "age public key to seal the recorded snapshot to (repeatable)")
	flagSet.StringVar(&values.identity, "replay-identity", "", "age identity file for opening a sealed snapshot")
	flagSet.StringVar(&values.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flagSet.StringVar(&values.logFormat, "log-format", "", "log format: json or text")
	flagSet.BoolVar(&values.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&values.help, "help", "h", false, "show help")
	return flagSet
}

// apply copies the flags given on the command line into cfg.
func (v *flagValues) apply(flagSet *pflag.FlagSet, cfg *config.Config) {
	overrides := map[string]func(){
		"port":               func() { cfg.Depot.Port = v.port },
		"user":               func() { cfg.Depot.User = v.user },
		"host":               func() { cfg.Depot.Host = v.host },
		"client":             func() { cfg.Depot.Client = v.client },
		"charset":            func() { cfg.Depot.Charset = v.charset },
		"p4":                 func() { cfg.Depot.Binary = v.binary },
		"exception-level":    func() { cfg.Depot.ExceptionLevel = v.exceptionLevel },
		"strategy":           func() { cfg.Mount.AttributeStrategy = v.strategy },
		"allow-other":        func() { cfg.Mount.AllowOther = v.allowOther },
		"debug":              func() { cfg.Mount.Debug = v.debug },
		"record":             func() { cfg.Snapshot.Record = v.record },
		"replay":             func() { cfg.Snapshot.Replay = v.replay },
		"record-compression": func() { cfg.Snapshot.Compression = v.compression },
		"record-recipient":   func() { cfg.Snapshot.Recipients = v.recipients },
		"replay-identity":    func() { cfg.Snapshot.Identity = v.identity },
		"log-level":          func() { cfg.Log.Level = v.logLevel },
		"log-format":         func() { cfg.Log.Format = v.logFormat },
	}
	flagSet.Visit(func(flag *pflag.Flag) {
		if override, ok := overrides[flag.Name]; ok {
			override()
		}
	})
}

// parseArgs parses the command line and builds the validated
// configuration: defaults, then the config file, then flags, then the
// positional mountpoint. Help and version requests return before any
// config is read.
func parseArgs(args []string, output io.Writer) (*invocation, error) {
	var values flagValues
	flagSet := newFlagSet(&values, output)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(output, flagSet)
			return &invocation{showHelp: true}, nil
		}
		return nil, fmt.Errorf("%w: %w", process.ErrUsage, err)
	}
	if values.help {
		printHelp(output, flagSet)
		return &invocation{showHelp: true}, nil
	}
	if values.showVersion {
		return &invocation{showVersion: true}, nil
	}

	positional := flagSet.Args()
	if len(positional) > 1 {
		return nil, fmt.Errorf("%w: expected one mountpoint, got %d arguments", process.ErrUsage, len(positional))
	}

	cfg := config.Default()
	if path := config.Locate(values.configPath); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	values.apply(flagSet, cfg)
	if len(positional) == 1 {
		cfg.Mount.Mountpoint = positional[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &invocation{config: cfg, login: values.login}, nil
}

func printHelp(output io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(output, `p4fs mounts a Perforce depot as a read-only filesystem.

Usage:
  p4fs [flags] <mountpoint>

The mount stays in the foreground until interrupted or unmounted with
"fusermount -u <mountpoint>". Flags override the config file.

Flags:
%s`, flagSet.FlagUsages())
}
