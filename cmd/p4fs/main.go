// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"filippo.io/age"

	"github.com/bureau-foundation/p4fs/lib/attr"
	"github.com/bureau-foundation/p4fs/lib/clock"
	"github.com/bureau-foundation/p4fs/lib/config"
	"github.com/bureau-foundation/p4fs/lib/depot"
	"github.com/bureau-foundation/p4fs/lib/depotfs"
	"github.com/bureau-foundation/p4fs/lib/p4"
	"github.com/bureau-foundation/p4fs/lib/process"
	"github.com/bureau-foundation/p4fs/lib/sealed"
	"github.com/bureau-foundation/p4fs/lib/snapshot"
	"github.com/bureau-foundation/p4fs/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	invocation, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		return err
	}
	if invocation.showHelp {
		return nil
	}
	if invocation.showVersion {
		version.Print(os.Stdout, "p4fs")
		return nil
	}
	cfg := invocation.config

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("starting p4fs",
		"version", version.Info(),
		"mountpoint", cfg.Mount.Mountpoint,
		"strategy", cfg.Mount.AttributeStrategy,
	)

	strategy, err := depot.ParseStrategy(cfg.Mount.AttributeStrategy)
	if err != nil {
		return err
	}
	compression, err := snapshot.ParseCompression(cfg.Snapshot.Compression)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport, recorder, err := openTransport(ctx, cfg, invocation.login, logger)
	if err != nil {
		return err
	}

	adapter := depot.New(transport, depot.Options{
		Model:    attr.NewModel(clock.Real()),
		Strategy: strategy,
		Logger:   logger.With("component", "depot"),
	})

	server, err := depotfs.Mount(depotfs.Options{
		Mountpoint:      cfg.Mount.Mountpoint,
		Adapter:         adapter,
		AllowOther:      cfg.Mount.AllowOther,
		EntryTimeout:    cfg.Mount.EntryTimeout,
		AttrTimeout:     cfg.Mount.AttrTimeout,
		NegativeTimeout: cfg.Mount.NegativeTimeout,
		Debug:           cfg.Mount.Debug,
		Logger:          logger.With("component", "fuse"),
	})
	if err != nil {
		return err
	}

	serveErr := serve(ctx, server, logger)

	if recorder != nil {
		err := recorder.WriteFile(cfg.Snapshot.Record, snapshot.WriteOptions{
			Compression: compression,
			Recipients:  cfg.Snapshot.Recipients,
		})
		if err != nil {
			return errors.Join(serveErr, err)
		}
		logger.Info("snapshot recorded",
			"path", cfg.Snapshot.Record,
			"answers", recorder.Len(),
			"compression", compression.String(),
			"sealed", len(cfg.Snapshot.Recipients) > 0,
		)
	}
	return serveErr
}

// mountedServer is the part of *fuse.Server that serve drives.
type mountedServer interface {
	Unmount() error
	Wait()
}

// serve blocks until ctx is cancelled, then unmounts, or until the
// filesystem is unmounted from outside.
func serve(ctx context.Context, server mountedServer, logger *slog.Logger) error {
	unmounted := make(chan struct{})
	go func() {
		server.Wait()
		close(unmounted)
	}()

	select {
	case <-unmounted:
		logger.Info("filesystem unmounted")
		return nil
	case <-ctx.Done():
	}

	logger.Info("received shutdown signal, unmounting")
	if err := server.Unmount(); err != nil {
		return fmt.Errorf("unmounting: %w", err)
	}
	<-unmounted
	logger.Info("shutdown complete")
	return nil
}

// openTransport returns what the adapter queries: a replayed snapshot,
// or a p4 connection, wrapped in a Recorder when recording. The
// Recorder is returned separately so the caller can save it.
func openTransport(ctx context.Context, cfg *config.Config, login bool, logger *slog.Logger) (depot.Transport, *snapshot.Recorder, error) {
	if cfg.Snapshot.Replay != "" {
		if login {
			logger.Warn("ignoring --login while replaying a snapshot")
		}
		var identities []age.Identity
		if cfg.Snapshot.Identity != "" {
			loaded, err := sealed.LoadIdentities(cfg.Snapshot.Identity)
			if err != nil {
				return nil, nil, err
			}
			identities = loaded
		}
		replayer, err := snapshot.Load(cfg.Snapshot.Replay, identities...)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("replaying snapshot",
			"path", cfg.Snapshot.Replay,
			"server", replayer.Server(),
			"recorded", replayer.Recorded(),
		)
		return replayer, nil, nil
	}

	level, err := p4.ParseExceptionLevel(cfg.Depot.ExceptionLevel)
	if err != nil {
		return nil, nil, err
	}
	client, err := p4.Connect(ctx, p4.Options{
		Binary:         cfg.Depot.Binary,
		Port:           cfg.Depot.Port,
		User:           cfg.Depot.User,
		Host:           cfg.Depot.Host,
		Client:         cfg.Depot.Client,
		Charset:        cfg.Depot.Charset,
		ExceptionLevel: level,
		Logger:         logger.With("component", "p4"),
	})
	if err != nil {
		return nil, nil, err
	}

	if login {
		password, err := readPassword(os.Stdin, os.Stderr)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Login(ctx, password); err != nil {
			return nil, nil, err
		}
		logger.Info("logged in", "user", cfg.Depot.User)
	}

	if cfg.Snapshot.Record != "" {
		recorder := snapshot.NewRecorder(client, snapshot.RecorderOptions{
			Server: client.Info().ServerAddress,
		})
		logger.Info("recording depot answers", "path", cfg.Snapshot.Record)
		return recorder, recorder, nil
	}
	return client, nil, nil
}
