// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/bureau-foundation/p4fs/lib/clock"
	"github.com/bureau-foundation/p4fs/lib/depot"
	"github.com/bureau-foundation/p4fs/lib/p4"
	"github.com/bureau-foundation/p4fs/lib/sealed"
)

var _ depot.Transport = (*Recorder)(nil)

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// Server is stored in the snapshot to identify where the answers
	// came from.
	Server string

	// Clock stamps the snapshot when it is written. If nil,
	// clock.Real() is used.
	Clock clock.Clock
}

// Recorder is a depot.Transport that forwards every query to another
// transport and records the successful answers. Failed queries are
// passed through and not recorded. Safe for concurrent use.
type Recorder struct {
	transport depot.Transport
	clock     clock.Clock

	mu       sync.Mutex
	snapshot Snapshot
}

// NewRecorder returns a Recorder forwarding to transport.
func NewRecorder(transport depot.Transport, options RecorderOptions) *Recorder {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	snapshot := newSnapshot()
	snapshot.Server = options.Server
	return &Recorder{
		transport: transport,
		clock:     options.Clock,
		snapshot:  snapshot,
	}
}

// Dirs implements depot.Transport.
func (r *Recorder) Dirs(ctx context.Context, pattern string) ([]string, error) {
	directories, err := r.transport.Dirs(ctx, pattern)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.snapshot.Dirs[pattern] = slices.Clone(directories)
	r.mu.Unlock()
	return directories, nil
}

// Files implements depot.Transport.
func (r *Recorder) Files(ctx context.Context, pattern string) ([]p4.FileRecord, error) {
	records, err := r.transport.Files(ctx, pattern)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.snapshot.Files[pattern] = slices.Clone(records)
	r.mu.Unlock()
	return records, nil
}

// Filelog implements depot.Transport.
func (r *Recorder) Filelog(ctx context.Context, path string, limit int) ([]p4.Revision, error) {
	revisions, err := r.transport.Filelog(ctx, path, limit)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.snapshot.Filelogs[filelogKey(path, limit)] = slices.Clone(revisions)
	r.mu.Unlock()
	return revisions, nil
}

// Print implements depot.Transport.
func (r *Recorder) Print(ctx context.Context, path string) (p4.Content, error) {
	content, err := r.transport.Print(ctx, path)
	if err != nil {
		return p4.Content{}, err
	}
	r.mu.Lock()
	r.snapshot.Prints[path] = p4.Content{Type: content.Type, Data: slices.Clone(content.Data)}
	r.mu.Unlock()
	return content, nil
}

// Len returns the number of recorded answers.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshot.Dirs) + len(r.snapshot.Files) + len(r.snapshot.Filelogs) + len(r.snapshot.Prints)
}

// Encode returns the recorded answers in the snapshot file format,
// stamped with the current time.
func (r *Recorder) Encode(compression Compression) ([]byte, error) {
	r.mu.Lock()
	r.snapshot.Recorded = r.clock.Now().UTC()
	data, err := Encode(r.snapshot, compression)
	r.mu.Unlock()
	return data, err
}

// WriteOptions configures Recorder.WriteFile.
type WriteOptions struct {
	// Compression is the body compression.
	Compression Compression

	// Recipients are age public keys to seal the file to. Empty
	// writes the snapshot in the clear.
	Recipients []string
}

// WriteFile atomically writes the recorded answers to path. Recording
// may continue afterwards; a later WriteFile includes everything.
func (r *Recorder) WriteFile(path string, options WriteOptions) error {
	data, err := r.Encode(options.Compression)
	if err != nil {
		return err
	}
	if len(options.Recipients) > 0 {
		data, err = sealed.Encrypt(data, options.Recipients)
		if err != nil {
			return fmt.Errorf("sealing snapshot: %w", err)
		}
	}
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}
