// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/p4fs/lib/depot"
	"github.com/bureau-foundation/p4fs/lib/p4"
)

var _ depot.Transport = (*Replayer)(nil)

// ErrNotRecorded is returned by a Replayer for a query that the
// snapshot does not contain.
var ErrNotRecorded = errors.New("snapshot: query not recorded")

// Replayer is a depot.Transport answering from a recorded Snapshot.
// It never changes after construction and is safe for concurrent use.
type Replayer struct {
	snapshot Snapshot
}

// NewReplayer returns a Replayer answering from snapshot.
func NewReplayer(snapshot Snapshot) *Replayer {
	snapshot.fill()
	return &Replayer{snapshot: snapshot}
}

// Server returns the depot address the snapshot was recorded from.
func (r *Replayer) Server() string {
	return r.snapshot.Server
}

// Recorded returns when the snapshot was written.
func (r *Replayer) Recorded() time.Time {
	return r.snapshot.Recorded
}

// Dirs implements depot.Transport.
func (r *Replayer) Dirs(ctx context.Context, pattern string) ([]string, error) {
	directories, ok := r.snapshot.Dirs[pattern]
	if !ok {
		return nil, fmt.Errorf("dirs %s: %w", pattern, ErrNotRecorded)
	}
	return directories, nil
}

// Files implements depot.Transport.
func (r *Replayer) Files(ctx context.Context, pattern string) ([]p4.FileRecord, error) {
	records, ok := r.snapshot.Files[pattern]
	if !ok {
		return nil, fmt.Errorf("files %s: %w", pattern, ErrNotRecorded)
	}
	return records, nil
}

// Filelog implements depot.Transport.
func (r *Replayer) Filelog(ctx context.Context, path string, limit int) ([]p4.Revision, error) {
	revisions, ok := r.snapshot.Filelogs[filelogKey(path, limit)]
	if !ok {
		return nil, fmt.Errorf("filelog -m %d %s: %w", limit, path, ErrNotRecorded)
	}
	return revisions, nil
}

// Print implements depot.Transport.
func (r *Replayer) Print(ctx context.Context, path string) (p4.Content, error) {
	content, ok := r.snapshot.Prints[path]
	if !ok {
		return p4.Content{}, fmt.Errorf("print %s: %w", path, ErrNotRecorded)
	}
	return content, nil
}
