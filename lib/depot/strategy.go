// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depot

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/p4fs/lib/attr"
	"github.com/bureau-foundation/p4fs/lib/p4"
)

// Strategy selects how Attributes resolves a path that is not a
// directory.
type Strategy int

const (
	// RevisionLog asks for the most recent revision ("filelog -m 1")
	// and overlays its timestamp and size.
	RevisionLog Strategy = iota

	// Listing asks for the flat head listing ("files") and overlays
	// only its timestamp. The record keeps a zero size.
	Listing
)

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case RevisionLog:
		return "filelog"
	case Listing:
		return "files"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy parses "filelog" or "files".
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "filelog":
		return RevisionLog, nil
	case "files":
		return Listing, nil
	default:
		return 0, fmt.Errorf("unknown attribute strategy %q (want filelog or files)", name)
	}
}

// resolve queries the transport for path and returns the overlaid file
// record, or found=false when the transport reports nothing.
func (s Strategy) resolve(ctx context.Context, transport Transport, model *attr.Model, path string) (attr.Record, bool, error) {
	switch s {
	case RevisionLog:
		revisions, err := transport.Filelog(ctx, path, 1)
		if err != nil {
			return attr.Record{}, false, err
		}
		if len(revisions) == 0 {
			return attr.Record{}, false, nil
		}
		return applyRevision(model.File(), revisions[0]), true, nil

	case Listing:
		files, err := transport.Files(ctx, path)
		if err != nil {
			return attr.Record{}, false, err
		}
		if len(files) == 0 {
			return attr.Record{}, false, nil
		}
		return applyListing(model.File(), files[0]), true, nil

	default:
		return attr.Record{}, false, fmt.Errorf("unknown attribute strategy %d", int(s))
	}
}

// applyRevision overlays a revision-log entry: all three timestamps
// become the revision's submit time and the size becomes its length.
func applyRevision(base attr.Record, revision p4.Revision) attr.Record {
	return base.WithTimestamp(attr.EpochSeconds(revision.Time)).WithSize(revision.Size)
}

// applyListing overlays a flat listing entry. The listing carries no
// size, so only the timestamps change.
func applyListing(base attr.Record, file p4.FileRecord) attr.Record {
	return base.WithTimestamp(file.Time)
}
