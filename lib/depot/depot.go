// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/p4fs/lib/attr"
	"github.com/bureau-foundation/p4fs/lib/p4"
)

// Root is the depot path of the mount root.
const Root = "//"

// ErrNotFound is returned by Attributes when a path matches neither a
// directory nor a file revision, and by Attributes and FileContents for
// a path containing an unescaped p4 wildcard or revision specifier.
var ErrNotFound = errors.New("depot: no such file or directory")

// Transport is the query surface the adapter needs from a depot
// connection. *p4.Client implements it, as do the snapshot recorder
// and replayer.
type Transport interface {
	// Dirs returns the depot directories matching pattern.
	Dirs(ctx context.Context, pattern string) ([]string, error)

	// Files returns the head revision of every depot file matching
	// pattern, including deleted heads.
	Files(ctx context.Context, pattern string) ([]p4.FileRecord, error)

	// Filelog returns the revision history of path, newest first. A
	// positive limit caps the number of revisions.
	Filelog(ctx context.Context, path string, limit int) ([]p4.Revision, error)

	// Print returns the head revision content of path.
	Print(ctx context.Context, path string) (p4.Content, error)
}

// Compile-time check that the p4 client satisfies Transport.
var _ Transport = (*p4.Client)(nil)

// DepotPath converts an absolute filesystem path inside the mount to
// its depot path by prefixing one separator.
func DepotPath(fsPath string) string {
	return "/" + fsPath
}

// Entry is one name in a directory listing.
type Entry struct {
	// Name is relative to the listed directory.
	Name string

	// Dir is true for depot directories, false for files.
	Dir bool
}

// Options configures an Adapter.
type Options struct {
	// Model synthesizes attribute records. If nil, a model on the
	// real clock is used.
	Model *attr.Model

	// Strategy resolves file attributes. The zero value is
	// RevisionLog.
	Strategy Strategy

	// Logger receives one debug record per query. If nil, a no-op
	// logger is used.
	Logger *slog.Logger
}

// Adapter translates filesystem operations into depot queries. It
// holds no state besides its collaborators; concurrent calls are safe
// exactly when the transport is.
type Adapter struct {
	transport Transport
	model     *attr.Model
	strategy  Strategy
	logger    *slog.Logger
}

// New returns an Adapter querying transport.
func New(transport Transport, options Options) *Adapter {
	if options.Model == nil {
		options.Model = attr.NewModel(nil)
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Adapter{
		transport: transport,
		model:     options.Model,
		strategy:  options.Strategy,
		logger:    options.Logger,
	}
}

// Model returns the attribute model records are built from.
func (a *Adapter) Model() *attr.Model {
	return a.model
}

// ListDirectory lists the immediate children of the depot directory
// path: subdirectories first, then files whose head revision is not a
// delete, each in transport order. At the depot root only directories
// are queried, since p4 rejects "files //*". A location with no
// children yields an empty listing.
func (a *Adapter) ListDirectory(ctx context.Context, path string) ([]Entry, error) {
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	pattern := path + "*"

	directories, err := a.transport.Dirs(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("listing directories %s: %w", pattern, err)
	}

	var files []p4.FileRecord
	if path != Root {
		files, err = a.transport.Files(ctx, pattern)
		if err != nil {
			return nil, fmt.Errorf("listing files %s: %w", pattern, err)
		}
	}

	entries := make([]Entry, 0, len(directories)+len(files))
	for _, directory := range directories {
		entries = append(entries, Entry{Name: relativeName(path, directory), Dir: true})
	}
	for _, file := range files {
		if file.Action.IsDelete() {
			continue
		}
		entries = append(entries, Entry{Name: relativeName(path, file.DepotFile)})
	}

	a.logger.Debug("listed directory", "path", path, "entries", len(entries))
	return entries, nil
}

// relativeName strips the listed directory prefix from a depot path.
// Names from a one-level wildcard query always carry the prefix.
func relativeName(directory, depotPath string) string {
	return strings.TrimPrefix(depotPath, directory)
}

// Attributes returns the attribute record of the depot path. A
// directory match wins over a file of the same name. A path matching
// neither returns ErrNotFound.
func (a *Adapter) Attributes(ctx context.Context, path string) (attr.Record, error) {
	if !isLiteral(path) {
		return attr.Record{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	directories, err := a.transport.Dirs(ctx, path)
	if err != nil {
		return attr.Record{}, fmt.Errorf("resolving directory %s: %w", path, err)
	}
	if len(directories) > 0 {
		return a.model.Directory(), nil
	}

	record, found, err := a.strategy.resolve(ctx, a.transport, a.model, path)
	if err != nil {
		return attr.Record{}, fmt.Errorf("resolving file %s (%s): %w", path, a.strategy, err)
	}
	if !found {
		return attr.Record{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return record, nil
}

// isLiteral reports whether path names exactly one depot location.
// Depot names carry "@", "#", "*" and "%" escaped as %40, %23, %2A and
// %25, so a raw wildcard, revision specifier or positional "%%n" can
// only come from a name that does not exist in the depot.
func isLiteral(path string) bool {
	if strings.ContainsAny(path, "*@#") || strings.Contains(path, "...") {
		return false
	}
	for index := strings.IndexByte(path, '%'); index >= 0; index = strings.IndexByte(path, '%') {
		if index+2 >= len(path) || !isHex(path[index+1]) || !isHex(path[index+2]) {
			return false
		}
		path = path[index+3:]
	}
	return true
}

func isHex(b byte) bool {
	return ('0' <= b && b <= '9') || ('a' <= b && b <= 'f') || ('A' <= b && b <= 'F')
}

// FileContents returns the full head revision content of the depot
// path. Content of a non-text type is served as empty rather than
// failing the read; the returned slice is non-nil in that case.
func (a *Adapter) FileContents(ctx context.Context, path string) ([]byte, error) {
	if !isLiteral(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	content, err := a.transport.Print(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("printing %s: %w", path, err)
	}
	if !content.Type.IsText() {
		a.logger.Debug("serving non-text content as empty", "path", path, "type", string(content.Type))
		return []byte{}, nil
	}
	if content.Data == nil {
		return []byte{}, nil
	}
	return content.Data, nil
}
