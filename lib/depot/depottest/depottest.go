// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package depottest provides an in-memory depot implementing
// depot.Transport, for tests of the adapter and of anything layered on
// top of it.
//
// Wildcard semantics follow p4 for the patterns the adapter issues: a
// trailing "*" matches exactly one more path component, and any other
// pattern matches only itself. Directories are the explicitly added
// ones plus every ancestor of an added file, in the order they were
// first seen.
package depottest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/p4fs/lib/p4"
)

// Depot is an in-memory depot. The zero value is not usable; call New.
// All methods are safe for concurrent use.
type Depot struct {
	mu          sync.Mutex
	directories []string
	knownDirs   map[string]bool
	files       []string
	entries     map[string]*file
	change      int
	failures    map[string]error
	calls       []string
}

type file struct {
	revisions []p4.Revision
	content   p4.Content
}

// New returns an empty depot.
func New() *Depot {
	return &Depot{
		knownDirs: make(map[string]bool),
		entries:   make(map[string]*file),
		failures:  make(map[string]error),
	}
}

// AddDir registers a directory that holds no files.
func (d *Depot) AddDir(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addDirLocked(path)
}

// AddFile registers a file with its head content and revision
// history, newest first. Revision and change numbers left zero are
// assigned; DepotFile is always set to path. Adding a path again
// replaces it.
func (d *Depot) AddFile(path string, content p4.Content, revisions ...p4.Revision) {
	d.mu.Lock()
	defer d.mu.Unlock()

	history := make([]p4.Revision, len(revisions))
	for index, revision := range revisions {
		revision.DepotFile = path
		if revision.Revision == 0 {
			revision.Revision = len(revisions) - index
		}
		if revision.Change == 0 {
			d.change++
			revision.Change = d.change
		}
		history[index] = revision
	}

	if _, exists := d.entries[path]; !exists {
		d.files = append(d.files, path)
	}
	d.entries[path] = &file{revisions: history, content: content}
	for parent := parentOf(path); parent != ""; parent = parentOf(parent) {
		d.addDirLocked(parent)
	}
}

// AddText registers a text file with a single "add" revision at the
// given time, sized to the content.
func (d *Depot) AddText(path, text string, submitted time.Time) {
	d.AddFile(path, p4.Content{Type: "text", Data: []byte(text)}, p4.Revision{
		Action: "add",
		Type:   "text",
		Time:   submitted,
		Size:   int64(len(text)),
	})
}

// Delete records a delete revision on top of an existing file. The
// file's head content becomes empty.
func (d *Depot) Delete(path string, submitted time.Time) {
	d.mu.Lock()
	entry, ok := d.entries[path]
	if !ok {
		d.mu.Unlock()
		panic(fmt.Sprintf("depottest: Delete of unknown file %s", path))
	}
	head := entry.revisions[0]
	revisions := append([]p4.Revision{{
		Revision: head.Revision + 1,
		Action:   "delete",
		Type:     head.Type,
		Time:     submitted,
	}}, entry.revisions...)
	d.mu.Unlock()

	d.AddFile(path, p4.Content{}, revisions...)
}

// Fail makes every later query of the given kind ("dirs", "files",
// "filelog" or "print") for the given pattern return err.
func (d *Depot) Fail(query, pattern string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[query+" "+pattern] = err
}

// Calls returns every query issued so far, formatted as
// "<query> <pattern>".
func (d *Depot) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Dirs implements depot.Transport.
func (d *Depot) Dirs(ctx context.Context, pattern string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx, "dirs", pattern); err != nil {
		return nil, err
	}

	var matches []string
	for _, directory := range d.directories {
		if matchPattern(pattern, directory) {
			matches = append(matches, directory)
		}
	}
	return matches, nil
}

// Files implements depot.Transport.
func (d *Depot) Files(ctx context.Context, pattern string) ([]p4.FileRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx, "files", pattern); err != nil {
		return nil, err
	}

	var records []p4.FileRecord
	for _, path := range d.files {
		if !matchPattern(pattern, path) {
			continue
		}
		head := d.entries[path].revisions[0]
		records = append(records, p4.FileRecord{
			DepotFile: path,
			Revision:  head.Revision,
			Change:    head.Change,
			Action:    head.Action,
			Type:      head.Type,
			Time:      head.Time.Unix(),
		})
	}
	return records, nil
}

// Filelog implements depot.Transport.
func (d *Depot) Filelog(ctx context.Context, path string, limit int) ([]p4.Revision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx, "filelog", path); err != nil {
		return nil, err
	}

	entry, ok := d.entries[path]
	if !ok {
		return nil, nil
	}
	revisions := entry.revisions
	if limit > 0 && len(revisions) > limit {
		revisions = revisions[:limit]
	}
	return append([]p4.Revision(nil), revisions...), nil
}

// Print implements depot.Transport.
func (d *Depot) Print(ctx context.Context, path string) (p4.Content, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx, "print", path); err != nil {
		return p4.Content{}, err
	}

	entry, ok := d.entries[path]
	if !ok || entry.revisions[0].Action.IsDelete() {
		return p4.Content{}, nil
	}
	content := entry.content
	if content.Data != nil {
		content.Data = append([]byte(nil), content.Data...)
	}
	return content, nil
}

// begin records a call and returns the injected failure or context
// error for it, if any. Callers hold d.mu.
func (d *Depot) begin(ctx context.Context, query, pattern string) error {
	key := query + " " + pattern
	d.calls = append(d.calls, key)
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.failures[key]
}

func (d *Depot) addDirLocked(path string) {
	if d.knownDirs[path] {
		return
	}
	d.knownDirs[path] = true
	d.directories = append(d.directories, path)
}

// parentOf returns the directory containing path, or "" when path is
// directly under the depot root.
func parentOf(path string) string {
	index := strings.LastIndex(path, "/")
	if index <= 0 {
		return ""
	}
	parent := path[:index]
	if strings.Trim(parent, "/") == "" {
		return ""
	}
	return parent
}

// matchPattern reports whether path matches pattern. A trailing "*"
// matches one non-empty path component.
func matchPattern(pattern, path string) bool {
	prefix, wildcard := strings.CutSuffix(pattern, "*")
	if !wildcard {
		return pattern == path
	}
	rest, ok := strings.CutPrefix(path, prefix)
	return ok && rest != "" && !strings.Contains(rest, "/")
}
