// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package p4

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Dirs runs "p4 dirs pattern" and returns the matching depot
// directory paths. A trailing "*" matches one level; p4 never
// recurses for "*".
func (c *Client) Dirs(ctx context.Context, pattern string) ([]string, error) {
	objects, err := c.runTagged(ctx, "dirs", pattern)
	if err != nil {
		return nil, err
	}

	directories := make([]string, 0, len(objects))
	for _, object := range objects {
		if directory := object["dir"]; directory != "" {
			directories = append(directories, directory)
		}
	}
	return directories, nil
}

// Files runs "p4 files pattern" and returns the head revision of
// every matching file, deleted heads included. Callers filter with
// Action.IsDelete.
func (c *Client) Files(ctx context.Context, pattern string) ([]FileRecord, error) {
	objects, err := c.runTagged(ctx, "files", pattern)
	if err != nil {
		return nil, err
	}

	records := make([]FileRecord, 0, len(objects))
	for _, object := range objects {
		record, err := parseFileRecord(object)
		if err != nil {
			return nil, fmt.Errorf("p4 files %s: %w", pattern, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Filelog runs "p4 filelog" for path and returns the revisions of the
// first matching depot file, newest first. A positive limit caps the
// number of revisions (filelog -m); zero returns the full history.
func (c *Client) Filelog(ctx context.Context, path string, limit int) ([]Revision, error) {
	args := []string{"filelog"}
	if limit > 0 {
		args = append(args, "-m", strconv.Itoa(limit))
	}
	args = append(args, path)

	objects, err := c.runTagged(ctx, args...)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, nil
	}

	revisions, err := parseFilelog(objects[0])
	if err != nil {
		return nil, fmt.Errorf("p4 filelog %s: %w", path, err)
	}
	if limit > 0 && len(revisions) > limit {
		revisions = revisions[:limit]
	}
	return revisions, nil
}

// Print materializes the head revision of path. The content type
// comes from "p4 fstat -T headType"; the bytes from "p4 print -q".
// A path with no head revision yields an empty Content.
func (c *Client) Print(ctx context.Context, path string) (Content, error) {
	objects, err := c.runTagged(ctx, "fstat", "-T", "headType", path)
	if err != nil {
		return Content{}, err
	}
	if len(objects) == 0 || objects[0]["headType"] == "" {
		return Content{}, nil
	}

	data, err := c.runRaw(ctx, nil, "print", "-q", path)
	if err != nil {
		return Content{}, err
	}
	return Content{
		Type: FileType(objects[0]["headType"]),
		Data: data,
	}, nil
}

// Login runs "p4 login" with the password on stdin, storing a ticket
// for the configured user.
func (c *Client) Login(ctx context.Context, password string) error {
	_, err := c.runRaw(ctx, strings.NewReader(password+"\n"), "login")
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	return nil
}
