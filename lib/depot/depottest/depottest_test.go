// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depottest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDepot_DirsIncludesAncestors(t *testing.T) {
	t.Parallel()

	depot := New()
	depot.AddText("//depot/main/src/a.c", "int a;\n", time.Unix(100, 0))
	depot.AddDir("//depot/empty")

	ctx := context.Background()
	tests := []struct {
		pattern string
		want    []string
	}{
		{"//*", []string{"//depot"}},
		{"//depot/*", []string{"//depot/main", "//depot/empty"}},
		{"//depot/main/*", []string{"//depot/main/src"}},
		{"//depot/main", []string{"//depot/main"}},
		{"//depot/main/src/*", nil},
	}
	for _, test := range tests {
		got, err := depot.Dirs(ctx, test.pattern)
		if err != nil {
			t.Fatalf("Dirs(%s): %v", test.pattern, err)
		}
		if strings.Join(got, ",") != strings.Join(test.want, ",") {
			t.Errorf("Dirs(%s) = %v, want %v", test.pattern, got, test.want)
		}
	}
}

func TestDepot_FilesOneLevel(t *testing.T) {
	t.Parallel()

	depot := New()
	depot.AddText("//depot/a.txt", "a", time.Unix(100, 0))
	depot.AddText("//depot/sub/b.txt", "b", time.Unix(200, 0))

	records, err := depot.Files(context.Background(), "//depot/*")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(records) != 1 || records[0].DepotFile != "//depot/a.txt" {
		t.Fatalf("Files(//depot/*) = %+v, want only //depot/a.txt", records)
	}
	if records[0].Time != 100 || records[0].Revision != 1 {
		t.Errorf("record = %+v", records[0])
	}
}

func TestDepot_DeleteAddsHeadRevision(t *testing.T) {
	t.Parallel()

	depot := New()
	depot.AddText("//depot/old.txt", "gone soon", time.Unix(100, 0))
	depot.Delete("//depot/old.txt", time.Unix(300, 0))

	ctx := context.Background()
	revisions, err := depot.Filelog(ctx, "//depot/old.txt", 0)
	if err != nil {
		t.Fatalf("Filelog: %v", err)
	}
	if len(revisions) != 2 {
		t.Fatalf("Filelog returned %d revisions, want 2", len(revisions))
	}
	if !revisions[0].Action.IsDelete() || revisions[0].Revision != 2 {
		t.Errorf("head = %+v, want delete at revision 2", revisions[0])
	}

	limited, err := depot.Filelog(ctx, "//depot/old.txt", 1)
	if err != nil {
		t.Fatalf("Filelog limit 1: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Filelog limit 1 returned %d revisions", len(limited))
	}

	content, err := depot.Print(ctx, "//depot/old.txt")
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if content.Type != "" || len(content.Data) != 0 {
		t.Errorf("Print of deleted head = %+v, want empty", content)
	}
}

func TestDepot_FailAndCalls(t *testing.T) {
	t.Parallel()

	depot := New()
	boom := errors.New("connection reset")
	depot.Fail("files", "//depot/*", boom)

	ctx := context.Background()
	if _, err := depot.Dirs(ctx, "//depot/*"); err != nil {
		t.Fatalf("Dirs: %v", err)
	}
	if _, err := depot.Files(ctx, "//depot/*"); !errors.Is(err, boom) {
		t.Errorf("Files error = %v, want %v", err, boom)
	}

	calls := depot.Calls()
	want := []string{"dirs //depot/*", "files //depot/*"}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("Calls() = %q, want %q", calls, want)
	}
}

func TestDepot_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Dirs(ctx, "//*"); !errors.Is(err, context.Canceled) {
		t.Errorf("Dirs error = %v, want context.Canceled", err)
	}
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern, path string
		want          bool
	}{
		{"//*", "//depot", true},
		{"//*", "//depot/main", false},
		{"/*", "/a.txt", true},
		{"/*", "/", false},
		{"//depot/x", "//depot/x", true},
		{"//depot/x", "//depot/xy", false},
	}
	for _, test := range tests {
		if got := matchPattern(test.pattern, test.path); got != test.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", test.pattern, test.path, got, test.want)
		}
	}
}
