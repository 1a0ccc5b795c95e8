// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depotfs

import (
	"context"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// depotNode is one depot directory or file, addressed by its absolute
// path inside the mount. The root node has path "/".
type depotNode struct {
	gofuse.Inode
	filesystem *filesystem
	path       string
}

var _ gofuse.InodeEmbedder = (*depotNode)(nil)
var _ gofuse.NodeLookuper = (*depotNode)(nil)
var _ gofuse.NodeGetattrer = (*depotNode)(nil)
var _ gofuse.NodeReaddirer = (*depotNode)(nil)
var _ gofuse.NodeOpener = (*depotNode)(nil)
var _ gofuse.NodeReader = (*depotNode)(nil)
var _ gofuse.NodeStatfser = (*depotNode)(nil)

func (n *depotNode) childPath(name string) string {
	if n.path == "/" {
		return "/" + name
	}
	return n.path + "/" + name
}

func (n *depotNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	path := n.childPath(name)
	record, errno := n.filesystem.attributes(ctx, path)
	if errno != 0 {
		return nil, errno
	}

	n.filesystem.fillAttr(record, &out.Attr)
	child := n.NewInode(ctx, &depotNode{
		filesystem: n.filesystem,
		path:       path,
	}, gofuse.StableAttr{Mode: record.Type()})
	return child, 0
}

func (n *depotNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if n.path == "/" {
		n.filesystem.fillAttr(n.filesystem.root, &out.Attr)
		return 0
	}
	record, errno := n.filesystem.attributes(ctx, n.path)
	if errno != 0 {
		return errno
	}
	n.filesystem.fillAttr(record, &out.Attr)
	return 0
}

func (n *depotNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	listing, errno := n.filesystem.list(ctx, n.path)
	if errno != 0 {
		return nil, errno
	}

	entries := make([]fuse.DirEntry, 0, len(listing))
	for _, entry := range listing {
		mode := uint32(syscall.S_IFREG)
		if entry.Dir {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: entry.Name, Mode: mode})
	}
	return &sliceDirStream{entries: entries}, 0
}

func (n *depotNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND) != 0 {
		return nil, 0, syscall.EROFS
	}

	data, errno := n.filesystem.contents(ctx, n.path)
	if errno != 0 {
		return nil, 0, errno
	}

	handle := &fileHandle{
		number: n.filesystem.handles.Add(1),
		data:   data,
	}
	return handle, fuse.FOPEN_DIRECT_IO, 0
}

func (n *depotNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	handle, ok := f.(*fileHandle)
	if !ok {
		return nil, syscall.EBADF
	}
	return fuse.ReadResultData(handle.slice(off, len(dest))), 0
}

func (n *depotNode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	out.Bsize = statfsBlockSize
	out.Frsize = statfsBlockSize
	out.Blocks = statfsBlocks
	out.Bfree = statfsAvailable
	out.Bavail = statfsAvailable
	out.NameLen = 255
	return 0
}

// fileHandle holds the full content of one open file.
type fileHandle struct {
	number uint64
	data   []byte
}

// slice returns up to size bytes starting at offset. Reads at or past
// the end return nothing.
func (h *fileHandle) slice(offset int64, size int) []byte {
	if offset < 0 || offset >= int64(len(h.data)) {
		return nil
	}
	end := offset + int64(size)
	if end > int64(len(h.data)) {
		end = int64(len(h.data))
	}
	return h.data[offset:end]
}

// sliceDirStream implements fs.DirStream from a slice of entries.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
