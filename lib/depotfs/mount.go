// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depotfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/p4fs/lib/attr"
	"github.com/bureau-foundation/p4fs/lib/depot"
)

// Default kernel cache timeouts.
const (
	DefaultEntryTimeout    = 1 * time.Second
	DefaultAttrTimeout     = 1 * time.Second
	DefaultNegativeTimeout = 100 * time.Millisecond
)

// Fixed statfs geometry: 512-byte blocks, 4096 total, 2048 free.
const (
	statfsBlockSize = 512
	statfsBlocks    = 4096
	statfsAvailable = 2048
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is an existing directory where the filesystem is
	// mounted.
	Mountpoint string

	// Adapter answers every filesystem query. Its attribute model
	// also provides the root directory record.
	Adapter *depot.Adapter

	// AllowOther permits other users (including root) to access
	// the mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// EntryTimeout, AttrTimeout and NegativeTimeout control how long
	// the kernel caches lookups, attributes and missing names. Zero
	// uses the Default* values.
	EntryTimeout    time.Duration
	AttrTimeout     time.Duration
	NegativeTimeout time.Duration

	// Debug logs every FUSE request and reply to stderr.
	Debug bool

	// Logger receives diagnostic messages. If nil, errors are logged
	// to stderr.
	Logger *slog.Logger
}

// Mount mounts the depot filesystem at the configured mountpoint.
// The caller must call Unmount on the returned Server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Adapter == nil {
		return nil, fmt.Errorf("depot adapter is required")
	}
	info, err := os.Stat(options.Mountpoint)
	if err != nil {
		return nil, fmt.Errorf("checking mountpoint: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mountpoint %s is not a directory", options.Mountpoint)
	}

	if options.EntryTimeout == 0 {
		options.EntryTimeout = DefaultEntryTimeout
	}
	if options.AttrTimeout == 0 {
		options.AttrTimeout = DefaultAttrTimeout
	}
	if options.NegativeTimeout == 0 {
		options.NegativeTimeout = DefaultNegativeTimeout
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	filesystem := newFilesystem(options.Adapter, options.Logger)
	root := &depotNode{filesystem: filesystem, path: "/"}

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &options.EntryTimeout,
		AttrTimeout:     &options.AttrTimeout,
		NegativeTimeout: &options.NegativeTimeout,
		UID:             filesystem.uid,
		GID:             filesystem.gid,
		MountOptions: fuse.MountOptions{
			FsName:     "p4fs",
			Name:       "p4fs",
			AllowOther: options.AllowOther,
			Debug:      options.Debug,
			Options:    []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("depot filesystem mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// filesystem is the state shared by every node of one mount.
type filesystem struct {
	adapter *depot.Adapter
	logger  *slog.Logger

	// root is built once at mount and served for every getattr on
	// the mount root.
	root attr.Record

	uid uint32
	gid uint32

	// mu serializes adapter calls.
	mu sync.Mutex

	// handles numbers open files.
	handles atomic.Uint64
}

func newFilesystem(adapter *depot.Adapter, logger *slog.Logger) *filesystem {
	return &filesystem{
		adapter: adapter,
		logger:  logger,
		root:    adapter.Model().Directory(),
		uid:     uint32(os.Getuid()),
		gid:     uint32(os.Getgid()),
	}
}

func (f *filesystem) attributes(ctx context.Context, path string) (attr.Record, syscall.Errno) {
	f.mu.Lock()
	record, err := f.adapter.Attributes(ctx, depot.DepotPath(path))
	f.mu.Unlock()
	if err != nil {
		return attr.Record{}, f.errno("getattr", path, err)
	}
	return record, 0
}

func (f *filesystem) list(ctx context.Context, path string) ([]depot.Entry, syscall.Errno) {
	f.mu.Lock()
	entries, err := f.adapter.ListDirectory(ctx, depot.DepotPath(path))
	f.mu.Unlock()
	if err != nil {
		return nil, f.errno("readdir", path, err)
	}
	return entries, 0
}

func (f *filesystem) contents(ctx context.Context, path string) ([]byte, syscall.Errno) {
	f.mu.Lock()
	data, err := f.adapter.FileContents(ctx, depot.DepotPath(path))
	f.mu.Unlock()
	if err != nil {
		return nil, f.errno("open", path, err)
	}
	return data, 0
}

// errno maps an adapter error to the errno returned to the kernel.
// Absent paths are ENOENT and interrupted requests EINTR; every other
// failure is logged and reported as EIO.
func (f *filesystem) errno(operation, path string, err error) syscall.Errno {
	switch {
	case errors.Is(err, depot.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, context.Canceled):
		return syscall.EINTR
	default:
		f.logger.Error("depot query failed",
			"operation", operation,
			"path", path,
			"error", err,
		)
		return syscall.EIO
	}
}

// fillAttr copies a record into a kernel attribute reply.
func (f *filesystem) fillAttr(record attr.Record, out *fuse.Attr) {
	out.Mode = record.Mode
	out.Nlink = record.Nlink
	out.Size = uint64(record.Size)
	out.Blocks = (out.Size + statfsBlockSize - 1) / statfsBlockSize
	out.Blksize = statfsBlockSize
	out.Atime = uint64(record.Atime)
	out.Mtime = uint64(record.Mtime)
	out.Ctime = uint64(record.Ctime)
	out.Owner = fuse.Owner{Uid: f.uid, Gid: f.gid}
}
