// Package fuse exposes one archive as a read-only FUSE filesystem.
//
// The mount mirrors the archive tree: directories list in header order,
// symlinks report their stored target, and files stream from the data
// region or from the unpacked sibling directory. Every write operation
// fails with EROFS.
package fuse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/meigma/asar"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the archive is mounted. It is
	// created if it does not exist.
	Mountpoint string

	// Archive is the archive to serve. The caller keeps ownership and
	// closes it after Unmount.
	Archive *asar.Archive

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, logging is disabled.
	Logger *slog.Logger
}

// Mount mounts the archive at the configured mountpoint. The caller must
// call Unmount on the returned server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Archive == nil {
		return nil, fmt.Errorf("archive is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	rootInfo, err := options.Archive.Stat("")
	if err != nil {
		return nil, err
	}
	root := &dirNode{options: &options, info: rootInfo}

	// Archive content never changes under a mount.
	timeout := time.Hour
	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &timeout,
		AttrTimeout:     &timeout,
		NegativeTimeout: &timeout,
		MountOptions: fuse.MountOptions{
			FsName:     options.Archive.Path(),
			Name:       "asar",
			AllowOther: options.AllowOther,
			Options:    []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("archive mounted",
		"archive", options.Archive.Path(),
		"mountpoint", options.Mountpoint)
	return server, nil
}

// errno maps archive errors onto the errno the kernel should see.
func errno(err error) syscall.Errno {
	if e := asar.Errno(err); e != 0 {
		return e
	}
	var se syscall.Errno
	if errors.As(err, &se) {
		return se
	}
	return syscall.EIO
}

// fillAttr copies entry info into a FUSE attribute block.
func fillAttr(info fs.FileInfo, out *fuse.Attr) {
	out.Mode = syscall.S_IFREG
	switch {
	case info.IsDir():
		out.Mode = syscall.S_IFDIR
	case info.Mode()&fs.ModeSymlink != 0:
		out.Mode = syscall.S_IFLNK
	}
	out.Mode |= uint32(info.Mode().Perm())
	if info.Mode().IsRegular() {
		out.Size = uint64(info.Size()) //nolint:gosec // entry sizes are non-negative
		out.Blocks = (out.Size + 511) / 512
	}
	mtime := info.ModTime()
	out.SetTimes(nil, &mtime, &mtime)
}

func stableMode(info fs.FileInfo) uint32 {
	switch {
	case info.IsDir():
		return syscall.S_IFDIR
	case info.Mode()&fs.ModeSymlink != 0:
		return syscall.S_IFLNK
	default:
		return syscall.S_IFREG
	}
}

// dirNode is a directory inside the archive, including its root.
type dirNode struct {
	gofuse.Inode
	options *Options
	inner   string
	info    fs.FileInfo
}

var _ gofuse.InodeEmbedder = (*dirNode)(nil)
var _ gofuse.NodeLookuper = (*dirNode)(nil)
var _ gofuse.NodeReaddirer = (*dirNode)(nil)
var _ gofuse.NodeGetattrer = (*dirNode)(nil)

func (d *dirNode) Getattr(_ context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fillAttr(d.info, &out.Attr)
	return 0
}

func (d *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	inner := path.Join(d.inner, name)
	info, err := d.options.Archive.Lstat(inner)
	if err != nil {
		return nil, errno(err)
	}
	fillAttr(info, &out.Attr)

	var node gofuse.InodeEmbedder
	switch stableMode(info) {
	case syscall.S_IFDIR:
		node = &dirNode{options: d.options, inner: inner, info: info}
	case syscall.S_IFLNK:
		node = &linkNode{options: d.options, inner: inner, info: info}
	default:
		node = &fileNode{options: d.options, inner: inner, info: info}
	}
	return d.NewInode(ctx, node, gofuse.StableAttr{Mode: stableMode(info)}), 0
}

func (d *dirNode) Readdir(_ context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := d.options.Archive.ReadDir(d.inner)
	if err != nil {
		return nil, errno(err)
	}
	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, errno(err)
		}
		out = append(out, fuse.DirEntry{Name: e.Name(), Mode: stableMode(info)})
	}
	return gofuse.NewListDirStream(out), 0
}

// linkNode is a symlink entry. Its target is relative to its parent, so
// the kernel resolves it within the mount.
type linkNode struct {
	gofuse.Inode
	options *Options
	inner   string
	info    fs.FileInfo
}

var _ gofuse.NodeReadlinker = (*linkNode)(nil)
var _ gofuse.NodeGetattrer = (*linkNode)(nil)

func (l *linkNode) Getattr(_ context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fillAttr(l.info, &out.Attr)
	return 0
}

func (l *linkNode) Readlink(_ context.Context) ([]byte, syscall.Errno) {
	ei, ok := l.info.Sys().(*asar.EntryInfo)
	if !ok {
		return nil, syscall.EINVAL
	}
	return []byte(ei.Link), 0
}

// fileNode is a file entry.
type fileNode struct {
	gofuse.Inode
	options *Options
	inner   string
	info    fs.FileInfo
}

var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)

func (f *fileNode) Getattr(_ context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fillAttr(f.info, &out.Attr)
	return 0
}

func (f *fileNode) Open(_ context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_APPEND|syscall.O_TRUNC) != 0 {
		return nil, 0, syscall.EROFS
	}
	r, err := f.options.Archive.Open(f.inner)
	if err != nil {
		f.options.Logger.Error("open failed", "path", f.inner, "error", err)
		return nil, 0, errno(err)
	}
	return &fileHandle{r: r}, fuse.FOPEN_KEEP_CACHE, 0
}

// fileHandle serves reads for one open of a file entry.
type fileHandle struct {
	r asar.EntryReader
}

var _ gofuse.FileReader = (*fileHandle)(nil)
var _ gofuse.FileReleaser = (*fileHandle)(nil)

func (h *fileHandle) Read(_ context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.r.ReadAt(dest, off)
	if err != nil && n == 0 && !errors.Is(err, io.EOF) {
		return nil, errno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fileHandle) Release(_ context.Context) syscall.Errno {
	if err := h.r.Close(); err != nil {
		return errno(err)
	}
	return 0
}
