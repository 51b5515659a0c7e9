package asar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/meigma/asar/internal/archive"
	"github.com/meigma/asar/internal/header"
	"github.com/meigma/asar/internal/index"
	"github.com/meigma/asar/internal/integrity"
	"github.com/meigma/asar/internal/sizing"
	"github.com/meigma/asar/internal/write"
)

// ErrLinkEscapes is returned by Create when a symlink points outside the
// source directory.
var ErrLinkEscapes = errors.New("asar: symlink target outside source directory")

// Create packs the directory srcDir into a new archive at archivePath.
//
// Entries are stored in lexical walk order, which is also the order in
// which ReadDir lists them. Symlinks are stored with targets relative to
// their parent directory; links that leave srcDir fail with
// ErrLinkEscapes. Every file gets an integrity record. Files selected by
// CreateWithUnpack or CreateWithUnpackDir are copied to
// archivePath + ".unpacked" instead of the data region.
//
// The archive is written to a temp file and renamed into place, so a
// failed Create never leaves a partial archive at archivePath.
func Create(ctx context.Context, srcDir, archivePath string, opts ...CreateOption) error {
	cfg := createConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	for _, g := range append(cfg.unpack, cfg.unpackDir...) {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("invalid unpack glob %q: %w", g, doublestar.ErrBadPattern)
		}
	}

	root, err := os.OpenRoot(srcDir)
	if err != nil {
		return err
	}
	defer root.Close()

	p := &packer{cfg: cfg, root: root, tree: index.NewDir()}
	p.log().Info("creating archive", "dir", srcDir, "archive", archivePath)

	p.report(StageEnumerating, "", 0, 0)
	if err := p.walk(ctx); err != nil {
		return err
	}

	prefix, err := header.Encode(p.tree)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o750); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	if err := p.writeAtomic(ctx, archivePath, prefix); err != nil {
		return err
	}
	if err := p.copyUnpacked(ctx, archivePath+archive.UnpackedSuffix); err != nil {
		return err
	}

	p.log().Debug("archive written",
		"packed_files", len(p.packed),
		"unpacked_files", len(p.unpacked),
		"header_bytes", len(prefix),
		"data_bytes", p.dataSize)
	return nil
}

// packer holds state for archive creation.
type packer struct {
	cfg  createConfig
	root *os.Root
	tree *index.Node

	packed   []pendingFile
	unpacked []pendingFile
	dataSize uint64
	buf      []byte
}

type pendingFile struct {
	rel  string
	node *index.Node
	mode fs.FileMode
}

// log returns the logger, falling back to a discard logger if nil.
func (p *packer) log() *slog.Logger {
	if p.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.cfg.logger
}

func (p *packer) report(stage ProgressStage, rel string, done, total int) {
	if p.cfg.progress == nil {
		return
	}
	p.cfg.progress(ProgressEvent{
		Stage:      stage,
		Path:       rel,
		BytesDone:  p.dataSize,
		FilesDone:  done,
		FilesTotal: total,
	})
}

// walk enumerates the source tree, hashing each file and assigning
// offsets to packed files.
func (p *packer) walk(ctx context.Context) error {
	dirs := map[string]*index.Node{".": p.tree}
	unpackedDirs := map[string]bool{}

	return fs.WalkDir(p.root.FS(), ".", func(rel string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		parentRel := path.Dir(rel)
		parent := dirs[parentRel]
		name := path.Base(rel)
		inUnpackedDir := unpackedDirs[parentRel]

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			link, err := p.link(rel)
			if err != nil {
				return err
			}
			parent.Add(name, link)

		case d.IsDir():
			dir := index.NewDir()
			if inUnpackedDir || matchAny(p.cfg.unpackDir, rel) {
				dir.Unpacked = true
				unpackedDirs[rel] = true
			}
			dirs[rel] = dir
			parent.Add(name, dir)

		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			unpack := inUnpackedDir || matchAny(p.cfg.unpack, rel)
			node, err := p.file(rel, info, unpack)
			if err != nil {
				return err
			}
			parent.Add(name, node)

		default:
			p.log().Debug("skipped special file", "path", rel, "mode", d.Type().String())
		}
		return nil
	})
}

func (p *packer) file(rel string, info fs.FileInfo, unpack bool) (*index.Node, error) {
	f, err := p.root.Open(filepath.FromSlash(rel))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rec, size, err := integrity.Compute(f, p.cfg.blockSize)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", rel, err)
	}
	files := len(p.packed) + len(p.unpacked)
	p.report(StageHashing, rel, files, 0)

	node := &index.Node{
		Kind:       index.KindFile,
		Size:       uint64(size), //nolint:gosec // size comes from reading the file
		Executable: info.Mode()&0o111 != 0,
		Unpacked:   unpack,
		Integrity:  rec,
	}
	pf := pendingFile{rel: rel, node: node, mode: info.Mode().Perm()}
	if unpack {
		p.unpacked = append(p.unpacked, pf)
		return node, nil
	}

	end, ok := sizing.AddUint64(p.dataSize, node.Size)
	if !ok {
		return nil, ErrSizeOverflow
	}
	node.Offset = p.dataSize
	p.dataSize = end
	p.packed = append(p.packed, pf)
	return node, nil
}

// link reads a symlink and rewrites its target relative to its parent.
func (p *packer) link(rel string) (*index.Node, error) {
	target, err := p.root.Readlink(filepath.FromSlash(rel))
	if err != nil {
		return nil, err
	}
	target = filepath.ToSlash(target)
	parent := path.Dir(rel)

	var resolved string
	if path.IsAbs(target) {
		base := filepath.ToSlash(p.root.Name())
		abs, err := filepath.Abs(p.root.Name())
		if err == nil {
			base = filepath.ToSlash(abs)
		}
		r, err := filepath.Rel(filepath.FromSlash(base), filepath.FromSlash(target))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rel, ErrLinkEscapes)
		}
		resolved = path.Clean(filepath.ToSlash(r))
	} else {
		resolved = path.Join(parent, target)
	}
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return nil, fmt.Errorf("%s -> %s: %w", rel, target, ErrLinkEscapes)
	}

	relTarget, err := filepath.Rel(filepath.FromSlash(parent), filepath.FromSlash(resolved))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	return index.NewLink(filepath.ToSlash(relTarget)), nil
}

// writeAtomic writes the header and packed file content to a temp file
// beside dest and renames it into place.
func (p *packer) writeAtomic(ctx context.Context, dest string, prefix []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".asar-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if _, err := tmp.Write(prefix); err != nil {
		return fail(err)
	}
	for i, pf := range p.packed {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := p.copyInto(ctx, tmp, pf); err != nil {
			return fail(err)
		}
		p.report(StageWriting, pf.rel, i+1, len(p.packed))
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// copyInto appends exactly the bytes hashed during the walk.
func (p *packer) copyInto(ctx context.Context, w io.Writer, pf pendingFile) error {
	f, err := p.root.Open(filepath.FromSlash(pf.rel))
	if err != nil {
		return err
	}
	defer f.Close()

	if p.buf == nil {
		p.buf = make([]byte, write.BufferSize)
	}
	if err := write.Verified(ctx, f, w, p.buf, pf.node.Size, pf.node.Integrity.Hash); err != nil {
		return fmt.Errorf("%s: %w", pf.rel, err)
	}
	return nil
}

// copyUnpacked copies unpacked files into the sibling directory.
func (p *packer) copyUnpacked(ctx context.Context, destDir string) error {
	if len(p.unpacked) == 0 {
		return nil
	}
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("create unpacked directory: %w", err)
	}
	dest, err := os.OpenRoot(destDir)
	if err != nil {
		return err
	}
	defer dest.Close()

	for i, pf := range p.unpacked {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := filepath.FromSlash(pf.rel)
		if err := dest.MkdirAll(filepath.Dir(rel), 0o750); err != nil {
			return err
		}
		out, err := dest.OpenFile(rel, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, pf.mode)
		if err != nil {
			return err
		}
		if err := p.copyInto(ctx, out, pf); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		p.report(StageUnpacking, pf.rel, i+1, len(p.unpacked))
	}
	return nil
}

// matchAny reports whether rel matches any glob. Globs without a slash
// match the base name; "**" matches any number of directories.
func matchAny(globs []string, rel string) bool {
	for _, g := range globs {
		subject := rel
		if !strings.Contains(g, "/") {
			subject = path.Base(rel)
		}
		if ok, err := doublestar.Match(g, subject); err == nil && ok {
			return true
		}
	}
	return false
}
