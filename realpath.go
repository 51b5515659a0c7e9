package asar

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/asar/internal/classify"
)

// Realpath returns the canonical absolute path of name with every symlink
// expanded, whether the link lives on the real filesystem or inside an
// archive. Real links that point into archives are followed. One budget of
// WithMaxSymlinks links covers the whole walk.
func (f *FS) Realpath(name string) (string, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", pathErr("realpath", name, err)
	}
	if f.noArchive.Load() {
		return filepath.EvalSymlinks(abs)
	}

	resolved := string(filepath.Separator)
	pending := splitPath(abs)
	links := 0
	for len(pending) > 0 {
		comp := pending[0]
		pending = pending[1:]
		switch comp {
		case ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, comp)
		info, err := os.Lstat(next)
		if err != nil {
			return "", err
		}

		if info.Mode()&fs.ModeSymlink != 0 {
			links++
			if links > f.maxSymlinks {
				return "", pathErr("realpath", name, ErrTooManySymlinks)
			}
			dest, err := os.Readlink(next)
			if err != nil {
				return "", err
			}
			if filepath.IsAbs(dest) {
				resolved = string(filepath.Separator)
			}
			pending = append(splitPath(dest), pending...)
			continue
		}

		if info.Mode().IsRegular() && f.classifier.Classify(next).Kind == classify.ArchiveRoot {
			return f.realpathInArchive(name, next, pending, links)
		}
		resolved = next
	}
	return resolved, nil
}

// realpathInArchive finishes a Realpath walk whose prefix reached the
// archive at arcPath; rest is the remaining inner components.
func (f *FS) realpathInArchive(name, arcPath string, rest []string, links int) (string, error) {
	arc, err := f.cache.Get(arcPath)
	if err != nil {
		return "", pathErr("realpath", name, err)
	}
	res, err := arc.Index().Resolve(strings.Join(rest, "/"), true)
	if err != nil {
		return "", pathErr("realpath", name, err)
	}
	if links+res.Links > f.maxSymlinks {
		return "", pathErr("realpath", name, ErrTooManySymlinks)
	}
	return joinInner(arcPath, res.Path), nil
}

// RealpathNative resolves the part of name outside any archive with the
// operating system's own symlink rules, keeping the archive file name as a
// literal component, then appends the canonical path inside the archive.
func (f *FS) RealpathNative(name string) (string, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", pathErr("realpath", name, err)
	}
	if f.noArchive.Load() {
		return filepath.EvalSymlinks(abs)
	}
	c := f.classifier.Classify(abs)
	if !c.IsArchive() {
		return filepath.EvalSymlinks(abs)
	}

	dir, err := filepath.EvalSymlinks(filepath.Dir(c.Archive))
	if err != nil {
		return "", err
	}
	arcPath := filepath.Join(dir, filepath.Base(c.Archive))
	arc, err := f.cache.Get(c.Archive)
	if err != nil {
		return "", pathErr("realpath", name, err)
	}
	res, err := arc.Index().Resolve(c.Inner, true)
	if err != nil {
		return "", pathErr("realpath", name, err)
	}
	return joinInner(arcPath, res.Path), nil
}

func joinInner(arcPath, inner string) string {
	if inner == "" {
		return arcPath
	}
	return filepath.Join(arcPath, filepath.FromSlash(inner))
}

func splitPath(p string) []string {
	parts := strings.Split(p, string(filepath.Separator))
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
