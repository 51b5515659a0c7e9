// Package classify decides whether an absolute path points into an archive.
package classify

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultSuffix is the file name suffix that marks an archive.
const DefaultSuffix = ".asar"

// Kind is the classification of a path.
type Kind uint8

const (
	// NotArchive paths are handled by the real filesystem.
	NotArchive Kind = iota

	// ArchiveRoot paths name an archive file itself.
	ArchiveRoot

	// InsideArchive paths name an entry inside an archive.
	InsideArchive
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case NotArchive:
		return "not-archive"
	case ArchiveRoot:
		return "archive-root"
	case InsideArchive:
		return "inside-archive"
	default:
		return "unknown"
	}
}

// Result is the outcome of classifying a path.
type Result struct {
	Kind Kind

	// Path is the cleaned absolute path that was classified.
	Path string

	// Archive is the real path of the archive file. Empty for NotArchive.
	Archive string

	// Inner is the slash-separated path inside the archive. Empty for the
	// archive root.
	Inner string
}

// IsArchive reports whether the path is an archive root or inside one.
func (r Result) IsArchive() bool {
	return r.Kind != NotArchive
}

// Classifier splits paths into archive and inner components.
type Classifier struct {
	suffix string
	isFile func(path string) bool
}

// New creates a Classifier for archives whose names end in suffix.
//
// isFile reports whether a candidate path is a regular file; nil uses
// os.Stat, which follows symlinks.
func New(suffix string, isFile func(path string) bool) *Classifier {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	if isFile == nil {
		isFile = RegularFile
	}
	return &Classifier{suffix: suffix, isFile: isFile}
}

// Suffix returns the archive suffix.
func (c *Classifier) Suffix() string {
	return c.suffix
}

// Classify inspects an absolute path.
//
// Candidates are tested from the deepest path component upwards, so a
// path like /a.asar.unpacked/b.asar/x classifies against b.asar. Only
// components ending in the suffix that exist as regular files qualify.
func (c *Classifier) Classify(path string) Result {
	path = filepath.Clean(path)
	res := Result{Kind: NotArchive, Path: path}
	if !strings.Contains(path, c.suffix) {
		return res
	}

	end := len(path)
	for end > 0 {
		candidate := path[:end]
		if strings.HasSuffix(candidate, c.suffix) && c.isFile(candidate) {
			res.Archive = candidate
			if end == len(path) {
				res.Kind = ArchiveRoot
				return res
			}
			res.Kind = InsideArchive
			res.Inner = filepath.ToSlash(strings.TrimLeft(path[end:], string(filepath.Separator)))
			return res
		}
		i := strings.LastIndexByte(candidate, filepath.Separator)
		if i < 0 {
			break
		}
		end = i
	}
	return res
}

// RegularFile reports whether path exists and is a regular file.
func RegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
