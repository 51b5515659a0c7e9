package asar

import (
	"io/fs"
	"path"
	"time"

	"github.com/meigma/asar/internal/index"
)

// EntryInfo describes an archive entry. FileInfo.Sys returns *EntryInfo
// for every path inside an archive, including the archive root.
type EntryInfo struct {
	// Archive is the path of the archive file.
	Archive string

	// Path is the slash-separated inner path. Empty for the archive root.
	Path string

	// Offset is the position of a packed file's content relative to the
	// start of the data region.
	Offset uint64

	// Size is the file size in bytes. Zero for directories and links.
	Size uint64

	// Executable reports whether the file was packed with its executable bit.
	Executable bool

	// Unpacked reports whether the entry is stored in the unpacked sibling
	// directory instead of the data region.
	Unpacked bool

	// Link is the target of a symlink entry.
	Link string

	// Digest is the hex SHA256 of the file content when the archive records
	// it, or empty.
	Digest string
}

const (
	modeFile       fs.FileMode = 0o444
	modeExecutable fs.FileMode = 0o555
	modeDir                    = fs.ModeDir | 0o555
	modeLink                   = fs.ModeSymlink | 0o777
)

// entryInfo implements fs.FileInfo for archive entries.
type entryInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	sys     *EntryInfo
}

func newEntryInfo(archivePath, inner string, n *index.Node, modTime time.Time) *entryInfo {
	name := path.Base(inner)
	if inner == "" {
		name = path.Base(archivePath)
	}
	sys := &EntryInfo{
		Archive:  archivePath,
		Path:     inner,
		Unpacked: n.Unpacked,
	}
	fi := &entryInfo{name: name, modTime: modTime, sys: sys}
	switch n.Kind {
	case index.KindDir:
		fi.mode = modeDir
	case index.KindLink:
		fi.mode = modeLink
		sys.Link = n.Link
	default:
		fi.mode = modeFile
		if n.Executable {
			fi.mode = modeExecutable
		}
		fi.size = int64(n.Size) //nolint:gosec // header decode rejects sizes above MaxInt64
		sys.Offset = n.Offset
		sys.Size = n.Size
		sys.Executable = n.Executable
		if n.Integrity != nil {
			sys.Digest = n.Integrity.Hash
		}
	}
	return fi
}

func (fi *entryInfo) Name() string       { return fi.name }
func (fi *entryInfo) Size() int64        { return fi.size }
func (fi *entryInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *entryInfo) ModTime() time.Time { return fi.modTime }
func (fi *entryInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *entryInfo) Sys() any           { return fi.sys }

// dirEntry implements fs.DirEntry by wrapping fs.FileInfo.
type dirEntry struct {
	info fs.FileInfo
}

func (de *dirEntry) Name() string               { return de.info.Name() }
func (de *dirEntry) IsDir() bool                { return de.info.IsDir() }
func (de *dirEntry) Type() fs.FileMode          { return de.info.Mode().Type() }
func (de *dirEntry) Info() (fs.FileInfo, error) { return de.info, nil }
func (de *dirEntry) String() string             { return fs.FormatDirEntry(de) }
