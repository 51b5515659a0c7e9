package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meigma/asar/internal/header"
	"github.com/meigma/asar/internal/index"
	"github.com/meigma/asar/internal/integrity"
)

// Builder assembles archive bytes for tests.
//
// Entries appear in directory listings in the order they are added.
// Parent directories are created implicitly.
type Builder struct {
	tb       testing.TB
	root     *index.Node
	data     []byte
	unpacked []unpackedFile
}

type unpackedFile struct {
	inner   string
	content string
}

// NewBuilder returns an empty archive builder.
func NewBuilder(tb testing.TB) *Builder {
	tb.Helper()
	return &Builder{tb: tb, root: index.NewDir()}
}

// File adds a packed file.
func (b *Builder) File(inner, content string) *Builder {
	b.tb.Helper()
	b.addPacked(inner, content, false)
	return b
}

// Executable adds a packed file with the executable flag set.
func (b *Builder) Executable(inner, content string) *Builder {
	b.tb.Helper()
	b.addPacked(inner, content, true)
	return b
}

// Unpacked adds a file stored in the unpacked sibling directory.
func (b *Builder) Unpacked(inner, content string) *Builder {
	b.tb.Helper()
	dir, name := b.parent(inner)
	n := &index.Node{Kind: index.KindFile, Size: uint64(len(content)), Unpacked: true}
	n.Integrity = b.integrity(content)
	dir.Add(name, n)
	b.unpacked = append(b.unpacked, unpackedFile{inner: inner, content: content})
	return b
}

// Dir adds an empty directory.
func (b *Builder) Dir(inner string) *Builder {
	b.tb.Helper()
	dir, name := b.parent(inner)
	if existing, ok := dir.Child(name); ok && existing.IsDir() {
		return b
	}
	dir.Add(name, index.NewDir())
	return b
}

// Link adds a symlink whose target is relative to its parent directory.
func (b *Builder) Link(inner, target string) *Builder {
	b.tb.Helper()
	dir, name := b.parent(inner)
	dir.Add(name, index.NewLink(target))
	return b
}

// Root returns the entry tree built so far.
func (b *Builder) Root() *index.Node {
	return b.root
}

// Bytes returns the encoded archive.
func (b *Builder) Bytes() []byte {
	b.tb.Helper()
	prefix, err := header.Encode(b.root)
	if err != nil {
		b.tb.Fatalf("encode header: %v", err)
	}
	return append(prefix, b.data...)
}

// Write writes the archive to path and its unpacked files to the sibling
// directory, returning path.
func (b *Builder) Write(path string) string {
	b.tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		b.tb.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		b.tb.Fatalf("write archive: %v", err)
	}
	for _, u := range b.unpacked {
		dest := filepath.Join(path+".unpacked", filepath.FromSlash(u.inner))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			b.tb.Fatalf("mkdir unpacked: %v", err)
		}
		if err := os.WriteFile(dest, []byte(u.content), 0o644); err != nil {
			b.tb.Fatalf("write unpacked: %v", err)
		}
	}
	return path
}

// WriteTemp writes the archive as name inside a fresh temp directory.
func (b *Builder) WriteTemp(name string) string {
	b.tb.Helper()
	return b.Write(filepath.Join(b.tb.TempDir(), name))
}

func (b *Builder) addPacked(inner, content string, exec bool) {
	b.tb.Helper()
	dir, name := b.parent(inner)
	n := index.NewFile(uint64(len(b.data)), uint64(len(content)))
	n.Executable = exec
	n.Integrity = b.integrity(content)
	dir.Add(name, n)
	b.data = append(b.data, content...)
}

func (b *Builder) integrity(content string) *integrity.Record {
	b.tb.Helper()
	rec, _, err := integrity.Compute(strings.NewReader(content), 0)
	if err != nil {
		b.tb.Fatalf("integrity: %v", err)
	}
	return rec
}

// parent returns the directory that will hold inner, creating missing
// directories on the way, and the final name.
func (b *Builder) parent(inner string) (*index.Node, string) {
	b.tb.Helper()
	parts := index.Split(inner)
	if len(parts) == 0 {
		b.tb.Fatalf("empty inner path %q", inner)
	}
	dir := b.root
	for _, part := range parts[:len(parts)-1] {
		child, ok := dir.Child(part)
		if !ok {
			child = index.NewDir()
			dir.Add(part, child)
		}
		if !child.IsDir() {
			b.tb.Fatalf("%s: %q is not a directory", inner, part)
		}
		dir = child
	}
	return dir, parts[len(parts)-1]
}
