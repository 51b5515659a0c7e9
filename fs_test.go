package asar

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/asar/internal/testutil"
)

// fixture builds the archive used by most tests:
//
//	dir1/file1   "file1\n"
//	dir1/sub/    (empty)
//	file1        "file1\n"
//	link1     -> file1
//	run.sh       executable
//	a.txt        unpacked "a\n"
func fixture(t *testing.T) (fsys *FS, arcPath string) {
	t.Helper()
	arcPath = testutil.NewBuilder(t).
		File("dir1/file1", "file1\n").
		Dir("dir1/sub").
		File("file1", "file1\n").
		Link("link1", "file1").
		Executable("run.sh", "#!/bin/sh\n").
		Unpacked("a.txt", "a\n").
		WriteTemp("app.asar")
	fsys = New()
	t.Cleanup(func() { fsys.Close() })
	return fsys, arcPath
}

func TestStatPackedFile(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)

	info, err := fsys.Stat(filepath.Join(arc, "dir1", "file1"))
	require.NoError(t, err)
	assert.Equal(t, "file1", info.Name())
	assert.Equal(t, int64(6), info.Size())
	assert.True(t, info.Mode().IsRegular())
	assert.Equal(t, fs.FileMode(0o444), info.Mode().Perm())

	sys, ok := info.Sys().(*EntryInfo)
	require.True(t, ok)
	assert.Equal(t, arc, sys.Archive)
	assert.Equal(t, "dir1/file1", sys.Path)
	assert.NotEmpty(t, sys.Digest)

	exec, err := fsys.Stat(filepath.Join(arc, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o555), exec.Mode().Perm())
}

func TestStatArchiveRootIsDir(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)

	info, err := fsys.Stat(arc)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "app.asar", info.Name())
	assert.Equal(t, int64(0), info.Size())

	_, err = fsys.Open(arc)
	assert.ErrorIs(t, err, ErrIsDir)
}

func TestStatAndLstatLink(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)
	link := filepath.Join(arc, "link1")

	info, err := fsys.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&fs.ModeSymlink)

	info, err = fsys.Stat(link)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
	assert.Equal(t, int64(6), info.Size())

	target, err := fsys.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "file1", target)

	_, err = fsys.Readlink(filepath.Join(arc, "file1"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestOpenLinkReadsTarget(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)

	f, err := fsys.Open(filepath.Join(arc, "link1"))
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 6)
	n, err := io.ReadFull(f, buf)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "file1\n", string(buf))
}

func TestStatUnpackedUsesRealFile(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)

	info, err := fsys.Stat(filepath.Join(arc, "a.txt"))
	require.NoError(t, err)
	_, isEntry := info.Sys().(*EntryInfo)
	assert.False(t, isEntry, "unpacked stat must come from the OS")
	assert.Equal(t, int64(2), info.Size())
}

func TestStatErrors(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing", filepath.Join(arc, "nope"), ErrNotFound},
		{"through file", filepath.Join(arc, "file1", "x"), ErrNotDir},
		{"missing nested", filepath.Join(arc, "dir1", "nope", "x"), ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := fsys.Stat(tt.path)
			require.ErrorIs(t, err, tt.want)

			var pe *fs.PathError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "stat", pe.Op)
			assert.Equal(t, tt.path, pe.Path)
		})
	}

	_, err := fsys.Stat(filepath.Join(arc, "nope"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.ErrorIs(t, err, syscall.ENOENT)
}

func TestReadDirHeaderOrder(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)

	entries, err := fsys.ReadDir(arc)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"dir1", "file1", "link1", "run.sh", "a.txt"}, names)

	assert.True(t, entries[0].IsDir())
	assert.Equal(t, fs.ModeSymlink, entries[2].Type())

	sub, err := fsys.ReadDir(filepath.Join(arc, "dir1"))
	require.NoError(t, err)
	require.Len(t, sub, 2)
	assert.Equal(t, "file1", sub[0].Name())
	assert.Equal(t, "sub", sub[1].Name())

	_, err = fsys.ReadDir(filepath.Join(arc, "file1"))
	assert.ErrorIs(t, err, ErrNotDir)
}

func TestReadDirKeepsInsertionOrderNotSorted(t *testing.T) {
	t.Parallel()
	arc := testutil.NewBuilder(t).
		File("zeta", "z").
		File("alpha", "a").
		File("mid", "m").
		WriteTemp("order.asar")
	fsys := New()
	t.Cleanup(func() { fsys.Close() })

	entries, err := fsys.ReadDir(arc)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "zeta", entries[0].Name())
	assert.Equal(t, "alpha", entries[1].Name())
	assert.Equal(t, "mid", entries[2].Name())
}

func TestReadFile(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)

	got, err := fsys.ReadFile(filepath.Join(arc, "dir1", "file1"))
	require.NoError(t, err)
	assert.Equal(t, "file1\n", string(got))

	got, err = fsys.ReadFile(filepath.Join(arc, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(got))

	_, err = fsys.ReadFile(filepath.Join(arc, "dir1"))
	assert.ErrorIs(t, err, ErrIsDir)
}

func TestReadFileRelativePath(t *testing.T) {
	fsys, arc := fixture(t)
	t.Chdir(filepath.Dir(arc))

	got, err := fsys.ReadFile(filepath.Join("app.asar", "file1"))
	require.NoError(t, err)
	assert.Equal(t, "file1\n", string(got))
}

func TestReadFileVerifiesIntegrity(t *testing.T) {
	t.Parallel()
	b := testutil.NewBuilder(t).File("f", "good")
	arc := b.WriteTemp("tampered.asar")

	// Flip the content byte in place; the header still records "good".
	raw, err := os.ReadFile(arc)
	require.NoError(t, err)
	raw[len(raw)-1] = 'X'
	require.NoError(t, os.WriteFile(arc, raw, 0o644))

	plain := New()
	t.Cleanup(func() { plain.Close() })
	got, err := plain.ReadFile(filepath.Join(arc, "f"))
	require.NoError(t, err)
	assert.Equal(t, "gooX", string(got))

	verifying := New(WithVerifyIntegrity(true))
	t.Cleanup(func() { verifying.Close() })
	_, err = verifying.ReadFile(filepath.Join(arc, "f"))
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestNonArchivePathsPassThrough(t *testing.T) {
	t.Parallel()
	fsys, _ := fixture(t)
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.txt")

	require.NoError(t, fsys.WriteFile(plain, []byte("hello"), 0o644))
	got, err := fsys.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = fsys.Stat(filepath.Join(dir, "missing"))
	var pe *fs.PathError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.False(t, fsys.IsArchive(plain))

	require.NoError(t, fsys.Mkdir(filepath.Join(dir, "d"), 0o755))
	require.NoError(t, fsys.Remove(filepath.Join(dir, "d")))
}

func TestSuffixInNameOfPlainDirectory(t *testing.T) {
	t.Parallel()
	fsys := New()
	t.Cleanup(func() { fsys.Close() })
	dir := filepath.Join(t.TempDir(), "looks.asar")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x"), []byte("x"), 0o644))

	got, err := fsys.ReadFile(filepath.Join(dir, "x"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestNoArchiveToggle(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)

	entries, err := fsys.ReadDir(arc)
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	fsys.SetNoArchive(true)
	assert.True(t, fsys.NoArchive())
	_, err = fsys.ReadDir(arc)
	assert.ErrorIs(t, err, syscall.ENOTDIR)

	info, err := fsys.Stat(arc)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())

	fsys.SetNoArchive(false)
	_, err = fsys.ReadDir(arc)
	assert.NoError(t, err)
}

func TestNoArchiveOption(t *testing.T) {
	t.Parallel()
	_, arc := fixture(t)
	fsys := New(WithNoArchive(true))
	t.Cleanup(func() { fsys.Close() })

	_, err := fsys.ReadFile(filepath.Join(arc, "file1"))
	assert.ErrorIs(t, err, syscall.ENOTDIR)
}

func TestNoArchiveFromEnv(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"0", false},
		{"false", false},
		{"1", true},
		{"true", true},
		{"yes", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(NoArchiveEnv, tt.value)
			assert.Equal(t, tt.want, NoArchiveFromEnv())
		})
	}
}

func TestMkdirInsideArchive(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)

	for _, inner := range []string{"dir1", "new", "dir1/new", "file1", "nope/deeper"} {
		p := filepath.Join(arc, filepath.FromSlash(inner))
		err := fsys.Mkdir(p, 0o755)
		assert.ErrorIs(t, err, ErrNotDir, inner)
		assert.ErrorIs(t, err, syscall.ENOTDIR, inner)

		assert.ErrorIs(t, fsys.MkdirAll(p, 0o755), ErrNotDir, inner)
		assert.ErrorIs(t, fsys.Remove(p), ErrNotDir, inner)
	}

	err := fsys.Mkdir(arc, 0o755)
	assert.ErrorIs(t, err, fs.ErrExist)
}

func TestWriteFile(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)

	require.NoError(t, fsys.WriteFile(filepath.Join(arc, "a.txt"), []byte("b\n"), 0o644))
	got, err := os.ReadFile(filepath.Join(arc+".unpacked", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b\n", string(got))

	err = fsys.WriteFile(filepath.Join(arc, "file1"), []byte("x"), 0o644)
	assert.ErrorIs(t, err, ErrPermission)

	err = fsys.WriteFile(filepath.Join(arc, "new.txt"), []byte("x"), 0o644)
	assert.ErrorIs(t, err, ErrNotDir)

	err = fsys.WriteFile(filepath.Join(arc, "dir1"), []byte("x"), 0o644)
	assert.ErrorIs(t, err, ErrIsDir)
}

func TestAccess(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)
	at := func(inner string) string { return filepath.Join(arc, filepath.FromSlash(inner)) }

	require.NoError(t, fsys.Access(at("a.txt"), AccessWrite))
	require.NoError(t, fsys.Access(at("file1"), AccessExists))
	require.NoError(t, fsys.Access(at("file1"), AccessRead))
	require.NoError(t, fsys.Access(at("link1"), AccessRead))
	require.NoError(t, fsys.Access(at("dir1"), AccessExecute))

	err := fsys.Access(at("file1"), AccessWrite)
	assert.ErrorIs(t, err, ErrPermission)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.ErrorIs(t, err, syscall.EACCES)

	assert.ErrorIs(t, fsys.Access(at("run.sh"), AccessExecute), ErrPermission)
	assert.ErrorIs(t, fsys.Access(at("dir1"), AccessWrite), ErrPermission)
	assert.ErrorIs(t, fsys.Access(at("nope"), AccessExists), ErrNotFound)

	// a.txt is written 0644, so execute is refused by the OS.
	assert.Error(t, fsys.Access(at("a.txt"), AccessExecute))
}

func TestExists(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)
	assert.True(t, fsys.Exists(filepath.Join(arc, "dir1", "file1")))
	assert.True(t, fsys.Exists(arc))
	assert.False(t, fsys.Exists(filepath.Join(arc, "ghost")))
}

func TestCorruptArchiveFailsConsistently(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	arc := filepath.Join(dir, "bad.asar")
	require.NoError(t, os.WriteFile(arc, []byte("this is not an archive header"), 0o644))

	fsys := New()
	t.Cleanup(func() { fsys.Close() })
	for range 3 {
		_, err := fsys.Stat(filepath.Join(arc, "x"))
		assert.ErrorIs(t, err, ErrArchiveCorrupt)
		_, err = fsys.ReadDir(arc)
		assert.ErrorIs(t, err, ErrArchiveCorrupt)
	}

	fsys.SetNoArchive(true)
	got, err := fsys.ReadFile(arc)
	require.NoError(t, err)
	assert.Equal(t, "this is not an archive header", string(got))
}

func TestNestedArchiveInUnpackedDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	outer := testutil.NewBuilder(t).File("x", "outer").Write(filepath.Join(dir, "outer.asar"))
	testutil.NewBuilder(t).File("y", "inner").Write(filepath.Join(outer+".unpacked", "nested.asar"))

	fsys := New()
	t.Cleanup(func() { fsys.Close() })
	got, err := fsys.ReadFile(filepath.Join(outer+".unpacked", "nested.asar", "y"))
	require.NoError(t, err)
	assert.Equal(t, "inner", string(got))
}

func TestCloseReleasesEverything(t *testing.T) {
	t.Parallel()
	fsys, arc := fixture(t)
	f, err := fsys.Open(filepath.Join(arc, "file1"))
	require.NoError(t, err)
	assert.Equal(t, 1, fsys.OpenFiles())

	require.NoError(t, fsys.Close())
	assert.Equal(t, 0, fsys.OpenFiles())

	_, err = f.Read(make([]byte, 1))
	assert.True(t, errors.Is(err, ErrBadFD))
}
