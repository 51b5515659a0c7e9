package index

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/asar/internal/asartype"
)

// buildTree returns:
//
//	file1            "file1\n"
//	dir1/
//	  file1          "file1\n"
//	  sub/
//	    deep.txt
//	link1 -> file1
//	dirlink -> dir1
//	chain1 -> chain2
//	chain2 -> dirlink/file1
//	up -> dir1/sub/..
//	loopA -> loopB
//	loopB -> loopA
//	abs -> /dir1/sub
//	escape -> ../outside
func buildTree() *Index {
	root := NewDir()
	root.Add("file1", NewFile(0, 6))
	dir1 := NewDir()
	dir1.Add("file1", NewFile(6, 6))
	sub := NewDir()
	sub.Add("deep.txt", NewFile(12, 4))
	dir1.Add("sub", sub)
	root.Add("dir1", dir1)
	root.Add("link1", NewLink("file1"))
	root.Add("dirlink", NewLink("dir1"))
	root.Add("chain1", NewLink("chain2"))
	root.Add("chain2", NewLink("dirlink/file1"))
	root.Add("up", NewLink("dir1/sub/.."))
	root.Add("loopA", NewLink("loopB"))
	root.Add("loopB", NewLink("loopA"))
	root.Add("abs", NewLink("/dir1/sub"))
	root.Add("escape", NewLink("../outside"))
	return New(root, 0)
}

func TestNodeKeepsInsertionOrder(t *testing.T) {
	t.Parallel()
	d := NewDir()
	d.Add("zeta", NewFile(0, 0))
	d.Add("alpha", NewFile(0, 0))
	d.Add("mid", NewDir())
	d.Add("zeta", NewFile(1, 1))

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, d.Names())
	assert.Equal(t, 3, d.Len())

	got, ok := d.Child("zeta")
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.Offset)

	var seen []string
	for name := range d.Children() {
		seen = append(seen, name)
	}
	assert.Equal(t, d.Names(), seen)
}

func TestChildOnFile(t *testing.T) {
	t.Parallel()
	_, ok := NewFile(0, 1).Child("x")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	t.Parallel()
	idx := buildTree()

	tests := []struct {
		name        string
		inner       string
		followFinal bool
		wantKind    Kind
		wantPath    string
		wantOffset  uint64
	}{
		{"root", "", true, KindDir, "", 0},
		{"root slash", "/", true, KindDir, "", 0},
		{"file", "file1", true, KindFile, "file1", 0},
		{"nested file", "dir1/file1", true, KindFile, "dir1/file1", 6},
		{"trailing slash on file", "dir1/file1/", true, KindFile, "dir1/file1", 6},
		{"double slashes", "dir1//sub//deep.txt", true, KindFile, "dir1/sub/deep.txt", 12},
		{"link followed", "link1", true, KindFile, "file1", 0},
		{"link not followed", "link1", false, KindLink, "link1", 0},
		{"link to dir mid-path", "dirlink/file1", false, KindFile, "dir1/file1", 6},
		{"link chain", "chain1", true, KindFile, "dir1/file1", 6},
		{"dotdot in target", "up", true, KindDir, "dir1", 0},
		{"absolute target", "abs/deep.txt", true, KindFile, "dir1/sub/deep.txt", 12},
		{"dot component", "dir1/./file1", true, KindFile, "dir1/file1", 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := idx.Resolve(tt.inner, tt.followFinal)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, got.Node.Kind)
			assert.Equal(t, tt.wantPath, got.Path)
			if tt.wantKind == KindFile {
				assert.Equal(t, tt.wantOffset, got.Node.Offset)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()
	idx := buildTree()

	tests := []struct {
		name  string
		inner string
		want  error
	}{
		{"missing", "nope", asartype.ErrNotFound},
		{"missing nested", "dir1/nope", asartype.ErrNotFound},
		{"through file", "file1/x", asartype.ErrNotDir},
		{"through file via link", "link1/x", asartype.ErrNotDir},
		{"dot after file", "file1/.", asartype.ErrNotDir},
		{"cycle", "loopA", asartype.ErrTooManySymlinks},
		{"cycle mid-path", "loopB/x", asartype.ErrTooManySymlinks},
		{"escape archive", "escape", asartype.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := idx.Resolve(tt.inner, true)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolveCycleIsDistinctFromNotFound(t *testing.T) {
	t.Parallel()
	_, err := buildTree().Resolve("loopA", true)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asartype.ErrNotFound))
}

func TestResolveSymlinkBudget(t *testing.T) {
	t.Parallel()
	// A chain of n links is resolvable when n <= budget.
	build := func(n int) *Node {
		root := NewDir()
		root.Add("target", NewFile(0, 1))
		prev := "target"
		for i := range n {
			name := fmt.Sprintf("l%d", i)
			root.Add(name, NewLink(prev))
			prev = name
		}
		return root
	}

	idx := New(build(5), 5)
	r, err := idx.Resolve("l4", true)
	require.NoError(t, err)
	assert.Equal(t, "target", r.Path)
	assert.Equal(t, 5, r.Links)

	idx = New(build(6), 5)
	_, err = idx.Resolve("l5", true)
	assert.ErrorIs(t, err, asartype.ErrTooManySymlinks)

	idx = New(build(DefaultMaxSymlinks+1), 0)
	_, err = idx.Resolve(fmt.Sprintf("l%d", DefaultMaxSymlinks), true)
	assert.ErrorIs(t, err, asartype.ErrTooManySymlinks)
}

func TestResolveFollowsDirLink(t *testing.T) {
	t.Parallel()
	idx := buildTree()
	res, err := idx.Resolve("dirlink", true)
	require.NoError(t, err)
	assert.True(t, res.Node.IsDir())
	assert.Equal(t, []string{"file1", "sub"}, res.Node.Names())
}

func TestWalk(t *testing.T) {
	t.Parallel()
	root := NewDir()
	a := NewDir()
	a.Add("b.txt", NewFile(0, 1))
	root.Add("z.txt", NewFile(1, 1))
	root.Add("a", a)
	root.Add("l", NewLink("z.txt"))

	var paths []string
	err := New(root, 0).Walk(func(inner string, n *Node) error {
		paths = append(paths, inner+":"+n.Kind.String())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"z.txt:file", "a:directory", "a/b.txt:file", "l:link"}, paths)

	stop := errors.New("stop")
	count := 0
	err = New(root, 0).Walk(func(string, *Node) error {
		count++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}

func TestSplit(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"a", "b"}, Split("/a//b/"))
	assert.Empty(t, Split(""))
	assert.Empty(t, Split("///"))
}
