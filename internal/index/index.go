package index

import (
	"iter"
	"strings"

	"github.com/meigma/asar/internal/integrity"
)

// Kind identifies the shape of a Node.
type Kind uint8

// Node kinds.
const (
	KindFile Kind = iota
	KindDir
	KindLink
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

// Node is one entry in the archive tree.
//
// Nodes are built once by the header decoder (or by an archive writer) and
// are treated as immutable afterwards; readers never modify them.
type Node struct {
	Kind Kind

	// Offset is the byte offset of file content relative to the start of
	// the data region. Unused for unpacked files.
	Offset uint64

	// Size is the file content length in bytes.
	Size uint64

	// Executable records the executable bit of the source file.
	Executable bool

	// Unpacked marks files (and directories) whose content lives in the
	// sibling .unpacked directory instead of the data region.
	Unpacked bool

	// Integrity is the optional integrity record of a file.
	Integrity *integrity.Record

	// Link is the symlink target, relative to the link's parent directory.
	Link string

	names    []string
	children map[string]*Node
}

// NewDir returns an empty directory node.
func NewDir() *Node {
	return &Node{Kind: KindDir, children: make(map[string]*Node)}
}

// NewFile returns a file node.
func NewFile(offset, size uint64) *Node {
	return &Node{Kind: KindFile, Offset: offset, Size: size}
}

// NewLink returns a symlink node.
func NewLink(target string) *Node {
	return &Node{Kind: KindLink, Link: target}
}

// IsDir reports whether n is a directory.
func (n *Node) IsDir() bool { return n.Kind == KindDir }

// IsFile reports whether n is a regular file.
func (n *Node) IsFile() bool { return n.Kind == KindFile }

// IsLink reports whether n is a symlink.
func (n *Node) IsLink() bool { return n.Kind == KindLink }

// Add appends a child to a directory, keeping insertion order.
// Adding a name twice replaces the child but keeps its original position.
func (n *Node) Add(name string, child *Node) {
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	if _, ok := n.children[name]; !ok {
		n.names = append(n.names, name)
	}
	n.children[name] = child
}

// Child returns the named child of a directory.
func (n *Node) Child(name string) (*Node, bool) {
	if n.Kind != KindDir {
		return nil, false
	}
	c, ok := n.children[name]
	return c, ok
}

// Names returns child names in insertion order.
// The returned slice must not be modified.
func (n *Node) Names() []string {
	return n.names
}

// Len returns the number of children of a directory.
func (n *Node) Len() int {
	return len(n.names)
}

// Children iterates over a directory's children in insertion order.
func (n *Node) Children() iter.Seq2[string, *Node] {
	return func(yield func(string, *Node) bool) {
		for _, name := range n.names {
			if !yield(name, n.children[name]) {
				return
			}
		}
	}
}

// Index is the decoded entry tree of one archive.
type Index struct {
	root        *Node
	maxSymlinks int
}

// DefaultMaxSymlinks bounds symlink expansions during a single resolution.
const DefaultMaxSymlinks = 40

// New creates an Index over root. A maxSymlinks of zero uses DefaultMaxSymlinks.
func New(root *Node, maxSymlinks int) *Index {
	if maxSymlinks <= 0 {
		maxSymlinks = DefaultMaxSymlinks
	}
	return &Index{root: root, maxSymlinks: maxSymlinks}
}

// Root returns the root directory node.
func (idx *Index) Root() *Node {
	return idx.root
}

// Walk visits every node in depth-first, insertion order. The root is not
// visited. Returning a non-nil error stops the walk.
func (idx *Index) Walk(fn func(inner string, n *Node) error) error {
	return walk(idx.root, "", fn)
}

func walk(dir *Node, prefix string, fn func(string, *Node) error) error {
	for name, child := range dir.Children() {
		inner := name
		if prefix != "" {
			inner = prefix + "/" + name
		}
		if err := fn(inner, child); err != nil {
			return err
		}
		if child.IsDir() {
			if err := walk(child, inner, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Split breaks an inner path into its non-empty components.
// Both "/" and the OS separator are accepted by callers converting first.
func Split(inner string) []string {
	parts := strings.Split(inner, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
