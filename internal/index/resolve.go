package index

import (
	"strings"

	"github.com/meigma/asar/internal/asartype"
)

// Resolved is the outcome of a successful resolution.
type Resolved struct {
	// Node is the entry the path names.
	Node *Node

	// Path is the canonical inner path of Node with every symlink expanded.
	// The archive root resolves to "".
	Path string

	// Links is the number of symlinks expanded on the way.
	Links int
}

type frame struct {
	name string
	node *Node
}

// Resolve walks inner from the root.
//
// Symlinks met before the last component are always expanded; a symlink
// in the last position is expanded only when followFinal is set, which is
// the difference between stat and lstat. Link targets are interpreted
// relative to the directory holding the link, and a target starting with
// "/" restarts at the archive root. Errors are ErrNotFound, ErrNotDir and
// ErrTooManySymlinks from asartype.
func (idx *Index) Resolve(inner string, followFinal bool) (Resolved, error) {
	pending := Split(inner)
	stack := []frame{{node: idx.root}}
	links := 0

	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]

		cur := stack[len(stack)-1].node
		if !cur.IsDir() {
			return Resolved{}, asartype.ErrNotDir
		}

		switch name {
		case ".":
			continue
		case "..":
			if len(stack) == 1 {
				// Leaving the archive through a link is not supported.
				return Resolved{}, asartype.ErrNotFound
			}
			stack = stack[:len(stack)-1]
			continue
		}

		child, ok := cur.Child(name)
		if !ok {
			return Resolved{}, asartype.ErrNotFound
		}

		if child.IsLink() && (len(pending) > 0 || followFinal) {
			links++
			if links > idx.maxSymlinks {
				return Resolved{}, asartype.ErrTooManySymlinks
			}
			if strings.HasPrefix(child.Link, "/") {
				stack = stack[:1]
			}
			pending = append(Split(child.Link), pending...)
			continue
		}

		stack = append(stack, frame{name: name, node: child})
	}

	names := make([]string, 0, len(stack)-1)
	for _, f := range stack[1:] {
		names = append(names, f.name)
	}
	return Resolved{
		Node:  stack[len(stack)-1].node,
		Path:  strings.Join(names, "/"),
		Links: links,
	}, nil
}
