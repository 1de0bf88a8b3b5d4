package tree

import "strings"

// slot is one arena cell. Directories hold the arena indices of their
// children; files hold a size.
type slot struct {
	name     string
	size     uint64
	dir      bool
	children []int
}

// Builder accumulates paths into a tree.
//
// Nodes live in a flat arena and directories refer to their children by
// index, so lookups never hold references into the arena across appends.
// A Builder is not safe for concurrent use.
type Builder struct {
	arena []slot
	roots []int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddFile inserts a file leaf at the slash-separated path, creating any
// missing parent directories. Parents are matched by exact name against
// existing directories only. Empty paths are ignored.
func (b *Builder) AddFile(path string, size uint64) {
	segments := split(path)
	if len(segments) == 0 {
		return
	}
	parent := b.ensureDirs(segments[:len(segments)-1])
	leaf := b.alloc(slot{name: segments[len(segments)-1], size: size})
	b.appendChild(parent, leaf)
}

// AddDir ensures a directory chain exists for the slash-separated path.
func (b *Builder) AddDir(path string) {
	b.ensureDirs(split(path))
}

// Len returns the number of nodes in the tree.
func (b *Builder) Len() int {
	return len(b.arena)
}

// Nodes materializes the top-level entries. The result is never nil.
func (b *Builder) Nodes() []Node {
	return b.materialize(b.roots)
}

func (b *Builder) materialize(indices []int) []Node {
	nodes := make([]Node, 0, len(indices))
	for _, idx := range indices {
		s := b.arena[idx]
		if s.dir {
			nodes = append(nodes, &Directory{Name: s.name, Children: b.materialize(s.children)})
		} else {
			nodes = append(nodes, &File{Name: s.name, Size: s.size})
		}
	}
	return nodes
}

// ensureDirs walks or creates the directory chain and returns the index of
// the deepest directory, or -1 for the root.
func (b *Builder) ensureDirs(segments []string) int {
	parent := -1
	for _, name := range segments {
		idx := b.findDir(parent, name)
		if idx < 0 {
			idx = b.alloc(slot{name: name, dir: true})
			b.appendChild(parent, idx)
		}
		parent = idx
	}
	return parent
}

func (b *Builder) findDir(parent int, name string) int {
	for _, idx := range b.children(parent) {
		if s := &b.arena[idx]; s.dir && s.name == name {
			return idx
		}
	}
	return -1
}

func (b *Builder) children(parent int) []int {
	if parent < 0 {
		return b.roots
	}
	return b.arena[parent].children
}

func (b *Builder) appendChild(parent, child int) {
	if parent < 0 {
		b.roots = append(b.roots, child)
		return
	}
	b.arena[parent].children = append(b.arena[parent].children, child)
}

func (b *Builder) alloc(s slot) int {
	b.arena = append(b.arena, s)
	return len(b.arena) - 1
}

// split breaks a path into non-empty segments.
func split(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}
