// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package taxonomy

import (
	"fmt"
	"strings"
)

// Separator joins category path segments.
const Separator = "."

// Category is an interned handle to a node of a Tree.
//
// Categories are only meaningful together with the Tree that issued them.
type Category int32

// NoCategory is returned by lookups that fail.
const NoCategory Category = -1

// categoryNode is one arena slot.
type categoryNode struct {
	segment  string
	path     string
	parent   Category
	depth    int
	children []Category
}

// Tree is a closed category tree built once by a TreeBuilder.
//
// Thread Safety: A built Tree is immutable and safe for concurrent use.
type Tree struct {
	nodes  []categoryNode
	byPath map[string]Category
	roots  []Category
}

// Len returns the number of categories.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Valid reports whether c belongs to t.
func (t *Tree) Valid(c Category) bool {
	return c >= 0 && int(c) < len(t.nodes)
}

// Lookup returns the category with the given dotted path.
func (t *Tree) Lookup(path string) (Category, bool) {
	c, ok := t.byPath[path]
	if !ok {
		return NoCategory, false
	}
	return c, true
}

// LookupSegments returns the category whose segments are segs.
func (t *Tree) LookupSegments(segs ...string) (Category, bool) {
	return t.Lookup(strings.Join(segs, Separator))
}

// MustLookup returns the category for path and panics if it is absent.
//
// Use only for paths that are part of the static catalog.
func (t *Tree) MustLookup(path string) Category {
	c, ok := t.Lookup(path)
	if !ok {
		panic(fmt.Sprintf("taxonomy: category %q not in tree", path))
	}
	return c
}

// Path returns the dotted path of c.
func (t *Tree) Path(c Category) string {
	if !t.Valid(c) {
		return ""
	}
	return t.nodes[c].path
}

// Segment returns the last path segment of c.
func (t *Tree) Segment(c Category) string {
	if !t.Valid(c) {
		return ""
	}
	return t.nodes[c].segment
}

// Depth returns the number of segments of c. Roots have depth 1.
func (t *Tree) Depth(c Category) int {
	if !t.Valid(c) {
		return 0
	}
	return t.nodes[c].depth
}

// Parent returns the parent of c, or false for roots.
func (t *Tree) Parent(c Category) (Category, bool) {
	if !t.Valid(c) || t.nodes[c].parent == NoCategory {
		return NoCategory, false
	}
	return t.nodes[c].parent, true
}

// Children returns the immediate children of c in declaration order.
func (t *Tree) Children(c Category) []Category {
	if !t.Valid(c) {
		return nil
	}
	return append([]Category(nil), t.nodes[c].children...)
}

// Roots returns the depth-1 categories in declaration order.
func (t *Tree) Roots() []Category {
	return append([]Category(nil), t.roots...)
}

// All returns every category in declaration order.
func (t *Tree) All() []Category {
	out := make([]Category, len(t.nodes))
	for i := range t.nodes {
		out[i] = Category(i)
	}
	return out
}

// IsAncestor reports whether a is a strict prefix of d.
func (t *Tree) IsAncestor(a, d Category) bool {
	if !t.Valid(a) || !t.Valid(d) {
		return false
	}
	for p, ok := t.Parent(d); ok; p, ok = t.Parent(p) {
		if p == a {
			return true
		}
	}
	return false
}

// Descendants returns c and every category below it, depth first.
func (t *Tree) Descendants(c Category) []Category {
	if !t.Valid(c) {
		return nil
	}
	out := []Category{c}
	for _, child := range t.nodes[c].children {
		out = append(out, t.Descendants(child)...)
	}
	return out
}

// =============================================================================
// Builder
// =============================================================================

// TreeBuilder declares categories and produces a Tree.
//
// Parents must be declared before their children. Declaring a path twice
// is a no-op.
//
// Thread Safety: Not safe for concurrent use.
type TreeBuilder struct {
	tree *Tree
}

// NewTreeBuilder returns an empty builder.
func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{tree: &Tree{byPath: make(map[string]Category)}}
}

// Declare adds the category at path.
//
// Inputs:
//
//	path - Dotted path. Every segment must be non-empty.
//
// Outputs:
//
//	Category - The interned category.
//	error - ErrEmptySegment or ErrMissingParent.
func (b *TreeBuilder) Declare(path string) (Category, error) {
	if c, ok := b.tree.byPath[path]; ok {
		return c, nil
	}
	segs := strings.Split(path, Separator)
	for _, s := range segs {
		if s == "" {
			return NoCategory, fmt.Errorf("%w: %q", ErrEmptySegment, path)
		}
	}

	parent := NoCategory
	if len(segs) > 1 {
		parentPath := strings.Join(segs[:len(segs)-1], Separator)
		p, ok := b.tree.byPath[parentPath]
		if !ok {
			return NoCategory, fmt.Errorf("%w: %q needs %q", ErrMissingParent, path, parentPath)
		}
		parent = p
	}

	c := Category(len(b.tree.nodes))
	b.tree.nodes = append(b.tree.nodes, categoryNode{
		segment: segs[len(segs)-1],
		path:    path,
		parent:  parent,
		depth:   len(segs),
	})
	b.tree.byPath[path] = c
	if parent == NoCategory {
		b.tree.roots = append(b.tree.roots, c)
	} else {
		b.tree.nodes[parent].children = append(b.tree.nodes[parent].children, c)
	}
	return c, nil
}

// Build returns the tree. The builder must not be used afterwards.
func (b *TreeBuilder) Build() *Tree {
	t := b.tree
	b.tree = nil
	return t
}

// BuildTree declares every path in order and returns the tree.
func BuildTree(paths ...string) (*Tree, error) {
	b := NewTreeBuilder()
	for _, p := range paths {
		if _, err := b.Declare(p); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// MustBuildTree is BuildTree that panics on error.
//
// A failure here means a static path list is inconsistent, which is a bug
// in the caller rather than a runtime condition.
func MustBuildTree(paths ...string) *Tree {
	t, err := BuildTree(paths...)
	if err != nil {
		panic(fmt.Sprintf("taxonomy: %v", err))
	}
	return t
}
