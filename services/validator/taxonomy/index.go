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
	"slices"

	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/fact"
)

// Index maps categories of one Tree to sets of facts.
//
// A category is "present" once it has been inserted into or forced with
// InsertEmpty. Absent categories read as empty sets but are not reported
// by Sizes, which lets callers distinguish "zero" from "never seen".
//
// Thread Safety: Not safe for concurrent use while building. After Freeze
// the index is read-only and may be shared.
type Index[F fact.Fact] struct {
	tree   *Tree
	sets   map[Category]account.Set[F]
	frozen bool
}

// NewIndex returns an empty index over tree.
func NewIndex[F fact.Fact](tree *Tree) *Index[F] {
	return &Index[F]{
		tree: tree,
		sets: make(map[Category]account.Set[F]),
	}
}

// Tree returns the category tree of the index.
func (x *Index[F]) Tree() *Tree {
	return x.tree
}

func (x *Index[F]) checkWrite(c Category) error {
	if x.frozen {
		return ErrIndexFrozen
	}
	if !x.tree.Valid(c) {
		return fmt.Errorf("%w: %d", ErrUnknownCategory, c)
	}
	return nil
}

func (x *Index[F]) entry(c Category) account.Set[F] {
	s, ok := x.sets[c]
	if !ok {
		s = make(account.Set[F])
		x.sets[c] = s
	}
	return s
}

// Insert adds f to category c.
func (x *Index[F]) Insert(c Category, f F) error {
	if err := x.checkWrite(c); err != nil {
		return err
	}
	x.entry(c).Add(f)
	return nil
}

// InsertAll adds every fact in fs to category c.
//
// An empty fs still marks c as present.
func (x *Index[F]) InsertAll(c Category, fs ...F) error {
	if err := x.checkWrite(c); err != nil {
		return err
	}
	x.entry(c).Add(fs...)
	return nil
}

// InsertSet adds every member of s to category c.
func (x *Index[F]) InsertSet(c Category, s account.Set[F]) error {
	if err := x.checkWrite(c); err != nil {
		return err
	}
	x.entry(c).AddSet(s)
	return nil
}

// InsertEmpty marks c as present without adding facts.
//
// Seeding every known category this way makes absent categories report
// as 0 rather than disappearing from the output.
func (x *Index[F]) InsertEmpty(c Category) error {
	if err := x.checkWrite(c); err != nil {
		return err
	}
	x.entry(c)
	return nil
}

// Get returns the facts of c.
//
// Unknown or absent categories yield an empty set, never an error. The
// returned set must not be modified.
func (x *Index[F]) Get(c Category) account.Set[F] {
	if s, ok := x.sets[c]; ok {
		return s
	}
	return account.Set[F]{}
}

// GetPath is Get by dotted path.
func (x *Index[F]) GetPath(path string) account.Set[F] {
	c, ok := x.tree.Lookup(path)
	if !ok {
		return account.Set[F]{}
	}
	return x.Get(c)
}

// Has reports whether c is present.
func (x *Index[F]) Has(c Category) bool {
	_, ok := x.sets[c]
	return ok
}

// Present returns the present categories in tree declaration order.
func (x *Index[F]) Present() []Category {
	out := make([]Category, 0, len(x.sets))
	for c := range x.sets {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Sizes returns the size of every present category.
func (x *Index[F]) Sizes() map[Category]int {
	out := make(map[Category]int, len(x.sets))
	for c, s := range x.sets {
		out[c] = s.Len()
	}
	return out
}

// PathSizes returns Sizes keyed by dotted path.
func (x *Index[F]) PathSizes() map[string]int {
	out := make(map[string]int, len(x.sets))
	for c, s := range x.sets {
		out[x.tree.Path(c)] = s.Len()
	}
	return out
}

// Freeze makes the index read-only.
func (x *Index[F]) Freeze() {
	x.frozen = true
}

// Frozen reports whether Freeze has been called.
func (x *Index[F]) Frozen() bool {
	return x.frozen
}

// Clone returns an unfrozen deep copy of x.
func (x *Index[F]) Clone() *Index[F] {
	out := NewIndex[F](x.tree)
	for c, s := range x.sets {
		out.sets[c] = s.Clone()
	}
	return out
}

// Equal reports whether x and other have the same present categories with
// the same facts.
func (x *Index[F]) Equal(other *Index[F]) bool {
	if len(x.sets) != len(other.sets) {
		return false
	}
	for c, s := range x.sets {
		o, ok := other.sets[c]
		if !ok || !s.Equal(o) {
			return false
		}
	}
	return true
}
