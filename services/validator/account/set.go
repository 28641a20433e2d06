// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package account

import (
	"slices"
)

// Set is an unordered collection of distinct comparable values.
//
// The zero value is an empty, read-only set; use NewSet or make before
// adding. Iteration order is unspecified; use Sorted for deterministic
// output.
type Set[T comparable] map[T]struct{}

// NewSet returns a set holding items.
func NewSet[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add inserts items into s.
func (s Set[T]) Add(items ...T) {
	for _, item := range items {
		s[item] = struct{}{}
	}
}

// AddSet inserts every member of other into s.
func (s Set[T]) AddSet(other Set[T]) {
	for item := range other {
		s[item] = struct{}{}
	}
}

// Has reports whether item is a member of s.
func (s Set[T]) Has(item T) bool {
	_, ok := s[item]
	return ok
}

// Len returns the number of members.
func (s Set[T]) Len() int {
	return len(s)
}

// Clone returns an independent copy of s.
func (s Set[T]) Clone() Set[T] {
	out := make(Set[T], len(s))
	for item := range s {
		out[item] = struct{}{}
	}
	return out
}

// Union returns a new set with the members of s and other.
func (s Set[T]) Union(other Set[T]) Set[T] {
	out := s.Clone()
	out.AddSet(other)
	return out
}

// Difference returns a new set with the members of s not in other.
func (s Set[T]) Difference(other Set[T]) Set[T] {
	out := make(Set[T])
	for item := range s {
		if !other.Has(item) {
			out[item] = struct{}{}
		}
	}
	return out
}

// Intersect returns a new set with the members common to s and other.
func (s Set[T]) Intersect(other Set[T]) Set[T] {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(Set[T])
	for item := range small {
		if large.Has(item) {
			out[item] = struct{}{}
		}
	}
	return out
}

// SubsetOf reports whether every member of s is in other.
func (s Set[T]) SubsetOf(other Set[T]) bool {
	if len(s) > len(other) {
		return false
	}
	for item := range s {
		if !other.Has(item) {
			return false
		}
	}
	return true
}

// Equal reports whether s and other have the same members.
func (s Set[T]) Equal(other Set[T]) bool {
	return len(s) == len(other) && s.SubsetOf(other)
}

// Items returns the members of s in unspecified order.
func (s Set[T]) Items() []T {
	out := make([]T, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	return out
}

// Sorted returns the members of s ordered by cmp.
func Sorted[T comparable](s Set[T], cmp func(a, b T) int) []T {
	out := s.Items()
	slices.SortFunc(out, cmp)
	return out
}

// Map returns the image of s under fn, dropping members for which fn
// reports false.
func Map[T, U comparable](s Set[T], fn func(T) (U, bool)) Set[U] {
	out := make(Set[U], len(s))
	for item := range s {
		if mapped, ok := fn(item); ok {
			out[mapped] = struct{}{}
		}
	}
	return out
}

// Filter returns the members of s that satisfy keep.
func Filter[T comparable](s Set[T], keep func(T) bool) Set[T] {
	out := make(Set[T])
	for item := range s {
		if keep(item) {
			out[item] = struct{}{}
		}
	}
	return out
}
