// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"cmp"
	"slices"
)

// Pair names the two sides of a validation: A is the PDG side, B the IR
// side.
type Pair struct {
	A string `json:"a" yaml:"a"`
	B string `json:"b" yaml:"b"`
}

// Compare orders pairs lexicographically by A, then B.
func (p Pair) Compare(o Pair) int {
	if c := cmp.Compare(p.A, o.A); c != 0 {
		return c
	}
	return cmp.Compare(p.B, o.B)
}

// Ordering fixes the row order of a report.
//
// Named counts and pairs come first, in the given order, and render as
// N/A when never reported. Everything else follows, sorted
// lexicographically. An Ordering is a plain value passed to the writers;
// there is no package-level default.
type Ordering struct {
	counts []string
	pairs  []Pair
	cpos   map[string]int
	ppos   map[Pair]int
}

// NewOrdering builds an ordering. Duplicate names keep their first
// position.
func NewOrdering(counts []string, pairs []Pair) Ordering {
	o := Ordering{cpos: make(map[string]int), ppos: make(map[Pair]int)}
	o = o.WithCounts(counts...)
	return o.WithPairs(pairs...)
}

// WithCounts returns a copy of o with names appended to the count order.
func (o Ordering) WithCounts(names ...string) Ordering {
	out := o.clone()
	for _, n := range names {
		if _, dup := out.cpos[n]; dup {
			continue
		}
		out.cpos[n] = len(out.counts)
		out.counts = append(out.counts, n)
	}
	return out
}

// WithPairs returns a copy of o with pairs appended to the validation
// order.
func (o Ordering) WithPairs(pairs ...Pair) Ordering {
	out := o.clone()
	for _, p := range pairs {
		if _, dup := out.ppos[p]; dup {
			continue
		}
		out.ppos[p] = len(out.pairs)
		out.pairs = append(out.pairs, p)
	}
	return out
}

func (o Ordering) clone() Ordering {
	out := Ordering{
		counts: slices.Clone(o.counts),
		pairs:  slices.Clone(o.pairs),
		cpos:   make(map[string]int, len(o.cpos)),
		ppos:   make(map[Pair]int, len(o.ppos)),
	}
	for k, v := range o.cpos {
		out.cpos[k] = v
	}
	for k, v := range o.ppos {
		out.ppos[k] = v
	}
	return out
}

// Counts returns the named counts in order.
func (o Ordering) Counts() []string { return slices.Clone(o.counts) }

// Pairs returns the named pairs in order.
func (o Ordering) Pairs() []Pair { return slices.Clone(o.pairs) }

// arrangeCounts returns the ordered names followed by the extra names of
// reported, sorted.
func (o Ordering) arrangeCounts(reported []string) []string {
	out := slices.Clone(o.counts)
	var extra []string
	for _, n := range reported {
		if _, ok := o.cpos[n]; !ok {
			extra = append(extra, n)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// arrangePairs is arrangeCounts for pairs.
func (o Ordering) arrangePairs(reported []Pair) []Pair {
	out := slices.Clone(o.pairs)
	var extra []Pair
	for _, p := range reported {
		if _, ok := o.ppos[p]; !ok {
			extra = append(extra, p)
		}
	}
	slices.SortFunc(extra, Pair.Compare)
	return append(out, extra...)
}

// comparePairs orders pairs by their ordering position; unnamed pairs
// sort after named ones, lexicographically.
func (o Ordering) comparePairs(a, b Pair) int {
	ia, aok := o.ppos[a]
	ib, bok := o.ppos[b]
	switch {
	case aok && bok:
		return cmp.Compare(ia, ib)
	case aok:
		return -1
	case bok:
		return 1
	default:
		return a.Compare(b)
	}
}
