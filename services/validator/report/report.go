// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report collects counts, validation tuples and difference
// elements, and renders them as CSV tables.
//
// A Report is an accumulator; it never fails. Row order is decided at
// render time by an Ordering value.
package report

import (
	"cmp"
	"maps"
	"slices"

	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/fact"
)

// NA renders a count or tuple that was named but never reported.
const NA = "N/A"

// Direction of a difference element relative to its pair.
type Direction int

const (
	// AMinusB elements are claimed by A and missing from B.
	AMinusB Direction = iota

	// BMinusA elements are expected by B and missing from A.
	BMinusA
)

// Difference is one element found on only one side of a pair.
type Difference struct {
	Pair      Pair
	Direction Direction
	Element   fact.Element
}

// From returns the name of the side holding the element.
func (d Difference) From() string {
	if d.Direction == AMinusB {
		return d.Pair.A
	}
	return d.Pair.B
}

// To returns the name of the side missing the element.
func (d Difference) To() string {
	if d.Direction == AMinusB {
		return d.Pair.B
	}
	return d.Pair.A
}

// Report accumulates results.
//
// Thread Safety: Not safe for concurrent use.
type Report struct {
	counts      map[string]int
	validations map[Pair]account.Tuple
	diffs       []Difference
}

// New returns an empty report.
func New() *Report {
	return &Report{
		counts:      make(map[string]int),
		validations: make(map[Pair]account.Tuple),
	}
}

// SetCount records a count, replacing any earlier value.
func (r *Report) SetCount(name string, n int) {
	r.counts[name] = n
}

// SetCounts records every entry of counts.
func (r *Report) SetCounts(counts map[string]int) {
	maps.Copy(r.counts, counts)
}

// Count returns a recorded count.
func (r *Report) Count(name string) (int, bool) {
	n, ok := r.counts[name]
	return n, ok
}

// Validation returns a recorded tuple.
func (r *Report) Validation(p Pair) (account.Tuple, bool) {
	t, ok := r.validations[p]
	return t, ok
}

// Validations returns every recorded pair and tuple.
func (r *Report) Validations() map[Pair]account.Tuple {
	return maps.Clone(r.validations)
}

// Differences returns the recorded differences in insertion order.
func (r *Report) Differences() []Difference {
	return slices.Clone(r.diffs)
}

// Reconcile records acc under (nameA, nameB).
//
// Description:
//
//	|A| and |B| are recorded as counts named nameA and nameB, the tuple
//	under the pair, and each element of A-B and B-A as a Difference.
//	Reconciling the same pair twice replaces the tuple and appends the
//	new differences.
func Reconcile[T fact.Fact](r *Report, nameA, nameB string, acc account.Account[T]) {
	p := Pair{A: nameA, B: nameB}
	t := acc.Tuple()
	r.counts[nameA] = t.A
	r.counts[nameB] = t.B
	r.validations[p] = t
	for x := range acc.AMinusB() {
		r.diffs = append(r.diffs, Difference{Pair: p, Direction: AMinusB, Element: x.Element()})
	}
	for x := range acc.BMinusA() {
		r.diffs = append(r.diffs, Difference{Pair: p, Direction: BMinusA, Element: x.Element()})
	}
}

// CountRow is one rendered count.
type CountRow struct {
	Name  string
	Value int

	// Available is false for N/A rows.
	Available bool
}

// CountRows returns the counts in o's order.
func (r *Report) CountRows(o Ordering) []CountRow {
	names := o.arrangeCounts(slices.Collect(maps.Keys(r.counts)))
	out := make([]CountRow, 0, len(names))
	for _, n := range names {
		v, ok := r.counts[n]
		out = append(out, CountRow{Name: n, Value: v, Available: ok})
	}
	return out
}

// ValidationRow is one rendered validation.
type ValidationRow struct {
	Pair      Pair
	Tuple     account.Tuple
	Available bool
}

// ValidationRows returns the validations in o's order.
func (r *Report) ValidationRows(o Ordering) []ValidationRow {
	pairs := o.arrangePairs(slices.Collect(maps.Keys(r.validations)))
	out := make([]ValidationRow, 0, len(pairs))
	for _, p := range pairs {
		t, ok := r.validations[p]
		out = append(out, ValidationRow{Pair: p, Tuple: t, Available: ok})
	}
	return out
}

// DifferenceRows returns the differences sorted by pair order, then
// direction, then element text.
func (r *Report) DifferenceRows(o Ordering) []Difference {
	out := slices.Clone(r.diffs)
	slices.SortStableFunc(out, func(a, b Difference) int {
		if c := o.comparePairs(a.Pair, b.Pair); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Direction, b.Direction); c != 0 {
			return c
		}
		return cmp.Compare(a.Element.String(), b.Element.String())
	})
	return out
}
