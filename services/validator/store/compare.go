// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/report"
)

// Change is a validation row whose tuple differs between two runs.
type Change struct {
	Pair report.Pair `json:"pair"`

	// Before is absent when the pair was not evaluated in the base run.
	Before    account.Tuple `json:"before"`
	HasBefore bool          `json:"has_before"`

	After    account.Tuple `json:"after"`
	HasAfter bool          `json:"has_after"`
}

// Comparison is the outcome of Compare.
type Comparison struct {
	Base   string `json:"base"`
	Target string `json:"target"`

	// Regressed are pairs unbalanced in the target but balanced (or
	// absent) in the base. Fixed is the reverse.
	Regressed []report.Pair `json:"regressed"`
	Fixed     []report.Pair `json:"fixed"`

	// Changed lists every pair whose tuple moved, in target row order
	// followed by pairs only the base evaluated.
	Changed []Change `json:"changed"`

	// Counts maps count names whose value moved to (base, target).
	Counts map[string][2]int `json:"counts,omitempty"`
}

// Clean reports whether nothing regressed.
func (c Comparison) Clean() bool { return len(c.Regressed) == 0 }

// Compare reconciles the unbalanced pairs of target against base.
//
// Description:
//
//	The unbalanced pairs of each run form a set. The account of
//	(target, base) yields the regressions as A-B and the fixes as B-A.
//	Tuples and counts that moved are listed regardless of balance.
func Compare(base, target *Run) Comparison {
	c := Comparison{Base: base.ID, Target: target.ID, Counts: make(map[string][2]int)}

	before := make(map[report.Pair]account.Tuple, len(base.Rows))
	order := make([]report.Pair, 0, len(target.Rows)+len(base.Rows))
	for _, r := range base.Rows {
		before[r.Pair] = r.Tuple
	}
	after := make(map[report.Pair]account.Tuple, len(target.Rows))
	for _, r := range target.Rows {
		after[r.Pair] = r.Tuple
		order = append(order, r.Pair)
	}
	for _, r := range base.Rows {
		if _, ok := after[r.Pair]; !ok {
			order = append(order, r.Pair)
		}
	}

	unbalanced := func(rows map[report.Pair]account.Tuple) account.Set[report.Pair] {
		out := account.NewSet[report.Pair]()
		for p, t := range rows {
			if !t.Balanced() {
				out.Add(p)
			}
		}
		return out
	}
	acc := account.New(unbalanced(after), unbalanced(before))
	regressed, fixed := acc.AMinusB(), acc.BMinusA()

	for _, p := range order {
		b, hasB := before[p]
		a, hasA := after[p]
		if regressed.Has(p) {
			c.Regressed = append(c.Regressed, p)
		}
		if fixed.Has(p) {
			c.Fixed = append(c.Fixed, p)
		}
		if hasA == hasB && a == b {
			continue
		}
		c.Changed = append(c.Changed, Change{Pair: p, Before: b, HasBefore: hasB, After: a, HasAfter: hasA})
	}

	for name, a := range target.Counts {
		if b := base.Counts[name]; a != b {
			c.Counts[name] = [2]int{b, a}
		}
	}
	for name, b := range base.Counts {
		if _, ok := target.Counts[name]; !ok {
			c.Counts[name] = [2]int{b, 0}
		}
	}
	return c
}
