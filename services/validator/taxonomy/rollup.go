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
	"slices"
	"strings"

	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/fact"
)

// Rollup unions every category's facts into its ancestors.
//
// Description:
//
//	Let k be the deepest present category. For k down to 2, every present
//	category of depth k is unioned into its parent, creating the parent
//	entry if needed. Afterwards facts(D) ⊆ facts(C) whenever C is a strict
//	prefix of D. The operation only adds facts, so running it again
//	changes nothing.
//
// Outputs:
//
//	error - ErrIndexFrozen if the index is frozen.
func (x *Index[F]) Rollup() error {
	if x.frozen {
		return ErrIndexFrozen
	}

	maxDepth := 0
	for c := range x.sets {
		if d := x.tree.Depth(c); d > maxDepth {
			maxDepth = d
		}
	}

	for k := maxDepth; k >= 2; k-- {
		var level []Category
		for c := range x.sets {
			if x.tree.Depth(c) == k {
				level = append(level, c)
			}
		}
		for _, c := range level {
			parent, ok := x.tree.Parent(c)
			if !ok {
				continue
			}
			x.entry(parent).AddSet(x.sets[c])
		}
	}
	return nil
}

// RollupCheck is the self-check result for one parent category.
type RollupCheck[F fact.Fact] struct {
	// Parent is the category whose stored set was checked.
	Parent Category

	// ParentPath is the dotted path of Parent.
	ParentPath string

	// Children names the present immediate children joined by " + ",
	// sorted, e.g. "PDGNode.Inst.Br + PDGNode.Inst.Ret".
	Children string

	// Account compares the parent's stored set (A) with the union of its
	// present immediate children (B).
	Account account.Account[F]
}

// CheckRollup reconciles every present category that has present children
// against the union of those children.
//
// Description:
//
//	A non-empty difference means a classifier tagged a fact at the parent
//	level without a matching child rule, or the reverse. Results are in
//	tree declaration order of the parent.
//
// Outputs:
//
//	[]RollupCheck[F] - One entry per parent with at least one present child.
func CheckRollup[F fact.Fact](x *Index[F]) []RollupCheck[F] {
	var out []RollupCheck[F]
	for _, parent := range x.Present() {
		var names []string
		union := make(account.Set[F])
		for _, child := range x.tree.Children(parent) {
			if !x.Has(child) {
				continue
			}
			names = append(names, x.tree.Path(child))
			union.AddSet(x.sets[child])
		}
		if len(names) == 0 {
			continue
		}
		slices.Sort(names)
		out = append(out, RollupCheck[F]{
			Parent:     parent,
			ParentPath: x.tree.Path(parent),
			Children:   strings.Join(names, " + "),
			Account:    account.New(x.sets[parent], union),
		})
	}
	return out
}
