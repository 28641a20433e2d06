// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package alias

import (
	"github.com/AleutianAI/pdgcheck/services/validator/fact"
	"github.com/AleutianAI/pdgcheck/services/validator/ir"
)

// Kind is the IR kind of a resolved binder.
type Kind int

const (
	KindFunction Kind = iota + 1
	KindGlobal
	KindInstruction
	KindParameter
)

// String returns the category segment for k.
func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "Function"
	case KindGlobal:
		return "Global"
	case KindInstruction:
		return "Instruction"
	case KindParameter:
		return "Parameter"
	default:
		return "Unknown"
	}
}

// Resolved is a binder mapped to its IR identity.
type Resolved struct {
	Binder Binder
	Fact   fact.ID
	Kind   Kind
}

// Resolve maps b onto m.
//
// Description:
//
//	A global binder resolves to a defined function (KindFunction) or to a
//	non-private global variable (KindGlobal). A local binder resolves to
//	a parameter (KindParameter) or an instruction result (KindInstruction)
//	of its function. Declarations and private globals are not IR facts and
//	do not resolve.
func Resolve(m *ir.Module, b Binder) (Resolved, bool) {
	if b.IsGlobal() {
		if m.Defines(b.Name) {
			return Resolved{Binder: b, Fact: fact.Global(b.Name), Kind: KindFunction}, true
		}
		if g, ok := m.Global(b.Name); ok && g.Linkage != ir.LinkagePrivate {
			return Resolved{Binder: b, Fact: g.ID(), Kind: KindGlobal}, true
		}
		return Resolved{}, false
	}

	id, ok := m.LocalID(b.Function, b.Name)
	if !ok {
		return Resolved{}, false
	}
	kind := KindInstruction
	if id.Kind == fact.KindLocal {
		kind = KindParameter
	}
	return Resolved{Binder: b, Fact: id, Kind: kind}, true
}

// Resolution is the result of resolving every set.
type Resolution struct {
	// Sets holds the resolved members of each input set, in input order.
	Sets [][]Resolved

	// Dropped lists binders that did not resolve, in input order.
	Dropped []Binder
}

// ResolveAll resolves the binders of every set against m.
func ResolveAll(m *ir.Module, sets []*Set) Resolution {
	var res Resolution
	for _, s := range sets {
		members := make([]Resolved, 0, len(s.Binders))
		for _, b := range s.Binders {
			r, ok := Resolve(m, b)
			if !ok {
				res.Dropped = append(res.Dropped, b)
				continue
			}
			members = append(members, r)
		}
		res.Sets = append(res.Sets, members)
	}
	return res
}
