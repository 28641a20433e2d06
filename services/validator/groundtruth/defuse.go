// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package groundtruth derives the edges a correct PDG must contain from
// the IR module and the alias sets.
//
// Def-use limitation: edges are found by a single forward sweep over each
// function's instructions in block order. A local reference yields an edge
// only when its definition was already seen, so loop-carried phi inputs
// that name a later definition are not reported. Global references are not
// ordered and always yield an edge from the global.
package groundtruth

import (
	"strings"

	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/classify"
	"github.com/AleutianAI/pdgcheck/services/validator/fact"
	"github.com/AleutianAI/pdgcheck/services/validator/ir"
)

// DefUse holds the partitioned def-use edges of a module.
type DefUse struct {
	// Intra edges run between values of one function.
	Intra account.Set[fact.Edge]

	// Inter edges run from a global to its users.
	Inter account.Set[fact.Edge]

	// Parts maps each def-use category path to its edges. Every edge of
	// Intra and Inter is in exactly one part.
	Parts map[string]account.Set[fact.Edge]

	// AnnoVar is every def-use edge touching an annotation call.
	AnnoVar account.Set[fact.Edge]
}

// DefUseEdges sweeps every defined function of m.
//
// Description:
//
//	The defined-name set of a function starts with its parameters. Each
//	instruction's operands are walked recursively; a local already defined
//	yields (definition -> instruction), and a reference to an internal
//	global (one with an initializer and non-private linkage) yields
//	(global -> instruction). The instruction's result is defined after its
//	operands are inspected.
//
//	Edges are partitioned in priority order: annotation-var (an endpoint
//	calls the annotation intrinsic), annotation-global (an endpoint calls
//	a function named after the annotation table, or the source is the
//	table), intrinsic (an endpoint calls an intrinsic), plain.
func DefUseEdges(m *ir.Module, o classify.Options) DefUse {
	du := DefUse{
		Intra:   account.NewSet[fact.Edge](),
		Inter:   account.NewSet[fact.Edge](),
		Parts:   make(map[string]account.Set[fact.Edge]),
		AnnoVar: account.NewSet[fact.Edge](),
	}

	internal := make(map[string]fact.ID)
	for _, g := range m.Globals {
		if strings.HasPrefix(classify.GlobalCategory(m, g, o), classify.IRGlobalInternal) {
			internal[g.Name] = g.ID()
		}
	}

	for _, f := range m.Defined() {
		defined := make(map[string]fact.ID, len(f.Params)+len(f.Insts))
		for _, p := range f.Params {
			defined[p.Name] = f.ParamID(p)
		}
		for _, inst := range f.Insts {
			to := inst.ID()
			for _, op := range inst.Operands {
				op.Walk(func(x ir.Operand) {
					switch x.Kind {
					case ir.OperandLocal:
						if from, ok := defined[x.Name]; ok {
							du.Intra.Add(fact.NewEdge(from, to))
						}
					case ir.OperandGlobal:
						if from, ok := internal[x.Name]; ok {
							du.Inter.Add(fact.NewEdge(from, to))
						}
					}
				})
			}
			if inst.Result != "" {
				defined[inst.Result] = to
			}
		}
	}

	for _, loc := range []string{classify.Intra, classify.Inter} {
		for _, k := range classify.DefUseKinds {
			du.Parts[classify.DefUsePath(loc, k)] = account.NewSet[fact.Edge]()
		}
	}
	part := func(loc string, edges account.Set[fact.Edge]) {
		for e := range edges {
			kind := defUseKind(m, e, o)
			du.Parts[classify.DefUsePath(loc, kind)].Add(e)
			if kind == "AnnoVar" {
				du.AnnoVar.Add(e)
			}
		}
	}
	part(classify.Intra, du.Intra)
	part(classify.Inter, du.Inter)
	return du
}

func defUseKind(m *ir.Module, e fact.Edge, o classify.Options) string {
	switch {
	case touches(m, e, o.AnnotationIntrinsic):
		return "AnnoVar"
	case touches(m, e, o.AnnotationGlobal), e.From == fact.Global(o.AnnotationGlobal):
		return "AnnoGlobal"
	case touches(m, e, o.IntrinsicMarker):
		return "Intrinsic"
	default:
		return "Plain"
	}
}

// touches reports whether either endpoint of e is a call whose callee
// name contains substr.
func touches(m *ir.Module, e fact.Edge, substr string) bool {
	for _, id := range []fact.ID{e.From, e.To} {
		if inst, ok := m.Instruction(id); ok && inst.CalleeContains(substr) {
			return true
		}
	}
	return false
}

// AnnoVarEdges returns the expected annotation-var edges: every def-use
// edge touching an annotation call, plus (function -> annotated value)
// for the destination of each.
func AnnoVarEdges(du DefUse) account.Set[fact.Edge] {
	out := du.AnnoVar.Clone()
	for e := range du.AnnoVar {
		out.Add(fact.NewEdge(fact.Global(e.To.Function()), e.To))
	}
	return out
}
