// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package groundtruth

import (
	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/alias"
	"github.com/AleutianAI/pdgcheck/services/validator/classify"
	"github.com/AleutianAI/pdgcheck/services/validator/fact"
	"github.com/AleutianAI/pdgcheck/services/validator/ir"
)

// aliasPairs are the (source, destination) kinds that yield alias edges.
var aliasPairs = map[[2]alias.Kind]bool{
	{alias.KindFunction, alias.KindFunction}:     true,
	{alias.KindFunction, alias.KindGlobal}:       true,
	{alias.KindFunction, alias.KindInstruction}:  true,
	{alias.KindParameter, alias.KindFunction}:    true,
	{alias.KindParameter, alias.KindGlobal}:      true,
	{alias.KindParameter, alias.KindInstruction}: true,
}

// AliasEdges turns resolved alias sets into edges keyed by category path.
//
// Description:
//
//	For every ordered pair (x, y) of distinct facts in one set, an edge
//	x -> y is kept when its kinds are a function or parameter source with
//	a function, global or instruction destination. The category is
//	IREdge.Alias.<kind x>.<kind y>.
func AliasEdges(res alias.Resolution) map[string]account.Set[fact.Edge] {
	out := make(map[string]account.Set[fact.Edge])
	for _, set := range res.Sets {
		for _, x := range set {
			for _, y := range set {
				if x.Fact == y.Fact || !aliasPairs[[2]alias.Kind{x.Kind, y.Kind}] {
					continue
				}
				path := classify.AliasPath(x.Kind.String(), y.Kind.String())
				if out[path] == nil {
					out[path] = account.NewSet[fact.Edge]()
				}
				out[path].Add(fact.NewEdge(x.Fact, y.Fact))
			}
		}
	}
	return out
}

// directCalls yields every call to a statically known, module-defined
// callee.
func directCalls(m *ir.Module, yield func(call *ir.Instruction, callee *ir.Function)) {
	for _, f := range m.Defined() {
		for _, inst := range f.Insts {
			if !inst.IsCall() || !inst.Callee.Static {
				continue
			}
			if callee, ok := m.Func(inst.Callee.Name); ok && !callee.Declaration {
				yield(inst, callee)
			}
		}
	}
}

// CallInvEdges returns (call site -> callee) for every direct call to a
// defined function.
func CallInvEdges(m *ir.Module) account.Set[fact.Edge] {
	out := account.NewSet[fact.Edge]()
	directCalls(m, func(call *ir.Instruction, callee *ir.Function) {
		out.Add(fact.NewEdge(call.ID(), callee.ID()))
	})
	return out
}

// CallRetEdges returns (ret -> call site) for every return of every
// directly called defined function. A callee with n returns yields n
// edges per call site.
func CallRetEdges(m *ir.Module) account.Set[fact.Edge] {
	out := account.NewSet[fact.Edge]()
	directCalls(m, func(call *ir.Instruction, callee *ir.Function) {
		for _, ret := range callee.Rets() {
			out.Add(fact.NewEdge(ret.ID(), call.ID()))
		}
	})
	return out
}

// AnnoGlobalEdges returns (annotated value -> annotation table) for the
// names referenced by the first field of each element of the table's
// initializer. A module without the table yields no edges.
func AnnoGlobalEdges(m *ir.Module, o classify.Options) account.Set[fact.Edge] {
	out := account.NewSet[fact.Edge]()
	g, ok := m.Global(o.AnnotationGlobal)
	if !ok || g.Init == nil {
		return out
	}
	for _, elem := range g.Init.Elems {
		if elem.Kind != ir.OperandConstant || len(elem.Elems) == 0 {
			continue
		}
		for _, name := range elem.Elems[0].Names() {
			out.Add(fact.NewEdge(fact.Global(name), g.ID()))
		}
	}
	return out
}
