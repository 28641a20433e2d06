// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reconcile

import (
	"strings"

	"github.com/AleutianAI/pdgcheck/services/validator/callgraph"
	"github.com/AleutianAI/pdgcheck/services/validator/classify"
	"github.com/AleutianAI/pdgcheck/services/validator/report"
	"github.com/AleutianAI/pdgcheck/services/validator/taxonomy"
)

// Extra count rows.
const (
	CountProperParameterIn = "PDGProperParameterInEdges"
	CountUnmappedNodes     = "PDGUnmappedNodes"
	CountAliasDropped      = "IRAliasBindersDropped"
)

func pair(a, b string) report.Pair { return report.Pair{A: a, B: b} }

// DefaultPairs is the validation order. Pairs whose B side is N/A are
// listed for completeness and always render as N/A.
func DefaultPairs() []report.Pair {
	na := report.NA
	return []report.Pair{
		pair("PDGNode.Annotation.Global", classify.IRGlobalAnnotation),
		pair("PDGNode.Annotation.Other", Empty),
		pair("PDGNode.Annotation.Var", classify.IRCallAnnotation),
		pair("PDGNode.Annotation", na),
		pair("PDGNode.FunctionEntry", classify.RootIRFunction),
		pair("PDGNode.Inst.Br", "IRInstruction.Br + IRInstruction.CondBr"),
		pair("PDGNode.Inst.FunCall", "IRInstruction.Call - IRInstruction.Call.Annotation"),
		pair("PDGNode.Inst.Other", "IRInstruction - IRInstruction.Call - IRInstruction.Ret - IRInstruction.Br - IRInstruction.CondBr"),
		pair("PDGNode.Inst.Ret", classify.IRInstructionRet),
		pair("PDGNode.Inst", na),
		pair("PDGNode.Param.ActualIn.NonRoot", na),
		pair("PDGNode.Param.ActualIn.Root", na),
		pair("PDGNode.Param.ActualIn", na),
		pair("PDGNode.Param.ActualOut.NonRoot", na),
		pair("PDGNode.Param.ActualOut.Root", na),
		pair("PDGNode.Param.ActualOut", na),
		pair("PDGNode.Param.FormalIn.Root", classify.RootIRParameter),
		pair("PDGNode.Param.FormalIn.NonRoot", na),
		pair("PDGNode.Param.FormalIn", na),
		pair("PDGNode.Param.FormalOut.Root", classify.RootIRParameter),
		pair("PDGNode.Param.FormalOut.NonRoot", na),
		pair("PDGNode.Param.FormalOut", na),
		pair("PDGNode.Param", na),
		pair("PDGNode.VarNode.StaticFunction", classify.IRGlobalFunction),
		pair("PDGNode.VarNode.StaticGlobal", classify.IRGlobalOmni),
		pair("PDGNode.VarNode.StaticModule", classify.IRGlobalModule),
		pair("PDGNode.VarNode.StaticOther", Empty),
		pair("PDGNode.VarNode", na),
		pair("PDGNode", na),
		pair("PDGEdge.Anno.Global", "IRAnnoGlobal"),
		pair("PDGEdge.Anno.Other", Empty),
		pair("PDGEdge.Anno.Var", "IRAnnoVar"),
		pair("PDGEdge.Anno", na),
		pair("PDGEdge.ControlDep.Br", na),
		pair("PDGEdge.ControlDep.CallInv", classify.IREdgeCallInv),
		pair("PDGEdge.ControlDep.CallRet", classify.IREdgeCallRet),
		pair("PDGEdge.ControlDep.Entry", na),
		pair("PDGEdge.ControlDep.Other", na),
		pair("PDGEdge.ControlDep", na),
		pair("PDGEdge.DataDepEdge.Alias", classify.IREdgeAlias),
		pair("PDGEdge.DataDepEdge.DefUse", classify.DefUsePath(classify.Intra, "Plain")+" + "+classify.DefUsePath(classify.Inter, "Plain")),
		pair("PDGEdge.DataDepEdge.RAW", "IRRAW"),
		pair("PDGEdge.DataDepEdge.Ret", na),
		pair("PDGEdge.DataDepEdge", na),
		pair("PDGEdge.Parameter.Field", na),
		pair("PDGEdge.Parameter.In", na),
		pair("PDGEdge.Parameter.Out", na),
		pair("PDGEdge.Parameter", na),
		pair("PDGEdge", na),
		pair("XPDGEdge.ControlDep.CallInv.ViaExternal", na),
		pair("XPDGEdge.ControlDep.CallInv.Indirect", na),
		pair("XPDGEdge.ControlDep.CallRet.Indirect", na),
		pair("XPDGEdge.DataDepEdge.ViaExternal", na),
		pair("XPDGEdge.DataDepEdge.Indirect.Ret", na),
		pair("XPDGEdge.DataDepEdge.Indirect.Raw", na),
		pair("XPDGEdge.DataDepEdge.Indirect.DefUse", na),
		pair("XPDGEdge.DataDepEdge.Indirect", na),
		pair("XPDGEdge.DataDepEdge.Parameter.Indirect.Actual.In", na),
		pair("XPDGEdge.DataDepEdge.Parameter.Indirect.Actual.Out", na),
		pair("XPDGEdge.DataDepEdge.Parameter.Indirect.Formal.In", na),
		pair("XPDGEdge.DataDepEdge.Parameter.Indirect.Formal.Out", na),
		pair("Annotation Applications in MZN", na),
	}
}

// Orderings holds the row order of every report a run produces.
type Orderings struct {
	PDG        report.Ordering
	IR         report.Ordering
	Validation report.Ordering
}

// DefaultOrderings derives the orderings from tree.
//
// Description:
//
//	The PDG counts list every PDGNode and PDGEdge category in declaration
//	order, then the call-graph metrics and the PDG bookkeeping rows. The
//	IR counts list every IR fact and IREdge category, then the IR metrics.
//	Validations follow DefaultPairs.
func DefaultOrderings(tree *taxonomy.Tree) Orderings {
	pdgCounts := rootPaths(tree, classify.RootPDGNode, classify.RootPDGEdge)
	pdgCounts = append(pdgCounts, callgraph.PDGMetricNames...)
	pdgCounts = append(pdgCounts,
		CountProperParameterIn,
		CountUnmappedNodes,
		classify.ReportName(classify.RootPDGNode),
		classify.ReportName(classify.RootPDGEdge),
	)

	irCounts := rootPaths(tree,
		classify.RootIRFunction, classify.RootIRParameter, classify.RootIRGlobal,
		classify.RootIRInstruction, classify.RootIREdge)
	irCounts = append(irCounts, callgraph.IRMetricNames...)
	irCounts = append(irCounts,
		CountAliasDropped,
		classify.ReportName(classify.RootIRInstruction),
	)

	return Orderings{
		PDG:        report.NewOrdering(pdgCounts, nil),
		IR:         report.NewOrdering(irCounts, nil),
		Validation: report.NewOrdering(nil, DefaultPairs()),
	}
}

// rootPaths returns the paths of every category under the given roots, in
// declaration order.
func rootPaths(tree *taxonomy.Tree, roots ...string) []string {
	var out []string
	for _, c := range tree.All() {
		path := tree.Path(c)
		root, _, _ := strings.Cut(path, ".")
		for _, r := range roots {
			if root == r {
				out = append(out, path)
				break
			}
		}
	}
	return out
}
