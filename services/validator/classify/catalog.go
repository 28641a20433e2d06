// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"github.com/AleutianAI/pdgcheck/services/validator/ir"
	"github.com/AleutianAI/pdgcheck/services/validator/taxonomy"
)

// Category paths the validator refers to directly.
const (
	RootPDGNode       = "PDGNode"
	RootPDGEdge       = "PDGEdge"
	RootIRFunction    = "IRFunction"
	RootIRParameter   = "IRParameter"
	RootIRGlobal      = "IRGlobal"
	RootIRInstruction = "IRInstruction"
	RootIREdge        = "IREdge"

	IRParameterIn = "IRParameter.In"

	IRGlobalExternal   = "IRGlobal.External"
	IRGlobalInternal   = "IRGlobal.Internal"
	IRGlobalAnnotation = "IRGlobal.Internal.Annotation"
	IRGlobalFunction   = "IRGlobal.Internal.Function"
	IRGlobalModule     = "IRGlobal.Internal.Module"
	IRGlobalOmni       = "IRGlobal.Internal.Omni"

	IRCall               = "IRInstruction.Call"
	IRCallIntrinsic      = "IRInstruction.Call.Intrinsic"
	IRCallAnnotation     = "IRInstruction.Call.Annotation"
	IRCallPointer        = "IRInstruction.Call.Pointer"
	IRCallInternal       = "IRInstruction.Call.Internal"
	IRCallInternalVarArg = "IRInstruction.Call.Internal.VarArg"
	IRCallInternalNonVar = "IRInstruction.Call.Internal.NonVarArg"
	IRCallExternal       = "IRInstruction.Call.External"
	IRCallExternalNonVar = "IRInstruction.Call.External.NonVarArg"
	IRInstructionRet     = "IRInstruction.Ret"
	IRInstructionBr      = "IRInstruction.Br"
	IRInstructionCondBr  = "IRInstruction.CondBr"

	IREdgeDefUse     = "IREdge.DefUse"
	IREdgeAlias      = "IREdge.Alias"
	IREdgeCallInv    = "IREdge.CallInv"
	IREdgeCallRet    = "IREdge.CallRet"
	IREdgeAnnoVar    = "IREdge.AnnoVar"
	IREdgeAnnoGlobal = "IREdge.AnnoGlobal"
)

// Def-use partition segments, in priority order.
var DefUseKinds = []string{"AnnoVar", "AnnoGlobal", "Intrinsic", "Plain"}

// Def-use locality segments.
const (
	Intra = "Intra"
	Inter = "Inter"
)

// DefUsePath returns the category of a def-use edge, e.g.
// "IREdge.DefUse.Intra.Plain".
func DefUsePath(locality, kind string) string {
	return IREdgeDefUse + "." + locality + "." + kind
}

// AliasPath returns the category of an alias edge, e.g.
// "IREdge.Alias.Parameter.Global".
func AliasPath(src, dst string) string {
	return IREdgeAlias + "." + src + "." + dst
}

// Alias edge endpoint kinds. Sources are limited to AliasSources.
var (
	AliasSources      = []string{"Function", "Parameter"}
	AliasDestinations = []string{"Function", "Global", "Instruction"}
)

// PDGNodeCategories lists the PDG node categories in report order.
func PDGNodeCategories() []string {
	out := []string{
		"PDGNode",
		"PDGNode.Inst",
		"PDGNode.Inst.FunCall",
		"PDGNode.Inst.Ret",
		"PDGNode.Inst.Br",
		"PDGNode.Inst.Other",
		"PDGNode.VarNode",
		"PDGNode.VarNode.StaticGlobal",
		"PDGNode.VarNode.StaticModule",
		"PDGNode.VarNode.StaticFunction",
		"PDGNode.VarNode.StaticOther",
		"PDGNode.FunctionEntry",
		"PDGNode.Param",
	}
	for _, p := range []string{"FormalIn", "FormalOut", "ActualIn", "ActualOut"} {
		base := "PDGNode.Param." + p
		out = append(out, base, base+".Root", base+".NonRoot")
	}
	return append(out,
		"PDGNode.Annotation",
		"PDGNode.Annotation.Var",
		"PDGNode.Annotation.Global",
		"PDGNode.Annotation.Other",
	)
}

// PDGEdgeCategories lists the PDG edge categories in report order.
func PDGEdgeCategories() []string {
	return []string{
		"PDGEdge",
		"PDGEdge.ControlDep",
		"PDGEdge.ControlDep.CallInv",
		"PDGEdge.ControlDep.CallRet",
		"PDGEdge.ControlDep.Entry",
		"PDGEdge.ControlDep.Br",
		"PDGEdge.ControlDep.Other",
		"PDGEdge.DataDepEdge",
		"PDGEdge.DataDepEdge.DefUse",
		"PDGEdge.DataDepEdge.RAW",
		"PDGEdge.DataDepEdge.Ret",
		"PDGEdge.DataDepEdge.Alias",
		"PDGEdge.Parameter",
		"PDGEdge.Parameter.In",
		"PDGEdge.Parameter.Out",
		"PDGEdge.Parameter.Field",
		"PDGEdge.Anno",
		"PDGEdge.Anno.Global",
		"PDGEdge.Anno.Var",
		"PDGEdge.Anno.Other",
	}
}

// IRCategories lists the IR fact categories in report order.
func IRCategories() []string {
	out := []string{
		RootIRFunction,
		RootIRParameter,
		IRParameterIn,
		RootIRGlobal,
		IRGlobalExternal,
		IRGlobalInternal,
		IRGlobalAnnotation,
		IRGlobalFunction,
		IRGlobalModule,
		IRGlobalOmni,
		RootIRInstruction,
	}
	for _, op := range ir.Instructions {
		out = append(out, RootIRInstruction+"."+string(op))
		if op == ir.OpCall {
			out = append(out,
				IRCallIntrinsic,
				IRCallAnnotation,
				IRCallPointer,
				IRCallInternal,
				IRCallInternalVarArg,
				IRCallInternalNonVar,
				IRCallExternal,
				IRCallExternalNonVar,
			)
		}
	}
	for _, op := range ir.Terminators {
		out = append(out, RootIRInstruction+"."+string(op))
	}
	return out
}

// IREdgeCategories lists the ground-truth edge categories in report order.
func IREdgeCategories() []string {
	out := []string{RootIREdge, IREdgeDefUse}
	for _, loc := range []string{Intra, Inter} {
		out = append(out, IREdgeDefUse+"."+loc)
		for _, k := range DefUseKinds {
			out = append(out, DefUsePath(loc, k))
		}
	}
	out = append(out, IREdgeAlias)
	for _, src := range AliasSources {
		out = append(out, IREdgeAlias+"."+src)
		for _, dst := range AliasDestinations {
			out = append(out, AliasPath(src, dst))
		}
	}
	return append(out, IREdgeCallInv, IREdgeCallRet, IREdgeAnnoVar, IREdgeAnnoGlobal)
}

// NewCatalog builds the closed category tree shared by every index.
//
// The tree is built once per run and passed down; a failure means the
// static lists above are inconsistent.
func NewCatalog() *taxonomy.Tree {
	var paths []string
	paths = append(paths, PDGNodeCategories()...)
	paths = append(paths, PDGEdgeCategories()...)
	paths = append(paths, IRCategories()...)
	paths = append(paths, IREdgeCategories()...)
	return taxonomy.MustBuildTree(paths...)
}
