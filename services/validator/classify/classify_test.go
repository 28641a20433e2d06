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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pdgcheck/services/validator/fact"
	"github.com/AleutianAI/pdgcheck/services/validator/ir"
	"github.com/AleutianAI/pdgcheck/services/validator/pdg"
)

func TestNewCatalog(t *testing.T) {
	tree := NewCatalog()

	for _, p := range []string{
		"PDGNode.Param.FormalIn.Root",
		"PDGEdge.DataDepEdge.Alias",
		IRCallInternalVarArg,
		"IRInstruction.CondBr",
		"IRInstruction.GetElementPtr",
		DefUsePath(Inter, "AnnoGlobal"),
		AliasPath("Parameter", "Instruction"),
		IREdgeAnnoGlobal,
	} {
		_, ok := tree.Lookup(p)
		assert.True(t, ok, p)
	}

	_, ok := tree.Lookup("PDGNode.Param.FormalIn.Leaf")
	assert.False(t, ok)
	_, ok = tree.Lookup(AliasPath("Global", "Function"))
	assert.False(t, ok, "globals are never alias sources")
}

func classifyModule(t *testing.T) *ir.Module {
	t.Helper()
	main := ir.NewFunc("main", "argc").
		Sig("i32 (i32)", false).
		Inst("Alloca", "x").
		Call("", "llvm.dbg.declare", ir.Local("x")).
		Call("", "llvm.var.annotation", ir.Local("x")).
		CallPtr("p", "void ()", ir.Local("fp")).
		Call("", "helper").
		Call("", "logf").
		Call("", "printf").
		Inst(ir.OpCondBr, "", ir.Local("argc")).
		Ret(ir.Local("argc")).
		Build()
	helper := ir.NewFunc("helper").Ret().Build()
	logf := ir.NewFunc("logf", "fmt").Sig("void (i8*, ...)", true).Ret().Build()
	printf := ir.Declare("printf", "i32 (i8*, ...)", true)

	init := ir.Const()
	m, err := ir.NewModule("t", []*ir.Function{main, helper, logf, printf}, []*ir.Global{
		{Name: ".str", Linkage: ir.LinkagePrivate, Init: &init},
		{Name: "llvm.global.annotations", Linkage: ir.LinkageExternal, Init: &init},
		{Name: "errno", Linkage: ir.LinkageExternal},
		{Name: "main.counter", Linkage: ir.LinkageInternal, Init: &init},
		{Name: "table", Linkage: ir.LinkageInternal, Init: &init},
		{Name: "config", Linkage: ir.LinkageExternal, Init: &init},
	})
	require.NoError(t, err)
	return m
}

func TestCallCategory(t *testing.T) {
	m := classifyModule(t)
	main, _ := m.Func("main")
	o := DefaultOptions()

	cases := []struct {
		index int
		want  string
	}{
		{1, IRCallIntrinsic},
		{2, IRCallAnnotation},
		{3, IRCallPointer},
		{4, IRCallInternalNonVar},
		{5, IRCallInternalVarArg},
		{6, IRCallExternalNonVar},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, CallCategory(m, main.Insts[tc.index], o))
		})
	}

	custom := NewOptions(WithIntrinsicMarker("dbg"))
	assert.Equal(t, IRCallIntrinsic, CallCategory(m, main.Insts[1], custom))
	assert.Equal(t, IRCallAnnotation, CallCategory(m, main.Insts[2], custom))
}

func TestGlobalCategory(t *testing.T) {
	m := classifyModule(t)
	o := DefaultOptions()

	want := map[string]string{
		".str":                    "",
		"llvm.global.annotations": IRGlobalAnnotation,
		"errno":                   IRGlobalExternal,
		"main.counter":            IRGlobalFunction,
		"table":                   IRGlobalModule,
		"config":                  IRGlobalOmni,
	}
	for name, path := range want {
		g, ok := m.Global(name)
		require.True(t, ok)
		assert.Equal(t, path, GlobalCategory(m, g, o), name)
	}
}

func TestIR(t *testing.T) {
	tree := NewCatalog()
	m := classifyModule(t)

	res, err := IR(tree, m)
	require.NoError(t, err)
	x := res.Index

	assert.Equal(t, 3, x.GetPath(RootIRFunction).Len())
	assert.Equal(t, 2, x.GetPath(IRParameterIn).Len())
	assert.True(t, x.GetPath(RootIRParameter).Has(fact.Local("logf", "0")))

	assert.Equal(t, 11, x.GetPath(RootIRInstruction).Len())
	assert.Equal(t, 6, x.GetPath(IRCall).Len())
	assert.Equal(t, 2, x.GetPath(IRCallInternal).Len())
	assert.Equal(t, 3, x.GetPath("IRInstruction.Ret").Len())
	assert.True(t, x.GetPath(IRInstructionCondBr).Has(fact.Instruction("main", 7)))

	assert.Equal(t, 5, x.GetPath(RootIRGlobal).Len())
	assert.Equal(t, 3, x.GetPath(IRGlobalInternal).Len())
	assert.False(t, x.GetPath(RootIRGlobal).Has(fact.Global(".str")))

	assert.Zero(t, res.Unclassified.Total())
	assert.False(t, x.Frozen())
}

func TestIR_Unclassified(t *testing.T) {
	f := ir.NewFunc("f").Inst("Mystery", "").Ret().Build()
	m, err := ir.NewModule("t", []*ir.Function{f}, nil)
	require.NoError(t, err)

	res, err := IR(NewCatalog(), m)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unclassified.Counts[RootIRInstruction])
	assert.Equal(t, 1, res.Unclassified.Types["Mystery"])
	assert.Equal(t, 1, res.Index.GetPath(RootIRInstruction).Len())
}

func TestNodeAndEdgeCategory(t *testing.T) {
	assert.Equal(t, "PDGNode.Inst.FunCall", NodeCategory("Inst_FunCall", false))
	assert.Equal(t, "PDGNode.FunctionEntry", NodeCategory("FunctionEntry", true))
	assert.Equal(t, "PDGNode.Param.FormalIn.Root", NodeCategory("Param_FormalIn", true))
	assert.Equal(t, "PDGNode.Param.ActualOut.NonRoot", NodeCategory("Param_ActualOut", false))
	assert.Equal(t, "PDGEdge.ControlDep.CallInv", EdgeCategory("ControlDep_CallInv"))
	assert.Equal(t, "Unclassified.PDGEdge", ReportName(RootPDGEdge))
}

func u64(v uint64) *uint64 { return &v }

func TestPDG(t *testing.T) {
	nodes := []*pdg.Node{
		{ID: 1, Type: "FunctionEntry", IR: "define i32 @main()"},
		{ID: 2, Type: "Inst_FunCall", HasFn: 1, InstIndex: u64(0)},
		{ID: 3, Type: "Inst_Ret", HasFn: 1, InstIndex: u64(1)},
		{ID: 4, Type: "Param_FormalIn", HasFn: 1, ParamIndex: u64(0)},
		{ID: 5, Type: "Param_FormalIn", HasFn: 1},
		{ID: 6, Type: "Bogus_Kind"},
	}
	edges := []*pdg.Edge{
		{ID: 10, Type: "ControlDep_Entry", Src: 1, Dst: 2},
		{ID: 11, Type: "ControlDep_CallInv", Src: 2, Dst: 1},
		{ID: 12, Type: "Parameter_Field", Src: 4, Dst: 5},
		{ID: 13, Type: "Weird", Src: 1, Dst: 3},
	}
	g, err := pdg.NewGraph(nodes, edges)
	require.NoError(t, err)

	res, err := PDG(NewCatalog(), g)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Nodes.GetPath(RootPDGNode).Len())
	assert.Equal(t, 2, res.Nodes.GetPath("PDGNode.Inst").Len())
	assert.True(t, res.Nodes.GetPath("PDGNode.Param.FormalIn.Root").Has(fact.NodeID(4)))
	assert.True(t, res.Nodes.GetPath("PDGNode.Param.FormalIn.NonRoot").Has(fact.NodeID(5)))
	assert.Equal(t, 2, res.Nodes.GetPath("PDGNode.Param").Len())

	annoVar, ok := res.Nodes.Tree().Lookup("PDGNode.Annotation.Var")
	require.True(t, ok)
	assert.True(t, res.Nodes.Has(annoVar), "static categories are seeded")
	assert.Zero(t, res.Nodes.Get(annoVar).Len())

	assert.Equal(t, 3, res.Edges.GetPath(RootPDGEdge).Len())
	assert.Equal(t, 2, res.Edges.GetPath("PDGEdge.ControlDep").Len())

	assert.Equal(t, 1, res.Unclassified.Counts[RootPDGNode])
	assert.Equal(t, 1, res.Unclassified.Counts[RootPDGEdge])
	assert.Equal(t, 2, res.Unclassified.Total())
	assert.Equal(t, 1, res.Unclassified.Types["Weird"])
}
