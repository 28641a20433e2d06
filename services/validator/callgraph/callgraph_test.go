// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package callgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pdgcheck/services/validator/fact"
	"github.com/AleutianAI/pdgcheck/services/validator/ir"
	"github.com/AleutianAI/pdgcheck/services/validator/pdg"
)

func TestFloydWarshall(t *testing.T) {
	g := NewGraph([]*pdg.Node{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}})
	assert.True(t, g.AddEdge(0, 1))
	assert.False(t, g.AddEdge(0, 1), "parallel edges collapse")
	g.AddEdge(1, 2)
	g.AddEdge(2, 2)
	assert.Equal(t, 3, g.EdgeCount())
	assert.False(t, g.AddEdge(2, 2), "self loops collapse too")
	assert.True(t, g.HasEdge(2, 2))
	assert.Equal(t, []int{2}, g.Successors(2))

	d := FloydWarshall(g)
	assert.Equal(t, 0, d.At(2, 2), "a self loop does not lengthen the path to itself")
	assert.Equal(t, 0, d.At(0, 0))
	assert.Equal(t, 1, d.At(0, 1))
	assert.Equal(t, 2, d.At(0, 2))
	assert.Equal(t, Infinity, d.At(2, 0))
	assert.Equal(t, Infinity, d.At(0, 3))
	assert.Equal(t, []int{0, 1, 2}, d.Reachable(0))
	assert.Equal(t, []int{3}, d.Unreachable(0))
	assert.Equal(t, []int{3}, d.Reachable(3))
}

func TestGraph_CloneAndRoot(t *testing.T) {
	g := NewGraph([]*pdg.Node{{ID: 7}, {ID: 9}})
	g.AddEdge(0, 1)

	c := g.Clone()
	root := c.AddRoot()
	c.AddEdge(root, 0)

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 3, c.Len())
	assert.Nil(t, c.Node(root))
	i, ok := c.Index(9)
	require.True(t, ok)
	assert.Equal(t, 1, i)
	assert.Equal(t, []int{0}, c.Successors(root))

	c.AddEdge(1, 0)
	assert.True(t, c.HasEdge(1, 0))
	assert.False(t, g.HasEdge(1, 0), "clone does not share edges")
	assert.Equal(t, Infinity, FloydWarshall(g).At(1, 0))
	assert.Equal(t, 1, FloydWarshall(c).At(1, 0))
}

func u64(v uint64) *uint64 { return &v }

func entry(id uint64, name string) *pdg.Node {
	return &pdg.Node{ID: id, Type: pdg.TypeFunctionEntry, IR: "define void @" + name + "()"}
}

// fixture builds a program where main calls a directly, a calls cb
// through a pointer, viaGlobal is only referenced from a global table,
// and orphan is only referenced from the annotation table.
func fixture(t *testing.T, extraRef bool) (*pdg.Graph, *ir.Module) {
	t.Helper()
	main := ir.NewFunc("main", "p").
		Inst("Store", "", ir.GlobalRef("cb"), ir.Local("p")).
		Call("", "a").
		Ret().
		Build()
	a := ir.NewFunc("a").CallPtr("", "void ()", ir.Local("fp")).Ret().Build()
	cb := ir.NewFunc("cb").Ret().Build()
	viaGlobal := ir.NewFunc("viaGlobal").
		Sig("void (i32)", false).
		Inst("Store", "", ir.GlobalRef("lonely2")).
		Call("", "lonely2").
		Ret().
		Build()
	lonely2 := ir.NewFunc("lonely2").Sig("void (i32)", false).Ret().Build()
	orphan := ir.NewFunc("orphan").Sig("i32 ()", false).Ret().Build()

	table := ir.Const(ir.GlobalRef("viaGlobal"))
	annotations := ir.Const(ir.Const(ir.GlobalRef("orphan")))
	globals := []*ir.Global{
		{Name: "table", Linkage: ir.LinkageInternal, Init: &table},
		{Name: "llvm.global.annotations", Linkage: ir.LinkageExternal, Init: &annotations},
	}
	if extraRef {
		more := ir.Const(ir.GlobalRef("orphan"))
		globals = append(globals, &ir.Global{Name: "more", Linkage: ir.LinkageInternal, Init: &more})
	}
	m, err := ir.NewModule("t", []*ir.Function{main, a, cb, viaGlobal, lonely2, orphan}, globals)
	require.NoError(t, err)

	nodes := []*pdg.Node{
		entry(1, "main"), entry(2, "a"), entry(3, "cb"),
		entry(4, "viaGlobal"), entry(5, "lonely2"), entry(6, "orphan"),
		{ID: 10, Type: pdg.TypeFunCall, HasFn: 1, InstIndex: u64(1)},
		{ID: 11, Type: pdg.TypeFunCall, HasFn: 2, InstIndex: u64(0)},
		{ID: 12, Type: pdg.TypeFunCall},
		{ID: 13, Type: pdg.TypeFunCall},
	}
	edges := []*pdg.Edge{
		{ID: 100, Type: pdg.TypeCallInv, Src: 10, Dst: 2},
		{ID: 101, Type: pdg.TypeEntry, Src: 4, Dst: 12},
		{ID: 102, Type: pdg.TypeCallInv, Src: 12, Dst: 5},
		{ID: 103, Type: pdg.TypeCallInv, Src: 13, Dst: 2},
	}
	g, err := pdg.NewGraph(nodes, edges)
	require.NoError(t, err)
	return g, m
}

func TestAnalyze(t *testing.T) {
	g, m := fixture(t, false)

	a, err := Analyze(context.Background(), g, m)
	require.NoError(t, err)
	require.True(t, a.EntryFound)

	assert.Equal(t, 1, a.Unresolved)
	assert.True(t, a.Direct.HasEdge(3, 4), "caller found through the entry edge")
	assert.True(t, a.Full.HasEdge(1, 2), "indirect call resolved by signature")
	assert.False(t, a.Direct.HasEdge(1, 2))

	want := map[string]int{
		MetricDirectEdges:            2,
		MetricMainDirect:             2,
		MetricNonMainDirect:          4,
		MetricFullEdges:              3,
		MetricMainFull:               3,
		MetricNonMainFull:            3,
		MetricExtendedComponent:      5,
		MetricNotExtended:            1,
		MetricExternalCallInv:        1,
		MetricDistinctSignatures:     3,
		MetricFunctionsUsedAsPointer: 4,
	}
	assert.Equal(t, want, a.Metrics)

	assert.Equal(t, []fact.ID{fact.Global("viaGlobal")}, a.Seeds)
	assert.True(t, a.Extended.Has(fact.Global("lonely2")))
	assert.False(t, a.Extended.Has(fact.Global("orphan")), "the annotation table does not extend")
	assert.Equal(t, 1, a.Iterations)
}

func TestAnalyze_ClosureMonotone(t *testing.T) {
	g, m := fixture(t, false)
	base, err := Analyze(context.Background(), g, m)
	require.NoError(t, err)

	g2, m2 := fixture(t, true)
	more, err := Analyze(context.Background(), g2, m2)
	require.NoError(t, err)

	assert.True(t, base.Extended.SubsetOf(more.Extended))
	assert.True(t, more.Extended.Has(fact.Global("orphan")))
	assert.LessOrEqual(t, more.Iterations, len(g2.FunctionEntries()))
}

func TestAnalyze_MissingEntry(t *testing.T) {
	g, m := fixture(t, false)

	a, err := Analyze(context.Background(), g, m, WithEntry("start"))
	require.ErrorIs(t, err, ErrNoMainFunction)
	require.NotNil(t, a)
	assert.False(t, a.EntryFound)

	assert.Equal(t, 2, a.Metrics[MetricDirectEdges])
	_, ok := a.Metrics[MetricMainDirect]
	assert.False(t, ok, "reachability metrics are absent")
	_, ok = a.Metrics[MetricExtendedComponent]
	assert.False(t, ok)
}
