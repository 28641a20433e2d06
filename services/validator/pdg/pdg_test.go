// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pdg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pdgcheck/services/validator/fact"
)

func nodeRow(id int, typ, ir string, hasFn int, inst, param string) string {
	return fmt.Sprintf("Node, %d, %s, x, '%s', %d, _, _, main.c, 3, 7, %s, %s", id, typ, ir, hasFn, inst, param)
}

func edgeRow(id int, typ string, src, dst int) string {
	return fmt.Sprintf("Edge, %d, %s, x, x, x, %d, %d", id, typ, src, dst)
}

func sampleDump() string {
	return strings.Join([]string{
		nodeRow(1, "FunctionEntry", "define i32 @main()", 0, "", ""),
		nodeRow(2, "Inst_FunCall", "  %1 = call i32 @foo(i32 1, i32 2)", 1, "0", ""),
		nodeRow(3, "FunctionEntry", "define i32 @foo(i32 %a, i32 %b)", 0, "", ""),
		nodeRow(4, "Param_FormalIn", "i32", 3, "", "0"),
		nodeRow(5, "Param_ActualIn", "i32", 1, "", ""),
		nodeRow(6, "VarNode_StaticGlobal", "@g.x = global i32 0", 0, "", ""),
		"",
		edgeRow(1, "ControlDep_CallInv", 2, 3),
		edgeRow(2, "Parameter_In", 5, 4),
		edgeRow(3, "DataDepEdge_DefUse", 6, 99),
		"Node, abc, Inst_Other",
		"Bogus, 1",
	}, "\n") + "\n"
}

func TestParse_Sample(t *testing.T) {
	res, err := Parse(strings.NewReader(sampleDump()))
	require.NoError(t, err)

	g := res.Graph
	assert.Len(t, g.Nodes, 6)
	assert.Len(t, g.Edges, 2)
	assert.Equal(t, 11, res.Rows)
	assert.True(t, res.Incomplete)

	require.Len(t, res.Errors, 3)
	assert.Equal(t, 10, res.Errors[0].Line)
	assert.ErrorIs(t, res.Errors[0], ErrUnknownNode)
	assert.Contains(t, res.Errors[0].Raw, "DataDepEdge_DefUse")
	assert.ErrorIs(t, res.Errors[1], ErrMalformedRow)
	assert.Equal(t, 11, res.Errors[1].Line)
	assert.ErrorIs(t, res.Errors[2], ErrUnknownRowKind)
	assert.Equal(t, "Bogus, 1", res.Errors[2].Raw)

	call, ok := g.Node(2)
	require.True(t, ok)
	assert.Equal(t, "%1 = call i32 @foo(i32 1, i32 2)", call.IR)
	require.NotNil(t, call.InstIndex)
	assert.Nil(t, call.ParamIndex)
	require.NotNil(t, call.Line)
	assert.Equal(t, uint64(3), *call.Line)
}

func TestGraph_LLID(t *testing.T) {
	res, err := Parse(strings.NewReader(sampleDump()))
	require.NoError(t, err)
	g := res.Graph

	cases := []struct {
		node uint64
		want fact.ID
	}{
		{1, fact.Global("main")},
		{2, fact.Instruction("main", 0)},
		{4, fact.Local("foo", "0")},
		{5, fact.Global("main")},
		{6, fact.Global("g.x")},
	}
	for _, tc := range cases {
		t.Run(tc.want.String(), func(t *testing.T) {
			n, ok := g.Node(tc.node)
			require.True(t, ok)
			got, ok := g.LLID(n)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	orphan := &Node{ID: 50, HasFn: 42}
	_, ok := g.LLID(orphan)
	assert.False(t, ok)
}

func TestGraph_Edges(t *testing.T) {
	res, err := Parse(strings.NewReader(sampleDump()))
	require.NoError(t, err)
	g := res.Graph

	inv := g.EdgesOfType(TypeCallInv)
	require.Len(t, inv, 1)
	ef, ok := g.EdgeFact(inv[0])
	require.True(t, ok)
	assert.Equal(t, fact.NewEdge(fact.Instruction("main", 0), fact.Global("foo")), ef)

	pin := g.EdgesOfType(TypeParameterIn)
	require.Len(t, pin, 1)
	assert.True(t, g.IsProperParameterIn(pin[0]))
	assert.False(t, g.IsProperParameterIn(inv[0]))

	entries := g.FunctionEntryByName()
	assert.Len(t, entries, 2)
	assert.Equal(t, uint64(3), entries["foo"].ID)
}

func TestNewGraph_Errors(t *testing.T) {
	_, err := NewGraph([]*Node{{ID: 1}, {ID: 1}}, nil)
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = NewGraph([]*Node{{ID: 1}}, []*Edge{{ID: 1, Src: 1, Dst: 2}})
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestSplitRecord(t *testing.T) {
	cases := []struct {
		in   string
		want []string
		open bool
	}{
		{"a, b ,c", []string{"a", "b", "c"}, false},
		{"a, 'b, c' ,d", []string{"a", "b, c", "d"}, false},
		{"'it''s'", []string{"it's"}, false},
		{"x,'open", []string{"x", "open"}, true},
		{"x,,", []string{"x", "", ""}, false},
		{"mid'quote, y", []string{"mid'quote", "y"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, open := splitRecord(tc.in, Quote)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.open, open)
		})
	}
}

func TestParse_MultiLineAndUnterminated(t *testing.T) {
	dump := nodeRow(1, "FunctionEntry", "define void @f()", 0, "", "") + "\n" +
		"Node, 2, Inst_Other, x, 'first\nsecond', 1, _, _, f.c, 1, 1, 0, \n" +
		"Node, 3, Inst_Other, x, 'never closed\n"

	res, err := Parse(strings.NewReader(dump))
	require.NoError(t, err)

	n, ok := res.Graph.Node(2)
	require.True(t, ok)
	assert.Equal(t, "first\nsecond", n.IR)
	assert.Equal(t, 2, n.Row)

	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ErrUnterminatedQuote)
	assert.Equal(t, 4, res.Errors[0].Line)
}

func TestFieldSplitter_Pieces(t *testing.T) {
	tests := []struct {
		name   string
		pieces []string
	}{
		{"single piece", []string{"a, 'b, c', d"}},
		{"quoted field across lines", []string{"a, 'first", "\n", "second', d"}},
		{"doubled quote inside piece", []string{"'it''s", "\n", "more', x"}},
		{"quote ends piece", []string{"a, 'x'", "\n", "y"}},
		{"still open", []string{"a, 'x", "\n", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := newFieldSplitter(Quote)
			for _, p := range tt.pieces {
				sp.feed(p)
			}
			wantFields, wantOpen := splitRecord(strings.Join(tt.pieces, ""), Quote)
			assert.Equal(t, wantOpen, sp.open())
			assert.Equal(t, wantFields, sp.finish())
		})
	}
}

func TestParse_LongQuotedField(t *testing.T) {
	const lines = 5000
	body := strings.Repeat("x\n", lines-1) + "x"
	dump := nodeRow(1, "FunctionEntry", "define void @f()", 0, "", "") + "\n" +
		"Node, 2, Inst_Other, x, '" + body + "', 1, _, _, f.c, 1, 1, 0, \n" +
		nodeRow(3, "FunctionEntry", "define void @g()", 0, "", "") + "\n"

	res, err := Parse(strings.NewReader(dump))
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	n, ok := res.Graph.Node(2)
	require.True(t, ok)
	assert.Equal(t, body, n.IR)
	assert.Equal(t, 2, n.Row)

	g, ok := res.Graph.Node(3)
	require.True(t, ok)
	assert.Equal(t, 2+lines, g.Row)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdg.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleDump()), 0o644))

	res, err := ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, res.Graph.Nodes, 6)

	_, err = ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
