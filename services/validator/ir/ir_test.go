// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pdgcheck/services/validator/fact"
)

func sampleModule(t *testing.T) *Module {
	t.Helper()
	main := NewFunc("main", "argc").
		Sig("i32 (i32)", false).
		Inst("Add", "1", Local("argc")).
		CallPtr("2", "void ()", Local("fp")).
		Call("", "helper", GlobalRef("cb")).
		Ret(Local("1")).
		Build()
	helper := NewFunc("helper", "x").
		Sig("void (void ()*)", false).
		Ret().
		Build()
	cb := NewFunc("cb").Sig("void ()", false).Ret().Build()
	printf := Declare("printf", "i32 (i8*, ...)", true)

	table := Const(GlobalRef("cb"))
	m, err := NewModule("test", []*Function{main, helper, cb, printf}, []*Global{
		{Name: "table", Linkage: LinkageInternal, Init: &table},
		{Name: "ext", Linkage: LinkageExternal},
	})
	require.NoError(t, err)
	return m
}

func TestModule_Lookups(t *testing.T) {
	m := sampleModule(t)

	assert.True(t, m.Defines("main"))
	assert.False(t, m.Defines("printf"))
	assert.False(t, m.Defines("nope"))
	assert.Len(t, m.Defined(), 3)

	inst, ok := m.Instruction(fact.Instruction("main", 3))
	require.True(t, ok)
	assert.Equal(t, OpRet, inst.Opcode)
	assert.True(t, inst.Terminator)
	assert.Equal(t, "main", inst.Function())

	_, ok = m.Instruction(fact.Instruction("main", 4))
	assert.False(t, ok)
	_, ok = m.Instruction(fact.Global("main"))
	assert.False(t, ok)

	id, ok := m.LocalID("main", "argc")
	require.True(t, ok)
	assert.Equal(t, fact.Local("main", "0"), id)

	id, ok = m.LocalID("main", "1")
	require.True(t, ok)
	assert.Equal(t, fact.Instruction("main", 0), id)

	_, ok = m.LocalID("main", "missing")
	assert.False(t, ok)
}

func TestModule_FunctionReferences(t *testing.T) {
	m := sampleModule(t)
	main, _ := m.Func("main")

	assert.Equal(t, []string{"cb"}, m.FunctionRefs(main))
	assert.Equal(t, []string{"cb"}, m.GlobalFunctionRefs())
	assert.Empty(t, m.GlobalFunctionRefs("table"))
	assert.Equal(t, []string{"cb"}, m.AddressTaken())
	assert.Equal(t, []string{"i32 (i32)", "void ()", "void (void ()*)"}, m.DistinctSignatures())
}

func TestNewModule_Duplicates(t *testing.T) {
	_, err := NewModule("dup", []*Function{Declare("f", "", false), Declare("f", "", false)}, nil)
	assert.ErrorIs(t, err, ErrDuplicateFunction)

	_, err = NewModule("dup", nil, []*Global{{Name: "g"}, {Name: "g"}})
	assert.ErrorIs(t, err, ErrDuplicateGlobal)
}

func TestInstruction_Calls(t *testing.T) {
	m := sampleModule(t)
	main, _ := m.Func("main")

	indirect := main.Insts[1]
	assert.True(t, indirect.IsCall())
	assert.False(t, indirect.Callee.Static)
	assert.Equal(t, "void ()", indirect.Callee.Type)

	direct := main.Insts[2]
	assert.True(t, direct.CalleeContains("help"))
	assert.False(t, direct.CalleeContains("llvm."))
	assert.Len(t, main.Rets(), 1)
}

func TestOperand_Names(t *testing.T) {
	op := Const(GlobalRef("a"), Const(Local("x"), GlobalRef("b")), Operand{})
	assert.Equal(t, []string{"a", "b"}, op.Names())
	assert.Equal(t, "{@a, {%x, @b}, _}", op.String())
}

const sampleIR = `
@g = global i32 0
@ptrs = internal global [1 x void ()*] [void ()* @h]

declare i32 @printf(i8*, ...)

define internal void @h() {
entry:
  ret void
}

define i32 @main(i32 %argc) {
entry:
  %a = add i32 %argc, 1
  %b = load i32, i32* @g
  %c = mul i32 %a, %b
  call void @h()
  ret i32 %c
}
`

func TestLoadString(t *testing.T) {
	m, err := LoadString("sample.ll", sampleIR)
	require.NoError(t, err)

	assert.Len(t, m.Funcs, 3)
	assert.Len(t, m.Globals, 2)

	printf, ok := m.Func("printf")
	require.True(t, ok)
	assert.True(t, printf.Declaration)
	assert.True(t, printf.Variadic)

	h, _ := m.Func("h")
	assert.Equal(t, LinkageInternal, h.Linkage)

	main, ok := m.Func("main")
	require.True(t, ok)
	require.Len(t, main.Insts, 5)

	var ops []Opcode
	for _, inst := range main.Insts {
		ops = append(ops, inst.Opcode)
	}
	assert.Equal(t, []Opcode{"Add", "Load", "Mul", OpCall, OpRet}, ops)
	assert.Equal(t, "a", main.Insts[0].Result)
	assert.Empty(t, main.Insts[3].Result)
	assert.Equal(t, "h", main.Insts[3].Callee.Name)
	assert.True(t, main.Insts[3].Callee.Static)
	assert.True(t, main.Insts[4].Terminator)

	require.Len(t, main.Params, 1)
	assert.Equal(t, "argc", main.Params[0].Name)

	ptrs, ok := m.Global("ptrs")
	require.True(t, ok)
	require.NotNil(t, ptrs.Init)
	assert.Equal(t, []string{"h"}, ptrs.Init.Names())
	assert.Equal(t, []string{"h"}, m.AddressTaken())
}

func TestLoadString_ParseError(t *testing.T) {
	_, err := LoadString("bad.ll", "define i32 @main( {")
	assert.ErrorIs(t, err, ErrParse)
}
