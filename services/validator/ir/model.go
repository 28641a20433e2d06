// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ir holds the in-memory IR model the validator reasons about.
//
// The model is deliberately small: functions with parameters and a flat,
// indexed instruction list; globals with their initializer operand tree;
// and the operand references needed for def-use and call analysis. Textual
// LLVM IR is converted into this model by LoadFile.
//
// Identities follow the fact package:
//
//   - a function or global is fact.Global(name)
//   - a parameter is fact.Local(fn, "<index>")
//   - an instruction is fact.Instruction(fn, index), where index counts
//     every instruction and terminator of the function in block order
package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/AleutianAI/pdgcheck/services/validator/fact"
)

// =============================================================================
// Opcodes
// =============================================================================

// Opcode names an instruction or terminator kind, e.g. "Add" or "CondBr".
type Opcode string

// Opcodes used by the analyses. The full lists are Instructions and
// Terminators.
const (
	OpCall   Opcode = "Call"
	OpPhi    Opcode = "Phi"
	OpRet    Opcode = "Ret"
	OpBr     Opcode = "Br"
	OpCondBr Opcode = "CondBr"
)

// Instructions lists every non-terminator kind.
var Instructions = []Opcode{
	"Add", "Sub", "Mul", "UDiv", "SDiv", "URem", "SRem",
	"And", "Or", "Xor", "Shl", "LShr", "AShr",
	"FAdd", "FSub", "FMul", "FDiv", "FRem", "FNeg",
	"ExtractElement", "InsertElement", "ShuffleVector",
	"ExtractValue", "InsertValue",
	"Alloca", "Load", "Store", "Fence", "CmpXchg", "AtomicRMW", "GetElementPtr",
	"Trunc", "ZExt", "SExt", "FPTrunc", "FPExt", "FPToUI", "FPToSI",
	"UIToFP", "SIToFP", "PtrToInt", "IntToPtr", "BitCast", "AddrSpaceCast",
	"ICmp", "FCmp", OpPhi, "Select", "Freeze", OpCall, "VAArg",
	"LandingPad", "CatchPad", "CleanupPad",
}

// Terminators lists every terminator kind.
var Terminators = []Opcode{
	OpRet, OpBr, OpCondBr, "Switch", "IndirectBr", "Invoke", "Resume",
	"Unreachable", "CleanupRet", "CatchRet", "CatchSwitch", "CallBr",
}

// =============================================================================
// Operands
// =============================================================================

// OperandKind discriminates Operand.
type OperandKind int

const (
	// OperandOther covers labels, metadata and anything not referenced by
	// name.
	OperandOther OperandKind = iota

	// OperandLocal references a parameter or instruction result.
	OperandLocal

	// OperandGlobal references a global variable or function.
	OperandGlobal

	// OperandConstant is a constant expression; its references are in
	// Elems.
	OperandConstant
)

// Operand is one instruction operand or initializer node.
type Operand struct {
	Kind OperandKind

	// Name is set for locals and globals, without sigil.
	Name string

	// Elems holds nested constant structure (struct fields, array
	// elements, bitcast and GEP sources).
	Elems []Operand
}

// Local returns a local operand.
func Local(name string) Operand { return Operand{Kind: OperandLocal, Name: name} }

// GlobalRef returns a global operand.
func GlobalRef(name string) Operand { return Operand{Kind: OperandGlobal, Name: name} }

// Const returns a constant operand wrapping elems.
func Const(elems ...Operand) Operand { return Operand{Kind: OperandConstant, Elems: elems} }

// Walk calls fn for o and every nested operand, depth first.
func (o Operand) Walk(fn func(Operand)) {
	fn(o)
	for _, e := range o.Elems {
		e.Walk(fn)
	}
}

// Names returns every global name referenced by o, including nested ones.
func (o Operand) Names() []string {
	var out []string
	o.Walk(func(x Operand) {
		if x.Kind == OperandGlobal {
			out = append(out, x.Name)
		}
	})
	return out
}

// =============================================================================
// Functions and instructions
// =============================================================================

// Callee describes the target of a call.
type Callee struct {
	// Name is the callee's name when it is statically known.
	Name string

	// Static is true for direct calls to a named function.
	Static bool

	// Type is the callee's function signature, used to resolve indirect
	// calls.
	Type string
}

// Instruction is one instruction or terminator.
type Instruction struct {
	// Index is the position within the owning function.
	Index int

	Opcode     Opcode
	Terminator bool

	// Result is the defined local name, empty for void instructions.
	Result string

	// Operands excludes the callee of a call.
	Operands []Operand

	// Callee is set for calls only.
	Callee *Callee

	// Text is the instruction rendered as IR, for diagnostics.
	Text string

	fn string
}

// Function returns the name of the owning function.
func (i *Instruction) Function() string { return i.fn }

// ID returns the instruction's fact identity.
func (i *Instruction) ID() fact.ID { return fact.Instruction(i.fn, i.Index) }

// IsCall reports whether i is a call.
func (i *Instruction) IsCall() bool { return i.Opcode == OpCall && i.Callee != nil }

// CalleeContains reports whether i is a call whose static callee name
// contains substr.
func (i *Instruction) CalleeContains(substr string) bool {
	return i.IsCall() && i.Callee.Static && strings.Contains(i.Callee.Name, substr)
}

// Param is a function parameter.
type Param struct {
	Name  string
	Index int
	Type  string
}

// Block is a basic block. Its instructions are Insts[Start:End] of the
// owning function; the last one is the terminator.
type Block struct {
	Name  string
	Start int
	End   int
}

// Linkage of a function or global.
type Linkage string

// Linkages the classifiers care about. Everything else is treated as
// externally visible.
const (
	LinkageExternal Linkage = "external"
	LinkagePrivate  Linkage = "private"
	LinkageInternal Linkage = "internal"
)

// Function is a defined or declared function.
type Function struct {
	Name    string
	Params  []*Param
	Blocks  []*Block
	Insts   []*Instruction
	Linkage Linkage

	// Sig is the rendered function type, e.g. "i32 (i8*, ...)".
	Sig      string
	Variadic bool

	// Declaration is true for functions without a body.
	Declaration bool
}

// ID returns the function's fact identity.
func (f *Function) ID() fact.ID { return fact.Global(f.Name) }

// ParamID returns the fact identity of parameter p.
func (f *Function) ParamID(p *Param) fact.ID {
	return fact.Local(f.Name, strconv.Itoa(p.Index))
}

// Rets returns every return terminator of f.
func (f *Function) Rets() []*Instruction {
	var out []*Instruction
	for _, inst := range f.Insts {
		if inst.Opcode == OpRet {
			out = append(out, inst)
		}
	}
	return out
}

// Global is a global variable.
type Global struct {
	Name    string
	Linkage Linkage

	// Init is nil for external declarations.
	Init *Operand
}

// ID returns the global's fact identity.
func (g *Global) ID() fact.ID { return fact.Global(g.Name) }

// =============================================================================
// Module
// =============================================================================

// Module is a validated IR module with name indexes.
//
// Thread Safety: Immutable after NewModule; safe for concurrent reads.
type Module struct {
	// Source is the path or label the module was loaded from.
	Source string

	Funcs   []*Function
	Globals []*Global

	funcs   map[string]*Function
	globals map[string]*Global
}

// NewModule indexes funcs and globals and assigns instruction indexes.
//
// Description:
//
//	Each function's Insts are renumbered in order, and Block ranges are
//	left untouched. Function and global names must be unique.
//
// Outputs:
//
//	*Module - The indexed module.
//	error - ErrDuplicateFunction or ErrDuplicateGlobal.
func NewModule(source string, funcs []*Function, globals []*Global) (*Module, error) {
	m := &Module{
		Source:  source,
		Funcs:   funcs,
		Globals: globals,
		funcs:   make(map[string]*Function, len(funcs)),
		globals: make(map[string]*Global, len(globals)),
	}
	for _, f := range funcs {
		if _, dup := m.funcs[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFunction, f.Name)
		}
		m.funcs[f.Name] = f
		for i, inst := range f.Insts {
			inst.Index = i
			inst.fn = f.Name
		}
	}
	for _, g := range globals {
		if _, dup := m.globals[g.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateGlobal, g.Name)
		}
		m.globals[g.Name] = g
	}
	return m, nil
}

// Func returns the function named name, defined or declared.
func (m *Module) Func(name string) (*Function, bool) {
	f, ok := m.funcs[name]
	return f, ok
}

// Global returns the global named name.
func (m *Module) Global(name string) (*Global, bool) {
	g, ok := m.globals[name]
	return g, ok
}

// Defines reports whether name is a function with a body.
func (m *Module) Defines(name string) bool {
	f, ok := m.funcs[name]
	return ok && !f.Declaration
}

// Defined returns the functions with bodies in module order.
func (m *Module) Defined() []*Function {
	var out []*Function
	for _, f := range m.Funcs {
		if !f.Declaration {
			out = append(out, f)
		}
	}
	return out
}

// Instruction resolves an instruction identity.
func (m *Module) Instruction(id fact.ID) (*Instruction, bool) {
	if id.Kind != fact.KindInstruction {
		return nil, false
	}
	f, ok := m.funcs[id.Scope]
	if !ok || id.Index < 0 || id.Index >= len(f.Insts) {
		return nil, false
	}
	return f.Insts[id.Index], true
}

// LocalID resolves a local name of fn to its identity: the defining
// instruction for results, or the parameter identity for parameters.
func (m *Module) LocalID(fn, name string) (fact.ID, bool) {
	f, ok := m.funcs[fn]
	if !ok {
		return fact.ID{}, false
	}
	for _, p := range f.Params {
		if p.Name == name {
			return f.ParamID(p), true
		}
	}
	for _, inst := range f.Insts {
		if inst.Result != "" && inst.Result == name {
			return inst.ID(), true
		}
	}
	return fact.ID{}, false
}

// FunctionRefs returns the names of functions referenced as values, not
// as direct callees, by the operands of fn.
func (m *Module) FunctionRefs(fn *Function) []string {
	seen := make(map[string]struct{})
	for _, inst := range fn.Insts {
		for _, op := range inst.Operands {
			for _, n := range op.Names() {
				if _, isFn := m.funcs[n]; isFn {
					seen[n] = struct{}{}
				}
			}
		}
	}
	return sortedKeys(seen)
}

// GlobalFunctionRefs returns the names of functions referenced by global
// initializers, skipping the globals named in exclude.
func (m *Module) GlobalFunctionRefs(exclude ...string) []string {
	seen := make(map[string]struct{})
	for _, g := range m.Globals {
		if g.Init == nil || slices.Contains(exclude, g.Name) {
			continue
		}
		for _, n := range g.Init.Names() {
			if _, isFn := m.funcs[n]; isFn {
				seen[n] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// AddressTaken returns every function referenced as a value anywhere in
// the module, in instruction operands or global initializers.
func (m *Module) AddressTaken(exclude ...string) []string {
	seen := make(map[string]struct{})
	for _, f := range m.Funcs {
		for _, n := range m.FunctionRefs(f) {
			seen[n] = struct{}{}
		}
	}
	for _, n := range m.GlobalFunctionRefs(exclude...) {
		seen[n] = struct{}{}
	}
	return sortedKeys(seen)
}

// DistinctSignatures returns the distinct signatures of defined functions.
func (m *Module) DistinctSignatures() []string {
	seen := make(map[string]struct{})
	for _, f := range m.Defined() {
		seen[f.Sig] = struct{}{}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
