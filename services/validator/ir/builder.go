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
	"fmt"
	"slices"
	"strings"
)

// FuncBuilder assembles a Function instruction by instruction.
//
// It is used by the textual loader and by tests that need small modules
// without an IR file.
//
// Example:
//
//	f := ir.NewFunc("main").
//	    Inst("Add", "1").
//	    Inst("Mul", "2", ir.Local("1")).
//	    Ret(ir.Local("2")).
//	    Build()
type FuncBuilder struct {
	f     *Function
	block *Block
}

// NewFunc starts a function with the given parameter names.
func NewFunc(name string, params ...string) *FuncBuilder {
	f := &Function{Name: name, Linkage: LinkageExternal, Sig: "void ()"}
	for i, p := range params {
		f.Params = append(f.Params, &Param{Name: p, Index: i})
	}
	return &FuncBuilder{f: f}
}

// Linkage sets the function's linkage.
func (b *FuncBuilder) Linkage(l Linkage) *FuncBuilder {
	b.f.Linkage = l
	return b
}

// Sig sets the rendered function type.
func (b *FuncBuilder) Sig(sig string, variadic bool) *FuncBuilder {
	b.f.Sig = sig
	b.f.Variadic = variadic
	return b
}

// Block starts a new basic block.
func (b *FuncBuilder) Block(name string) *FuncBuilder {
	b.block = &Block{Name: name, Start: len(b.f.Insts), End: len(b.f.Insts)}
	b.f.Blocks = append(b.f.Blocks, b.block)
	return b
}

// Add appends a prepared instruction to the current block.
func (b *FuncBuilder) Add(inst *Instruction) *FuncBuilder {
	if b.block == nil {
		b.Block("entry")
	}
	inst.Index = len(b.f.Insts)
	inst.fn = b.f.Name
	inst.Terminator = slices.Contains(Terminators, inst.Opcode)
	if inst.Text == "" {
		inst.Text = render(inst)
	}
	b.f.Insts = append(b.f.Insts, inst)
	b.block.End = len(b.f.Insts)
	return b
}

// Inst appends an instruction with an optional result.
func (b *FuncBuilder) Inst(op Opcode, result string, operands ...Operand) *FuncBuilder {
	return b.Add(&Instruction{Opcode: op, Result: result, Operands: operands})
}

// Call appends a direct call to callee.
func (b *FuncBuilder) Call(result, callee string, args ...Operand) *FuncBuilder {
	return b.Add(&Instruction{
		Opcode:   OpCall,
		Result:   result,
		Operands: args,
		Callee:   &Callee{Name: callee, Static: true},
	})
}

// CallPtr appends an indirect call through a pointer of type sig.
func (b *FuncBuilder) CallPtr(result string, sig string, ptr Operand, args ...Operand) *FuncBuilder {
	return b.Add(&Instruction{
		Opcode:   OpCall,
		Result:   result,
		Operands: append([]Operand{ptr}, args...),
		Callee:   &Callee{Type: sig},
	})
}

// Ret appends a return terminator.
func (b *FuncBuilder) Ret(operands ...Operand) *FuncBuilder {
	return b.Inst(OpRet, "", operands...)
}

// Build returns the function.
func (b *FuncBuilder) Build() *Function {
	return b.f
}

// Declare returns a body-less function declaration.
func Declare(name, sig string, variadic bool) *Function {
	return &Function{
		Name:        name,
		Linkage:     LinkageExternal,
		Sig:         sig,
		Variadic:    variadic,
		Declaration: true,
	}
}

func render(inst *Instruction) string {
	var sb strings.Builder
	if inst.Result != "" {
		fmt.Fprintf(&sb, "%%%s = ", inst.Result)
	}
	sb.WriteString(strings.ToLower(string(inst.Opcode)))
	if inst.Callee != nil && inst.Callee.Static {
		fmt.Fprintf(&sb, " @%s", inst.Callee.Name)
	}
	for i, op := range inst.Operands {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(" ")
		sb.WriteString(op.String())
	}
	return sb.String()
}

// String renders o in IR-like syntax.
func (o Operand) String() string {
	switch o.Kind {
	case OperandLocal:
		return "%" + o.Name
	case OperandGlobal:
		return "@" + o.Name
	case OperandConstant:
		parts := make([]string, len(o.Elems))
		for i, e := range o.Elems {
			parts[i] = e.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "_"
	}
}
