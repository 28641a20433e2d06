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
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/llir/llvm/asm"
	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("pdgcheck.ir")

// LoadFile parses a textual LLVM IR file into a Module.
//
// Description:
//
//	The file is parsed with llir/llvm and converted function by function.
//	Each block contributes its instructions followed by its terminator, so
//	instruction indexes match the enumeration used by the PDG extractor.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	path - Path to a .ll file.
//
// Outputs:
//
//	*Module - The converted module.
//	error - ErrParse wrapping the parser error, or a NewModule error.
func LoadFile(ctx context.Context, path string) (*Module, error) {
	_, span := tracer.Start(ctx, "ir.LoadFile")
	defer span.End()
	span.SetAttributes(attribute.String("ir.path", path))

	m, err := asm.ParseFile(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	mod, err := convert(path, m)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("ir.functions", len(mod.Funcs)),
		attribute.Int("ir.globals", len(mod.Globals)),
	)
	return mod, nil
}

// LoadString parses IR text. source labels the module in errors.
func LoadString(source, content string) (*Module, error) {
	m, err := asm.ParseString(source, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, source, err)
	}
	return convert(source, m)
}

func convert(source string, m *llir.Module) (*Module, error) {
	funcs := make([]*Function, 0, len(m.Funcs))
	for _, f := range m.Funcs {
		funcs = append(funcs, convertFunc(f))
	}
	globals := make([]*Global, 0, len(m.Globals))
	for _, g := range m.Globals {
		out := &Global{Name: g.Name(), Linkage: linkage(g.Linkage)}
		if g.Init != nil {
			op := operand(g.Init)
			out.Init = &op
		}
		globals = append(globals, out)
	}
	return NewModule(source, funcs, globals)
}

func convertFunc(f *llir.Func) *Function {
	sig := ""
	variadic := false
	if f.Sig != nil {
		sig = f.Sig.LLString()
		variadic = f.Sig.Variadic
	}
	if len(f.Blocks) == 0 {
		d := Declare(f.Name(), sig, variadic)
		d.Linkage = linkage(f.Linkage)
		return d
	}

	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Name()
	}
	b := NewFunc(f.Name(), params...).Linkage(linkage(f.Linkage)).Sig(sig, variadic)
	for i, p := range f.Params {
		b.f.Params[i].Type = p.Typ.String()
	}

	for _, blk := range f.Blocks {
		b.Block(blk.Name())
		for _, inst := range blk.Insts {
			b.Add(convertInst(inst, false))
		}
		if blk.Term != nil {
			b.Add(convertInst(blk.Term, true))
		}
	}
	return b.Build()
}

// operandLister is implemented by llir instructions and terminators.
type operandLister interface {
	Operands() []*value.Value
}

func convertInst(v any, term bool) *Instruction {
	inst := &Instruction{Opcode: opcode(v, term), Terminator: term}
	if s, ok := v.(interface{ LLString() string }); ok {
		inst.Text = s.LLString()
	}
	if val, ok := v.(value.Named); ok && !isVoid(val) {
		inst.Result = val.Name()
	}

	if call, ok := v.(*llir.InstCall); ok {
		inst.Callee = callee(call)
		for _, a := range call.Args {
			inst.Operands = append(inst.Operands, operand(a))
		}
		if !inst.Callee.Static {
			inst.Operands = append([]Operand{operand(call.Callee)}, inst.Operands...)
		}
		return inst
	}

	if ol, ok := v.(operandLister); ok {
		for _, op := range ol.Operands() {
			if op == nil || *op == nil {
				continue
			}
			inst.Operands = append(inst.Operands, operand(*op))
		}
	}
	return inst
}

func opcode(v any, term bool) Opcode {
	name := reflect.TypeOf(v).Elem().Name()
	if term {
		return Opcode(strings.TrimPrefix(name, "Term"))
	}
	return Opcode(strings.TrimPrefix(name, "Inst"))
}

func isVoid(v value.Value) bool {
	_, void := v.Type().(*types.VoidType)
	return void
}

func callee(call *llir.InstCall) *Callee {
	c := &Callee{}
	if sig := call.Sig(); sig != nil {
		c.Type = sig.LLString()
	}
	switch fn := call.Callee.(type) {
	case *llir.Func:
		c.Name, c.Static = fn.Name(), true
	case *constant.ExprBitCast:
		if f, ok := fn.From.(*llir.Func); ok {
			c.Name, c.Static = f.Name(), true
		}
	}
	return c
}

// operand converts an llir value, recursing through constant structure.
func operand(v value.Value) Operand {
	switch x := v.(type) {
	case *llir.Func:
		return GlobalRef(x.Name())
	case *llir.Global:
		return GlobalRef(x.Name())
	case *llir.Alias:
		return GlobalRef(x.Name())
	case *llir.Block:
		return Operand{Kind: OperandOther}
	case *constant.Struct:
		return constOf(x.Fields)
	case *constant.Array:
		return constOf(x.Elems)
	case *constant.Vector:
		return constOf(x.Elems)
	case *constant.ExprBitCast:
		return Const(operand(x.From))
	case *constant.ExprPtrToInt:
		return Const(operand(x.From))
	case *constant.ExprAddrSpaceCast:
		return Const(operand(x.From))
	case *constant.ExprGetElementPtr:
		return Const(operand(x.Src))
	case constant.Constant:
		return Operand{Kind: OperandConstant}
	case value.Named:
		if strings.HasPrefix(x.Ident(), "%") {
			return Local(x.Name())
		}
	}
	return Operand{Kind: OperandOther}
}

func constOf(cs []constant.Constant) Operand {
	elems := make([]Operand, 0, len(cs))
	for _, c := range cs {
		elems = append(elems, operand(c))
	}
	return Const(elems...)
}

func linkage(l enum.Linkage) Linkage {
	switch l {
	case enum.LinkagePrivate:
		return LinkagePrivate
	case enum.LinkageInternal:
		return LinkageInternal
	default:
		return LinkageExternal
	}
}
