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
	"fmt"
	"strings"

	"github.com/AleutianAI/pdgcheck/services/validator/fact"
	"github.com/AleutianAI/pdgcheck/services/validator/ir"
	"github.com/AleutianAI/pdgcheck/services/validator/taxonomy"
)

// IRResult is the classified IR module.
type IRResult struct {
	// Index holds functions, parameters, globals and instructions. It is
	// rolled up but not frozen.
	Index *taxonomy.Index[fact.ID]

	Unclassified Unclassified
}

// CallCategory returns the category path of a call instruction.
//
// Description:
//
//	Rules apply in priority order: intrinsic (callee contains the marker
//	but not the annotation intrinsic), annotation, pointer (callee not
//	statically known), internal (callee defined in m, split by variadic
//	signature), external.
func CallCategory(m *ir.Module, inst *ir.Instruction, o Options) string {
	c := inst.Callee
	switch {
	case c.Static && strings.Contains(c.Name, o.IntrinsicMarker) && !strings.Contains(c.Name, o.AnnotationIntrinsic):
		return IRCallIntrinsic
	case c.Static && strings.Contains(c.Name, o.AnnotationIntrinsic):
		return IRCallAnnotation
	case !c.Static:
		return IRCallPointer
	}
	if f, ok := m.Func(c.Name); ok && !f.Declaration {
		if f.Variadic {
			return IRCallInternalVarArg
		}
		return IRCallInternalNonVar
	}
	return IRCallExternalNonVar
}

// GlobalCategory returns the category path of g, or "" for private
// globals, which are not IR facts.
func GlobalCategory(m *ir.Module, g *ir.Global, o Options) string {
	switch {
	case g.Linkage == ir.LinkagePrivate:
		return ""
	case g.Name == o.AnnotationGlobal:
		return IRGlobalAnnotation
	case g.Init == nil:
		return IRGlobalExternal
	case g.Linkage == ir.LinkageInternal:
		prefix, _, _ := strings.Cut(g.Name, ".")
		if m.Defines(prefix) {
			return IRGlobalFunction
		}
		return IRGlobalModule
	default:
		return IRGlobalOmni
	}
}

// InstructionCategory returns the category path of inst.
func InstructionCategory(m *ir.Module, inst *ir.Instruction, o Options) string {
	if inst.IsCall() {
		return CallCategory(m, inst, o)
	}
	return RootIRInstruction + "." + string(inst.Opcode)
}

// IR classifies every fact of m into an index over tree.
//
// Description:
//
//	Defined functions go to IRFunction and their parameters to
//	IRParameter.In. Globals follow GlobalCategory. Every instruction and
//	terminator of a defined function goes to IRInstruction.<Kind>, with
//	calls refined by CallCategory. The index is rolled up before it is
//	returned.
//
// Outputs:
//
//	*IRResult - The index and the unclassified counts.
//	error - Non-nil only when tree lacks the catalog's fixed categories.
func IR(tree *taxonomy.Tree, m *ir.Module, opts ...Option) (*IRResult, error) {
	o := NewOptions(opts...)
	res := &IRResult{Index: taxonomy.NewIndex[fact.ID](tree), Unclassified: newUnclassified()}

	insert := func(path string, f fact.ID) (bool, error) {
		c, ok := tree.Lookup(path)
		if !ok {
			return false, nil
		}
		if err := res.Index.Insert(c, f); err != nil {
			return false, fmt.Errorf("classifying %s: %w", f, err)
		}
		return true, nil
	}

	for _, f := range m.Defined() {
		if ok, err := insert(RootIRFunction, f.ID()); err != nil || !ok {
			return nil, missing(RootIRFunction, err)
		}
		for _, p := range f.Params {
			if ok, err := insert(IRParameterIn, f.ParamID(p)); err != nil || !ok {
				return nil, missing(IRParameterIn, err)
			}
		}
		for _, inst := range f.Insts {
			path := InstructionCategory(m, inst, o)
			ok, err := insert(path, inst.ID())
			if err != nil {
				return nil, err
			}
			if !ok {
				res.Unclassified.add(RootIRInstruction, string(inst.Opcode))
				o.Logger.Warn("unclassified IR instruction",
					"function", f.Name, "index", inst.Index, "opcode", inst.Opcode)
			}
		}
	}

	for _, g := range m.Globals {
		path := GlobalCategory(m, g, o)
		if path == "" {
			continue
		}
		if ok, err := insert(path, g.ID()); err != nil || !ok {
			return nil, missing(path, err)
		}
	}

	if err := res.Index.Rollup(); err != nil {
		return nil, err
	}
	return res, nil
}

func missing(path string, err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", taxonomy.ErrUnknownCategory, path)
}
