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
	"fmt"
	"strings"

	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/classify"
	"github.com/AleutianAI/pdgcheck/services/validator/fact"
	"github.com/AleutianAI/pdgcheck/services/validator/report"
	"github.com/AleutianAI/pdgcheck/services/validator/taxonomy"
)

// Empty is the label of the empty set.
const Empty = "Empty"

// labels maps report labels that are not category paths to the category
// they stand for.
var labels = map[string]string{
	"IRAnnoVar":    classify.IREdgeAnnoVar,
	"IRAnnoGlobal": classify.IREdgeAnnoGlobal,
}

// Expr is a set expression over category paths, e.g.
// "IRInstruction.Call - IRInstruction.Call.Annotation". Terms are applied
// left to right.
type Expr struct {
	Label string
	terms []term
}

type term struct {
	path  string
	minus bool
}

// Paths returns the category paths the expression reads.
func (e Expr) Paths() []string {
	out := make([]string, len(e.terms))
	for i, t := range e.terms {
		out[i] = t.path
	}
	return out
}

// ParseExpr parses a label.
//
// Description:
//
//	The grammar is PATH ((" + " | " - ") PATH)*. "Empty" is the empty
//	set. "N/A" yields ErrNotEvaluable. Labels in the alias table (for
//	example "IRAnnoVar") stand for their category.
func ParseExpr(label string) (Expr, error) {
	e := Expr{Label: label}
	switch strings.TrimSpace(label) {
	case "":
		return e, fmt.Errorf("%w: empty label", ErrBadExpr)
	case report.NA:
		return e, ErrNotEvaluable
	case Empty:
		return e, nil
	}

	fields := strings.Fields(label)
	if len(fields)%2 == 0 {
		return e, fmt.Errorf("%w: %q", ErrBadExpr, label)
	}
	for i := 0; i < len(fields); i += 2 {
		t := term{path: fields[i]}
		if p, ok := labels[t.path]; ok {
			t.path = p
		}
		if i > 0 {
			switch fields[i-1] {
			case "+":
			case "-":
				t.minus = true
			default:
				return e, fmt.Errorf("%w: operator %q in %q", ErrBadExpr, fields[i-1], label)
			}
		}
		e.terms = append(e.terms, t)
	}
	return e, nil
}

// Eval evaluates e against x. Every path must be in x's tree.
func Eval[F fact.Fact](x *taxonomy.Index[F], e Expr) (account.Set[F], error) {
	out := account.NewSet[F]()
	for _, t := range e.terms {
		c, ok := x.Tree().Lookup(t.path)
		if !ok {
			return nil, fmt.Errorf("%w: %s", taxonomy.ErrUnknownCategory, t.path)
		}
		if t.minus {
			out = out.Difference(x.Get(c))
		} else {
			out.AddSet(x.Get(c))
		}
	}
	return out, nil
}
