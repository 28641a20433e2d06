// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fact defines the identities compared by the validator.
//
// A fact is an immutable, identity-bearing unit of information about the
// program: an IR value, a PDG node or edge, or an edge derived from the IR.
// Facts are plain comparable values so they can be stored in sets and used
// as map keys without hashing adapters.
//
// # Identities
//
// IR values are identified by ID, which mirrors the three ways a value can
// be named in a module:
//
//	Global("g")          @g          functions and global variables
//	Local("f", "x")      @f::%x      parameters and named locals of f
//	Instruction("f", 3)  @f::3       the fourth instruction of f
//
// Instruction indexes enumerate every instruction of a function followed by
// its block terminator, block by block, in textual order.
//
// # Rendering
//
// Every fact renders into Element, a closed tagged union over the fact kinds
// the validator reconciles. Reports store Elements rather than arbitrary
// values, so rendering a difference never needs dynamic dispatch.
package fact

import (
	"fmt"
	"strconv"
)

// =============================================================================
// IR identities
// =============================================================================

// Kind discriminates the three IR identity shapes.
type Kind uint8

const (
	// KindGlobal names a function or global variable.
	KindGlobal Kind = iota + 1

	// KindLocal names a parameter or local value inside a function.
	KindLocal

	// KindInstruction names an instruction by its position in a function.
	KindInstruction
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindLocal:
		return "local"
	case KindInstruction:
		return "instruction"
	default:
		return "unknown"
	}
}

// ID identifies an IR value.
//
// The zero ID is invalid and never produced by the constructors.
type ID struct {
	// Kind selects which of the remaining fields are meaningful.
	Kind Kind

	// Scope is the global name for KindGlobal and the owning function's
	// name otherwise.
	Scope string

	// Name is the local name for KindLocal.
	Name string

	// Index is the instruction index for KindInstruction.
	Index int
}

// Global returns the identity of a function or global variable.
func Global(name string) ID {
	return ID{Kind: KindGlobal, Scope: name}
}

// Local returns the identity of a named value inside fn.
func Local(fn, name string) ID {
	return ID{Kind: KindLocal, Scope: fn, Name: name}
}

// Instruction returns the identity of the index-th instruction of fn.
func Instruction(fn string, index int) ID {
	return ID{Kind: KindInstruction, Scope: fn, Index: index}
}

// IsZero reports whether id is the invalid zero value.
func (id ID) IsZero() bool {
	return id.Kind == 0
}

// Function returns the function or global this identity belongs to.
//
// For KindGlobal this is the global's own name.
func (id ID) Function() string {
	return id.Scope
}

// String renders the identity in the report notation.
func (id ID) String() string {
	switch id.Kind {
	case KindGlobal:
		return "@" + id.Scope
	case KindLocal:
		return "@" + id.Scope + "::%" + id.Name
	case KindInstruction:
		return "@" + id.Scope + "::" + strconv.Itoa(id.Index)
	default:
		return "<invalid>"
	}
}

// Element renders the identity as a report element.
func (id ID) Element() Element {
	return Element{kind: ElementValue, id: id}
}

// Compare orders identities by scope, kind, index, then name.
//
// Returns a negative number, zero, or a positive number like strings.Compare.
func (id ID) Compare(other ID) int {
	if id.Scope != other.Scope {
		if id.Scope < other.Scope {
			return -1
		}
		return 1
	}
	if id.Kind != other.Kind {
		return int(id.Kind) - int(other.Kind)
	}
	if id.Index != other.Index {
		if id.Index < other.Index {
			return -1
		}
		return 1
	}
	switch {
	case id.Name < other.Name:
		return -1
	case id.Name > other.Name:
		return 1
	}
	return 0
}

// =============================================================================
// Edges
// =============================================================================

// Edge is an ordered pair of IR identities.
//
// PDG edges are mapped onto IR identities so they can be compared with
// edges reconstructed from the IR.
type Edge struct {
	From ID
	To   ID
}

// NewEdge returns the edge from -> to.
func NewEdge(from, to ID) Edge {
	return Edge{From: from, To: to}
}

// String renders the edge as "from -> to".
func (e Edge) String() string {
	return e.From.String() + " -> " + e.To.String()
}

// Element renders the edge as a report element.
func (e Edge) Element() Element {
	return Element{kind: ElementEdge, edge: e}
}

// Compare orders edges by source then destination.
func (e Edge) Compare(other Edge) int {
	if c := e.From.Compare(other.From); c != 0 {
		return c
	}
	return e.To.Compare(other.To)
}

// =============================================================================
// PDG identities
// =============================================================================

// NodeID is the external numeric id of a PDG node.
type NodeID uint64

// String renders the id in decimal.
func (n NodeID) String() string {
	return strconv.FormatUint(uint64(n), 10)
}

// Element renders the node id as a report element.
func (n NodeID) Element() Element {
	return Element{kind: ElementNode, num: uint64(n)}
}

// EdgeID is the external numeric id of a PDG edge.
type EdgeID uint64

// String renders the id in decimal.
func (e EdgeID) String() string {
	return strconv.FormatUint(uint64(e), 10)
}

// Element renders the edge id as a report element.
func (e EdgeID) Element() Element {
	return Element{kind: ElementPDGEdge, num: uint64(e)}
}

// =============================================================================
// Element union
// =============================================================================

// ElementKind tags the variant held by an Element.
type ElementKind uint8

const (
	// ElementValue holds an IR identity.
	ElementValue ElementKind = iota + 1

	// ElementEdge holds an IR edge.
	ElementEdge

	// ElementNode holds a PDG node id.
	ElementNode

	// ElementPDGEdge holds a PDG edge id.
	ElementPDGEdge
)

// Element is the closed union of every fact kind the validator reconciles.
//
// Only the constructors in this package produce Elements, so the set of
// variants is fixed and String handles each of them explicitly.
type Element struct {
	kind ElementKind
	id   ID
	edge Edge
	num  uint64
}

// Kind returns the variant tag.
func (e Element) Kind() ElementKind {
	return e.kind
}

// String renders the element for the differences table.
func (e Element) String() string {
	switch e.kind {
	case ElementValue:
		return e.id.String()
	case ElementEdge:
		return e.edge.String()
	case ElementNode:
		return "node " + strconv.FormatUint(e.num, 10)
	case ElementPDGEdge:
		return "edge " + strconv.FormatUint(e.num, 10)
	default:
		return fmt.Sprintf("<element kind %d>", e.kind)
	}
}

// Compare orders elements by kind, then by their payload.
func (e Element) Compare(other Element) int {
	if e.kind != other.kind {
		return int(e.kind) - int(other.kind)
	}
	switch e.kind {
	case ElementValue:
		return e.id.Compare(other.id)
	case ElementEdge:
		return e.edge.Compare(other.edge)
	default:
		switch {
		case e.num < other.num:
			return -1
		case e.num > other.num:
			return 1
		}
		return 0
	}
}

// Fact is the constraint satisfied by every reconcilable identity.
type Fact interface {
	comparable
	Element() Element
}
