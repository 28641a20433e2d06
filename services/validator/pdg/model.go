// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pdg models the claimed Program Dependence Graph produced by the
// external extractor and maps its nodes onto IR identities.
//
// A PDG dump is a headerless CSV of Node and Edge rows. Nodes reference
// their owning function entry node through has_fn; the mapping to IR
// identities (Graph.LLID) follows that reference.
package pdg

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/AleutianAI/pdgcheck/services/validator/fact"
)

// Node and edge type strings the validator interprets directly.
const (
	TypeFunctionEntry = "FunctionEntry"
	TypeFunCall       = "Inst_FunCall"
	TypeCallInv       = "ControlDep_CallInv"
	TypeCallRet       = "ControlDep_CallRet"
	TypeEntry         = "ControlDep_Entry"
	TypeParameterIn   = "Parameter_In"
	TypeActualIn      = "Param_ActualIn"
	TypeFormalIn      = "Param_FormalIn"
)

// Node is one PDG node row.
type Node struct {
	ID   uint64
	Type string

	// IR is the LLVM text the extractor attached to the node.
	IR string

	// HasFn is the id of the owning FunctionEntry node, 0 for none.
	HasFn uint64

	Source string
	Line   *uint64
	Col    *uint64

	// InstIndex is the instruction's position in its function.
	InstIndex *uint64

	// ParamIndex is set for parameter tree roots.
	ParamIndex *uint64

	// Row is the dump line the node was read from.
	Row int
}

var irNameRe = regexp.MustCompile(`@((\w|_|\.)+)`)

// IRName returns the first @-name in the node's IR text.
func (n *Node) IRName() (string, bool) {
	m := irNameRe.FindStringSubmatch(n.IR)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Element renders the node for difference listings.
func (n *Node) Element() fact.Element {
	return fact.NodeID(n.ID).Element()
}

// Edge is one PDG edge row.
type Edge struct {
	ID   uint64
	Type string
	Src  uint64
	Dst  uint64

	// Row is the dump line the edge was read from.
	Row int
}

// Element renders the edge for difference listings.
func (e *Edge) Element() fact.Element {
	return fact.EdgeID(e.ID).Element()
}

// Graph is a parsed PDG with node lookup by id.
//
// Thread Safety: Immutable after parsing; safe for concurrent reads.
type Graph struct {
	Nodes []*Node
	Edges []*Edge

	byID map[uint64]*Node
}

// NewGraph indexes nodes and edges.
//
// Outputs:
//
//	error - ErrDuplicateID for repeated node ids, ErrUnknownNode for edges
//	with a dangling endpoint.
func NewGraph(nodes []*Node, edges []*Edge) (*Graph, error) {
	g := &Graph{Nodes: nodes, Edges: edges, byID: make(map[uint64]*Node, len(nodes))}
	for _, n := range nodes {
		if _, dup := g.byID[n.ID]; dup {
			return nil, fmt.Errorf("%w: node %d", ErrDuplicateID, n.ID)
		}
		g.byID[n.ID] = n
	}
	for _, e := range edges {
		if _, _, err := g.Endpoints(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id uint64) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Endpoints returns the source and destination nodes of e.
func (g *Graph) Endpoints(e *Edge) (*Node, *Node, error) {
	src, ok := g.byID[e.Src]
	if !ok {
		return nil, nil, fmt.Errorf("%w: edge %d source %d", ErrUnknownNode, e.ID, e.Src)
	}
	dst, ok := g.byID[e.Dst]
	if !ok {
		return nil, nil, fmt.Errorf("%w: edge %d destination %d", ErrUnknownNode, e.ID, e.Dst)
	}
	return src, dst, nil
}

// Function returns the FunctionEntry node owning n.
func (g *Graph) Function(n *Node) (*Node, bool) {
	if n.HasFn == 0 {
		return nil, false
	}
	return g.Node(n.HasFn)
}

// NodesOfType returns the nodes whose type equals t, in dump order.
func (g *Graph) NodesOfType(t string) []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// EdgesOfType returns the edges whose type equals t, in dump order.
func (g *Graph) EdgesOfType(t string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// FunctionEntries returns every FunctionEntry node.
func (g *Graph) FunctionEntries() []*Node {
	return g.NodesOfType(TypeFunctionEntry)
}

// FunctionEntryByName maps IR function names to their entry nodes.
func (g *Graph) FunctionEntryByName() map[string]*Node {
	out := make(map[string]*Node)
	for _, n := range g.FunctionEntries() {
		if name, ok := n.IRName(); ok {
			out[name] = n
		}
	}
	return out
}

// LLID maps a node to its IR identity.
//
// Description:
//
//	In priority order: an instruction index maps to
//	Instruction{fn, index}; a parameter index maps to Local{fn, index};
//	a node with an owning function maps to Global{fn}; anything else maps
//	to Global{name} using the node's own IR text. fn is the IR name of the
//	owning FunctionEntry node.
//
// Outputs:
//
//	fact.ID - The identity.
//	bool - False when the owning function or an IR name cannot be found.
func (g *Graph) LLID(n *Node) (fact.ID, bool) {
	if n.InstIndex != nil || n.ParamIndex != nil || n.HasFn != 0 {
		fnNode, ok := g.Function(n)
		if !ok {
			return fact.ID{}, false
		}
		fn, ok := fnNode.IRName()
		if !ok {
			return fact.ID{}, false
		}
		switch {
		case n.InstIndex != nil:
			return fact.Instruction(fn, int(*n.InstIndex)), true
		case n.ParamIndex != nil:
			return fact.Local(fn, strconv.FormatUint(*n.ParamIndex, 10)), true
		default:
			return fact.Global(fn), true
		}
	}
	name, ok := n.IRName()
	if !ok {
		return fact.ID{}, false
	}
	return fact.Global(name), true
}

// EdgeFact maps e to the pair of its endpoints' IR identities.
func (g *Graph) EdgeFact(e *Edge) (fact.Edge, bool) {
	src, dst, err := g.Endpoints(e)
	if err != nil {
		return fact.Edge{}, false
	}
	a, ok := g.LLID(src)
	if !ok {
		return fact.Edge{}, false
	}
	b, ok := g.LLID(dst)
	if !ok {
		return fact.Edge{}, false
	}
	return fact.NewEdge(a, b), true
}

// IsProperParameterIn reports whether e is a Parameter_In edge from an
// actual-in node to a root formal-in node.
func (g *Graph) IsProperParameterIn(e *Edge) bool {
	if e.Type != TypeParameterIn {
		return false
	}
	src, dst, err := g.Endpoints(e)
	if err != nil {
		return false
	}
	return src.Type == TypeActualIn && dst.Type == TypeFormalIn && dst.ParamIndex != nil
}
