// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package callgraph builds call graphs over PDG function entries and
// measures how much of the program is reachable from the entry function.
package callgraph

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/AleutianAI/pdgcheck/services/validator/pdg"
)

// Graph is a directed graph with dense node indices.
//
// Description:
//
//	Nodes are PDG FunctionEntry nodes, plus at most one synthetic root
//	whose node is nil. The dense index is the gonum node ID. Parallel
//	edges are collapsed. Self loops are kept beside the gonum graph,
//	which does not allow them; they never shorten a path.
//
// Thread Safety: Not safe for concurrent mutation.
type Graph struct {
	g     *simple.DirectedGraph
	nodes []*pdg.Node
	index map[uint64]int
	loops map[int]struct{}
	edges int
}

// NewGraph returns a graph with one node per entry, in order.
func NewGraph(entries []*pdg.Node) *Graph {
	g := &Graph{
		g:     simple.NewDirectedGraph(),
		index: make(map[uint64]int, len(entries)),
		loops: make(map[int]struct{}),
	}
	for _, n := range entries {
		g.AddNode(n)
	}
	return g
}

// AddNode adds n and returns its index. Adding a node twice returns the
// existing index.
func (g *Graph) AddNode(n *pdg.Node) int {
	if i, ok := g.index[n.ID]; ok {
		return i
	}
	i := g.add(n)
	g.index[n.ID] = i
	return i
}

// AddRoot adds a synthetic node with no PDG counterpart.
func (g *Graph) AddRoot() int {
	return g.add(nil)
}

func (g *Graph) add(n *pdg.Node) int {
	i := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.g.AddNode(simple.Node(i))
	return i
}

// AddEdge adds from -> to and reports whether it was new.
func (g *Graph) AddEdge(from, to int) bool {
	if g.HasEdge(from, to) {
		return false
	}
	if from == to {
		g.loops[from] = struct{}{}
	} else {
		g.g.SetEdge(g.g.NewEdge(simple.Node(from), simple.Node(to)))
	}
	g.edges++
	return true
}

// HasEdge reports whether from -> to exists.
func (g *Graph) HasEdge(from, to int) bool {
	if from == to {
		_, ok := g.loops[from]
		return ok
	}
	return g.g.HasEdgeFromTo(int64(from), int64(to))
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Index returns the index of the node with PDG id.
func (g *Graph) Index(id uint64) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Node returns the PDG node at i, nil for the synthetic root.
func (g *Graph) Node(i int) *pdg.Node { return g.nodes[i] }

// Successors returns the successors of i in ascending order.
func (g *Graph) Successors(i int) []int {
	var out []int
	to := g.g.From(int64(i))
	for to.Next() {
		out = append(out, int(to.Node().ID()))
	}
	if _, ok := g.loops[i]; ok {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		g:     simple.NewDirectedGraph(),
		nodes: slices.Clone(g.nodes),
		index: make(map[uint64]int, len(g.index)),
		loops: make(map[int]struct{}, len(g.loops)),
		edges: g.edges,
	}
	for k, v := range g.index {
		out.index[k] = v
	}
	for i := range g.loops {
		out.loops[i] = struct{}{}
	}
	for i := range g.nodes {
		out.g.AddNode(simple.Node(i))
	}
	for i := range g.nodes {
		to := g.g.From(int64(i))
		for to.Next() {
			out.g.SetEdge(out.g.NewEdge(simple.Node(i), to.Node()))
		}
	}
	return out
}

// Infinity is the distance between unconnected nodes.
const Infinity = math.MaxInt

// Distances holds all-pairs shortest path lengths.
type Distances struct {
	n     int
	paths path.AllShortest
}

// At returns the length of the shortest path i -> j, or Infinity.
func (d *Distances) At(i, j int) int {
	w := d.paths.Weight(int64(i), int64(j))
	if math.IsInf(w, 1) {
		return Infinity
	}
	return int(w)
}

// Reachable returns every node reachable from i, including i, in
// ascending order.
func (d *Distances) Reachable(i int) []int {
	var out []int
	for j := 0; j < d.n; j++ {
		if d.At(i, j) != Infinity {
			out = append(out, j)
		}
	}
	return out
}

// Unreachable returns every node not reachable from i, in ascending order.
func (d *Distances) Unreachable(i int) []int {
	var out []int
	for j := 0; j < d.n; j++ {
		if d.At(i, j) == Infinity {
			out = append(out, j)
		}
	}
	return out
}

// FloydWarshall computes unit-weight shortest paths between every pair of
// nodes of g. Each node reaches itself at distance 0.
func FloydWarshall(g *Graph) *Distances {
	// Unit weights cannot form a negative cycle, so ok is always true.
	paths, _ := path.FloydWarshall(g.g)
	return &Distances{n: g.Len(), paths: paths}
}
