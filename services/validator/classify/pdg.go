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
	"github.com/AleutianAI/pdgcheck/services/validator/pdg"
	"github.com/AleutianAI/pdgcheck/services/validator/taxonomy"
)

// PDGResult is the classified PDG.
type PDGResult struct {
	// Nodes and Edges are seeded with every static PDG category and rolled
	// up. Neither is frozen.
	Nodes *taxonomy.Index[fact.NodeID]
	Edges *taxonomy.Index[fact.EdgeID]

	Unclassified Unclassified
}

// NodeCategory returns the category path for a PDG node type, e.g.
// "Inst_FunCall" -> "PDGNode.Inst.FunCall". Parameter nodes are refined
// with ".Root" when root is true and ".NonRoot" otherwise.
func NodeCategory(typ string, root bool) string {
	path := typePath(RootPDGNode, typ)
	if strings.HasPrefix(typ, "Param_") {
		if root {
			return path + ".Root"
		}
		return path + ".NonRoot"
	}
	return path
}

// EdgeCategory returns the category path for a PDG edge type, e.g.
// "ControlDep_CallInv" -> "PDGEdge.ControlDep.CallInv".
func EdgeCategory(typ string) string {
	return typePath(RootPDGEdge, typ)
}

func typePath(root, typ string) string {
	return root + "." + strings.ReplaceAll(typ, "_", ".")
}

// PDG classifies every node and edge of g into indexes over tree.
//
// Description:
//
//	Both indexes are seeded with InsertEmpty for every static PDG category
//	so that absent kinds report as 0. A node or edge whose type maps
//	outside the catalog is counted in Unclassified under its root and
//	logged at Warn.
//
// Outputs:
//
//	*PDGResult - Rolled-up node and edge indexes.
//	error - Non-nil only when tree lacks the static PDG categories.
func PDG(tree *taxonomy.Tree, g *pdg.Graph, opts ...Option) (*PDGResult, error) {
	o := NewOptions(opts...)
	res := &PDGResult{
		Nodes:        taxonomy.NewIndex[fact.NodeID](tree),
		Edges:        taxonomy.NewIndex[fact.EdgeID](tree),
		Unclassified: newUnclassified(),
	}

	if err := seed(tree, res.Nodes, PDGNodeCategories()); err != nil {
		return nil, err
	}
	if err := seed(tree, res.Edges, PDGEdgeCategories()); err != nil {
		return nil, err
	}

	for _, n := range g.Nodes {
		path := NodeCategory(n.Type, n.ParamIndex != nil)
		c, ok := tree.Lookup(path)
		if !ok {
			res.Unclassified.add(RootPDGNode, n.Type)
			o.Logger.Warn("unclassified PDG node", "id", n.ID, "type", n.Type, "row", n.Row)
			continue
		}
		if err := res.Nodes.Insert(c, fact.NodeID(n.ID)); err != nil {
			return nil, err
		}
	}

	for _, e := range g.Edges {
		c, ok := tree.Lookup(EdgeCategory(e.Type))
		if !ok {
			res.Unclassified.add(RootPDGEdge, e.Type)
			o.Logger.Warn("unclassified PDG edge", "id", e.ID, "type", e.Type, "row", e.Row)
			continue
		}
		if err := res.Edges.Insert(c, fact.EdgeID(e.ID)); err != nil {
			return nil, err
		}
	}

	if err := res.Nodes.Rollup(); err != nil {
		return nil, err
	}
	if err := res.Edges.Rollup(); err != nil {
		return nil, err
	}
	return res, nil
}

func seed[F fact.Fact](tree *taxonomy.Tree, x *taxonomy.Index[F], paths []string) error {
	for _, p := range paths {
		c, ok := tree.Lookup(p)
		if !ok {
			return fmt.Errorf("%w: %s", taxonomy.ErrUnknownCategory, p)
		}
		if err := x.InsertEmpty(c); err != nil {
			return err
		}
	}
	return nil
}
