// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package groundtruth

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/alias"
	"github.com/AleutianAI/pdgcheck/services/validator/classify"
	"github.com/AleutianAI/pdgcheck/services/validator/fact"
	"github.com/AleutianAI/pdgcheck/services/validator/ir"
	"github.com/AleutianAI/pdgcheck/services/validator/taxonomy"
)

var tracer = otel.Tracer("pdgcheck.groundtruth")

// Result is the ground truth for one module.
type Result struct {
	// Index holds every expected edge under its IREdge category, rolled
	// up but not frozen.
	Index *taxonomy.Index[fact.Edge]

	// DefUse is the unpartitioned sweep output.
	DefUse DefUse

	// Dropped lists alias binders that did not resolve to an IR fact.
	Dropped []alias.Binder
}

// Build derives every ground-truth edge family and indexes it over tree.
//
// Description:
//
//	Def-use, alias, call-invoke, call-return, annotation-var and
//	annotation-global edges are inserted under their IREdge categories.
//	Each family's category is marked present even when empty. sets may
//	be nil when no alias dump was supplied.
//
// Outputs:
//
//	*Result - The index plus the dropped binders.
//	error - Non-nil only when tree lacks an IREdge category.
func Build(ctx context.Context, tree *taxonomy.Tree, m *ir.Module, sets []*alias.Set, opts ...classify.Option) (*Result, error) {
	_, span := tracer.Start(ctx, "groundtruth.Build")
	defer span.End()

	o := classify.NewOptions(opts...)
	res := &Result{Index: taxonomy.NewIndex[fact.Edge](tree)}

	put := func(path string, edges account.Set[fact.Edge]) error {
		c, ok := tree.Lookup(path)
		if !ok {
			return fmt.Errorf("%w: %s", taxonomy.ErrUnknownCategory, path)
		}
		return res.Index.InsertSet(c, edges)
	}

	res.DefUse = DefUseEdges(m, o)
	for path, edges := range res.DefUse.Parts {
		if err := put(path, edges); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	resolution := alias.ResolveAll(m, sets)
	res.Dropped = resolution.Dropped
	for _, dropped := range resolution.Dropped {
		o.Logger.Debug("alias binder not resolved", "binder", dropped.String())
	}
	if len(resolution.Dropped) > 0 {
		o.Logger.Warn("alias binders not resolved", "count", len(resolution.Dropped))
	}
	for path, edges := range AliasEdges(resolution) {
		if err := put(path, edges); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	families := []struct {
		path  string
		edges account.Set[fact.Edge]
	}{
		{classify.IREdgeAlias, account.NewSet[fact.Edge]()},
		{classify.IREdgeCallInv, CallInvEdges(m)},
		{classify.IREdgeCallRet, CallRetEdges(m)},
		{classify.IREdgeAnnoVar, AnnoVarEdges(res.DefUse)},
		{classify.IREdgeAnnoGlobal, AnnoGlobalEdges(m, o)},
	}
	for _, fam := range families {
		if err := put(fam.path, fam.edges); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	if err := res.Index.Rollup(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("groundtruth.defuse_intra", res.DefUse.Intra.Len()),
		attribute.Int("groundtruth.defuse_inter", res.DefUse.Inter.Len()),
		attribute.Int("groundtruth.alias", res.Index.GetPath(classify.IREdgeAlias).Len()),
		attribute.Int("groundtruth.alias_dropped", len(res.Dropped)),
	)
	return res, nil
}
