// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reconcile runs the validation pipeline: classify the IR and the
// PDG, derive the ground truth, analyze the call graph, and reconcile
// every PDG category against its IR counterpart.
//
// # Example
//
//	v := reconcile.NewValidator(reconcile.WithLogger(logger))
//	res, err := v.Run(ctx, reconcile.Inputs{Module: m, Graph: g, AliasSets: sets})
//	if err != nil {
//	    return err
//	}
//	return res.WriteDir("out")
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/alias"
	"github.com/AleutianAI/pdgcheck/services/validator/callgraph"
	"github.com/AleutianAI/pdgcheck/services/validator/classify"
	"github.com/AleutianAI/pdgcheck/services/validator/fact"
	"github.com/AleutianAI/pdgcheck/services/validator/groundtruth"
	"github.com/AleutianAI/pdgcheck/services/validator/ir"
	"github.com/AleutianAI/pdgcheck/services/validator/pdg"
	"github.com/AleutianAI/pdgcheck/services/validator/report"
	"github.com/AleutianAI/pdgcheck/services/validator/taxonomy"
)

// =============================================================================
// Options
// =============================================================================

// Options configures a Validator.
type Options struct {
	// Entry is the program entry function. Default: "main"
	Entry string

	IntrinsicMarker     string
	AnnotationIntrinsic string
	AnnotationGlobal    string

	// ExtraCounts are appended to both count orderings.
	ExtraCounts []string

	// ExtraPairs are appended to the validation order and evaluated like
	// the default pairs.
	ExtraPairs []report.Pair

	Logger *slog.Logger
}

// Option is a functional option for Options.
type Option func(*Options)

// WithEntry sets the entry function.
func WithEntry(name string) Option {
	return func(o *Options) { o.Entry = name }
}

// WithIntrinsicMarker sets the intrinsic callee marker.
func WithIntrinsicMarker(s string) Option {
	return func(o *Options) { o.IntrinsicMarker = s }
}

// WithAnnotationIntrinsic sets the annotation intrinsic name.
func WithAnnotationIntrinsic(s string) Option {
	return func(o *Options) { o.AnnotationIntrinsic = s }
}

// WithAnnotationGlobal sets the annotation table name.
func WithAnnotationGlobal(s string) Option {
	return func(o *Options) { o.AnnotationGlobal = s }
}

// WithExtraCounts appends count names to the orderings.
func WithExtraCounts(names ...string) Option {
	return func(o *Options) { o.ExtraCounts = append(o.ExtraCounts, names...) }
}

// WithExtraPairs appends validation pairs.
func WithExtraPairs(pairs ...report.Pair) Option {
	return func(o *Options) { o.ExtraPairs = append(o.ExtraPairs, pairs...) }
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// =============================================================================
// Validator
// =============================================================================

// Inputs are the loaded artifacts of one run.
type Inputs struct {
	Module *ir.Module
	Graph  *pdg.Graph

	// AliasSets may be nil.
	AliasSets []*alias.Set
}

// Validator runs the pipeline.
//
// Thread Safety: Safe for concurrent use. Each Run owns its state; the
// category tree is shared read-only.
type Validator struct {
	tree      *taxonomy.Tree
	opts      Options
	orderings Orderings
	pairs     []report.Pair
}

// NewValidator builds a validator over the static category catalog.
func NewValidator(opts ...Option) *Validator {
	o := Options{
		Entry:  "main",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	tree := classify.NewCatalog()
	ord := DefaultOrderings(tree)
	ord.PDG = ord.PDG.WithCounts(o.ExtraCounts...)
	ord.IR = ord.IR.WithCounts(o.ExtraCounts...)
	ord.Validation = ord.Validation.WithPairs(o.ExtraPairs...)

	return &Validator{
		tree:      tree,
		opts:      o,
		orderings: ord,
		pairs:     ord.Validation.Pairs(),
	}
}

// Tree returns the category tree.
func (v *Validator) Tree() *taxonomy.Tree { return v.tree }

// Orderings returns the report orderings.
func (v *Validator) Orderings() Orderings { return v.orderings }

func (v *Validator) classifyOptions() []classify.Option {
	return []classify.Option{
		classify.WithIntrinsicMarker(v.opts.IntrinsicMarker),
		classify.WithAnnotationIntrinsic(v.opts.AnnotationIntrinsic),
		classify.WithAnnotationGlobal(v.opts.AnnotationGlobal),
		classify.WithLogger(v.opts.Logger),
	}
}

// Result is the outcome of one run.
type Result struct {
	// PDG and IR carry the count tables.
	PDG *report.Report
	IR  *report.Report

	// PDGRollups and IRRollups carry the rollup self-checks.
	PDGRollups *report.Report
	IRRollups  *report.Report

	// Validation carries the PDG-versus-IR reconciliations.
	Validation *report.Report

	Orderings        Orderings
	RollupOrderings  Orderings
	Unclassified     classify.Unclassified
	IRUnclassified   classify.Unclassified
	UnmappedNodes    int
	UnmappedEdges    int
	CallGraph        *callgraph.Analysis
	Warnings         []string
	Duration         time.Duration
	SkippedPairs     int
	EvaluatedPairs   int
	UnbalancedPairs  int
	DifferenceCount  int
	AliasBinderCount int
}

// Run executes the pipeline.
//
// Description:
//
//	The PDG and the IR are classified, ground-truth edges derived, the
//	call graph analyzed, and every pair of the validation order whose
//	sides evaluate is reconciled. A missing entry function or a closure
//	that fails to settle is recorded as a warning; the affected metrics
//	render as N/A.
//
// Outputs:
//
//	*Result - All reports plus run statistics.
//	error - ErrNilInput, or a catalog inconsistency.
func (v *Validator) Run(ctx context.Context, in Inputs) (res *Result, err error) {
	start := time.Now()
	ctx, span := startPhaseSpan(ctx, "Run")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		recordRunMetrics(ctx, time.Since(start), err == nil)
	}()

	if in.Module == nil || in.Graph == nil {
		return nil, fmt.Errorf("%w: module and PDG are required", ErrNilInput)
	}
	log := v.opts.Logger

	res = &Result{
		PDG:        report.New(),
		IR:         report.New(),
		PDGRollups: report.New(),
		IRRollups:  report.New(),
		Validation: report.New(),
		Orderings:  v.orderings,
	}

	// Classification.
	_, cspan := startPhaseSpan(ctx, "Classify")
	pdgRes, err := classify.PDG(v.tree, in.Graph, v.classifyOptions()...)
	if err != nil {
		cspan.End()
		return nil, fmt.Errorf("classifying PDG: %w", err)
	}
	irRes, err := classify.IR(v.tree, in.Module, v.classifyOptions()...)
	if err != nil {
		cspan.End()
		return nil, fmt.Errorf("classifying IR: %w", err)
	}
	res.Unclassified = pdgRes.Unclassified
	res.IRUnclassified = irRes.Unclassified
	cspan.End()

	for _, root := range []string{classify.RootPDGNode, classify.RootPDGEdge} {
		recordUnclassified(ctx, root, pdgRes.Unclassified.Counts[root])
	}
	recordUnclassified(ctx, classify.RootIRInstruction, irRes.Unclassified.Counts[classify.RootIRInstruction])

	// Ground truth and call graph.
	gt, err := groundtruth.Build(ctx, v.tree, in.Module, in.AliasSets, v.classifyOptions()...)
	if err != nil {
		return nil, fmt.Errorf("building ground truth: %w", err)
	}
	for _, s := range in.AliasSets {
		res.AliasBinderCount += len(s.Binders)
	}

	cg, cgErr := callgraph.Analyze(ctx, in.Graph, in.Module,
		callgraph.WithEntry(v.opts.Entry),
		callgraph.WithAnnotationGlobal(v.opts.AnnotationGlobal),
		callgraph.WithLogger(log),
	)
	res.CallGraph = cg
	switch {
	case cgErr == nil:
	case errors.Is(cgErr, callgraph.ErrNoMainFunction), errors.Is(cgErr, callgraph.ErrClosureDiverged):
		res.Warnings = append(res.Warnings, cgErr.Error())
	default:
		return nil, fmt.Errorf("analyzing call graph: %w", cgErr)
	}

	pdgRes.Nodes.Freeze()
	pdgRes.Edges.Freeze()
	irRes.Index.Freeze()
	gt.Index.Freeze()

	// Count tables.
	res.PDG.SetCounts(pdgRes.Nodes.PathSizes())
	res.PDG.SetCounts(pdgRes.Edges.PathSizes())
	for _, name := range callgraph.PDGMetricNames {
		if n, ok := cg.Metrics[name]; ok {
			res.PDG.SetCount(name, n)
		}
	}
	proper := 0
	for _, e := range in.Graph.Edges {
		if in.Graph.IsProperParameterIn(e) {
			proper++
		}
	}
	res.PDG.SetCount(CountProperParameterIn, proper)
	for _, n := range in.Graph.Nodes {
		if _, ok := in.Graph.LLID(n); !ok {
			res.UnmappedNodes++
		}
	}
	for _, e := range in.Graph.Edges {
		if _, ok := in.Graph.EdgeFact(e); !ok {
			res.UnmappedEdges++
		}
	}
	res.PDG.SetCount(CountUnmappedNodes, res.UnmappedNodes)
	for _, root := range []string{classify.RootPDGNode, classify.RootPDGEdge} {
		res.PDG.SetCount(classify.ReportName(root), pdgRes.Unclassified.Counts[root])
	}

	res.IR.SetCounts(irRes.Index.PathSizes())
	res.IR.SetCounts(gt.Index.PathSizes())
	for _, name := range callgraph.IRMetricNames {
		if n, ok := cg.Metrics[name]; ok {
			res.IR.SetCount(name, n)
		}
	}
	res.IR.SetCount(CountAliasDropped, len(gt.Dropped))
	res.IR.SetCount(classify.ReportName(classify.RootIRInstruction), irRes.Unclassified.Counts[classify.RootIRInstruction])

	// Rollup self-checks.
	var pdgRollups, irRollups []report.Pair
	pdgRollups = append(pdgRollups, reportRollups(res.PDGRollups, pdgRes.Nodes)...)
	pdgRollups = append(pdgRollups, reportRollups(res.PDGRollups, pdgRes.Edges)...)
	irRollups = append(irRollups, reportRollups(res.IRRollups, irRes.Index)...)
	irRollups = append(irRollups, reportRollups(res.IRRollups, gt.Index)...)
	res.RollupOrderings = Orderings{
		PDG: report.NewOrdering(nil, pdgRollups),
		IR:  report.NewOrdering(nil, irRollups),
	}

	// Validations.
	_, vspan := startPhaseSpan(ctx, "Reconcile")
	for _, p := range v.pairs {
		acc, ok, err := v.evaluate(p, in.Graph, pdgRes, irRes, gt)
		if err != nil {
			log.Debug("validation pair skipped", "a", p.A, "b", p.B, "reason", err)
		}
		if !ok {
			res.SkippedPairs++
			continue
		}
		res.EvaluatedPairs++
		t := acc.tuple
		if !t.Balanced() {
			res.UnbalancedPairs++
		}
		res.DifferenceCount += t.AMinusB + t.BMinusA
		recordDiscrepancies(ctx, p.A, p.B, t.AMinusB+t.BMinusA)
		acc.record(res.Validation, p)
	}
	vspan.SetAttributes(
		attribute.Int("validator.pairs_evaluated", res.EvaluatedPairs),
		attribute.Int("validator.pairs_unbalanced", res.UnbalancedPairs),
	)
	vspan.End()

	if total := res.Unclassified.Total() + res.IRUnclassified.Total(); total > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d facts could not be classified", total))
	}
	if res.UnmappedNodes > 0 {
		log.Warn("PDG nodes without IR identity", "count", res.UnmappedNodes)
	}

	res.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("validator.differences", res.DifferenceCount),
		attribute.Int("validator.warnings", len(res.Warnings)),
	)
	log.Info("validation complete",
		"pairs", res.EvaluatedPairs,
		"unbalanced", res.UnbalancedPairs,
		"differences", res.DifferenceCount,
		"duration", res.Duration)
	return res, nil
}

// reportRollups records the rollup self-check of x and returns the pairs
// in check order.
func reportRollups[F fact.Fact](r *report.Report, x *taxonomy.Index[F]) []report.Pair {
	var pairs []report.Pair
	for _, check := range taxonomy.CheckRollup(x) {
		report.Reconcile(r, check.ParentPath, check.Children, check.Account)
		pairs = append(pairs, report.Pair{A: check.ParentPath, B: check.Children})
	}
	return pairs
}

// evaluated is a reconciled pair of either fact kind.
type evaluated struct {
	tuple  account.Tuple
	record func(r *report.Report, p report.Pair)
}

// evaluate builds the account for p. ok is false when either side names
// no set.
func (v *Validator) evaluate(p report.Pair, g *pdg.Graph, pdgRes *classify.PDGResult,
	irRes *classify.IRResult, gt *groundtruth.Result) (evaluated, bool, error) {

	a, err := ParseExpr(p.A)
	if err != nil {
		return evaluated{}, false, err
	}
	b, err := ParseExpr(p.B)
	if err != nil {
		return evaluated{}, false, err
	}
	paths := a.Paths()
	if len(paths) == 0 {
		return evaluated{}, false, fmt.Errorf("%w: %s", ErrUnknownSide, p.A)
	}
	root, _, _ := strings.Cut(paths[0], ".")

	switch root {
	case classify.RootPDGNode:
		nodes, err := Eval(pdgRes.Nodes, a)
		if err != nil {
			return evaluated{}, false, err
		}
		expected, err := Eval(irRes.Index, b)
		if err != nil {
			return evaluated{}, false, err
		}
		claimed := account.Map(nodes, func(id fact.NodeID) (fact.ID, bool) {
			n, ok := g.Node(uint64(id))
			if !ok {
				return fact.ID{}, false
			}
			return g.LLID(n)
		})
		acc := account.New(claimed, expected)
		return evaluated{
			tuple:  acc.Tuple(),
			record: func(r *report.Report, p report.Pair) { report.Reconcile(r, p.A, p.B, acc) },
		}, true, nil

	case classify.RootPDGEdge:
		edges, err := Eval(pdgRes.Edges, a)
		if err != nil {
			return evaluated{}, false, err
		}
		expected, err := Eval(gt.Index, b)
		if err != nil {
			return evaluated{}, false, err
		}
		byID := make(map[uint64]*pdg.Edge, len(g.Edges))
		for _, e := range g.Edges {
			byID[e.ID] = e
		}
		claimed := account.Map(edges, func(id fact.EdgeID) (fact.Edge, bool) {
			e, ok := byID[uint64(id)]
			if !ok {
				return fact.Edge{}, false
			}
			return g.EdgeFact(e)
		})
		acc := account.New(claimed, expected)
		return evaluated{
			tuple:  acc.Tuple(),
			record: func(r *report.Report, p report.Pair) { report.Reconcile(r, p.A, p.B, acc) },
		}, true, nil

	default:
		return evaluated{}, false, fmt.Errorf("%w: %s", ErrUnknownSide, p.A)
	}
}
