// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package callgraph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/fact"
	"github.com/AleutianAI/pdgcheck/services/validator/ir"
	"github.com/AleutianAI/pdgcheck/services/validator/pdg"
)

var tracer = otel.Tracer("pdgcheck.callgraph")

// Metric names, in report order.
const (
	MetricDirectEdges            = "PDGDirectCallGraphEdges"
	MetricMainDirect             = "PDGMainComponentDirect"
	MetricNonMainDirect          = "PDGNonMainComponentsDirect"
	MetricFullEdges              = "EPDGDirectIndirectCallGraphEdges"
	MetricMainFull               = "EPDGMainComponentDirectIndirect"
	MetricNonMainFull            = "EPDGNonMainComponentsDirectIndirect"
	MetricExtendedComponent      = "EPDGExtendedComponent"
	MetricNotExtended            = "EPDGNotExtendedComponents"
	MetricExternalCallInv        = "EPDGExternalCallInvEdges"
	MetricDistinctSignatures     = "IRDistinctFunctionSignatures"
	MetricFunctionsUsedAsPointer = "IRDistinctFunctionsUsedAsPointer"
)

// PDGMetricNames lists the metrics computed from the PDG call graph.
var PDGMetricNames = []string{
	MetricDirectEdges, MetricMainDirect, MetricNonMainDirect,
	MetricFullEdges, MetricMainFull, MetricNonMainFull,
	MetricExtendedComponent, MetricNotExtended, MetricExternalCallInv,
}

// IRMetricNames lists the metrics computed from the IR module alone.
var IRMetricNames = []string{MetricDistinctSignatures, MetricFunctionsUsedAsPointer}

// Options configures Analyze.
type Options struct {
	// Entry is the program entry function.
	// Default: "main"
	Entry string

	// AnnotationGlobal is excluded when collecting functions referenced
	// from global initializers.
	// Default: "llvm.global.annotations"
	AnnotationGlobal string

	Logger *slog.Logger
}

// Option is a functional option for Options.
type Option func(*Options)

// WithEntry sets the entry function. Empty is ignored.
func WithEntry(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.Entry = name
		}
	}
}

// WithAnnotationGlobal sets the annotation table name. Empty is ignored.
func WithAnnotationGlobal(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.AnnotationGlobal = name
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Analysis is the result of Analyze.
type Analysis struct {
	// Direct holds ControlDep_CallInv edges between function entries.
	Direct *Graph

	// Full is Direct plus indirect-call edges resolved by signature.
	Full *Graph

	// EntryFound is false when the entry function has no PDG entry; the
	// reachability metrics are then absent.
	EntryFound bool

	// Extended is the extended component as function identities.
	Extended account.Set[fact.ID]

	// Seeds lists, in order of discovery, the functions added to the
	// extended component because they are referenced as pointers.
	Seeds []fact.ID

	// Iterations counts closure rounds.
	Iterations int

	// Unresolved counts CallInv edges whose caller or callee is not a
	// function entry.
	Unresolved int

	// Metrics holds every available metric. Absent names render as N/A.
	Metrics map[string]int
}

// Analyze builds the direct and full call graphs of g and computes the
// reachability metrics.
//
// Description:
//
//	The direct graph has one node per FunctionEntry and an edge for every
//	ControlDep_CallInv edge, from the caller's entry to the callee entry.
//	The full graph adds, for every Inst_FunCall node that is an indirect
//	call in m, edges to each address-taken defined function whose
//	signature equals the call's callee type.
//
//	The extended component starts with everything reachable from a
//	synthetic root pointing at the entry function. While functions with a
//	PDG entry are referenced as pointers from the component (or, in the
//	first round, from global initializers other than the annotation
//	table) and are not yet in it, each one is added together with
//	everything it reaches.
//
// Outputs:
//
//	*Analysis - Graphs, component and metrics. Always non-nil.
//	error - ErrNoMainFunction when the entry is missing; the edge-count
//	metrics are still valid.
func Analyze(ctx context.Context, g *pdg.Graph, m *ir.Module, opts ...Option) (*Analysis, error) {
	_, span := tracer.Start(ctx, "callgraph.Analyze")
	defer span.End()

	o := Options{
		Entry:            "main",
		AnnotationGlobal: "llvm.global.annotations",
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Analysis{
		Extended: account.NewSet[fact.ID](),
		Metrics: map[string]int{
			MetricDistinctSignatures:     len(m.DistinctSignatures()),
			MetricFunctionsUsedAsPointer: len(m.AddressTaken()),
		},
	}

	a.Direct, a.Unresolved = directGraph(g)
	a.Full = a.Direct.Clone()
	addIndirect(a.Full, g, m)

	a.Metrics[MetricDirectEdges] = a.Direct.EdgeCount()
	a.Metrics[MetricFullEdges] = a.Full.EdgeCount()
	if a.Unresolved > 0 {
		o.Logger.Warn("call edges without function entries", "count", a.Unresolved)
	}

	entries := g.FunctionEntryByName()
	entry, ok := entries[o.Entry]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNoMainFunction, o.Entry)
		o.Logger.Warn("reachability metrics unavailable", "entry", o.Entry, "error", err)
		span.RecordError(err)
		return a, err
	}
	a.EntryFound = true
	mainIdx, _ := a.Direct.Index(entry.ID)

	direct := FloydWarshall(a.Direct)
	a.Metrics[MetricMainDirect] = len(direct.Reachable(mainIdx))
	a.Metrics[MetricNonMainDirect] = len(direct.Unreachable(mainIdx))

	full := FloydWarshall(a.Full)
	a.Metrics[MetricMainFull] = len(full.Reachable(mainIdx))
	a.Metrics[MetricNonMainFull] = len(full.Unreachable(mainIdx))

	if err := a.extend(g, m, entries, mainIdx, o); err != nil {
		span.RecordError(err)
		return a, err
	}

	notExtended := 0
	for _, f := range m.Defined() {
		if !a.Extended.Has(f.ID()) {
			notExtended++
		}
	}
	a.Metrics[MetricExtendedComponent] = a.Extended.Len()
	a.Metrics[MetricNotExtended] = notExtended
	a.Metrics[MetricExternalCallInv] = len(a.Seeds)

	span.SetAttributes(
		attribute.Int("callgraph.direct_edges", a.Direct.EdgeCount()),
		attribute.Int("callgraph.full_edges", a.Full.EdgeCount()),
		attribute.Int("callgraph.extended", a.Extended.Len()),
		attribute.Int("callgraph.iterations", a.Iterations),
	)
	return a, nil
}

// directGraph resolves each CallInv edge's caller through the call site's
// owning function or, failing that, the ControlDep_Entry edge into the
// call site.
func directGraph(g *pdg.Graph) (*Graph, int) {
	cg := NewGraph(g.FunctionEntries())

	entryOf := make(map[uint64]uint64)
	for _, e := range g.EdgesOfType(pdg.TypeEntry) {
		entryOf[e.Dst] = e.Src
	}

	unresolved := 0
	for _, e := range g.EdgesOfType(pdg.TypeCallInv) {
		site, callee, err := g.Endpoints(e)
		if err != nil {
			unresolved++
			continue
		}
		caller := site.HasFn
		if caller == 0 {
			caller = entryOf[site.ID]
		}
		from, ok := cg.Index(caller)
		if !ok {
			unresolved++
			continue
		}
		to, ok := cg.Index(callee.ID)
		if !ok {
			unresolved++
			continue
		}
		cg.AddEdge(from, to)
	}
	return cg, unresolved
}

// addIndirect adds signature-matched edges for indirect call sites.
func addIndirect(cg *Graph, g *pdg.Graph, m *ir.Module) {
	entries := g.FunctionEntryByName()

	bySig := make(map[string][]int)
	for _, name := range m.AddressTaken() {
		f, ok := m.Func(name)
		if !ok || f.Declaration {
			continue
		}
		n, ok := entries[name]
		if !ok {
			continue
		}
		idx, _ := cg.Index(n.ID)
		bySig[f.Sig] = append(bySig[f.Sig], idx)
	}

	for _, n := range g.NodesOfType(pdg.TypeFunCall) {
		id, ok := g.LLID(n)
		if !ok {
			continue
		}
		inst, ok := m.Instruction(id)
		if !ok || !inst.IsCall() || inst.Callee.Static {
			continue
		}
		from, ok := cg.Index(n.HasFn)
		if !ok {
			continue
		}
		for _, to := range bySig[inst.Callee.Type] {
			cg.AddEdge(from, to)
		}
	}
}

// extend computes the extended component.
func (a *Analysis) extend(g *pdg.Graph, m *ir.Module, entries map[string]*pdg.Node, mainIdx int, o Options) error {
	rooted := a.Full.Clone()
	root := rooted.AddRoot()
	rooted.AddEdge(root, mainIdx)
	dist := FloydWarshall(rooted)

	addReachable := func(from int) {
		for _, i := range dist.Reachable(from) {
			n := rooted.Node(i)
			if n == nil {
				continue
			}
			name, ok := n.IRName()
			if !ok || !m.Defines(name) {
				continue
			}
			a.Extended.Add(fact.Global(name))
		}
	}
	addReachable(root)

	withEntry := func(names []string) []string {
		return slices.DeleteFunc(names, func(n string) bool {
			_, ok := entries[n]
			return !ok
		})
	}
	referencedIn := func() account.Set[string] {
		out := account.NewSet[string]()
		for id := range a.Extended {
			f, ok := m.Func(id.Function())
			if !ok {
				continue
			}
			out.Add(withEntry(m.FunctionRefs(f))...)
		}
		return out
	}
	pending := func(refs account.Set[string]) []string {
		var out []string
		for name := range refs {
			if !a.Extended.Has(fact.Global(name)) {
				out = append(out, name)
			}
		}
		slices.Sort(out)
		return out
	}

	refs := referencedIn()
	refs.Add(withEntry(m.GlobalFunctionRefs(o.AnnotationGlobal))...)
	diff := pending(refs)

	limit := len(entries) + 1
	for len(diff) > 0 {
		if a.Iterations >= limit {
			return fmt.Errorf("%w after %d rounds", ErrClosureDiverged, a.Iterations)
		}
		for _, name := range diff {
			a.Seeds = append(a.Seeds, fact.Global(name))
			a.Extended.Add(fact.Global(name))
			if idx, ok := rooted.Index(entries[name].ID); ok {
				addReachable(idx)
			}
		}
		diff = pending(referencedIn())
		a.Iterations++
	}
	return nil
}
