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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for validation runs.
var (
	tracer = otel.Tracer("pdgcheck.reconcile")
	meter  = otel.Meter("pdgcheck.reconcile")
)

// Metrics for validation runs.
var (
	runLatency       metric.Float64Histogram
	runTotal         metric.Int64Counter
	discrepancies    metric.Int64Counter
	unclassifiedFact metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"pdgcheck_run_duration_seconds",
			metric.WithDescription("Duration of validation runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"pdgcheck_runs_total",
			metric.WithDescription("Total number of validation runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		discrepancies, err = meter.Int64Counter(
			"pdgcheck_discrepancies_total",
			metric.WithDescription("Difference elements found per validation pair"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		unclassifiedFact, err = meter.Int64Counter(
			"pdgcheck_unclassified_total",
			metric.WithDescription("Facts whose category is not in the catalog"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startPhaseSpan creates a span for one pipeline phase.
func startPhaseSpan(ctx context.Context, phase string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Validator."+phase,
		trace.WithAttributes(
			attribute.String("validator.phase", phase),
		),
	)
}

// recordRunMetrics records the outcome of a run.
func recordRunMetrics(ctx context.Context, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
}

// recordDiscrepancies records the difference count of one pair.
func recordDiscrepancies(ctx context.Context, a, b string, n int) {
	if n == 0 {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}
	discrepancies.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("a", a),
		attribute.String("b", b),
	))
}

// recordUnclassified records unclassified facts under their root.
func recordUnclassified(ctx context.Context, root string, n int) {
	if n == 0 {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}
	unclassifiedFact.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("root", root),
	))
}
