// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry providers for pdgcheck and exports
// the outcome of the last run as Prometheus gauges.
//
// pdgcheck is a short-lived CLI, so there is no /metrics endpoint. With
// the prometheus exporter selected, the otel instruments land in a private
// registry that WriteTextfile dumps for the node-exporter textfile
// collector, alongside the last-run gauges.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/pdgcheck/services/validator/reconcile"
)

var (
	// ErrNilContext indicates Init was called without a context.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownExporter indicates an unsupported exporter name.
	ErrUnknownExporter = errors.New("unknown exporter")
)

// Config controls telemetry behavior.
type Config struct {
	// ServiceName identifies pdgcheck in traces and metrics.
	ServiceName string

	// ServiceVersion is the build version.
	ServiceVersion string

	// TraceExporter is "otlp", "stdout" or "none".
	TraceExporter string

	// OTLPEndpoint is the OTLP gRPC receiver for the "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string

	// OTLPInsecure disables TLS towards OTLPEndpoint.
	OTLPInsecure bool

	// MetricExporter is "prometheus", "stdout" or "none".
	MetricExporter string

	// Output receives stdout exporter output. Default: os.Stderr
	Output io.Writer
}

// DefaultConfig returns a configuration with every exporter disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "pdgcheck",
		ServiceVersion: "dev",
		TraceExporter:  "none",
		MetricExporter: "none",
		OTLPEndpoint:   "localhost:4317",
		OTLPInsecure:   true,
	}
}

// Telemetry owns the providers and the Prometheus registry of one process.
//
// Thread Safety: Safe for concurrent use after Init.
type Telemetry struct {
	registry *prometheus.Registry
	shutdown []func(context.Context) error

	lastRun         *prometheus.GaugeVec
	lastDuration    *prometheus.GaugeVec
	lastPairs       *prometheus.GaugeVec
	lastUnbalanced  *prometheus.GaugeVec
	lastDifferences *prometheus.GaugeVec
	lastUnclassed   *prometheus.GaugeVec
}

// Init sets the global tracer and meter providers.
//
// Description:
//
//	Exporters named "none" leave the corresponding otel global untouched,
//	so instruments stay no-ops. The last-run gauges are always registered
//	so that WriteTextfile works without a metric exporter.
//
// Outputs:
//
//	*Telemetry - Call Shutdown on exit to flush exporters.
//	error - ErrNilContext, ErrUnknownExporter, or exporter failures.
//
// Thread Safety: Call once at startup.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := []string{"subject"}
	t := &Telemetry{
		registry: reg,
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pdgcheck_last_run_timestamp_seconds",
			Help: "Unix time of the last validation run",
		}, labels),
		lastDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pdgcheck_last_run_duration_seconds",
			Help: "Duration of the last validation run",
		}, labels),
		lastPairs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pdgcheck_last_run_pairs",
			Help: "Validation pairs evaluated by the last run",
		}, labels),
		lastUnbalanced: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pdgcheck_last_run_unbalanced_pairs",
			Help: "Validation pairs with a non-empty difference in the last run",
		}, labels),
		lastDifferences: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pdgcheck_last_run_differences",
			Help: "Difference elements found by the last run",
		}, labels),
		lastUnclassed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pdgcheck_last_run_unclassified",
			Help: "Facts the last run could not classify",
		}, labels),
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	if cfg.TraceExporter != "none" && cfg.TraceExporter != "" {
		tp, err := initTracer(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		t.shutdown = append(t.shutdown, tp.Shutdown)
	}

	if cfg.MetricExporter != "none" && cfg.MetricExporter != "" {
		mp, err := initMeter(cfg, res, reg)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("init meter: %w", err)
		}
		otel.SetMeterProvider(mp)
		t.shutdown = append(t.shutdown, mp.Shutdown)
	}

	return t, nil
}

func initTracer(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	switch cfg.TraceExporter {
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		return trace.NewTracerProvider(
			trace.WithBatcher(exporter),
			trace.WithResource(res),
		), nil

	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Output), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create exporter: %w", err)
		}
		return trace.NewTracerProvider(
			trace.WithSyncer(exporter),
			trace.WithResource(res),
		), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
}

func initMeter(cfg Config, res *resource.Resource, reg *prometheus.Registry) (*metric.MeterProvider, error) {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		), nil

	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Output), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}

// Shutdown flushes and stops every provider Init started.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdown = nil
	return errors.Join(errs...)
}

// RecordRun sets the last-run gauges of subject from s.
func (t *Telemetry) RecordRun(subject string, at time.Time, s reconcile.Summary) {
	t.lastRun.WithLabelValues(subject).Set(float64(at.Unix()))
	t.lastDuration.WithLabelValues(subject).Set(s.Duration.Seconds())
	t.lastPairs.WithLabelValues(subject).Set(float64(s.Pairs))
	t.lastUnbalanced.WithLabelValues(subject).Set(float64(s.Unbalanced))
	t.lastDifferences.WithLabelValues(subject).Set(float64(s.Differences))
	t.lastUnclassed.WithLabelValues(subject).Set(float64(s.Unclassified))
}

// Gatherer exposes the registry, mainly for tests.
func (t *Telemetry) Gatherer() prometheus.Gatherer { return t.registry }

// WriteTextfile writes every registered metric to path in the Prometheus
// text format. The file is replaced atomically.
func (t *Telemetry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, t.registry); err != nil {
		return fmt.Errorf("write textfile %s: %w", path, err)
	}
	return nil
}
