// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the pdgcheck YAML configuration.
//
// A missing file is not an error: Load returns DefaultConfig, and CLI
// flags fill in the inputs. Validation runs after flags are applied.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/pdgcheck/services/validator/classify"
	"github.com/AleutianAI/pdgcheck/services/validator/reconcile"
	"github.com/AleutianAI/pdgcheck/services/validator/report"
)

// ErrInvalid indicates a configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the top-level configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after
// validation.
type Config struct {
	// Inputs are the files of one run.
	Inputs InputsConfig `json:"inputs" yaml:"inputs"`

	// Output controls where reports are written.
	Output OutputConfig `json:"output" yaml:"output"`

	// Analysis tunes the classifiers and the call graph.
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`

	// Store controls the run history.
	Store StoreConfig `json:"store" yaml:"store"`

	// Telemetry controls tracing and metric export.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Logging controls the structured logger.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// InputsConfig names the input artifacts.
type InputsConfig struct {
	IR          string `json:"ir" yaml:"ir" validate:"required"`
	PDG         string `json:"pdg" yaml:"pdg" validate:"required"`
	Alias       string `json:"alias,omitempty" yaml:"alias,omitempty"`
	AliasFormat string `json:"alias_format" yaml:"alias_format" validate:"oneof=auto svf llvm"`
}

// OutputConfig controls report output.
type OutputConfig struct {
	Dir string `json:"dir" yaml:"dir" validate:"required"`
}

// PairConfig is an extra validation pair. Both sides are set expressions
// over category paths, e.g. "IRInstruction.Call - IRInstruction.Call.Annotation".
type PairConfig struct {
	A string `json:"a" yaml:"a" validate:"required"`
	B string `json:"b" yaml:"b" validate:"required"`
}

// AnalysisConfig tunes the pipeline.
type AnalysisConfig struct {
	Entry               string       `json:"entry" yaml:"entry" validate:"required"`
	IntrinsicMarker     string       `json:"intrinsic_marker" yaml:"intrinsic_marker" validate:"required"`
	AnnotationIntrinsic string       `json:"annotation_intrinsic" yaml:"annotation_intrinsic" validate:"required"`
	AnnotationGlobal    string       `json:"annotation_global" yaml:"annotation_global" validate:"required"`
	ExtraCounts         []string     `json:"extra_counts,omitempty" yaml:"extra_counts,omitempty" validate:"dive,required"`
	ExtraPairs          []PairConfig `json:"extra_pairs,omitempty" yaml:"extra_pairs,omitempty" validate:"dive"`
}

// StoreConfig controls the badger run history.
type StoreConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path" validate:"required_if=Enabled true"`

	// Retention is the number of runs kept per input; 0 keeps all.
	Retention int `json:"retention" yaml:"retention" validate:"gte=0,lte=10000"`
}

// TelemetryConfig selects the exporters.
type TelemetryConfig struct {
	ServiceName string `json:"service_name" yaml:"service_name" validate:"required"`
	Traces      string `json:"traces" yaml:"traces" validate:"oneof=none stdout otlp"`
	Metrics     string `json:"metrics" yaml:"metrics" validate:"oneof=none stdout prometheus"`

	// OTLPEndpoint is the collector for traces: otlp.
	OTLPEndpoint string `json:"otlp_endpoint,omitempty" yaml:"otlp_endpoint,omitempty" validate:"required_if=Traces otlp"`
	OTLPInsecure bool   `json:"otlp_insecure" yaml:"otlp_insecure"`

	// Textfile is a node-exporter textfile path written after each run.
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `json:"dir,omitempty" yaml:"dir,omitempty"`
	JSON  bool   `json:"json" yaml:"json"`
	Quiet bool   `json:"quiet" yaml:"quiet"`
}

// DefaultConfig returns the defaults. Inputs are left empty.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Inputs: InputsConfig{AliasFormat: "auto"},
		Output: OutputConfig{Dir: "pdgcheck-out"},
		Analysis: AnalysisConfig{
			Entry:               "main",
			IntrinsicMarker:     classify.DefaultIntrinsicMarker,
			AnnotationIntrinsic: classify.DefaultAnnotationIntrinsic,
			AnnotationGlobal:    classify.DefaultAnnotationGlobal,
		},
		Store: StoreConfig{
			Enabled:   true,
			Path:      filepath.Join(home, ".pdgcheck", "history"),
			Retention: 50,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "pdgcheck",
			Traces:       "none",
			Metrics:      "none",
			OTLPEndpoint: "localhost:4317",
			OTLPInsecure: true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over DefaultConfig.
//
// Description:
//
//	Fields absent from the file keep their defaults. An empty path or a
//	missing file returns the defaults. The result is not validated; call
//	Validate after applying flag overrides.
//
// Outputs:
//
//	Config - The merged configuration.
//	error - Read or YAML decoding failures.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	return cfg, nil
}

// WriteDefault writes DefaultConfig to path, creating the directory.
// An existing file is left untouched unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags and the extra pair expressions.
//
// Outputs:
//
//	error - ErrInvalid wrapping one line per failed field.
func (c Config) Validate() error {
	var problems []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}
	for i, p := range c.Analysis.ExtraPairs {
		for _, side := range []string{p.A, p.B} {
			if side == "" || side == report.NA {
				continue
			}
			if _, err := reconcile.ParseExpr(side); err != nil {
				problems = append(problems, fmt.Sprintf("analysis.extra_pairs[%d]: %v", i, err))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
}

// ReconcileOptions maps the analysis settings to pipeline options.
func (c Config) ReconcileOptions() []reconcile.Option {
	pairs := make([]report.Pair, 0, len(c.Analysis.ExtraPairs))
	for _, p := range c.Analysis.ExtraPairs {
		pairs = append(pairs, report.Pair{A: p.A, B: p.B})
	}
	return []reconcile.Option{
		reconcile.WithEntry(c.Analysis.Entry),
		reconcile.WithIntrinsicMarker(c.Analysis.IntrinsicMarker),
		reconcile.WithAnnotationIntrinsic(c.Analysis.AnnotationIntrinsic),
		reconcile.WithAnnotationGlobal(c.Analysis.AnnotationGlobal),
		reconcile.WithExtraCounts(c.Analysis.ExtraCounts...),
		reconcile.WithExtraPairs(pairs...),
	}
}
