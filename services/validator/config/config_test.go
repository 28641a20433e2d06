// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Inputs.IR = "prog.ll"
	cfg.Inputs.PDG = "pdg.csv"
	return cfg
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Analysis.Entry)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdgcheck.yaml")
	content := `
inputs:
  ir: prog.ll
  pdg: pdg.csv
  alias_format: llvm
analysis:
  entry: start
  extra_pairs:
    - a: PDGNode.Inst
      b: IRInstruction
telemetry:
  metrics: prometheus
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "llvm", cfg.Inputs.AliasFormat)
	assert.Equal(t, "start", cfg.Analysis.Entry)
	assert.Equal(t, "llvm.", cfg.Analysis.IntrinsicMarker, "unset fields keep defaults")
	assert.Equal(t, "prometheus", cfg.Telemetry.Metrics)
	require.Len(t, cfg.Analysis.ExtraPairs, 1)
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.ReconcileOptions(), 6)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("inputs: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing ir", func(c *Config) { c.Inputs.IR = "" }, "Inputs.IR is required"},
		{"bad alias format", func(c *Config) { c.Inputs.AliasFormat = "dot" }, "Inputs.AliasFormat must be one of"},
		{"bad metrics exporter", func(c *Config) { c.Telemetry.Metrics = "otlp" }, "Telemetry.Metrics"},
		{"otlp endpoint required", func(c *Config) {
			c.Telemetry.Traces = "otlp"
			c.Telemetry.OTLPEndpoint = ""
		}, "Telemetry.OTLPEndpoint is required"},
		{"store path required", func(c *Config) { c.Store.Path = "" }, "Store.Path is required"},
		{"store path optional when disabled", func(c *Config) {
			c.Store.Enabled = false
			c.Store.Path = ""
		}, ""},
		{"negative retention", func(c *Config) { c.Store.Retention = -1 }, "Store.Retention"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "Logging.Level"},
		{"empty pair side", func(c *Config) {
			c.Analysis.ExtraPairs = []PairConfig{{A: "PDGNode"}}
		}, "Analysis.ExtraPairs[0].B is required"},
		{"malformed pair", func(c *Config) {
			c.Analysis.ExtraPairs = []PairConfig{{A: "PDGNode +", B: "IRFunction"}}
		}, "analysis.extra_pairs[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pdgcheck.yaml")
	require.NoError(t, WriteDefault(path, false))
	assert.Error(t, WriteDefault(path, false), "existing file is kept")
	require.NoError(t, WriteDefault(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
