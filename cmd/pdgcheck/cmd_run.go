// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/pdgcheck/pkg/logging"
	"github.com/AleutianAI/pdgcheck/services/validator/alias"
	"github.com/AleutianAI/pdgcheck/services/validator/config"
	"github.com/AleutianAI/pdgcheck/services/validator/ir"
	"github.com/AleutianAI/pdgcheck/services/validator/pdg"
	"github.com/AleutianAI/pdgcheck/services/validator/reconcile"
	"github.com/AleutianAI/pdgcheck/services/validator/store"
	"github.com/AleutianAI/pdgcheck/services/validator/telemetry"
)

// maxLoggedRowErrors caps the rejected rows logged per input.
const maxLoggedRowErrors = 5

// runFlags override the inputs and analysis sections of the config.
type runFlags struct {
	ir          string
	pdg         string
	alias       string
	aliasFormat string
	out         string
	entry       string
	noStore     bool
	all         bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.ir, "ir", "", "LLVM IR text file (.ll)")
	fs.StringVar(&f.pdg, "pdg", "", "PDG dump (CSV)")
	fs.StringVar(&f.alias, "alias", "", "alias set dump (optional)")
	fs.StringVar(&f.aliasFormat, "alias-format", "", "alias dump format: auto, svf or llvm")
	fs.StringVar(&f.out, "out", "", "report output directory")
	fs.StringVar(&f.entry, "entry", "", "entry function of the call graph")
	fs.BoolVar(&f.noStore, "no-store", false, "do not record the run in the history")
	fs.BoolVar(&f.all, "all", false, "print balanced pairs too")
}

// apply overlays the set flags onto cfg.
func (f *runFlags) apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Inputs.IR, f.ir)
	set(&cfg.Inputs.PDG, f.pdg)
	set(&cfg.Inputs.Alias, f.alias)
	set(&cfg.Inputs.AliasFormat, f.aliasFormat)
	set(&cfg.Output.Dir, f.out)
	set(&cfg.Analysis.Entry, f.entry)
	if f.noStore {
		cfg.Store.Enabled = false
	}
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate a PDG dump against its IR once",
		Long: `Loads the IR, the PDG dump and the optional alias dump, validates
every pair, writes the CSV reports and records the run in the history.

Exits 1 when any evaluated pair or rollup is unbalanced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := newPipeline(ctx, a, &f)
			if err != nil {
				return err
			}
			defer p.close(ctx)

			s, err := p.runOnce(ctx)
			if err != nil {
				return err
			}
			if !s.Clean() {
				return fmt.Errorf("%w: %d of %d pairs, %d rollups", errUnbalanced, s.Unbalanced, s.Pairs, s.RollupFailures)
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

// =============================================================================
// Pipeline
// =============================================================================

// pipeline holds what one or more validation runs share.
type pipeline struct {
	a         *app
	validator *reconcile.Validator
	telemetry *telemetry.Telemetry
	history   *store.Store
	all       bool
}

// newPipeline applies the flags, validates the configuration and starts
// telemetry and the history.
//
// Description:
//
//	A history that cannot be opened, for example because another
//	pdgcheck process holds the lock, is reported and skipped.
func newPipeline(ctx context.Context, a *app, f *runFlags) (*pipeline, error) {
	f.apply(&a.cfg)
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	tc := telemetry.DefaultConfig()
	tc.ServiceName = a.cfg.Telemetry.ServiceName
	tc.ServiceVersion = version
	tc.TraceExporter = a.cfg.Telemetry.Traces
	tc.MetricExporter = a.cfg.Telemetry.Metrics
	tc.OTLPEndpoint = a.cfg.Telemetry.OTLPEndpoint
	tc.OTLPInsecure = a.cfg.Telemetry.OTLPInsecure
	tc.Output = a.stderr
	tel, err := telemetry.Init(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("start telemetry: %w", err)
	}

	opts := append(a.cfg.ReconcileOptions(), reconcile.WithLogger(a.logger.Slog()))
	p := &pipeline{
		a:         a,
		validator: reconcile.NewValidator(opts...),
		telemetry: tel,
		all:       f.all,
	}

	if a.cfg.Store.Enabled {
		st, err := a.openStore()
		if err != nil {
			a.logger.Warn("run history unavailable", "error", err)
			a.printer.Warn("run history unavailable; this run will not be recorded")
		} else {
			p.history = st
		}
	}
	return p, nil
}

func (p *pipeline) close(ctx context.Context) {
	if p.history != nil {
		if err := p.history.Close(); err != nil {
			p.a.logger.Warn("closing run history", "error", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.telemetry.Shutdown(shutdownCtx); err != nil {
		p.a.logger.Warn("telemetry shutdown", "error", err)
	}
}

// runOnce performs one validation and reports it everywhere.
//
// Outputs:
//
//	reconcile.Summary - The outcome; inspect Clean for the verdict.
//	error - Input, validation or report writing failures.
func (p *pipeline) runOnce(ctx context.Context) (reconcile.Summary, error) {
	cfg := p.a.cfg
	subject := store.Subject(cfg.Inputs.IR)
	started := time.Now()

	spin := p.a.printer.Spin("loading " + subject)
	defer spin.Stop()
	in, warnings, err := loadInputs(ctx, cfg.Inputs, p.a.logger)
	if err != nil {
		return reconcile.Summary{}, err
	}
	spin.Update("validating " + subject)
	res, err := p.validator.Run(ctx, in)
	if err != nil {
		return reconcile.Summary{}, fmt.Errorf("validation: %w", err)
	}
	spin.Update("writing reports to " + cfg.Output.Dir)
	if err := res.WriteDir(cfg.Output.Dir); err != nil {
		return reconcile.Summary{}, err
	}
	spin.Stop()

	s := res.Summary()
	s.Warnings = append(warnings, s.Warnings...)
	p.a.printer.Summary(subject, cfg.Output.Dir, s)
	p.a.printer.Validations(s.ValidationTable, p.all)

	p.record(ctx, subject, res)
	p.telemetry.RecordRun(subject, started, s)
	if path := cfg.Telemetry.Textfile; path != "" {
		if err := p.telemetry.WriteTextfile(path); err != nil {
			p.a.logger.Warn("writing metrics textfile", "path", path, "error", err)
		}
	}

	p.a.logger.Info("run complete",
		"subject", subject,
		"pairs", s.Pairs,
		"unbalanced", s.Unbalanced,
		"rollup_failures", s.RollupFailures,
		"duration", s.Duration,
	)
	return s, nil
}

// record saves res in the history, shows regressions against the previous
// run of the same subject and applies the retention limit. Failures are
// logged; they never fail the run.
func (p *pipeline) record(ctx context.Context, subject string, res *reconcile.Result) {
	if p.history == nil {
		return
	}
	cfg := p.a.cfg
	logger := p.a.logger.With("subject", subject)

	prev, err := p.history.Latest(ctx, subject)
	if err != nil && !errors.Is(err, store.ErrRunNotFound) {
		logger.Warn("reading previous run", "error", err)
	}

	run := store.NewRun(subject, map[string]string{
		"ir":    cfg.Inputs.IR,
		"pdg":   cfg.Inputs.PDG,
		"alias": cfg.Inputs.Alias,
	}, res)
	id, err := p.history.Save(ctx, run)
	if err != nil {
		logger.Warn("saving run", "error", err)
		return
	}
	logger.Debug("run recorded", "id", id)

	if prev != nil {
		if c := store.Compare(prev, run); !c.Clean() {
			p.a.printer.Comparison(c)
		}
	}

	pruned, err := p.history.Prune(ctx, subject, cfg.Store.Retention)
	if err != nil {
		logger.Warn("pruning history", "error", err)
	} else if pruned > 0 {
		logger.Debug("history pruned", "deleted", pruned)
	}
}

// loadInputs reads the IR, the PDG dump and the alias dump concurrently.
//
// Description:
//
//	Rejected rows of the PDG and alias dumps are not fatal. They are
//	logged and returned as warnings.
func loadInputs(ctx context.Context, cfg config.InputsConfig, logger *logging.Logger) (reconcile.Inputs, []string, error) {
	var (
		module  *ir.Module
		graph   *pdg.ParseResult
		aliases *alias.ParseResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := ir.LoadFile(gctx, cfg.IR)
		if err != nil {
			return fmt.Errorf("loading IR %s: %w", cfg.IR, err)
		}
		module = m
		return nil
	})
	g.Go(func() error {
		r, err := pdg.ParseFile(gctx, cfg.PDG)
		if err != nil {
			return err
		}
		graph = r
		return nil
	})
	if cfg.Alias != "" {
		g.Go(func() error {
			r, err := alias.ParseFile(gctx, cfg.Alias, alias.Format(cfg.AliasFormat))
			if err != nil {
				return fmt.Errorf("loading alias dump %s: %w", cfg.Alias, err)
			}
			aliases = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reconcile.Inputs{}, nil, err
	}

	var warnings []string
	in := reconcile.Inputs{Module: module, Graph: graph.Graph}
	if graph.Incomplete {
		warnings = append(warnings, fmt.Sprintf("%d of %d PDG rows rejected", len(graph.Errors), graph.Rows))
		for i, e := range graph.Errors {
			if i == maxLoggedRowErrors {
				break
			}
			logger.Warn("rejected PDG row", "error", e)
		}
	}
	if aliases != nil {
		in.AliasSets = aliases.Sets
		logger.Debug("alias dump loaded", "format", aliases.Format, "sets", len(aliases.Sets))
		if aliases.Incomplete {
			warnings = append(warnings, fmt.Sprintf("%d alias lines rejected", len(aliases.Errors)))
			for i, e := range aliases.Errors {
				if i == maxLoggedRowErrors {
					break
				}
				logger.Warn("rejected alias line", "error", e)
			}
		}
	}
	return in, warnings, nil
}
