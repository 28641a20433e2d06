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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/pdgcheck/pkg/logging"
	"github.com/AleutianAI/pdgcheck/pkg/ux"
	"github.com/AleutianAI/pdgcheck/services/validator/config"
	"github.com/AleutianAI/pdgcheck/services/validator/store"
)

// errUnbalanced marks a run that completed with unbalanced pairs.
var errUnbalanced = errors.New("validation found unbalanced pairs")

// app carries the state shared by every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	outputMode string

	cfg     config.Config
	logger  *logging.Logger
	printer *ux.Printer
}

func defaultConfigPath() string {
	if p := os.Getenv("PDGCHECK_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "pdgcheck.yaml"
	}
	return filepath.Join(home, ".pdgcheck", "config.yaml")
}

// newRootCmd builds the command tree. Call app.close once the command
// has executed.
func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "pdgcheck",
		Short:         "Cross-validate a PDG dump against its LLVM IR",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", defaultConfigPath(), "config file (YAML)")
	pf.StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	pf.StringVar(&a.outputMode, "output", "auto", "output mode: auto, rich or plain")

	root.AddCommand(
		newRunCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
		newCompareCmd(a),
		newCategoriesCmd(a),
		newConfigCmd(a),
	)
	return root, a
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

// setup loads the configuration and builds the logger and printer.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	return a.configure(cfg)
}

// configure applies the flag overrides to cfg and builds the logger and printer.
func (a *app) configure(cfg config.Config) error {
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	level, ok := logging.ParseLevel(cfg.Logging.Level)
	if !ok {
		return fmt.Errorf("%w: unknown log level %q", config.ErrInvalid, cfg.Logging.Level)
	}
	a.logger = logging.New(logging.Config{
		Level:  level,
		LogDir: cfg.Logging.Dir,
		JSON:   cfg.Logging.JSON,
		Quiet:  cfg.Logging.Quiet,
		Output: a.stderr,
	})
	term, _ := a.stdout.(*os.File)
	a.printer = ux.NewPrinter(a.stdout, ux.ParseMode(a.outputMode, term))
	a.logger.Debug("configuration loaded", "path", a.configPath)
	return nil
}

// openStore opens the run history named by the configuration.
func (a *app) openStore() (*store.Store, error) {
	if !a.cfg.Store.Enabled {
		return nil, errors.New("run history is disabled (store.enabled is false)")
	}
	cfg := store.DefaultConfig(a.cfg.Store.Path)
	cfg.Logger = a.logger.Slog()
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", a.cfg.Store.Path, err)
	}
	return st, nil
}
