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
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/pdgcheck/services/validator/config"
	"github.com/AleutianAI/pdgcheck/services/validator/reconcile"
)

func newCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Print the category tree used for classification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := reconcile.NewValidator(a.cfg.ReconcileOptions()...)
			a.printer.Categories(v.Tree())
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the pdgcheck configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to --config",
		Args:  cobra.NoArgs,
		// The file being replaced may not parse.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(config.DefaultConfig())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(a.configPath, force); err != nil {
				return err
			}
			a.logger.Info("configuration written", "path", a.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	var f runFlags
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration as run would see it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(&a.cfg)
			return a.cfg.Validate()
		},
	}
	f.register(validateCmd)

	cmd.AddCommand(initCmd, showCmd, validateCmd)
	return cmd
}
