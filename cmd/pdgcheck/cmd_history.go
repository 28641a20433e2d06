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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/pdgcheck/services/validator/store"
)

// errRegressed marks a comparison in which some pair became unbalanced.
var errRegressed = fmt.Errorf("%w: regressions found", errUnbalanced)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		subject string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.List(cmd.Context(), subject, limit)
			if err != nil {
				return err
			}
			a.printer.History(runs)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "only runs of this subject (IR file name without extension)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs listed; 0 lists all")
	return cmd
}

func newCompareCmd(a *app) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "compare [base-id target-id]",
		Short: "Compare two recorded runs",
		Long: `Compares two runs by id. Without ids, compares the two newest runs of
--subject. Exits 1 when a pair balanced in the base is unbalanced in the
target.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected zero or two run ids, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var base, target *store.Run
			if len(args) == 2 {
				if base, err = st.Get(ctx, args[0]); err != nil {
					return err
				}
				if target, err = st.Get(ctx, args[1]); err != nil {
					return err
				}
			} else {
				if subject == "" {
					return errors.New("--subject is required without run ids")
				}
				runs, err := st.List(ctx, subject, 2)
				if err != nil {
					return err
				}
				if len(runs) < 2 {
					return fmt.Errorf("%w: %s has %d recorded runs, need 2", store.ErrRunNotFound, subject, len(runs))
				}
				base, target = runs[1], runs[0]
			}

			c := store.Compare(base, target)
			a.printer.Comparison(c)
			if !c.Clean() {
				return errRegressed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "compare the two newest runs of this subject")
	return cmd
}
