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
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/AleutianAI/pdgcheck/services/validator/report"
)

// Output file names written by WriteDir.
const (
	FilePDGCounts            = "pdg_counts.csv"
	FilePDGRollups           = "pdg_rollups.csv"
	FilePDGRollupDifferences = "pdg_rollup_differences.csv"
	FileIRCounts             = "ir_counts.csv"
	FileIRRollups            = "ir_rollups.csv"
	FileIRRollupDifferences  = "ir_rollup_differences.csv"
	FileValidation           = "validation.csv"
	FileValidationDiffs      = "validation_differences.csv"
)

// OutputFiles lists the files WriteDir produces, in write order.
var OutputFiles = []string{
	FilePDGCounts,
	FilePDGRollups,
	FilePDGRollupDifferences,
	FileIRCounts,
	FileIRRollups,
	FileIRRollupDifferences,
	FileValidation,
	FileValidationDiffs,
}

// WriteDir writes every report of r into dir, creating it if needed.
//
// Outputs:
//
//	error - The first write failure, wrapped with the file name.
func (r *Result) WriteDir(dir string) error {
	writes := []struct {
		name  string
		write func(io.Writer) error
	}{
		{FilePDGCounts, func(w io.Writer) error { return r.PDG.WriteCounts(w, r.Orderings.PDG) }},
		{FilePDGRollups, func(w io.Writer) error { return r.PDGRollups.WriteValidations(w, r.RollupOrderings.PDG) }},
		{FilePDGRollupDifferences, func(w io.Writer) error { return r.PDGRollups.WriteDifferences(w, r.RollupOrderings.PDG) }},
		{FileIRCounts, func(w io.Writer) error { return r.IR.WriteCounts(w, r.Orderings.IR) }},
		{FileIRRollups, func(w io.Writer) error { return r.IRRollups.WriteValidations(w, r.RollupOrderings.IR) }},
		{FileIRRollupDifferences, func(w io.Writer) error { return r.IRRollups.WriteDifferences(w, r.RollupOrderings.IR) }},
		{FileValidation, func(w io.Writer) error { return r.Validation.WriteValidations(w, r.Orderings.Validation) }},
		{FileValidationDiffs, func(w io.Writer) error { return r.Validation.WriteDifferences(w, r.Orderings.Validation) }},
	}
	for _, f := range writes {
		if err := report.WriteFile(filepath.Join(dir, f.name), f.write); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}
	return nil
}

// Summary is the condensed outcome of a run, suitable for persistence and
// terminal display.
type Summary struct {
	Pairs           int                    `json:"pairs"`
	Unbalanced      int                    `json:"unbalanced"`
	Skipped         int                    `json:"skipped"`
	Differences     int                    `json:"differences"`
	RollupFailures  int                    `json:"rollup_failures"`
	Unclassified    int                    `json:"unclassified"`
	UnmappedNodes   int                    `json:"unmapped_nodes"`
	AliasDropped    int                    `json:"alias_dropped"`
	EntryFound      bool                   `json:"entry_found"`
	Warnings        []string               `json:"warnings,omitempty"`
	Duration        time.Duration          `json:"duration"`
	ValidationTable []report.ValidationRow `json:"validation_table,omitempty"`
}

// Clean reports whether every evaluated pair balanced and every rollup
// held.
func (s Summary) Clean() bool {
	return s.Unbalanced == 0 && s.RollupFailures == 0
}

// Summary condenses r.
func (r *Result) Summary() Summary {
	s := Summary{
		Pairs:           r.EvaluatedPairs,
		Unbalanced:      r.UnbalancedPairs,
		Skipped:         r.SkippedPairs,
		Differences:     r.DifferenceCount,
		Unclassified:    r.Unclassified.Total() + r.IRUnclassified.Total(),
		UnmappedNodes:   r.UnmappedNodes,
		Warnings:        r.Warnings,
		Duration:        r.Duration,
		ValidationTable: r.Validation.ValidationRows(r.Orderings.Validation),
	}
	if n, ok := r.IR.Count(CountAliasDropped); ok {
		s.AliasDropped = n
	}
	if r.CallGraph != nil {
		s.EntryFound = r.CallGraph.EntryFound
	}
	for _, rollups := range []*report.Report{r.PDGRollups, r.IRRollups} {
		for _, t := range rollups.Validations() {
			if !t.Balanced() {
				s.RollupFailures++
			}
		}
	}
	return s
}
