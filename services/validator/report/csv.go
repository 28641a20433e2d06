// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Table headers.
var (
	CountsHeader      = []string{"Category", "Count"}
	ValidationsHeader = []string{"A", "B", "|A|", "|B|", "|A-B|", "|B-A|"}
	DifferencesHeader = []string{"A", "B", "Element of A - B"}
)

func itoa(n int, ok bool) string {
	if !ok {
		return NA
	}
	return strconv.Itoa(n)
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// WriteCounts writes the Category,Count table.
func (r *Report) WriteCounts(w io.Writer, o Ordering) error {
	var rows [][]string
	for _, row := range r.CountRows(o) {
		rows = append(rows, []string{row.Name, itoa(row.Value, row.Available)})
	}
	return writeAll(w, CountsHeader, rows)
}

// WriteValidations writes the A,B,|A|,|B|,|A-B|,|B-A| table.
func (r *Report) WriteValidations(w io.Writer, o Ordering) error {
	var rows [][]string
	for _, row := range r.ValidationRows(o) {
		t := row.Tuple
		rows = append(rows, []string{
			row.Pair.A, row.Pair.B,
			itoa(t.A, row.Available), itoa(t.B, row.Available),
			itoa(t.AMinusB, row.Available), itoa(t.BMinusA, row.Available),
		})
	}
	return writeAll(w, ValidationsHeader, rows)
}

// WriteDifferences writes the A,B,Element of A - B table. Elements of
// B-A are written with the pair reversed.
func (r *Report) WriteDifferences(w io.Writer, o Ordering) error {
	var rows [][]string
	for _, d := range r.DifferenceRows(o) {
		rows = append(rows, []string{d.From(), d.To(), d.Element.String()})
	}
	return writeAll(w, DifferencesHeader, rows)
}

// WriteFile creates path (and its directory) and passes it to write.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
