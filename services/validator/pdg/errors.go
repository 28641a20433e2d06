// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pdg

import (
	"errors"
	"fmt"
)

// Sentinel errors for PDG parsing and lookup.
var (
	// ErrMalformedRow is returned for rows with too few columns or
	// unparseable required numbers.
	ErrMalformedRow = errors.New("malformed PDG row")

	// ErrUnknownRowKind is returned when column 0 is neither Node nor Edge.
	ErrUnknownRowKind = errors.New("row is neither Node nor Edge")

	// ErrUnterminatedQuote is returned when a quoted field runs to EOF.
	ErrUnterminatedQuote = errors.New("unterminated quoted field")

	// ErrDuplicateID is returned when two nodes or two edges share an id.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrUnknownNode is returned when an edge or lookup names a node id that
	// was never defined.
	ErrUnknownNode = errors.New("unknown node id")
)

// RowError describes one rejected row of a PDG dump.
//
// Parsing continues past a RowError; the row is skipped and the error is
// collected in ParseResult.Errors.
type RowError struct {
	// Line is the 1-based line where the row starts.
	Line int

	// Raw is the row text as read.
	Raw string

	// Err is the underlying cause, usually one of the sentinels above.
	Err error
}

// Error implements error.
func (e *RowError) Error() string {
	return fmt.Sprintf("pdg line %d: %v: %q", e.Line, e.Err, e.Raw)
}

// Unwrap returns the cause.
func (e *RowError) Unwrap() error {
	return e.Err
}
