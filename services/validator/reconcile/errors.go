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

import "errors"

var (
	// ErrBadExpr indicates a malformed set expression.
	ErrBadExpr = errors.New("malformed set expression")

	// ErrNotEvaluable indicates a pair side that names no set (N/A).
	ErrNotEvaluable = errors.New("expression names no set")

	// ErrUnknownSide indicates a pair whose A side is neither PDG nodes
	// nor PDG edges.
	ErrUnknownSide = errors.New("pair side is not a PDG node or edge category")

	// ErrNilInput indicates a missing IR module or PDG.
	ErrNilInput = errors.New("missing input")
)
