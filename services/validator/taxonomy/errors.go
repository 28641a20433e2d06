// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package taxonomy classifies facts into a hierarchical category tree.
//
// The package has three parts:
//
//   - Tree: a closed, arena-backed tree of categories. Every category is
//     addressed by an interned Category index and knows its parent, so
//     prefix relations never need string comparison.
//   - Index: a mapping Category -> set of facts, with rollup (every parent
//     holds the union of its children) and a rollup self-check.
//   - Catalog: the static set of categories known to the validator.
//
// # Lifecycle
//
// An Index is seeded with InsertEmpty for every statically known category,
// populated by classifiers, finalized by Rollup, then frozen. After Freeze
// the index is read-only and safe for concurrent reads.
package taxonomy

import "errors"

// Sentinel errors for taxonomy operations.
var (
	// ErrMissingParent is returned when a category is declared before its
	// parent. The static catalog treats this as a programming error.
	ErrMissingParent = errors.New("category parent not declared")

	// ErrEmptySegment is returned for paths such as "A..B" or "".
	ErrEmptySegment = errors.New("category path has an empty segment")

	// ErrUnknownCategory is returned when an index operation receives a
	// category that does not belong to the index's tree.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrIndexFrozen is returned when mutating a frozen index.
	ErrIndexFrozen = errors.New("index is frozen and cannot be modified")
)
