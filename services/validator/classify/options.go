// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify assigns IR and PDG facts to categories of the closed
// category catalog.
//
// The catalog (NewCatalog) is the only tree the validator uses. A fact
// whose derived category is not in the catalog is never dropped silently:
// it is counted under its root in the classifier result.
package classify

import (
	"io"
	"log/slog"
)

// Defaults for the names that drive call and global classification.
const (
	DefaultIntrinsicMarker     = "llvm."
	DefaultAnnotationIntrinsic = "llvm.var.annotation"
	DefaultAnnotationGlobal    = "llvm.global.annotations"
)

// Options configures the classifiers and the ground-truth builders.
type Options struct {
	// IntrinsicMarker is the callee-name substring marking an intrinsic.
	// Default: "llvm."
	IntrinsicMarker string

	// AnnotationIntrinsic is the callee-name substring marking a variable
	// annotation call.
	// Default: "llvm.var.annotation"
	AnnotationIntrinsic string

	// AnnotationGlobal is the name of the global annotation table.
	// Default: "llvm.global.annotations"
	AnnotationGlobal string

	// Logger receives warnings about unclassified facts. Defaults to a
	// discard logger.
	Logger *slog.Logger
}

// DefaultOptions returns the stock annotation and intrinsic names.
func DefaultOptions() Options {
	return Options{
		IntrinsicMarker:     DefaultIntrinsicMarker,
		AnnotationIntrinsic: DefaultAnnotationIntrinsic,
		AnnotationGlobal:    DefaultAnnotationGlobal,
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option is a functional option for Options.
type Option func(*Options)

// WithIntrinsicMarker sets the intrinsic callee marker. Empty is ignored.
func WithIntrinsicMarker(s string) Option {
	return func(o *Options) {
		if s != "" {
			o.IntrinsicMarker = s
		}
	}
}

// WithAnnotationIntrinsic sets the annotation intrinsic name. Empty is
// ignored.
func WithAnnotationIntrinsic(s string) Option {
	return func(o *Options) {
		if s != "" {
			o.AnnotationIntrinsic = s
		}
	}
}

// WithAnnotationGlobal sets the annotation table name. Empty is ignored.
func WithAnnotationGlobal(s string) Option {
	return func(o *Options) {
		if s != "" {
			o.AnnotationGlobal = s
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// NewOptions applies opts over DefaultOptions.
func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Unclassified counts facts whose derived category is not in the catalog,
// keyed by root segment (e.g. "PDGNode"), and records the offending raw
// type strings.
type Unclassified struct {
	Counts map[string]int
	Types  map[string]int
}

func newUnclassified() Unclassified {
	return Unclassified{Counts: make(map[string]int), Types: make(map[string]int)}
}

func (u Unclassified) add(root, raw string) {
	u.Counts[root]++
	u.Types[raw]++
}

// Total returns the number of unclassified facts across roots.
func (u Unclassified) Total() int {
	n := 0
	for _, c := range u.Counts {
		n += c
	}
	return n
}

// ReportName returns the count row name for root, e.g.
// "Unclassified.PDGNode".
func ReportName(root string) string {
	return "Unclassified." + root
}
