// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package alias

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("pdgcheck.alias")

// Format selects an alias dump grammar.
type Format string

const (
	FormatAuto Format = "auto"
	FormatSVF  Format = "svf"
	FormatLLVM Format = "llvm"
)

const functionHeader = "Alias sets for function "

// ParseResult holds the parsed sets and rejected lines.
type ParseResult struct {
	Format Format
	Sets   []*Set
	Errors []*LineError

	// Incomplete is true when any line was rejected.
	Incomplete bool
}

// ParseFile reads the alias dump at path in the given format.
//
// Outputs:
//
//	*ParseResult - Parsed sets plus per-line errors.
//	error - I/O failures, or ErrUnknownFormat when auto-detection fails.
func ParseFile(ctx context.Context, path string, format Format) (*ParseResult, error) {
	_, span := tracer.Start(ctx, "alias.ParseFile")
	defer span.End()

	f, err := os.Open(path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("opening alias sets: %w", err)
	}
	defer f.Close()

	res, err := Parse(f, format)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	span.SetAttributes(
		attribute.String("alias.format", string(res.Format)),
		attribute.Int("alias.sets", len(res.Sets)),
		attribute.Int("alias.line_errors", len(res.Errors)),
	)
	return res, nil
}

// Parse reads an alias dump. FormatAuto inspects the first non-blank line.
func Parse(r io.Reader, format Format) (*ParseResult, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	if format == "" || format == FormatAuto {
		format, err = Detect(lines)
		if err != nil {
			return nil, err
		}
	}

	var res *ParseResult
	switch format {
	case FormatSVF:
		res = parseSVF(lines)
	case FormatLLVM:
		res = parseLLVM(lines)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	res.Format = format
	res.Incomplete = len(res.Errors) > 0
	return res, nil
}

// Detect guesses the format from the first non-blank line. An empty dump
// is treated as SVF with no sets.
func Detect(lines []string) (Format, error) {
	for _, l := range lines {
		t := strings.TrimSpace(l)
		switch {
		case t == "":
			continue
		case strings.HasPrefix(t, "{"):
			return FormatSVF, nil
		case strings.HasPrefix(t, functionHeader):
			return FormatLLVM, nil
		default:
			return "", fmt.Errorf("%w: first line %q", ErrUnknownFormat, t)
		}
	}
	return FormatSVF, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading alias dump: %w", err)
	}
	return lines, nil
}

// =============================================================================
// SVF brace form
// =============================================================================

// parseSVF reads one {'@g', 'fn::%x'} set per line. Sets are kept apart.
func parseSVF(lines []string) *ParseResult {
	res := &ParseResult{}
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		binders, err := parseSVFSet(line)
		if err != nil {
			res.Errors = append(res.Errors, &LineError{Line: i + 1, Raw: raw, Err: err})
			continue
		}
		s := NewSet("svf:"+strconv.Itoa(i+1), binders...)
		s.Line = i + 1
		res.Sets = append(res.Sets, s)
	}
	return res
}

func parseSVFSet(line string) ([]Binder, error) {
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		return nil, fmt.Errorf("%w: expected {...}", ErrMalformedSet)
	}
	inner := strings.TrimSpace(line[1 : len(line)-1])
	if inner == "" {
		return nil, nil
	}
	var out []Binder
	for _, elem := range strings.Split(inner, ",") {
		b, err := parseSVFBinder(strings.TrimSpace(elem))
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func parseSVFBinder(elem string) (Binder, error) {
	if len(elem) < 2 || elem[0] != '\'' || elem[len(elem)-1] != '\'' {
		return Binder{}, fmt.Errorf("%w: %q is not quoted", ErrMalformedBinder, elem)
	}
	body := elem[1 : len(elem)-1]
	if name, ok := strings.CutPrefix(body, "@"); ok && validName(name) {
		return GlobalBinder(name), nil
	}
	if fn, local, ok := strings.Cut(body, "::%"); ok && validName(fn) && validName(local) {
		return LocalBinder(fn, local), nil
	}
	return Binder{}, fmt.Errorf("%w: %q", ErrMalformedBinder, elem)
}

// nameRe is the binder name alphabet of the SVF dump.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9._]+$`)

func validName(s string) bool {
	return nameRe.MatchString(s)
}

// =============================================================================
// LLVM -print-alias-sets dump
// =============================================================================

var (
	setHeaderRe = regexp.MustCompile(`^\s*AliasSet\[(0x[0-9a-fA-F]+),\s*(\d+)\]\s*(.*)$`)
	pointerRe   = regexp.MustCompile(`\s([%@])("[^"]+"|[\w.$-]+),\s*LocationSize`)
)

// parseLLVM reads per-function blocks of AliasSet lines. Locals are
// qualified by the enclosing function; sets sharing a binder across
// functions are merged.
func parseLLVM(lines []string) *ParseResult {
	res := &ParseResult{}
	var (
		sets []*Set
		fn   string
	)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			fn = ""
		case strings.HasPrefix(line, functionHeader):
			name := strings.TrimPrefix(line, functionHeader)
			name = strings.TrimSuffix(name, ":")
			fn = strings.Trim(name, "'")
		case strings.HasPrefix(line, "AliasSet["):
			if fn == "" {
				res.Errors = append(res.Errors, &LineError{Line: i + 1, Raw: raw, Err: ErrNoFunction})
				continue
			}
			s, err := parseLLVMSet(fn, raw)
			if err != nil {
				res.Errors = append(res.Errors, &LineError{Line: i + 1, Raw: raw, Err: err})
				continue
			}
			s.Line = i + 1
			sets = append(sets, s)
		default:
			// Tracker headers and "Unknown instructions" lines carry no binders.
		}
	}
	res.Sets = Merge(sets)
	return res
}

func parseLLVMSet(fn, raw string) (*Set, error) {
	m := setHeaderRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("%w: bad AliasSet header", ErrMalformedSet)
	}
	statusText, rest, ok := strings.Cut(m[3], ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing access mode", ErrMalformedSet)
	}
	s := &Set{ID: fn + "::" + m[1], Alias: parseAliasStatus(statusText)}
	s.ModRef, rest = parseModRef(rest)

	switch {
	case strings.HasPrefix(rest, "forwarding to"), rest == "":
		return s, nil
	case strings.HasPrefix(rest, "Pointers:"), strings.HasPrefix(rest, "Memory locations:"):
		var binders []Binder
		for _, pm := range pointerRe.FindAllStringSubmatch(rest, -1) {
			name := strings.Trim(pm[2], `"`)
			if pm[1] == "@" {
				binders = append(binders, GlobalBinder(name))
			} else {
				binders = append(binders, LocalBinder(fn, name))
			}
		}
		if len(binders) == 0 {
			return nil, fmt.Errorf("%w: no pointers in %q", ErrMalformedSet, rest)
		}
		s.add(binders...)
		return s, nil
	default:
		// Sets that only list unknown instructions.
		return s, nil
	}
}
