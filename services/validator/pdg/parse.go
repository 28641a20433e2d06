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
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("pdgcheck.pdg")

// Quote is the field quote character of PDG dumps.
const Quote = '\''

// Minimum column counts for each row kind.
const (
	nodeColumns = 13
	edgeColumns = 8
)

// ParseResult holds the rows that parsed and the rows that did not.
type ParseResult struct {
	// Graph contains every accepted node and edge.
	Graph *Graph

	// Errors lists rejected rows in file order.
	Errors []*RowError

	// Rows counts non-blank rows read, accepted or not.
	Rows int

	// Incomplete is true when any row was rejected.
	Incomplete bool
}

// ParseFile parses the PDG dump at path.
//
// Outputs:
//
//	*ParseResult - Accepted rows plus per-row errors.
//	error - Only for I/O failures.
func ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	_, span := tracer.Start(ctx, "pdg.ParseFile")
	defer span.End()

	f, err := os.Open(path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("opening PDG dump: %w", err)
	}
	defer f.Close()

	res, err := Parse(f)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	span.SetAttributes(
		attribute.Int("pdg.nodes", len(res.Graph.Nodes)),
		attribute.Int("pdg.edges", len(res.Graph.Edges)),
		attribute.Int("pdg.row_errors", len(res.Errors)),
	)
	return res, nil
}

// Parse reads a PDG dump.
//
// Description:
//
//	Rows are comma separated with ' as the quote character and every
//	field trimmed. Column 0 selects Node or Edge. Malformed rows, rows of
//	unknown kind, duplicate ids and edges with a dangling endpoint are
//	rejected with a RowError carrying the line and raw text; parsing
//	continues with the next row.
//
// Outputs:
//
//	*ParseResult - Accepted rows plus per-row errors.
//	error - Only for read failures of r.
func Parse(r io.Reader) (*ParseResult, error) {
	rr := &recordReader{r: bufio.NewReader(r)}
	res := &ParseResult{}

	var (
		nodes   []*Node
		edges   []*Edge
		nodeIDs = make(map[uint64]struct{})
		edgeIDs = make(map[uint64]struct{})
		edgeRaw = make(map[*Edge]string)
	)
	reject := func(line int, raw string, err error) {
		res.Errors = append(res.Errors, &RowError{Line: line, Raw: raw, Err: err})
	}

	for {
		rec, err := rr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, ErrUnterminatedQuote) {
			return nil, err
		}
		res.Rows++
		if err != nil {
			reject(rec.line, rec.raw, err)
			continue
		}

		switch rec.fields[0] {
		case "Node":
			n, perr := parseNode(rec.fields)
			if perr != nil {
				reject(rec.line, rec.raw, perr)
				continue
			}
			if _, dup := nodeIDs[n.ID]; dup {
				reject(rec.line, rec.raw, fmt.Errorf("%w: node %d", ErrDuplicateID, n.ID))
				continue
			}
			nodeIDs[n.ID] = struct{}{}
			n.Row = rec.line
			nodes = append(nodes, n)
		case "Edge":
			e, perr := parseEdge(rec.fields)
			if perr != nil {
				reject(rec.line, rec.raw, perr)
				continue
			}
			if _, dup := edgeIDs[e.ID]; dup {
				reject(rec.line, rec.raw, fmt.Errorf("%w: edge %d", ErrDuplicateID, e.ID))
				continue
			}
			edgeIDs[e.ID] = struct{}{}
			e.Row = rec.line
			edgeRaw[e] = rec.raw
			edges = append(edges, e)
		default:
			reject(rec.line, rec.raw, fmt.Errorf("%w: %q", ErrUnknownRowKind, rec.fields[0]))
		}
	}

	kept := edges[:0]
	for _, e := range edges {
		_, srcOK := nodeIDs[e.Src]
		_, dstOK := nodeIDs[e.Dst]
		if !srcOK || !dstOK {
			reject(e.Row, edgeRaw[e], fmt.Errorf("%w: edge %d (%d -> %d)", ErrUnknownNode, e.ID, e.Src, e.Dst))
			continue
		}
		kept = append(kept, e)
	}

	g, err := NewGraph(nodes, kept)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(res.Errors, func(a, b *RowError) int {
		return cmp.Compare(a.Line, b.Line)
	})
	res.Graph = g
	res.Incomplete = len(res.Errors) > 0
	return res, nil
}

func parseNode(f []string) (*Node, error) {
	if len(f) < nodeColumns {
		return nil, fmt.Errorf("%w: node has %d columns, want %d", ErrMalformedRow, len(f), nodeColumns)
	}
	id, err := strconv.ParseUint(f[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: node id %q", ErrMalformedRow, f[1])
	}
	hasFn, err := strconv.ParseUint(f[5], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: has_fn %q", ErrMalformedRow, f[5])
	}
	return &Node{
		ID:         id,
		Type:       f[2],
		IR:         f[4],
		HasFn:      hasFn,
		Source:     f[8],
		Line:       optional(f[9]),
		Col:        optional(f[10]),
		InstIndex:  optional(f[11]),
		ParamIndex: optional(f[12]),
	}, nil
}

func parseEdge(f []string) (*Edge, error) {
	if len(f) < edgeColumns {
		return nil, fmt.Errorf("%w: edge has %d columns, want %d", ErrMalformedRow, len(f), edgeColumns)
	}
	var nums [3]uint64
	for i, col := range []int{1, 6, 7} {
		v, err := strconv.ParseUint(f[col], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: edge column %d %q", ErrMalformedRow, col, f[col])
		}
		nums[i] = v
	}
	return &Edge{ID: nums[0], Type: f[2], Src: nums[1], Dst: nums[2]}, nil
}

// optional parses a non-negative integer; empty or non-numeric is absent.
func optional(s string) *uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// =============================================================================
// Record reader
// =============================================================================

type record struct {
	fields []string
	raw    string
	line   int
}

// recordReader splits a PDG dump into records. A quoted field may span
// lines; a doubled quote inside a quoted field is a literal quote.
type recordReader struct {
	r    *bufio.Reader
	line int
}

func (rr *recordReader) readLine() (string, error) {
	text, err := rr.r.ReadString('\n')
	if text == "" && err != nil {
		return "", err
	}
	rr.line++
	return strings.TrimRight(text, "\r\n"), nil
}

func (rr *recordReader) next() (record, error) {
	for {
		first, err := rr.readLine()
		if err != nil {
			return record{}, err
		}
		if strings.TrimSpace(first) == "" {
			continue
		}
		start := rr.line
		var raw strings.Builder
		raw.WriteString(first)
		sp := newFieldSplitter(Quote)
		sp.feed(first)
		for sp.open() {
			more, err := rr.readLine()
			if errors.Is(err, io.EOF) {
				return record{raw: raw.String(), line: start}, ErrUnterminatedQuote
			}
			if err != nil {
				return record{}, err
			}
			raw.WriteByte('\n')
			raw.WriteString(more)
			sp.feed("\n")
			sp.feed(more)
		}
		return record{fields: sp.finish(), raw: raw.String(), line: start}, nil
	}
}

// splitRecord splits s on commas outside quotes and trims every field.
// open reports whether s ends inside a quoted field.
func splitRecord(s string, quote byte) (fields []string, open bool) {
	sp := newFieldSplitter(quote)
	sp.feed(s)
	return sp.finish(), sp.open()
}

// fieldSplitter splits one record that arrives in pieces. Quote state
// carries over between pieces, so each byte is scanned once.
type fieldSplitter struct {
	quote      byte
	fields     []string
	cur        strings.Builder
	inQuote    bool
	fieldStart bool
}

func newFieldSplitter(quote byte) *fieldSplitter {
	return &fieldSplitter{quote: quote, fieldStart: true}
}

// feed consumes the next piece. A quote ending a piece is never read as
// the first half of a doubled quote.
func (sp *fieldSplitter) feed(s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case sp.inQuote:
			if c != sp.quote {
				sp.cur.WriteByte(c)
			} else if i+1 < len(s) && s[i+1] == sp.quote {
				sp.cur.WriteByte(sp.quote)
				i++
			} else {
				sp.inQuote = false
			}
		case c == sp.quote && sp.fieldStart:
			sp.cur.Reset()
			sp.inQuote = true
			sp.fieldStart = false
		case c == ',':
			sp.fields = append(sp.fields, strings.TrimSpace(sp.cur.String()))
			sp.cur.Reset()
			sp.fieldStart = true
		default:
			sp.cur.WriteByte(c)
			if c != ' ' && c != '\t' {
				sp.fieldStart = false
			}
		}
	}
}

// open reports whether the input so far ends inside a quoted field.
func (sp *fieldSplitter) open() bool { return sp.inQuote }

func (sp *fieldSplitter) finish() []string {
	return append(sp.fields, strings.TrimSpace(sp.cur.String()))
}
