// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/reconcile"
	"github.com/AleutianAI/pdgcheck/services/validator/report"
	"github.com/AleutianAI/pdgcheck/services/validator/store"
	"github.com/AleutianAI/pdgcheck/services/validator/taxonomy"
)

func TestIcon_Render(t *testing.T) {
	for _, i := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconArrow} {
		assert.Contains(t, i.Render(), string(i))
	}
}

func TestDetectMode_NotATerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, ModePlain, DetectMode(f))
	assert.Equal(t, ModePlain, DetectMode(nil))
	assert.Equal(t, ModeRich, ParseMode("rich", f))
	assert.Equal(t, ModePlain, ParseMode("auto", f))
}

func TestPrinter_PlainSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)
	p.Summary("prog", "out", reconcile.Summary{
		Pairs:      30,
		Unbalanced: 2,
		Warnings:   []string{"entry missing"},
		Duration:   1234 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "SUBJECT: prog\n")
	assert.Contains(t, out, "UNBALANCED: 2\n")
	assert.Contains(t, out, "DURATION: 1.234s\n")
	assert.Contains(t, out, "WARNING: entry missing\n")
}

func TestPrinter_RichSummary(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, ModeRich).Summary("prog", "out", reconcile.Summary{Pairs: 3})
	assert.Contains(t, buf.String(), "all pairs balanced")
}

func TestPrinter_Validations(t *testing.T) {
	rows := []report.ValidationRow{
		{Pair: report.Pair{A: "PDGNode.Inst.Ret", B: "IRInstruction.Ret"}, Tuple: account.Tuple{A: 2, B: 2}, Available: true},
		{Pair: report.Pair{A: "PDGNode.Inst.FunCall", B: "IRInstruction.Call"}, Tuple: account.Tuple{A: 2, B: 1, AMinusB: 1}, Available: true},
		{Pair: report.Pair{A: "PDGNode", B: report.NA}},
	}

	var buf bytes.Buffer
	NewPrinter(&buf, ModePlain).Validations(rows, false)
	assert.Equal(t, "PDGNode.Inst.FunCall\tIRInstruction.Call\t2\t1\t1\t0\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, ModePlain).Validations(rows, true)
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestPrinter_Comparison(t *testing.T) {
	ret := report.Pair{A: "PDGNode.Inst.Ret", B: "IRInstruction.Ret"}
	c := store.Comparison{
		Base:      "base",
		Target:    "target",
		Regressed: []report.Pair{ret},
		Changed: []store.Change{{
			Pair: ret, Before: account.Tuple{A: 1, B: 1}, HasBefore: true,
			After: account.Tuple{A: 2, B: 1, AMinusB: 1}, HasAfter: true,
		}},
	}

	var buf bytes.Buffer
	NewPrinter(&buf, ModePlain).Comparison(c)
	out := buf.String()
	assert.Contains(t, out, "REGRESSED: PDGNode.Inst.Ret | IRInstruction.Ret\n")
	assert.Contains(t, out, "CHANGED: PDGNode.Inst.Ret | IRInstruction.Ret (1, 1, 0, 0) -> (2, 1, 1, 0)\n")
}

func TestPrinter_HistoryAndCategories(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)
	p.History([]*store.Run{{ID: "r1", Subject: "prog", CreatedAt: time.Now(), Summary: reconcile.Summary{Pairs: 4}}})
	assert.True(t, strings.HasPrefix(buf.String(), "r1\tprog\t"))

	buf.Reset()
	tree := taxonomy.MustBuildTree("PDGNode", "PDGNode.Inst", "PDGNode.Inst.Ret")
	p.Categories(tree)
	assert.Equal(t, "PDGNode\nPDGNode.Inst\nPDGNode.Inst.Ret\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, ModeRich).Categories(tree)
	assert.Contains(t, buf.String(), "    Ret\n")

	buf.Reset()
	p.Error(errors.New("boom"))
	assert.Equal(t, "ERROR: boom\n", buf.String())
}

func TestSpinner(t *testing.T) {
	var buf bytes.Buffer
	s := NewPrinter(&buf, ModePlain).Spin("loading prog")
	s.Update("loading prog")
	s.Update("validating prog")
	s.Stop()
	s.Stop()
	s.Update("after stop")
	assert.Equal(t, "PROGRESS: loading prog\nPROGRESS: validating prog\n", buf.String())

	buf.Reset()
	s = NewPrinter(&buf, ModeRich).Spin("loading prog")
	time.Sleep(3 * spinnerInterval)
	s.Stop()
	assert.True(t, strings.HasSuffix(buf.String(), "\r\033[K"))
}
