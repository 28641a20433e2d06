// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/classify"
	"github.com/AleutianAI/pdgcheck/services/validator/fact"
	"github.com/AleutianAI/pdgcheck/services/validator/reconcile"
	"github.com/AleutianAI/pdgcheck/services/validator/report"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var (
	retPair  = report.Pair{A: "PDGNode.Inst.Ret", B: "IRInstruction.Ret"}
	callPair = report.Pair{A: "PDGEdge.ControlDep.CallInv", B: "IREdge.CallInv"}
	t0       = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func run(subject string, at time.Time, rows ...Row) *Run {
	return &Run{Subject: subject, CreatedAt: at, Rows: rows}
}

func TestStore_SaveGetList(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	first := run("prog", t0)
	id, err := s.Save(ctx, first)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, first.ID)

	_, err = s.Save(ctx, run("prog", t0.Add(time.Hour), Row{Pair: retPair, Tuple: account.Tuple{A: 1, B: 1}}))
	require.NoError(t, err)
	_, err = s.Save(ctx, run("other", t0.Add(30*time.Minute)))
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "prog", got.Subject)
	assert.True(t, t0.Equal(got.CreatedAt))

	runs, err := s.List(ctx, "prog", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].CreatedAt.After(runs[1].CreatedAt), "newest first")
	require.Len(t, runs[0].Rows, 1)
	assert.Equal(t, retPair, runs[0].Rows[0].Pair)

	all, err := s.List(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "prog", all[0].Subject)
	assert.Equal(t, "other", all[1].Subject)

	latest, err := s.Latest(ctx, "prog")
	require.NoError(t, err)
	assert.Equal(t, runs[0].ID, latest.ID)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = s.Latest(ctx, "prog")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_InvalidSubject(t *testing.T) {
	s := openTest(t)
	for _, subject := range []string{"", "a/b"} {
		_, err := s.Save(context.Background(), run(subject, t0))
		assert.ErrorIs(t, err, ErrInvalidRun, subject)
	}
}

func TestStore_Prune(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	var ids []string
	for i := range 4 {
		id, err := s.Save(ctx, run("prog", t0.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	n, err := s.Prune(ctx, "prog", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "zero keeps everything")

	n, err = s.Prune(ctx, "prog", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	runs, err := s.List(ctx, "prog", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ids[3], runs[0].ID)

	_, err = s.Get(ctx, ids[0])
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_Closed(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Save(context.Background(), run("prog", t0))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCompare(t *testing.T) {
	base := run("prog", t0,
		Row{Pair: retPair, Tuple: account.Tuple{A: 2, B: 2}},
		Row{Pair: callPair, Tuple: account.Tuple{A: 3, B: 4, BMinusA: 1}},
	)
	base.ID = "base"
	base.Counts = map[string]int{"PDGNode": 10, "Gone": 1}

	target := run("prog", t0.Add(time.Hour),
		Row{Pair: retPair, Tuple: account.Tuple{A: 3, B: 2, AMinusB: 1}},
		Row{Pair: callPair, Tuple: account.Tuple{A: 4, B: 4}},
	)
	target.ID = "target"
	target.Counts = map[string]int{"PDGNode": 11}

	c := Compare(base, target)
	assert.Equal(t, []report.Pair{retPair}, c.Regressed)
	assert.Equal(t, []report.Pair{callPair}, c.Fixed)
	assert.False(t, c.Clean())
	require.Len(t, c.Changed, 2)
	assert.Equal(t, retPair, c.Changed[0].Pair)
	assert.Equal(t, map[string][2]int{"PDGNode": {10, 11}, "Gone": {1, 0}}, c.Counts)

	same := Compare(target, target)
	assert.True(t, same.Clean())
	assert.Empty(t, same.Changed)
	assert.Empty(t, same.Counts)
}

func TestNewRun(t *testing.T) {
	res := &reconcile.Result{
		PDG:        report.New(),
		IR:         report.New(),
		PDGRollups: report.New(),
		IRRollups:  report.New(),
		Validation: report.New(),
		Orderings:  reconcile.DefaultOrderings(classify.NewCatalog()),
	}
	res.PDG.SetCount("PDGNode", 3)
	report.Reconcile(res.Validation, retPair.A, retPair.B,
		account.New(account.NewSet(fact.Instruction("f", 0)), account.NewSet[fact.ID]()))

	r := NewRun(Subject("/tmp/build/prog.ll"), map[string]string{"ir": "prog.ll"}, res)
	assert.Equal(t, "prog", r.Subject)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, account.Tuple{A: 1, AMinusB: 1}, r.Rows[0].Tuple)
	assert.Equal(t, map[string]int{"PDGNode": 3}, r.Counts)
	assert.Nil(t, r.Summary.ValidationTable)
}
