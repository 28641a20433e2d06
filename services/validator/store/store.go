// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store keeps a history of validation runs in BadgerDB so that a
// PDG extractor can be checked for regressions between builds.
//
// Runs are grouped by subject, the identity of the analyzed program.
// Keys:
//
//	run/<subject>/<created, 20-digit unix nanos>/<id> -> Run (JSON)
//	id/<id>                                           -> run key
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/reconcile"
	"github.com/AleutianAI/pdgcheck/services/validator/report"
)

const (
	runPrefix = "run/"
	idPrefix  = "id/"
)

// Row is one persisted validation row.
type Row struct {
	Pair  report.Pair   `json:"pair"`
	Tuple account.Tuple `json:"tuple"`
}

// Run is one persisted validation run.
type Run struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`

	// Inputs are the input paths of the run.
	Inputs map[string]string `json:"inputs,omitempty"`

	Summary reconcile.Summary `json:"summary"`

	// Rows are the evaluated validation rows in report order.
	Rows []Row `json:"rows"`

	// Counts are the PDG and IR count tables merged.
	Counts map[string]int `json:"counts,omitempty"`
}

// Subject derives the subject of a run from its IR path.
func Subject(irPath string) string {
	base := filepath.Base(irPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// NewRun captures res for persistence.
func NewRun(subject string, inputs map[string]string, res *reconcile.Result) *Run {
	r := &Run{
		Subject: subject,
		Inputs:  inputs,
		Summary: res.Summary(),
		Counts:  make(map[string]int),
	}
	r.Summary.ValidationTable = nil
	for _, row := range res.Validation.ValidationRows(res.Orderings.Validation) {
		if row.Available {
			r.Rows = append(r.Rows, Row{Pair: row.Pair, Tuple: row.Tuple})
		}
	}
	for _, rep := range []*report.Report{res.PDG, res.IR} {
		for _, c := range rep.CountRows(report.Ordering{}) {
			if c.Available {
				r.Counts[c.Name] = c.Value
			}
		}
	}
	return r
}

// Store is the run history.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	ratio  float64
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens the history described by cfg.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, ratio: cfg.GCDiscardRatio, logger: logger}, nil
}

// Close closes the database. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) check() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

func runKey(subject string, created time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%s", runPrefix, subject, created.UnixNano(), id))
}

func subjectPrefix(subject string) []byte {
	return []byte(runPrefix + subject + "/")
}

// Save persists run, assigning an ID and a creation time when unset.
//
// Outputs:
//
//	string - The run id.
//	error - ErrInvalidRun, ErrClosed, or a database failure.
func (s *Store) Save(ctx context.Context, run *Run) (string, error) {
	if run.Subject == "" || strings.Contains(run.Subject, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRun, run.Subject)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return "", err
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("encode run: %w", err)
	}
	key := runKey(run.Subject, run.CreatedAt, run.ID)

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(idPrefix+run.ID), key)
	})
	if err != nil {
		return "", fmt.Errorf("save run %s: %w", run.ID, err)
	}
	s.logger.Debug("run saved", "id", run.ID, "subject", run.Subject)
	return run.ID, nil
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}

	var run Run
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(idPrefix + id))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &run) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}

// List returns up to limit runs of subject, newest first. An empty
// subject lists every subject; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, subject string, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}

	prefix := []byte(runPrefix)
	if subject != "" {
		prefix = subjectPrefix(subject)
	}

	var runs []*Run
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var run Run
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &run) }); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			runs = append(runs, &run)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	sortNewestFirst(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func sortNewestFirst(runs []*Run) {
	slices.SortStableFunc(runs, func(a, b *Run) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// Latest returns the newest run of subject.
func (s *Store) Latest(ctx context.Context, subject string) (*Run, error) {
	runs, err := s.List(ctx, subject, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs for %s", ErrRunNotFound, subject)
	}
	return runs[0], nil
}

// Prune deletes all but the newest keep runs of subject and returns how
// many were deleted. keep <= 0 keeps everything.
func (s *Store) Prune(ctx context.Context, subject string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	runs, err := s.List(ctx, subject, 0)
	if err != nil {
		return 0, err
	}
	if len(runs) <= keep {
		return 0, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return 0, err
	}

	stale := runs[keep:]
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, run := range stale {
			if err := txn.Delete(runKey(run.Subject, run.CreatedAt, run.ID)); err != nil {
				return err
			}
			if err := txn.Delete([]byte(idPrefix + run.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", subject, err)
	}

	if s.ratio > 0 {
		if err := s.db.RunValueLogGC(s.ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			s.logger.Warn("history value log GC error", slog.String("error", err.Error()))
		}
	}
	s.logger.Debug("runs pruned", "subject", subject, "deleted", len(stale))
	return len(stale), nil
}
