// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

const (
	// DefaultDebounce is the quiet period after the last change before a
	// rerun.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultMinInterval is the minimum time between the starts of two
	// reruns.
	DefaultMinInterval = 2 * time.Second
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		f           runFlags
		debounce    time.Duration
		minInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rerun the validation whenever an input changes",
		Long: `Runs once, then watches the IR, PDG and alias files and reruns after
each burst of changes. Stops on Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := newPipeline(ctx, a, &f)
			if err != nil {
				return err
			}
			defer p.close(ctx)

			paths := []string{a.cfg.Inputs.IR, a.cfg.Inputs.PDG}
			if a.cfg.Inputs.Alias != "" {
				paths = append(paths, a.cfg.Inputs.Alias)
			}
			w, err := newInputWatcher(paths, debounce, a.logger.Slog())
			if err != nil {
				return err
			}
			defer w.Close()

			limiter := rate.NewLimiter(rate.Every(minInterval), 1)
			rerun := func() {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				if _, err := p.runOnce(ctx); err != nil {
					a.printer.Error(err)
				}
			}
			rerun()
			return w.Run(ctx, rerun)
		},
	}
	f.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", DefaultDebounce, "quiet period before a rerun")
	cmd.Flags().DurationVar(&minInterval, "min-interval", DefaultMinInterval, "minimum time between reruns")
	return cmd
}

// inputWatcher reports changes to a fixed set of files.
//
// Description:
//
//	The parent directories are watched rather than the files, so that
//	editors and tools which replace a file by renaming are still seen.
//	Events for other files in those directories are ignored.
//
// Thread Safety: Run must be called at most once.
type inputWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	logger   *slog.Logger
}

func newInputWatcher(paths []string, debounce time.Duration, logger *slog.Logger) (*inputWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &inputWatcher{
		watcher:  fw,
		files:    make(map[string]bool, len(paths)),
		debounce: debounce,
		logger:   logger,
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Close stops the underlying watcher.
func (w *inputWatcher) Close() error {
	return w.watcher.Close()
}

func (w *inputWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	return err == nil && w.files[abs]
}

// Run calls onChange once per burst of changes until ctx is done.
//
// Outputs:
//
//	error - nil when ctx is cancelled, otherwise a watcher failure.
func (w *inputWatcher) Run(ctx context.Context, onChange func()) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("input changed", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-timer.C:
			onChange()
		}
	}
}
