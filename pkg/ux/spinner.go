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
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner shows progress of a long phase, such as loading the inputs.
//
// Description:
//
//	In rich mode a frame and the current message are redrawn in place
//	until Stop. In plain mode each message is printed once as a
//	"PROGRESS:" line, so logs stay readable.
//
// Thread Safety: Safe for concurrent use.
type Spinner struct {
	w    io.Writer
	mode Mode

	mu      sync.Mutex
	message string
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// Spin starts a spinner on the printer's writer.
func (p *Printer) Spin(message string) *Spinner {
	s := &Spinner{w: p.w, mode: p.mode, message: message}
	s.start()
	return s
}

func (s *Spinner) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true

	if s.mode != ModeRich {
		fmt.Fprintf(s.w, "PROGRESS: %s\n", s.message)
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.animate()
}

func (s *Spinner) animate() {
	defer close(s.done)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for i := 0; ; i = (i + 1) % len(spinnerFrames) {
		select {
		case <-s.stop:
			fmt.Fprint(s.w, "\r\033[K")
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			fmt.Fprintf(s.w, "\r%s %s", Styles.Highlight.Render(spinnerFrames[i]), msg)
		}
	}
}

// Update replaces the message.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.message == message {
		return
	}
	s.message = message
	if s.running && s.mode != ModeRich {
		fmt.Fprintf(s.w, "PROGRESS: %s\n", message)
	}
}

// Stop clears the spinner line. Safe to call more than once.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
