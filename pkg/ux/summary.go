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
	"strings"
	"time"

	"github.com/AleutianAI/pdgcheck/services/validator/account"
	"github.com/AleutianAI/pdgcheck/services/validator/reconcile"
	"github.com/AleutianAI/pdgcheck/services/validator/report"
	"github.com/AleutianAI/pdgcheck/services/validator/store"
	"github.com/AleutianAI/pdgcheck/services/validator/taxonomy"
)

// Printer renders pdgcheck results to a writer.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a Printer.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Mode returns the output mode.
func (p *Printer) Mode() Mode { return p.mode }

func (p *Printer) rich() bool { return p.mode == ModeRich }

func (p *Printer) println(s string) {
	fmt.Fprintln(p.w, s)
}

// Warn prints a warning line.
func (p *Printer) Warn(msg string) {
	if p.rich() {
		p.println(IconWarning.Render() + " " + Styles.Warning.Render(msg))
		return
	}
	p.println("WARNING: " + msg)
}

// Error prints an error line.
func (p *Printer) Error(err error) {
	if p.rich() {
		p.println(IconError.Render() + " " + Styles.Error.Render(err.Error()))
		return
	}
	p.println("ERROR: " + err.Error())
}

// Summary prints the outcome of one run.
func (p *Printer) Summary(subject, outDir string, s reconcile.Summary) {
	if !p.rich() {
		p.println("SUBJECT: " + subject)
		p.println(fmt.Sprintf("PAIRS: %d", s.Pairs))
		p.println(fmt.Sprintf("UNBALANCED: %d", s.Unbalanced))
		p.println(fmt.Sprintf("DIFFERENCES: %d", s.Differences))
		p.println(fmt.Sprintf("ROLLUP_FAILURES: %d", s.RollupFailures))
		p.println(fmt.Sprintf("UNCLASSIFIED: %d", s.Unclassified))
		p.println(fmt.Sprintf("UNMAPPED_NODES: %d", s.UnmappedNodes))
		p.println(fmt.Sprintf("ALIAS_DROPPED: %d", s.AliasDropped))
		p.println(fmt.Sprintf("ENTRY_FOUND: %t", s.EntryFound))
		p.println("OUTPUT: " + outDir)
		p.println(fmt.Sprintf("DURATION: %s", s.Duration.Round(time.Millisecond)))
		for _, w := range s.Warnings {
			p.Warn(w)
		}
		return
	}

	status := IconSuccess.Render() + " " + Styles.Success.Render("all pairs balanced")
	box := Styles.Box
	if !s.Clean() {
		status = IconError.Render() + " " + Styles.Error.Render(
			fmt.Sprintf("%d of %d pairs unbalanced", s.Unbalanced, s.Pairs))
		box = Styles.ErrorBox
	}

	var b strings.Builder
	b.WriteString(Styles.Title.Render("pdgcheck "+subject) + "\n")
	b.WriteString(status + "\n\n")
	line := func(label string, v any) {
		b.WriteString(Styles.Muted.Render(fmt.Sprintf("%-16s", label)) + fmt.Sprint(v) + "\n")
	}
	line("pairs", fmt.Sprintf("%d evaluated, %d N/A", s.Pairs, s.Skipped))
	line("differences", s.Differences)
	line("rollup failures", s.RollupFailures)
	line("unclassified", s.Unclassified)
	line("unmapped nodes", s.UnmappedNodes)
	line("alias dropped", s.AliasDropped)
	line("entry found", s.EntryFound)
	line("duration", s.Duration.Round(time.Millisecond))
	b.WriteString(Styles.Muted.Render(fmt.Sprintf("%-16s", "reports")) + Styles.Highlight.Render(outDir))
	p.println(box.Render(b.String()))

	for _, w := range s.Warnings {
		p.Warn(w)
	}
}

// Validations prints the validation rows. With all unset only unbalanced
// rows are shown.
func (p *Printer) Validations(rows []report.ValidationRow, all bool) {
	var shown []report.ValidationRow
	for _, r := range rows {
		if !r.Available {
			continue
		}
		if all || !r.Tuple.Balanced() {
			shown = append(shown, r)
		}
	}
	if len(shown) == 0 {
		return
	}

	width := 0
	for _, r := range shown {
		width = max(width, len(r.Pair.A))
	}
	if p.rich() {
		p.println(Styles.Subtitle.Render("validations"))
	}
	for _, r := range shown {
		t := r.Tuple
		if !p.rich() {
			p.println(fmt.Sprintf("%s\t%s\t%d\t%d\t%d\t%d", r.Pair.A, r.Pair.B, t.A, t.B, t.AMinusB, t.BMinusA))
			continue
		}
		icon := IconSuccess.Render()
		if !t.Balanced() {
			icon = IconError.Render()
		}
		p.println(fmt.Sprintf("%s %-*s %s %s  %s",
			icon, width, r.Pair.A, IconArrow, Styles.Muted.Render(r.Pair.B), tuple(t)))
	}
}

func tuple(t account.Tuple) string {
	return fmt.Sprintf("(%d, %d, %d, %d)", t.A, t.B, t.AMinusB, t.BMinusA)
}

// Comparison prints a run-to-run comparison.
func (p *Printer) Comparison(c store.Comparison) {
	if !p.rich() {
		p.println("BASE: " + c.Base)
		p.println("TARGET: " + c.Target)
		for _, pair := range c.Regressed {
			p.println("REGRESSED: " + pair.A + " | " + pair.B)
		}
		for _, pair := range c.Fixed {
			p.println("FIXED: " + pair.A + " | " + pair.B)
		}
		for _, ch := range c.Changed {
			p.println(fmt.Sprintf("CHANGED: %s | %s %s -> %s", ch.Pair.A, ch.Pair.B, side(ch.Before, ch.HasBefore), side(ch.After, ch.HasAfter)))
		}
		return
	}

	p.println(Styles.Title.Render(fmt.Sprintf("%s %s %s", short(c.Base), IconArrow, short(c.Target))))
	if c.Clean() {
		p.println(IconSuccess.Render() + " " + Styles.Success.Render("no regressions"))
	}
	for _, pair := range c.Regressed {
		p.println(IconError.Render() + " " + Styles.Error.Render("regressed ") + pair.A)
	}
	for _, pair := range c.Fixed {
		p.println(IconSuccess.Render() + " " + Styles.Success.Render("fixed ") + pair.A)
	}
	for _, ch := range c.Changed {
		p.println(fmt.Sprintf("%s %s %s %s %s", IconBullet, ch.Pair.A,
			Styles.Muted.Render(side(ch.Before, ch.HasBefore)), IconArrow, side(ch.After, ch.HasAfter)))
	}
}

func side(t account.Tuple, ok bool) string {
	if !ok {
		return report.NA
	}
	return tuple(t)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// History prints stored runs, newest first.
func (p *Printer) History(runs []*store.Run) {
	if len(runs) == 0 {
		if p.rich() {
			p.println(Styles.Muted.Render("no runs recorded"))
		}
		return
	}
	for _, r := range runs {
		s := r.Summary
		when := r.CreatedAt.Local().Format("2006-01-02 15:04:05")
		if !p.rich() {
			p.println(fmt.Sprintf("%s\t%s\t%s\t%d\t%d\t%d", r.ID, r.Subject, when, s.Pairs, s.Unbalanced, s.Differences))
			continue
		}
		icon := IconSuccess.Render()
		if !s.Clean() {
			icon = IconError.Render()
		}
		p.println(fmt.Sprintf("%s %s  %s  %s  %d unbalanced / %d pairs",
			icon, Styles.Highlight.Render(short(r.ID)), r.Subject, Styles.Muted.Render(when), s.Unbalanced, s.Pairs))
	}
}

// Categories prints the category tree, indented by depth.
func (p *Printer) Categories(tree *taxonomy.Tree) {
	for _, c := range tree.All() {
		depth := tree.Depth(c) - 1
		if !p.rich() {
			p.println(tree.Path(c))
			continue
		}
		label := tree.Segment(c)
		if depth == 0 {
			label = Styles.Title.Render(label)
		}
		p.println(strings.Repeat("  ", depth) + label)
	}
}
