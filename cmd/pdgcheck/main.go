// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command pdgcheck cross-validates a program dependence graph dump against
// the LLVM IR it was built from.
//
// Usage:
//
//	pdgcheck run --ir prog.ll --pdg prog.pdg.csv [--alias prog.alias.txt]
//	pdgcheck watch --ir prog.ll --pdg prog.pdg.csv
//	pdgcheck history
//	pdgcheck compare [base-id target-id]
//	pdgcheck categories
//	pdgcheck config init
//
// Exit codes: 0 when every evaluated pair balances, 1 when some pair is
// unbalanced, 2 on any other error.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Set at build time via -ldflags "-X main.version=...".
var version = "dev"

const (
	exitOK         = 0
	exitUnbalanced = 1
	exitError      = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and maps the outcome to an exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root, a := newRootCmd(stdout, stderr)
	defer a.close()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUnbalanced):
		return exitUnbalanced
	default:
		fmt.Fprintln(stderr, "pdgcheck:", err)
		return exitError
	}
}
