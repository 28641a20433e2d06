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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pdgcheck/pkg/logging"
	"github.com/AleutianAI/pdgcheck/services/validator/reconcile"
)

const progIR = `
define void @a() {
entry:
  ret void
}

define i32 @main() {
entry:
  call void @a()
  ret i32 0
}
`

func nodeRow(id int, typ, ir string, hasFn int, inst string) string {
	return fmt.Sprintf("Node, %d, %s, x, '%s', %d, _, _, prog.c, 1, 1, %s, ", id, typ, ir, hasFn, inst)
}

func progPDG() string {
	return strings.Join([]string{
		nodeRow(1, "FunctionEntry", "define i32 @main()", 0, ""),
		nodeRow(2, "FunctionEntry", "define void @a()", 0, ""),
		nodeRow(3, "Inst_FunCall", "  call void @a()", 1, "0"),
		nodeRow(4, "Inst_Ret", "  ret i32 0", 1, "1"),
		nodeRow(5, "Inst_Ret", "  ret void", 2, "0"),
		"Edge, 100, ControlDep_CallInv, x, x, x, 3, 2",
		"Edge, 101, ControlDep_CallRet, x, x, x, 5, 3",
	}, "\n") + "\n"
}

type env struct {
	dir    string
	config string
	ir     string
	pdg    string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	e := env{
		dir:    dir,
		config: filepath.Join(dir, "pdgcheck.yaml"),
		ir:     filepath.Join(dir, "prog.ll"),
		pdg:    filepath.Join(dir, "prog.pdg.csv"),
	}
	require.NoError(t, os.WriteFile(e.ir, []byte(progIR), 0644))
	require.NoError(t, os.WriteFile(e.pdg, []byte(progPDG()), 0644))

	cfg := fmt.Sprintf(`
output:
  dir: %s
store:
  enabled: true
  path: %s
  retention: 5
telemetry:
  service_name: pdgcheck
  traces: none
  metrics: prometheus
  textfile: %s
logging:
  level: error
`, filepath.Join(dir, "out"), filepath.Join(dir, "history"), filepath.Join(dir, "pdgcheck.prom"))
	require.NoError(t, os.WriteFile(e.config, []byte(cfg), 0644))
	return e
}

func (e env) exec(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--config", e.config, "--output", "plain"}, args...)
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_WritesReportsAndHistory(t *testing.T) {
	e := newEnv(t)

	code, out, errOut := e.exec(t, "run", "--ir", e.ir, "--pdg", e.pdg, "--all")
	require.NotEqual(t, exitError, code, errOut)
	assert.Contains(t, out, "SUBJECT: prog\n")
	assert.Contains(t, out, "PDGNode.Inst.Ret\t")
	assert.Contains(t, out, "ENTRY_FOUND: true\n")

	for _, name := range reconcile.OutputFiles {
		assert.FileExists(t, filepath.Join(e.dir, "out", name))
	}
	prom, err := os.ReadFile(filepath.Join(e.dir, "pdgcheck.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `pdgcheck_last_run_pairs{subject="prog"}`)

	code, _, errOut = e.exec(t, "run", "--ir", e.ir, "--pdg", e.pdg)
	require.NotEqual(t, exitError, code, errOut)

	code, out, errOut = e.exec(t, "history")
	require.Equal(t, exitOK, code, errOut)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "\tprog\t")

	code, out, errOut = e.exec(t, "compare", "--subject", "prog")
	assert.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "BASE: ")
	assert.NotContains(t, out, "REGRESSED")
}

func TestRun_Errors(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing inputs", []string{"run"}, "Inputs.IR is required"},
		{"bad alias format", []string{"run", "--ir", e.ir, "--pdg", e.pdg, "--alias-format", "dot"}, "Inputs.AliasFormat must be one of"},
		{"missing IR file", []string{"run", "--ir", filepath.Join(e.dir, "nope.ll"), "--pdg", e.pdg, "--no-store"}, "nope.ll"},
		{"compare arity", []string{"compare", "only-one"}, "expected zero or two run ids"},
		{"compare unknown", []string{"compare", "a", "b"}, "run not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := e.exec(t, tt.args...)
			assert.Equal(t, exitError, code)
			assert.Contains(t, errOut, tt.want)
		})
	}
}

func TestCategories(t *testing.T) {
	e := newEnv(t)
	code, out, _ := e.exec(t, "categories")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "\nPDGNode.Inst.Ret\n")
	assert.Contains(t, out, "\nPDGEdge.ControlDep.CallInv\n")
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "pdgcheck.yaml")
	run := func(args ...string) (int, string) {
		var stdout, stderr bytes.Buffer
		code := execute(context.Background(), append([]string{"--config", path}, args...), &stdout, &stderr)
		return code, stdout.String()
	}

	code, _ := run("config", "init")
	require.Equal(t, exitOK, code)
	assert.FileExists(t, path)

	code, _ = run("config", "init")
	assert.Equal(t, exitError, code, "existing file is kept without --force")

	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0644))
	code, _ = run("config", "init", "--force")
	require.Equal(t, exitOK, code)

	code, out := run("config", "show")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "service_name: pdgcheck")
	assert.Contains(t, out, "entry: main")

	code, _ = run("config", "validate")
	assert.Equal(t, exitError, code)
	code, _ = run("config", "validate", "--ir", "x.ll", "--pdg", "x.csv")
	assert.Equal(t, exitOK, code)
}

func TestInputWatcher(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "prog.ll")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(watched, []byte("v1"), 0644))

	w, err := newInputWatcher([]string{watched}, 20*time.Millisecond, logging.Nop().Slog())
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func() { changes <- struct{}{} }) }()

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(watched, []byte(fmt.Sprintf("v%d", i+2)), 0644))
	}

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
