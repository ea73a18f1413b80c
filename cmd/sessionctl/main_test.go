package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	backend = "inprocess"
	basePath = t.TempDir()
	toolsPath = ""

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.ExecuteContext(context.Background()))
	return out.String()
}

func TestRunCommandExecutesCodeAgainstInprocessBackend(t *testing.T) {
	_ = runCLI(t, "run", "1 + 1")
}

func TestToolsListCommandRunsWithoutError(t *testing.T) {
	_ = runCLI(t, "tools", "list")
}

func TestSkillsAddThenListRunsWithoutError(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "greet.src")
	require.NoError(t, os.WriteFile(srcPath, []byte(`fn run(name) { return "hi " + name }`), 0o644))

	backend = "inprocess"
	basePath = t.TempDir()
	toolsPath = ""

	root := newRootCmd()
	root.SetArgs([]string{"skills", "add", "greet", srcPath, "--description", "greets"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	root = newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"skills", "list"})
	require.NoError(t, root.ExecuteContext(context.Background()))
}

func TestDepsListCommandRunsWithoutError(t *testing.T) {
	// deps add and sync shell out to the real pip installer wired in
	// withSession, so only list (no installer invocation) is exercised
	// here without a controllable environment.
	_ = runCLI(t, "deps", "list")
}

func TestPrintJSONEncodesIndented(t *testing.T) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	require.NoError(t, enc.Encode(map[string]string{"a": "b"}))
	assert.Contains(t, buf.String(), "\"a\": \"b\"")
}
