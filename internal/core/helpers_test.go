package core

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// writeTool installs a fake toolchain executable as a shell script.
func writeTool(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write tool %s: %v", name, err)
	}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return b
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func testDirectConfig(dir string) Config {
	c := DefaultDirectConfig()
	c.ToolchainDir = dir
	c.Timeout = 10 * time.Second
	return c
}

func testStagedConfig(dir string) Config {
	c := DefaultStagedConfig()
	c.ToolchainDir = dir
	c.Timeout = 10 * time.Second
	c.SettleDelay = 10 * time.Millisecond
	c.Shell = []string{"sh"}
	c.ScriptFlavor = ScriptPOSIX
	c.ScriptName = "_scrbuild.sh"
	return c
}

// countingRunner records invocations and returns a canned result.
type countingRunner struct {
	mu     sync.Mutex
	calls  []Command
	result *ExecutionResult
	err    error
	before func(Command)
}

func (r *countingRunner) Run(_ context.Context, c Command) (*ExecutionResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	if r.before != nil {
		r.before(c)
	}
	if r.result == nil && r.err == nil {
		return &ExecutionResult{}, nil
	}
	return r.result, r.err
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// faultFS wraps OSFS and fails selected operations.
type faultFS struct {
	OSFS
	copyErr  error
	writeErr error
}

func (f faultFS) CopyFile(dst, src string) error {
	if f.copyErr != nil {
		return f.copyErr
	}
	return f.OSFS.CopyFile(dst, src)
}

func (f faultFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.OSFS.WriteFile(name, data, perm)
}

var errDiskFull = errors.New("disk full")
