package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scrbridge/internal/core"
	"scrbridge/internal/history"
)

func writeTool(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write tool %s: %v", name, err)
	}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func run(t *testing.T, tool core.Tool, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), tool, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

const fakeEntryPoint = `printf 'SCR:' > "$2"
cat "$1" >> "$2"
echo '#define DEMO 1' > "$3"`

func installStaged(t *testing.T, dir string) {
	t.Helper()
	writeTool(t, dir, "scpp.exe", `cat "$1" > "$2"`)
	writeTool(t, dir, "sccomp.exe", `cat "$1" > "$2"`)
	writeTool(t, dir, "scasm.exe", `printf 'SCR:' > "$2"
cat "$1" >> "$2"
echo '#define DEMO 1' > "$3"`)
}

func TestRun_MissingSourcePrintsUsage(t *testing.T) {
	for _, tool := range []core.Tool{core.ToolDirect, core.ToolStaged} {
		code, stdout, stderr := run(t, tool)
		if code != ExitFailure {
			t.Fatalf("%s: expected exit %d, got %d", tool, ExitFailure, code)
		}
		if stdout != "" {
			t.Fatalf("%s: expected no stdout, got %q", tool, stdout)
		}
		if !strings.Contains(stderr, "missing <source-file>") || !strings.Contains(stderr, "Usage:") {
			t.Fatalf("%s: expected usage on stderr, got %q", tool, stderr)
		}
	}
}

func TestRun_InvocationErrors(t *testing.T) {
	if code, _, stderr := run(t, core.ToolDirect, "a", "b", "c", "d"); code != ExitFailure || !strings.Contains(stderr, "too many arguments") {
		t.Fatalf("expected too-many-arguments error, got %d %q", code, stderr)
	}
	if code, _, stderr := run(t, core.ToolDirect, "--bogus", "a.ss"); code != ExitFailure || !strings.Contains(stderr, "Usage:") {
		t.Fatalf("expected usage for unknown flag, got %d %q", code, stderr)
	}
	if code, _, stderr := run(t, core.ToolDirect, "--toolchain-dir", t.TempDir(), "--timeout", "soon", "a.ss"); code != ExitFailure || stderr == "" {
		t.Fatalf("expected error for bad duration, got %d %q", code, stderr)
	}
}

func TestRun_DirectSuccess(t *testing.T) {
	tc := t.TempDir()
	writeTool(t, tc, "scc.exe", fakeEntryPoint)
	work := t.TempDir()
	src := writeFile(t, filepath.Join(work, "demo.ss"), "main() {}\n")
	out := filepath.Join(work, "build.scr")
	tracePath := filepath.Join(work, "traces", "run.json")

	code, stdout, stderr := run(t, core.ToolDirect, "--toolchain-dir", tc, "--trace", tracePath, src, out)
	if code != ExitSuccess {
		t.Fatalf("expected success, got %d\nstdout=%s\nstderr=%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "Compilation successful: "+out) || !strings.Contains(stdout, "bytes)") {
		t.Fatalf("unexpected stdout %q", stdout)
	}
	got, err := os.ReadFile(out)
	if err != nil || string(got) != "SCR:main() {}\n" {
		t.Fatalf("unexpected output %q (%v)", got, err)
	}

	var tr struct {
		Tool   string `json:"tool"`
		Events []struct {
			Kind string `json:"kind"`
		} `json:"events"`
	}
	data, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatalf("trace not written: %v", err)
	}
	if err := json.Unmarshal(data, &tr); err != nil {
		t.Fatalf("trace is not JSON: %v", err)
	}
	if tr.Tool != "direct" || len(tr.Events) == 0 {
		t.Fatalf("unexpected trace %s", data)
	}

	store, _ := history.NewStore(tc)
	ids, err := store.ListRunIDs()
	if err != nil || len(ids) != 1 {
		t.Fatalf("expected one run record, got %v (%v)", ids, err)
	}
	rec, _ := store.LoadRun(ids[0])
	if rec.Status != history.RunSucceeded || rec.Output == nil || *rec.Output != out {
		t.Fatalf("unexpected run record %+v", rec)
	}
}

func TestRun_SentinelContentIsPrintedVerbatim(t *testing.T) {
	tc := t.TempDir()
	writeTool(t, tc, "scc.exe", `printf 'demo.ss(3): syntax error' > compile.err
`+fakeEntryPoint)
	src := writeFile(t, filepath.Join(t.TempDir(), "demo.ss"), "x")

	code, _, stderr := run(t, core.ToolDirect, "--toolchain-dir", tc, "--no-history", src)
	if code != ExitFailure {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(stderr, "--- compile.err ---\ndemo.ss(3): syntax error\n") {
		t.Fatalf("sentinel content not reported: %q", stderr)
	}
	if _, err := os.Stat(filepath.Join(tc, ".scrbridge")); !os.IsNotExist(err) {
		t.Fatalf("--no-history must not write records (stat err=%v)", err)
	}
}

func TestRun_MissingOutputReportsExitCodeAndStreams(t *testing.T) {
	tc := t.TempDir()
	writeTool(t, tc, "scc.exe", `echo "license check failed" >&2
exit 7`)
	src := writeFile(t, filepath.Join(t.TempDir(), "demo.ss"), "x")

	code, _, stderr := run(t, core.ToolDirect, "--toolchain-dir", tc, src)
	if code != ExitFailure {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(stderr, "Exit code: 7") || !strings.Contains(stderr, "license check failed") {
		t.Fatalf("unexpected stderr %q", stderr)
	}

	store, _ := history.NewStore(tc)
	ids, _ := store.ListRunIDs()
	if len(ids) != 1 {
		t.Fatalf("expected one run record, got %v", ids)
	}
	f, err := store.LoadFailure(ids[0])
	if err != nil || f.Kind != string(core.FailureMissingOutput) || f.ExitCode != 7 {
		t.Fatalf("unexpected failure record %+v (%v)", f, err)
	}
}

func TestRun_ToolchainNotFoundSkipsHistory(t *testing.T) {
	tc := filepath.Join(t.TempDir(), "absent")
	src := writeFile(t, filepath.Join(t.TempDir(), "demo.ss"), "x")

	code, _, stderr := run(t, core.ToolDirect, "--toolchain-dir", tc, src)
	if code != ExitFailure || !strings.Contains(stderr, "Error: ") {
		t.Fatalf("expected reported failure, got %d %q", code, stderr)
	}
	if _, err := os.Stat(tc); !os.IsNotExist(err) {
		t.Fatalf("toolchain dir must not be created (stat err=%v)", err)
	}
}

func TestRun_StagedSuccessIntoOutputDir(t *testing.T) {
	tc := t.TempDir()
	installStaged(t, tc)
	src := writeFile(t, filepath.Join(t.TempDir(), "demo.ss"), "main() {}\n")
	outDir := t.TempDir()

	code, stdout, stderr := run(t, core.ToolStaged, "--toolchain-dir", tc, "--settle", "10ms", "--verbose", src, outDir)
	if code != ExitSuccess {
		t.Fatalf("expected success, got %d\nstdout=%s\nstderr=%s", code, stdout, stderr)
	}
	if got, err := os.ReadFile(filepath.Join(outDir, "demo.scr")); err != nil || string(got) != "SCR:main() {}\n" {
		t.Fatalf("unexpected output %q (%v)", got, err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "demo.h")); err != nil {
		t.Fatalf("header not copied: %v", err)
	}
	if !strings.Contains(stdout, "Intermediate files:") || !strings.Contains(stdout, "_scrtmp.asm") {
		t.Fatalf("intermediates not listed: %q", stdout)
	}
	if !strings.Contains(stdout, "stage.start [preprocess]") {
		t.Fatalf("verbose progress missing: %q", stdout)
	}
	if _, err := os.Stat(filepath.Join(tc, "_scrbuild.sh")); !os.IsNotExist(err) {
		t.Fatalf("script left behind (stat err=%v)", err)
	}
}

func TestParseArgs(t *testing.T) {
	job, err := ParseArgs([]string{"a.ss", "out.scr", "out.h"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if job.Source != "a.ss" || job.Output != "out.scr" || job.Header != "out.h" {
		t.Fatalf("unexpected job %+v", job)
	}
	if _, err := ParseArgs([]string{""}); ExitCode(err) != ExitFailure {
		t.Fatalf("expected invocation error for empty source, got %v", err)
	}
}
