package core

import (
	"path/filepath"
	"strings"
	"testing"
)

// TestCollect_MissingOutputIsNil verifies a missing file is not an error.
func TestCollect_MissingOutputIsNil(t *testing.T) {
	h := NewHarvester(t.TempDir(), nil)

	a, err := h.Collect("demo.scr")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if a != nil {
		t.Fatalf("expected nil artifact, got %+v", a)
	}
}

func TestCollect_ReportsSizeAndDigest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "demo.scr"), "bytecode")
	h := NewHarvester(dir, nil)

	a, err := h.Collect("demo.scr")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if a.Path != filepath.Join(dir, "demo.scr") || a.Size != 8 || a.Digest != Digest([]byte("bytecode")) {
		t.Fatalf("unexpected artifact %+v", a)
	}
}

func TestCollect_DirectoryIsAnError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "demo.scr", "nested"), "x")

	if _, err := NewHarvester(dir, nil).Collect("demo.scr"); err == nil {
		t.Fatal("expected error for a directory where a file was expected")
	}
}

// TestCheckSentinels_FirstNonEmptyInPipelineOrder verifies empty sentinels
// are skipped and the earliest failing stage wins.
func TestCheckSentinels_FirstNonEmptyInPipelineOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "preproc.err"), "")
	writeFile(t, filepath.Join(dir, "compile.err"), "compile broke\n")
	writeFile(t, filepath.Join(dir, "asm.err"), "asm broke\n")

	hit, err := NewHarvester(dir, nil).CheckSentinels(DefaultDirectConfig().Sentinels)
	if err != nil {
		t.Fatalf("CheckSentinels failed: %v", err)
	}
	if hit == nil || hit.Stage != StageCompile || string(hit.Content) != "compile broke\n" {
		t.Fatalf("unexpected hit %+v", hit)
	}
}

func TestCheckSentinels_NoneOrUnconfigured(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "asm.err"), "asm broke\n")
	h := NewHarvester(dir, nil)

	hit, err := h.CheckSentinels(Sentinels{Preprocess: "preproc.err", Compile: "compile.err"})
	if err != nil || hit != nil {
		t.Fatalf("expected no hit for unconfigured stage, got %+v, %v", hit, err)
	}
	hit, err = h.CheckSentinels(Sentinels{})
	if err != nil || hit != nil {
		t.Fatalf("expected no hit with no sentinels, got %+v, %v", hit, err)
	}
}

// TestIntermediates_SortedAndDeduplicated verifies overlapping patterns do
// not duplicate files and ordering does not depend on the filesystem.
func TestIntermediates_SortedAndDeduplicated(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"z.lst", "a.i", "m.asm", "demo.ss"} {
		writeFile(t, filepath.Join(dir, n), "x")
	}

	files, err := NewHarvester(dir, nil).Intermediates([]string{"*.lst", "*.i", "*.asm", "a.*"})
	if err != nil {
		t.Fatalf("Intermediates failed: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	if strings.Join(names, ",") != "a.i,m.asm,z.lst" {
		t.Fatalf("unexpected intermediates %q", names)
	}
}

func TestIntermediates_BadPattern(t *testing.T) {
	if _, err := NewHarvester(t.TempDir(), nil).Intermediates([]string{"["}); err == nil {
		t.Fatal("expected error for malformed pattern")
	}
}

func TestDeriveOutputNames(t *testing.T) {
	cases := map[string][2]string{
		"demo.ss":             {"demo.scr", "demo.h"},
		"/src/level.1.script": {"level.1.scr", "level.1.h"},
		"noext":               {"noext.scr", "noext.h"},
	}
	for in, want := range cases {
		scr, h := DeriveOutputNames(in)
		if scr != want[0] || h != want[1] {
			t.Errorf("DeriveOutputNames(%q) = %q, %q; want %q, %q", in, scr, h, want[0], want[1])
		}
	}
}
