package core

import (
	"bytes"
	"fmt"
	"strings"
)

// Pipeline script exit codes, one per failing stage.
const (
	exitPreprocess = 1
	exitCompile    = 2
	exitAssemble   = 3
)

// ScriptInputs are the per-run names substituted into the pipeline script.
// Executables are absolute paths; the file names are relative to the
// toolchain directory, which is the script's working directory.
type ScriptInputs struct {
	Preprocessor string
	Compiler     string
	Assembler    string

	Source string
	Output string
	Header string
}

type scriptStep struct {
	exit int
	argv []string
}

// BuildScript renders the three-stage pipeline for cfg.ScriptFlavor. Each
// step runs only if the previous one exited zero; a failing step ends the
// script with that stage's exit code.
func BuildScript(cfg Config, in ScriptInputs) []byte {
	tmpI, tmpAsm := cfg.Intermediates.Preprocessed, cfg.Intermediates.Assembly
	steps := []scriptStep{
		{exitPreprocess, withLauncher(cfg.Launcher, in.Preprocessor, in.Source, tmpI)},
		{exitCompile, withLauncher(cfg.Launcher, in.Compiler, tmpI, tmpAsm)},
		{exitAssemble, withLauncher(cfg.Launcher, in.Assembler, tmpAsm, in.Output, in.Header)},
	}

	var buf bytes.Buffer
	if cfg.ScriptFlavor == ScriptBatch {
		buf.WriteString("@echo off\r\n")
		for _, st := range steps {
			fmt.Fprintf(&buf, "%s\r\n", joinQuoted(st.argv, batchQuote))
			fmt.Fprintf(&buf, "if errorlevel 1 exit /b %d\r\n", st.exit)
		}
		buf.WriteString("exit /b 0\r\n")
		return buf.Bytes()
	}

	buf.WriteString("#!/bin/sh\n")
	for _, st := range steps {
		fmt.Fprintf(&buf, "%s || exit %d\n", joinQuoted(st.argv, shQuote), st.exit)
	}
	buf.WriteString("exit 0\n")
	return buf.Bytes()
}

// StageForExitCode maps a pipeline script exit code to the stage that
// stopped it. A clean exit that still produced nothing is blamed on the
// assembler, which writes the bytecode; other codes go to the compiler.
func StageForExitCode(code int) Stage {
	switch code {
	case exitPreprocess:
		return StagePreprocess
	case 0, exitAssemble:
		return StageAssemble
	default:
		return StageCompile
	}
}

func withLauncher(launcher []string, argv ...string) []string {
	out := make([]string, 0, len(launcher)+len(argv))
	out = append(out, launcher...)
	return append(out, argv...)
}

func joinQuoted(argv []string, quote func(string) string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = quote(a)
	}
	return strings.Join(parts, " ")
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func batchQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
