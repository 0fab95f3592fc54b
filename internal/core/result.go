package core

import (
	"errors"
	"fmt"
	"time"
)

// Tool identifies which orchestration strategy produced a Result.
type Tool string

const (
	ToolDirect Tool = "direct"
	ToolStaged Tool = "staged"
)

// Stage is the step an invocation had reached.
type Stage string

const (
	StageSetup      Stage = "setup"
	StagePreprocess Stage = "preprocess"
	StageCompile    Stage = "compile"
	StageAssemble   Stage = "assemble"
	StageCopyBack   Stage = "copy-back"
)

// FailureKind classifies why an invocation failed.
type FailureKind string

const (
	FailureSourceNotFound    FailureKind = "source-not-found"
	FailureToolchainNotFound FailureKind = "toolchain-not-found"
	FailureTimeout           FailureKind = "timeout"
	FailureSentinel          FailureKind = "sentinel"
	FailureMissingOutput     FailureKind = "missing-output"
	FailureInternal          FailureKind = "internal"
)

var (
	// ErrNotFound is wrapped by missing source and toolchain failures.
	ErrNotFound = errors.New("not found")

	// ErrTimeout is wrapped when an external process exceeds its budget.
	ErrTimeout = errors.New("timed out")
)

// CompileError describes a failed invocation.
type CompileError struct {
	Kind    FailureKind
	Stage   Stage
	Message string
	Cause   error
}

func (e *CompileError) Error() string {
	if e == nil {
		return ""
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s failure at %s: %s", e.Kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s failure: %s", e.Kind, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Cause }

// Result is the tagged outcome of one invocation.
//
// On success Output is set and Err is nil. On failure Err is set and the
// remaining fields carry whatever diagnostics were available.
type Result struct {
	Tool   Tool
	Source string

	// Output and Header describe the artifacts in the toolchain directory.
	Output *Artifact
	Header *Artifact

	// OutputPath and HeaderPath are where the artifacts were copied to.
	// Empty when no copy was requested or performed.
	OutputPath string
	HeaderPath string

	// Intermediates lists scratch/debug files left in the toolchain directory.
	Intermediates []string

	// Sentinel is the error file that failed the run, with its content.
	Sentinel        string
	SentinelContent []byte

	Stdout   []byte
	Stderr   []byte
	ExitCode int

	StartTime time.Time
	Duration  time.Duration

	Err *CompileError
}

// OK reports whether the invocation produced its bytecode with no sentinel.
func (r *Result) OK() bool {
	return r != nil && r.Err == nil && r.Output != nil
}

// Kind returns the failure kind, or "" on success.
func (r *Result) Kind() FailureKind {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Kind
}

// Stage returns the stage at which the run failed, or "" on success.
func (r *Result) Stage() Stage {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Stage
}

func (r *Result) fail(kind FailureKind, stage Stage, cause error, format string, args ...any) *Result {
	r.Err = &CompileError{
		Kind:    kind,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
	return r
}
