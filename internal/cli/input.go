package cli

import (
	"errors"
	"fmt"

	"scrbridge/internal/core"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Invocation is the parsed command line of either tool.
type Invocation struct {
	Tool core.Tool
	Job  core.Job

	ConfigFile string
	TracePath  string
	Verbose    bool
}

// InvocationError is a usage problem. The usage text is printed with it.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitFailure, Message: fmt.Sprintf(format, args...)}
}

// errCompileFailed marks a failure that has already been reported on the
// console.
var errCompileFailed = errors.New("compilation failed")

// ParseArgs maps the positional arguments
//
//	<source-file> [output-path-or-dir] [output-header-path]
//
// onto a Job. Missing source is an InvocationError.
func ParseArgs(args []string) (core.Job, error) {
	switch {
	case len(args) == 0:
		return core.Job{}, invalidInvocationf("missing <source-file>")
	case len(args) > 3:
		return core.Job{}, invalidInvocationf("too many arguments: expected at most 3, got %d", len(args))
	}
	if args[0] == "" {
		return core.Job{}, invalidInvocationf("<source-file> must not be empty")
	}
	job := core.Job{Source: args[0]}
	if len(args) > 1 {
		job.Output = args[1]
	}
	if len(args) > 2 {
		job.Header = args[2]
	}
	return job, nil
}

// ExitCode maps an error returned from the command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil && invErr.ExitCode != 0 {
		return invErr.ExitCode
	}
	return ExitFailure
}
