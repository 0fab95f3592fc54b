package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"
)

// Command is one external process invocation.
type Command struct {
	// Args is the argv; Args[0] is the executable.
	Args []string

	// Dir is the working directory. Empty uses the Executor's WorkingDir.
	Dir string

	// Env is added on top of the host environment.
	Env map[string]string

	// Timeout bounds the process wall-clock time. Zero means no bound
	// beyond the caller's context.
	Timeout time.Duration
}

// ExecutionResult holds the captured streams and exit status of a process.
type ExecutionResult struct {
	Stdout []byte
	Stderr []byte

	// ExitCode is the process exit code; -1 if it was killed.
	ExitCode int

	Duration time.Duration
}

// CommandRunner starts external processes.
type CommandRunner interface {
	Run(ctx context.Context, c Command) (*ExecutionResult, error)
}

// Executor is the CommandRunner backed by os/exec.
type Executor struct {
	// WorkingDir is used when a Command has no Dir.
	WorkingDir string

	// WaitDelay bounds how long Run waits for output pipes after the
	// process is gone.
	WaitDelay time.Duration
}

// NewExecutor creates a new Executor with the given working directory.
func NewExecutor(workingDir string) *Executor {
	return &Executor{WorkingDir: workingDir, WaitDelay: 2 * time.Second}
}

// Run starts the command and blocks until it exits or its budget is spent.
//
// Stdout and stderr are always captured. A non-zero exit is reported in
// ExitCode, not as an error. When the timeout fires the whole process group
// is killed and reaped before Run returns; the error wraps ErrTimeout and
// the result carries whatever output had been captured.
func (e *Executor) Run(ctx context.Context, c Command) (*ExecutionResult, error) {
	if len(c.Args) == 0 || c.Args[0] == "" {
		return nil, errors.New("command is empty")
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.Command(c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	if cmd.Dir == "" {
		cmd.Dir = e.WorkingDir
	}
	cmd.Env = buildEnv(c.Env)
	cmd.WaitDelay = e.WaitDelay

	// Own process group so a timeout takes down children too.
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", c.Args[0], err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		res := &ExecutionResult{
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			ExitCode: -1,
			Duration: time.Since(start),
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("%s %w after %s", c.Args[0], ErrTimeout, c.Timeout)
		}
		return res, fmt.Errorf("execution cancelled: %w", ctx.Err())
	case err = <-done:
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute %s: %w", c.Args[0], err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &ExecutionResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}

// buildEnv appends extra variables, sorted by key, to the host environment.
func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, extra[k]))
	}
	return env
}
