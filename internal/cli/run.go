package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"scrbridge/internal/core"
)

// Run is a high-level CLI entrypoint suitable for black-box tests.
// It accepts the argument slice (excluding argv[0]) and returns the process
// exit code.
func Run(ctx context.Context, tool core.Tool, args []string, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra reads os.Args when given nil.
		args = []string{}
	}
	cmd := NewCommand(tool, stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var invErr *InvocationError
	switch {
	case errors.As(err, &invErr):
		fmt.Fprintf(stderr, "Error: %s\n", invErr.Message)
		fmt.Fprint(stderr, cmd.UsageString())
	case errors.Is(err, errCompileFailed):
		// already reported
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}
