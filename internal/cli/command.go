package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"scrbridge/internal/config"
	"scrbridge/internal/core"
	"scrbridge/internal/history"
	"scrbridge/internal/trace"
)

// Binary names.
const (
	DirectName = "scrc"
	StagedName = "scrc-staged"
)

func commandName(tool core.Tool) string {
	if tool == core.ToolStaged {
		return StagedName
	}
	return DirectName
}

type app struct {
	tool   core.Tool
	inv    Invocation
	stdout io.Writer
	stderr io.Writer
}

// NewCommand builds the cobra command for tool. Output goes to stdout and
// stderr; nothing touches the process streams directly.
func NewCommand(tool core.Tool, stdout, stderr io.Writer) *cobra.Command {
	a := &app{tool: tool, inv: Invocation{Tool: tool}, stdout: stdout, stderr: stderr}

	use := commandName(tool) + " <source-file> [output-path] [output-header-path]"
	short := "Compile a script source with the combined toolchain entry point"
	if tool == core.ToolStaged {
		use = commandName(tool) + " <source-file> [output-dir] [output-header-path]"
		short = "Compile a script source through the preprocess, compile and assemble stages"
	}

	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ParseArgs(args)
			if err != nil {
				return err
			}
			a.inv.Job = job
			return a.run(cmd.Context(), cmd)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	flags := cmd.Flags()
	config.BindFlags(flags, tool)
	flags.StringVar(&a.inv.ConfigFile, "config", "", "config file (default: scrbridge.{yaml,yml,json,toml} in the working directory)")
	flags.StringVar(&a.inv.TracePath, "trace", "", "write the invocation trace as JSON to this path")
	flags.BoolVarP(&a.inv.Verbose, "verbose", "v", false, "print each step as it happens")
	return cmd
}

func (a *app) run(ctx context.Context, cmd *cobra.Command) error {
	settings, err := config.Loader{ConfigFile: a.inv.ConfigFile, Flags: cmd.Flags()}.Load(a.tool)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	rec := trace.NewRecorder()
	var sink trace.Sink = rec
	if a.inv.Verbose {
		sink = trace.Multi(rec, trace.SinkFunc(func(e trace.Event) {
			fmt.Fprintf(a.stdout, "  %s\n", e)
		}))
	}

	fmt.Fprintf(a.stdout, "Compiling %s (toolchain: %s)\n", a.inv.Job.Source, settings.Toolchain.ToolchainDir)
	res := compile(ctx, a.tool, settings.Toolchain, sink, a.inv.Job)
	report(a.stdout, a.stderr, res)

	tr := rec.Trace(string(a.tool), res.Source)
	if a.inv.TracePath != "" {
		if err := writeTrace(a.inv.TracePath, tr); err != nil {
			fmt.Fprintf(a.stderr, "Warning: trace not written: %v\n", err)
		}
	}
	if settings.History && res.Kind() != core.FailureToolchainNotFound {
		if err := recordHistory(settings, res, tr); err != nil {
			fmt.Fprintf(a.stderr, "Warning: run history not recorded: %v\n", err)
		}
	}

	if !res.OK() {
		return errCompileFailed
	}
	return nil
}

func compile(ctx context.Context, tool core.Tool, cfg core.Config, sink trace.Sink, job core.Job) *core.Result {
	if tool == core.ToolStaged {
		c := core.NewStagedCompiler(cfg)
		c.Trace = sink
		return c.Compile(ctx, job)
	}
	c := core.NewDirectCompiler(cfg)
	c.Trace = sink
	return c.Compile(ctx, job)
}

func writeTrace(path string, tr trace.InvocationTrace) error {
	data, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func recordHistory(settings config.Settings, res *core.Result, tr trace.InvocationTrace) error {
	store, err := history.NewStore(settings.Toolchain.ToolchainDir)
	if err != nil {
		return err
	}
	// An empty trace has no hash; the run is still worth recording.
	hash, _ := tr.Hash()
	if _, err := (&history.Recorder{Store: store}).Record(res, hash); err != nil {
		return err
	}
	if _, err := store.Prune(settings.HistoryKeep); err != nil {
		return fmt.Errorf("pruning: %w", err)
	}
	return nil
}
