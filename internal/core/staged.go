package core

import (
	"context"
	"path/filepath"

	"scrbridge/internal/trace"
)

// StagedCompiler runs preprocessor, compiler and assembler as separate
// binaries from a transient script written into the toolchain directory.
type StagedCompiler struct {
	Config Config
	FS     FS
	Runner CommandRunner
	Trace  trace.Sink
}

// NewStagedCompiler wires a StagedCompiler to the host filesystem and os/exec.
func NewStagedCompiler(cfg Config) *StagedCompiler {
	return &StagedCompiler{
		Config: cfg,
		FS:     OSFS{},
		Runner: NewExecutor(cfg.ToolchainDir),
		Trace:  trace.NopSink{},
	}
}

// Compile stages job.Source, clears stale outputs, runs the pipeline script
// and reports the outcome. The script file is removed on every return path.
// job.Output is an optional destination directory; job.Header optionally
// redirects the header copy.
func (c *StagedCompiler) Compile(ctx context.Context, job Job) (res *Result) {
	s := newSession(ToolStaged, c.Config, c.FS, c.Trace, job)
	res = s.res
	defer s.finish()
	defer s.recoverPanic()

	if !s.prepare() {
		return s.res
	}

	scrName, hName := DeriveOutputNames(s.source)
	staged, ok := s.stageSource()
	if !ok {
		return s.res
	}

	stale := []string{scrName, hName, c.Config.Intermediates.Preprocessed, c.Config.Intermediates.Assembly}
	if !s.clear(append(stale, s.sentinelNames()...)...) {
		return s.res
	}

	script := BuildScript(c.Config, ScriptInputs{
		Preprocessor: s.executable(c.Config.Preprocessor),
		Compiler:     s.executable(c.Config.Compiler),
		Assembler:    s.executable(c.Config.Assembler),
		Source:       staged,
		Output:       scrName,
		Header:       hName,
	})
	scriptPath := filepath.Join(s.dir, c.Config.ScriptName)
	defer func() {
		if err := s.fs.Remove(scriptPath); err != nil {
			// The outcome stands; only note the leftover.
			s.emit(trace.EventFileRemove, scriptPath, "failed: "+err.Error())
			return
		}
		s.emit(trace.EventFileRemove, scriptPath, "script")
	}()
	if err := s.fs.WriteFile(scriptPath, script, 0o755); err != nil {
		s.res.fail(FailureInternal, StageSetup, err, "writing pipeline script: %v", err)
		return s.res
	}
	s.emit(trace.EventScriptWrite, scriptPath, "")

	s.enter(StagePreprocess)
	args := append(append([]string{}, c.Config.Shell...), scriptPath)
	if !s.launch(ctx, c.Runner, args) {
		return s.res
	}
	if !s.settle(ctx) {
		return s.res
	}
	if !s.checkSentinels() {
		return s.res
	}
	if !s.collect(scrName, hName, StageForExitCode(s.res.ExitCode)) {
		return s.res
	}

	s.enter(StageCopyBack)
	if job.Output != "" {
		if s.res.OutputPath, ok = s.copyBack(s.res.Output, filepath.Join(job.Output, scrName)); !ok {
			return s.res
		}
	}
	hDst := job.Header
	if hDst == "" && job.Output != "" {
		hDst = filepath.Join(job.Output, hName)
	}
	if s.res.HeaderPath, ok = s.copyBack(s.res.Header, hDst); !ok {
		return s.res
	}
	return s.res
}
