package core

import (
	"context"
	"path/filepath"

	"scrbridge/internal/trace"
)

// DirectCompiler runs the combined toolchain entry point once:
//
//	<launcher...> <entry-point> <source> <output.scr> <output.h>
type DirectCompiler struct {
	Config Config
	FS     FS
	Runner CommandRunner
	Trace  trace.Sink
}

// NewDirectCompiler wires a DirectCompiler to the host filesystem and os/exec.
func NewDirectCompiler(cfg Config) *DirectCompiler {
	return &DirectCompiler{
		Config: cfg,
		FS:     OSFS{},
		Runner: NewExecutor(cfg.ToolchainDir),
		Trace:  trace.NopSink{},
	}
}

// Compile stages job.Source, invokes the entry point and copies the results
// to job.Output and job.Header. It never returns nil and never panics; any
// unexpected error becomes a FailureInternal result.
//
// Output names inside the toolchain directory are the base names of the
// requested destinations. With no destination the names derive from the
// source stem and the copies land next to the source.
func (c *DirectCompiler) Compile(ctx context.Context, job Job) (res *Result) {
	s := newSession(ToolDirect, c.Config, c.FS, c.Trace, job)
	res = s.res
	defer s.finish()
	defer s.recoverPanic()

	if !s.prepare() {
		return s.res
	}

	scrName, hName := DeriveOutputNames(s.source)
	scrDst := filepath.Join(filepath.Dir(s.source), scrName)
	if job.Output != "" {
		scrDst = job.Output
		scrName = filepath.Base(job.Output)
	}
	hDst := filepath.Join(filepath.Dir(s.source), hName)
	if job.Header != "" {
		hDst = job.Header
		hName = filepath.Base(job.Header)
	}

	staged, ok := s.stageSource()
	if !ok {
		return s.res
	}
	if !s.clear(append(s.sentinelNames(), scrName, hName)...) {
		return s.res
	}

	s.enter(StageCompile)
	args := append(append([]string{}, c.Config.Launcher...), s.executable(c.Config.EntryPoint), staged, scrName, hName)
	if !s.launch(ctx, c.Runner, args) {
		return s.res
	}
	if !s.settle(ctx) {
		return s.res
	}
	if !s.checkSentinels() {
		return s.res
	}
	if !s.collect(scrName, hName, StageCompile) {
		return s.res
	}

	s.enter(StageCopyBack)
	if s.res.OutputPath, ok = s.copyBack(s.res.Output, scrDst); !ok {
		return s.res
	}
	if s.res.HeaderPath, ok = s.copyBack(s.res.Header, hDst); !ok {
		return s.res
	}
	return s.res
}
