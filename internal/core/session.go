package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"scrbridge/internal/trace"
)

// session carries the state of one Compile call. It is not reused.
type session struct {
	tool  Tool
	cfg   Config
	fs    FS
	sink  trace.Sink
	job   Job
	seq   int
	stage Stage

	// dir and source are absolute once prepare succeeds.
	dir    string
	source string

	harvester *Harvester
	res       *Result
}

func newSession(tool Tool, cfg Config, fsys FS, sink trace.Sink, job Job) *session {
	if fsys == nil {
		fsys = OSFS{}
	}
	return &session{
		tool:  tool,
		cfg:   cfg,
		fs:    fsys,
		sink:  sink,
		job:   job,
		stage: StageSetup,
		res: &Result{
			Tool:      tool,
			Source:    job.Source,
			StartTime: time.Now().UTC(),
		},
	}
}

func (s *session) emit(kind trace.EventKind, path, detail string) {
	s.seq++
	trace.SafeRecord(s.sink, trace.Event{
		Seq:    s.seq,
		Kind:   kind,
		Stage:  string(s.stage),
		Path:   path,
		Detail: detail,
	})
}

func (s *session) enter(stage Stage) {
	s.stage = stage
	s.emit(trace.EventStageStart, "", "")
}

// recoverPanic turns a panic anywhere in Compile into an internal failure.
// It must be deferred directly.
func (s *session) recoverPanic() {
	if p := recover(); p != nil {
		s.res.fail(FailureInternal, s.stage, fmt.Errorf("panic: %v", p), "unexpected panic: %v", p)
	}
}

func (s *session) finish() {
	s.res.Duration = time.Since(s.res.StartTime)
	detail := "ok"
	if s.res.Err != nil {
		detail = string(s.res.Err.Kind)
	}
	s.emit(trace.EventStageEnd, "", detail)
}

// prepare validates the configuration, the source and the toolchain
// directory. No process is started before it succeeds.
func (s *session) prepare() bool {
	s.enter(StageSetup)

	if err := s.cfg.Validate(s.tool); err != nil {
		s.res.fail(FailureInternal, StageSetup, err, "invalid configuration: %v", err)
		return false
	}
	if strings.TrimSpace(s.job.Source) == "" {
		s.res.fail(FailureSourceNotFound, StageSetup, ErrNotFound, "source path is required")
		return false
	}

	src, err := filepath.Abs(s.job.Source)
	if err != nil {
		s.res.fail(FailureInternal, StageSetup, err, "resolving source %q: %v", s.job.Source, err)
		return false
	}
	info, err := s.fs.Stat(src)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.res.fail(FailureSourceNotFound, StageSetup, fmt.Errorf("source %s: %w", src, ErrNotFound), "source file not found: %s", s.job.Source)
		return false
	case err != nil:
		s.res.fail(FailureInternal, StageSetup, err, "stat source %q: %v", s.job.Source, err)
		return false
	case info.IsDir():
		s.res.fail(FailureSourceNotFound, StageSetup, fmt.Errorf("source %s: %w", src, ErrNotFound), "source is a directory: %s", s.job.Source)
		return false
	}

	dir, err := filepath.Abs(s.cfg.ToolchainDir)
	if err != nil {
		s.res.fail(FailureInternal, StageSetup, err, "resolving toolchain dir %q: %v", s.cfg.ToolchainDir, err)
		return false
	}
	info, err = s.fs.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.res.fail(FailureToolchainNotFound, StageSetup, fmt.Errorf("toolchain dir %s: %w", dir, ErrNotFound), "toolchain directory not found: %s", s.cfg.ToolchainDir)
		return false
	case err != nil:
		s.res.fail(FailureInternal, StageSetup, err, "stat toolchain dir %q: %v", s.cfg.ToolchainDir, err)
		return false
	case !info.IsDir():
		s.res.fail(FailureToolchainNotFound, StageSetup, fmt.Errorf("toolchain dir %s: %w", dir, ErrNotFound), "toolchain path is not a directory: %s", s.cfg.ToolchainDir)
		return false
	}

	s.source = src
	s.dir = dir
	s.harvester = NewHarvester(dir, s.fs)
	return true
}

// stageSource copies the source into the toolchain directory unless it
// already lives there, and returns its name relative to that directory.
func (s *session) stageSource() (string, bool) {
	name := filepath.Base(s.source)
	if filepath.Dir(s.source) == s.dir {
		return name, true
	}
	dst := filepath.Join(s.dir, name)
	if err := s.fs.CopyFile(dst, s.source); err != nil {
		s.res.fail(FailureInternal, StageSetup, err, "staging source into %s: %v", s.dir, err)
		return "", false
	}
	s.emit(trace.EventFileCopy, s.source, dst)
	return name, true
}

// clear removes stale files from the toolchain directory.
func (s *session) clear(names ...string) bool {
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		path := filepath.Join(s.dir, n)
		if _, err := s.fs.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := s.fs.Remove(path); err != nil {
			s.res.fail(FailureInternal, s.stage, err, "removing stale %s: %v", n, err)
			return false
		}
		s.emit(trace.EventFileRemove, path, "stale")
	}
	return true
}

func (s *session) sentinelNames() []string {
	var names []string
	for _, f := range s.cfg.Sentinels.Ordered() {
		names = append(names, f.Name)
	}
	return names
}

// launch runs the argv in the toolchain directory under the configured
// timeout and records the captured streams on the result.
func (s *session) launch(ctx context.Context, runner CommandRunner, args []string) bool {
	er, err := runner.Run(ctx, Command{Args: args, Dir: s.dir, Timeout: s.cfg.Timeout})
	if er != nil {
		s.res.Stdout = er.Stdout
		s.res.Stderr = er.Stderr
		s.res.ExitCode = er.ExitCode
	}
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			s.emit(trace.EventProcessTimeout, args[0], s.cfg.Timeout.String())
			s.res.fail(FailureTimeout, s.stage, err, "toolchain did not finish within %s", s.cfg.Timeout)
			return false
		}
		s.res.fail(FailureInternal, s.stage, err, "running toolchain: %v", err)
		return false
	}
	s.emit(trace.EventProcessExit, args[0], fmt.Sprintf("exit %d", er.ExitCode))
	return true
}

// settle waits for the toolchain's file writes to land before polling.
func (s *session) settle(ctx context.Context) bool {
	if s.cfg.SettleDelay <= 0 {
		return true
	}
	t := time.NewTimer(s.cfg.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		s.res.fail(FailureInternal, s.stage, ctx.Err(), "interrupted while waiting for output: %v", ctx.Err())
		return false
	case <-t.C:
		return true
	}
}

// checkSentinels fails the run when any stage left a non-empty error file.
func (s *session) checkSentinels() bool {
	hit, err := s.harvester.CheckSentinels(s.cfg.Sentinels)
	if err != nil {
		s.res.fail(FailureInternal, s.stage, err, "checking error files: %v", err)
		return false
	}
	if hit == nil {
		return true
	}
	s.stage = hit.Stage
	s.emit(trace.EventSentinelHit, hit.Path, fmt.Sprintf("%d bytes", len(hit.Content)))
	s.res.Sentinel = hit.Path
	s.res.SentinelContent = hit.Content
	s.res.fail(FailureSentinel, hit.Stage, nil, "%s reported errors in %s", hit.Stage, filepath.Base(hit.Path))
	return false
}

// collect stats the expected outputs. A missing bytecode file is a failure
// attributed to stage.
func (s *session) collect(scrName, hName string, stage Stage) bool {
	out, err := s.harvester.Collect(scrName)
	if err != nil {
		s.res.fail(FailureInternal, s.stage, err, "inspecting output: %v", err)
		return false
	}
	if out == nil {
		s.res.fail(FailureMissingOutput, stage, nil, "compilation failed: %s was not produced (exit code %d)", scrName, s.res.ExitCode)
		return false
	}
	hdr, err := s.harvester.Collect(hName)
	if err != nil {
		s.res.fail(FailureInternal, s.stage, err, "inspecting header: %v", err)
		return false
	}
	s.res.Output = out
	s.res.Header = hdr

	if len(s.cfg.DebugPatterns) > 0 {
		files, err := s.harvester.Intermediates(s.cfg.DebugPatterns)
		if err != nil {
			s.res.fail(FailureInternal, s.stage, err, "listing intermediate files: %v", err)
			return false
		}
		s.res.Intermediates = files
	}
	return true
}

// copyBack copies an artifact to dst. Copying a file onto itself is skipped.
func (s *session) copyBack(a *Artifact, dst string) (string, bool) {
	if a == nil || dst == "" {
		return "", true
	}
	abs, err := filepath.Abs(dst)
	if err != nil {
		s.res.fail(FailureInternal, StageCopyBack, err, "resolving destination %q: %v", dst, err)
		return "", false
	}
	if sameFile(s.fs, a.Path, abs) {
		return abs, true
	}
	if err := s.fs.CopyFile(abs, a.Path); err != nil {
		s.res.fail(FailureInternal, StageCopyBack, err, "copying %s to %s: %v", filepath.Base(a.Path), dst, err)
		return "", false
	}
	s.emit(trace.EventFileCopy, a.Path, abs)
	return abs, true
}

func (s *session) executable(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}
