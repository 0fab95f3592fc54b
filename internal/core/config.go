package core

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Default wall-clock budgets for one invocation.
const (
	DefaultDirectTimeout = 60 * time.Second
	DefaultStagedTimeout = 30 * time.Second
	DefaultSettleDelay   = 500 * time.Millisecond
)

// ScriptFlavor selects the syntax of the transient pipeline script.
type ScriptFlavor string

const (
	ScriptPOSIX ScriptFlavor = "posix"
	ScriptBatch ScriptFlavor = "batch"
)

// Sentinels names the error files the toolchain writes, one per stage.
type Sentinels struct {
	Preprocess string
	Compile    string
	Assemble   string
}

// Ordered returns the sentinel files in pipeline order keyed by stage.
// Stages without a configured file name are skipped.
func (s Sentinels) Ordered() []SentinelFile {
	all := []SentinelFile{
		{Stage: StagePreprocess, Name: s.Preprocess},
		{Stage: StageCompile, Name: s.Compile},
		{Stage: StageAssemble, Name: s.Assemble},
	}
	out := make([]SentinelFile, 0, len(all))
	for _, f := range all {
		if strings.TrimSpace(f.Name) != "" {
			out = append(out, f)
		}
	}
	return out
}

// SentinelFile is one stage's error file name.
type SentinelFile struct {
	Stage Stage
	Name  string
}

// Intermediates names the fixed scratch files passed between pipeline stages.
type Intermediates struct {
	Preprocessed string
	Assembly     string
}

// Config is the explicit description of a toolchain installation.
//
// Compilers never fill in missing fields; use DefaultDirectConfig or
// DefaultStagedConfig for the stock layout.
type Config struct {
	// ToolchainDir holds the executables and is the working directory of
	// every invocation.
	ToolchainDir string

	// Launcher is prepended to every executable invocation, e.g. ["wine"].
	// Empty on a host that runs the binaries natively.
	Launcher []string

	// EntryPoint is the combined preprocess+compile+assemble executable.
	EntryPoint string

	Preprocessor string
	Compiler     string
	Assembler    string

	Sentinels     Sentinels
	Intermediates Intermediates

	// DebugPatterns are glob patterns, relative to ToolchainDir, of scratch
	// and debug files reported after a successful run.
	DebugPatterns []string

	// Timeout bounds a single external invocation.
	Timeout time.Duration

	// SettleDelay is how long the staged tool waits for filesystem writes
	// before it polls for results.
	SettleDelay time.Duration

	// Shell runs the transient pipeline script; the script path is appended.
	Shell        []string
	ScriptFlavor ScriptFlavor
	ScriptName   string
}

func baseConfig() Config {
	shell, flavor, script := []string{"sh"}, ScriptPOSIX, "_scrbuild.sh"
	if runtime.GOOS == "windows" {
		shell, flavor, script = []string{"cmd", "/C"}, ScriptBatch, "_scrbuild.bat"
	}
	return Config{
		ToolchainDir: "toolchain",
		EntryPoint:   "scc.exe",
		Preprocessor: "scpp.exe",
		Compiler:     "sccomp.exe",
		Assembler:    "scasm.exe",
		Sentinels: Sentinels{
			Preprocess: "preproc.err",
			Compile:    "compile.err",
			Assemble:   "asm.err",
		},
		Intermediates: Intermediates{
			Preprocessed: "_scrtmp.i",
			Assembly:     "_scrtmp.asm",
		},
		DebugPatterns: []string{"*.i", "*.asm", "*.lst", "*.dbg", "*.map"},
		Shell:         shell,
		ScriptFlavor:  flavor,
		ScriptName:    script,
	}
}

// DefaultDirectConfig returns the stock configuration for DirectCompiler.
func DefaultDirectConfig() Config {
	c := baseConfig()
	c.Timeout = DefaultDirectTimeout
	return c
}

// DefaultStagedConfig returns the stock configuration for StagedCompiler.
func DefaultStagedConfig() Config {
	c := baseConfig()
	c.Timeout = DefaultStagedTimeout
	c.SettleDelay = DefaultSettleDelay
	return c
}

// Validate reports every missing or inconsistent field at once.
func (c Config) Validate(tool Tool) error {
	var errs []error
	if strings.TrimSpace(c.ToolchainDir) == "" {
		errs = append(errs, errors.New("toolchain dir is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive (got %s)", c.Timeout))
	}
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle delay must not be negative (got %s)", c.SettleDelay))
	}
	switch tool {
	case ToolDirect:
		if strings.TrimSpace(c.EntryPoint) == "" {
			errs = append(errs, errors.New("entry point is required"))
		}
	case ToolStaged:
		if strings.TrimSpace(c.Preprocessor) == "" || strings.TrimSpace(c.Compiler) == "" || strings.TrimSpace(c.Assembler) == "" {
			errs = append(errs, errors.New("preprocessor, compiler and assembler are required"))
		}
		if strings.TrimSpace(c.Intermediates.Preprocessed) == "" || strings.TrimSpace(c.Intermediates.Assembly) == "" {
			errs = append(errs, errors.New("intermediate file names are required"))
		}
		if len(c.Shell) == 0 {
			errs = append(errs, errors.New("shell is required"))
		}
		if strings.TrimSpace(c.ScriptName) == "" {
			errs = append(errs, errors.New("script name is required"))
		}
		switch c.ScriptFlavor {
		case ScriptPOSIX, ScriptBatch:
		default:
			errs = append(errs, fmt.Errorf("invalid script flavor %q", c.ScriptFlavor))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown tool %q", tool))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
