// Package config loads toolchain settings.
//
// Precedence, highest first: command-line flags, SCRBRIDGE_* environment
// variables (including those from an optional .env file), the config file,
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"scrbridge/internal/core"
)

// EnvPrefix is prepended to every environment key, e.g.
// SCRBRIDGE_TOOLCHAIN_DIR or SCRBRIDGE_STAGED_TIMEOUT.
const EnvPrefix = "SCRBRIDGE"

// Keys.
const (
	KeyToolchainDir  = "toolchain_dir"
	KeyLauncher      = "launcher"
	KeyEntryPoint    = "entry_point"
	KeyPreprocessor  = "preprocessor"
	KeyCompiler      = "compiler"
	KeyAssembler     = "assembler"
	KeySentinelPre   = "sentinels.preprocess"
	KeySentinelComp  = "sentinels.compile"
	KeySentinelAsm   = "sentinels.assemble"
	KeyTmpPre        = "intermediates.preprocessed"
	KeyTmpAsm        = "intermediates.assembly"
	KeyDebugPatterns = "debug_patterns"
	KeyShell         = "shell"
	KeyScriptFlavor  = "script_flavor"
	KeyScriptName    = "script_name"
	KeyHistory       = "history.enabled"
	KeyHistoryKeep   = "history.keep"
)

// Flag names bound by BindFlags.
const (
	FlagToolchainDir = "toolchain-dir"
	FlagLauncher     = "launcher"
	FlagTimeout      = "timeout"
	FlagSettle       = "settle"
	FlagNoHistory    = "no-history"
)

// Settings is the resolved configuration for one tool.
type Settings struct {
	Toolchain core.Config

	// History enables run records in the toolchain directory.
	History     bool
	HistoryKeep int

	// ConfigFile is the file that was read, if any.
	ConfigFile string
}

// Loader resolves Settings from defaults, files, environment and flags.
type Loader struct {
	// ConfigFile is an explicit config path. Empty searches SearchDir for
	// scrbridge.{yaml,yml,json,toml}; a missing file is not an error.
	ConfigFile string

	// SearchDir is where scrbridge.* and .env are looked for. Defaults to ".".
	SearchDir string

	// EnvFile overrides the .env path. Set to "-" to skip .env loading.
	EnvFile string

	// Flags, when set, contributes explicitly-changed flags.
	Flags *pflag.FlagSet
}

// BindFlags registers the flags Loader understands.
func BindFlags(fs *pflag.FlagSet, tool core.Tool) {
	fs.String(FlagToolchainDir, "", "toolchain directory (working dir of every invocation)")
	fs.String(FlagLauncher, "", `command prefix for the toolchain executables, e.g. "wine"`)
	fs.Duration(FlagTimeout, 0, "wall-clock budget for the toolchain invocation")
	if tool == core.ToolStaged {
		fs.Duration(FlagSettle, 0, "wait before polling for results")
	}
	fs.Bool(FlagNoHistory, false, "do not write run records")
}

func timeoutKey(tool core.Tool) string { return string(tool) + ".timeout" }
func settleKey(tool core.Tool) string  { return string(tool) + ".settle_delay" }

func setDefaults(v *viper.Viper, tool core.Tool) {
	var d core.Config
	if tool == core.ToolStaged {
		d = core.DefaultStagedConfig()
	} else {
		d = core.DefaultDirectConfig()
	}
	v.SetDefault(KeyToolchainDir, d.ToolchainDir)
	v.SetDefault(KeyLauncher, "")
	v.SetDefault(KeyEntryPoint, d.EntryPoint)
	v.SetDefault(KeyPreprocessor, d.Preprocessor)
	v.SetDefault(KeyCompiler, d.Compiler)
	v.SetDefault(KeyAssembler, d.Assembler)
	v.SetDefault(KeySentinelPre, d.Sentinels.Preprocess)
	v.SetDefault(KeySentinelComp, d.Sentinels.Compile)
	v.SetDefault(KeySentinelAsm, d.Sentinels.Assemble)
	v.SetDefault(KeyTmpPre, d.Intermediates.Preprocessed)
	v.SetDefault(KeyTmpAsm, d.Intermediates.Assembly)
	v.SetDefault(KeyDebugPatterns, d.DebugPatterns)
	v.SetDefault(KeyShell, strings.Join(d.Shell, " "))
	v.SetDefault(KeyScriptFlavor, string(d.ScriptFlavor))
	v.SetDefault(KeyScriptName, d.ScriptName)
	v.SetDefault(KeyHistory, true)
	v.SetDefault(KeyHistoryKeep, 50)
	v.SetDefault(timeoutKey(core.ToolDirect), core.DefaultDirectTimeout.String())
	v.SetDefault(timeoutKey(core.ToolStaged), core.DefaultStagedTimeout.String())
	v.SetDefault(settleKey(core.ToolDirect), "0s")
	v.SetDefault(settleKey(core.ToolStaged), core.DefaultSettleDelay.String())
}

// Load resolves the settings for tool.
func (l Loader) Load(tool core.Tool) (Settings, error) {
	if tool != core.ToolDirect && tool != core.ToolStaged {
		return Settings{}, fmt.Errorf("unknown tool %q", tool)
	}
	dir := l.SearchDir
	if dir == "" {
		dir = "."
	}

	if err := loadDotEnv(dir, l.EnvFile); err != nil {
		return Settings{}, err
	}

	v := viper.New()
	setDefaults(v, tool)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.ConfigFile != "" {
		v.SetConfigFile(l.ConfigFile)
	} else {
		v.SetConfigName("scrbridge")
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.ConfigFile != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := l.bindFlags(v, tool); err != nil {
		return Settings{}, err
	}

	timeout, err := durationOf(v, timeoutKey(tool))
	if err != nil {
		return Settings{}, err
	}
	settle, err := durationOf(v, settleKey(tool))
	if err != nil {
		return Settings{}, err
	}

	cfg := core.Config{
		ToolchainDir: v.GetString(KeyToolchainDir),
		Launcher:     strings.Fields(v.GetString(KeyLauncher)),
		EntryPoint:   v.GetString(KeyEntryPoint),
		Preprocessor: v.GetString(KeyPreprocessor),
		Compiler:     v.GetString(KeyCompiler),
		Assembler:    v.GetString(KeyAssembler),
		Sentinels: core.Sentinels{
			Preprocess: v.GetString(KeySentinelPre),
			Compile:    v.GetString(KeySentinelComp),
			Assemble:   v.GetString(KeySentinelAsm),
		},
		Intermediates: core.Intermediates{
			Preprocessed: v.GetString(KeyTmpPre),
			Assembly:     v.GetString(KeyTmpAsm),
		},
		DebugPatterns: v.GetStringSlice(KeyDebugPatterns),
		Timeout:       timeout,
		SettleDelay:   settle,
		Shell:         strings.Fields(v.GetString(KeyShell)),
		ScriptFlavor:  core.ScriptFlavor(v.GetString(KeyScriptFlavor)),
		ScriptName:    v.GetString(KeyScriptName),
	}
	if err := cfg.Validate(tool); err != nil {
		return Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return Settings{
		Toolchain:   cfg,
		History:     v.GetBool(KeyHistory),
		HistoryKeep: v.GetInt(KeyHistoryKeep),
		ConfigFile:  v.ConfigFileUsed(),
	}, nil
}

// bindFlags applies flags the user actually set; unset flags must not
// shadow file or environment values with their zero defaults.
func (l Loader) bindFlags(v *viper.Viper, tool core.Tool) error {
	if l.Flags == nil {
		return nil
	}
	var errs []error
	l.Flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case FlagToolchainDir:
			v.Set(KeyToolchainDir, f.Value.String())
		case FlagLauncher:
			v.Set(KeyLauncher, f.Value.String())
		case FlagTimeout:
			v.Set(timeoutKey(tool), f.Value.String())
		case FlagSettle:
			v.Set(settleKey(tool), f.Value.String())
		case FlagNoHistory:
			off, err := l.Flags.GetBool(FlagNoHistory)
			if err != nil {
				errs = append(errs, err)
				return
			}
			v.Set(KeyHistory, !off)
		}
	})
	return errors.Join(errs...)
}

// durationOf parses a duration strictly; viper's own GetDuration turns
// garbage into zero.
func durationOf(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

// loadDotEnv loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set.
func loadDotEnv(dir, envFile string) error {
	if envFile == "-" {
		return nil
	}
	path := envFile
	if path == "" {
		path = filepath.Join(dir, ".env")
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
