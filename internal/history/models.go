package history

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is the persistent record of one toolchain invocation.
//
// Output is null when the run produced no artifact.
type Run struct {
	RunID      string    `json:"run_id"`
	Tool       string    `json:"tool"`
	Source     string    `json:"source"`
	StartTime  time.Time `json:"start_time"`
	DurationMS int64     `json:"duration_ms"`
	Status     RunStatus `json:"status"`
	Output     *string   `json:"output"`
	Size       int64     `json:"size,omitempty"`
	Digest     string    `json:"digest,omitempty"`
	TraceHash  string    `json:"trace_hash,omitempty"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if strings.TrimSpace(r.Tool) == "" {
		errs = append(errs, errors.New("tool is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	if r.DurationMS < 0 {
		errs = append(errs, errors.New("duration_ms must be >= 0"))
	}
	switch r.Status {
	case RunSucceeded:
		if r.Output == nil || strings.TrimSpace(*r.Output) == "" {
			errs = append(errs, errors.New("output is required for a successful run"))
		}
	case RunFailed:
		// ok
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Failure is the recorded reason a run failed.
type Failure struct {
	Kind            string `json:"kind"`
	Stage           string `json:"stage"`
	Message         string `json:"message"`
	ExitCode        int    `json:"exit_code"`
	Sentinel        string `json:"sentinel,omitempty"`
	SentinelContent string `json:"sentinel_content,omitempty"`
}

func (f Failure) Validate() error {
	var errs []error
	if strings.TrimSpace(f.Kind) == "" {
		errs = append(errs, errors.New("kind is required"))
	}
	if strings.TrimSpace(f.Message) == "" {
		errs = append(errs, errors.New("message is required"))
	}
	if f.Sentinel == "" && f.SentinelContent != "" {
		errs = append(errs, errors.New("sentinel_content requires sentinel"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
