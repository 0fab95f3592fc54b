package history

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"scrbridge/internal/core"
)

// Recorder turns compile results into run.json / failure.json records.
type Recorder struct {
	Store *Store
}

// NewRunID returns "<UTC timestamp>-<random hex>", sortable by start time.
func (r *Recorder) NewRunID(start time.Time) (string, error) {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return start.UTC().Format("20060102T150405.000Z") + "-" + hex.EncodeToString(b[:]), nil
}

// Record persists res and returns the new run ID. traceHash may be empty.
func (r *Recorder) Record(res *core.Result, traceHash string) (string, error) {
	if r == nil || r.Store == nil {
		return "", errors.New("Store is required")
	}
	if res == nil {
		return "", errors.New("nil result")
	}

	start := res.StartTime
	if start.IsZero() {
		start = time.Now().UTC()
	}
	runID, err := r.NewRunID(start)
	if err != nil {
		return "", fmt.Errorf("run id: %w", err)
	}

	run := Run{
		RunID:      runID,
		Tool:       string(res.Tool),
		Source:     res.Source,
		StartTime:  start,
		DurationMS: res.Duration.Milliseconds(),
		Status:     RunFailed,
		TraceHash:  traceHash,
	}
	if res.OK() {
		run.Status = RunSucceeded
		out := res.Output.Path
		if res.OutputPath != "" {
			out = res.OutputPath
		}
		run.Output = &out
		run.Size = res.Output.Size
		run.Digest = res.Output.Digest
	}
	if err := r.Store.SaveRun(run); err != nil {
		return "", err
	}

	if res.Err != nil {
		if err := r.Store.SaveFailure(runID, failureFromResult(res)); err != nil {
			return runID, err
		}
	}
	return runID, nil
}

func failureFromResult(res *core.Result) Failure {
	f := Failure{
		Kind:     string(res.Err.Kind),
		Stage:    string(res.Err.Stage),
		Message:  res.Err.Message,
		ExitCode: res.ExitCode,
	}
	if f.Message == "" {
		f.Message = res.Err.Error()
	}
	if res.Sentinel != "" {
		f.Sentinel = res.Sentinel
		f.SentinelContent = string(res.SentinelContent)
	}
	return f
}
