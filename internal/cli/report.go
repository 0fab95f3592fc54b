package cli

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"scrbridge/internal/core"
)

// report prints the human-readable outcome. Progress and success go to out,
// failures to errw.
func report(out, errw io.Writer, res *core.Result) {
	if res.OK() {
		reportSuccess(out, res)
		return
	}
	reportFailure(errw, res)
}

func reportSuccess(w io.Writer, res *core.Result) {
	dst := res.OutputPath
	if dst == "" {
		dst = res.Output.Path
	}
	fmt.Fprintf(w, "Compilation successful: %s (%d bytes)\n", dst, res.Output.Size)
	if res.Header != nil {
		h := res.HeaderPath
		if h == "" {
			h = res.Header.Path
		}
		fmt.Fprintf(w, "Header: %s (%d bytes)\n", h, res.Header.Size)
	}
	if len(res.Intermediates) > 0 {
		fmt.Fprintln(w, "Intermediate files:")
		for _, f := range res.Intermediates {
			fmt.Fprintf(w, "  %s\n", filepath.Base(f))
		}
	}
}

func reportFailure(w io.Writer, res *core.Result) {
	switch res.Kind() {
	case core.FailureSentinel:
		fmt.Fprintf(w, "Compilation failed: %s\n", res.Err.Message)
		fmt.Fprintf(w, "--- %s ---\n", filepath.Base(res.Sentinel))
		w.Write(res.SentinelContent)
		if !bytes.HasSuffix(res.SentinelContent, []byte("\n")) {
			fmt.Fprintln(w)
		}
	case core.FailureTimeout:
		fmt.Fprintf(w, "Compilation timed out: %s\n", res.Err.Message)
		writeStreams(w, res)
	case core.FailureMissingOutput:
		fmt.Fprintf(w, "Compilation failed at %s: %s\n", res.Stage(), res.Err.Message)
		fmt.Fprintf(w, "Exit code: %d\n", res.ExitCode)
		writeStreams(w, res)
	default:
		fmt.Fprintf(w, "Error: %s\n", res.Err.Message)
	}
}

func writeStreams(w io.Writer, res *core.Result) {
	for _, s := range []struct {
		name string
		data []byte
	}{{"stdout", res.Stdout}, {"stderr", res.Stderr}} {
		if len(bytes.TrimSpace(s.data)) == 0 {
			continue
		}
		fmt.Fprintf(w, "--- %s ---\n", s.name)
		w.Write(s.data)
		if !bytes.HasSuffix(s.data, []byte("\n")) {
			fmt.Fprintln(w)
		}
	}
}
