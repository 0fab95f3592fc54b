package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// InvocationTrace is the ordered record of what one toolchain invocation did.
//
// Events are ordered by Seq, which the Recorder assigns in recording order.
// The trace is observational only and never affects the outcome of a run.
type InvocationTrace struct {
	Tool   string
	Source string
	Events []Event
}

// EventKind is the stable discriminator for Event.
// The string values are part of the trace's encoded bytes; do not rename.
type EventKind string

const (
	EventStageStart     EventKind = "stage.start"
	EventStageEnd       EventKind = "stage.end"
	EventFileCopy       EventKind = "file.copy"
	EventFileRemove     EventKind = "file.remove"
	EventScriptWrite    EventKind = "script.write"
	EventSentinelHit    EventKind = "sentinel.hit"
	EventProcessExit    EventKind = "process.exit"
	EventProcessTimeout EventKind = "process.timeout"
)

// Event is a single step of an invocation.
type Event struct {
	// Seq is the 1-based position of the event within its trace.
	Seq int

	Kind EventKind

	// Stage is the pipeline stage the event belongs to (e.g. "compile").
	Stage string

	// Path is the file the event is about, if any.
	Path string

	// Detail is a short free-form note such as an exit code or destination.
	Detail string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *InvocationTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.Tool == "" {
		return errors.New("tool is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Seq <= 0 {
			return fmt.Errorf("events[%d].seq must be positive", i)
		}
	}
	return nil
}

// Canonicalize sorts events by Seq.
func (t *InvocationTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		return t.Events[i].Seq < t.Events[j].Seq
	})
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy of the trace to avoid mutating the caller's slices.
func (t InvocationTrace) CanonicalJSON() ([]byte, error) {
	c := InvocationTrace{Tool: t.Tool, Source: t.Source}
	c.Events = make([]Event, len(t.Events))
	copy(c.Events, t.Events)
	c.Canonicalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&c)
}

// Hash returns the sha256 hex of the canonical JSON bytes.
func (t InvocationTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON fixes field order.
func (t InvocationTrace) MarshalJSON() ([]byte, error) {
	if t.Tool == "" {
		return nil, errors.New("tool is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"tool":`)
	writeString(&buf, t.Tool)
	if t.Source != "" {
		buf.WriteString(`,"source":`)
		writeString(&buf, t.Source)
	}
	buf.WriteString(`,"events":[`)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order and omits empty optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"seq":%d,"kind":`, e.Seq)
	writeString(&buf, string(e.Kind))
	if e.Stage != "" {
		buf.WriteString(`,"stage":`)
		writeString(&buf, e.Stage)
	}
	if e.Path != "" {
		buf.WriteString(`,"path":`)
		writeString(&buf, e.Path)
	}
	if e.Detail != "" {
		buf.WriteString(`,"detail":`)
		writeString(&buf, e.Detail)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// String renders the event on one line for console output.
func (e Event) String() string {
	s := fmt.Sprintf("#%d %s", e.Seq, e.Kind)
	if e.Stage != "" {
		s += " [" + e.Stage + "]"
	}
	if e.Path != "" {
		s += " " + e.Path
	}
	if e.Detail != "" {
		s += " (" + e.Detail + ")"
	}
	return s
}
