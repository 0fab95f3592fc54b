package trace

import (
	"bytes"
	"testing"
)

func TestCanonicalJSON_OrdersBySeq(t *testing.T) {
	tr := InvocationTrace{
		Tool:   "staged",
		Source: "demo.ss",
		Events: []Event{
			{Seq: 2, Kind: EventStageEnd, Stage: "setup"},
			{Seq: 1, Kind: EventStageStart, Stage: "setup"},
		},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"tool":"staged","source":"demo.ss","events":[{"seq":1,"kind":"stage.start","stage":"setup"},{"seq":2,"kind":"stage.end","stage":"setup"}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}

	// The caller's slice is untouched.
	if tr.Events[0].Seq != 2 {
		t.Fatalf("CanonicalJSON mutated the trace: %#v", tr.Events)
	}
}

func TestCanonicalJSON_OmitsEmptyOptionalFields(t *testing.T) {
	tr := InvocationTrace{
		Tool:   "direct",
		Events: []Event{{Seq: 1, Kind: EventFileCopy, Path: "a.ss", Detail: "toolchain/a.ss"}},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"tool":"direct","events":[{"seq":1,"kind":"file.copy","path":"a.ss","detail":"toolchain/a.ss"}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}
}

func TestCanonicalJSON_RejectsInvalidTrace(t *testing.T) {
	if _, err := (InvocationTrace{}).CanonicalJSON(); err == nil {
		t.Fatal("expected error for missing tool")
	}
	tr := InvocationTrace{Tool: "direct", Events: []Event{{Kind: EventStageStart}}}
	if _, err := tr.CanonicalJSON(); err == nil {
		t.Fatal("expected error for zero seq")
	}
}

func TestHash_Deterministic(t *testing.T) {
	tr1 := InvocationTrace{Tool: "direct", Events: []Event{{Seq: 1, Kind: EventProcessExit, Detail: "exit 0"}}}
	tr2 := InvocationTrace{Tool: "direct", Events: []Event{{Seq: 1, Kind: EventProcessExit, Detail: "exit 0"}}}

	h1, err := tr1.Hash()
	if err != nil {
		t.Fatalf("hash (1): %v", err)
	}
	h2, err := tr2.Hash()
	if err != nil {
		t.Fatalf("hash (2): %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical hash, got %q != %q", h1, h2)
	}
	if ComputeTraceHash(nil) != "" {
		t.Fatal("expected empty hash for empty input")
	}
}

func TestRecorder_NumbersEventsAndSnapshotsIndependently(t *testing.T) {
	r := NewRecorder()
	r.Record(Event{Kind: EventStageStart, Stage: "setup"})
	r.Record(Event{Kind: EventStageEnd, Stage: "setup"})

	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Seq != 1 || snap[1].Seq != 2 {
		t.Fatalf("unexpected events: %#v", snap)
	}
	snap[0].Kind = EventFileRemove
	if r.Snapshot()[0].Kind != EventStageStart {
		t.Fatal("snapshot aliases recorder storage")
	}

	tr := r.Trace("direct", "a.ss")
	if tr.Tool != "direct" || tr.Source != "a.ss" || len(tr.Events) != 2 {
		t.Fatalf("unexpected trace: %#v", tr)
	}
}

func TestSafeRecord_SwallowsPanics(t *testing.T) {
	panicky := SinkFunc(func(Event) { panic("boom") })
	SafeRecord(panicky, Event{Kind: EventStageStart})
	SafeRecord(nil, Event{Kind: EventStageStart})

	r := NewRecorder()
	var buf bytes.Buffer
	m := Multi(panicky, r, SinkFunc(func(e Event) { buf.WriteString(e.String()) }))
	m.Record(Event{Seq: 7, Kind: EventSentinelHit, Stage: "compile", Path: "compile.err"})

	if got := r.Snapshot(); len(got) != 1 || got[0].Seq != 7 {
		t.Fatalf("recorder missed event after panicking sink: %#v", got)
	}
	if buf.String() != "#7 sentinel.hit [compile] compile.err" {
		t.Fatalf("unexpected rendering %q", buf.String())
	}
}
