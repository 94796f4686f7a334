package trace

import (
	"bytes"
	"testing"
)

func TestCanonicalTraceStability_ByteForByte(t *testing.T) {
	trace1 := ExecutionTrace{
		ScheduleLabel: "a -> b -> c",
		Events: []TraceEvent{
			{Kind: EventTaskCompleted, TaskID: "2", TaskLabel: "b"},
			{Kind: EventTaskStarted, TaskID: "1", TaskLabel: "a"},
			{Kind: EventTaskSkipped, TaskID: "3", TaskLabel: "c", Reason: "UpstreamFailed", CauseTaskID: "2"},
		},
	}

	trace2 := ExecutionTrace{
		ScheduleLabel: "a -> b -> c",
		Events: []TraceEvent{
			{Kind: EventTaskSkipped, TaskID: "3", TaskLabel: "c", CauseTaskID: "2", Reason: "UpstreamFailed"},
			{Kind: EventTaskStarted, TaskID: "1", TaskLabel: "a"},
			{Kind: EventTaskCompleted, TaskID: "2", TaskLabel: "b"},
		},
	}

	b1, err := trace1.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (1): %v", err)
	}
	b2, err := trace2.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (2): %v", err)
	}

	if !bytes.Equal(b1, b2) {
		t.Fatalf("expected identical bytes\n1=%s\n2=%s", string(b1), string(b2))
	}
}

func TestCanonicalOrdering_SortsByTaskID(t *testing.T) {
	tr := ExecutionTrace{
		ScheduleLabel: "a -> b",
		Events: []TraceEvent{
			{Kind: EventTaskStarted, TaskID: "2", TaskLabel: "b"},
			{Kind: EventTaskStarted, TaskID: "1", TaskLabel: "a"},
		},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	// Expect task "1" before task "2". encoding/json escapes '>' as \u003e.
	expected := `{"scheduleLabel":"a -\u003e b","events":[{"kind":"TaskStarted","taskId":"1","taskLabel":"a"},{"kind":"TaskStarted","taskId":"2","taskLabel":"b"}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}
}

func TestHash_Deterministic(t *testing.T) {
	tr1 := ExecutionTrace{ScheduleLabel: "g", Events: []TraceEvent{{Kind: EventTaskStarted, TaskID: "1"}}}
	tr2 := ExecutionTrace{ScheduleLabel: "g", Events: []TraceEvent{{Kind: EventTaskStarted, TaskID: "1"}}}

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
}

func TestHash_IgnoresInsertionOrder_WhenSemanticallyEquivalent(t *testing.T) {
	tr1 := ExecutionTrace{
		ScheduleLabel: "g",
		Events: []TraceEvent{
			{Kind: EventTaskCompleted, TaskID: "2", Reason: "Ran"},
			{Kind: EventTaskStarted, TaskID: "1", Reason: "Queued"},
		},
	}
	tr2 := ExecutionTrace{
		ScheduleLabel: "g",
		Events: []TraceEvent{
			{Kind: EventTaskStarted, TaskID: "1", Reason: "Queued"},
			{Kind: EventTaskCompleted, TaskID: "2", Reason: "Ran"},
		},
	}

	h1, err := tr1.Hash()
	if err != nil {
		t.Fatalf("hash (1): %v", err)
	}
	h2, err := tr2.Hash()
	if err != nil {
		t.Fatalf("hash (2): %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected equal hash for semantically equivalent traces, got %q != %q", h1, h2)
	}
}

func TestEventTaskLabel_OmittedWhenEmpty(t *testing.T) {
	tr := ExecutionTrace{
		ScheduleLabel: "g",
		Events:        []TraceEvent{{Kind: EventTaskStarted, TaskID: "1"}},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"scheduleLabel":"g","events":[{"kind":"TaskStarted","taskId":"1"}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}
}

func TestValidate_RequiresTaskID(t *testing.T) {
	tr := &ExecutionTrace{ScheduleLabel: "g", Events: []TraceEvent{{Kind: EventTaskStarted}}}
	if err := tr.Validate(); err == nil {
		t.Fatalf("expected an error for a missing taskId")
	}
}
