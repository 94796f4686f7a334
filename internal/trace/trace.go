// Package trace records what happened during one Schedule run: which tasks
// started, which completed, which failed, and which were skipped as a
// consequence. It is observational only — nothing in runexec or topology
// reads a trace back to decide behavior — and is attached to a
// ScheduleFailure purely so a human (or a CI log) can see exactly what ran
// before a convergence or content check diverged.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ExecutionTrace is the canonical, deterministic record of one schedule run.
//
// Invariants:
//   - ScheduleLabel identifies which Schedule (schedule.Schedule.String())
//     the events belong to.
//   - Events carry no timestamps, pointers, or other runtime-dependent
//     values, so two recordings of the same logical run produce identical
//     canonical bytes regardless of goroutine scheduling.
//
// Canonicalize() sorts Events into a fully-specified order before
// CanonicalJSON/Hash are computed, so trace identity depends on what
// happened, never on the order events were appended to the Recorder.
type ExecutionTrace struct {
	ScheduleLabel string
	Events        []TraceEvent
}

// TraceEventKind is the stable, canonical discriminator for TraceEvent. The
// string values are part of the trace's canonical bytes; do not rename.
type TraceEventKind string

const (
	// EventTaskStarted marks a task's Run phase beginning.
	EventTaskStarted TraceEventKind = "TaskStarted"
	// EventTaskCompleted marks a task's Run phase returning nil.
	EventTaskCompleted TraceEventKind = "TaskCompleted"
	// EventTaskFailed marks a task's Run phase returning an error; Reason
	// holds that error's message.
	EventTaskFailed TraceEventKind = "TaskFailed"
	// EventTaskSkipped marks a task that never ran because an earlier task
	// in the same schedule failed; CauseTaskID names that earlier task.
	EventTaskSkipped TraceEventKind = "TaskSkipped"
)

// TraceEvent is a single logical transition for one task within one schedule
// run.
type TraceEvent struct {
	Kind TraceEventKind

	// TaskID is the task's identity (task.Runnable.ID(), stringified).
	TaskID string

	// TaskLabel is the task's diagnostic label (task.Runnable.Label()), so a
	// trace is readable on its own without cross-referencing the happens-
	// before graph that produced the schedule.
	TaskLabel string

	// Reason holds the failing task's error message for EventTaskFailed, or
	// a fixed logical code ("UpstreamFailed") for EventTaskSkipped.
	Reason string

	// CauseTaskID names the task whose failure caused this skip. Only set
	// for EventTaskSkipped.
	CauseTaskID string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.ScheduleLabel == "" {
		return errors.New("scheduleLabel is required")
	}
	for i := range t.Events {
		e := t.Events[i]
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.TaskID == "" {
			return fmt.Errorf("events[%d].taskId is required", i)
		}
	}
	return nil
}

// Canonicalize sorts Events into a fully-specified order independent of
// recording/goroutine-completion order: primarily by TaskID (as a string),
// then by event kind, then by Reason, then by CauseTaskID. TaskLabel is not
// compared; events equal on those keys keep their relative order.
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		a := t.Events[i]
		b := t.Events[j]

		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return a.CauseTaskID < b.CauseTaskID
	})
}

func kindOrder(k TraceEventKind) int {
	switch k {
	case EventTaskStarted:
		return 10
	case EventTaskCompleted:
		return 20
	case EventTaskFailed:
		return 30
	case EventTaskSkipped:
		return 40
	default:
		return 1000
	}
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy of the trace to avoid mutating the caller's slice.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	copyTrace := ExecutionTrace{ScheduleLabel: t.ScheduleLabel}
	copyTrace.Events = make([]TraceEvent, len(t.Events))
	copy(copyTrace.Events, t.Events)
	copyTrace.Canonicalize()
	if err := copyTrace.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&copyTrace)
}

// Hash returns the deterministic trace hash (sha256 hex) of the canonical
// JSON bytes, letting two independently recorded runs of "the same"
// schedule be compared for equality without comparing the full trace body.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON fixes field order: scheduleLabel first, then events in
// whatever order they currently appear (callers needing canonical order call
// Canonicalize or CanonicalJSON first).
func (t ExecutionTrace) MarshalJSON() ([]byte, error) {
	if t.ScheduleLabel == "" {
		return nil, errors.New("scheduleLabel is required")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString("\"scheduleLabel\":")
	sl, _ := json.Marshal(t.ScheduleLabel)
	buf.Write(sl)
	buf.WriteByte(',')

	buf.WriteString("\"events\":[")
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
	buf.WriteByte(']')

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order and omits empty optional fields, so two
// events that differ only in an unset optional field serialize identically.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	if e.TaskID == "" {
		return nil, errors.New("taskId is required")
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString("\"kind\":")
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	buf.WriteString(",\"taskId\":")
	tb, _ := json.Marshal(e.TaskID)
	buf.Write(tb)

	if e.TaskLabel != "" {
		buf.WriteString(",\"taskLabel\":")
		lb, _ := json.Marshal(e.TaskLabel)
		buf.Write(lb)
	}

	if e.Reason != "" {
		buf.WriteString(",\"reason\":")
		rb, _ := json.Marshal(e.Reason)
		buf.Write(rb)
	}

	if e.CauseTaskID != "" {
		buf.WriteString(",\"causeTaskId\":")
		cb, _ := json.Marshal(e.CauseTaskID)
		buf.Write(cb)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
