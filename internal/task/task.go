// Package task defines the unit of scheduled work: a Task with a run phase
// and a finalise (teardown) phase, plus Composite, which groups a sequence of
// child tasks so the happens-before graph sees a single node where
// interleaving the parts would otherwise be meaningless (or explosive).
package task

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/bennostein/skdbsim/internal/schedule"
)

// RunFunc performs the work phase of a Task.
type RunFunc func(ctx *schedule.Context) error

// FinaliseFunc performs the teardown phase of a Task. A nil FinaliseFunc is
// equivalent to a no-op.
type FinaliseFunc func(ctx *schedule.Context) error

var nextID int64

func newID() int64 {
	return atomic.AddInt64(&nextID, 1)
}

// Runnable is anything schedulable: a leaf Task or a Composite.
//
// Identity, not label, decides equality: two Runnables are the same task iff
// ID() returns the same value. Labels exist purely for diagnostics and trace
// output.
type Runnable interface {
	ID() int64
	Label() string
	Run(ctx *schedule.Context) error
	Finalise(ctx *schedule.Context) error
}

// Task is a leaf unit of work.
type Task struct {
	id       int64
	label    string
	run      RunFunc
	finalise FinaliseFunc
}

// New constructs a Task with the given diagnostic label and run phase. The
// finalise phase defaults to a no-op; use WithFinalise to set one.
func New(label string, run RunFunc) *Task {
	return &Task{id: newID(), label: label, run: run}
}

// WithFinalise attaches a finalise phase and returns the same Task, for
// construction-site chaining.
func (t *Task) WithFinalise(f FinaliseFunc) *Task {
	t.finalise = f
	return t
}

func (t *Task) ID() int64    { return t.id }
func (t *Task) Label() string { return t.label }

func (t *Task) Run(ctx *schedule.Context) error {
	if t.run == nil {
		return nil
	}
	return t.run(ctx)
}

func (t *Task) Finalise(ctx *schedule.Context) error {
	if t.finalise == nil {
		return nil
	}
	if err := t.finalise(ctx); err != nil {
		return errors.Wrapf(err, "finalise task %q", t.label)
	}
	return nil
}
