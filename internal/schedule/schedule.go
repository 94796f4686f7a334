package schedule

import "strings"

// Runnable is the minimal shape a scheduled unit of work must have. It is
// declared here, rather than imported from the task package, to avoid an
// import cycle: task.Task and task.Composite satisfy this interface
// structurally without either package importing the other.
type Runnable interface {
	ID() int64
	Label() string
	Run(ctx *Context) error
	Finalise(ctx *Context) error
}

// Schedule is one concrete, ordered interleaving of a happens-before graph:
// the sequence of tasks to run, in the order to run them.
type Schedule struct {
	Tasks []Runnable
}

// New wraps an ordered task slice as a Schedule.
func New(tasks []Runnable) Schedule {
	return Schedule{Tasks: tasks}
}

// String renders a human-readable form of the schedule, used in failure
// messages and the format Match clauses compare against.
func (s Schedule) String() string {
	labels := make([]string, len(s.Tasks))
	for i, t := range s.Tasks {
		labels[i] = t.Label()
	}
	return strings.Join(labels, " -> ")
}

// IndexOf returns the position of t in the schedule, or -1 if absent.
func (s Schedule) IndexOf(t Runnable) int {
	for i, c := range s.Tasks {
		if c.ID() == t.ID() {
			return i
		}
	}
	return -1
}
