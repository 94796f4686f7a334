package task

import (
	"github.com/pkg/errors"

	"github.com/bennostein/skdbsim/internal/schedule"
)

// Composite is an ordered sequence of child Runnables presented to the
// happens-before graph as a single node. Running a Composite runs its
// children in declared order; finalising runs them in reverse order,
// recursively through any nested Composite. This is how a "channel init" or
// "one replication hop" stays atomic in the DAG instead of letting the
// enumerator interleave its halves.
type Composite struct {
	id       int64
	label    string
	children []Runnable
}

// NewComposite constructs an empty Composite; use Append to add children.
func NewComposite(label string) *Composite {
	return &Composite{id: newID(), label: label}
}

// Append adds a child to the end of the composite's run order.
func (c *Composite) Append(child Runnable) *Composite {
	c.children = append(c.children, child)
	return c
}

func (c *Composite) ID() int64     { return c.id }
func (c *Composite) Label() string { return c.label }

// Children returns the composite's child Runnables in run order.
func (c *Composite) Children() []Runnable {
	return c.children
}

func (c *Composite) Run(ctx *schedule.Context) error {
	for _, child := range c.children {
		if err := child.Run(ctx); err != nil {
			return errors.Wrapf(err, "composite %q: child %q", c.label, child.Label())
		}
	}
	return nil
}

// Finalise runs each child's Finalise in reverse order. It does not stop at
// the first failure: every child is finalised, and the first error
// encountered is returned (wrapped with context), so one stuck child never
// leaks the resources held by its siblings.
func (c *Composite) Finalise(ctx *schedule.Context) error {
	var firstErr error
	for i := len(c.children) - 1; i >= 0; i-- {
		child := c.children[i]
		if err := child.Finalise(ctx); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "composite %q: child %q", c.label, child.Label())
		}
	}
	return firstErr
}
