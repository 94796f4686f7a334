// Package schedule holds the mutable state that exists for the lifetime of a
// single enumerated interleaving: the per-run Context and the ordered list of
// tasks that make up one Schedule.
package schedule

import "fmt"

// Key identifies one slot of per-run local state. Keys are constructed from
// entity identity (pointers), never from value equality, so two distinct
// peers or channels never collide even if they happen to share a label.
type Key struct {
	Owner any // typically a *topology.peer or *channel.HalfStream, compared by identity
	Name  string
}

func (k Key) String() string {
	return fmt.Sprintf("%p/%s", k.Owner, k.Name)
}

// Context is the per-schedule-run local state map. It is created fresh when a
// Schedule begins executing and discarded once the run finishes; it is never
// shared across concurrently executing Schedules, which is what makes
// parallel schedule execution safe despite mutating real skdb processes.
type Context struct {
	values map[Key]any
}

// NewContext returns an empty Context ready for one schedule run.
func NewContext() *Context {
	return &Context{values: make(map[Key]any)}
}

// Get returns the value stored under key, and whether it was present.
func (c *Context) Get(key Key) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.values[key]
	return v, ok
}

// Set stores value under key, overwriting any previous value.
func (c *Context) Set(key Key, value any) {
	if c == nil {
		return
	}
	c.values[key] = value
}

// Delete removes any value stored under key. It is a no-op if absent.
func (c *Context) Delete(key Key) {
	if c == nil {
		return
	}
	delete(c.values, key)
}

// currentScheduleKeyType is a private sentinel so the current-schedule slot
// can never collide with a caller-constructed Key.
type currentScheduleKeyType struct{}

var currentScheduleKey = Key{Owner: currentScheduleKeyType{}, Name: "current-schedule"}

// SetSchedule records which Schedule is being run through this Context. The
// executor calls this once per run, before the first task executes, so any
// task (notably a topology content check) can look up which interleaving it
// is running under.
func (c *Context) SetSchedule(s Schedule) {
	c.Set(currentScheduleKey, s)
}

// CurrentSchedule returns the Schedule set by SetSchedule, if any.
func (c *Context) CurrentSchedule() (Schedule, bool) {
	v, ok := c.Get(currentScheduleKey)
	if !ok {
		return Schedule{}, false
	}
	return v.(Schedule), true
}
