package happensbefore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennostein/skdbsim/internal/happensbefore"
	"github.com/bennostein/skdbsim/internal/schedule"
	"github.com/bennostein/skdbsim/internal/task"
)

func noop(label string) *task.Task {
	return task.New(label, func(*schedule.Context) error { return nil })
}

func TestHappensBeforeNilEndpointIsNoOp(t *testing.T) {
	g := happensbefore.New()
	a := noop("a")
	g.HappensBefore(nil, a)
	g.HappensBefore(a, nil)
	assert.Equal(t, 0, g.Len())
}

func TestTopoOrderRespectsEdges(t *testing.T) {
	g := happensbefore.New()
	a, b, c := noop("a"), noop("b"), noop("c")
	g.HappensBefore(a, b)
	g.HappensBefore(b, c)

	snap := g.Snapshot()
	order, err := snap.TopoOrder()
	require.NoError(t, err)
	require.Len(t, order, 3)

	pos := make(map[int64]int)
	for i, idx := range order {
		pos[snap.TaskID(idx)] = i
	}
	assert.Less(t, pos[a.ID()], pos[b.ID()])
	assert.Less(t, pos[b.ID()], pos[c.ID()])
}

func TestTopoOrderDetectsCycle(t *testing.T) {
	g := happensbefore.New()
	a, b := noop("a"), noop("b")
	g.HappensBefore(a, b)
	g.HappensBefore(b, a)

	snap := g.Snapshot()
	_, err := snap.TopoOrder()
	require.Error(t, err)
	var cycleErr *happensbefore.ErrCycle
	require.ErrorAs(t, err, &cycleErr)
	assert.Len(t, cycleErr.Remaining, 2)
}
