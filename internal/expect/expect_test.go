package expect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennostein/skdbsim/internal/expect"
	"github.com/bennostein/skdbsim/internal/schedule"
	"github.com/bennostein/skdbsim/internal/task"
)

func dummySchedule() schedule.Schedule {
	return schedule.New([]schedule.Runnable{task.New("t", nil)})
}

func TestVerifyConvergencePassesWhenEqual(t *testing.T) {
	results := []expect.PeerResult{
		{PeerLabel: "s", Rows: []expect.Row{{"id": 0}}},
		{PeerLabel: "c1", Rows: []expect.Row{{"id": 0}}},
	}
	assert.NoError(t, expect.VerifyConvergence("sched", results))
}

func TestVerifyConvergenceFailsAndNamesBothPeers(t *testing.T) {
	results := []expect.PeerResult{
		{PeerLabel: "s", Rows: []expect.Row{{"id": 0}}},
		{PeerLabel: "c1", Rows: []expect.Row{}},
	}
	err := expect.VerifyConvergence("sched", results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s")
	assert.Contains(t, err.Error(), "c1")
}

func TestEqualsCheck(t *testing.T) {
	e := expect.New().Equals([]expect.Row{{"id": 0, "note": "foo"}})
	require.NoError(t, e.Verify(dummySchedule(), []expect.Row{{"id": 0, "note": "foo"}}))
	require.Error(t, e.Verify(dummySchedule(), []expect.Row{{"id": 1}}))
}

func TestIsOneOfAllowsEmpty(t *testing.T) {
	e := expect.New().IsOneOf([][]expect.Row{{{"id": 0}}}, true)
	require.NoError(t, e.Verify(dummySchedule(), nil))
	require.NoError(t, e.Verify(dummySchedule(), []expect.Row{{"id": 0}}))
	require.Error(t, e.Verify(dummySchedule(), []expect.Row{{"id": 1}}))
}

func TestMatchUsesFirstMatchingClauseElseElze(t *testing.T) {
	e := expect.New().Match().
		Clause(func(schedule.Schedule) bool { return false }, []expect.Row{{"id": 1}}).
		Clause(func(schedule.Schedule) bool { return true }, []expect.Row{{"id": 2}}).
		Elze([]expect.Row{{"id": 3}})

	require.NoError(t, e.Verify(dummySchedule(), []expect.Row{{"id": 2}}))
	require.Error(t, e.Verify(dummySchedule(), []expect.Row{{"id": 3}}))
}

func TestMatchFallsBackToElzeWhenNoClauseMatches(t *testing.T) {
	e := expect.New().Match().
		Clause(func(schedule.Schedule) bool { return false }, []expect.Row{{"id": 1}}).
		Elze([]expect.Row{{"id": 3}})

	require.NoError(t, e.Verify(dummySchedule(), []expect.Row{{"id": 3}}))
}
