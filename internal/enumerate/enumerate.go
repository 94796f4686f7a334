// Package enumerate turns a happens-before graph into one or many concrete
// Schedules: Arbitrary picks one valid order, All walks every topological
// sort, and ReservoirSampled draws a uniform-random subset of All's output
// without materializing the whole space up front.
package enumerate

import (
	"fmt"
	"math/rand"

	"github.com/bennostein/skdbsim/internal/happensbefore"
	"github.com/bennostein/skdbsim/internal/schedule"
)

// Enumerator produces Schedules from a happens-before graph.
type Enumerator interface {
	Enumerate(g *happensbefore.Graph) ([]schedule.Schedule, error)
}

// TooManySchedulesError is raised when enumeration would exceed a configured
// Limit, discovered before any Schedule executes.
type TooManySchedulesError struct {
	Limit int
}

func (e *TooManySchedulesError) Error() string {
	return fmt.Sprintf("enumeration exceeds configured limit of %d schedules", e.Limit)
}

// Arbitrary yields exactly one valid topological order, chosen
// deterministically (ascending task ID tie-break).
type Arbitrary struct{}

func (Arbitrary) Enumerate(g *happensbefore.Graph) ([]schedule.Schedule, error) {
	snap := g.Snapshot()
	order, err := snap.TopoOrder()
	if err != nil {
		return nil, err
	}
	return []schedule.Schedule{schedule.New(toTasks(g, snap, order))}, nil
}

// walkTopoSorts visits every topological sort of snap by branching on the
// ready frontier at each step, calling onComplete with each full order (as
// canonical indices, reused across calls so onComplete must copy what it
// keeps). Each recursive branch works on its own copy of the in-degree
// counts and frontier, so sibling branches never observe each other's
// mutations. Returns *happensbefore.ErrCycle if the frontier empties with
// nodes remaining, or whatever error onComplete returns (to let callers like
// All's Limit guard abort early).
func walkTopoSorts(snap *happensbefore.Snapshot, onComplete func(partial []int) error) error {
	n := snap.NumNodes()
	indeg := snap.Indegrees()
	frontier := snap.InitialFrontier()
	partial := make([]int, 0, n)

	var recurse func(indeg []int, frontier []int, partial []int) error
	recurse = func(indeg []int, frontier []int, partial []int) error {
		if len(partial) == n {
			return onComplete(partial)
		}
		if len(frontier) == 0 {
			seen := make(map[int]bool, len(partial))
			for _, i := range partial {
				seen[i] = true
			}
			var remaining []int64
			for i := 0; i < n; i++ {
				if !seen[i] {
					remaining = append(remaining, snap.TaskID(i))
				}
			}
			return &happensbefore.ErrCycle{Remaining: remaining}
		}

		for _, pick := range frontier {
			branchIndeg := make([]int, len(indeg))
			copy(branchIndeg, indeg)

			branchFrontier := make([]int, 0, len(frontier)-1)
			for _, f := range frontier {
				if f != pick {
					branchFrontier = append(branchFrontier, f)
				}
			}
			for _, m := range snap.Outgoing(pick) {
				branchIndeg[m]--
				if branchIndeg[m] == 0 {
					branchFrontier = append(branchFrontier, m)
				}
			}

			branchPartial := make([]int, len(partial), len(partial)+1)
			copy(branchPartial, partial)
			branchPartial = append(branchPartial, pick)

			if err := recurse(branchIndeg, branchFrontier, branchPartial); err != nil {
				return err
			}
		}
		return nil
	}

	return recurse(indeg, frontier, partial)
}

// All enumerates every topological order of the graph. Limit, if positive,
// aborts enumeration with a TooManySchedulesError (returning no schedules)
// as soon as the count of found orderings would exceed it; a Limit of 0
// means unbounded.
type All struct {
	Limit int
}

func (a All) Enumerate(g *happensbefore.Graph) ([]schedule.Schedule, error) {
	snap := g.Snapshot()
	var out []schedule.Schedule

	err := walkTopoSorts(snap, func(partial []int) error {
		if a.Limit > 0 && len(out)+1 > a.Limit {
			return &TooManySchedulesError{Limit: a.Limit}
		}
		full := make([]int, len(partial))
		copy(full, partial)
		out = append(out, schedule.New(toTasks(g, snap, full)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SampleReport describes how a ReservoirSampled enumeration related to the
// full space it drew from.
type SampleReport struct {
	TotalSchedules   int
	SampledSchedules int
}

// Fraction returns SampledSchedules/TotalSchedules, or 0 if TotalSchedules is 0.
func (r SampleReport) Fraction() float64 {
	if r.TotalSchedules == 0 {
		return 0
	}
	return float64(r.SampledSchedules) / float64(r.TotalSchedules)
}

// ReservoirSampled keeps a uniform-random subset of size N of All's output
// via single-pass reservoir sampling, never materializing the full space.
// Randomness is confined to which already-enumerated schedules are kept; the
// ordering within any one kept schedule remains a real topological sort,
// never randomized internally.
type ReservoirSampled struct {
	N      int
	Rand   *rand.Rand // optional; defaults to a fixed seed if nil
	Report *SampleReport
}

func (r ReservoirSampled) Enumerate(g *happensbefore.Graph) ([]schedule.Schedule, error) {
	snap := g.Snapshot()

	rng := r.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	reservoir := make([]schedule.Schedule, 0, r.N)
	total := 0

	err := walkTopoSorts(snap, func(partial []int) error {
		full := make([]int, len(partial))
		copy(full, partial)
		sch := schedule.New(toTasks(g, snap, full))

		total++
		if len(reservoir) < r.N {
			reservoir = append(reservoir, sch)
		} else if j := rng.Intn(total); j < r.N {
			reservoir[j] = sch
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if r.Report != nil {
		r.Report.TotalSchedules = total
		r.Report.SampledSchedules = len(reservoir)
	}
	return reservoir, nil
}

func toTasks(g *happensbefore.Graph, snap *happensbefore.Snapshot, order []int) []schedule.Runnable {
	out := make([]schedule.Runnable, len(order))
	for i, idx := range order {
		out[i] = g.Task(snap.TaskID(idx))
	}
	return out
}
