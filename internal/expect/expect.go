// Package expect implements the two-phase result verification used by a
// topology's Now/State checks: first that every peer converged to the same
// result set, then that the converged result set matches the configured
// expectations.
package expect

import (
	"fmt"
	"reflect"

	"github.com/bennostein/skdbsim/internal/schedule"
)

// Row is one decoded result row, as returned by dbproc.Query.
type Row = map[string]any

// MismatchError reports a convergence or content verification failure. It
// names the peers and schedule involved so a failing test can point at
// exactly which interleaving diverged.
type MismatchError struct {
	Schedule string
	Detail   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("expectation mismatch in schedule %q: %s", e.Schedule, e.Detail)
}

// PeerResult pairs a peer's label with the rows it returned for one check.
type PeerResult struct {
	PeerLabel string
	Rows      []Row
}

// VerifyConvergence checks that every peer's rows equal the first peer's
// rows. The first peer is always results[0] — an ordered slice position, not
// a map lookup — so this is independent of Go's randomized map iteration
// order.
func VerifyConvergence(scheduleLabel string, results []PeerResult) error {
	if len(results) == 0 {
		return nil
	}
	canonical := results[0]
	for _, r := range results[1:] {
		if !rowsEqual(canonical.Rows, r.Rows) {
			return &MismatchError{
				Schedule: scheduleLabel,
				Detail: fmt.Sprintf("peer %q diverged from peer %q: %v vs %v",
					r.PeerLabel, canonical.PeerLabel, r.Rows, canonical.Rows),
			}
		}
	}
	return nil
}

func rowsEqual(a, b []Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// check is one content predicate evaluated against the canonical (post-
// convergence) result set.
type check interface {
	verify(sch schedule.Schedule, rows []Row) error
}

// Expectation is an ordered collection of content checks, populated by a
// topology's Now/State call and evaluated once convergence has been
// confirmed.
type Expectation struct {
	checks []check
}

// New returns an empty Expectation.
func New() *Expectation {
	return &Expectation{}
}

// Equals requires the canonical result set to equal rows exactly, in order.
func (e *Expectation) Equals(rows []Row) *Expectation {
	e.checks = append(e.checks, equalsCheck{rows: rows})
	return e
}

// IsOneOf requires the canonical result set to equal one of candidates, or
// (if allowEmpty) to be empty.
func (e *Expectation) IsOneOf(candidates [][]Row, allowEmpty bool) *Expectation {
	e.checks = append(e.checks, isOneOfCheck{candidates: candidates, allowEmpty: allowEmpty})
	return e
}

// Match starts a schedule-dependent check: the first clause whose predicate
// matches the schedule under evaluation supplies the expected rows.
func (e *Expectation) Match() *MatchBuilder {
	return &MatchBuilder{owner: e}
}

// Verify runs every configured check against the canonical result set for
// the given schedule.
func (e *Expectation) Verify(sch schedule.Schedule, rows []Row) error {
	for _, c := range e.checks {
		if err := c.verify(sch, rows); err != nil {
			return err
		}
	}
	return nil
}

type equalsCheck struct {
	rows []Row
}

func (c equalsCheck) verify(sch schedule.Schedule, rows []Row) error {
	if !rowsEqual(c.rows, rows) {
		return &MismatchError{
			Schedule: sch.String(),
			Detail:   fmt.Sprintf("expected %v, got %v", c.rows, rows),
		}
	}
	return nil
}

type isOneOfCheck struct {
	candidates [][]Row
	allowEmpty bool
}

func (c isOneOfCheck) verify(sch schedule.Schedule, rows []Row) error {
	if c.allowEmpty && len(rows) == 0 {
		return nil
	}
	for _, cand := range c.candidates {
		if rowsEqual(cand, rows) {
			return nil
		}
	}
	return &MismatchError{
		Schedule: sch.String(),
		Detail:   fmt.Sprintf("result %v matched none of %v (allowEmpty=%v)", rows, c.candidates, c.allowEmpty),
	}
}

// clause is one (predicate, expected rows) pair in a Match chain.
type clause struct {
	predicate func(schedule.Schedule) bool
	rows      []Row
}

type matchCheck struct {
	clauses []clause
	elze    []Row
	hasElze bool
}

func (c matchCheck) verify(sch schedule.Schedule, rows []Row) error {
	for _, cl := range c.clauses {
		if cl.predicate(sch) {
			if !rowsEqual(cl.rows, rows) {
				return &MismatchError{
					Schedule: sch.String(),
					Detail:   fmt.Sprintf("matched clause expected %v, got %v", cl.rows, rows),
				}
			}
			return nil
		}
	}
	if c.hasElze {
		if !rowsEqual(c.elze, rows) {
			return &MismatchError{
				Schedule: sch.String(),
				Detail:   fmt.Sprintf("elze expected %v, got %v", c.elze, rows),
			}
		}
		return nil
	}
	return &MismatchError{
		Schedule: sch.String(),
		Detail:   "no match clause applied and no elze() fallback configured",
	}
}

// MatchBuilder accumulates clauses for one Match check.
type MatchBuilder struct {
	owner   *Expectation
	clauses []clause
}

// Clause adds one (predicate, expected rows) branch. The first clause whose
// predicate returns true when evaluated against the running schedule wins.
func (m *MatchBuilder) Clause(predicate func(schedule.Schedule) bool, rows []Row) *MatchBuilder {
	m.clauses = append(m.clauses, clause{predicate: predicate, rows: rows})
	return m
}

// Elze finalises the Match check with a fallback expectation used when no
// clause's predicate matched, and returns the owning Expectation for further
// chaining.
func (m *MatchBuilder) Elze(rows []Row) *Expectation {
	m.owner.checks = append(m.owner.checks, matchCheck{clauses: m.clauses, elze: rows, hasElze: true})
	return m.owner
}
