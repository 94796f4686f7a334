// Package runexec runs enumerated Schedules: bounded concurrency across
// Schedules, strict sequential execution within one Schedule, and guaranteed
// reverse-order finalisation on every exit path.
package runexec

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/bennostein/skdbsim/internal/schedule"
	"github.com/bennostein/skdbsim/internal/trace"
)

// DefaultBatchSize is the default bound on concurrently executing Schedules,
// matching the batch size the replication model used for asyncio.gather
// fan-out.
const DefaultBatchSize = 16

// Executor runs a set of Schedules with bounded fan-out.
type Executor struct {
	// BatchSize bounds how many Schedules run concurrently. Zero or
	// negative falls back to DefaultBatchSize.
	BatchSize int

	// Logger receives structured diagnostics; a nil Logger uses slog.Default().
	Logger *slog.Logger
}

// ScheduleFailure pairs a failing Schedule with the error it raised, so a
// caller can report which interleaving diverged.
type ScheduleFailure struct {
	Schedule schedule.Schedule
	Err      error
	Trace    trace.ExecutionTrace
}

func (f *ScheduleFailure) Error() string {
	return errors.Wrapf(f.Err, "schedule %q failed", f.Schedule.String()).Error()
}

func (f *ScheduleFailure) Unwrap() error { return f.Err }

// Run executes every schedule in schedules, dispatching in batches bounded by
// BatchSize. Within a batch, all dispatched Schedules are allowed to finish
// (success or failure) before the next batch starts; the executor does not
// start a new batch once any Schedule in a completed batch has failed, and
// returns the first failure observed (by schedule index) as a
// *ScheduleFailure.
//
// Every task that reached Run within a given Schedule is Finalised in
// reverse schedule order, regardless of whether the Schedule's Run phase
// ultimately failed. A Finalise failure is logged and never replaces or
// masks the Schedule's original Run failure.
func (e *Executor) Run(ctx context.Context, schedules []schedule.Schedule) error {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	sem := semaphore.NewWeighted(int64(batchSize))

	for start := 0; start < len(schedules); start += batchSize {
		end := start + batchSize
		if end > len(schedules) {
			end = len(schedules)
		}
		batch := schedules[start:end]

		var wg sync.WaitGroup
		var mu sync.Mutex
		var firstFailure *ScheduleFailure
		firstIdx := -1

		for i, sch := range batch {
			i, sch := i, sch
			if err := sem.Acquire(ctx, 1); err != nil {
				return errors.Wrap(err, "acquiring schedule slot")
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)

				rec := trace.NewRecorder()
				if err := runOne(ctx, logger, sch, rec); err != nil {
					mu.Lock()
					if firstFailure == nil || i < firstIdx {
						firstIdx = i
						firstFailure = &ScheduleFailure{
							Schedule: sch,
							Err:      err,
							Trace:    rec.Trace(sch.String()),
						}
					}
					mu.Unlock()
				}
			}()
		}

		wg.Wait()

		if firstFailure != nil {
			return firstFailure
		}
	}

	return nil
}

// runOne executes a single Schedule sequentially and guarantees that every
// task that ran is finalised in reverse order, even on failure or panic. Every
// task-level event is recorded into rec so a failing Schedule can carry a
// trace of exactly what ran, in what order, and what failed.
func runOne(ctx context.Context, logger *slog.Logger, sch schedule.Schedule, rec *trace.Recorder) (retErr error) {
	sctx := schedule.NewContext()
	sctx.SetSchedule(sch)
	ran := make([]int, 0, len(sch.Tasks))

	defer func() {
		if r := recover(); r != nil {
			if retErr == nil {
				retErr = errors.Errorf("panic running schedule: %v", r)
			}
		}
		for i := len(ran) - 1; i >= 0; i-- {
			t := sch.Tasks[ran[i]]
			if err := t.Finalise(sctx); err != nil {
				logger.Error("finalise failed",
					"task", t.Label(),
					"schedule", sch.String(),
					"error", err.Error())
			}
		}
	}()

	for i, t := range sch.Tasks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		taskID := fmt.Sprintf("%d", t.ID())
		trace.SafeRecord(rec, trace.TraceEvent{Kind: trace.EventTaskStarted, TaskID: taskID, TaskLabel: t.Label()})
		ran = append(ran, i)
		if err := t.Run(sctx); err != nil {
			trace.SafeRecord(rec, trace.TraceEvent{Kind: trace.EventTaskFailed, TaskID: taskID, TaskLabel: t.Label(), Reason: err.Error()})
			for j := i + 1; j < len(sch.Tasks); j++ {
				skipped := sch.Tasks[j]
				trace.SafeRecord(rec, trace.TraceEvent{
					Kind:        trace.EventTaskSkipped,
					TaskID:      fmt.Sprintf("%d", skipped.ID()),
					TaskLabel:   skipped.Label(),
					CauseTaskID: taskID,
					Reason:      "UpstreamFailed",
				})
			}
			return errors.Wrapf(err, "task %q", t.Label())
		}
		trace.SafeRecord(rec, trace.TraceEvent{Kind: trace.EventTaskCompleted, TaskID: taskID, TaskLabel: t.Label()})
	}
	return nil
}
