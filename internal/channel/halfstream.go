// Package channel implements HalfStream, the one-directional, per-schedule
// replication conduit between a sender and a receiver peer for one mirrored
// table. All mutable state (buffer, checkpoint, subprocess sessions) lives in
// the schedule.Context keyed by the HalfStream's own identity, so the same
// HalfStream value can be safely driven by many concurrently executing
// schedules — each sees its own buffer.
package channel

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bennostein/skdbsim/internal/dbproc"
	"github.com/bennostein/skdbsim/internal/schedule"
	"github.com/bennostein/skdbsim/internal/task"
)

var nextID int64

func newID() int64 {
	nextID++
	return nextID
}

// HalfStream is the static description of one replication hop: read from
// senderDBPath's table, push to receiverDBPath's table, tagged with a
// replication id that lets skdb suppress loopback.
type HalfStream struct {
	id             int64
	adapter        *dbproc.Adapter
	table          string
	replicationID  string
	senderDBPath   string
	receiverDBPath string
}

// New constructs a HalfStream for one direction of a mirror.
func New(adapter *dbproc.Adapter, table, replicationID, senderDBPath, receiverDBPath string) *HalfStream {
	return &HalfStream{
		id:             newID(),
		adapter:        adapter,
		table:          table,
		replicationID:  replicationID,
		senderDBPath:   senderDBPath,
		receiverDBPath: receiverDBPath,
	}
}

// ReplicationID returns the id used to tag this hop's subscribe/write-csv
// calls, letting skdb suppress loopback.
func (h *HalfStream) ReplicationID() string { return h.replicationID }

type state struct {
	session      string
	since        int
	buffer       [][]byte
	writeSession *dbproc.WriteCSVSession
}

func (h *HalfStream) key(name string) schedule.Key {
	return schedule.Key{Owner: h, Name: name}
}

func (h *HalfStream) stateOf(ctx *schedule.Context) *state {
	k := h.key("state")
	v, ok := ctx.Get(k)
	if !ok {
		s := &state{}
		ctx.Set(k, s)
		return s
	}
	return v.(*state)
}

// BufferLen reports how many payloads are currently queued, for IsSilent
// quiescence checks.
func (h *HalfStream) BufferLen(ctx *schedule.Context) int {
	return len(h.stateOf(ctx).buffer)
}

// send pulls one payload from skdb's tail for this hop and appends it to the
// per-schedule buffer, advancing the checkpoint.
func (h *HalfStream) send(ctx *schedule.Context) error {
	s := h.stateOf(ctx)
	payload, err := h.adapter.Tail(context.Background(), h.senderDBPath, s.session, s.since)
	if err != nil {
		return errors.Wrapf(err, "tail hop %s", h.replicationID)
	}
	s.since = dbproc.ExtractCheckpoint(s.since, string(payload))
	s.buffer = append(s.buffer, payload)
	return nil
}

// recv pops the oldest queued payload and writes it to the receiver's
// long-lived write-csv subprocess.
func (h *HalfStream) recv(ctx *schedule.Context) error {
	s := h.stateOf(ctx)
	if len(s.buffer) == 0 {
		return errors.Errorf("hop %s: recv with empty buffer", h.replicationID)
	}
	payload := s.buffer[0]
	s.buffer = s.buffer[1:]
	if err := s.writeSession.Write(payload); err != nil {
		return errors.Wrapf(err, "write hop %s", h.replicationID)
	}
	return nil
}

func (h *HalfStream) initSend(ctx *schedule.Context) error {
	s := h.stateOf(ctx)
	session, err := h.adapter.Subscribe(context.Background(), h.senderDBPath, h.table, h.replicationID)
	if err != nil {
		return errors.Wrapf(err, "subscribe hop %s", h.replicationID)
	}
	s.session = session
	return nil
}

func (h *HalfStream) initRecv(ctx *schedule.Context) error {
	s := h.stateOf(ctx)
	ws, err := h.adapter.StartWriteCSV(context.Background(), h.receiverDBPath, h.table, h.replicationID)
	if err != nil {
		return errors.Wrapf(err, "start write-csv hop %s", h.replicationID)
	}
	s.writeSession = ws
	return nil
}

func (h *HalfStream) finaliseRecv(ctx *schedule.Context) error {
	s := h.stateOf(ctx)
	if s.writeSession == nil {
		return nil
	}
	return s.writeSession.Close()
}

// InitTask returns the Composite that must run once per schedule before any
// clock tick on this hop: subscribe on the sender, then start the receiving
// write-csv subprocess. Both halves are bundled so the DAG sees one node.
func (h *HalfStream) InitTask() *task.Composite {
	c := task.NewComposite("init[" + h.replicationID + "]")
	c.Append(task.New("subscribe["+h.replicationID+"]", h.initSend))
	c.Append(task.New("start-write-csv["+h.replicationID+"]", h.initRecv).WithFinalise(h.finaliseRecv))
	return c
}

// ClockTask returns the Composite for one replication tick on this hop: a
// tail (produce) immediately followed by a write (consume) of the oldest
// queued payload. Bundling these into one node is what keeps "send before
// receive" true in every schedule without needing a separate happens-before
// edge per tick.
func (h *HalfStream) ClockTask() *task.Composite {
	c := task.NewComposite("clock[" + h.replicationID + "]")
	c.Append(task.New("tail["+h.replicationID+"]", h.send))
	c.Append(task.New("write["+h.replicationID+"]", h.recv))
	return c
}
