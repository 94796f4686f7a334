// Package topology implements the declarative DSL for assembling a cluster
// of skdb peers, mirroring tables between them, and registering content
// checks — assembling a happens-before graph as a side effect of each call.
package topology

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bennostein/skdbsim/internal/channel"
	"github.com/bennostein/skdbsim/internal/dbproc"
	"github.com/bennostein/skdbsim/internal/expect"
	"github.com/bennostein/skdbsim/internal/happensbefore"
	"github.com/bennostein/skdbsim/internal/schedule"
	"github.com/bennostein/skdbsim/internal/task"
)

// Topology is the root of one test's cluster description: the happens-before
// graph, the peers registered so far, the mirror adjacency used for
// transitive fan-out, and the shared init composite every peer and channel
// registers into.
type Topology struct {
	adapter      *dbproc.Adapter
	bootstrapSQL string

	graph *happensbefore.Graph
	init  *task.Composite

	schema []string
	peers  []*peer // ordered; peers[0] is the convergence canonical peer

	// outgoing maps a peer to, per table, the ordered HalfStreams that
	// carry mutations away from it.
	outgoing map[*peer]map[string][]*channel.HalfStream
	// receiverOf maps a HalfStream to the peer on its receiving end.
	receiverOf map[*channel.HalfStream]*peer
	allStreams []*channel.HalfStream

	// leaves is every task currently registered with no known successor;
	// Now/State/IsSilent depend on all of them and collapse them to the
	// newly added check task, so later checks transitively depend on
	// everything before them without re-walking the whole graph.
	leaves []task.Runnable

	tempDir string

	// nextReplicationID is a monotonic counter: replication ids are small
	// integers identifying one replication hop (stringified "1", "2", ...),
	// passed verbatim to skdb's --ignore-source/--source flags for loopback
	// suppression, not UUIDs.
	nextReplicationID int
}

// New returns an empty Topology. bootstrapSQLPath, if non-empty, is read
// once and applied to every peer immediately after --init, before the
// topology's own schema.
func New(adapter *dbproc.Adapter, bootstrapSQLPath, tempDir string) (*Topology, error) {
	bootstrapSQL := ""
	if bootstrapSQLPath != "" {
		b, err := os.ReadFile(bootstrapSQLPath)
		if err != nil {
			return nil, errors.Wrap(err, "reading bootstrap SQL")
		}
		bootstrapSQL = string(b)
	}

	tp := &Topology{
		adapter:      adapter,
		bootstrapSQL: bootstrapSQL,
		graph:        happensbefore.New(),
		init:         task.NewComposite("topology-init"),
		outgoing:     make(map[*peer]map[string][]*channel.HalfStream),
		receiverOf:   make(map[*channel.HalfStream]*peer),
		tempDir:      tempDir,
	}
	tp.graph.AddTask(tp.init)
	tp.addLeaf(tp.init)
	return tp, nil
}

// Graph exposes the accumulated happens-before graph for enumeration.
func (tp *Topology) Graph() *happensbefore.Graph { return tp.graph }

// Schema appends DDL to the list applied to every peer when its init task
// runs, including peers added before this call.
func (tp *Topology) Schema(ddl string) {
	tp.schema = append(tp.schema, ddl)
}

func (tp *Topology) dbPathFor(label string) string {
	return filepath.Join(tp.tempDir, "skdbsim-"+label+"-"+uuid.NewString()+".db")
}

// newReplicationID returns the next small-integer replication id, stringified.
func (tp *Topology) newReplicationID() string {
	tp.nextReplicationID++
	return strconv.Itoa(tp.nextReplicationID)
}

func (tp *Topology) registerPeer(p *peer) {
	tp.peers = append(tp.peers, p)
	tp.outgoing[p] = make(map[string][]*channel.HalfStream)
	tp.init.Append(p.InitTask())
	p.lastTask = tp.init
}

// AddServer registers and returns a new Server peer.
func (tp *Topology) AddServer(label string) *Server {
	p := &peer{label: label, dbPath: tp.dbPathFor(label), topology: tp}
	tp.registerPeer(p)
	return &Server{peer: p}
}

// AddClient registers and returns a new Client peer.
func (tp *Topology) AddClient(label string) *Client {
	p := &peer{label: label, dbPath: tp.dbPathFor(label), topology: tp}
	tp.registerPeer(p)
	return &Client{peer: p}
}

// Mirror replicates table bidirectionally between a and b: it allocates two
// fresh replication ids, builds the two HalfStreams, wires their init tasks
// into the topology init, and registers the adjacency used by transitive
// fan-out.
func (tp *Topology) Mirror(table string, a, b Peer) {
	pa, pb := a.internalPeer(), b.internalPeer()

	aToB := channel.New(tp.adapter, table, tp.newReplicationID(), pa.dbPath, pb.dbPath)
	bToA := channel.New(tp.adapter, table, tp.newReplicationID(), pb.dbPath, pa.dbPath)

	tp.init.Append(aToB.InitTask())
	tp.init.Append(bToA.InitTask())

	tp.registerStream(pa, pb, table, aToB)
	tp.registerStream(pb, pa, table, bToA)
}

func (tp *Topology) registerStream(from, to *peer, table string, hs *channel.HalfStream) {
	tp.outgoing[from][table] = append(tp.outgoing[from][table], hs)
	tp.receiverOf[hs] = to
	tp.allStreams = append(tp.allStreams, hs)
}

// fanOut walks the mirror adjacency from origin, breadth-first, adding one
// ClockTask per reachable hop in hop order. A peer is visited at most once
// per call so a topology where mirrors form a cycle (A<->B<->C<->A) cannot
// loop forever; every visited peer's incoming hop happens-before its own
// outgoing hops.
func (tp *Topology) fanOut(origin *peer, table string, after task.Runnable) {
	type frontierItem struct {
		peer  *peer
		after task.Runnable
	}
	visited := map[*peer]bool{origin: true}
	queue := []frontierItem{{origin, after}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		streams := tp.outgoing[cur.peer][table]
		if len(streams) == 0 {
			continue
		}
		for _, hs := range streams {
			receiver := tp.receiverOf[hs]
			if visited[receiver] {
				continue
			}
			visited[receiver] = true
			tp.removeLeaf(cur.after)
			clock := hs.ClockTask()
			tp.graph.HappensBefore(cur.after, clock)
			tp.addLeaf(clock)
			queue = append(queue, frontierItem{receiver, clock})
		}
	}
}

func (tp *Topology) addLeaf(r task.Runnable) {
	tp.leaves = append(tp.leaves, r)
}

func (tp *Topology) removeLeaf(r task.Runnable) {
	for i, l := range tp.leaves {
		if l.ID() == r.ID() {
			tp.leaves = append(tp.leaves[:i], tp.leaves[i+1:]...)
			return
		}
	}
}

// addCheckEdges orders newTask after every currently registered leaf task,
// then collapses the leaf set to just newTask so later checks transitively
// depend on everything before them.
func (tp *Topology) addCheckEdges(newTask task.Runnable) {
	for _, leaf := range tp.leaves {
		tp.graph.HappensBefore(leaf, newTask)
	}
	tp.leaves = []task.Runnable{newTask}
}

// Now (alias State) runs sql against every registered peer once every
// currently-registered task has completed, and returns an Expectation the
// caller populates with content checks. Now and State are the same
// operation kept under two names for call-site readability.
func (tp *Topology) Now(sql string) *expect.Expectation {
	exp := expect.New()
	peers := tp.peers

	check := task.New("check["+sql+"]", func(ctx *schedule.Context) error {
		sch, _ := ctx.CurrentSchedule()

		results := make([]expect.PeerResult, 0, len(peers))
		for _, p := range peers {
			rows, err := tp.adapter.Query(context.Background(), p.dbPath, sql)
			if err != nil {
				return errors.Wrapf(err, "query peer %q", p.label)
			}
			results = append(results, expect.PeerResult{PeerLabel: p.label, Rows: rows})
		}
		if err := expect.VerifyConvergence(sch.String(), results); err != nil {
			return err
		}
		var canonical []expect.Row
		if len(results) > 0 {
			canonical = results[0].Rows
		}
		return exp.Verify(sch, canonical)
	})

	tp.addCheckEdges(check)
	return exp
}

// State is an alias for Now.
func (tp *Topology) State(sql string) *expect.Expectation {
	return tp.Now(sql)
}

// IsSilent registers a quiescence check: every channel buffer registered on
// the topology must be empty at the point it runs in the schedule. This is a
// best-effort check — it does not prove no task remains runnable in any
// stricter sense, matching the original model's own limitation.
func (tp *Topology) IsSilent() {
	streams := tp.allStreams
	check := task.New("is-silent", func(ctx *schedule.Context) error {
		for _, hs := range streams {
			if n := hs.BufferLen(ctx); n != 0 {
				return errors.Errorf("hop %s: expected silence, %d payload(s) buffered", hs.ReplicationID(), n)
			}
		}
		return nil
	})
	tp.addCheckEdges(check)
}

func (tp *Topology) removeDBFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing db file %s", path)
	}
	return nil
}
