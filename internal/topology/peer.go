package topology

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/bennostein/skdbsim/internal/schedule"
	"github.com/bennostein/skdbsim/internal/task"
)

// Peer is a database instance participating in a topology. Server and Client
// are its only implementations: behaviorally identical today, kept as
// distinct types so future policy (auth, direction restrictions) has
// somewhere to attach without a breaking change.
type Peer interface {
	Label() string
	DBPath() string
	internalPeer() *peer
}

// peer is the shared implementation behind Server and Client.
type peer struct {
	label    string
	dbPath   string
	topology *Topology
	lastTask task.Runnable
}

func (p *peer) Label() string  { return p.label }
func (p *peer) DBPath() string { return p.dbPath }

// InitTask returns the Composite that creates this peer's database file and
// applies the bootstrap schema followed by the topology's user schema. Its
// finalise removes the database file.
func (p *peer) InitTask() *task.Composite {
	tp := p.topology
	c := task.NewComposite("init-peer[" + p.label + "]")
	c.Append(task.New("create-db["+p.label+"]", func(*schedule.Context) error {
		return tp.adapter.Init(context.Background(), p.dbPath)
	}).WithFinalise(func(*schedule.Context) error {
		return tp.removeDBFile(p.dbPath)
	}))

	if tp.bootstrapSQL != "" {
		c.Append(task.New("bootstrap["+p.label+"]", func(*schedule.Context) error {
			return tp.adapter.ApplySQL(context.Background(), p.dbPath, tp.bootstrapSQL)
		}))
	}
	c.Append(task.New("schema["+p.label+"]", func(*schedule.Context) error {
		if len(tp.schema) == 0 {
			return nil
		}
		ddl := strings.Join(tp.schema, ";\n")
		return tp.adapter.ApplySQL(context.Background(), p.dbPath, ddl)
	}))
	return c
}

// InsertInto appends a DML task ordered after this peer's prior operation,
// then fans out a replication step to every peer transitively reachable via
// mirrors of table, in hop order.
func (p *peer) InsertInto(table string, row map[string]any) {
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", table, columnList(row), valueList(row))
	p.mutate(table, "insert", sql)
}

// DeleteFromWhere appends a DELETE task and fans it out the same way
// InsertInto does. whereClause is a raw SQL boolean expression (e.g.
// "id = 0"), not a structured predicate — a deliberate simplification since
// the fan-out/ordering logic does not need to inspect predicate content.
func (p *peer) DeleteFromWhere(table, whereClause string) {
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s;", table, whereClause)
	p.mutate(table, "delete", sql)
}

func (p *peer) mutate(table, verb, sql string) {
	tp := p.topology
	dml := task.New(fmt.Sprintf("%s[%s]@%s", verb, table, p.label), func(*schedule.Context) error {
		if err := tp.adapter.ApplySQL(context.Background(), p.dbPath, sql); err != nil {
			return errors.Wrapf(err, "%s into %s on %s", verb, table, p.label)
		}
		return nil
	})
	tp.graph.HappensBefore(p.lastTask, dml)
	tp.removeLeaf(p.lastTask)
	p.lastTask = dml
	tp.addLeaf(dml)
	tp.fanOut(p, table, dml)
}

// Query runs a read-only SQL statement against this peer and returns the
// decoded rows.
func (p *peer) Query(ctx context.Context, sql string) ([]map[string]any, error) {
	return p.topology.adapter.Query(ctx, p.dbPath, sql)
}

func (p *peer) internalPeer() *peer { return p }

// Server is the server-role peer. It behaves exactly like Client; the
// distinction exists only at the type level.
type Server struct{ *peer }

// Client is a peer that typically receives replication from a Server (same
// reservation as Server).
type Client struct{ *peer }

func columnList(row map[string]any) string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return strings.Join(cols, ", ")
}

func valueList(row map[string]any) string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	vals := make([]string, len(cols))
	for i, k := range cols {
		vals[i] = serialise(row[k])
	}
	return strings.Join(vals, ", ")
}

// serialise renders a Go value as a SQL literal. Strings are single-quoted
// without escaping embedded quotes — a known limitation carried forward
// rather than patched with ad hoc escaping the original system never
// specified.
func serialise(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + t + "'"
	default:
		return fmt.Sprintf("%v", t)
	}
}
