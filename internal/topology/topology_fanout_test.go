package topology_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFanOutReachesEveryPeerTransitivelyThroughAChainOfMirrors exercises the
// 3-peer chain scenario: A mirrors with B, B mirrors with C, but A and C are
// never mirrored directly. A mutation on A must still fan out to C through B,
// in hop order, rather than stopping at the directly mirrored peer.
func TestFanOutReachesEveryPeerTransitivelyThroughAChainOfMirrors(t *testing.T) {
	tp := newTestTopology(t)
	a := tp.AddServer("a")
	b := tp.AddClient("b")
	c := tp.AddClient("c")

	tp.Mirror("widgets", a, b)
	tp.Mirror("widgets", b, c)

	before := tp.Graph().Len()
	a.InsertInto("widgets", map[string]any{"id": 1})

	// One DML node, plus one clock hop A->B, plus one clock hop B->C.
	assert.Equal(t, before+3, tp.Graph().Len())

	labels := labelsInTopoOrder(t, tp)
	dmlIdx := indexOfLabel(t, labels, "insert[widgets]@a")

	var clockIdxs []int
	for i, l := range labels {
		if len(l) > 6 && l[:6] == "clock[" {
			clockIdxs = append(clockIdxs, i)
		}
	}
	require.Len(t, clockIdxs, 2, "expected two replication hops (A->B, B->C): %v", labels)
	for _, ci := range clockIdxs {
		assert.Less(t, dmlIdx, ci, "every replication hop must happen after the originating insert")
	}
	// The two hops themselves must be orderable one after the other since the
	// second hop (B->C) happens-before-chains off the first hop's clock task.
	assert.NotEqual(t, clockIdxs[0], clockIdxs[1])
}

// TestFanOutVisitsEachPeerAtMostOnceOnAMirrorCycle guards against an
// infinite loop when mirrors form a cycle (A<->B, B<->C, C<->A): fan-out from
// any one peer must terminate and touch each other peer exactly once.
func TestFanOutVisitsEachPeerAtMostOnceOnAMirrorCycle(t *testing.T) {
	tp := newTestTopology(t)
	a := tp.AddServer("a")
	b := tp.AddClient("b")
	c := tp.AddClient("c")

	tp.Mirror("widgets", a, b)
	tp.Mirror("widgets", b, c)
	tp.Mirror("widgets", c, a)

	before := tp.Graph().Len()
	a.InsertInto("widgets", map[string]any{"id": 1})

	// One DML node, plus exactly one clock hop reaching b and one reaching c
	// (never revisiting a, and never double-visiting b or c).
	assert.Equal(t, before+3, tp.Graph().Len())
}

func indexOfLabel(t *testing.T, labels []string, want string) int {
	t.Helper()
	for i, l := range labels {
		if l == want {
			return i
		}
	}
	t.Fatalf("label %q not found in %v", want, labels)
	return -1
}
