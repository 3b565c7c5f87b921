package kernel_test

import (
	"context"
	"testing"

	"github.com/loomkit/loom/kernel"
	"github.com/loomkit/loom/store"
	"github.com/stretchr/testify/require"
)

// makePath builds a directed path over payloads with the given edge labels
// (len(labels) == len(payloads)-1).
func makePath(t *testing.T, payloads []int, labels []int) *store.Graph[int, int] {
	t.Helper()
	g, err := store.New(intCfgI())
	require.NoError(t, err)
	ids := make([]store.VertexID, len(payloads))
	for i, p := range payloads {
		v, _ := g.Intern(p)
		ids[i] = v.ID()
	}
	for i, l := range labels {
		_, err := g.AddEdge(ids[i], ids[i+1], l)
		require.NoError(t, err)
	}
	return g
}

// makeCycle builds a directed cycle over payloads, every edge labeled label.
// It dedups edges by (label, target): compose's Fix=true loop over a cycle
// keeps rediscovering the same bypass from longer and longer chains of
// two-hop pairs, and without dedup every one of those rediscoveries would
// add another parallel edge instead of hitting ErrDuplicateEdgeKey, so the
// fixed point would never actually fix.
func makeCycle(t *testing.T, payloads []int, label int) *store.Graph[int, int] {
	t.Helper()
	g, err := store.New(store.Config[int, int]{
		VertexHash:  func(v int) uint64 { return uint64(v) },
		VertexEqual: func(a, b int) bool { return a == b },
		EdgeHash:    func(l int) uint64 { return uint64(l) },
		EdgeEqual:   func(a, b int) bool { return a == b },
	})
	require.NoError(t, err)
	ids := make([]store.VertexID, len(payloads))
	for i, p := range payloads {
		v, _ := g.Intern(p)
		ids[i] = v.ID()
	}
	for i := range payloads {
		_, err := g.AddEdge(ids[i], ids[(i+1)%len(payloads)], label)
		require.NoError(t, err)
	}
	return g
}

func TestComposeAddsBypassEdge(t *testing.T) {
	// path: 1 -> 2 -> 3, both labeled 1; compose should add a 1 -> 3 bypass
	// labeled with the sum of the two hops.
	g := makePath(t, []int{1, 2, 3}, []int{1, 1})

	kind, err := kernel.Compose(context.Background(), g, kernel.ComposeBundle[int, int]{
		QPred: func(ctx context.Context, vProp, l1, wProp, l2 int) (bool, error) { return true, nil },
		QOp:   func(ctx context.Context, vProp, l1, wProp, l2 int) (int, error) { return l1 + l2, nil },
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 0, int(kind))
	require.Equal(t, 3, g.EdgeCount(0)) // original 2 + 1 bypass
}

func TestComposeFixPointConverges(t *testing.T) {
	// a 3-cycle folds back to self-loops once every two-hop pair is composed
	// with Fix=true, and a further round adds nothing new.
	g := makeCycle(t, []int{1, 2, 3}, 1)

	kind, err := kernel.Compose(context.Background(), g, kernel.ComposeBundle[int, int]{
		QPred: func(ctx context.Context, vProp, l1, wProp, l2 int) (bool, error) { return l1 == l2, nil },
		QOp:   func(ctx context.Context, vProp, l1, wProp, l2 int) (int, error) { return l1, nil },
		Fix:   true,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 0, int(kind))
	// every vertex now has a self-loop in addition to its original forward edge
	for _, id := range g.Vertices() {
		v := g.Vertex(id)
		var sawSelfLoop bool
		for _, e := range v.OutEdges() {
			if e.Target == id {
				sawSelfLoop = true
			}
		}
		require.True(t, sawSelfLoop, "vertex %d should have gained a self-loop", id)
	}
}
