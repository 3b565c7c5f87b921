package store_test

import (
	"errors"
	"testing"

	"github.com/loomkit/loom/store"
	"github.com/stretchr/testify/require"
)

// diamond builds 1 -> 2, 1 -> 3, 2 -> 4, 3 -> 4 and returns the graph
// plus the four VertexIDs.
func diamond(t *testing.T) (*store.Graph[int, string], []store.VertexID) {
	t.Helper()
	g, err := store.New(intCfg())
	require.NoError(t, err)
	ids := make([]store.VertexID, 4)
	for i := 0; i < 4; i++ {
		v, _ := g.Intern(i + 1)
		ids[i] = v.ID()
	}
	for _, pair := range [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}} {
		_, err := g.AddEdge(ids[pair[0]], ids[pair[1]], "e")
		require.NoError(t, err)
	}
	g.SetRoot(ids[0])
	return g, ids
}

func TestCloneIdentityPreservesStructure(t *testing.T) {
	g, ids := diamond(t)
	out, err := store.Clone(g, intCfg(), nil, nil)
	require.NoError(t, err)

	require.Equal(t, len(g.Vertices()), len(out.Vertices()))
	require.Equal(t, g.EdgeCount(0), out.EdgeCount(0))
	require.Equal(t, g.Root(), out.Root())
	for _, id := range ids {
		require.Equal(t, g.Vertex(id).Payload(), out.Vertex(id).Payload())
		require.Equal(t, g.Vertex(id).OutDegree(), out.Vertex(id).OutDegree())
	}

	// no aliasing: mutating the source must not touch the clone
	require.NoError(t, g.RemoveVertex(ids[0]))
	require.Equal(t, 4, len(out.Vertices()))
	require.Equal(t, 4, out.EdgeCount(0))
}

func TestCloneMapsPayloadsAndPropagatesErrors(t *testing.T) {
	g, ids := diamond(t)
	out, err := store.Clone(g, intCfg(),
		func(_ store.VertexID, v int) (int, error) { return v * 10, nil },
		func(_ store.EdgeID, l string) (string, error) { return l + l, nil })
	require.NoError(t, err)
	require.Equal(t, 10, out.Vertex(ids[0]).Payload())
	require.Equal(t, "ee", out.Vertex(ids[0]).OutEdges()[0].Label)

	boom := errors.New("boom")
	_, err = store.Clone(g, intCfg(),
		func(store.VertexID, int) (int, error) { return 0, boom }, nil)
	require.ErrorIs(t, err, boom)
}

func TestInducedSubgraphKeepsOnlyInternalEdges(t *testing.T) {
	g, ids := diamond(t)
	keep := map[store.VertexID]bool{ids[0]: true, ids[1]: true, ids[3]: true}
	out, err := store.InducedSubgraph(g, intCfg(), keep, nil)
	require.NoError(t, err)

	require.Equal(t, 3, len(out.Vertices()))
	// 1 -> 2 and 2 -> 4 survive; both edges through the dropped vertex 3 go
	require.Equal(t, 2, out.EdgeCount(0))
	require.Equal(t, ids[0], out.Root(), "kept root carries over")
	require.Nil(t, out.Vertex(ids[2]))
}

func TestInducedSubgraphEdgeFilter(t *testing.T) {
	g, ids := diamond(t)
	keep := map[store.VertexID]bool{ids[0]: true, ids[1]: true, ids[2]: true, ids[3]: true}
	out, err := store.InducedSubgraph(g, intCfg(), keep, func(e *store.Edge[string]) bool {
		return e.Source != ids[0]
	})
	require.NoError(t, err)
	require.Equal(t, 4, len(out.Vertices()))
	require.Equal(t, 2, out.EdgeCount(0), "both edges out of the root are rejected")
}

func TestViewsAdvanceIDCounterPastKeptIDs(t *testing.T) {
	g, ids := diamond(t)
	maxID := ids[0]
	for _, id := range ids {
		if id > maxID {
			maxID = id
		}
	}

	sub, err := store.InducedSubgraph(g, intCfg(), map[store.VertexID]bool{ids[2]: true, ids[3]: true}, nil)
	require.NoError(t, err)
	nv, created := sub.Intern(99)
	require.True(t, created)
	require.Greater(t, nv.ID(), maxID, "fresh IDs must not collide with kept ones")
	again, created := sub.Intern(99)
	require.False(t, created)
	require.Equal(t, nv.ID(), again.ID())

	clone, err := store.Clone(g, intCfg(), nil, nil)
	require.NoError(t, err)
	cv, created := clone.Intern(99)
	require.True(t, created)
	require.Greater(t, cv.ID(), maxID)
}
