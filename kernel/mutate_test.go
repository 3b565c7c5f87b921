package kernel_test

import (
	"context"
	"testing"

	"github.com/loomkit/loom/kernel"
	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
	"github.com/stretchr/testify/require"
)

// triangle builds 1 -> 2 -> 3 -> 1, each edge labeled with the sum of its
// endpoints, and returns the graph plus its three VertexIDs.
func triangle(t *testing.T) (*store.Graph[int, int], []store.VertexID) {
	t.Helper()
	cfg := store.Config[int, int]{
		VertexHash:  func(v int) uint64 { return uint64(v) },
		VertexEqual: func(a, b int) bool { return a == b },
	}
	g, err := store.New(cfg)
	require.NoError(t, err)
	ids := make([]store.VertexID, 3)
	for i := 0; i < 3; i++ {
		v, _ := g.Intern(i + 1)
		ids[i] = v.ID()
	}
	for i := 0; i < 3; i++ {
		_, err := g.AddEdge(ids[i], ids[(i+1)%3], i)
		require.NoError(t, err)
	}
	g.SetRoot(ids[0])
	return g, ids
}

func intCfgI() store.Config[int, int] {
	return store.Config[int, int]{
		VertexHash:  func(v int) uint64 { return uint64(v) },
		VertexEqual: func(a, b int) bool { return a == b },
	}
}

func TestMutateDoublesVertexPayloads(t *testing.T) {
	g, _ := triangle(t)
	out, kind, err := kernel.Mutate(context.Background(), g, intCfgI(), kernel.MutateBundle[int, int]{
		VOp: func(ctx context.Context, old int) (int, error) { return old * 2, nil },
	}, nil)
	require.NoError(t, err)
	require.Equal(t, lane.OK, kind)

	var payloads []int
	for _, id := range out.Vertices() {
		payloads = append(payloads, out.Vertex(id).Payload())
	}
	require.ElementsMatch(t, []int{2, 4, 6}, payloads)
	require.Equal(t, 3, out.EdgeCount(0))
}

func TestMutateNilOpsAreIdentity(t *testing.T) {
	g, _ := triangle(t)
	out, _, err := kernel.Mutate(context.Background(), g, intCfgI(), kernel.MutateBundle[int, int]{}, nil)
	require.NoError(t, err)

	var payloads []int
	for _, id := range out.Vertices() {
		payloads = append(payloads, out.Vertex(id).Payload())
	}
	require.ElementsMatch(t, []int{1, 2, 3}, payloads)
	require.Equal(t, 3, out.EdgeCount(0))
}

func TestMutateRemoteFirstSeesPreImage(t *testing.T) {
	g, _ := triangle(t)
	var seenSources []int
	out, _, err := kernel.Mutate(context.Background(), g, intCfgI(), kernel.MutateBundle[int, int]{
		VOp: func(ctx context.Context, old int) (int, error) { return old + 100, nil },
		EOp: func(ctx context.Context, source int, label int, target int) (int, error) {
			seenSources = append(seenSources, source)
			return label, nil
		},
		RemoteFirst: true,
		Lanes:       1, // EOp appends to the shared slice above
	}, nil)
	require.NoError(t, err)
	for _, s := range seenSources {
		require.Less(t, s, 100, "remote-first must hand EOp the pre-image payload")
	}
	require.Equal(t, 3, out.EdgeCount(0))
}

func TestMutateLocalFirstSeesPostImage(t *testing.T) {
	g, _ := triangle(t)
	var seenSources []int
	_, _, err := kernel.Mutate(context.Background(), g, intCfgI(), kernel.MutateBundle[int, int]{
		VOp: func(ctx context.Context, old int) (int, error) { return old + 100, nil },
		EOp: func(ctx context.Context, source int, label int, target int) (int, error) {
			seenSources = append(seenSources, source)
			return label, nil
		},
		RemoteFirst: false,
		Lanes:       1, // EOp appends to the shared slice above
	}, nil)
	require.NoError(t, err)
	for _, s := range seenSources {
		require.GreaterOrEqual(t, s, 100, "local-first must hand EOp the post-image payload")
	}
}
