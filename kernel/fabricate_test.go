package kernel_test

import (
	"context"
	"testing"

	"github.com/loomkit/loom/kernel"
	"github.com/stretchr/testify/require"
)

func TestFabricateDefaultsAreAStructuralClone(t *testing.T) {
	g, ids := triangle(t)
	out, _, err := kernel.Fabricate(context.Background(), g, intCfgI(), kernel.FabricateBundle[int, int]{}, nil)
	require.NoError(t, err)

	require.Equal(t, len(g.Vertices()), len(out.Vertices()))
	require.Equal(t, g.EdgeCount(0), out.EdgeCount(0))

	var payloads []int
	for _, id := range out.Vertices() {
		payloads = append(payloads, out.Vertex(id).Payload())
	}
	require.ElementsMatch(t, []int{1, 2, 3}, payloads)
	_ = ids
}

func TestFabricateAppliesVFabAndEFab(t *testing.T) {
	g, _ := triangle(t)
	out, _, err := kernel.Fabricate(context.Background(), g, intCfgI(), kernel.FabricateBundle[int, int]{
		VFab: func(ctx context.Context, old int) (int, error) { return old * 10, nil },
		EFab: func(ctx context.Context, old int) (int, error) { return old + 1, nil },
	}, nil)
	require.NoError(t, err)

	var payloads []int
	for _, id := range out.Vertices() {
		payloads = append(payloads, out.Vertex(id).Payload())
	}
	require.ElementsMatch(t, []int{10, 20, 30}, payloads)
}

func TestFabricateDoesNotShareGraphWithSource(t *testing.T) {
	g, ids := triangle(t)
	out, _, err := kernel.Fabricate(context.Background(), g, intCfgI(), kernel.FabricateBundle[int, int]{}, nil)
	require.NoError(t, err)

	require.NoError(t, g.RemoveVertex(ids[0]))
	require.Equal(t, 2, len(g.Vertices()))
	require.Equal(t, 3, len(out.Vertices()), "fabricate's output must not alias the source graph")
}
