package kernel_test

import (
	"context"
	"testing"

	"github.com/loomkit/loom/fold"
	"github.com/loomkit/loom/kernel"
	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
	"github.com/stretchr/testify/require"
)

func sumEdgeLabels() fold.Spec[int, int] {
	return fold.Spec[int, int]{
		Map:     func(ctx context.Context, from, to store.VertexID, label int) (int, error) { return label, nil },
		Reduce:  func(a, b int) (int, error) { return a + b, nil },
		Vacuous: func() (int, bool) { return 0, true },
	}
}

func TestMapReduceSumsOutgoingAcrossGraph(t *testing.T) {
	g, _ := triangle(t)
	result, kind, err := kernel.MapReduce(context.Background(), g, kernel.MapReduceBundle[int, int, int, int, int]{
		Incident: sumEdgeLabels(),
		Outgoing: sumEdgeLabels(),
		VertexMap: func(in, v, out int) (int, error) {
			return out, nil // each vertex contributes the sum of its outgoing labels
		},
		Reduce: func(a, b int) (int, error) { return a + b, nil },
	}, nil)
	require.NoError(t, err)
	require.Equal(t, lane.OK, kind)
	// triangle edges are labeled 0, 1, 2 — every label counted exactly once as
	// some vertex's sole outgoing edge.
	require.Equal(t, 3, result)
}

func TestMapReduceEmptyGraphUsesVacuous(t *testing.T) {
	g, err := store.New(intCfgI())
	require.NoError(t, err)

	result, _, err := kernel.MapReduce(context.Background(), g, kernel.MapReduceBundle[int, int, int, int, int]{
		Incident:  sumEdgeLabels(),
		Outgoing:  sumEdgeLabels(),
		VertexMap: func(in, v, out int) (int, error) { return out, nil },
		Reduce:    func(a, b int) (int, error) { return a + b, nil },
		Vacuous:   func() (int, bool) { return -1, true },
	}, nil)
	require.NoError(t, err)
	require.Equal(t, -1, result)
}

func TestMapReduceEmptyGraphWithoutVacuousIsMisuse(t *testing.T) {
	g, err := store.New(intCfgI())
	require.NoError(t, err)

	_, _, err = kernel.MapReduce(context.Background(), g, kernel.MapReduceBundle[int, int, int, int, int]{
		Incident:  sumEdgeLabels(),
		Outgoing:  sumEdgeLabels(),
		VertexMap: func(in, v, out int) (int, error) { return out, nil },
		Reduce:    func(a, b int) (int, error) { return a + b, nil },
	}, nil)
	require.Error(t, err)
}
