package fold_test

import (
	"context"
	"testing"

	"github.com/loomkit/loom/fold"
	"github.com/loomkit/loom/store"
	"github.com/stretchr/testify/require"
)

func weightCfg() store.Config[int, int] {
	return store.Config[int, int]{
		VertexHash:  func(v int) uint64 { return uint64(v) },
		VertexEqual: func(a, b int) bool { return a == b },
	}
}

func sumSpec() fold.Spec[int, int] {
	return fold.Spec[int, int]{
		Map:    func(ctx context.Context, from, to store.VertexID, label int) (int, error) { return label, nil },
		Reduce: func(a, b int) (int, error) { return a + b, nil },
	}
}

func TestOutgoingSumsEdgeLabels(t *testing.T) {
	g, err := store.New(weightCfg())
	require.NoError(t, err)
	a, _ := g.Intern(1)
	b, _ := g.Intern(2)
	c, _ := g.Intern(3)
	_, err = g.AddEdge(a.ID(), b.ID(), 10)
	require.NoError(t, err)
	_, err = g.AddEdge(a.ID(), c.ID(), 5)
	require.NoError(t, err)

	sum, err := fold.Outgoing(context.Background(), g, a, sumSpec())
	require.NoError(t, err)
	require.Equal(t, 15, sum)
}

func TestIncidentSumsBackReferences(t *testing.T) {
	g, err := store.New(weightCfg())
	require.NoError(t, err)
	a, _ := g.Intern(1)
	b, _ := g.Intern(2)
	c, _ := g.Intern(3)
	_, err = g.AddEdge(a.ID(), c.ID(), 10)
	require.NoError(t, err)
	_, err = g.AddEdge(b.ID(), c.ID(), 5)
	require.NoError(t, err)

	sum, err := fold.Incident(context.Background(), g, c, sumSpec())
	require.NoError(t, err)
	require.Equal(t, 15, sum)
}

func TestVacuousCaseOnLeaf(t *testing.T) {
	g, err := store.New(weightCfg())
	require.NoError(t, err)
	a, _ := g.Intern(1)

	spec := sumSpec()
	_, err = fold.Outgoing(context.Background(), g, a, spec)
	require.ErrorIs(t, err, fold.ErrNoVacuousCase)

	spec.Vacuous = func() (int, bool) { return 0, true }
	sum, err := fold.Outgoing(context.Background(), g, a, spec)
	require.NoError(t, err)
	require.Equal(t, 0, sum)
}

func TestVertexMapCombinesInAndOut(t *testing.T) {
	g, err := store.New(weightCfg())
	require.NoError(t, err)
	a, _ := g.Intern(7)

	r, err := fold.VertexMap(g.Vertex(a.ID()), 2, 3, func(in, v, out int) (int, error) {
		return in + v + out, nil
	})
	require.NoError(t, err)
	require.Equal(t, 12, r)
}
