package partition_test

import (
	"sync"
	"testing"

	"github.com/loomkit/loom/partition"
	"github.com/loomkit/loom/store"
	"github.com/stretchr/testify/require"
)

func TestFindSingletonIsSelf(t *testing.T) {
	p := partition.New()
	p.Add(1)
	require.Equal(t, store.VertexID(1), p.Find(1))
}

func TestUnionMergesClasses(t *testing.T) {
	p := partition.New()
	p.Add(1)
	p.Add(2)
	p.Union(1, 2)
	require.Equal(t, p.Find(1), p.Find(2))
	require.Equal(t, 2, p.ClassSize(1))
}

func TestUnionOfSameClassIsNoOp(t *testing.T) {
	p := partition.New()
	p.Add(1)
	root := p.Find(1)
	p.Union(1, 1)
	require.Equal(t, root, p.Find(1))
	require.Equal(t, 1, p.ClassSize(1))
}

func TestClassesGroupsByRoot(t *testing.T) {
	p := partition.New()
	for _, id := range []store.VertexID{1, 2, 3, 4} {
		p.Add(id)
	}
	p.Union(1, 2)
	p.Union(3, 4)

	classes := p.Classes()
	require.Len(t, classes, 2)
	var sizes []int
	for _, members := range classes {
		sizes = append(sizes, len(members))
	}
	require.ElementsMatch(t, []int{2, 2}, sizes)
}

func TestFindAutoRegistersUnknownVertex(t *testing.T) {
	p := partition.New()
	require.Equal(t, store.VertexID(9), p.Find(9))
	require.Equal(t, 1, p.ClassSize(9))
}

func TestConcurrentUnionConverges(t *testing.T) {
	p := partition.New()
	const n = 100
	for i := store.VertexID(1); i <= n; i++ {
		p.Add(i)
	}

	var wg sync.WaitGroup
	for i := store.VertexID(1); i < n; i++ {
		wg.Add(1)
		go func(i store.VertexID) {
			defer wg.Done()
			p.Union(i, i+1)
		}(i)
	}
	wg.Wait()

	root := p.Find(1)
	for i := store.VertexID(2); i <= n; i++ {
		require.Equal(t, root, p.Find(i), "vertex %d should share the single class", i)
	}
	require.Equal(t, n, p.ClassSize(1))
}
