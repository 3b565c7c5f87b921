// Package zone implements the zone descriptor: a restriction of a
// graph's working set to the vertices reachable from an initial vertex
// in a given direction, after skipping a given number of BFS levels.
package zone

import (
	"context"
	"errors"

	"github.com/loomkit/loom/store"
)

// ErrInitialNotFound is returned when a Zone's Initial vertex is absent
// from the graph.
var ErrInitialNotFound = errors.New("zone: initial vertex not found")

// Direction selects which edges a Zone's BFS follows.
type Direction int

const (
	// Forward follows outgoing edges (successors).
	Forward Direction = iota
	// Backward follows incoming back-references (predecessors).
	Backward
)

// Zone restricts a traversal kernel's working set to the vertices
// reachable from Initial in Dir, skipping the first Offset BFS levels
// (Offset=0 includes Initial itself, Offset=1 its immediate frontier,
// and so on). A nil *Zone passed to a kernel means "the entire graph".
type Zone struct {
	Initial store.VertexID
	Dir     Direction
	Offset  int
}

// Vertices computes the zone's vertex set by BFS from Initial, returning
// ErrInitialNotFound if Initial is not present in g.
func Vertices[V, E any](ctx context.Context, g *store.Graph[V, E], z Zone) ([]store.VertexID, error) {
	if g.Vertex(z.Initial) == nil {
		return nil, ErrInitialNotFound
	}

	type item struct {
		id    store.VertexID
		depth int
	}
	visited := map[store.VertexID]bool{z.Initial: true}
	queue := []item{{id: z.Initial, depth: 0}}
	var result []store.VertexID
	if z.Offset <= 0 {
		result = append(result, z.Initial)
	}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		cur := queue[0]
		queue = queue[1:]

		neighbors := neighborsOf(g, cur.id, z.Dir)
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			nd := cur.depth + 1
			if nd >= z.Offset {
				result = append(result, n)
			}
			queue = append(queue, item{id: n, depth: nd})
		}
	}

	return result, nil
}

// Contains reports whether v lies in the zone described by z, by
// computing z's full vertex set. For repeated membership checks, callers
// should compute Vertices once and build a set themselves instead.
func Contains[V, E any](ctx context.Context, g *store.Graph[V, E], z Zone, v store.VertexID) (bool, error) {
	vs, err := Vertices(ctx, g, z)
	if err != nil {
		return false, err
	}
	for _, id := range vs {
		if id == v {
			return true, nil
		}
	}
	return false, nil
}

func neighborsOf[V, E any](g *store.Graph[V, E], id store.VertexID, dir Direction) []store.VertexID {
	switch dir {
	case Forward:
		v := g.Vertex(id)
		if v == nil {
			return nil
		}
		out := v.OutEdges()
		ids := make([]store.VertexID, len(out))
		for i, e := range out {
			ids[i] = e.Target
		}
		return ids
	default: // Backward
		edges := g.IncidentEdges(id)
		ids := make([]store.VertexID, len(edges))
		for i, e := range edges {
			ids[i] = e.Source
		}
		return ids
	}
}
