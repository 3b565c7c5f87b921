package kernel

import (
	"context"
	"errors"
	"sync"

	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
	"github.com/loomkit/loom/zone"
)

// ErrCyclicZone is returned by Induce when its zone contains a cycle
// reachable under the fold direction.
var ErrCyclicZone = errors.New("kernel: induce zone is cyclic")

// InduceBundle configures the induce kernel: a zoned, direction-aware
// dynamic-programming fold where each vertex's value is computed from
// the values already computed for its neighbors.
//
// Zone is required (induce is always seeded somewhere): Zone.Dir
// selects which edges BFS uses to discover new vertices (zone.Forward
// follows outgoing edges, zone.Backward follows incoming
// back-references, matching the zone package's own convention), and
// Zone.Offset excludes the first levels from the working set exactly as
// it does for the other zoned kernels. The per-vertex fold then runs
// over the *opposite* edge set — the edges that point toward vertices
// nearer the initial vertex, which is always exactly the set already
// computed when the BFS visits v. Neighbors outside the zone are
// excluded from the fold, so a zone vertex whose nearer neighbors were
// all skipped by Offset takes the vacuous case.
type InduceBundle[V, E, A any] struct {
	Zone    zone.Zone
	Map     func(ctx context.Context, neighborValue A, label E) (A, error)
	Reduce  func(a, b A) (A, error)
	Vacuous func() (A, bool)
	Retain  func(A)
	Release func(A)
	Lanes   int
	Logf    func(format string, args ...any)
}

func (b InduceBundle[V, E, A]) retain(a A) {
	if b.Retain != nil {
		b.Retain(a)
	}
}

func (b InduceBundle[V, E, A]) release(a A) {
	if b.Release != nil {
		b.Release(a)
	}
}

// discoveryNeighbors returns the vertices BFS discovers from id under dir.
func discoveryNeighbors[V, E any](g *store.Graph[V, E], id store.VertexID, dir zone.Direction) []store.VertexID {
	if dir == zone.Forward {
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
	}
	edges := g.IncidentEdges(id)
	ids := make([]store.VertexID, len(edges))
	for i, e := range edges {
		ids[i] = e.Source
	}
	return ids
}

// foldEdges returns the (label, neighbor) pairs a vertex's value is
// folded over: the opposite direction from discovery, since those
// neighbors sit strictly nearer the initial vertex in the BFS.
func foldEdges[V, E any](g *store.Graph[V, E], id store.VertexID, dir zone.Direction) []*store.Edge[E] {
	if dir == zone.Forward {
		return g.IncidentEdges(id)
	}
	v := g.Vertex(id)
	if v == nil {
		return nil
	}
	return v.OutEdges()
}

// Induce computes bundle's dynamic-programming fold over bundle.Zone,
// returning the value computed at the graph's designated root when the
// root lies in the zone. Otherwise the value at the zone's initial
// vertex is returned instead, so induce remains usable on graphs built
// without Build/SetRoot. Returns lane.Cyclic if a vertex's fold depends
// on a neighbor not yet computed (a cycle within the zone under the
// fold direction), or lane.NotFound if the zone's initial vertex is
// absent or no value was computed at the target vertex.
func Induce[V, E, A any](ctx context.Context, g *store.Graph[V, E], bundle InduceBundle[V, E, A], kill *lane.KillToken) (A, lane.ErrorKind, error) {
	var zero A
	zoneIDs, zerr := zone.Vertices(ctx, g, bundle.Zone)
	if zerr != nil {
		return zero, lane.NotFound, zerr
	}
	inZone := make(map[store.VertexID]bool, len(zoneIDs))
	for _, id := range zoneIDs {
		inZone[id] = true
	}

	// The level BFS runs from the initial vertex regardless of Offset:
	// skipped levels still order the traversal, they just never receive
	// a computed value.
	initial := bundle.Zone.Initial
	visited := map[store.VertexID]bool{initial: true}
	levels := [][]store.VertexID{{initial}}
	frontier := []store.VertexID{initial}
	for len(frontier) > 0 {
		var next []store.VertexID
		for _, id := range frontier {
			for _, n := range discoveryNeighbors(g, id, bundle.Zone.Dir) {
				if !visited[n] {
					visited[n] = true
					next = append(next, n)
				}
			}
		}
		if len(next) > 0 {
			levels = append(levels, next)
		}
		frontier = next
	}

	sched := schedulerFor(bundle.Lanes, bundle.Logf)

	var mu sync.Mutex
	computed := make(map[store.VertexID]A, len(zoneIDs))

	for _, level := range levels {
		work := level[:0:0]
		for _, id := range level {
			if inZone[id] {
				work = append(work, id)
			}
		}
		kind, err := runOverVertices(ctx, sched, work, kill, func(ctx context.Context, id store.VertexID) error {
			edges := foldEdges(g, id, bundle.Zone.Dir)

			neighborOf := func(e *store.Edge[E]) store.VertexID {
				if bundle.Zone.Dir == zone.Forward {
					return e.Source
				}
				return e.Target
			}

			var neighborEdges []*store.Edge[E]
			for _, e := range edges {
				if inZone[neighborOf(e)] {
					neighborEdges = append(neighborEdges, e)
				}
			}

			if len(neighborEdges) == 0 {
				if bundle.Vacuous == nil {
					return ErrNoVacuousCase
				}
				val, ok := bundle.Vacuous()
				if !ok {
					return ErrNoVacuousCase
				}
				mu.Lock()
				computed[id] = val
				mu.Unlock()
				return nil
			}

			var acc A
			first := true
			for _, e := range neighborEdges {
				other := neighborOf(e)
				mu.Lock()
				nv, ok := computed[other]
				mu.Unlock()
				if !ok {
					return ErrCyclicZone
				}
				val, merr := bundle.Map(ctx, nv, e.Label)
				if merr != nil {
					return merr
				}
				bundle.retain(val)
				if first {
					acc = val
					first = false
					continue
				}
				next, rerr := bundle.Reduce(acc, val)
				if rerr != nil {
					bundle.release(acc)
					bundle.release(val)
					return rerr
				}
				if !sameValue(next, acc) {
					bundle.release(acc)
				}
				if !sameValue(next, val) {
					bundle.release(val)
				}
				acc = next
			}
			mu.Lock()
			computed[id] = acc
			mu.Unlock()
			return nil
		})
		if err != nil {
			if errors.Is(err, ErrCyclicZone) {
				return zero, lane.Cyclic, err
			}
			if errors.Is(err, ErrNoVacuousCase) {
				return zero, lane.Misuse, err
			}
			return zero, kind, err
		}
	}

	target := initial
	if root := g.Root(); root != 0 && inZone[root] {
		target = root
	}
	result, ok := computed[target]
	if !ok {
		return zero, lane.NotFound, zone.ErrInitialNotFound
	}
	return result, lane.OK, nil
}
