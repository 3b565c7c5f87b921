package kernel

import (
	"context"
	"sync"

	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
	"github.com/loomkit/loom/zone"
)

// EdgePredicate decides whether an edge survives filter. False drops it.
type EdgePredicate[V, E any] func(ctx context.Context, source V, label E, target V) (bool, error)

// FilterBundle configures the filter kernel. Zone restricts which edges
// (those whose source lies in the zone) are subject to Predicate; edges
// whose source falls outside the zone are always kept. VFree/EFree are
// invoked on the payloads of vertices and edges that do not survive.
type FilterBundle[V, E any] struct {
	Zone      *zone.Zone
	Predicate EdgePredicate[V, E]
	VFree     func(V)
	EFree     func(E)
	Lanes     int
	Logf      func(format string, args ...any)
}

type filterEdge[E any] struct {
	id     store.EdgeID
	source store.VertexID
	label  E
	target store.VertexID
}

// Filter removes every edge bundle.Predicate rejects, then removes every
// zone vertex that becomes unreachable from the zone's initial vertex
// (or the graph's root, absent a zone) as a result, invoking VFree/EFree
// on what is dropped. Vertices outside the zone are never removed.
func Filter[V, E any](ctx context.Context, g *store.Graph[V, E], cfg store.Config[V, E], bundle FilterBundle[V, E], kill *lane.KillToken) (*store.Graph[V, E], lane.ErrorKind, error) {
	workIDs, err := workingSet(ctx, g, bundle.Zone)
	if err != nil {
		return nil, lane.NotFound, err
	}
	inWork := make(map[store.VertexID]bool, len(workIDs))
	for _, id := range workIDs {
		inWork[id] = true
	}

	allIDs := g.Vertices()
	var allEdges []filterEdge[E]
	var candidates []filterEdge[E]
	for _, id := range allIDs {
		v := g.Vertex(id)
		if v == nil {
			continue
		}
		for _, e := range v.OutEdges() {
			fe := filterEdge[E]{id: e.ID, source: e.Source, label: e.Label, target: e.Target}
			allEdges = append(allEdges, fe)
			if inWork[id] {
				candidates = append(candidates, fe)
			}
		}
	}

	sched := schedulerFor(bundle.Lanes, bundle.Logf)
	var mu sync.Mutex
	keepEdge := make(map[store.EdgeID]bool, len(candidates))
	items := make([]lane.WorkItem, len(candidates))
	for i, ce := range candidates {
		ce := ce
		items[i] = lane.WorkItem{Key: uint64(ce.id), Run: func(ctx context.Context) error {
			ok := true
			if bundle.Predicate != nil {
				srcV := g.Vertex(ce.source)
				tgtV := g.Vertex(ce.target)
				if srcV == nil || tgtV == nil {
					return store.ErrVertexNotFound
				}
				var perr error
				ok, perr = bundle.Predicate(ctx, srcV.Payload(), ce.label, tgtV.Payload())
				if perr != nil {
					return perr
				}
			}
			mu.Lock()
			keepEdge[ce.id] = ok
			mu.Unlock()
			return nil
		}}
	}
	if kind, rerr := sched.Run(ctx, items, kill); rerr != nil {
		return nil, kind, rerr
	}

	initial := g.Root()
	if bundle.Zone != nil {
		initial = bundle.Zone.Initial
	}

	survives := func(e filterEdge[E]) bool {
		if ok, seen := keepEdge[e.id]; seen {
			return ok
		}
		return true
	}

	// Vertices outside the zone are not subject to removal; zone vertices
	// survive only if still reachable from the initial vertex over the
	// surviving edges.
	keep := map[store.VertexID]bool{}
	for _, id := range allIDs {
		if !inWork[id] {
			keep[id] = true
		}
	}
	if g.Vertex(initial) != nil {
		seen := map[store.VertexID]bool{initial: true}
		keep[initial] = true
		queue := []store.VertexID{initial}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			v := g.Vertex(cur)
			if v == nil {
				continue
			}
			for _, e := range v.OutEdges() {
				fe := filterEdge[E]{id: e.ID, source: e.Source, label: e.Label, target: e.Target}
				if !survives(fe) {
					continue
				}
				if !seen[e.Target] {
					seen[e.Target] = true
					keep[e.Target] = true
					queue = append(queue, e.Target)
				}
			}
		}
	}

	if bundle.VFree != nil {
		for _, id := range allIDs {
			if !keep[id] {
				if v := g.Vertex(id); v != nil {
					bundle.VFree(v.Payload())
				}
			}
		}
	}
	if bundle.EFree != nil {
		for _, e := range allEdges {
			if !keep[e.source] || !keep[e.target] || !survives(e) {
				bundle.EFree(e.label)
			}
		}
	}

	out, err := store.InducedSubgraph(g, cfg, keep, func(e *store.Edge[E]) bool {
		return survives(filterEdge[E]{id: e.ID, source: e.Source, label: e.Label, target: e.Target})
	})
	if err != nil {
		return nil, lane.Misuse, err
	}
	if keep[initial] {
		out.SetRoot(initial)
	} else {
		out.SetRoot(0)
	}

	return out, lane.OK, nil
}
