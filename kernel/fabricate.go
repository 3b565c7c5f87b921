package kernel

import (
	"context"
	"sync"

	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
)

// FabricateBundle configures the fabricate kernel. A nil VFab or EFab
// is the identity clone for that half.
type FabricateBundle[V, E any] struct {
	VFab  func(ctx context.Context, old V) (V, error)
	EFab  func(ctx context.Context, old E) (E, error)
	Lanes int
	Logf  func(format string, args ...any)
}

// Fabricate clones g: every vertex and edge label is replaced by its
// image under bundle.VFab/EFab (identity when absent), producing a
// result that shares no ownership with g. With the default bundle this
// is a structural clone; source and clone are independently usable.
func Fabricate[V, E any](ctx context.Context, g *store.Graph[V, E], cfg store.Config[V, E], bundle FabricateBundle[V, E], kill *lane.KillToken) (*store.Graph[V, E], lane.ErrorKind, error) {
	ids := g.Vertices()

	var mu sync.Mutex
	vimg := make(map[store.VertexID]V, len(ids))
	sched := schedulerFor(bundle.Lanes, bundle.Logf)

	kind, err := runOverVertices(ctx, sched, ids, kill, func(ctx context.Context, id store.VertexID) error {
		v := g.Vertex(id)
		if v == nil {
			return nil
		}
		old := v.Payload()
		if bundle.VFab == nil {
			mu.Lock()
			vimg[id] = old
			mu.Unlock()
			return nil
		}
		np, verr := bundle.VFab(ctx, old)
		if verr != nil {
			return verr
		}
		mu.Lock()
		vimg[id] = np
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, kind, err
	}

	var edges []mutateEdge[E]
	for _, id := range ids {
		v := g.Vertex(id)
		if v == nil {
			continue
		}
		for _, e := range v.OutEdges() {
			edges = append(edges, mutateEdge[E]{id: e.ID, source: e.Source, label: e.Label, target: e.Target})
		}
	}

	eimg := make(map[store.EdgeID]E, len(edges))
	items := make([]lane.WorkItem, len(edges))
	for i, er := range edges {
		er := er
		items[i] = lane.WorkItem{Key: uint64(er.id), Run: func(ctx context.Context) error {
			if bundle.EFab == nil {
				mu.Lock()
				eimg[er.id] = er.label
				mu.Unlock()
				return nil
			}
			nl, eerr := bundle.EFab(ctx, er.label)
			if eerr != nil {
				return eerr
			}
			mu.Lock()
			eimg[er.id] = nl
			mu.Unlock()
			return nil
		}}
	}
	if kind, rerr := sched.Run(ctx, items, kill); rerr != nil {
		return nil, kind, rerr
	}

	out, nerr := store.Clone(g, cfg,
		func(id store.VertexID, _ V) (V, error) { return vimg[id], nil },
		func(id store.EdgeID, _ E) (E, error) { return eimg[id], nil })
	if nerr != nil {
		return nil, lane.Misuse, nerr
	}
	return out, lane.OK, nil
}
