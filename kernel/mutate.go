package kernel

import (
	"context"
	"sync"

	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
)

// VertexOp maps an old vertex payload to its image under mutate.
type VertexOp[V any] func(ctx context.Context, old V) (V, error)

// EdgeOp maps an old edge label to its image under mutate. The source
// and target payloads it receives are the pre-image or the post-image
// depending on MutateBundle.RemoteFirst.
type EdgeOp[V, E any] func(ctx context.Context, source V, label E, target V) (E, error)

// MutateBundle configures the mutate kernel. A nil VOp or EOp is
// treated as identity for that half of the rewrite, not a misuse error.
type MutateBundle[V, E any] struct {
	VOp         VertexOp[V]
	EOp         EdgeOp[V, E]
	RemoteFirst bool
	Lanes       int
	Logf        func(format string, args ...any)
}

// mutateEdge is a snapshot of one edge taken before mutate begins
// rewriting, so both schedules can replay edges without re-reading a
// graph that is being concurrently rewritten.
type mutateEdge[E any] struct {
	id     store.EdgeID
	source store.VertexID
	label  E
	target store.VertexID
}

// Mutate produces a new graph whose vertices and edge labels are the
// images of g's under bundle.VOp/EOp. The schedule is
// enforced as a two-phase barrier: local-first computes new vertex
// payloads before any edge observes them; remote-first computes new edge
// labels from the pre-image of both endpoints before either is rewritten.
func Mutate[V, E any](ctx context.Context, g *store.Graph[V, E], cfg store.Config[V, E], bundle MutateBundle[V, E], kill *lane.KillToken) (*store.Graph[V, E], lane.ErrorKind, error) {
	ids := g.Vertices()
	oldPayload := make(map[store.VertexID]V, len(ids))
	for _, id := range ids {
		if v := g.Vertex(id); v != nil {
			oldPayload[id] = v.Payload()
		}
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

	sched := schedulerFor(bundle.Lanes, bundle.Logf)

	var mu sync.Mutex
	newPayload := make(map[store.VertexID]V, len(ids))
	vop := func(ctx context.Context, id store.VertexID) error {
		old := oldPayload[id]
		np := old
		if bundle.VOp != nil {
			var err error
			np, err = bundle.VOp(ctx, old)
			if err != nil {
				return err
			}
		}
		mu.Lock()
		newPayload[id] = np
		mu.Unlock()
		return nil
	}

	newLabel := make(map[store.EdgeID]E, len(edges))
	eop := func(ctx context.Context, er mutateEdge[E], srcPayload, tgtPayload func(store.VertexID) V) error {
		if bundle.EOp == nil {
			mu.Lock()
			newLabel[er.id] = er.label
			mu.Unlock()
			return nil
		}
		nl, err := bundle.EOp(ctx, srcPayload(er.source), er.label, tgtPayload(er.target))
		if err != nil {
			return err
		}
		mu.Lock()
		newLabel[er.id] = nl
		mu.Unlock()
		return nil
	}

	oldOf := func(id store.VertexID) V { return oldPayload[id] }
	newOf := func(id store.VertexID) V {
		mu.Lock()
		p := newPayload[id]
		mu.Unlock()
		return p
	}

	runEdges := func(fn func(context.Context, mutateEdge[E]) error) (lane.ErrorKind, error) {
		items := make([]lane.WorkItem, len(edges))
		for i, er := range edges {
			er := er
			items[i] = lane.WorkItem{Key: uint64(er.id), Run: func(ctx context.Context) error {
				return fn(ctx, er)
			}}
		}
		return sched.Run(ctx, items, kill)
	}

	if bundle.RemoteFirst {
		if kind, err := runEdges(func(ctx context.Context, er mutateEdge[E]) error {
			return eop(ctx, er, oldOf, oldOf)
		}); err != nil {
			return nil, kind, err
		}
		if kind, err := runOverVertices(ctx, sched, ids, kill, vop); err != nil {
			return nil, kind, err
		}
	} else {
		if kind, err := runOverVertices(ctx, sched, ids, kill, vop); err != nil {
			return nil, kind, err
		}
		if kind, err := runEdges(func(ctx context.Context, er mutateEdge[E]) error {
			return eop(ctx, er, newOf, newOf)
		}); err != nil {
			return nil, kind, err
		}
	}

	out, err := store.New(cfg)
	if err != nil {
		return nil, lane.Misuse, err
	}
	remap := make(map[store.VertexID]store.VertexID, len(ids))
	for _, id := range ids {
		nv, _ := out.Intern(newPayload[id])
		remap[id] = nv.ID()
	}
	if root := g.Root(); root != 0 {
		if nr, ok := remap[root]; ok {
			out.SetRoot(nr)
		}
	}
	for _, er := range edges {
		if _, aerr := out.AddEdge(remap[er.source], remap[er.target], newLabel[er.id]); aerr != nil && aerr != store.ErrDuplicateEdgeKey {
			return nil, lane.Misuse, aerr
		}
	}

	return out, lane.OK, nil
}
