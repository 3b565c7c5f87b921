package kernel

import (
	"context"
	"sync"

	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
)

// StretchBundle configures the stretch kernel. CruStretch is invoked
// only for edges Expander accepted, supplying the interstitial vertex
// and the two edge labels that replace the original edge.
type StretchBundle[V, E any] struct {
	Expander   func(ctx context.Context, u V, label E, v V) (bool, error)
	CruStretch func(ctx context.Context, u V, label E, v V) (l1 E, w V, l2 E, err error)
	Fix        bool
	Lanes      int
	Logf       func(format string, args ...any)
}

type stretchEdge[E any] struct {
	id     store.EdgeID
	source store.VertexID
	label  E
	target store.VertexID
}

// Stretch mutates g in place: for each edge (u, ℓ, v) bundle.Expander
// accepts, replaces it with (u, ℓ1, w), (w, ℓ2, v) where w/ℓ1/ℓ2 come
// from bundle.CruStretch. With Fix, repeats until a round stretches no
// edge; the two new edges it leaves behind are themselves eligible for
// a later round.
func Stretch[V, E any](ctx context.Context, g *store.Graph[V, E], bundle StretchBundle[V, E], kill *lane.KillToken) (lane.ErrorKind, error) {
	sched := schedulerFor(bundle.Lanes, bundle.Logf)

	for {
		ids := g.Vertices()
		var edges []stretchEdge[E]
		for _, id := range ids {
			v := g.Vertex(id)
			if v == nil {
				continue
			}
			for _, e := range v.OutEdges() {
				edges = append(edges, stretchEdge[E]{id: e.ID, source: e.Source, label: e.Label, target: e.Target})
			}
		}

		type op struct {
			edge stretchEdge[E]
			l1   E
			w    V
			l2   E
		}
		var mu sync.Mutex
		var ops []op

		items := make([]lane.WorkItem, len(edges))
		for i, ed := range edges {
			ed := ed
			items[i] = lane.WorkItem{Key: uint64(ed.id), Run: func(ctx context.Context) error {
				uv := g.Vertex(ed.source)
				vv := g.Vertex(ed.target)
				if uv == nil || vv == nil {
					return nil
				}
				ok, eerr := bundle.Expander(ctx, uv.Payload(), ed.label, vv.Payload())
				if eerr != nil {
					return eerr
				}
				if !ok {
					return nil
				}
				l1, w, l2, serr := bundle.CruStretch(ctx, uv.Payload(), ed.label, vv.Payload())
				if serr != nil {
					return serr
				}
				mu.Lock()
				ops = append(ops, op{edge: ed, l1: l1, w: w, l2: l2})
				mu.Unlock()
				return nil
			}}
		}
		kind, err := sched.Run(ctx, items, kill)
		if err != nil {
			return kind, err
		}
		if len(ops) == 0 {
			break
		}

		for _, o := range ops {
			wv, _ := g.Intern(o.w)
			if rerr := g.RemoveEdge(o.edge.source, o.edge.target, o.edge.id); rerr != nil && rerr != store.ErrEdgeNotFound {
				return lane.Misuse, rerr
			}
			if _, aerr := g.AddEdge(o.edge.source, wv.ID(), o.l1); aerr != nil && aerr != store.ErrDuplicateEdgeKey {
				return lane.Misuse, aerr
			}
			if _, aerr := g.AddEdge(wv.ID(), o.edge.target, o.l2); aerr != nil && aerr != store.ErrDuplicateEdgeKey {
				return lane.Misuse, aerr
			}
		}

		if !bundle.Fix {
			break
		}
	}

	return lane.OK, nil
}
