package kernel

import (
	"context"
	"sync"

	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
)

// ComposeBundle configures the compose kernel.
type ComposeBundle[V, E any] struct {
	QPred func(ctx context.Context, vProp V, l1 E, wProp V, l2 E) (bool, error)
	QOp   func(ctx context.Context, vProp V, l1 E, wProp V, l2 E) (E, error)
	Fix   bool
	Lanes int
	Logf  func(format string, args ...any)
}

// Compose mutates g in place: for each vertex v, each pair of edges
// (v, ℓ1, w) and (w, ℓ2, x) where bundle.QPred holds, adds a bypass edge
// (v, bundle.QOp(...), x). With Fix, repeats until a round adds no edge,
// since each round can expose new two-hop pairs through bypass edges
// created in the previous round.
func Compose[V, E any](ctx context.Context, g *store.Graph[V, E], bundle ComposeBundle[V, E], kill *lane.KillToken) (lane.ErrorKind, error) {
	sched := schedulerFor(bundle.Lanes, bundle.Logf)

	for {
		ids := g.Vertices()
		var mu sync.Mutex
		added := 0

		kind, err := runOverVertices(ctx, sched, ids, kill, func(ctx context.Context, id store.VertexID) error {
			v := g.Vertex(id)
			if v == nil {
				return nil
			}
			vProp := v.Payload()
			for _, e1 := range v.OutEdges() {
				w := g.Vertex(e1.Target)
				if w == nil {
					continue
				}
				wProp := w.Payload()
				for _, e2 := range w.OutEdges() {
					ok, perr := bundle.QPred(ctx, vProp, e1.Label, wProp, e2.Label)
					if perr != nil {
						return perr
					}
					if !ok {
						continue
					}
					label, operr := bundle.QOp(ctx, vProp, e1.Label, wProp, e2.Label)
					if operr != nil {
						return operr
					}
					_, aerr := g.AddEdge(id, e2.Target, label)
					if aerr != nil {
						if aerr == store.ErrDuplicateEdgeKey {
							continue
						}
						return aerr
					}
					mu.Lock()
					added++
					mu.Unlock()
				}
			}
			return nil
		})
		if err != nil {
			return kind, err
		}
		if !bundle.Fix || added == 0 {
			break
		}
	}

	return lane.OK, nil
}
