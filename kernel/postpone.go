package kernel

import (
	"context"
	"sync"

	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
)

// PostponeBundle configures the postpone kernel.
type PostponeBundle[V, E any] struct {
	Postponable func(ctx context.Context, v V, label E, w V) (bool, error)
	BOp         func(ctx context.Context, l1 E, l2 E) (E, error)
	Fix         bool
	Lanes       int
	Logf        func(format string, args ...any)
}

// Postpone mutates g in place: for each vertex v and each postponable
// edge (v, ℓ, w), and each sibling edge (v, ℓ′, w′) that is not
// postponable, adds a new edge (w′, bundle.BOp(ℓ, ℓ′), w). With Fix,
// repeats until a round adds no edge.
func Postpone[V, E any](ctx context.Context, g *store.Graph[V, E], bundle PostponeBundle[V, E], kill *lane.KillToken) (lane.ErrorKind, error) {
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
			outEdges := v.OutEdges()

			var postponable, siblings []*store.Edge[E]
			for _, e := range outEdges {
				w := g.Vertex(e.Target)
				if w == nil {
					continue
				}
				ok, perr := bundle.Postponable(ctx, vProp, e.Label, w.Payload())
				if perr != nil {
					return perr
				}
				if ok {
					postponable = append(postponable, e)
				} else {
					siblings = append(siblings, e)
				}
			}

			for _, pe := range postponable {
				for _, se := range siblings {
					newLabel, berr := bundle.BOp(ctx, pe.Label, se.Label)
					if berr != nil {
						return berr
					}
					_, aerr := g.AddEdge(se.Target, pe.Target, newLabel)
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
