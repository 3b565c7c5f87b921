package kernel

import (
	"context"
	"sync"

	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
)

// Spread continues Build from every vertex currently in g, as if each
// were its own root: useful when a connector declined to follow every
// edge the first time it ran and a later pass should finish the job.
func Spread[V, E any](ctx context.Context, g *store.Graph[V, E], bundle BuildBundle[V, E], kill *lane.KillToken) (lane.ErrorKind, error) {
	var discMu sync.Mutex
	disc := map[store.VertexID]discovery[E]{}

	frontier := g.Vertices()
	for _, id := range frontier {
		if v := g.Vertex(id); v != nil {
			disc[id] = discovery[E]{initial: id == g.Root()}
		}
	}

	sched := schedulerFor(bundle.Lanes, bundle.Logf)

	for len(frontier) > 0 {
		var mu sync.Mutex
		var next []store.VertexID

		items := make([]lane.WorkItem, 0, len(frontier))
		for _, id := range frontier {
			id := id
			items = append(items, lane.WorkItem{
				Key: vertexKey(id),
				Run: func(ctx context.Context) error {
					v := g.Vertex(id)
					if v == nil {
						return nil
					}
					connect := func(label E, target V) error {
						tv, created := g.Intern(target)
						if _, aerr := g.AddEdge(v.ID(), tv.ID(), label); aerr != nil && aerr != store.ErrDuplicateEdgeKey {
							return aerr
						}
						if created {
							discMu.Lock()
							disc[tv.ID()] = discovery[E]{label: label}
							discMu.Unlock()
							mu.Lock()
							next = append(next, tv.ID())
							mu.Unlock()
						}
						return nil
					}

					if bundle.SubConnector != nil {
						discMu.Lock()
						d := disc[id]
						discMu.Unlock()
						return bundle.SubConnector(ctx, d.initial, d.label, v.Payload(), connect)
					}
					return bundle.Connector(ctx, v.Payload(), connect)
				},
			})
		}

		kind, rerr := sched.Run(ctx, items, kill)
		if rerr != nil {
			return kind, rerr
		}
		frontier = next
	}

	return lane.OK, nil
}
