package kernel

import (
	"context"
	"sync"

	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
)

// Connector enumerates the outgoing edges of a vertex by calling
// connect zero or more times. It must not block indefinitely and should
// return a non-nil error to abort the surrounding kernel.
type Connector[V, E any] func(ctx context.Context, v V, connect func(label E, target V) error) error

// SubConnector is the back-context variant of Connector: it
// additionally receives the label of the incident edge that discovered
// v (the zero value of E for the root) and whether v is the root.
type SubConnector[V, E any] func(ctx context.Context, initial bool, labelIn E, v V, connect func(label E, target V) error) error

// BuildBundle configures the build kernel. Exactly one of Connector or
// SubConnector must be set.
type BuildBundle[V, E any] struct {
	Connector    Connector[V, E]
	SubConnector SubConnector[V, E]
	Lanes        int
	Logf         func(format string, args ...any)
}

// discovery records how a vertex first entered the graph, used to feed
// SubConnector its labelIn/initial arguments.
type discovery[E any] struct {
	label   E
	initial bool
}

// Build constructs a new graph from root by repeated fixed-point
// traversal: newly discovered vertices are enqueued for their own
// connector invocation until no vertex remains unprocessed.
func Build[V, E any](ctx context.Context, cfg store.Config[V, E], root V, bundle BuildBundle[V, E], kill *lane.KillToken) (*store.Graph[V, E], lane.ErrorKind, error) {
	g, err := store.New(cfg)
	if err != nil {
		return nil, lane.Misuse, err
	}

	rv, _ := g.Intern(root)
	g.SetRoot(rv.ID())

	var discMu sync.Mutex
	disc := map[store.VertexID]discovery[E]{rv.ID(): {initial: true}}

	sched := schedulerFor(bundle.Lanes, bundle.Logf)

	frontier := []*store.Vertex[V, E]{rv}
	for len(frontier) > 0 {
		var mu sync.Mutex
		var next []*store.Vertex[V, E]

		items := make([]lane.WorkItem, 0, len(frontier))
		for _, v := range frontier {
			v := v
			items = append(items, lane.WorkItem{
				Key: vertexKey(v.ID()),
				Run: func(ctx context.Context) error {
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
							next = append(next, tv)
							mu.Unlock()
						}
						return nil
					}

					if bundle.SubConnector != nil {
						discMu.Lock()
						d := disc[v.ID()]
						discMu.Unlock()
						return bundle.SubConnector(ctx, d.initial, d.label, v.Payload(), connect)
					}
					return bundle.Connector(ctx, v.Payload(), connect)
				},
			})
		}

		kind, rerr := sched.Run(ctx, items, kill)
		if rerr != nil {
			return nil, kind, rerr
		}
		frontier = next
	}

	return g, lane.OK, nil
}
