package kernel

import (
	"context"
	"sync"

	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/partition"
	"github.com/loomkit/loom/store"
)

// ClassifyBundle configures the classify kernel: a per-vertex property
// and a class-equivalence order over that property.
type ClassifyBundle[V, P any] struct {
	Property   func(ctx context.Context, v V) (P, error)
	ClassHash  func(P) uint64
	ClassEqual func(P, P) bool
	Lanes      int
	Logf       func(format string, args ...any)
}

type classRep[P any] struct {
	prop P
	root store.VertexID
}

// Classify computes bundle.Property at every vertex and groups vertices
// with equal properties into classes, returning the resulting
// partition. Classes are hash-consed the same way vertices are: a
// mutex-guarded bucket map keyed by class-hash, linear probing for
// class-equality within a bucket.
func Classify[V, E, P any](ctx context.Context, g *store.Graph[V, E], bundle ClassifyBundle[V, P], kill *lane.KillToken) (*partition.Partition, lane.ErrorKind, error) {
	ids := g.Vertices()
	p := partition.New()
	for _, id := range ids {
		p.Add(id)
	}
	if len(ids) == 0 {
		return p, lane.OK, nil
	}

	sched := schedulerFor(bundle.Lanes, bundle.Logf)

	var mu sync.Mutex
	buckets := make(map[uint64][]classRep[P])

	kind, err := runOverVertices(ctx, sched, ids, kill, func(ctx context.Context, id store.VertexID) error {
		v := g.Vertex(id)
		if v == nil {
			return store.ErrVertexNotFound
		}
		prop, perr := bundle.Property(ctx, v.Payload())
		if perr != nil {
			return perr
		}
		h := bundle.ClassHash(prop)

		mu.Lock()
		defer mu.Unlock()
		for _, rep := range buckets[h] {
			if bundle.ClassEqual(rep.prop, prop) {
				p.Union(id, rep.root)
				return nil
			}
		}
		buckets[h] = append(buckets[h], classRep[P]{prop: prop, root: id})
		return nil
	})
	if err != nil {
		return nil, kind, err
	}

	return p, lane.OK, nil
}

// MergeBundle configures the merge kernel: classify per Classify, then
// collapse each class to a single vertex whose payload is the pairwise
// reduction of its members' payloads.
type MergeBundle[V, E, P any] struct {
	Classify ClassifyBundle[V, P]
	VReduce  func(a, b V) (V, error)
	EReduce  func(a, b E) (E, error) // nil keeps parallel edges between classes (multigraph)
	Pruner   func(ctx context.Context, source V, label E, target V) (bool, error)
}

// Merge classifies g, then builds a new graph with one vertex per class
// (payload = fold-reduction of the class's members under bundle.VReduce)
// and edges derived from the original inter-class edges, reduced via
// bundle.EReduce when two class members share a remote class, and
// finally filtered by bundle.Pruner.
func Merge[V, E, P any](ctx context.Context, g *store.Graph[V, E], cfg store.Config[V, E], bundle MergeBundle[V, E, P], kill *lane.KillToken) (*store.Graph[V, E], *partition.Partition, lane.ErrorKind, error) {
	p, kind, err := Classify[V, E, P](ctx, g, bundle.Classify, kill)
	if err != nil {
		return nil, nil, kind, err
	}

	classes := p.Classes()

	classPayload := make(map[store.VertexID]V, len(classes))
	for root, members := range classes {
		var acc V
		first := true
		for _, m := range members {
			mv := g.Vertex(m)
			if mv == nil {
				continue
			}
			if first {
				acc = mv.Payload()
				first = false
				continue
			}
			if bundle.VReduce == nil {
				continue
			}
			next, rerr := bundle.VReduce(acc, mv.Payload())
			if rerr != nil {
				return nil, nil, lane.UserError, rerr
			}
			acc = next
		}
		classPayload[root] = acc
	}

	out, nerr := store.New(cfg)
	if nerr != nil {
		return nil, nil, lane.Misuse, nerr
	}
	classVertex := make(map[store.VertexID]store.VertexID, len(classes))
	for root := range classes {
		nv, _ := out.Intern(classPayload[root])
		classVertex[root] = nv.ID()
	}
	if root := g.Root(); root != 0 {
		if cr := p.Find(root); classVertex[cr] != 0 {
			out.SetRoot(classVertex[cr])
		}
	}

	type pairKey struct{ src, tgt store.VertexID }
	labelsByPair := make(map[pairKey][]E)
	for _, id := range g.Vertices() {
		v := g.Vertex(id)
		if v == nil {
			continue
		}
		srcClass := p.Find(id)
		for _, e := range v.OutEdges() {
			tgtClass := p.Find(e.Target)
			key := pairKey{src: srcClass, tgt: tgtClass}
			labelsByPair[key] = append(labelsByPair[key], e.Label)
		}
	}

	for key, labels := range labelsByPair {
		srcV := classVertex[key.src]
		tgtV := classVertex[key.tgt]
		var toAdd []E
		if bundle.EReduce == nil {
			toAdd = labels
		} else {
			acc := labels[0]
			for _, l := range labels[1:] {
				next, rerr := bundle.EReduce(acc, l)
				if rerr != nil {
					return nil, nil, lane.UserError, rerr
				}
				acc = next
			}
			toAdd = []E{acc}
		}
		for _, label := range toAdd {
			if bundle.Pruner != nil {
				keep, perr := bundle.Pruner(ctx, out.Vertex(srcV).Payload(), label, out.Vertex(tgtV).Payload())
				if perr != nil {
					return nil, nil, lane.UserError, perr
				}
				if !keep {
					continue
				}
			}
			if _, aerr := out.AddEdge(srcV, tgtV, label); aerr != nil && aerr != store.ErrDuplicateEdgeKey {
				return nil, nil, lane.Misuse, aerr
			}
		}
	}

	return out, p, lane.OK, nil
}
