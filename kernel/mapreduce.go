package kernel

import (
	"context"
	"errors"
	"sync"

	"github.com/loomkit/loom/fold"
	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
	"github.com/loomkit/loom/zone"
)

// MapReduceBundle configures the mapreduce kernel: a vertex's scalar
// property is fold.Incident combined with fold.Outgoing via VertexMap,
// then every vertex's property is reduced pairwise across the whole
// working set with Reduce.
type MapReduceBundle[V, E, In, Out, R any] struct {
	Incident  fold.Spec[E, In]
	Outgoing  fold.Spec[E, Out]
	VertexMap func(in In, v V, out Out) (R, error)
	Reduce    func(a, b R) (R, error)
	Vacuous   func() (R, bool)
	Retain    func(R)
	Release   func(R)
	Zone      *zone.Zone
	Lanes     int
	Logf      func(format string, args ...any)
}

func (b MapReduceBundle[V, E, In, Out, R]) retain(r R) {
	if b.Retain != nil {
		b.Retain(r)
	}
}

func (b MapReduceBundle[V, E, In, Out, R]) release(r R) {
	if b.Release != nil {
		b.Release(r)
	}
}

// MapReduce produces a single scalar for the graph (or its zone) by
// computing bundle.VertexMap at every vertex, then reducing the results
// pairwise with bundle.Reduce. Reduction order across vertices is
// unspecified; Reduce must be associative and commutative for a
// deterministic result across lane counts.
func MapReduce[V, E, In, Out, R any](ctx context.Context, g *store.Graph[V, E], bundle MapReduceBundle[V, E, In, Out, R], kill *lane.KillToken) (R, lane.ErrorKind, error) {
	var zero R
	ids, zerr := workingSet(ctx, g, bundle.Zone)
	if zerr != nil {
		return zero, lane.NotFound, zerr
	}

	if len(ids) == 0 {
		if bundle.Vacuous == nil {
			return zero, lane.Misuse, fold.ErrNoVacuousCase
		}
		val, ok := bundle.Vacuous()
		if !ok {
			return zero, lane.Misuse, fold.ErrNoVacuousCase
		}
		return val, lane.OK, nil
	}

	sched := schedulerFor(bundle.Lanes, bundle.Logf)

	var mu sync.Mutex
	var acc R
	first := true

	kind, rerr := runOverVertices(ctx, sched, ids, kill, func(ctx context.Context, id store.VertexID) error {
		v := g.Vertex(id)
		if v == nil {
			return store.ErrVertexNotFound
		}
		inVal, ierr := fold.Incident(ctx, g, v, bundle.Incident)
		if ierr != nil {
			return ierr
		}
		outVal, oerr := fold.Outgoing(ctx, g, v, bundle.Outgoing)
		if oerr != nil {
			return oerr
		}
		r, merr := bundle.VertexMap(inVal, v.Payload(), outVal)
		if merr != nil {
			return merr
		}

		mu.Lock()
		defer mu.Unlock()
		bundle.retain(r)
		if first {
			acc = r
			first = false
			return nil
		}
		next, rerr := bundle.Reduce(acc, r)
		if rerr != nil {
			bundle.release(acc)
			bundle.release(r)
			return rerr
		}
		if !sameValue(next, acc) {
			bundle.release(acc)
		}
		if !sameValue(next, r) {
			bundle.release(r)
		}
		acc = next
		return nil
	})
	if rerr != nil {
		if errors.Is(rerr, fold.ErrNoVacuousCase) {
			return zero, lane.Misuse, rerr
		}
		return zero, kind, rerr
	}

	return acc, lane.OK, nil
}
