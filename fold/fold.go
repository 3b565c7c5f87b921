// Package fold implements the generic map-reduce machinery used inside
// every higher-level traversal kernel: folding over a vertex's incident
// edges, its outgoing edges, or combining both with the vertex's own
// payload into a scalar property.
package fold

import (
	"context"
	"errors"

	"github.com/loomkit/loom/store"
)

// ErrNoVacuousCase is returned when a fold reaches a vertex with no
// incident (or outgoing) edges and Spec.Vacuous was not supplied. This
// is a hard error, never an undefined value.
var ErrNoVacuousCase = errors.New("fold: vacuous case required but not supplied")

// Spec describes one fold over a vertex's edges: Map transforms each
// incident edge (source vertex, target vertex, label) into an
// accumulator value A; Reduce combines two accumulator values and must
// be associative and commutative since reduction order is unspecified;
// Vacuous supplies the identity value for a vertex with no matching
// edges; Retain/Release bracket every intermediate value that Map or
// Vacuous produces and that is not the final result, so user-owned
// accumulators are released exactly once.
type Spec[E, A any] struct {
	Map     func(ctx context.Context, from, to store.VertexID, label E) (A, error)
	Reduce  func(a, b A) (A, error)
	Vacuous func() (A, bool)
	Retain  func(A)
	Release func(A)
}

func (s Spec[E, A]) retain(a A) {
	if s.Retain != nil {
		s.Retain(a)
	}
}

func (s Spec[E, A]) release(a A) {
	if s.Release != nil {
		s.Release(a)
	}
}

// Incident folds over v's incoming back-references: for each edge
// (u, label, v), applies spec.Map(u, v, label), then reduces pairwise.
func Incident[V, E, A any](ctx context.Context, g *store.Graph[V, E], v *store.Vertex[V, E], spec Spec[E, A]) (A, error) {
	var zero A
	// Incident edges are resolved from v's back-references through
	// g.IncidentEdges, which builds a fresh snapshot on every call.
	edges := g.IncidentEdges(v.ID())
	if len(edges) == 0 {
		if spec.Vacuous == nil {
			return zero, ErrNoVacuousCase
		}
		val, ok := spec.Vacuous()
		if !ok {
			return zero, ErrNoVacuousCase
		}
		return val, nil
	}

	var acc A
	first := true
	for _, e := range edges {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}
		val, err := spec.Map(ctx, e.Source, v.ID(), e.Label)
		if err != nil {
			if !first {
				spec.release(acc)
			}
			return zero, err
		}
		spec.retain(val)
		if first {
			acc = val
			first = false
			continue
		}
		next, err := spec.Reduce(acc, val)
		if err != nil {
			spec.release(acc)
			spec.release(val)
			return zero, err
		}
		if !sameValue(next, acc) {
			spec.release(acc)
		}
		if !sameValue(next, val) {
			spec.release(val)
		}
		acc = next
	}
	return acc, nil
}

// Outgoing folds over v's owned outgoing edges: for each edge
// (v, label, w), applies spec.Map(v, w, label), then reduces pairwise.
func Outgoing[V, E, A any](ctx context.Context, g *store.Graph[V, E], v *store.Vertex[V, E], spec Spec[E, A]) (A, error) {
	var zero A
	edges := v.OutEdges()
	if len(edges) == 0 {
		if spec.Vacuous == nil {
			return zero, ErrNoVacuousCase
		}
		val, ok := spec.Vacuous()
		if !ok {
			return zero, ErrNoVacuousCase
		}
		return val, nil
	}

	var acc A
	first := true
	for _, e := range edges {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}
		val, err := spec.Map(ctx, v.ID(), e.Target, e.Label)
		if err != nil {
			if !first {
				spec.release(acc)
			}
			return zero, err
		}
		spec.retain(val)
		if first {
			acc = val
			first = false
			continue
		}
		next, err := spec.Reduce(acc, val)
		if err != nil {
			spec.release(acc)
			spec.release(val)
			return zero, err
		}
		if !sameValue(next, acc) {
			spec.release(acc)
		}
		if !sameValue(next, val) {
			spec.release(val)
		}
		acc = next
	}
	return acc, nil
}

// sameValue reports whether two accumulator values are the identical Go
// value, used to avoid double-releasing an accumulator that Reduce
// returned unchanged (e.g. a Reduce that mutates and returns one of its
// inputs). Falls back to false for incomparable types via a recover,
// since A is not constrained to comparable.
func sameValue[A any](a, b A) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return any(a) == any(b)
}

// VertexMap combines the results of an incident fold and an outgoing
// fold with the vertex's own payload into a final scalar property.
func VertexMap[V, E, In, Out, R any](v *store.Vertex[V, E], in In, out Out, fn func(In, V, Out) (R, error)) (R, error) {
	return fn(in, v.Payload(), out)
}
