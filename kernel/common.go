// Package kernel implements the traversal-kernel family: build, spread,
// mutate, filter, fabricate, mapreduce, classify/partition/merge,
// compose, split, postpone, induce, stretch.
//
// Every kernel shares one skeleton: derive a working-vertex set (the
// whole graph, or a zone.Zone), enqueue one lane.WorkItem per working
// vertex, run the kernel-specific per-vertex procedure across
// lane.Scheduler, optionally iterate to a fixed point, finalize.
package kernel

import (
	"context"
	"errors"

	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
	"github.com/loomkit/loom/zone"
)

// ErrNoVacuousCase is returned by Induce when a zone vertex has no
// in-zone neighbors to fold over and the bundle supplied no vacuous
// case. This is misuse, never an undefined value. MapReduce reports the
// same condition with fold.ErrNoVacuousCase.
var ErrNoVacuousCase = errors.New("kernel: vacuous case required but not supplied")

// workingSet resolves a kernel's working-vertex set: every vertex in
// the graph if z is nil, or exactly zone.Vertices(z) otherwise.
func workingSet[V, E any](ctx context.Context, g *store.Graph[V, E], z *zone.Zone) ([]store.VertexID, error) {
	if z == nil {
		return g.Vertices(), nil
	}
	return zone.Vertices(ctx, g, *z)
}

// vertexKey hashes a VertexID for lane assignment. VertexIDs are already
// densely-assigned integers, so the identity function is a fine lane
// hash; kept as a named function so kernels read as intentional rather
// than accidentally relying on the underlying type.
func vertexKey(id store.VertexID) uint64 { return uint64(id) }

// schedulerFor builds the lane.Scheduler a kernel call resolves once,
// shared by every lane.Scheduler.Run call the kernel makes across its
// phases, so "lanes=0 means one per hardware thread" resolves exactly
// once per kernel invocation.
func schedulerFor(lanes int, logf func(string, ...any)) *lane.Scheduler {
	return lane.NewScheduler(lanes, lane.WithLogf(logf))
}

// sameValue reports whether two values are the identical Go value, used
// by kernels that fold results pairwise to avoid double-releasing an
// accumulator a reducer returned unchanged. Mirrors fold.sameValue; kept
// as a separate unexported copy since fold's is not exported.
func sameValue[A any](a, b A) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return any(a) == any(b)
}

// runOverVertices is the shared fan-out helper nearly every kernel below
// uses: run fn once per vertex in ids, across sched's lanes, respecting
// kill.
func runOverVertices(ctx context.Context, sched *lane.Scheduler, ids []store.VertexID, kill *lane.KillToken, fn func(context.Context, store.VertexID) error) (lane.ErrorKind, error) {
	items := make([]lane.WorkItem, len(ids))
	for i, id := range ids {
		id := id
		items[i] = lane.WorkItem{Key: vertexKey(id), Run: func(ctx context.Context) error {
			return fn(ctx, id)
		}}
	}
	return sched.Run(ctx, items, kill)
}
