// Package loom is a parallel graph-transformation engine: a hash-consed,
// generic vertex/edge store plus a set of traversal kernels that rewrite a
// graph's shape and payloads by fanning work out across lanes.
//
// Everything is organized under subpackages:
//
//	pool/      — sharded, refcounted label interning
//	store/     — Graph[V,E]: hash-consed vertices, sharded-lock edges
//	lane/      — errgroup-backed scheduler, cooperative cancellation
//	fold/      — map/reduce/vacuous folds over a vertex's edges
//	partition/ — union-find over store.VertexID
//	zone/      — direction- and offset-restricted reachable subgraphs
//	kernel/    — the twelve transformation kernels: Build, Spread, Mutate,
//	             Filter, Fabricate, MapReduce, Classify, Merge, Compose,
//	             Split, Postpone, Induce, Stretch
//
// Rewriting kernels (Mutate, Filter, Fabricate, Merge, Split) return a
// new *store.Graph and leave the input untouched; growing kernels
// (Spread, Compose, Postpone, Stretch) extend the input in place under
// its own locks. Every kernel returns a lane.ErrorKind drawn from a
// closed taxonomy alongside the Go error carrying detail.
package loom
