package store

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Config supplies the hash-consing contracts a Graph needs: how to hash
// and compare vertex payloads (mandatory, since no vertex may appear
// twice under the configured equality), how to hash and compare edge
// labels (optional, only required when the caller wants edge
// deduplication), and the destructors invoked when a payload's owner
// count reaches zero.
type Config[V, E any] struct {
	VertexHash  func(V) uint64
	VertexEqual func(V, V) bool

	// EdgeHash and EdgeEqual are both nil, or both set. When set, no two
	// outgoing edges from the same vertex may share an equal (label,
	// target) pair; AddEdge returns ErrDuplicateEdgeKey for the second
	// attempt instead of creating a parallel edge.
	EdgeHash  func(E) uint64
	EdgeEqual func(E, E) bool

	VertexFree func(V)
	EdgeFree   func(E)
}

func (c Config[V, E]) validate() error {
	if c.VertexHash == nil || c.VertexEqual == nil {
		return ErrNilPayload
	}
	if (c.EdgeHash == nil) != (c.EdgeEqual == nil) {
		return ErrNilPayload
	}
	return nil
}

// edgeOrdered reports whether edge-key deduplication is configured.
func (c Config[V, E]) edgeOrdered() bool { return c.EdgeHash != nil }

// Graph is the shared vertex/edge store: a set of hash-consed vertices,
// each owning an ordered outgoing-edge list and an unordered incoming
// back-reference list. muVert guards the vertex map and the vertex
// hash-cons index; per-vertex locks (held inside Vertex) guard each
// vertex's own edge lists, one lock per vertex since kernels partition
// work by vertex.
type Graph[V any, E any] struct {
	cfg Config[V, E]

	muVert   sync.RWMutex
	vertices map[VertexID]*Vertex[V, E]
	index    map[uint64][]VertexID // vertex-hash bucket -> candidate IDs

	nextVertexID atomic.Uint64
	nextEdgeID   atomic.Uint64
	edgeCount    atomic.Int64

	root VertexID
}

// New constructs an empty Graph. cfg.VertexHash/VertexEqual are
// required; cfg.EdgeHash/EdgeEqual are optional and, if supplied in
// pairs, enable edge-key deduplication per vertex.
func New[V any, E any](cfg Config[V, E]) (*Graph[V, E], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Graph[V, E]{
		cfg:      cfg,
		vertices: make(map[VertexID]*Vertex[V, E]),
		index:    make(map[uint64][]VertexID),
	}, nil
}

// Root returns the graph's designated root vertex, set by the kernel
// that built it (build/spread). Zero means no root has been set.
func (g *Graph[V, E]) Root() VertexID {
	g.muVert.RLock()
	defer g.muVert.RUnlock()
	return g.root
}

// SetRoot records id as the graph's root. Used by the build kernel once
// the root vertex has been interned.
func (g *Graph[V, E]) SetRoot(id VertexID) {
	g.muVert.Lock()
	defer g.muVert.Unlock()
	g.root = id
}

// Lookup returns the VertexID already hash-consed for a payload equal to
// key, if one exists.
func (g *Graph[V, E]) Lookup(key V) (VertexID, bool) {
	h := g.cfg.VertexHash(key)
	g.muVert.RLock()
	defer g.muVert.RUnlock()
	for _, id := range g.index[h] {
		if v, ok := g.vertices[id]; ok && g.cfg.VertexEqual(v.payload, key) {
			return id, true
		}
	}
	return 0, false
}

// Intern returns the existing vertex equal to payload under the
// configured hash-cons predicate, or creates and returns a new one.
// Reports whether a new vertex was created.
func (g *Graph[V, E]) Intern(payload V) (*Vertex[V, E], bool) {
	h := g.cfg.VertexHash(payload)

	g.muVert.Lock()
	defer g.muVert.Unlock()

	for _, id := range g.index[h] {
		if v, ok := g.vertices[id]; ok && g.cfg.VertexEqual(v.payload, payload) {
			return v, false
		}
	}

	id := VertexID(g.nextVertexID.Add(1))
	v := &Vertex[V, E]{id: id, payload: payload}
	if g.cfg.edgeOrdered() {
		v.keyIndex = make(map[uint64][]EdgeID)
	}
	g.vertices[id] = v
	g.index[h] = append(g.index[h], id)
	return v, true
}

// Vertex returns the vertex with the given ID, or nil if absent.
func (g *Graph[V, E]) Vertex(id VertexID) *Vertex[V, E] {
	g.muVert.RLock()
	defer g.muVert.RUnlock()
	return g.vertices[id]
}

// IncidentEdges returns a snapshot of the edges that target vertex id,
// resolved from its back-references to their owning Edge records. This
// is the slow path (one lock acquisition per distinct origin vertex);
// kernels folding over the same vertex's incident edges repeatedly
// should cache the result for the duration of one kernel invocation.
func (g *Graph[V, E]) IncidentEdges(id VertexID) []*Edge[E] {
	v := g.Vertex(id)
	if v == nil {
		return nil
	}
	v.mu.Lock()
	brs := append([]backRef(nil), v.in...)
	v.mu.Unlock()

	edges := make([]*Edge[E], 0, len(brs))
	for _, br := range brs {
		src := g.Vertex(br.source)
		if src == nil {
			continue
		}
		src.mu.Lock()
		for _, e := range src.out {
			if e.ID == br.edge {
				edges = append(edges, e)
				break
			}
		}
		src.mu.Unlock()
	}
	return edges
}

// Vertices returns a snapshot slice of every live VertexID. The order is
// map-iteration order (unspecified); callers needing a stable order must
// sort it themselves.
func (g *Graph[V, E]) Vertices() []VertexID {
	g.muVert.RLock()
	defer g.muVert.RUnlock()
	ids := make([]VertexID, 0, len(g.vertices))
	for id := range g.vertices {
		ids = append(ids, id)
	}
	return ids
}

// edgeKey combines a label hash and a target into one dedup key.
func edgeKey(labelHash uint64, target VertexID) uint64 {
	// Mix target into the label hash with a simple odd multiplier;
	// collisions are resolved by the EdgeEqual+Target comparison in
	// AddEdge, so this only needs to be a good bucket selector.
	return labelHash*1099511628211 ^ uint64(target)
}

// AddEdge creates a new owned edge from source to target labeled label,
// appends it to source's outgoing list, and appends a back-reference to
// target's incoming list. If the graph's edge order is configured and an
// equal (label, target) pair already exists on source, returns
// ErrDuplicateEdgeKey and the existing edge instead of creating a
// duplicate.
func (g *Graph[V, E]) AddEdge(source, target VertexID, label E) (*Edge[E], error) {
	g.muVert.RLock()
	sv, sok := g.vertices[source]
	tv, tok := g.vertices[target]
	g.muVert.RUnlock()
	if !sok || !tok {
		return nil, ErrVertexNotFound
	}

	// The duplicate-key check and the insert share one critical section:
	// kernels like postpone add edges whose source is owned by another
	// lane, so two lanes may race on the same source vertex here.
	sv.mu.Lock()
	if g.cfg.edgeOrdered() {
		h := edgeKey(g.cfg.EdgeHash(label), target)
		for _, eid := range sv.keyIndex[h] {
			for _, e := range sv.out {
				if e.ID == eid && e.Target == target && g.cfg.EdgeEqual(e.Label, label) {
					sv.mu.Unlock()
					return e, ErrDuplicateEdgeKey
				}
			}
		}
	}

	id := EdgeID(g.nextEdgeID.Add(1))
	e := &Edge[E]{ID: id, Label: label, Source: source, Target: target}
	sv.out = append(sv.out, e)
	if g.cfg.edgeOrdered() {
		h := edgeKey(g.cfg.EdgeHash(label), target)
		sv.keyIndex[h] = append(sv.keyIndex[h], id)
	}
	sv.mu.Unlock()

	if tv != sv {
		tv.mu.Lock()
		tv.in = append(tv.in, backRef{edge: id, source: source})
		tv.mu.Unlock()
	} else {
		// self-loop: same vertex on both sides, same lock.
		sv.mu.Lock()
		sv.in = append(sv.in, backRef{edge: id, source: source})
		sv.mu.Unlock()
	}

	g.edgeCount.Add(1)
	return e, nil
}

// RemoveEdge deletes the edge with the given ID from its origin's
// outgoing list and from its target's incoming back-references. Returns
// ErrEdgeNotFound if no such edge exists anywhere (best-effort: it only
// searches the two endpoints recorded when AddEdge last saw it, which is
// always correct since edges never change endpoints).
func (g *Graph[V, E]) RemoveEdge(source, target VertexID, id EdgeID) error {
	g.muVert.RLock()
	sv, sok := g.vertices[source]
	tv, tok := g.vertices[target]
	g.muVert.RUnlock()
	if !sok || !tok {
		return ErrVertexNotFound
	}

	sv.mu.Lock()
	found := false
	for i, e := range sv.out {
		if e.ID == id {
			sv.out = append(sv.out[:i], sv.out[i+1:]...)
			found = true
			break
		}
	}
	if found && g.cfg.edgeOrdered() {
		for h, ids := range sv.keyIndex {
			for i, eid := range ids {
				if eid == id {
					sv.keyIndex[h] = append(ids[:i], ids[i+1:]...)
					break
				}
			}
		}
	}
	sv.mu.Unlock()
	if !found {
		return ErrEdgeNotFound
	}

	if tv == sv {
		sv.mu.Lock()
	} else {
		tv.mu.Lock()
	}
	for i, br := range tv.in {
		if br.edge == id {
			tv.in = append(tv.in[:i], tv.in[i+1:]...)
			break
		}
	}
	if tv == sv {
		sv.mu.Unlock()
	} else {
		tv.mu.Unlock()
	}

	g.edgeCount.Add(-1)
	return nil
}

// RemoveVertex deletes the vertex and every edge incident to it (owned
// outgoing edges and edges owned by other vertices that target it).
// Invokes no destructors; callers that want payload cleanup should read
// the payload first and call cfg.VertexFree/EdgeFree themselves, or use
// FreeNow for a whole-graph teardown.
func (g *Graph[V, E]) RemoveVertex(id VertexID) error {
	g.muVert.RLock()
	v, ok := g.vertices[id]
	g.muVert.RUnlock()
	if !ok {
		return ErrVertexNotFound
	}

	v.mu.Lock()
	out := append([]*Edge[E](nil), v.out...)
	in := append([]backRef(nil), v.in...)
	v.mu.Unlock()

	// Detach edges while the vertex is still registered, so RemoveEdge
	// can resolve both endpoints; only then drop the vertex itself.
	for _, e := range out {
		_ = g.RemoveEdge(e.Source, e.Target, e.ID)
	}
	for _, br := range in {
		_ = g.RemoveEdge(br.source, id, br.edge)
	}

	g.muVert.Lock()
	delete(g.vertices, id)
	h := g.cfg.VertexHash(v.payload)
	bucket := g.index[h]
	for i, cand := range bucket {
		if cand == id {
			g.index[h] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	g.muVert.Unlock()
	return nil
}

// VertexCount returns the live vertex cardinality. lanes is accepted
// for API symmetry with FreeNow; the count is maintained by the vertex
// map itself, so no fan-out is needed.
func (g *Graph[V, E]) VertexCount(lanes int) int {
	g.muVert.RLock()
	defer g.muVert.RUnlock()
	return len(g.vertices)
}

// EdgeCount returns the live edge cardinality. Maintained incrementally
// by AddEdge/RemoveEdge, so this is O(1); lanes is accepted for API
// symmetry with VertexCount and is unused.
func (g *Graph[V, E]) EdgeCount(lanes int) int {
	return int(g.edgeCount.Load())
}

// resolveLanes applies the "a lane count of 0 means one lane per
// hardware thread" rule shared by every parallel entry point.
func resolveLanes(lanes int) int {
	if lanes <= 0 {
		return runtime.NumCPU()
	}
	return lanes
}

// FreeNow synchronously destroys every vertex and edge payload via the
// graph's configured destructors, sharding the work across lanes
// goroutines. Each vertex's edges are freed by that vertex's shard,
// avoiding double-free by construction (an edge's origin shard frees it,
// never the target's).
func (g *Graph[V, E]) FreeNow(lanes int) {
	ids := g.Vertices()
	n := resolveLanes(lanes)
	if n > len(ids) && len(ids) > 0 {
		n = len(ids)
	}
	if n <= 0 {
		return
	}

	var wg sync.WaitGroup
	shardSize := (len(ids) + n - 1) / n
	for s := 0; s < n; s++ {
		lo := s * shardSize
		hi := lo + shardSize
		if lo >= len(ids) {
			break
		}
		if hi > len(ids) {
			hi = len(ids)
		}
		wg.Add(1)
		go func(shard []VertexID) {
			defer wg.Done()
			for _, id := range shard {
				g.muVert.RLock()
				v := g.vertices[id]
				g.muVert.RUnlock()
				if v == nil {
					continue
				}
				v.mu.Lock()
				out := append([]*Edge[E](nil), v.out...)
				payload := v.payload
				v.mu.Unlock()
				if g.cfg.EdgeFree != nil {
					for _, e := range out {
						g.cfg.EdgeFree(e.Label)
					}
				}
				if g.cfg.VertexFree != nil {
					g.cfg.VertexFree(payload)
				}
			}
		}(ids[lo:hi])
	}
	wg.Wait()

	g.muVert.Lock()
	g.vertices = make(map[VertexID]*Vertex[V, E])
	g.index = make(map[uint64][]VertexID)
	g.muVert.Unlock()
	g.edgeCount.Store(0)
}

// FreeLater schedules FreeNow on a background goroutine and returns a
// channel closed when destruction completes, so callers can observe
// completion without polling a shared counter.
func (g *Graph[V, E]) FreeLater(lanes int) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.FreeNow(lanes)
	}()
	return done
}
