// Non-mutating views over a Graph: cloning and induced subgraphs, used
// by the fabricate and filter kernels. Read-lock the source, build a
// fresh graph, never touch the input.
package store

// Clone returns a structurally identical copy of g: same vertex IDs,
// same edges (including parallel edges and self-loops). vFn/eFn let a
// caller remap payloads while cloning topology, as the fabricate
// kernel's per-vertex/per-edge map callbacks require; either may be nil
// for an identity copy of that half. Payload maps must preserve
// distinctness under cfg's vertex order, since vertex IDs are kept
// as-is rather than re-interned. The result shares no ownership with g.
func Clone[V, E any](g *Graph[V, E], cfg Config[V, E], vFn func(VertexID, V) (V, error), eFn func(EdgeID, E) (E, error)) (*Graph[V, E], error) {
	out, err := New(cfg)
	if err != nil {
		return nil, err
	}

	g.muVert.RLock()
	ids := make([]VertexID, 0, len(g.vertices))
	for id := range g.vertices {
		ids = append(ids, id)
	}
	g.muVert.RUnlock()

	// Preserve VertexID numbering so edges (recorded by ID below) can be
	// replayed directly without a remapping pass.
	out.muVert.Lock()
	for _, id := range ids {
		v := g.Vertex(id)
		payload := v.Payload()
		if vFn != nil {
			var perr error
			payload, perr = vFn(id, payload)
			if perr != nil {
				out.muVert.Unlock()
				return nil, perr
			}
		}
		nv := &Vertex[V, E]{id: id, payload: payload}
		if cfg.edgeOrdered() {
			nv.keyIndex = make(map[uint64][]EdgeID)
		}
		out.vertices[id] = nv
		h := cfg.VertexHash(payload)
		out.index[h] = append(out.index[h], id)
		if uint64(id) > out.nextVertexID.Load() {
			out.nextVertexID.Store(uint64(id))
		}
	}
	out.root = g.root
	out.muVert.Unlock()

	for _, id := range ids {
		v := g.Vertex(id)
		for _, e := range v.OutEdges() {
			label := e.Label
			if eFn != nil {
				var lerr error
				label, lerr = eFn(e.ID, label)
				if lerr != nil {
					return nil, lerr
				}
			}
			if _, err := out.AddEdge(e.Source, e.Target, label); err != nil && err != ErrDuplicateEdgeKey {
				return nil, err
			}
		}
	}

	return out, nil
}

// InducedSubgraph returns a new Graph containing only the vertices
// whose ID is in keep, and only the edges whose source and target are
// both in keep and that keepEdge accepts (a nil keepEdge accepts every
// edge). Vertex IDs are preserved; the ID counter is advanced past the
// highest kept ID so later interning cannot collide. Used by filter to
// materialize the result of pruning a zone.
func InducedSubgraph[V, E any](g *Graph[V, E], cfg Config[V, E], keep map[VertexID]bool, keepEdge func(*Edge[E]) bool) (*Graph[V, E], error) {
	out, err := New(cfg)
	if err != nil {
		return nil, err
	}

	out.muVert.Lock()
	for id := range keep {
		v := g.Vertex(id)
		if v == nil {
			continue
		}
		nv := &Vertex[V, E]{id: id, payload: v.Payload()}
		if cfg.edgeOrdered() {
			nv.keyIndex = make(map[uint64][]EdgeID)
		}
		out.vertices[id] = nv
		h := cfg.VertexHash(v.Payload())
		out.index[h] = append(out.index[h], id)
		if uint64(id) > out.nextVertexID.Load() {
			out.nextVertexID.Store(uint64(id))
		}
	}
	if keep[g.root] {
		out.root = g.root
	}
	out.muVert.Unlock()

	for id := range keep {
		v := g.Vertex(id)
		if v == nil {
			continue
		}
		for _, e := range v.OutEdges() {
			if !keep[e.Target] {
				continue
			}
			if keepEdge != nil && !keepEdge(e) {
				continue
			}
			if _, err := out.AddEdge(e.Source, e.Target, e.Label); err != nil && err != ErrDuplicateEdgeKey {
				return nil, err
			}
		}
	}

	return out, nil
}
