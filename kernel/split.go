package kernel

import (
	"context"
	"sync"

	"github.com/loomkit/loom/lane"
	"github.com/loomkit/loom/store"
)

// SplitBundle configures the split kernel. A fissile vertex v is split
// into an anastatic image (ana) and a catastatic image (cata); the ana
// image takes over v's place in the output, the cata image is newly
// created.
//
// The four ctops (anastatic/catastatic crossed with inward/outward)
// decide which images each of v's former edges attaches to, each one
// independently: an edge is routed to every image whose ctop accepts
// it, so a single former edge may land on both images, one, or
// neither. A nil ctop pair for a direction (both InwardAna/InwardCata,
// or both OutwardAna/OutwardCata, nil) means every edge in that
// direction stays on the ana image — a valid partial configuration,
// not an error.
type SplitBundle[V, E any] struct {
	Fissile func(ctx context.Context, v V) (bool, error)
	Ana     func(ctx context.Context, v V) (V, error)
	Cata    func(ctx context.Context, v V) (V, error)

	InwardAna   func(ctx context.Context, source V, label E, v V) (bool, error)
	InwardCata  func(ctx context.Context, source V, label E, v V) (bool, error)
	OutwardAna  func(ctx context.Context, v V, label E, target V) (bool, error)
	OutwardCata func(ctx context.Context, v V, label E, target V) (bool, error)

	TPred func(ctx context.Context, label E) (bool, error) // false skips the edge entirely
	TOp   func(ctx context.Context, label E) (E, error)    // relabels a rerouted edge

	Lanes int
	Logf  func(format string, args ...any)
}

type splitImage[V any] struct {
	fissile bool
	ana     V
	cata    V
}

type splitEdge[E any] struct {
	id     store.EdgeID
	source store.VertexID
	label  E
	target store.VertexID
}

type splitRouted[E any] struct {
	source store.VertexID
	label  E
	target store.VertexID
}

// Split produces a new graph in which every vertex bundle.Fissile
// accepts is replaced by its ana/cata image pair, with former edges
// rerouted per the ctops. A barrier separates image construction from
// edge rerouting — two sequential lane.Scheduler.Run passes — so a ctop
// never observes a half-split neighbor.
func Split[V, E any](ctx context.Context, g *store.Graph[V, E], cfg store.Config[V, E], bundle SplitBundle[V, E], kill *lane.KillToken) (*store.Graph[V, E], lane.ErrorKind, error) {
	ids := g.Vertices()
	sched := schedulerFor(bundle.Lanes, bundle.Logf)

	var mu sync.Mutex
	images := make(map[store.VertexID]splitImage[V], len(ids))

	kind, err := runOverVertices(ctx, sched, ids, kill, func(ctx context.Context, id store.VertexID) error {
		v := g.Vertex(id)
		if v == nil {
			return nil
		}
		old := v.Payload()
		isFissile := false
		if bundle.Fissile != nil {
			ok, ferr := bundle.Fissile(ctx, old)
			if ferr != nil {
				return ferr
			}
			isFissile = ok
		}
		if !isFissile {
			mu.Lock()
			images[id] = splitImage[V]{fissile: false, ana: old}
			mu.Unlock()
			return nil
		}

		ana := old
		if bundle.Ana != nil {
			a, aerr := bundle.Ana(ctx, old)
			if aerr != nil {
				return aerr
			}
			ana = a
		}
		cata := old
		if bundle.Cata != nil {
			c, cerr := bundle.Cata(ctx, old)
			if cerr != nil {
				return cerr
			}
			cata = c
		}
		mu.Lock()
		images[id] = splitImage[V]{fissile: true, ana: ana, cata: cata}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, kind, err
	}

	// Barrier: every image is fixed before any edge rerouting decision is
	// made, so ctops always see the final ana/cata payloads, never a
	// half-split neighbor.
	out, nerr := store.New(cfg)
	if nerr != nil {
		return nil, lane.Misuse, nerr
	}
	anaVertex := make(map[store.VertexID]store.VertexID, len(ids))
	cataVertex := make(map[store.VertexID]store.VertexID, len(ids))
	for _, id := range ids {
		img := images[id]
		av, _ := out.Intern(img.ana)
		anaVertex[id] = av.ID()
		if img.fissile {
			cv, _ := out.Intern(img.cata)
			cataVertex[id] = cv.ID()
		} else {
			cataVertex[id] = av.ID()
		}
	}
	if root := g.Root(); root != 0 {
		if av, ok := anaVertex[root]; ok {
			out.SetRoot(av)
		}
	}

	var edges []splitEdge[E]
	for _, id := range ids {
		v := g.Vertex(id)
		if v == nil {
			continue
		}
		for _, e := range v.OutEdges() {
			edges = append(edges, splitEdge[E]{id: e.ID, source: e.Source, label: e.Label, target: e.Target})
		}
	}

	var emu sync.Mutex
	var toAdd []splitRouted[E]
	items := make([]lane.WorkItem, len(edges))
	for i, ed := range edges {
		ed := ed
		items[i] = lane.WorkItem{Key: uint64(ed.id), Run: func(ctx context.Context) error {
			if bundle.TPred != nil {
				keep, terr := bundle.TPred(ctx, ed.label)
				if terr != nil {
					return terr
				}
				if !keep {
					return nil
				}
			}
			label := ed.label
			if bundle.TOp != nil {
				nl, lerr := bundle.TOp(ctx, label)
				if lerr != nil {
					return lerr
				}
				label = nl
			}

			srcImg := images[ed.source]
			tgtImg := images[ed.target]
			targetOldPayload := payloadOf(g, ed.target)
			sourceOldPayload := payloadOf(g, ed.source)

			sources := []store.VertexID{anaVertex[ed.source]}
			if srcImg.fissile && (bundle.OutwardAna != nil || bundle.OutwardCata != nil) {
				sources = sources[:0]
				if bundle.OutwardAna != nil {
					ok, cerr := bundle.OutwardAna(ctx, srcImg.ana, ed.label, targetOldPayload)
					if cerr != nil {
						return cerr
					}
					if ok {
						sources = append(sources, anaVertex[ed.source])
					}
				}
				if bundle.OutwardCata != nil {
					ok, cerr := bundle.OutwardCata(ctx, srcImg.cata, ed.label, targetOldPayload)
					if cerr != nil {
						return cerr
					}
					if ok {
						sources = append(sources, cataVertex[ed.source])
					}
				}
			}

			targets := []store.VertexID{anaVertex[ed.target]}
			if tgtImg.fissile && (bundle.InwardAna != nil || bundle.InwardCata != nil) {
				targets = targets[:0]
				if bundle.InwardAna != nil {
					ok, cerr := bundle.InwardAna(ctx, sourceOldPayload, ed.label, tgtImg.ana)
					if cerr != nil {
						return cerr
					}
					if ok {
						targets = append(targets, anaVertex[ed.target])
					}
				}
				if bundle.InwardCata != nil {
					ok, cerr := bundle.InwardCata(ctx, sourceOldPayload, ed.label, tgtImg.cata)
					if cerr != nil {
						return cerr
					}
					if ok {
						targets = append(targets, cataVertex[ed.target])
					}
				}
			}

			emu.Lock()
			for _, s := range sources {
				for _, tg := range targets {
					toAdd = append(toAdd, splitRouted[E]{source: s, label: label, target: tg})
				}
			}
			emu.Unlock()
			return nil
		}}
	}
	if k, rerr := sched.Run(ctx, items, kill); rerr != nil {
		return nil, k, rerr
	}
	for _, r := range toAdd {
		if _, aerr := out.AddEdge(r.source, r.target, r.label); aerr != nil && aerr != store.ErrDuplicateEdgeKey {
			return nil, lane.Misuse, aerr
		}
	}

	return out, lane.OK, nil
}

func payloadOf[V, E any](g *store.Graph[V, E], id store.VertexID) V {
	var zero V
	if v := g.Vertex(id); v != nil {
		return v.Payload()
	}
	return zero
}
