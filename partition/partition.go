// Package partition implements a disjoint-set (union-find) forest over
// graph vertices: path-compressed Find, rank-weighted Union, cached
// per-root class sizes. Consumed by the classify/merge kernels and
// exposed to callers for partition inspection.
package partition

import (
	"sync"

	"github.com/loomkit/loom/store"
)

type node struct {
	mu     sync.Mutex
	parent store.VertexID
	rank   int
	size   int // valid only at a root
}

// Partition is a disjoint-set forest over the store.VertexID values
// registered with Add, or registered implicitly by Find.
type Partition struct {
	mu    sync.RWMutex
	nodes map[store.VertexID]*node
}

// New returns an empty Partition. Call Add for every vertex that should
// start in its own singleton class before calling Find/Union on it.
func New() *Partition {
	return &Partition{nodes: make(map[store.VertexID]*node)}
}

// Add registers id as a new singleton class if it is not already known.
func (p *Partition) Add(id store.VertexID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.nodes[id]; ok {
		return
	}
	p.nodes[id] = &node{parent: id, rank: 0, size: 1}
}

func (p *Partition) get(id store.VertexID) *node {
	p.mu.RLock()
	n := p.nodes[id]
	p.mu.RUnlock()
	return n
}

// Find returns the canonical representative of id's class, compressing
// the path from id to the root as it walks up. Returns id itself,
// registering it as a fresh singleton, if it was never Added.
func (p *Partition) Find(id store.VertexID) store.VertexID {
	n := p.get(id)
	if n == nil {
		p.Add(id)
		return id
	}
	return p.findNode(id, n)
}

func (p *Partition) findNode(id store.VertexID, n *node) store.VertexID {
	n.mu.Lock()
	parent := n.parent
	n.mu.Unlock()
	if parent == id {
		return id
	}
	root := p.Find(parent)
	n.mu.Lock()
	n.parent = root
	n.mu.Unlock()
	return root
}

// Union merges the classes containing x and y; uniting a class with
// itself is a no-op. The two roots' locks are acquired in canonical
// (lower VertexID first) order to avoid deadlock against a concurrent
// Union(y, x).
func (p *Partition) Union(x, y store.VertexID) {
	rx := p.Find(x)
	ry := p.Find(y)
	if rx == ry {
		return
	}

	first, second := rx, ry
	if second < first {
		first, second = second, first
	}
	nFirst := p.get(first)
	nSecond := p.get(second)

	nFirst.mu.Lock()
	nSecond.mu.Lock()

	// If a concurrent Union relinked one of these roots between Find and
	// acquiring the locks, linking under the stale root would overwrite
	// that link; release both locks and resolve the roots again.
	if nFirst.parent != first || nSecond.parent != second {
		nSecond.mu.Unlock()
		nFirst.mu.Unlock()
		p.Union(x, y)
		return
	}
	defer nSecond.mu.Unlock()
	defer nFirst.mu.Unlock()

	switch {
	case nFirst.rank < nSecond.rank:
		nFirst.parent = second
		nSecond.size += nFirst.size
	case nFirst.rank > nSecond.rank:
		nSecond.parent = first
		nFirst.size += nSecond.size
	default:
		nSecond.parent = first
		nFirst.size += nSecond.size
		nFirst.rank++
	}
}

// ClassOf is an alias for Find, named to match the classify kernel's
// user-facing vocabulary.
func (p *Partition) ClassOf(id store.VertexID) store.VertexID { return p.Find(id) }

// ClassSize returns the number of vertices in the class rooted at root's
// canonical representative found via Find(root).
func (p *Partition) ClassSize(root store.VertexID) int {
	canon := p.Find(root)
	n := p.get(canon)
	if n == nil {
		return 0
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.size
}

// Classes groups every registered vertex by canonical class
// representative. O(n α(n)).
func (p *Partition) Classes() map[store.VertexID][]store.VertexID {
	p.mu.RLock()
	ids := make([]store.VertexID, 0, len(p.nodes))
	for id := range p.nodes {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	out := make(map[store.VertexID][]store.VertexID)
	for _, id := range ids {
		r := p.Find(id)
		out[r] = append(out[r], id)
	}
	return out
}
