// Package pool implements the label pool: a hash-consed,
// reference-counted ownership table for user payloads, sharded by hash
// so concurrent interning from different lanes rarely contends on the
// same lock.
package pool

import (
	"errors"
	"sync"
)

// ErrOutOfMemory is returned by Intern when the pool's test-only
// allocation limiter (see WithLimiter) has exhausted its budget. This
// never happens in production use; Go's allocator panics rather than
// returning an error, so the limiter exists purely to make the
// out-of-memory kernel-abort path reproducible in tests.
var ErrOutOfMemory = errors.New("pool: allocation limit exceeded")

type entry[T any] struct {
	value    T
	refcount int
}

type shard[T any] struct {
	mu      sync.Mutex
	entries map[uint64][]*entry[T] // hash bucket -> candidate entries (collision chain)
}

// Pool is a hash-consed, refcounted table of payloads of type T. Intern
// returns a Handle shared by every caller that interns an equal value;
// Release decrements the refcount and invokes destroy exactly once,
// when it reaches zero.
type Pool[T any] struct {
	hash    func(T) uint64
	equal   func(T, T) bool
	destroy func(T)

	shards  []shard[T]
	limiter *limiter // nil unless WithLimiter is used
}

// Handle identifies one interned payload within its Pool.
type Handle[T any] struct {
	shard  int
	bucket uint64
	entry  *entry[T]
}

// Value returns the payload the handle refers to.
func (h Handle[T]) Value() T { return h.entry.value }

// Option configures a Pool at construction time.
type Option func(*config)

type config struct {
	limiterBudget int
	limiterSet    bool
}

// WithLimiter caps the pool at budget successful allocations of new
// entries; the (budget+1)th Intern of a previously-unseen value fails
// with ErrOutOfMemory instead of allocating. Retains of already-interned
// values never count against the budget. Test-only fault injection.
func WithLimiter(budget int) Option {
	return func(c *config) { c.limiterBudget = budget; c.limiterSet = true }
}

type limiter struct {
	mu        sync.Mutex
	remaining int
}

func (l *limiter) take() bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remaining <= 0 {
		return false
	}
	l.remaining--
	return true
}

// New constructs a Pool sharded into shardCount buckets (callers
// typically pass their lane count). hash and equal
// must together form a total equivalence over T; destroy is invoked
// exactly once per interned value, when its refcount reaches zero, and
// may be nil if T needs no cleanup.
func New[T any](shardCount int, hash func(T) uint64, equal func(T, T) bool, destroy func(T), opts ...Option) *Pool[T] {
	if shardCount < 1 {
		shardCount = 1
	}
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	p := &Pool[T]{
		hash:    hash,
		equal:   equal,
		destroy: destroy,
		shards:  make([]shard[T], shardCount),
	}
	for i := range p.shards {
		p.shards[i].entries = make(map[uint64][]*entry[T])
	}
	if cfg.limiterSet {
		p.limiter = &limiter{remaining: cfg.limiterBudget}
	}
	return p
}

func (p *Pool[T]) shardFor(h uint64) int {
	return int(h % uint64(len(p.shards)))
}

// Intern returns a Handle for value, reusing an existing entry equal
// under the pool's predicate (and bumping its refcount) or allocating a
// new one at refcount 1. Returns ErrOutOfMemory if a limiter is
// configured and exhausted on a new allocation.
func (p *Pool[T]) Intern(value T) (Handle[T], error) {
	h := p.hash(value)
	si := p.shardFor(h)
	s := &p.shards[si]

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries[h] {
		if p.equal(e.value, value) {
			e.refcount++
			return Handle[T]{shard: si, bucket: h, entry: e}, nil
		}
	}

	if !p.limiter.take() {
		return Handle[T]{}, ErrOutOfMemory
	}
	e := &entry[T]{value: value, refcount: 1}
	s.entries[h] = append(s.entries[h], e)
	return Handle[T]{shard: si, bucket: h, entry: e}, nil
}

// Retain increments h's refcount.
func (p *Pool[T]) Retain(h Handle[T]) {
	s := &p.shards[h.shard]
	s.mu.Lock()
	defer s.mu.Unlock()
	h.entry.refcount++
}

// Release decrements h's refcount, invoking the pool's destroy callback
// and removing the entry once the count reaches zero. Release on an
// already-zero handle is a programmer error and is a no-op here (the
// entry was already unlinked); callers that need to detect
// double-release must track that themselves.
func (p *Pool[T]) Release(h Handle[T]) {
	s := &p.shards[h.shard]
	s.mu.Lock()
	h.entry.refcount--
	dead := h.entry.refcount <= 0
	if dead {
		bucket := s.entries[h.bucket]
		for i, e := range bucket {
			if e == h.entry {
				s.entries[h.bucket] = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if dead && p.destroy != nil {
		p.destroy(h.entry.value)
	}
}

// Len returns the number of distinct live entries across all shards.
// O(shards); intended for tests and diagnostics, not hot paths.
func (p *Pool[T]) Len() int {
	n := 0
	for i := range p.shards {
		p.shards[i].mu.Lock()
		for _, bucket := range p.shards[i].entries {
			n += len(bucket)
		}
		p.shards[i].mu.Unlock()
	}
	return n
}
