// Package stripe provides a keyed lock pool backed by a fixed number of
// lazily created, reference counted stripes.
//
// Every key hashes to one of N stripes. The lock for a stripe exists only
// while at least one caller holds it or waits on it; once the last reference
// is dropped the entry is removed from the table, so memory is bounded by the
// number of stripes in use rather than by the number of keys ever seen.
//
// Equal keys always map to the same stripe, so two concurrent callers for the
// same key always contend on the same lock instance. Unequal keys usually map
// to different stripes but may collide; a collision only costs parallelism,
// never correctness.
package stripe

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultStripes is the stripe count used when none is configured.
const DefaultStripes = 32768

// entry is the lock for one stripe plus the number of callers holding or
// waiting on it. refs is guarded by Pool.mu.
type entry struct {
	sem  *semaphore.Weighted
	refs int
}

func newEntry() *entry {
	return &entry{sem: semaphore.NewWeighted(1)}
}

// Pool maps keys to stripe locks.
// Pool is safe for concurrent use. The zero value is not usable; call New.
type Pool[K comparable] struct {
	hash    func(K) uint64
	stripes uint64

	mu      sync.Mutex
	entries map[uint64]*entry
}

// New creates a pool for keys of type K.
//
// Example:
//
//	pool := stripe.New[string](stripe.WithStripes(1024))
//	h, err := pool.Acquire(ctx, "user-42")
//	if err != nil {
//	    return err
//	}
//	defer h.Release()
func New[K comparable](opts ...Option) *Pool[K] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool[K]{
		stripes: uint64(o.stripes),
		entries: make(map[uint64]*entry),
	}
	p.hash = resolveHasher[K](o.hasher)
	return p
}

// Stripes returns the configured number of stripes.
func (p *Pool[K]) Stripes() int {
	return int(p.stripes)
}

// StripeOf returns the stripe index key maps to.
func (p *Pool[K]) StripeOf(key K) uint64 {
	return p.hash(key) % p.stripes
}

// Len returns the number of stripes that currently have a live lock.
// A pool with no holders and no waiters reports zero.
func (p *Pool[K]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Acquire blocks until the lock for key is held or ctx is done.
//
// On success the returned Handle must be released exactly once; extra calls
// to Release are ignored. If ctx is done first, Acquire returns ctx.Err() and
// leaves no reference behind.
func (p *Pool[K]) Acquire(ctx context.Context, key K) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := p.StripeOf(key)
	e := p.ref(idx)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		p.unref(idx, e)
		return nil, err
	}
	return &Handle{unref: p.unref, stripe: idx, e: e}, nil
}

// TryAcquire takes the lock for key only if it is free right now.
func (p *Pool[K]) TryAcquire(key K) (*Handle, bool) {
	idx := p.StripeOf(key)
	e := p.ref(idx)

	if !e.sem.TryAcquire(1) {
		p.unref(idx, e)
		return nil, false
	}
	return &Handle{unref: p.unref, stripe: idx, e: e}, true
}

// ref returns the entry for idx, creating it if needed, and counts the
// caller as a reference. Lookup, creation and the increment happen under one
// critical section so two callers can never create two locks for a stripe.
func (p *Pool[K]) ref(idx uint64) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[idx]
	if !ok {
		e = newEntry()
		p.entries[idx] = e
	}
	e.refs++
	return e
}

// unref drops one reference and removes the entry once nobody uses it.
func (p *Pool[K]) unref(idx uint64, e *entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e.refs--
	if e.refs <= 0 {
		if current, ok := p.entries[idx]; ok && current == e {
			delete(p.entries, idx)
		}
	}
}

// Handle is a held stripe lock.
type Handle struct {
	unref    func(uint64, *entry)
	stripe   uint64
	e        *entry
	released atomic.Bool
}

// Stripe returns the stripe index this handle locks.
func (h *Handle) Stripe() uint64 {
	return h.stripe
}

// Release unlocks the stripe and drops the caller's reference.
// It is safe to call more than once; only the first call has an effect.
func (h *Handle) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	// Unlock before unref: waiters still hold references, so the entry
	// survives until the last of them releases.
	h.e.sem.Release(1)
	h.unref(h.stripe, h.e)
}
