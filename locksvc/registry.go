// Package locksvc implements the Local Snapshot Lock Registry (C6): the
// only process-wide mutable structure this engine owns. It hands out an
// exclusive, scoped lock per canonical local path so that concurrent
// Loaders in the same process never read, mutate, or delete the same
// snapshot directory at once.
package locksvc

import "sync"

// Registry is a keyed mutex over local path strings. The zero value is
// ready to use; production code shares a single instance, but Registry is
// an injectable service rather than a package-level global so tests can
// construct isolated instances.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu       sync.Mutex
	refCount int
}

// New returns a ready-to-use Registry.
func New() *Registry {
	return &Registry{locks: make(map[string]*entry)}
}

// Guard releases the lock it was returned by Acquire. It is safe, and
// required, to call Release exactly once per Acquire, including on every
// error and unwind path -- defer it immediately after Acquire succeeds.
type Guard struct {
	r    *Registry
	path string
	e    *entry
}

// Acquire blocks until the caller holds the exclusive lock for path.
// Acquisitions on distinct paths never block each other.
func (r *Registry) Acquire(path string) *Guard {
	r.mu.Lock()
	if r.locks == nil {
		r.locks = make(map[string]*entry)
	}
	e, ok := r.locks[path]
	if !ok {
		e = &entry{}
		r.locks[path] = e
	}
	e.refCount++
	r.mu.Unlock()

	e.mu.Lock()
	return &Guard{r: r, path: path, e: e}
}

// Release unlocks and, if no other goroutine is waiting on this path,
// removes the bookkeeping entry so the registry does not grow unbounded
// over the process lifetime.
func (g *Guard) Release() {
	g.r.mu.Lock()
	g.e.refCount--
	if g.e.refCount == 0 {
		delete(g.r.locks, g.path)
	}
	g.r.mu.Unlock()
	g.e.mu.Unlock()
}
