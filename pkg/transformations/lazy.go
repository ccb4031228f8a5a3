package transformations

import (
	"sync"
	"sync/atomic"
)

// Applier applies the transformations of a domain between two versions
type Applier interface {
	Apply(from, to string, data interface{}) (interface{}, error)
}

var (
	_ Applier = (*Manager)(nil)
	_ Applier = (*Lazy)(nil)
)

// Lazy defers building a Manager until it is first used. Concurrent first
// callers block until a single build completes; afterwards the built
// manager is returned without locking. A failed build is not cached.
type Lazy struct {
	build func() (*Manager, error)
	mu    sync.Mutex
	mgr   atomic.Pointer[Manager]
}

// NewLazy wraps a manager constructor
func NewLazy(build func() (*Manager, error)) *Lazy {
	return &Lazy{build: build}
}

// Manager returns the manager, building it on first use
func (l *Lazy) Manager() (*Manager, error) {
	if mgr := l.mgr.Load(); mgr != nil {
		return mgr, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if mgr := l.mgr.Load(); mgr != nil {
		return mgr, nil
	}

	mgr, err := l.build()
	if err != nil {
		return nil, err
	}
	l.mgr.Store(mgr)
	return mgr, nil
}

// Built reports whether the manager has been constructed
func (l *Lazy) Built() bool {
	return l.mgr.Load() != nil
}

// Apply implements Applier
func (l *Lazy) Apply(from, to string, data interface{}) (interface{}, error) {
	mgr, err := l.Manager()
	if err != nil {
		return nil, err
	}
	return mgr.Apply(from, to, data)
}
