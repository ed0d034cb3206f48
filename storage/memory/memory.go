// Package memory shares one in-process map between any number of Stores,
// the way browser tabs share local storage.
package memory

import (
	"context"
	"sync"

	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/storage"
)

type watcher struct {
	origin string
	fn     func(storage.Change)
}

// Backend is the shared medium.
type Backend struct {
	mu       sync.RWMutex
	values   map[string]string
	version  uint64
	watchers map[uint64]watcher
	nextID   uint64
}

func NewBackend() *Backend {
	return &Backend{
		values:   make(map[string]string),
		watchers: make(map[uint64]watcher),
	}
}

// Open returns a new Store with its own origin on b.
func (b *Backend) Open() *Store {
	return &Store{backend: b, origin: storage.NewOrigin()}
}

// Version is the number of writes made so far.
func (b *Backend) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

func (b *Backend) write(origin string, key string, apply func(values map[string]string)) {
	b.mu.Lock()
	apply(b.values)
	b.version++
	change := storage.Change{Key: key, Version: b.version, Origin: origin}
	var targets []func(storage.Change)
	for _, w := range b.watchers {
		if w.origin != origin {
			targets = append(targets, w.fn)
		}
	}
	b.mu.Unlock()

	// Delivered asynchronously so a watcher may write back without deadlock.
	for _, fn := range targets {
		go fn(change)
	}
}

var _ storage.Store = (*Store)(nil)

type Store struct {
	backend *Backend
	origin  string

	mu     sync.Mutex
	closed bool
	ids    []uint64
}

func (s *Store) Origin() string {
	return s.origin
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	if s.isClosed() {
		return "", false, autherrors.ErrClosed
	}
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	v, ok := s.backend.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	if s.isClosed() {
		return autherrors.ErrClosed
	}
	s.backend.write(s.origin, key, func(values map[string]string) {
		values[key] = value
	})
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	if s.isClosed() {
		return autherrors.ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}
	changed := keys[0]
	if len(keys) > 1 {
		changed = ""
	}
	s.backend.write(s.origin, changed, func(values map[string]string) {
		for _, k := range keys {
			delete(values, k)
		}
	})
	return nil
}

func (s *Store) Watch(fn func(storage.Change)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, autherrors.ErrClosed
	}

	s.backend.mu.Lock()
	s.backend.nextID++
	id := s.backend.nextID
	s.backend.watchers[id] = watcher{origin: s.origin, fn: fn}
	s.backend.mu.Unlock()
	s.ids = append(s.ids, id)

	var once sync.Once
	return func() {
		once.Do(func() { s.backend.unwatch(id) })
	}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, id := range s.ids {
		s.backend.unwatch(id)
	}
	s.ids = nil
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (b *Backend) unwatch(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.watchers, id)
}
