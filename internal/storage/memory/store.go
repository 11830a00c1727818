package memory

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/yndnr/canvasmesh-go/internal/storage"
	"github.com/yndnr/canvasmesh-go/pkg/cmap"
)

// Store implements storage.Store in memory.
type Store struct {
	items  *cmap.Map[string, []byte]
	closed atomic.Bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		items: cmap.New[string, []byte](),
	}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed
	}
	v, ok := s.items.Get(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(v), nil
}

// Put stores a copy of value under key.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	s.items.Set(key, clone(value))
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	s.items.Delete(key)
	return nil
}

// List returns keys with the given prefix in lexical order.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed
	}
	var keys []string
	s.items.Range(func(k string, _ []byte) bool {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
		return true
	})
	sort.Strings(keys)
	return keys, nil
}

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	return s.items.Count()
}

// Close marks the store closed. Stored values are dropped.
func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.items.Clear()
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
