// Package memstore is an in-memory store.Backend.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/interstellar/slingshot/vending/store"
)

// Store is a store.Backend held in a map.
type Store struct {
	mu sync.RWMutex
	m  map[string][]byte
}

var _ store.Backend = (*Store)(nil)

// New produces an empty Store.
func New() *Store {
	return &Store{m: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.m[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Range(ctx context.Context, prefix string, fn func(string, []byte) error) error {
	// Snapshot under the lock so fn may call back into s.
	s.mu.RLock()
	var keys []string
	vals := make(map[string][]byte)
	for k, v := range s.m {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
			vals[k] = append([]byte(nil), v...)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, vals[k]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Apply(_ context.Context, writes []store.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range writes {
		s.m[w.Key] = append([]byte(nil), w.Value...)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
