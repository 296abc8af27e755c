// Package memory provides an in-process cart.Store.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/cart-keeper/internal/domain/cart"
)

var _ cart.Store = (*Store)(nil)

// Store keeps values in a map. It does not survive a restart.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, cart.ErrNoValue
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}
