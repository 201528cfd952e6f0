// Package memstore is a pure in-memory Persister, grounded on Alertmanager's
// provider/mem.Alerts: a single RWMutex-guarded map, goroutine-safe, no
// disk I/O. Used for tests and for the toy "no persistence" configuration;
// the server default is persist/badgerstore.
package memstore

import (
	"context"
	"sync"

	"github.com/squaregear/theater/actor"
	"github.com/squaregear/theater/persist"
)

// Store is a map-backed Persister keyed by actor.Address.
type Store struct {
	mtx   sync.RWMutex
	state map[actor.Address]actor.State
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{state: make(map[actor.Address]actor.State)}
}

// Get implements persist.Persister.
func (s *Store) Get(_ context.Context, addr actor.Address) (actor.State, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	st, ok := s.state[addr]
	if !ok {
		return nil, persist.ErrNotFound
	}
	return st, nil
}

// Put implements persist.Persister.
func (s *Store) Put(_ context.Context, addr actor.Address, state actor.State) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.state[addr] = state
	return nil
}

// Delete implements persist.Persister. Deleting an absent key is a no-op,
// so repeated or out-of-order deletes are always safe.
func (s *Store) Delete(_ context.Context, addr actor.Address) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	delete(s.state, addr)
	return nil
}

// Len reports the number of entries currently held, for tests.
func (s *Store) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.state)
}
