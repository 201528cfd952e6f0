// Package persist declares the pluggable durable-storage contract every
// instance mirrors its state through, plus an optional eviction-notification
// hook for a bounded-capacity backend.
package persist

import (
	"context"
	"errors"

	"github.com/squaregear/theater/actor"
)

// ErrNotFound is returned by Get when the key has never been put, or was
// deleted. It is distinct from a backend error: callers translate it to the
// not-yet-materialised branch of the startup sequence, not to
// actorerr.Persister.
var ErrNotFound = errors.New("persist: not found")

// Persister is the external, pluggable durable key-value backend keyed by
// (type, id). Implementations must be safe to call concurrently — the
// runtime may call Get/Put/Delete from many instance loops at once — and
// Delete must be idempotent with respect to an absent key.
//
// The runtime does not retry: a failing Put means the update is not
// durable, and a failing Get aborts materialisation of the instance for
// that message, confined to that one instance.
type Persister interface {
	Get(ctx context.Context, addr actor.Address) (actor.State, error)
	Put(ctx context.Context, addr actor.Address, state actor.State) error
	Delete(ctx context.Context, addr actor.Address) error
}

// EvictionListener receives a notification when a bounded-capacity
// Persister evicts an entry to make room for another. The runtime core
// never registers one itself; it exists so an application-level tiered
// storage policy can react. The default persister (badgerstore) has no
// capacity bound and never calls it.
type EvictionListener interface {
	RemovedFromStorage(providerName string, addr actor.Address, state actor.State)
}
