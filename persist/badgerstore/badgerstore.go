// Package badgerstore is the runtime's bundled default Persister: an
// in-cluster disk-resident key-value store, deliberately simple (no
// replication, no compaction tuning, one process owns the directory). It is
// grounded on Alertmanager's blobstore/main.go, the one
// package in that codebase that uses an embedded disk KV store
// (dgraph-io/badger/v4) rather than the Postgres/SQLite/etcd backends used
// elsewhere there.
package badgerstore

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"

	"github.com/squaregear/theater/actor"
	"github.com/squaregear/theater/persist"
)

// Store is a Badger-backed Persister. Keys are "type/id"; values are the
// gob-encoded state, via persist.Codec.
type Store struct {
	db     *badger.DB
	codec  persist.Codec
	logger *slog.Logger
}

// Open creates or opens a Badger database rooted at dir/actors.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(filepath.Join(dir, "actors")).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// key encodes addr as a length-prefixed byte string so a type/id pair that
// happens to contain a separator character can never collide with a
// different pair, mirroring placement.weigh's own field-boundary encoding.
func key(addr actor.Address) []byte {
	out := make([]byte, 0, 8+len(addr.Type)+8+len(addr.ID))
	out = appendField(out, addr.Type)
	out = appendField(out, addr.ID)
	return out
}

func appendField(b []byte, s string) []byte {
	var lenBuf [8]byte
	l := len(s)
	for i := 0; i < 8; i++ {
		lenBuf[i] = byte(l >> (8 * i))
	}
	b = append(b, lenBuf[:]...)
	b = append(b, s...)
	return b
}

// Get implements persist.Persister.
func (s *Store) Get(_ context.Context, addr actor.Address) (actor.State, error) {
	var state actor.State
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(addr))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, derr := s.codec.Decode(val)
			if derr != nil {
				return derr
			}
			state = decoded
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Put implements persist.Persister.
func (s *Store) Put(_ context.Context, addr actor.Address, state actor.State) error {
	data, err := s.codec.Encode(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(addr), data)
	})
}

// Delete implements persist.Persister. Deleting an absent key is a no-op in
// Badger, so repeated or out-of-order deletes are always safe.
func (s *Store) Delete(_ context.Context, addr actor.Address) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(addr))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}
