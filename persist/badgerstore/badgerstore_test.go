package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/squaregear/theater/actor"
	"github.com/squaregear/theater/persist"
)

func TestStoreGetPutDelete(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer s.Close()

	addr := actor.Address{Type: "counter", ID: "1"}

	_, err = s.Get(ctx, addr)
	require.ErrorIs(t, err, persist.ErrNotFound)

	require.NoError(t, s.Put(ctx, addr, "seven"))
	got, err := s.Get(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, "seven", got)

	require.NoError(t, s.Delete(ctx, addr))
	_, err = s.Get(ctx, addr)
	require.ErrorIs(t, err, persist.ErrNotFound)
}

func TestStoreDeleteAbsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer s.Close()

	addr := actor.Address{Type: "counter", ID: "missing"}
	require.NoError(t, s.Delete(ctx, addr))
	require.NoError(t, s.Delete(ctx, addr))
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	addr := actor.Address{Type: "counter", ID: "1"}

	s1, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s1.Put(ctx, addr, "durable"))
	require.NoError(t, s1.Close())

	s2, err := Open(dir, nil)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, "durable", got)
}

func TestKeySeparatesTypeAndID(t *testing.T) {
	a := actor.Address{Type: "coun", ID: "ter/1"}
	b := actor.Address{Type: "counter", ID: "1"}
	require.NotEqual(t, key(a), key(b))
}
