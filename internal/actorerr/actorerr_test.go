package actorerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	reason := errors.New("disk full")
	err := Persister("put", "counter/1", reason)
	require.Equal(t, "persister_error: put counter/1: disk full", err.Error())

	noReason := NoHomeNode("counter/1")
	require.Equal(t, "no_home_node: counter/1", noReason.Error())
}

func TestErrorUnwrap(t *testing.T) {
	reason := errors.New("disk full")
	err := Persister("get", "counter/1", reason)
	require.ErrorIs(t, err, reason)
}

func TestErrorIsComparesKind(t *testing.T) {
	a := Persister("get", "counter/1", errors.New("x"))
	b := Persister("put", "counter/2", errors.New("y"))
	require.True(t, errors.Is(a, b), "two persister errors should match by kind regardless of detail")

	c := NoHomeNode("counter/3")
	require.False(t, errors.Is(a, c))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "persister_error", KindPersister.String())
	require.Equal(t, "actor_callback_crash", KindCallbackCrash.String())
	require.Equal(t, "no_home_node", KindNoHomeNode.String())
	require.Equal(t, "stale_handle", KindStaleHandle.String())
	require.Equal(t, "topology_drift", KindTopologyDrift.String())
}
