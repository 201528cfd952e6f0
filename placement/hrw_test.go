package placement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHomeEmptyView(t *testing.T) {
	_, ok := Home(nil, "counter", "1")
	require.False(t, ok)
}

func TestHomeIsDeterministic(t *testing.T) {
	view := []Node{"a", "b", "c"}

	n1, ok1 := Home(view, "counter", "42")
	n2, ok2 := Home(view, "counter", "42")
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, n1, n2)

	// Order of the view must not affect the outcome: HRW picks by weight,
	// not by position.
	shuffled := []Node{"c", "a", "b"}
	n3, ok3 := Home(shuffled, "counter", "42")
	require.True(t, ok3)
	require.Equal(t, n1, n3)
}

func TestHomeMinimalRelocation(t *testing.T) {
	// Removing a node from the view must only relocate the addresses whose
	// home was that node; everyone else's home is unaffected.
	full := []Node{"a", "b", "c", "d"}
	reduced := []Node{"a", "b", "d"}

	moved, unmoved := 0, 0
	for i := 0; i < 200; i++ {
		id := string(rune('A' + i%26))
		before, ok := Home(full, "counter", id)
		require.True(t, ok)
		if before == "c" {
			continue
		}
		after, ok := Home(reduced, "counter", id)
		require.True(t, ok)
		if after == before {
			unmoved++
		} else {
			moved++
		}
	}
	require.Zero(t, moved, "removing an uninvolved node must not relocate addresses that weren't homed there")
	require.Positive(t, unmoved)
}

func TestHomeDistinguishesFieldBoundaries(t *testing.T) {
	// The length-prefixed encoding must keep ("ab","c") distinct from
	// ("a","bc"): a naive concatenation would collide.
	d1 := weigh("n", "ab", "c")
	d2 := weigh("n", "a", "bc")
	require.NotEqual(t, d1, d2)
}
