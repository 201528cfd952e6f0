package router

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/go-sockaddr"
	"github.com/stretchr/testify/require"

	"github.com/squaregear/theater/actor"
	"github.com/squaregear/theater/placement"
)

// TestRebalanceEvictsAddressesThatBelongToPeer exercises rebalance directly:
// it never needs a live second node, since rebalance only recomputes home
// over {self, peer} and evicts locally — the peer's own handling of the
// addresses that move to it is exactly what TestSendDeliversLocallyWhenSelfIsHome
// and TestFullStackMessageDeliveryAcrossTwoNodes already cover.
func TestRebalanceEvictsAddressesThatBelongToPeer(t *testing.T) {
	ip, _ := sockaddr.GetPrivateIP()
	if ip == "" {
		t.Skip("skipping: no private IP address can be found")
	}

	l := newTestLauncher()
	r, err := Join(Config{BindAddr: "127.0.0.1:0"}, l, nil, nil)
	require.NoError(t, err)
	defer r.Leave(time.Second)

	peer := placement.Node("simulated-peer")

	var addrs []actor.Address
	for i := 0; i < 20; i++ {
		addr := actor.Address{Type: "counter", ID: fmt.Sprintf("actor-%d", i)}
		require.NoError(t, l.Deliver(context.Background(), addr, "create"))
		addrs = append(addrs, addr)
	}
	require.Eventually(t, func() bool { return l.Len() == len(addrs) }, time.Second, 10*time.Millisecond)

	pair := []placement.Node{r.Self(), peer}
	var shouldMove, shouldStay []actor.Address
	for _, addr := range addrs {
		home, ok := placement.Home(pair, addr.Type, addr.ID)
		require.True(t, ok)
		if home == peer {
			shouldMove = append(shouldMove, addr)
		} else {
			shouldStay = append(shouldStay, addr)
		}
	}
	require.NotEmpty(t, shouldMove, "rendezvous hashing over 20 addresses should hand at least one to the simulated peer")

	r.rebalance(peer)

	require.Eventually(t, func() bool {
		live := asSet(l.Addresses())
		for _, a := range shouldMove {
			if live[a] {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond, "every address whose home moved to peer should have been evicted locally")

	live := asSet(l.Addresses())
	for _, a := range shouldStay {
		require.True(t, live[a], "address %s should remain resident since its home didn't move", a)
	}
}

func asSet(addrs []actor.Address) map[actor.Address]bool {
	out := make(map[actor.Address]bool, len(addrs))
	for _, a := range addrs {
		out[a] = true
	}
	return out
}
