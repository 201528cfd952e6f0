package router

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/go-sockaddr"
	"github.com/stretchr/testify/require"

	"github.com/squaregear/theater/actor"
	"github.com/squaregear/theater/launcher"
	"github.com/squaregear/theater/persist/badgerstore"
)

func openTestStore(t *testing.T) *badgerstore.Store {
	t.Helper()
	store, err := badgerstore.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestFullStackMessageDeliveryAcrossTwoNodes wires a launcher, a durable
// badger-backed persister and a router together on each of two nodes and
// checks Send end to end: every message is delivered exactly once, whether
// placement.Home resolves it to the sending node (a local launcher.Deliver)
// or to the peer (a wire.EncodeMessage, SendReliable, NotifyMsg,
// wire.DecodeMessage round trip). Per-package unit tests cover each of
// those links in isolation; this exercises the whole chain together the way
// cmd/theaterd/main.go assembles it.
func TestFullStackMessageDeliveryAcrossTwoNodes(t *testing.T) {
	ip, _ := sockaddr.GetPrivateIP()
	if ip == "" {
		t.Skip("skipping: no private IP address can be found")
	}

	received := make(chan string, 64)
	newObserver := func(tag string) actor.Behavior {
		report := func(id string, msg actor.Message) actor.Verdict {
			received <- fmt.Sprintf("%s:%s:%v", tag, id, msg)
			return actor.OKNoPersist(msg)
		}
		return actor.Behavior{
			Name: "observer",
			Init: report,
			Process: func(state actor.State, id string, msg actor.Message) actor.Verdict {
				return report(id, msg)
			},
		}
	}

	store1 := openTestStore(t)

	reg1 := actor.NewRegistry()
	reg1.Register(newObserver("node1"))
	l1 := launcher.New(reg1, store1, nil, time.Minute, nil, nil, nil)
	r1, err := Join(Config{BindAddr: "127.0.0.1:0"}, l1, nil, nil)
	require.NoError(t, err)
	defer r1.Leave(time.Second)

	peer := fmt.Sprintf("127.0.0.1:%d", r1.ml.LocalNode().Port)

	store2 := openTestStore(t)

	reg2 := actor.NewRegistry()
	reg2.Register(newObserver("node2"))
	l2 := launcher.New(reg2, store2, nil, time.Minute, nil, nil, nil)
	r2, err := Join(Config{BindAddr: "127.0.0.1:0", KnownPeers: []string{peer}}, l2, nil, nil)
	require.NoError(t, err)
	defer r2.Leave(time.Second)

	require.Eventually(t, func() bool {
		return len(r1.View()) == 2 && len(r2.View()) == 2
	}, 5*time.Second, 50*time.Millisecond, "both nodes should converge on a two-member view")

	const total = 20
	for i := 0; i < total; i++ {
		addr := actor.Address{Type: "observer", ID: fmt.Sprintf("actor-%d", i)}
		// A plain string payload, not a []byte: it must survive local
		// delivery on whichever node turns out to be home without ever being
		// forced through a codec, and a wire.EncodeMessage/DecodeMessage
		// round trip without loss on whichever node it has to cross to.
		require.NoError(t, r1.Send(context.Background(), addr, "hello", fmt.Sprintf("corr-%d", i)))
	}

	require.Eventually(t, func() bool {
		return len(received) == total
	}, 5*time.Second, 50*time.Millisecond, "every send should be delivered exactly once, locally or across the wire")

	require.Eventually(t, func() bool {
		return l1.Len()+l2.Len() == total
	}, time.Second, 10*time.Millisecond, "every address should have materialised on exactly one of the two nodes")
}

// TestEvictedInstanceStateSurvivesPersistenceAndRedelivery exercises
// eviction-survives-persistence: stopping a live instance (as rebalance and
// the stopper's memory-pressure sweep both do via launcher.Evict) must not
// lose its last persisted state, and a later delivery to the same address
// must resume from exactly that state rather than starting over at Init.
func TestEvictedInstanceStateSurvivesPersistenceAndRedelivery(t *testing.T) {
	store := openTestStore(t)

	reg := actor.NewRegistry()
	reg.Register(actor.Behavior{
		Name: "counter",
		Init: func(id string, msg actor.Message) actor.Verdict { return actor.OK(1) },
		Process: func(state actor.State, id string, msg actor.Message) actor.Verdict {
			return actor.OK(state.(int) + 1)
		},
	})
	l := launcher.New(reg, store, nil, time.Minute, nil, nil, nil)

	addr := actor.Address{Type: "counter", ID: "durable-1"}
	ctx := context.Background()
	require.NoError(t, l.Deliver(ctx, addr, "incr"))
	require.NoError(t, l.Deliver(ctx, addr, "incr"))
	require.Eventually(t, func() bool {
		state, err := store.Get(ctx, addr)
		return err == nil && state.(int) == 2
	}, time.Second, 10*time.Millisecond, "state should reach 2 before eviction")

	l.Evict(addr)
	require.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, l.Deliver(ctx, addr, "incr"))
	require.Eventually(t, func() bool {
		state, err := store.Get(ctx, addr)
		return err == nil && state.(int) == 3
	}, time.Second, 10*time.Millisecond, "redelivery after eviction should resume from the persisted state, not Init")
}
