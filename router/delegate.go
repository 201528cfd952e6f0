package router

import (
	"context"

	"github.com/hashicorp/memberlist"

	"github.com/squaregear/theater/actor"
	"github.com/squaregear/theater/placement"
	"github.com/squaregear/theater/wire"
)

// delegate implements memberlist.Delegate and memberlist.EventDelegate,
// mirroring cluster/delegate.go's split between gossiped shared state
// (not needed here — this runtime has none) and peer lifecycle callbacks
// (needed here, to keep the placement view and rebalance sweep current).
type delegate struct {
	r *Router
}

func newDelegate(r *Router) *delegate { return &delegate{r: r} }

// NodeMeta advertises a single byte: whether this node is client-only. Every
// peer's rebuildView filters on it, so a client-only node is never chosen as
// a placement target anywhere in the cluster, including by itself.
func (d *delegate) NodeMeta(limit int) []byte {
	if d.r.cfg.ClientOnly {
		return []byte{1}
	}
	return []byte{0}
}

// NotifyMsg handles every user message this node receives, whether sent
// via SendReliable/SendBestEffort (our deliver/announce envelopes) or the
// broadcast queue (unused here).
func (d *delegate) NotifyMsg(b []byte) {
	d.r.metrics.messagesReceived.Inc()
	d.r.metrics.messagesReceivedSize.Add(float64(len(b)))

	env, err := wire.Unmarshal(b)
	if err != nil {
		d.r.logger.Warn("failed to decode cluster message", "error", err)
		return
	}

	switch env.Kind {
	case wire.KindDeliver:
		addr := actor.Address{Type: env.ActorType, ID: env.ActorID}
		msg, err := wire.DecodeMessage(env.Payload)
		if err != nil {
			d.r.logger.Warn("failed to decode remote message payload", "actor_type", addr.Type, "actor_id", addr.ID, "error", err)
			return
		}
		// Deliver only enqueues onto the target instance's growable mailbox
		// and returns, so this never blocks memberlist's own message loop
		// even if the instance is backed up.
		if err := d.r.launcher.Deliver(context.Background(), addr, msg); err != nil {
			d.r.logger.Warn("local delivery of remote message failed", "actor_type", addr.Type, "actor_id", addr.ID, "error", err)
		}

	case wire.KindAnnounce:
		d.r.rebuildView()

	default:
		d.r.logger.Warn("unknown cluster message kind", "kind", env.Kind)
	}
}

// GetBroadcasts, LocalState and MergeRemoteState are unused: this runtime
// has no shared state to gossip beyond membership itself, so they are
// no-ops rather than adaptations of Alertmanager's own alert/silence
// state sync.
func (d *delegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *delegate) LocalState(join bool) []byte                { return nil }
func (d *delegate) MergeRemoteState(buf []byte, join bool)      {}

// NotifyJoin rebuilds the placement view, announces our presence to the
// new peer so it rebuilds its own view, and rebalances any addresses this
// node should hand off to it. A client-only peer is never a placement
// candidate (see NodeMeta), so neither announce nor rebalance has anything
// to do for one.
func (d *delegate) NotifyJoin(n *memberlist.Node) {
	d.r.logger.Debug("peer joined", "peer", n.Name, "addr", n.Address())
	d.r.rebuildView()
	if n.Name == d.r.ml.LocalNode().Name || isClientOnlyMeta(n.Meta) {
		return
	}
	go d.r.announce(n)
	go d.r.rebalance(placement.Node(n.Name))
}

// NotifyLeave rebuilds the placement view so future sends stop targeting
// the departed peer.
func (d *delegate) NotifyLeave(n *memberlist.Node) {
	d.r.logger.Debug("peer left", "peer", n.Name, "addr", n.Address())
	d.r.rebuildView()
}

// NotifyUpdate rebuilds the placement view in case a peer's NodeMeta
// changed, e.g. flipping its client-only flag.
func (d *delegate) NotifyUpdate(n *memberlist.Node) {
	d.r.rebuildView()
}
