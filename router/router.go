// Package router is the cluster membership and message-routing layer: it
// gossips membership via hashicorp/memberlist, derives the placement view
// from the live member list, and implements send(type, id, message) by
// either delivering locally (via a launcher) or forwarding the wire
// envelope to the home node. It is grounded on cluster/cluster.go and
// cluster/delegate.go (memberlist.Join setup, Peer's peers map + peerLock,
// peerJoin/peerLeave/peerUpdate handlers, prometheus metric registration,
// ulid node naming, a logWriter adapter) — adapted from gossiping shared
// alert/silence state to gossiping pure membership, since this runtime has
// no distributed state to merge beyond "who is in the cluster".
package router

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/memberlist"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"

	"log/slog"

	"github.com/squaregear/theater/actor"
	"github.com/squaregear/theater/internal/actorerr"
	"github.com/squaregear/theater/launcher"
	"github.com/squaregear/theater/placement"
	"github.com/squaregear/theater/wire"
)

// Config configures cluster membership.
type Config struct {
	BindAddr      string
	AdvertiseAddr string
	KnownPeers    []string
	// ClientOnly excludes this node from the placement view: it can send
	// messages into the cluster but never hosts actors itself.
	ClientOnly bool
}

// Router owns this node's memberlist membership and the placement view
// derived from it, and dispatches Send calls either to the local launcher
// or across the wire to the actor's home node.
type Router struct {
	cfg      Config
	ml       *memberlist.Memberlist
	delegate *delegate
	launcher *launcher.Launcher
	logger   *slog.Logger
	self     placement.Node

	mtx  sync.RWMutex
	view []placement.Node

	metrics *metrics
}

// Join starts gossiping membership and returns a ready Router. l is the
// local launcher this node routes local deliveries to.
func Join(cfg Config, l *launcher.Launcher, reg prometheus.Registerer, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bindHost, bindPortStr, err := net.SplitHostPort(cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid bind address: %w", err)
	}
	bindPort, err := strconv.Atoi(bindPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid bind port: %w", err)
	}

	name, err := ulid.New(ulid.Now(), rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return nil, err
	}

	r := &Router{
		cfg:      cfg,
		launcher: l,
		logger:   logger,
		self:     placement.Node(name.String()),
		metrics:  newMetrics(reg),
	}
	r.delegate = newDelegate(r)

	mcfg := memberlist.DefaultLANConfig()
	mcfg.Name = name.String()
	mcfg.BindAddr = bindHost
	mcfg.BindPort = bindPort
	mcfg.Delegate = r.delegate
	mcfg.Events = r.delegate
	mcfg.LogOutput = &logWriter{logger: logger}

	if cfg.AdvertiseAddr != "" {
		advertiseHost, advertisePortStr, err := net.SplitHostPort(cfg.AdvertiseAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid advertise address: %w", err)
		}
		advertisePort, err := strconv.Atoi(advertisePortStr)
		if err != nil {
			return nil, fmt.Errorf("invalid advertise port: %w", err)
		}
		mcfg.AdvertiseAddr = advertiseHost
		mcfg.AdvertisePort = advertisePort
	}

	ml, err := memberlist.Create(mcfg)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	r.ml = ml

	if n, err := ml.Join(cfg.KnownPeers); err != nil {
		logger.Warn("failed to join cluster on startup", "error", err)
	} else {
		logger.Debug("joined cluster", "peers_contacted", n)
	}

	r.rebuildView()

	return r, nil
}

// Leave gracefully leaves the cluster, waiting up to timeout.
func (r *Router) Leave(timeout time.Duration) error {
	return r.ml.Leave(timeout)
}

// Self returns this node's placement identity.
func (r *Router) Self() placement.Node { return r.self }

// View returns the current placement view: every known-alive node that is
// not client-only. A client-only node never appears in any view, its own
// included.
func (r *Router) View() []placement.Node {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	out := make([]placement.Node, len(r.view))
	copy(out, r.view)
	return out
}

// Send resolves addr's home node from the current placement view and
// either delivers msg locally, untouched, or serialises it into a wire
// envelope and forwards it across the cluster transport. Locality is
// decided before the message is ever inspected for serialisability, so a
// caller can hand through any value — a channel reference, a closure, an
// unexported struct — as long as it never actually needs to leave the node.
func (r *Router) Send(ctx context.Context, addr actor.Address, msg actor.Message, correlationID string) error {
	view := r.View()
	home, ok := placement.Home(view, addr.Type, addr.ID)
	if !ok {
		return actorerr.NoHomeNode(addr.String())
	}

	if home == r.self {
		return r.launcher.Deliver(ctx, addr, msg)
	}

	node := r.findNode(home)
	if node == nil {
		return actorerr.NoHomeNode(addr.String())
	}

	payload, err := wire.EncodeMessage(msg)
	if err != nil {
		return err
	}

	env := &wire.Envelope{
		Kind:          wire.KindDeliver,
		ActorType:     addr.Type,
		ActorID:       addr.ID,
		Payload:       payload,
		CorrelationID: correlationID,
		SourceNode:    string(r.self),
	}
	b, err := wire.Marshal(env)
	if err != nil {
		return err
	}

	r.metrics.messagesSent.Inc()
	r.metrics.messagesSentSize.Add(float64(len(b)))
	return r.ml.SendReliable(node, b)
}

func (r *Router) findNode(n placement.Node) *memberlist.Node {
	for _, m := range r.ml.Members() {
		if m.Name == string(n) {
			return m
		}
	}
	if string(n) == r.ml.LocalNode().Name {
		return r.ml.LocalNode()
	}
	return nil
}

// rebuildView recomputes the placement view from the current member list:
// each peer gossips whether it is client-only in its NodeMeta, so a
// client-only peer — including this node itself, if so configured — is
// never a placement candidate for anyone in the cluster.
func (r *Router) rebuildView() {
	members := r.ml.Members()
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

	view := make([]placement.Node, 0, len(members))
	for _, m := range members {
		if isClientOnlyMeta(m.Meta) {
			continue
		}
		view = append(view, placement.Node(m.Name))
	}

	r.mtx.Lock()
	r.view = view
	r.mtx.Unlock()

	r.metrics.clusterSize.Set(float64(len(members)))
}

func isClientOnlyMeta(meta []byte) bool {
	return len(meta) > 0 && meta[0] == 1
}

// rebalance folds over every address currently live on this node and, for
// each, re-derives home over just {self, peer}: the minimal-relocation
// property of rendezvous hashing means only addresses that actually belong
// on peer need to move. Matching addresses are evicted locally so the next
// Send resolves to their new home.
func (r *Router) rebalance(peer placement.Node) {
	if r.cfg.ClientOnly {
		return
	}
	pair := []placement.Node{r.self, peer}
	for _, addr := range r.launcher.Addresses() {
		home, ok := placement.Home(pair, addr.Type, addr.ID)
		if ok && home == peer {
			r.launcher.Evict(addr)
		}
	}
}

// announce tells a newly joined peer to rebuild its own view, retrying
// with backoff since the peer's memberlist handshake may not have settled
// yet. Grounded on cenkalti/backoff/v4's ExponentialBackOff, the same
// dependency Alertmanager uses for outbound notifier retries — repurposed
// here for the cluster handshake only, never for persister or message
// delivery retries, which must never be retried.
func (r *Router) announce(node *memberlist.Node) {
	env := &wire.Envelope{Kind: wire.KindAnnounce, SourceNode: string(r.self)}
	b, err := wire.Marshal(env)
	if err != nil {
		return
	}

	op := func() error {
		return r.ml.SendReliable(node, b)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(op, bo); err != nil {
		r.logger.Warn("failed to announce to new peer", "peer", node.Name, "error", err)
	}
}

type logWriter struct {
	logger *slog.Logger
}

func (l *logWriter) Write(b []byte) (int, error) {
	l.logger.Debug("memberlist", "msg", string(b))
	return len(b), nil
}
