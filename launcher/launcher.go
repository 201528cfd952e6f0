// Package launcher is the per-node registry of live instances: it
// materialises an actor on first delivery, routes subsequent messages to
// its mailbox, and reaps the entry once the instance's loop exits. It is
// grounded on dispatch/dispatch.go's Dispatcher (a mutex-guarded map
// keyed by a fingerprint, with a background cleanup sweep over the same
// map) adapted from "group alerts by route" to "one goroutine per live
// actor address".
package launcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/squaregear/theater/actor"
	"github.com/squaregear/theater/instance"
	"github.com/squaregear/theater/persist"
)

// Launcher owns every instance materialised on this node.
type Launcher struct {
	registry   *actor.Registry
	persister  persist.Persister
	clock      quartz.Clock
	defaultTTL time.Duration
	logger     *slog.Logger

	// touch is called whenever an address is delivered to or launched, so
	// the stopper's LRU can track recency without the launcher knowing
	// anything about eviction policy.
	touch func(actor.Address)
	// markDone is called once an address's instance has exited, so the
	// stopper never tries to evict a handle that is already gone.
	markDone func(actor.Address)

	mtx       sync.Mutex
	instances map[actor.Address]*instance.Instance
}

// New returns an empty Launcher bound to registry for behaviour lookup and
// persister for durability. touch and markDone, if non-nil, let a stopper
// track recency without the launcher knowing anything about eviction
// policy.
func New(
	registry *actor.Registry,
	persister persist.Persister,
	clock quartz.Clock,
	defaultTTL time.Duration,
	logger *slog.Logger,
	touch func(actor.Address),
	markDone func(actor.Address),
) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	if touch == nil {
		touch = func(actor.Address) {}
	}
	if markDone == nil {
		markDone = func(actor.Address) {}
	}
	return &Launcher{
		registry:   registry,
		persister:  persister,
		clock:      clock,
		defaultTTL: defaultTTL,
		logger:     logger,
		touch:      touch,
		markDone:   markDone,
		instances:  make(map[actor.Address]*instance.Instance),
	}
}

// Deliver routes msg to addr's instance, materialising it first if it
// isn't already running on this node. The caller (the router) is
// responsible for having already decided this node is home.
func (l *Launcher) Deliver(ctx context.Context, addr actor.Address, msg actor.Message) error {
	l.touch(addr)

	l.mtx.Lock()
	in, ok := l.instances[addr]
	l.mtx.Unlock()

	if ok {
		return in.Deliver(ctx, msg)
	}

	return l.launch(ctx, addr, msg)
}

// launch materialises addr, re-checking the registry under lock in case
// two deliveries raced to launch the same address concurrently.
func (l *Launcher) launch(ctx context.Context, addr actor.Address, firstMsg actor.Message) error {
	behavior, ok := l.registry.Lookup(addr.Type)
	if !ok {
		l.logger.Warn("delivery for unregistered actor type dropped", "actor_type", addr.Type)
		return nil
	}

	l.mtx.Lock()
	if in, ok := l.instances[addr]; ok {
		l.mtx.Unlock()
		return in.Deliver(ctx, firstMsg)
	}

	in := instance.Start(
		context.Background(),
		addr,
		firstMsg,
		behavior,
		l.persister,
		l.clock,
		l.defaultTTL,
		l.logger,
		l.reap,
	)
	l.instances[addr] = in
	l.mtx.Unlock()

	return nil
}

// reap removes a terminated instance from the registry. It tolerates an
// address already being absent (a concurrent Evict racing a natural
// time-to-live stop both converge on the same removal).
func (l *Launcher) reap(t instance.Termination) {
	l.mtx.Lock()
	delete(l.instances, t.Addr)
	l.mtx.Unlock()

	l.markDone(t.Addr)

	if t.Err != nil {
		l.logger.Warn("instance terminated with error", "actor_type", t.Addr.Type, "actor_id", t.Addr.ID, "reason", t.Reason, "error", t.Err)
	}
}

// Evict stops addr's instance if it is running locally, for the stopper's
// memory-pressure sweep and the router's peer-handoff rebalancing. It is a
// no-op if addr is not currently live.
func (l *Launcher) Evict(addr actor.Address) {
	l.mtx.Lock()
	in, ok := l.instances[addr]
	l.mtx.Unlock()
	if !ok {
		return
	}
	in.Stop()
}

// Addresses returns every address currently materialised on this node, for
// the router's rebalance sweep, StopAll and the debug registry endpoint.
func (l *Launcher) Addresses() []actor.Address {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	out := make([]actor.Address, 0, len(l.instances))
	for addr := range l.instances {
		out = append(out, addr)
	}
	return out
}

// Len reports how many instances are currently live on this node.
func (l *Launcher) Len() int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return len(l.instances)
}

// StopAll asks every currently-resident instance to stop and waits (bounded
// by ctx) for the registry to drain, for a node's graceful shutdown
// sequence before it leaves the cluster view. Deliver keeps accepting
// messages while StopAll runs, so new instances can still be launched; a
// stopped instance discards any messages still queued in its mailbox.
func (l *Launcher) StopAll(ctx context.Context) {
	for _, addr := range l.Addresses() {
		l.Evict(addr)
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for l.Len() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
