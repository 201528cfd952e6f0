// Package instance runs a single materialised actor: the goroutine-per-
// entity loop that owns an address's state in memory, dispatches messages
// to its Behavior's callbacks, mirrors verdicts to the Persister, and
// times itself out. It is grounded on notify/worker.go's IntegrationWorker
// (persistent per-entity goroutine, growable mailbox, time.AfterFunc-style
// non-blocking wait scheduling, stop-then-drain shutdown) and
// dispatch/dispatch.go's aggrGroup (context-cancellation-driven lifetime,
// timer reset on activity).
package instance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/squaregear/theater/actor"
	"github.com/squaregear/theater/internal/actorerr"
	"github.com/squaregear/theater/persist"
)

// TerminationReason records why an instance's loop exited, for the
// launcher's Reap bookkeeping and for metrics/logging.
type TerminationReason int

const (
	// ReasonStop is a normal application-requested stop verdict.
	ReasonStop TerminationReason = iota
	// ReasonTimeToLive is an idle timeout.
	ReasonTimeToLive
	// ReasonCrash is an unrecovered callback panic.
	ReasonCrash
	// ReasonPersisterError is a failed Get/Put/Delete.
	ReasonPersisterError
)

// Termination is delivered to the launcher's onTerminate callback when an
// instance's loop exits, so the launcher can remove it from its registry.
type Termination struct {
	Addr   actor.Address
	Reason TerminationReason
	Err    error
}

// Instance is one materialised, running actor. It is created already
// holding the message that triggered its materialisation; Start runs the
// startup sequence against that message before entering the steady loop.
type Instance struct {
	addr       actor.Address
	behavior   actor.Behavior
	persister  persist.Persister
	clock      quartz.Clock
	defaultTTL time.Duration
	logger     *slog.Logger

	onTerminate func(Termination)

	mailbox *mailbox
	stopC   chan struct{}
	done    chan struct{}

	mtx       sync.Mutex
	liveState actor.State
}

// Start materialises and runs an instance in its own goroutine. firstMsg is
// the message that caused materialisation; it drives the startup sequence
// below before the instance enters its steady-state loop.
func Start(
	ctx context.Context,
	addr actor.Address,
	firstMsg actor.Message,
	behavior actor.Behavior,
	persister persist.Persister,
	clock quartz.Clock,
	defaultTTL time.Duration,
	logger *slog.Logger,
	onTerminate func(Termination),
) *Instance {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	in := &Instance{
		addr:        addr,
		behavior:    behavior,
		persister:   persister,
		clock:       clock,
		defaultTTL:  defaultTTL,
		logger:      logger.With("actor_type", addr.Type, "actor_id", addr.ID),
		onTerminate: onTerminate,
		mailbox:     newMailbox(),
		stopC:       make(chan struct{}),
		done:        make(chan struct{}),
	}
	go in.run(ctx, firstMsg)
	return in
}

// Deliver enqueues a message for this instance without blocking: the
// mailbox grows to hold whatever arrives rather than applying backpressure,
// so a caller — including memberlist's own message-processing goroutine,
// which must return from NotifyMsg promptly — can never stall behind a
// slow or backed-up instance.
func (in *Instance) Deliver(ctx context.Context, msg actor.Message) error {
	select {
	case <-in.done:
		return actorerr.StaleHandle(in.addr.String())
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	in.mailbox.push(msg)
	return nil
}

// Stop requests the instance loop to terminate at its next opportunity,
// persisting nothing beyond whatever the loop has already committed. Used
// by the stopper's eviction sweep and by peer-handoff during rebalancing.
func (in *Instance) Stop() {
	select {
	case <-in.stopC:
	default:
		close(in.stopC)
	}
}

// Done reports the channel closed once the instance's loop has exited.
func (in *Instance) Done() <-chan struct{} { return in.done }

// run is the instance's private goroutine: single writer to liveState and
// to the persister for this address, for the lifetime of the instance.
func (in *Instance) run(ctx context.Context, firstMsg actor.Message) {
	defer close(in.done)

	cont, initErr := in.startup(ctx, firstMsg)
	if initErr != nil {
		in.terminate(ReasonPersisterError, initErr)
		return
	}
	if !cont {
		in.terminate(ReasonStop, nil)
		return
	}

	ttl := in.ttlFor()
	timer := in.clock.NewTimer(ttl)
	defer timer.Stop()

	for {
		select {
		case <-in.mailbox.wake:
			cont, err := in.drainMailbox(ctx)
			if err != nil {
				timer.Stop()
				in.terminate(ReasonPersisterError, err)
				return
			}
			if !cont {
				timer.Stop()
				in.terminate(ReasonStop, nil)
				return
			}
			timer.Reset(in.ttlFor())

		case <-timer.C:
			in.terminate(ReasonTimeToLive, nil)
			return

		case <-in.stopC:
			in.drain(ctx)
			in.terminate(ReasonStop, nil)
			return

		case <-ctx.Done():
			in.terminate(ReasonStop, ctx.Err())
			return
		}
	}
}

// startup runs the materialisation sequence: Get, then dispatch to Init (on
// not-found) or Process (on a found state), with the init-verdict
// translation applied. It reports whether the loop should continue.
func (in *Instance) startup(ctx context.Context, firstMsg actor.Message) (cont bool, err error) {
	state, getErr := in.persister.Get(ctx, in.addr)
	switch {
	case getErr == persist.ErrNotFound:
		v, crashed := in.safeInvoke(func() actor.Verdict {
			return in.behavior.RunInit(in.addr.ID, firstMsg)
		})
		if crashed {
			return false, nil
		}
		return in.apply(ctx, actor.TranslateInit(v))

	case getErr != nil:
		return false, actorerr.Persister("get", in.addr.String(), getErr)

	default:
		in.mtx.Lock()
		in.liveState = state
		in.mtx.Unlock()
		v, crashed := in.safeInvoke(func() actor.Verdict {
			return in.behavior.RunProcess(state, in.addr.ID, firstMsg)
		})
		if crashed {
			return false, nil
		}
		return in.apply(ctx, v)
	}
}

// drainMailbox processes every message queued as of the wake signal,
// since a single wake can coalesce several pushes that arrived while this
// instance was busy with the previous one.
func (in *Instance) drainMailbox(ctx context.Context) (cont bool, err error) {
	for {
		msg, ok := in.mailbox.pop()
		if !ok {
			return true, nil
		}
		cont, err = in.handle(ctx, msg)
		if err != nil || !cont {
			return cont, err
		}
	}
}

// handle dispatches one steady-state message to Process and applies its
// verdict.
func (in *Instance) handle(ctx context.Context, msg actor.Message) (cont bool, err error) {
	in.mtx.Lock()
	state := in.liveState
	in.mtx.Unlock()

	v, crashed := in.safeInvoke(func() actor.Verdict {
		return in.behavior.RunProcess(state, in.addr.ID, msg)
	})
	if crashed {
		return false, nil
	}
	return in.apply(ctx, v)
}

// apply resolves a verdict into the concrete put/delete/continue action
// table and executes it.
func (in *Instance) apply(ctx context.Context, v actor.Verdict) (cont bool, err error) {
	outcome := v.Resolve()

	if outcome.HasNewState {
		in.mtx.Lock()
		in.liveState = outcome.NewState
		in.mtx.Unlock()
	}

	if outcome.ShouldPut {
		in.mtx.Lock()
		state := in.liveState
		in.mtx.Unlock()
		if err := in.persister.Put(ctx, in.addr, state); err != nil {
			return false, actorerr.Persister("put", in.addr.String(), err)
		}
	}
	if outcome.ShouldDelete {
		if err := in.persister.Delete(ctx, in.addr); err != nil {
			return false, actorerr.Persister("delete", in.addr.String(), err)
		}
	}

	return outcome.Continue, nil
}

// safeInvoke runs a user callback and recovers a panic into a
// ActorCallbackCrash, logging it rather than propagating it: a crashing
// callback is confined to its own instance and never takes down the node.
func (in *Instance) safeInvoke(fn func() actor.Verdict) (v actor.Verdict, crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			crashed = true
			cerr := actorerr.CallbackCrash(in.addr.String(), recoverErr(r))
			in.logger.Error("actor callback panicked", "error", cerr)
		}
	}()
	return fn(), false
}

func recoverErr(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &panicValue{r}
}

type panicValue struct{ v any }

func (p *panicValue) Error() string { return "panic: " + formatAny(p.v) }

func formatAny(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "non-string panic value"
}

// ttlFor asks the behaviour for the current time-to-live given the last
// known state.
func (in *Instance) ttlFor() time.Duration {
	in.mtx.Lock()
	state := in.liveState
	in.mtx.Unlock()
	return in.behavior.RunTimeToLive(state, in.addr.ID, in.defaultTTL)
}

// drain discards any messages already queued before a forced stop takes
// effect, mirroring IntegrationWorker.drainRequests — except here draining
// means discarding rather than erroring a result channel, since Deliver is
// fire-and-forget.
func (in *Instance) drain(ctx context.Context) {
	for {
		if _, ok := in.mailbox.pop(); !ok {
			return
		}
	}
}

func (in *Instance) terminate(reason TerminationReason, err error) {
	if in.onTerminate != nil {
		in.onTerminate(Termination{Addr: in.addr, Reason: reason, Err: err})
	}
}
