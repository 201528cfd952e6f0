// Package stopper is the per-node memory-pressure eviction policy: a
// recency-ordered registry of live addresses, checked against the
// process's effective memory budget, which stops the single oldest
// instance when headroom drops below a threshold. Every Touch and MarkDone
// runs this check immediately, in addition to the background ticker, so
// reactivity to pressure never lags behind the granularity of a poll
// interval. The LRU bookkeeping reuses hashicorp/golang-lru/v2
// (Alertmanager's own cache dependency for bounded collections) in its
// unbounded form — capacity is never hit, the cache exists purely to
// expose RemoveOldest() in O(1) — while the background ticker is grounded
// on silence/silence.go's Maintenance() (quartz-driven ticker, clean
// shutdown via a stop channel).
package stopper

import (
	"log/slog"
	"math"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/coder/quartz"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pbnjay/memory"

	"github.com/squaregear/theater/actor"
)

// Options configures a Stopper.
type Options struct {
	// PollInterval is how often free headroom is sampled. Zero uses
	// DefaultPollInterval.
	PollInterval time.Duration
	// FreeFractionThreshold triggers eviction once free/budget falls below
	// it. Zero uses DefaultFreeFractionThreshold.
	FreeFractionThreshold float64
}

// DefaultPollInterval is used when Options.PollInterval is zero.
const DefaultPollInterval = 5 * time.Second

// DefaultFreeFractionThreshold is used when Options.FreeFractionThreshold
// is zero: evict once less than 20% of budget remains free.
const DefaultFreeFractionThreshold = 0.20

// Stopper watches process memory headroom and asks evict to stop the
// least-recently-touched address when headroom runs low.
type Stopper struct {
	cache  *lru.Cache[actor.Address, struct{}]
	evict  func(actor.Address)
	clock  quartz.Clock
	logger *slog.Logger
	opts   Options

	// sampleFreeFraction reports current headroom; overridden in tests to
	// puppeteer pressure deterministically instead of depending on the real
	// process's memory usage.
	sampleFreeFraction func() (float64, bool)

	stopC chan struct{}
	doneC chan struct{}
}

// New returns a Stopper that calls evict(addr) at most once per headroom
// check (each poll tick, Touch and MarkDone) when headroom is below
// threshold. A nil clock uses the real wall clock.
func New(opts Options, evict func(actor.Address), clock quartz.Clock, logger *slog.Logger) *Stopper {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FreeFractionThreshold <= 0 {
		opts.FreeFractionThreshold = DefaultFreeFractionThreshold
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	// A capacity far beyond any realistic actor population: this cache is
	// never meant to evict by size, only by our own manual RemoveOldest
	// calls under memory pressure.
	cache, _ := lru.New[actor.Address, struct{}](math.MaxInt32)
	return &Stopper{
		cache:              cache,
		evict:              evict,
		clock:              clock,
		logger:             logger,
		opts:               opts,
		sampleFreeFraction: freeFraction,
		stopC:              make(chan struct{}),
		doneC:              make(chan struct{}),
	}
}

// Touch records addr as most recently active, then immediately runs a
// clean eviction pass rather than waiting for the next poll tick: every
// touch is a fresh data point on memory pressure, so it must be followed
// by a check rather than left to accumulate until the ticker fires.
// Called by the launcher on every materialise and deliver.
func (s *Stopper) Touch(addr actor.Address) {
	s.cache.Add(addr, struct{}{})
	s.poll()
}

// MarkDone removes addr from tracking once its instance has terminated, so
// a stale entry is never chosen for eviction, then runs the same immediate
// pass Touch does, since freeing an instance can itself relieve pressure
// that a subsequent touch would otherwise have to wait a full tick to see.
func (s *Stopper) MarkDone(addr actor.Address) {
	s.cache.Remove(addr)
	s.poll()
}

// Run starts the polling loop and blocks until Stop is called. Intended to
// be run in its own goroutine, mirroring silence.Silences.Maintenance.
func (s *Stopper) Run() {
	defer close(s.doneC)

	ticker := s.clock.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.poll()
		case <-s.stopC:
			return
		}
	}
}

// Stop ends the polling loop and waits for Run to return.
func (s *Stopper) Stop() {
	close(s.stopC)
	<-s.doneC
}

// poll checks current headroom and evicts the single oldest address if
// it's below threshold.
func (s *Stopper) poll() {
	free, ok := s.sampleFreeFraction()
	if !ok {
		return
	}
	if free >= s.opts.FreeFractionThreshold {
		return
	}

	addr, _, ok := s.cache.RemoveOldest()
	if !ok {
		return
	}
	s.logger.Info("evicting instance under memory pressure", "actor_type", addr.Type, "actor_id", addr.ID, "free_fraction", free)
	s.evict(addr)
}

// freeFraction reports the process's free headroom as a fraction of its
// budget: the GOMEMLIMIT soft cap when one is configured (by
// automemlimit, cgroup-aware, at process start), falling back to total
// system RAM via pbnjay/memory when no cgroup limit applies (e.g. running
// outside a container). runtime.ReadMemStats is the only stdlib source for
// "bytes this process currently has allocated"; no available dependency
// reports live process memory usage synchronously, so it is used here
// rather than a third-party metrics client.
func freeFraction() (fraction float64, ok bool) {
	budget := debug.SetMemoryLimit(-1)
	if budget <= 0 || budget == math.MaxInt64 {
		total := memory.TotalMemory()
		if total == 0 {
			return 0, false
		}
		budget = int64(total)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	used := int64(ms.HeapAlloc)

	if budget <= used {
		return 0, true
	}
	return float64(budget-used) / float64(budget), true
}
