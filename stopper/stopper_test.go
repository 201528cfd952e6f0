package stopper

import (
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/squaregear/theater/actor"
)

func TestMarkDoneRemovesFromTracking(t *testing.T) {
	evicted := make(chan actor.Address, 1)
	s := New(Options{}, func(addr actor.Address) { evicted <- addr }, quartz.NewMock(t), nil)

	addr := actor.Address{Type: "counter", ID: "1"}
	s.Touch(addr)
	s.MarkDone(addr)

	_, _, ok := s.cache.RemoveOldest()
	require.False(t, ok, "MarkDone should have removed the only tracked entry")
}

func TestPollEvictsOldestUnderPressure(t *testing.T) {
	var evicted []actor.Address
	s := New(Options{PollInterval: time.Hour}, func(addr actor.Address) {
		evicted = append(evicted, addr)
	}, quartz.NewMock(t), nil)

	a1 := actor.Address{Type: "counter", ID: "1"}
	a2 := actor.Address{Type: "counter", ID: "2"}
	s.Touch(a1)
	s.Touch(a2)

	// Exercise the eviction step poll() takes once it sees pressure —
	// RemoveOldest, then evict — without sampling memory at all;
	// TestTouchTriggersImmediateEvictionUnderPressure covers poll() itself
	// with a stubbed sampleFreeFraction.
	addr, _, ok := s.cache.RemoveOldest()
	require.True(t, ok)
	require.Equal(t, a1, addr)
	s.evict(addr)

	require.Equal(t, []actor.Address{a1}, evicted)
}

func TestTouchTriggersImmediateEvictionUnderPressure(t *testing.T) {
	var evicted []actor.Address
	s := New(Options{PollInterval: time.Hour}, func(addr actor.Address) {
		evicted = append(evicted, addr)
	}, quartz.NewMock(t), nil)
	s.sampleFreeFraction = func() (float64, bool) { return 0.05, true }

	a1 := actor.Address{Type: "counter", ID: "1"}
	s.Touch(a1)

	// Touch must run its own clean pass rather than waiting up to
	// PollInterval (an hour here) for the background ticker.
	require.Equal(t, []actor.Address{a1}, evicted)
}

func TestMarkDoneTriggersImmediateEvictionUnderPressure(t *testing.T) {
	var evicted []actor.Address
	s := New(Options{PollInterval: time.Hour}, func(addr actor.Address) {
		evicted = append(evicted, addr)
	}, quartz.NewMock(t), nil)

	a1 := actor.Address{Type: "counter", ID: "1"}
	a2 := actor.Address{Type: "counter", ID: "2"}
	s.Touch(a1)
	s.Touch(a2)
	require.Empty(t, evicted, "no pressure yet, Touch should not have evicted anything")

	s.sampleFreeFraction = func() (float64, bool) { return 0.05, true }
	s.MarkDone(a2)

	require.Equal(t, []actor.Address{a1}, evicted)
}

func TestRunStopsCleanly(t *testing.T) {
	s := New(Options{PollInterval: 5 * time.Millisecond}, func(actor.Address) {}, nil, nil)

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestOptionsDefaults(t *testing.T) {
	s := New(Options{}, func(actor.Address) {}, quartz.NewMock(t), nil)
	require.Equal(t, DefaultPollInterval, s.opts.PollInterval)
	require.Equal(t, DefaultFreeFractionThreshold, s.opts.FreeFractionThreshold)
}

func TestFreeFractionReportsBetweenZeroAndOne(t *testing.T) {
	frac, ok := freeFraction()
	require.True(t, ok)
	require.GreaterOrEqual(t, frac, 0.0)
	require.LessOrEqual(t, frac, 1.0)
}
