package actor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerdictResolve(t *testing.T) {
	cases := []struct {
		name    string
		verdict Verdict
		want    Outcome
	}{
		{
			name:    "ok persists new state and continues",
			verdict: OK("s1"),
			want:    Outcome{Continue: true, NewState: "s1", HasNewState: true, ShouldPut: true},
		},
		{
			name:    "ok no persist continues without a put",
			verdict: OKNoPersist("s2"),
			want:    Outcome{Continue: true, NewState: "s2", HasNewState: true, ShouldPut: false},
		},
		{
			name:    "no_update leaves everything untouched",
			verdict: NoUpdate(),
			want:    Outcome{Continue: true},
		},
		{
			name:    "stop deletes persisted state",
			verdict: Stop(),
			want:    Outcome{Continue: false, ShouldDelete: true},
		},
		{
			name:    "stop_delete deletes persisted state",
			verdict: StopDelete(),
			want:    Outcome{Continue: false, ShouldDelete: true},
		},
		{
			name:    "stop_persist persists and stops",
			verdict: StopPersist("final"),
			want:    Outcome{Continue: false, NewState: "final", HasNewState: true, ShouldPut: true},
		},
		{
			name:    "stop_no_persist stops leaving storage untouched",
			verdict: StopNoPersist(),
			want:    Outcome{Continue: false},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, c.verdict.Resolve())
		})
	}
}

func TestTranslateInit(t *testing.T) {
	// A never-existed instance whose Init declines to produce a state
	// (no_update) is translated to stop(no_persist): there is nothing to
	// run a steady-state loop over.
	got := TranslateInit(NoUpdate())
	require.Equal(t, StopNoPersist(), got)

	// Any other verdict passes through unchanged.
	got = TranslateInit(OK("s"))
	require.Equal(t, OK("s"), got)
}

func TestBehaviorDefaults(t *testing.T) {
	b := Behavior{Name: "empty"}

	// RunInit with no Init callback falls back to Process(nil, id, msg).
	var gotState State
	var gotID string
	b.Process = func(state State, id string, msg Message) Verdict {
		gotState, gotID = state, id
		return OK("seen")
	}
	v := b.RunInit("actor-1", "hello")
	require.Nil(t, gotState)
	require.Equal(t, "actor-1", gotID)
	require.Equal(t, OK("seen"), v)

	// RunProcess with no Process callback defaults to no_update.
	b2 := Behavior{Name: "bare"}
	require.Equal(t, NoUpdate(), b2.RunProcess("s", "id", "msg"))
}

func TestBehaviorRunTimeToLive(t *testing.T) {
	b := Behavior{Name: "ttl"}

	// No override, no configured value: falls back to DefaultTimeToLive.
	require.Equal(t, DefaultTimeToLive, b.RunTimeToLive(nil, "id", 0))

	// No override, configured value wins.
	require.Equal(t, 30*time.Second, b.RunTimeToLive(nil, "id", 30*time.Second))

	// Explicit override always wins.
	b.TimeToLive = func(state State, id string) time.Duration { return time.Hour }
	require.Equal(t, time.Hour, b.RunTimeToLive(nil, "id", 30*time.Second))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Lookup("counter")
	require.False(t, ok)

	reg.Register(Behavior{Name: "counter"})
	b, ok := reg.Lookup("counter")
	require.True(t, ok)
	require.Equal(t, "counter", b.Name)

	// Re-registering the same name replaces the previous Behavior.
	reg.Register(Behavior{Name: "counter", TimeToLive: func(State, string) time.Duration { return time.Minute }})
	b, ok = reg.Lookup("counter")
	require.True(t, ok)
	require.NotNil(t, b.TimeToLive)
}

func TestAddressString(t *testing.T) {
	a := Address{Type: "counter", ID: "42"}
	require.Equal(t, "counter/42", a.String())
}
