// Package actor defines the shapes an application plugs into the runtime:
// addresses, opaque state, the three-callback behaviour contract, and the
// verdicts a callback hands back to the instance loop.
package actor

import "time"

// Address identifies a single actor instance by its type name and
// application-chosen id. Equality and a stable string form are the only
// requirements on ID; the runtime never interprets it.
type Address struct {
	Type string
	ID   string
}

func (a Address) String() string {
	return a.Type + "/" + a.ID
}

// State is the opaque value produced by Init or Process. The runtime carries
// it in memory and, per the verdict, mirrors it to the Persister. It is never
// introspected.
type State any

// Message is an opaque, application-defined payload delivered to an
// instance.
type Message any

// Verdict is the value a callback returns to tell the instance loop how to
// update state, whether to persist, and whether to continue running.
type Verdict struct {
	kind         verdictKind
	state        State
	persist      bool
	hasNewState  bool
	deleteOnStop bool
}

type verdictKind int

const (
	kindOK verdictKind = iota
	kindNoUpdate
	kindStop
)

// OK continues the loop with state' persisted.
func OK(state State) Verdict {
	return Verdict{kind: kindOK, state: state, persist: true, hasNewState: true}
}

// OKPersist is explicit ok(persist, state').
func OKPersist(state State) Verdict { return OK(state) }

// OKNoPersist continues the loop with state' kept only in memory.
func OKNoPersist(state State) Verdict {
	return Verdict{kind: kindOK, state: state, persist: false, hasNewState: true}
}

// NoUpdate leaves state and the persister untouched and continues the loop.
func NoUpdate() Verdict {
	return Verdict{kind: kindNoUpdate}
}

// Stop terminates the instance and deletes its persisted state.
func Stop() Verdict {
	return Verdict{kind: kindStop, deleteOnStop: true}
}

// StopPersist terminates the instance after persisting state'.
func StopPersist(state State) Verdict {
	return Verdict{kind: kindStop, state: state, persist: true, hasNewState: true}
}

// StopNoPersist terminates the instance, leaving whatever was last durably
// stored untouched.
func StopNoPersist() Verdict {
	return Verdict{kind: kindStop}
}

// StopDelete terminates the instance and deletes its persisted state. Kept
// distinct from Stop() for call sites that want to name the behaviour
// explicitly.
func StopDelete() Verdict {
	return Verdict{kind: kindStop, deleteOnStop: true}
}

// Outcome classifies a verdict for the instance loop's table in one switch.
type Outcome struct {
	Continue     bool
	NewState     State
	HasNewState  bool
	ShouldPut    bool
	ShouldDelete bool
}

// Resolve turns a Verdict into the concrete put/delete/continue action
// table a callback's return value implies.
func (v Verdict) Resolve() Outcome {
	switch v.kind {
	case kindOK:
		return Outcome{Continue: true, NewState: v.state, HasNewState: v.hasNewState, ShouldPut: v.persist}
	case kindNoUpdate:
		return Outcome{Continue: true}
	case kindStop:
		return Outcome{Continue: false, NewState: v.state, HasNewState: v.hasNewState, ShouldPut: v.persist, ShouldDelete: v.deleteOnStop}
	default:
		return Outcome{Continue: true}
	}
}

// isNoUpdate reports whether this verdict is the bare no_update value, used
// by TranslateInit below.
func (v Verdict) isNoUpdate() bool { return v.kind == kindNoUpdate }

// TranslateInit rewrites a verdict produced by Init before it reaches the
// table: a never-existed instance that declines to produce a state is
// translated from no_update to stop(no_persist).
func TranslateInit(v Verdict) Verdict {
	if v.isNoUpdate() {
		return StopNoPersist()
	}
	return v
}

// Behavior is the capability an application registers for an actor type: a
// stable wire-level name plus its three callbacks. Any callback left nil
// falls back to the defaults documented on RunInit/RunProcess/RunTimeToLive
// below.
type Behavior struct {
	// Name is the stable string used for wire identity and registry lookup.
	Name string

	Init        func(id string, msg Message) Verdict
	Process     func(state State, id string, msg Message) Verdict
	TimeToLive  func(state State, id string) time.Duration
}

// DefaultTimeToLive is used by the default TimeToLive implementation when a
// Behavior doesn't supply one and the process-wide configured value is zero.
const DefaultTimeToLive = 10 * time.Minute

// RunInit invokes the behaviour's init callback, or its default
// (process(nil, id, msg)).
func (b Behavior) RunInit(id string, msg Message) Verdict {
	if b.Init != nil {
		return b.Init(id, msg)
	}
	return b.RunProcess(nil, id, msg)
}

// RunProcess invokes the behaviour's process callback, or its default
// (no_update).
func (b Behavior) RunProcess(state State, id string, msg Message) Verdict {
	if b.Process != nil {
		return b.Process(state, id, msg)
	}
	return NoUpdate()
}

// RunTimeToLive invokes the behaviour's time_to_live callback, or its
// default, falling back to configured (the process-wide
// default_time_to_live) when the behaviour doesn't override it.
func (b Behavior) RunTimeToLive(state State, id string, configured time.Duration) time.Duration {
	if b.TimeToLive != nil {
		return b.TimeToLive(state, id)
	}
	if configured > 0 {
		return configured
	}
	return DefaultTimeToLive
}

// Registry maps an actor type's wire name to its Behavior for incoming
// cross-node deliveries, following the "plug-in polymorphism by name"
// pattern described in the design notes: a central table resolves the type
// token carried on the wire back to the capability that was registered for
// it locally.
type Registry struct {
	behaviors map[string]Behavior
}

// NewRegistry returns an empty actor-type registry.
func NewRegistry() *Registry {
	return &Registry{behaviors: make(map[string]Behavior)}
}

// Register adds a Behavior under its own Name. Re-registering the same name
// replaces the previous Behavior.
func (r *Registry) Register(b Behavior) {
	r.behaviors[b.Name] = b
}

// Lookup returns the Behavior registered under typeName, if any.
func (r *Registry) Lookup(typeName string) (Behavior, bool) {
	b, ok := r.behaviors[typeName]
	return b, ok
}
