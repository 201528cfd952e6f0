// Package actorerr declares the runtime's internal error kinds. Persister
// failures and callback crashes stay confined to the offending instance;
// NoHomeNode and StaleHandle are returned to the caller of Router.Send or
// Launcher.Deliver. It follows the context-wrapping idiom of Alertmanager's
// cluster/cluster.go (wraps with context via fmt.Errorf-style messages;
// its pkg/errors usage only survives in superseded files outside the
// current dependency set, so this stays on stdlib wrapping instead).
package actorerr

import (
	"errors"
	"fmt"
)

// Kind classifies a runtime-internal failure.
type Kind int

const (
	// KindPersister covers get/put/delete failures.
	KindPersister Kind = iota
	// KindCallbackCrash covers a user callback panicking.
	KindCallbackCrash
	// KindNoHomeNode covers an empty cluster view.
	KindNoHomeNode
	// KindStaleHandle covers a fast-path send racing an instance's exit.
	KindStaleHandle
	// KindTopologyDrift covers two nodes each believing themselves home
	// for the same address during a partition.
	KindTopologyDrift
)

func (k Kind) String() string {
	switch k {
	case KindPersister:
		return "persister_error"
	case KindCallbackCrash:
		return "actor_callback_crash"
	case KindNoHomeNode:
		return "no_home_node"
	case KindStaleHandle:
		return "stale_handle"
	case KindTopologyDrift:
		return "topology_drift"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with context and, optionally, an underlying reason.
type Error struct {
	Kind   Kind
	Detail string
	Reason error
}

func (e *Error) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Reason }

// Is supports errors.Is checks by Kind: a target that is itself a *Error
// matches when its Kind equals e's, whatever its Detail or Reason.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func newErr(k Kind, detail string, reason error) *Error {
	return &Error{Kind: k, Detail: detail, Reason: reason}
}

// Persister wraps a get/put/delete failure.
func Persister(op, detail string, reason error) *Error {
	return newErr(KindPersister, op+" "+detail, reason)
}

// CallbackCrash wraps a recovered panic from a user callback.
func CallbackCrash(detail string, reason error) *Error {
	return newErr(KindCallbackCrash, detail, reason)
}

// NoHomeNode reports an empty cluster view.
func NoHomeNode(detail string) *Error {
	return newErr(KindNoHomeNode, detail, nil)
}

// StaleHandle reports a fast-path send that raced an instance's exit.
func StaleHandle(detail string) *Error {
	return newErr(KindStaleHandle, detail, nil)
}

// TopologyDrift reports an observed (not repaired) dual-home condition.
func TopologyDrift(detail string) *Error {
	return newErr(KindTopologyDrift, detail, nil)
}
