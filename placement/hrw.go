// Package placement implements the rendezvous (HRW) hashing used to pick the
// deterministic home node for an actor address.
package placement

import (
	"bytes"
	"crypto/sha256"
)

// Node is a cluster member identity as seen by the placement function. Any
// comparable, serialisable string works; router.Router uses its memberlist
// node names (ULIDs).
type Node string

// Home returns the node in view with the highest SHA-256 weight for
// (node, actorType, actorID):
//
//	home = argmax_{n in view} SHA-256(serialize(n, actorType, actorID))
//
// Comparison is lexicographic on the 32-byte digest. Ties (astronomically
// improbable) resolve to the earlier node in iteration order. Home reports
// ok=false if view is empty.
func Home(view []Node, actorType, actorID string) (node Node, ok bool) {
	var (
		best      Node
		bestDigest [sha256.Size]byte
		seen      bool
	)
	for _, n := range view {
		d := weigh(n, actorType, actorID)
		if !seen || bytes.Compare(d[:], bestDigest[:]) > 0 {
			best = n
			bestDigest = d
			seen = true
		}
	}
	return best, seen
}

func weigh(n Node, actorType, actorID string) [sha256.Size]byte {
	h := sha256.New()
	// A length-prefixed encoding keeps ("ab","c") distinct from ("a","bc");
	// the exact serialisation must be identical on every node, since each
	// node computes home independently and they must agree.
	writeField(h, string(n))
	writeField(h, actorType)
	writeField(h, actorID)
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeField(h interface{ Write([]byte) (int, error) }, s string) {
	var lenBuf [8]byte
	l := len(s)
	for i := 0; i < 8; i++ {
		lenBuf[i] = byte(l >> (8 * i))
	}
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}
