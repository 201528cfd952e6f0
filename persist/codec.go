package persist

import (
	"bytes"
	"encoding/gob"

	"github.com/squaregear/theater/actor"
)

// Codec serialises opaque actor.State for a disk-backed Persister. State
// values are arbitrary application Go values with no fixed schema, so gob —
// the one stdlib encoder built exactly for registered-but-otherwise-
// arbitrary concrete Go types — is used here rather than a schema-based
// serialisation library (gogo/protobuf needs a schema; JSON can't round-trip
// unexported or interface-typed fields reliably).
//
// Applications register their state's concrete types with gob.Register
// before starting the runtime, the same way gob-based RPC systems require;
// gob's predeclared types (int, string, ...) need no registration, and
// Encode fails for a value of an unregistered type.
type Codec struct{}

// Encode serialises state to bytes.
func (Codec) Encode(state actor.State) ([]byte, error) {
	var buf bytes.Buffer
	if state == nil {
		return buf.Bytes(), nil
	}
	if err := gob.NewEncoder(&buf).Encode(&state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserialises bytes back into an actor.State.
func (Codec) Decode(data []byte) (actor.State, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var state actor.State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return nil, err
	}
	return state, nil
}
