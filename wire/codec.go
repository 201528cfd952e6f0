package wire

import (
	"bytes"
	"encoding/gob"

	"github.com/squaregear/theater/actor"
)

// EncodeMessage serialises an opaque actor.Message into Envelope.Payload at
// the cluster boundary — the only place a message is ever forced into
// bytes. Local, same-node delivery carries the actor.Message value through
// untouched. gob handles arbitrary registered concrete types without a
// fixed schema, the same encoder persist.Codec uses for durable state;
// applications whose message types cross the wire must gob.Register them.
func EncodeMessage(msg actor.Message) ([]byte, error) {
	var buf bytes.Buffer
	if msg == nil {
		return buf.Bytes(), nil
	}
	if err := gob.NewEncoder(&buf).Encode(&msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMessage deserialises an Envelope's Payload back into the
// actor.Message a remote NotifyMsg hands to the local launcher.
func DecodeMessage(data []byte) (actor.Message, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var msg actor.Message
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return nil, err
	}
	return msg, nil
}
