// Package wire defines the envelope shipped between nodes for the two
// cross-node messages the runtime sends: launcher.deliver(type, id,
// message) and the announce a node sends to a newly joined peer, plus the gob
// codec (EncodeMessage/DecodeMessage) that turns an opaque actor.Message
// into Envelope.Payload — the only point in the runtime where a message is
// ever forced into bytes. It mirrors the shape of Alertmanager's
// cluster/clusterpb messages (a small, hand-declared protobuf message
// encoded via gogo/protobuf's reflection marshaller, since clusterpb's own
// generated .go file isn't available here) rather than pulling in a
// generated client for a one-message wire format.
package wire

import (
	"github.com/gogo/protobuf/proto"
)

// Kind distinguishes the handful of messages that cross the cluster
// transport.
type Kind int32

const (
	// KindDeliver carries deliver(type, id, message) from a router to the
	// home node's launcher.
	KindDeliver Kind = 0
	// KindAnnounce is sent by a node that just learned of a new peer,
	// prompting that peer to rebuild its own view to include us.
	KindAnnounce Kind = 1
)

// Envelope is the wire message for a single cross-node invocation. Payload
// is the application message as encoded by EncodeMessage; the receiving
// node decodes it with DecodeMessage before handing it to its launcher.
type Envelope struct {
	Kind          Kind   `protobuf:"varint,1,opt,name=kind,proto3,enum=theater.wire.Kind" json:"kind,omitempty"`
	ActorType     string `protobuf:"bytes,2,opt,name=actor_type,proto3" json:"actor_type,omitempty"`
	ActorID       string `protobuf:"bytes,3,opt,name=actor_id,proto3" json:"actor_id,omitempty"`
	Payload       []byte `protobuf:"bytes,4,opt,name=payload,proto3" json:"payload,omitempty"`
	CorrelationID string `protobuf:"bytes,5,opt,name=correlation_id,proto3" json:"correlation_id,omitempty"`
	SourceNode    string `protobuf:"bytes,6,opt,name=source_node,proto3" json:"source_node,omitempty"`
}

func (e *Envelope) Reset()         { *e = Envelope{} }
func (e *Envelope) String() string { return proto.CompactTextString(e) }
func (*Envelope) ProtoMessage()    {}

// Marshal encodes an Envelope for the cluster transport.
func Marshal(e *Envelope) ([]byte, error) {
	return proto.Marshal(e)
}

// Unmarshal decodes an Envelope received from the cluster transport.
func Unmarshal(b []byte) (*Envelope, error) {
	e := &Envelope{}
	if err := proto.Unmarshal(b, e); err != nil {
		return nil, err
	}
	return e, nil
}
