package instance

import (
	"sync"

	"github.com/squaregear/theater/actor"
)

// mailbox is an unbounded, growable message queue: push never blocks and
// never drops, so a burst of traffic or a slow-draining instance can never
// stall a caller — including memberlist's own message-processing goroutine,
// which must return from NotifyMsg promptly. wake signals a waiting
// consumer that the queue is non-empty; its buffer of one plus the
// consumer popping until empty on every wake (Instance.drainMailbox) make
// the signal race-free without a condition variable.
type mailbox struct {
	mtx   sync.Mutex
	queue []actor.Message
	wake  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

// push appends msg to the queue and wakes the consumer if it's idle.
func (m *mailbox) push(msg actor.Message) {
	m.mtx.Lock()
	m.queue = append(m.queue, msg)
	m.mtx.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// pop removes and returns the oldest queued message, if any.
func (m *mailbox) pop() (actor.Message, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if len(m.queue) == 0 {
		return nil, false
	}
	msg := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return msg, true
}
