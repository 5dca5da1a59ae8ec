package memory

import (
	"context"
	"sync"
	"time"

	"github.com/satchelbase/satchel/internal/pubsub"
)

// message implements pubsub.Message for in-memory delivery.
type message struct {
	data      []byte
	subject   string
	timestamp time.Time
	delivered uint64

	// redeliver is the subscriber's channel, used on Nak.
	redeliver chan pubsub.Message
	ctx       context.Context

	mu     sync.Mutex
	acked  bool
	naked  bool
	termed bool
}

// Data returns the raw message payload.
func (m *message) Data() []byte {
	return m.data
}

// Subject returns the message subject.
func (m *message) Subject() string {
	return m.subject
}

// Ack acknowledges successful processing. Idempotent.
func (m *message) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acked || m.naked || m.termed {
		return nil
	}
	m.acked = true
	return nil
}

// Nak requeues the message without blocking. If the subscriber's channel
// is full or gone, the message is dropped.
func (m *message) Nak() error {
	m.mu.Lock()
	if m.acked || m.naked || m.termed {
		m.mu.Unlock()
		return nil
	}
	m.naked = true
	m.delivered++
	m.mu.Unlock()

	// The channel may already be closed by unsubscribe.
	defer func() {
		recover()
	}()

	select {
	case m.redeliver <- m:
	case <-m.ctx.Done():
	default:
		// Channel full, drop rather than block the caller.
	}
	return nil
}

// Term terminates the message (no redelivery).
func (m *message) Term() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acked || m.naked || m.termed {
		return nil
	}
	m.termed = true
	return nil
}

// Metadata returns delivery metadata. Stream and consumer names do not
// apply in process.
func (m *message) Metadata() (pubsub.MessageMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pubsub.MessageMetadata{
		NumDelivered: m.delivered,
		Timestamp:    m.timestamp,
		Subject:      m.subject,
	}, nil
}
