// Package pubsub abstracts the change feed transport. Every applied
// mutation is published as a model.ChangeEvent; sibling processes (or the
// watch CLI) subscribe to observe state changes.
package pubsub

import (
	"context"
	"io"
	"time"
)

// Message is a received change-feed message with acknowledgment controls.
type Message interface {
	// Data returns the raw message payload.
	Data() []byte

	// Subject returns the message subject.
	Subject() string

	// Ack acknowledges successful processing.
	Ack() error

	// Nak signals processing failure, requesting redelivery.
	Nak() error

	// Term terminates the message (no redelivery).
	Term() error

	// Metadata returns delivery metadata.
	Metadata() (MessageMetadata, error)
}

// MessageMetadata contains delivery information about a message.
type MessageMetadata struct {
	NumDelivered uint64
	Timestamp    time.Time
	Subject      string
	Stream       string
	Consumer     string
}

// Publisher publishes change events to the feed.
type Publisher interface {
	// Publish sends a message to the specified subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases resources.
	Close() error
}

// Consumer consumes change events from the feed.
type Consumer interface {
	// Subscribe starts consuming messages and returns a channel. The
	// channel is closed when the context is cancelled. Caller is
	// responsible for calling Ack/Nak/Term on each message.
	Subscribe(ctx context.Context) (<-chan Message, error)
}

// Provider creates publishers and consumers for one feed backend. The
// in-memory engine and NATS JetStream both implement it, so the feed can
// stay in process or cross process boundaries transparently.
type Provider interface {
	io.Closer

	// NewPublisher creates a new Publisher with the given options.
	NewPublisher(opts PublisherOptions) (Publisher, error)

	// NewConsumer creates a new Consumer with the given options.
	NewConsumer(opts ConsumerOptions) (Consumer, error)
}

// Connectable is an optional interface for providers that must establish a
// connection before use. The in-memory engine does not implement it.
type Connectable interface {
	Connect(ctx context.Context) error
}
