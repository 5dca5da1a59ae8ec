package nats

import (
	"github.com/nats-io/nats.go/jetstream"

	"github.com/satchelbase/satchel/internal/pubsub"
)

// natsMessage wraps a jetstream.Msg to implement pubsub.Message.
type natsMessage struct {
	msg jetstream.Msg
}

func wrapMessage(msg jetstream.Msg) pubsub.Message {
	return &natsMessage{msg: msg}
}

// Data returns the raw message payload.
func (m *natsMessage) Data() []byte {
	return m.msg.Data()
}

// Subject returns the message subject.
func (m *natsMessage) Subject() string {
	return m.msg.Subject()
}

// Ack acknowledges successful processing.
func (m *natsMessage) Ack() error {
	return m.msg.Ack()
}

// Nak signals processing failure, requesting redelivery.
func (m *natsMessage) Nak() error {
	return m.msg.Nak()
}

// Term terminates the message (no redelivery).
func (m *natsMessage) Term() error {
	return m.msg.Term()
}

// Metadata returns delivery metadata.
func (m *natsMessage) Metadata() (pubsub.MessageMetadata, error) {
	md, err := m.msg.Metadata()
	if err != nil {
		return pubsub.MessageMetadata{}, err
	}
	return pubsub.MessageMetadata{
		NumDelivered: md.NumDelivered,
		Timestamp:    md.Timestamp,
		Subject:      m.msg.Subject(),
		Stream:       md.Stream,
		Consumer:     md.Consumer,
	}, nil
}
