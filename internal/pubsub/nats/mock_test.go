package nats

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/mock"
)

// mockJetStream mocks the JetStream subset used by the provider.
type mockJetStream struct {
	mock.Mock
}

func (m *mockJetStream) Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	args := m.Called(ctx, subject, payload, opts)
	var ack *jetstream.PubAck
	if v := args.Get(0); v != nil {
		ack = v.(*jetstream.PubAck)
	}
	return ack, args.Error(1)
}

func (m *mockJetStream) CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	args := m.Called(ctx, cfg)
	var s jetstream.Stream
	if v := args.Get(0); v != nil {
		s = v.(jetstream.Stream)
	}
	return s, args.Error(1)
}

func (m *mockJetStream) CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	args := m.Called(ctx, stream, cfg)
	var c jetstream.Consumer
	if v := args.Get(0); v != nil {
		c = v.(jetstream.Consumer)
	}
	return c, args.Error(1)
}

// stubConn records Close calls in place of a real NATS connection.
type stubConn struct {
	closed bool
}

func (s *stubConn) Close() {
	s.closed = true
}

// stubConsumer implements the jetstream.Consumer methods Subscribe uses;
// the embedded interface covers the rest.
type stubConsumer struct {
	jetstream.Consumer
	consumeFn func(handler jetstream.MessageHandler, opts ...jetstream.PullConsumeOpt) (jetstream.ConsumeContext, error)
}

func (s *stubConsumer) Consume(handler jetstream.MessageHandler, opts ...jetstream.PullConsumeOpt) (jetstream.ConsumeContext, error) {
	return s.consumeFn(handler, opts...)
}

// stubConsumeContext implements jetstream.ConsumeContext.
type stubConsumeContext struct {
	jetstream.ConsumeContext
	stopped bool
}

func (s *stubConsumeContext) Stop() {
	s.stopped = true
}

// stubMsg implements the jetstream.Msg methods the wrapper touches.
type stubMsg struct {
	jetstream.Msg
	data    []byte
	subject string
	acked   bool
	naked   bool
	termed  bool
}

func (s *stubMsg) Data() []byte    { return s.data }
func (s *stubMsg) Subject() string { return s.subject }
func (s *stubMsg) Ack() error      { s.acked = true; return nil }
func (s *stubMsg) Nak() error      { s.naked = true; return nil }
func (s *stubMsg) Term() error     { s.termed = true; return nil }
