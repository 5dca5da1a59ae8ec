// Package nats provides the NATS JetStream change-feed provider, letting
// sibling processes observe mutations across process boundaries.
package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/satchelbase/satchel/internal/pubsub"
)

// JetStream is the jetstream.JetStream subset the provider uses, narrowed
// so tests can substitute it.
type JetStream interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
}

// natsConnection abstracts *nats.Conn for testing.
type natsConnection interface {
	Close()
}

// Injectable for tests.
var (
	natsConnect = func(url string) (natsConnection, error) {
		return nats.Connect(url)
	}
	newJetStream = func(nc natsConnection) (JetStream, error) {
		conn, ok := nc.(*nats.Conn)
		if !ok {
			return nil, fmt.Errorf("unexpected connection type %T", nc)
		}
		return jetstream.New(conn)
	}
)

// Provider implements pubsub.Provider on a NATS JetStream connection.
type Provider struct {
	url    string
	logger *slog.Logger
	nc     natsConnection
	js     JetStream
}

var (
	_ pubsub.Provider    = (*Provider)(nil)
	_ pubsub.Connectable = (*Provider)(nil)
)

// NewProvider creates a NATS provider for url. Connect must be called
// before publishers or consumers are created.
func NewProvider(url string, logger *slog.Logger) (*Provider, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		url:    url,
		logger: logger.With("component", "pubsub-nats"),
	}, nil
}

// Connect establishes the connection and the JetStream context.
func (p *Provider) Connect(ctx context.Context) error {
	nc, err := natsConnect(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", p.url, err)
	}

	js, err := newJetStream(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream: %w", err)
	}

	p.nc = nc
	p.js = js
	p.logger.Info("connected to NATS", "url", p.url)
	return nil
}

// NewPublisher creates a new Publisher backed by NATS JetStream.
func (p *Provider) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return NewPublisher(p.js, opts)
}

// NewConsumer creates a new Consumer backed by NATS JetStream.
func (p *Provider) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return NewConsumer(p.js, opts, p.logger)
}

// Close closes the NATS connection.
func (p *Provider) Close() error {
	if p.nc != nil {
		p.logger.Info("closing NATS connection")
		p.nc.Close()
		p.nc = nil
	}
	p.js = nil
	return nil
}
