package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/satchelbase/satchel/internal/pubsub"
)

// jetStreamConsumer implements pubsub.Consumer using NATS JetStream.
type jetStreamConsumer struct {
	js     JetStream
	opts   pubsub.ConsumerOptions
	logger *slog.Logger
}

// NewConsumer creates a consumer backed by NATS JetStream.
func NewConsumer(js JetStream, opts pubsub.ConsumerOptions, logger *slog.Logger) (pubsub.Consumer, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream cannot be nil")
	}
	if opts.StreamName == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	if opts.ChannelBufSize <= 0 {
		opts.ChannelBufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &jetStreamConsumer{js: js, opts: opts, logger: logger}, nil
}

// Subscribe starts consuming messages and returns a channel.
func (c *jetStreamConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	subjects := c.opts.Subjects
	if len(subjects) == 0 {
		subjects = []string{c.opts.StreamName + ".>"}
	}

	storage := jetstream.MemoryStorage
	if c.opts.Storage == pubsub.FileStorage {
		storage = jetstream.FileStorage
	}

	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     c.opts.StreamName,
		Subjects: subjects,
		Storage:  storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	consumerName := c.opts.ConsumerName
	if consumerName == "" {
		consumerName = "satchel-watch"
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.opts.StreamName, jetstream.ConsumerConfig{
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: c.opts.FilterSubject,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	msgCh := make(chan pubsub.Message, c.opts.ChannelBufSize)

	// Guards against sending into msgCh after shutdown closes it.
	var closing atomic.Bool

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if closing.Load() {
			msg.Nak()
			return
		}
		select {
		case msgCh <- wrapMessage(msg):
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		close(msgCh)
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	c.logger.Debug("consumer subscribed", "stream", c.opts.StreamName, "consumer", consumerName)

	go func() {
		<-ctx.Done()
		closing.Store(true)
		cc.Stop()
		close(msgCh)
		c.logger.Debug("consumer stopped", "stream", c.opts.StreamName)
	}()

	return msgCh, nil
}
