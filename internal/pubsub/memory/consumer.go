package memory

import (
	"context"

	"github.com/satchelbase/satchel/internal/pubsub"
)

// consumer implements pubsub.Consumer on the in-memory engine.
type consumer struct {
	engine *Engine
	opts   pubsub.ConsumerOptions
}

// Subscribe starts consuming messages and returns a channel.
func (c *consumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	if c.engine.IsClosed() {
		return nil, ErrEngineClosed
	}

	pattern := c.opts.FilterSubject
	if pattern == "" {
		pattern = ">"
	}

	bufSize := c.opts.ChannelBufSize
	if bufSize <= 0 {
		bufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}

	msgCh, unsubscribe, err := c.engine.subscribe(ctx, pattern, bufSize)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return msgCh, nil
}
