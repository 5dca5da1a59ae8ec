package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/satchelbase/satchel/internal/pubsub"
)

// publisher implements pubsub.Publisher on the in-memory engine.
type publisher struct {
	engine *Engine
	opts   pubsub.PublisherOptions
	closed atomic.Bool
}

// Publish sends a message to the specified subject.
func (p *publisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.closed.Load() {
		return ErrEngineClosed
	}

	start := time.Now()
	err := p.engine.publish(ctx, subject, data)

	if p.opts.OnPublish != nil {
		p.opts.OnPublish(subject, err, time.Since(start))
	}
	return err
}

// Close releases resources.
func (p *publisher) Close() error {
	p.closed.Store(true)
	return nil
}
