package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/satchelbase/satchel/internal/pubsub"
)

// jetStreamPublisher implements pubsub.Publisher using NATS JetStream.
type jetStreamPublisher struct {
	js   JetStream
	opts pubsub.PublisherOptions
}

// NewPublisher creates a publisher and provisions its stream.
func NewPublisher(js JetStream, opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream cannot be nil")
	}

	if opts.StreamName != "" {
		subjects := opts.Subjects
		if len(subjects) == 0 {
			subjects = []string{opts.StreamName + ".>"}
		}

		storage := jetstream.MemoryStorage
		if opts.Storage == pubsub.FileStorage {
			storage = jetstream.FileStorage
		}

		_, err := js.CreateOrUpdateStream(context.Background(), jetstream.StreamConfig{
			Name:     opts.StreamName,
			Subjects: subjects,
			Storage:  storage,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to ensure stream: %w", err)
		}
	}

	return &jetStreamPublisher{js: js, opts: opts}, nil
}

// Publish sends a message to the specified subject.
func (p *jetStreamPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	start := time.Now()

	var publishOpts []jetstream.PublishOpt
	if p.opts.RetryAttempts > 0 {
		publishOpts = append(publishOpts, jetstream.WithRetryAttempts(p.opts.RetryAttempts))
	}

	_, err := p.js.Publish(ctx, subject, data, publishOpts...)

	if p.opts.OnPublish != nil {
		p.opts.OnPublish(subject, err, time.Since(start))
	}

	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close releases resources. JetStream needs no explicit close.
func (p *jetStreamPublisher) Close() error {
	return nil
}
