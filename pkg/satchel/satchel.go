package satchel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/satchelbase/satchel/internal/blob"
	"github.com/satchelbase/satchel/internal/engine"
	"github.com/satchelbase/satchel/internal/logging"
	"github.com/satchelbase/satchel/internal/pubsub"
	"github.com/satchelbase/satchel/internal/pubsub/memory"
	natsfeed "github.com/satchelbase/satchel/internal/pubsub/nats"
	"github.com/satchelbase/satchel/internal/remote"
	"github.com/satchelbase/satchel/internal/remote/push"
	"github.com/satchelbase/satchel/pkg/cart"
	"github.com/satchelbase/satchel/pkg/model"
	"github.com/satchelbase/satchel/pkg/social"
	"github.com/satchelbase/satchel/pkg/wishlist"
)

// Client bundles the cart, wishlist and social stores over shared
// persistence, one change feed and one remote service connection. All three
// stores are ready after Open returns; every method on them is safe for
// concurrent use.
type Client struct {
	Cart     *cart.Store
	Wishlist *wishlist.Store
	Social   *social.Store

	cfg      Config
	logger   *slog.Logger
	blobs    blob.Store
	provider pubsub.Provider
	pub      pubsub.Publisher
	remote   remote.Service
	listener *push.Listener

	closeOnce sync.Once
	closeErr  error
}

// Open assembles a client from configuration: it opens the blob backend,
// connects the change feed provider, builds the remote client when a base
// URL is configured, loads the three stores, and starts the push listener
// when a push URL is configured. A partially assembled client is torn down
// before the error returns.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		var err error
		logger, err = logging.NewLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("set up logging: %w", err)
		}
	}

	c := &Client{cfg: cfg, logger: logger}

	if err := c.assemble(ctx); err != nil {
		c.Close()
		return nil, err
	}

	logger.Info("satchel client open",
		"actor", cfg.Actor,
		"storage", cfg.Storage.Backend,
		"feed", cfg.PubSub.Provider,
		"remote", cfg.Remote.BaseURL != "",
		"push", cfg.Remote.PushURL != "",
	)
	return c, nil
}

func (c *Client) assemble(ctx context.Context) error {
	var err error

	c.blobs, err = blob.Open(c.cfg.Storage, c.logger)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	c.provider, err = c.openProvider(ctx)
	if err != nil {
		return fmt.Errorf("open change feed: %w", err)
	}

	c.pub, err = c.provider.NewPublisher(pubsub.PublisherOptions{
		StreamName: c.streamName(),
		Subjects:   []string{"satchel.>"},
	})
	if err != nil {
		return fmt.Errorf("open change feed publisher: %w", err)
	}

	if c.cfg.Remote.BaseURL != "" {
		c.remote, err = remote.NewClient(c.cfg.Remote)
		if err != nil {
			return fmt.Errorf("build remote client: %w", err)
		}
	}

	if err := c.openStores(ctx); err != nil {
		return err
	}

	if c.cfg.Remote.PushURL != "" {
		tokens, err := remote.NewTokenSource(c.cfg.Remote.Auth)
		if err != nil {
			return fmt.Errorf("build push token source: %w", err)
		}
		c.listener = push.NewListener(c.cfg.Remote.PushURL, tokens, c.routeCorrection, c.logger)
		c.listener.Start(ctx)
	}

	return nil
}

// openProvider selects the change feed backend. The provider switch lives
// here rather than in the pubsub package so the base package does not
// import its own backends.
func (c *Client) openProvider(ctx context.Context) (pubsub.Provider, error) {
	switch c.cfg.PubSub.Provider {
	case pubsub.ProviderMemory:
		return memory.New(), nil
	case pubsub.ProviderNATS:
		p, err := natsfeed.NewProvider(c.cfg.PubSub.NATS.URL, c.logger)
		if err != nil {
			return nil, err
		}
		if err := p.Connect(ctx); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported pubsub provider: %s", c.cfg.PubSub.Provider)
	}
}

func (c *Client) openStores(ctx context.Context) error {
	var err error

	c.Cart, err = cart.Open(ctx, cart.Options{
		Actor:       c.cfg.Actor,
		Blob:        c.blobs,
		Publisher:   c.pub,
		Remote:      c.remote,
		SyncTimeout: c.cfg.SyncTimeout,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}

	c.Wishlist, err = wishlist.Open(ctx, wishlist.Options{
		Actor:       c.cfg.Actor,
		Blob:        c.blobs,
		Publisher:   c.pub,
		Remote:      c.remote,
		SyncTimeout: c.cfg.SyncTimeout,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}

	c.Social, err = social.Open(ctx, social.Options{
		Actor:       c.cfg.Actor,
		Blob:        c.blobs,
		Publisher:   c.pub,
		Remote:      c.remote,
		SyncTimeout: c.cfg.SyncTimeout,
		Logger:      c.logger,
	})
	return err
}

// routeCorrection dispatches a server-initiated membership revision to the
// store that owns the relation. Corrections for relations no store manages
// are dropped; the server may be ahead of this build.
func (c *Client) routeCorrection(cor push.Correction) {
	switch cor.Relation {
	case model.RelationSavedProducts:
		c.Wishlist.ApplyCorrection(cor.Relation, cor.Key, cor.Member)
	case model.RelationFollowing, model.RelationBlocked, model.RelationConnections,
		model.RelationLikedPosts, model.RelationSavedPosts:
		c.Social.ApplyCorrection(cor.Relation, cor.Key, cor.Member)
	default:
		c.logger.Debug("correction for unmanaged relation",
			"relation", cor.Relation, "key", cor.Key)
	}
}

func (c *Client) streamName() string {
	return c.cfg.PubSub.NATS.Stream
}

// Watch subscribes to the change feed and returns a channel of decoded
// events. The channel closes when ctx is cancelled. Payloads that do not
// decode are acknowledged and dropped.
func (c *Client) Watch(ctx context.Context) (<-chan model.ChangeEvent, error) {
	opts := pubsub.DefaultConsumerOptions()
	opts.StreamName = c.streamName()
	opts.ConsumerName = "watch-" + uuid.NewString()[:8]
	opts.FilterSubject = "satchel.>"

	consumer, err := c.provider.NewConsumer(opts)
	if err != nil {
		return nil, fmt.Errorf("open change feed consumer: %w", err)
	}
	msgs, err := consumer.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe to change feed: %w", err)
	}

	out := make(chan model.ChangeEvent, cap(msgs))
	go func() {
		defer close(out)
		for msg := range msgs {
			ev, err := model.DecodeChangeEvent(msg.Data())
			if err != nil {
				c.logger.Warn("undecodable change event", "subject", msg.Subject(), "error", err)
				_ = msg.Ack()
				continue
			}
			_ = msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Resync exchanges the social store's server-owned state for the
// authoritative remote copy. It fails when no remote service is configured.
func (c *Client) Resync(ctx context.Context) error {
	return c.Social.Resync(ctx)
}

// CheckAvailability probes the remote service. Without a configured remote
// it reports ErrUnavailable.
func (c *Client) CheckAvailability(ctx context.Context) error {
	if c.remote == nil {
		return model.ErrUnavailable
	}
	return c.remote.Ping(ctx)
}

// ResetAll clears every store and its persisted blob. The first error is
// returned, but all stores are attempted.
func (c *Client) ResetAll(ctx context.Context) error {
	var first error
	for _, reset := range []func(context.Context) error{
		c.Cart.Reset, c.Wishlist.Reset, c.Social.Reset,
	} {
		if err := reset(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Diagnostics reports a point-in-time view of every store.
func (c *Client) Diagnostics() []engine.Diagnostics {
	return []engine.Diagnostics{
		c.Cart.Diagnostics(),
		c.Wishlist.Diagnostics(),
		c.Social.Diagnostics(),
	}
}

// Close tears the client down in reverse assembly order: the push listener
// first so no correction lands in a closing store, then the stores (each
// waits out its in-flight reconciliations), then the feed and the blob
// backend. Close is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.listener != nil {
			c.listener.Stop()
		}
		if c.Cart != nil {
			c.record(c.Cart.Close())
		}
		if c.Wishlist != nil {
			c.record(c.Wishlist.Close())
		}
		if c.Social != nil {
			c.record(c.Social.Close())
		}
		if c.pub != nil {
			c.record(c.pub.Close())
		}
		if c.provider != nil {
			c.record(c.provider.Close())
		}
		if c.blobs != nil {
			c.record(c.blobs.Close())
		}
		c.logger.Info("satchel client closed")
	})
	return c.closeErr
}

// record keeps the first close error.
func (c *Client) record(err error) {
	if err != nil && c.closeErr == nil {
		c.closeErr = err
	}
}
