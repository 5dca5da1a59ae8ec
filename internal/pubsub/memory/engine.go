// Package memory provides the in-process change-feed engine used when no
// external NATS server is configured.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satchelbase/satchel/internal/pubsub"
)

// ErrEngineClosed is returned when operating on a closed engine.
var ErrEngineClosed = errors.New("change feed engine is closed")

// Compile-time check that Engine implements pubsub.Provider.
var _ pubsub.Provider = (*Engine)(nil)

// Engine routes published messages to matching subscriptions in process.
// Multiple subscribers may watch the same pattern; each gets its own copy.
type Engine struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	closed atomic.Bool
}

type subscription struct {
	pattern string
	msgCh   chan pubsub.Message
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates an in-memory change-feed engine.
func New() *Engine {
	return &Engine{
		subs: make(map[uint64]*subscription),
	}
}

// NewPublisher creates a publisher routing into this engine. Stream
// options are ignored; the engine has no streams.
func (e *Engine) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	return &publisher{engine: e, opts: opts}, nil
}

// NewConsumer creates a consumer fed by this engine.
func (e *Engine) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	return &consumer{engine: e, opts: opts}, nil
}

// Close shuts down the engine and all subscriptions.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sub := range e.subs {
		sub.cancel()
		close(sub.msgCh)
	}
	e.subs = nil
	return nil
}

// IsClosed returns true if the engine is closed.
func (e *Engine) IsClosed() bool {
	return e.closed.Load()
}

// publish delivers a message to every subscription whose pattern matches.
func (e *Engine) publish(ctx context.Context, subject string, data []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, sub := range e.subs {
		if !matchSubject(sub.pattern, subject) {
			continue
		}
		msg := &message{
			data:      data,
			subject:   subject,
			timestamp: time.Now(),
			delivered: 1,
			redeliver: sub.msgCh,
			ctx:       sub.ctx,
		}
		select {
		case sub.msgCh <- msg:
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.ctx.Done():
			// Subscription cancelled, skip.
		}
	}
	return nil
}

// subscribe registers a pattern and returns the message channel plus an
// unsubscribe function.
func (e *Engine) subscribe(ctx context.Context, pattern string, bufSize int) (<-chan pubsub.Message, func(), error) {
	if e.closed.Load() {
		return nil, nil, ErrEngineClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		pattern: pattern,
		msgCh:   make(chan pubsub.Message, bufSize),
		ctx:     subCtx,
		cancel:  cancel,
	}
	e.subs[id] = sub

	unsubscribe := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.subs == nil || e.subs[id] != sub {
			return
		}
		delete(e.subs, id)
		cancel()
		close(sub.msgCh)
	}

	return sub.msgCh, unsubscribe, nil
}
