package engine

import (
	"context"

	"github.com/satchelbase/satchel/internal/codec"
	"github.com/satchelbase/satchel/internal/metrics"
	"github.com/satchelbase/satchel/pkg/model"
)

// State is the mutable view of a container handed to Update and mirror
// callbacks while the container lock is held. Callbacks must not retain it.
type State struct {
	Relations map[model.RelationName]map[model.Key]struct{}
	Items     *codec.Items

	c *Container
}

func (c *Container) stateLocked() State {
	return State{Relations: c.relations, Items: &c.items, c: c}
}

// Evict removes key from relation and invalidates any reconciliation
// response still in flight for it, so the response cannot re-create the key.
// Use this instead of a plain map delete when removing keys of a relation
// that reconciles remotely.
func (s State) Evict(relation model.RelationName, key model.Key) {
	if set, ok := s.Relations[relation]; ok {
		delete(set, key)
	}
	if _, issued := s.c.seq[relation][key]; issued {
		s.c.nextSeqLocked(relation, key)
	}
}

// Update runs fn as one transaction: mutate, persist, then publish the
// returned events. Local-only mutations (entity mirrors, quantity changes)
// go through here; membership toggles that reconcile use ToggleWith.
func (c *Container) Update(ctx context.Context, fn func(s State) []model.ChangeEvent) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.ErrStoreClosed
	}
	events := fn(c.stateLocked())
	c.persistLocked()
	c.mu.Unlock()

	c.publish(events...)
	return nil
}

// View runs fn read-only under the container lock.
func (c *Container) View(fn func(s State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.stateLocked())
}

// Reset clears all relations and entity lists and removes the persisted
// blob, returning the container to its first-run state. Issued sequence
// numbers survive so in-flight reconciliation responses stay invalidated.
func (c *Container) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.ErrStoreClosed
	}

	for name, set := range c.relations {
		if len(set) > 0 {
			c.relations[name] = make(map[model.Key]struct{})
		}
		c.invalidateLocked(name)
	}
	c.items = codec.Items{}
	c.loadErr = nil

	if err := c.blob.Delete(context.Background(), c.name); err != nil {
		c.logger.Error("persisted state delete failed", "error", err)
		metrics.BlobWriteErrors.WithLabelValues(c.name).Inc()
	}
	c.mu.Unlock()

	c.publish(model.NewChangeEvent(c.name, model.OpReset))
	return nil
}

// Resync exchanges the local snapshot for the authoritative one and applies
// it wholesale. This is the one operation that surfaces remote errors: the
// user asked for it and expects to see its outcome.
func (c *Container) Resync(ctx context.Context, build func(s State) model.SyncSnapshot, apply func(s State, snap model.SyncSnapshot) []model.ChangeEvent) error {
	if c.remote == nil {
		return model.ErrUnavailable
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.ErrStoreClosed
	}
	local := build(c.stateLocked())
	c.mu.Unlock()

	snap, err := c.remote.FetchFullState(ctx, c.actor, local)
	if err != nil {
		metrics.Resyncs.WithLabelValues(c.name, "error").Inc()
		return model.WrapError(err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.ErrStoreClosed
	}
	events := apply(c.stateLocked(), snap)
	// The snapshot supersedes every response still in flight.
	for name := range c.relations {
		c.invalidateLocked(name)
	}
	c.persistLocked()
	c.mu.Unlock()

	metrics.Resyncs.WithLabelValues(c.name, "ok").Inc()
	c.publish(events...)
	return nil
}
