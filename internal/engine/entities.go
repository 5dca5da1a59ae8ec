package engine

import (
	"context"

	"github.com/satchelbase/satchel/internal/metrics"
	"github.com/satchelbase/satchel/pkg/model"
)

// CreateAndSync records a locally created entity and registers it with the
// remote service in the background. id is the entity's local identifier;
// insert places the entity (and any membership bookkeeping) into the state.
// When the server assigns a different canonical identifier, the local one is
// rewritten in place.
func (c *Container) CreateAndSync(ctx context.Context, kind model.Kind, id string, payload []byte, insert func(s State) []model.ChangeEvent) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.ErrStoreClosed
	}

	events := []model.ChangeEvent{
		model.NewChangeEvent(c.name, model.OpCreate).WithEntity(kind, id),
	}
	if insert != nil {
		events = append(events, insert(c.stateLocked())...)
	}
	c.persistLocked()
	c.mu.Unlock()

	metrics.Creates.WithLabelValues(c.name, string(kind)).Inc()
	c.publish(events...)

	if c.remote != nil {
		c.spawn(func(ctx context.Context) {
			c.reconcileCreate(ctx, kind, id, payload)
		})
	}
	return nil
}

func (c *Container) reconcileCreate(ctx context.Context, kind model.Kind, localID string, payload []byte) {
	ent, err := c.remote.CreateEntity(ctx, c.actor, kind, payload)
	if err != nil {
		c.logger.Debug("entity registration failed, keeping local identifier",
			"kind", kind, "id", localID, "error", err)
		metrics.SyncFailures.WithLabelValues(c.name, "create").Inc()
		return
	}
	if ent.ID == "" || ent.ID == localID {
		return
	}
	c.RewriteID(kind, localID, ent.ID)
}

// DeleteAndSync removes an entity locally and tells the remote service in
// the background. remove reports whether the entity was present; the remote
// deletion is fire-and-forget and never restores local state.
func (c *Container) DeleteAndSync(ctx context.Context, kind model.Kind, id string, remove func(s State) ([]model.ChangeEvent, bool)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.ErrStoreClosed
	}

	extra, found := remove(c.stateLocked())
	if !found {
		c.mu.Unlock()
		return model.ErrNotFound
	}
	events := append([]model.ChangeEvent{
		model.NewChangeEvent(c.name, model.OpDelete).WithEntity(kind, id),
	}, extra...)
	c.persistLocked()
	c.mu.Unlock()

	metrics.Deletes.WithLabelValues(c.name, string(kind)).Inc()
	c.publish(events...)

	if c.remote != nil {
		c.spawn(func(ctx context.Context) {
			if err := c.remote.DeleteEntity(ctx, c.actor, id); err != nil {
				c.logger.Debug("entity deletion not acknowledged", "kind", kind, "id", id, "error", err)
				metrics.SyncFailures.WithLabelValues(c.name, "delete").Inc()
			}
		})
	}
	return nil
}

// RewriteID replaces a stale local identifier with the server-assigned
// canonical one: the entity keeps its position in its list, and every
// membership reference and issued sequence number moves to the new key.
func (c *Container) RewriteID(kind model.Kind, oldID, newID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	rewritten := false
	switch kind {
	case model.KindCartItem:
		for i := range c.items.Cart {
			if c.items.Cart[i].ID == oldID {
				c.items.Cart[i].ID = newID
				rewritten = true
				break
			}
		}
	case model.KindWishlistItem:
		for i := range c.items.Wishlist {
			if c.items.Wishlist[i].ID == oldID {
				c.items.Wishlist[i].ID = newID
				rewritten = true
				break
			}
		}
	case model.KindSocialPost:
		for i := range c.items.Posts {
			if c.items.Posts[i].ID == oldID {
				c.items.Posts[i].ID = newID
				rewritten = true
				break
			}
		}
	}
	if !rewritten {
		// Deleted locally before the canonical identifier arrived.
		c.mu.Unlock()
		c.logger.Debug("identifier rewrite target no longer present", "kind", kind, "id", oldID)
		return
	}

	oldKey, newKey := model.Key(oldID), model.Key(newID)
	for _, set := range c.relations {
		if _, present := set[oldKey]; present {
			delete(set, oldKey)
			set[newKey] = struct{}{}
		}
	}
	for name := range c.seq {
		seqs := c.seq[name]
		n, issued := seqs[oldKey]
		if !issued {
			continue
		}
		if n > seqs[newKey] {
			seqs[newKey] = n
		}
		// The stale key keeps a bumped entry: responses to calls that went
		// out under the old identifier must not re-create it.
		c.nextSeqLocked(name, oldKey)
	}

	ev := model.NewChangeEvent(c.name, model.OpRewrite).WithEntity(kind, newID)
	ev.Key = oldKey
	c.persistLocked()
	c.mu.Unlock()

	c.logger.Info("local identifier reconciled", "kind", kind, "local", oldID, "canonical", newID)
	c.publish(ev)
}
