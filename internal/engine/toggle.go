package engine

import (
	"context"

	"github.com/satchelbase/satchel/internal/metrics"
	"github.com/satchelbase/satchel/pkg/model"
)

// MirrorFunc runs under the container lock right after a membership flip,
// letting a store keep its entity mirror in step with the relation. member is
// the post-toggle membership. The State is valid only for the duration of
// the call.
type MirrorFunc func(s State, member bool) []model.ChangeEvent

// Toggle flips the membership of key in relation and returns the pre-toggle
// presence. The flip is immediate and durable; the matching reconciliation
// call runs in the background and its failure is never surfaced.
func (c *Container) Toggle(ctx context.Context, relation model.RelationName, key model.Key) (bool, error) {
	return c.ToggleWith(ctx, relation, key, nil)
}

// ToggleWith is Toggle with a store-supplied mirror mutation applied in the
// same transaction.
func (c *Container) ToggleWith(ctx context.Context, relation model.RelationName, key model.Key, mirror MirrorFunc) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, model.ErrStoreClosed
	}
	set, ok := c.relations[relation]
	if !ok {
		c.mu.Unlock()
		return false, model.ErrUnknownRelation
	}

	_, wasPresent := set[key]
	desired := !wasPresent
	if desired {
		set[key] = struct{}{}
	} else {
		delete(set, key)
	}

	events := []model.ChangeEvent{
		model.NewChangeEvent(c.name, model.OpToggle).WithMembership(relation, key, desired),
	}

	// Entering a relation with eviction rules removes the key from the
	// evicted relations in the same transaction. Their issued sequence
	// numbers advance so in-flight responses cannot resurrect the key.
	if desired {
		for _, victim := range c.rules[relation] {
			vset, known := c.relations[victim]
			if !known {
				continue
			}
			if _, present := vset[key]; !present {
				continue
			}
			delete(vset, key)
			c.nextSeqLocked(victim, key)
			events = append(events, model.NewChangeEvent(c.name, model.OpEvict).WithMembership(victim, key, false))
		}
	}

	if mirror != nil {
		events = append(events, mirror(c.stateLocked(), desired)...)
	}

	seqNo := c.nextSeqLocked(relation, key)
	syncOp := c.syncOps[relation]
	c.persistLocked()
	c.mu.Unlock()

	metrics.Toggles.WithLabelValues(c.name, string(relation)).Inc()
	c.publish(events...)

	if c.remote != nil && syncOp != SyncNone {
		c.spawn(func(ctx context.Context) {
			c.reconcileToggle(ctx, syncOp, relation, key, desired, seqNo)
		})
	}

	return wasPresent, nil
}

// reconcileToggle reports the intended end state to the remote service and
// applies its answer. A transport failure leaves the local intent standing.
func (c *Container) reconcileToggle(ctx context.Context, syncOp SyncOp, relation model.RelationName, key model.Key, desired bool, seqNo uint64) {
	var (
		result bool
		err    error
	)
	switch syncOp {
	case SyncRelation:
		result, err = c.remote.ToggleRelation(ctx, relation, c.actor, key, desired)
	case SyncLike:
		result, err = c.remote.ToggleLike(ctx, c.actor, string(key), desired)
	case SyncSave:
		result, err = c.remote.ToggleSave(ctx, c.actor, string(key), desired)
	default:
		return
	}
	if err != nil {
		c.logger.Debug("reconciliation call failed, local state stands",
			"relation", relation, "key", key, "desired", desired, "error", err)
		metrics.SyncFailures.WithLabelValues(c.name, "toggle").Inc()
		return
	}

	c.ApplyRemote(relation, key, seqNo, result)
}

// ApplyRemote applies a reconciliation response for one key. Responses older
// than the key's latest issued sequence number are discarded: a newer local
// toggle owns the state now.
func (c *Container) ApplyRemote(relation model.RelationName, key model.Key, seqNo uint64, member bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	set, ok := c.relations[relation]
	if !ok {
		c.mu.Unlock()
		return
	}

	if current := c.seq[relation][key]; seqNo < current {
		c.mu.Unlock()
		c.logger.Debug("stale reconciliation response discarded",
			"relation", relation, "key", key, "seq", seqNo, "current", current)
		metrics.StaleResponses.WithLabelValues(c.name).Inc()
		return
	}

	_, present := set[key]
	if present == member {
		c.mu.Unlock()
		return
	}

	if member {
		set[key] = struct{}{}
	} else {
		delete(set, key)
	}
	ev := model.NewChangeEvent(c.name, model.OpReconcile).WithMembership(relation, key, member)
	c.persistLocked()
	c.mu.Unlock()

	c.logger.Info("remote overrode local membership", "relation", relation, "key", key, "member", member)
	metrics.ReconcileOverrides.WithLabelValues(c.name, string(relation)).Inc()
	c.publish(ev)
}

// ApplyCorrection applies a server-initiated membership revision. Corrections
// are authoritative: they bypass the sequence check, apply unconditionally,
// and invalidate whatever reconciliation response is still in flight for the
// key, since that response predates the correction.
func (c *Container) ApplyCorrection(relation model.RelationName, key model.Key, member bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	set, ok := c.relations[relation]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.nextSeqLocked(relation, key)

	_, present := set[key]
	if present == member {
		c.mu.Unlock()
		return
	}

	if member {
		set[key] = struct{}{}
	} else {
		delete(set, key)
	}
	ev := model.NewChangeEvent(c.name, model.OpReconcile).WithMembership(relation, key, member)
	c.persistLocked()
	c.mu.Unlock()

	c.logger.Info("server correction applied", "relation", relation, "key", key, "member", member)
	metrics.ReconcileOverrides.WithLabelValues(c.name, string(relation)).Inc()
	c.publish(ev)
}
