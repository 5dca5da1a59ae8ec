package model

import (
	"encoding/json"
	"time"
)

// ChangeOp represents the mutation that produced a change event.
type ChangeOp string

const (
	OpToggle    ChangeOp = "toggle"
	OpEvict     ChangeOp = "evict"
	OpCreate    ChangeOp = "create"
	OpUpdate    ChangeOp = "update"
	OpDelete    ChangeOp = "delete"
	OpReconcile ChangeOp = "reconcile"
	OpRewrite   ChangeOp = "rewrite"
	OpResync    ChangeOp = "resync"
	OpReset     ChangeOp = "reset"
)

// IsValid checks if the op is a known valid op.
func (o ChangeOp) IsValid() bool {
	switch o {
	case OpToggle, OpEvict, OpCreate, OpUpdate, OpDelete, OpReconcile, OpRewrite, OpResync, OpReset:
		return true
	default:
		return false
	}
}

// ChangeEvent is published on the change feed after every applied mutation.
// Relation/Key are set for membership changes, Kind/EntityID for entity
// changes; a rewrite carries the stale local identifier in Key and the
// canonical one in EntityID.
type ChangeEvent struct {
	Store     string       `json:"store"`
	Op        ChangeOp     `json:"op"`
	Relation  RelationName `json:"relation,omitempty"`
	Key       Key          `json:"key,omitempty"`
	Kind      Kind         `json:"kind,omitempty"`
	EntityID  string       `json:"entityId,omitempty"`
	Present   *bool        `json:"present,omitempty"`
	Timestamp int64        `json:"timestamp"` // Unix milliseconds
}

// NewChangeEvent creates a change event stamped with the current time.
func NewChangeEvent(store string, op ChangeOp) ChangeEvent {
	return ChangeEvent{
		Store:     store,
		Op:        op,
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithMembership sets the relation fields and returns the event for chaining.
func (e ChangeEvent) WithMembership(relation RelationName, key Key, present bool) ChangeEvent {
	e.Relation = relation
	e.Key = key
	e.Present = &present
	return e
}

// WithEntity sets the entity fields and returns the event for chaining.
func (e ChangeEvent) WithEntity(kind Kind, entityID string) ChangeEvent {
	e.Kind = kind
	e.EntityID = entityID
	return e
}

// Subject returns the feed subject for the event: satchel.<store>.<op>.
func (e ChangeEvent) Subject() string {
	return "satchel." + e.Store + "." + string(e.Op)
}

// Encode serializes the event for the change feed.
func (e ChangeEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeChangeEvent parses a change feed payload.
func DecodeChangeEvent(data []byte) (ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ChangeEvent{}, err
	}
	return e, nil
}
