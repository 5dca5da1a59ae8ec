// Package remote defines the client side of the backend the state engine
// reconciles against. The backend is an opaque collaborator: every call is
// asynchronous from the user's point of view, and a failed call never
// invalidates the local guess.
package remote

import (
	"context"

	"github.com/satchelbase/satchel/internal/remote/internal/httpclient"
	"github.com/satchelbase/satchel/pkg/model"
)

// Service is the remote reconciliation API. Toggle calls carry the intended
// end state, not the flip, because a second local toggle may land before the
// first call resolves. Implementations must be safe for concurrent use.
type Service interface {
	// ToggleRelation reports the desired membership of target in relation
	// for actor and returns the membership the server settled on.
	ToggleRelation(ctx context.Context, relation model.RelationName, actor, target model.Key, desired bool) (bool, error)

	// ToggleLike reports the desired liked state of an entity and returns
	// the server's resulting state.
	ToggleLike(ctx context.Context, actor model.Key, entityID string, desired bool) (bool, error)

	// ToggleSave reports the desired saved state of an entity and returns
	// the server's resulting state.
	ToggleSave(ctx context.Context, actor model.Key, entityID string, desired bool) (bool, error)

	// CreateEntity registers a locally created entity and returns the
	// canonical record. The returned ID may differ from the local one.
	CreateEntity(ctx context.Context, actor model.Key, kind model.Kind, payload []byte) (model.CanonicalEntity, error)

	// DeleteEntity removes an entity. A failed deletion never restores the
	// entity locally.
	DeleteEntity(ctx context.Context, actor model.Key, entityID string) error

	// FetchFullState exchanges the local snapshot for the authoritative one.
	FetchFullState(ctx context.Context, actor model.Key, local model.SyncSnapshot) (model.SyncSnapshot, error)

	// Ping probes service availability.
	Ping(ctx context.Context) error
}

// NewClient creates the HTTP client for the remote service.
func NewClient(cfg Config) (Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tokens, err := NewTokenSource(cfg.Auth)
	if err != nil {
		return nil, err
	}
	return httpclient.New(cfg.BaseURL, cfg.Timeout, tokens), nil
}
