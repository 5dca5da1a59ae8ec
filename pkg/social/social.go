// Package social implements the social store: follow/block/connection
// relations over user keys, like/save relations over posts, and the post
// list itself. Blocking a user evicts them from following and connections in
// the same update.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/satchelbase/satchel/internal/blob"
	"github.com/satchelbase/satchel/internal/engine"
	"github.com/satchelbase/satchel/internal/pubsub"
	"github.com/satchelbase/satchel/internal/remote"
	"github.com/satchelbase/satchel/pkg/model"
)

// StoreName is the social store's blob name and change feed store component.
const StoreName = "social"

// Options configures a social store.
type Options struct {
	// Actor is the acting user key: the author of created posts and the
	// acting side of every relation.
	Actor model.Key

	// Blob persists the store. Required.
	Blob blob.Store

	// Publisher carries change events. Optional.
	Publisher pubsub.Publisher

	// Remote reconciles toggles, registers posts, and serves resyncs.
	// Optional.
	Remote remote.Service

	SyncTimeout time.Duration
	Logger      *slog.Logger
}

// Store is the social store. Safe for concurrent use.
type Store struct {
	c     *engine.Container
	actor model.Key
}

// Open loads the persisted social state, starting empty when nothing was
// persisted or the persisted payload is unreadable.
func Open(ctx context.Context, opts Options) (*Store, error) {
	c, err := engine.NewContainer(ctx, engine.Options{
		Store: StoreName,
		Actor: opts.Actor,
		Relations: []engine.RelationSpec{
			{Name: model.RelationFollowing, Sync: engine.SyncRelation},
			{Name: model.RelationBlocked, Sync: engine.SyncRelation,
				Evicts: []model.RelationName{model.RelationFollowing, model.RelationConnections}},
			{Name: model.RelationConnections, Sync: engine.SyncRelation},
			{Name: model.RelationLikedPosts, Sync: engine.SyncLike},
			{Name: model.RelationSavedPosts, Sync: engine.SyncSave},
		},
		Blob:        opts.Blob,
		Publisher:   opts.Publisher,
		Remote:      opts.Remote,
		SyncTimeout: opts.SyncTimeout,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open social store: %w", err)
	}
	return &Store{c: c, actor: opts.Actor}, nil
}

// ToggleFollow flips whether the actor follows the user.
func (s *Store) ToggleFollow(ctx context.Context, user model.Key) (bool, error) {
	return s.c.Toggle(ctx, model.RelationFollowing, user)
}

// ToggleBlock flips whether the user is blocked. Blocking evicts the user
// from following and connections in the same update; unblocking restores
// nothing.
func (s *Store) ToggleBlock(ctx context.Context, user model.Key) (bool, error) {
	return s.c.Toggle(ctx, model.RelationBlocked, user)
}

// ToggleConnection flips whether the user is a connection.
func (s *Store) ToggleConnection(ctx context.Context, user model.Key) (bool, error) {
	return s.c.Toggle(ctx, model.RelationConnections, user)
}

// ToggleLike flips whether the actor likes the post.
func (s *Store) ToggleLike(ctx context.Context, postID string) (bool, error) {
	return s.c.Toggle(ctx, model.RelationLikedPosts, model.Key(postID))
}

// ToggleSavePost flips whether the post is saved.
func (s *Store) ToggleSavePost(ctx context.Context, postID string) (bool, error) {
	return s.c.Toggle(ctx, model.RelationSavedPosts, model.Key(postID))
}

// IsFollowing reports whether the actor follows the user.
func (s *Store) IsFollowing(user model.Key) bool {
	return s.c.IsMember(model.RelationFollowing, user)
}

// IsBlocked reports whether the user is blocked.
func (s *Store) IsBlocked(user model.Key) bool {
	return s.c.IsMember(model.RelationBlocked, user)
}

// IsConnected reports whether the user is a connection.
func (s *Store) IsConnected(user model.Key) bool {
	return s.c.IsMember(model.RelationConnections, user)
}

// HasLiked reports whether the actor likes the post.
func (s *Store) HasLiked(postID string) bool {
	return s.c.IsMember(model.RelationLikedPosts, model.Key(postID))
}

// HasSavedPost reports whether the post is saved.
func (s *Store) HasSavedPost(postID string) bool {
	return s.c.IsMember(model.RelationSavedPosts, model.Key(postID))
}

// Following returns the followed users in lexical order.
func (s *Store) Following() []model.Key {
	return s.c.Members(model.RelationFollowing)
}

// Blocked returns the blocked users in lexical order.
func (s *Store) Blocked() []model.Key {
	return s.c.Members(model.RelationBlocked)
}

// Connections returns the connections in lexical order.
func (s *Store) Connections() []model.Key {
	return s.c.Members(model.RelationConnections)
}

// LikedPosts returns the liked post identifiers in lexical order.
func (s *Store) LikedPosts() []model.Key {
	return s.c.Members(model.RelationLikedPosts)
}

// SavedPosts returns the saved post identifiers in lexical order.
func (s *Store) SavedPosts() []model.Key {
	return s.c.Members(model.RelationSavedPosts)
}

// CreatePost authors a post and returns it immediately with a local
// identifier. The post is prepended (the feed is newest first) and
// registered with the remote service in the background; a differing
// canonical identifier is rewritten in place later.
func (s *Store) CreatePost(ctx context.Context, body, imageURL string) (model.SocialPost, error) {
	if body == "" && imageURL == "" {
		return model.SocialPost{}, fmt.Errorf("post needs a body or an image")
	}

	post := model.SocialPost{
		ID:        model.NewLocalID(model.KindSocialPost.IDPrefix()),
		Author:    s.actor,
		Body:      body,
		ImageURL:  imageURL,
		CreatedAt: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(post)
	if err != nil {
		return model.SocialPost{}, fmt.Errorf("encode post: %w", err)
	}

	err = s.c.CreateAndSync(ctx, model.KindSocialPost, post.ID, payload, func(st engine.State) []model.ChangeEvent {
		st.Items.Posts = append([]model.SocialPost{post}, st.Items.Posts...)
		return nil
	})
	if err != nil {
		return model.SocialPost{}, err
	}
	return post, nil
}

// DeletePost removes a post and drops its like and save entries in the same
// update. The remote deletion is fire-and-forget.
func (s *Store) DeletePost(ctx context.Context, postID string) error {
	return s.c.DeleteAndSync(ctx, model.KindSocialPost, postID, func(st engine.State) ([]model.ChangeEvent, bool) {
		kept := st.Items.Posts[:0]
		found := false
		for _, post := range st.Items.Posts {
			if post.ID == postID {
				found = true
				continue
			}
			kept = append(kept, post)
		}
		st.Items.Posts = kept
		if found {
			st.Evict(model.RelationLikedPosts, model.Key(postID))
			st.Evict(model.RelationSavedPosts, model.Key(postID))
		}
		return nil, found
	})
}

// Posts returns the feed, newest first.
func (s *Store) Posts() []model.SocialPost {
	var out []model.SocialPost
	s.c.View(func(st engine.State) {
		out = append(out, st.Items.Posts...)
	})
	return out
}

// Resync exchanges the local snapshot for the server's authoritative one and
// replaces following, liked posts, saved posts, and the post list wholesale.
// Blocked users and connections are device-local and survive. This is the
// one operation that surfaces remote errors.
func (s *Store) Resync(ctx context.Context) error {
	return s.c.Resync(ctx,
		func(st engine.State) model.SyncSnapshot {
			local := model.SyncSnapshot{
				Posts: append([]model.SocialPost(nil), st.Items.Posts...),
			}
			for key := range st.Relations[model.RelationFollowing] {
				local.Following = append(local.Following, key)
			}
			for key := range st.Relations[model.RelationLikedPosts] {
				local.LikedPosts = append(local.LikedPosts, key)
			}
			for key := range st.Relations[model.RelationSavedPosts] {
				local.SavedPosts = append(local.SavedPosts, key)
			}
			return local
		},
		func(st engine.State, snap model.SyncSnapshot) []model.ChangeEvent {
			st.Relations[model.RelationFollowing] = keySet(snap.Following)
			st.Relations[model.RelationLikedPosts] = keySet(snap.LikedPosts)
			st.Relations[model.RelationSavedPosts] = keySet(snap.SavedPosts)
			st.Items.Posts = append([]model.SocialPost(nil), snap.Posts...)
			return []model.ChangeEvent{model.NewChangeEvent(StoreName, model.OpResync)}
		})
}

func keySet(keys []model.Key) map[model.Key]struct{} {
	set := make(map[model.Key]struct{}, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}

// ApplyCorrection applies a server-initiated membership revision.
func (s *Store) ApplyCorrection(relation model.RelationName, key model.Key, member bool) {
	s.c.ApplyCorrection(relation, key, member)
}

// Reset clears all relations and the feed and removes the persisted state.
func (s *Store) Reset(ctx context.Context) error {
	return s.c.Reset(ctx)
}

// Diagnostics reports the store's health counters.
func (s *Store) Diagnostics() engine.Diagnostics {
	return s.c.Diagnostics()
}

// Close waits for in-flight reconciliations and releases the store.
func (s *Store) Close() error {
	return s.c.Close()
}
