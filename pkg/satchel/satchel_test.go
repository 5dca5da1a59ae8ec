package satchel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchelbase/satchel/internal/blob"
	"github.com/satchelbase/satchel/internal/logging"
	"github.com/satchelbase/satchel/internal/remote/push"
	"github.com/satchelbase/satchel/pkg/model"
)

// testConfig returns a config that keeps everything in process: memory
// blobs, the in-memory feed, no remote, no log output.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Actor = "usr_self"
	cfg.Storage = blob.Config{Backend: blob.BackendMemory}
	cfg.Logging = logging.Config{
		Level:   "error",
		Format:  "text",
		Dir:     t.TempDir(),
		Console: logging.ConsoleConfig{Enabled: false, Level: "error"},
		File:    logging.FileConfig{Enabled: false, Level: "error"},
	}
	return cfg
}

func openTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitEvent(t *testing.T, ch <-chan model.ChangeEvent, op model.ChangeOp) model.ChangeEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "feed closed before %s arrived", op)
			if ev.Op == op {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", op)
		}
	}
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Actor = ""

	_, err := Open(context.Background(), cfg)
	require.Error(t, err)
}

func TestClient_MemoryStack(t *testing.T) {
	c := openTestClient(t, testConfig(t))
	ctx := context.Background()

	_, err := c.Cart.AddItem(ctx, model.Product{ID: "prd_1", Name: "Mug", Price: 8}, 2)
	require.NoError(t, err)

	saved, err := c.Wishlist.Toggle(ctx, model.Product{ID: "prd_2", Name: "Lamp", Price: 40})
	require.NoError(t, err)
	assert.True(t, saved)

	following, err := c.Social.ToggleFollow(ctx, "usr_a")
	require.NoError(t, err)
	assert.True(t, following)

	assert.True(t, c.Cart.Contains("prd_1"))
	assert.True(t, c.Wishlist.Contains("prd_2"))
	assert.True(t, c.Social.IsFollowing("usr_a"))

	diags := c.Diagnostics()
	require.Len(t, diags, 3)
	stores := []string{diags[0].Store, diags[1].Store, diags[2].Store}
	assert.Equal(t, []string{"cart", "wishlist", "social"}, stores)

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestClient_NoRemoteConfigured(t *testing.T) {
	c := openTestClient(t, testConfig(t))

	assert.ErrorIs(t, c.CheckAvailability(context.Background()), model.ErrUnavailable)
	assert.ErrorIs(t, c.Resync(context.Background()), model.ErrUnavailable)
}

func TestClient_WatchDeliversEvents(t *testing.T) {
	c := openTestClient(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Watch(ctx)
	require.NoError(t, err)

	_, err = c.Cart.AddItem(ctx, model.Product{ID: "prd_1", Price: 8}, 1)
	require.NoError(t, err)

	ev := waitEvent(t, events, model.OpCreate)
	assert.Equal(t, "cart", ev.Store)
	assert.Equal(t, model.KindCartItem, ev.Kind)
	assert.True(t, model.IsLocalID(ev.EntityID, "itm"))

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, 2*time.Second, 5*time.Millisecond, "watch channel should close on cancel")
}

func TestClient_ResetAll(t *testing.T) {
	c := openTestClient(t, testConfig(t))
	ctx := context.Background()

	_, err := c.Cart.AddItem(ctx, model.Product{ID: "prd_1", Price: 8}, 1)
	require.NoError(t, err)
	_, err = c.Wishlist.Toggle(ctx, model.Product{ID: "prd_2", Price: 40})
	require.NoError(t, err)
	_, err = c.Social.ToggleFollow(ctx, "usr_a")
	require.NoError(t, err)

	require.NoError(t, c.ResetAll(ctx))

	assert.Empty(t, c.Cart.Items())
	assert.False(t, c.Wishlist.Contains("prd_2"))
	assert.False(t, c.Social.IsFollowing("usr_a"))
}

func TestClient_PersistsAcrossReopen(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage = blob.Config{Backend: blob.BackendPebble, Dir: t.TempDir()}
	ctx := context.Background()

	first := openTestClient(t, cfg)
	_, err := first.Cart.AddItem(ctx, model.Product{ID: "prd_1", Name: "Mug", Price: 8}, 2)
	require.NoError(t, err)
	_, err = first.Social.ToggleFollow(ctx, "usr_a")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := openTestClient(t, cfg)
	require.Len(t, second.Cart.Items(), 1)
	assert.Equal(t, "Mug", second.Cart.Items()[0].Name)
	assert.True(t, second.Social.IsFollowing("usr_a"))
}

func TestClient_RouteCorrection(t *testing.T) {
	c := openTestClient(t, testConfig(t))
	ctx := context.Background()

	_, err := c.Wishlist.Toggle(ctx, model.Product{ID: "prd_2", Price: 40})
	require.NoError(t, err)
	_, err = c.Social.ToggleFollow(ctx, "usr_a")
	require.NoError(t, err)

	c.routeCorrection(push.Correction{Relation: model.RelationSavedProducts, Key: "prd_2", Member: false})
	c.routeCorrection(push.Correction{Relation: model.RelationFollowing, Key: "usr_a", Member: false})
	// Unmanaged relations are dropped.
	c.routeCorrection(push.Correction{Relation: model.RelationCartProducts, Key: "prd_9", Member: true})
	c.routeCorrection(push.Correction{Relation: "unknownRelation", Key: "x", Member: true})

	assert.False(t, c.Wishlist.Contains("prd_2"))
	assert.False(t, c.Social.IsFollowing("usr_a"))
	assert.False(t, c.Cart.Contains("prd_9"))
}
