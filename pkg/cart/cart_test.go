package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchelbase/satchel/internal/blob/memory"
	pubsubtesting "github.com/satchelbase/satchel/internal/pubsub/testing"
	remotetesting "github.com/satchelbase/satchel/internal/remote/testing"
	"github.com/satchelbase/satchel/pkg/cart"
	"github.com/satchelbase/satchel/pkg/model"
)

type cartEnv struct {
	svc  *remotetesting.MockService
	pub  *pubsubtesting.MockPublisher
	blob *memory.Store
}

func newTestCart(t *testing.T) (*cart.Store, *cartEnv) {
	t.Helper()

	env := &cartEnv{
		svc:  remotetesting.NewMockService(),
		pub:  pubsubtesting.NewMockPublisher(),
		blob: memory.New(),
	}
	s, err := cart.Open(context.Background(), cart.Options{
		Actor:       "usr_self",
		Blob:        env.blob,
		Publisher:   env.pub,
		Remote:      env.svc,
		SyncTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, env
}

func TestAddItem_AppendsLine(t *testing.T) {
	s, env := newTestCart(t)

	item, err := s.AddItem(context.Background(), model.Product{
		ID:    "prd_7",
		Name:  "Trail Shoe",
		Price: 20.00,
	}, 2)
	require.NoError(t, err)

	assert.True(t, model.IsLocalID(item.ID, "itm"))
	assert.Equal(t, model.Key("prd_7"), item.ProductID)
	assert.Equal(t, "Trail Shoe", item.Name)
	assert.Equal(t, 2, item.Quantity)
	assert.NotZero(t, item.CreatedAt)

	require.Len(t, s.Items(), 1)
	assert.True(t, s.Contains("prd_7"))
	assert.False(t, s.Contains("prd_other"))

	require.NoError(t, s.Close())
	calls := env.svc.CreateCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, model.KindCartItem, calls[0].Kind)
}

func TestAddItem_MergesExistingProduct(t *testing.T) {
	s, env := newTestCart(t)
	ctx := context.Background()
	product := model.Product{ID: "prd_7", Price: 20.00}

	first, err := s.AddItem(ctx, product, 1)
	require.NoError(t, err)
	second, err := s.AddItem(ctx, product, 2)
	require.NoError(t, err)

	// The same line grew; no second entity was created.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, second.Quantity)
	require.Len(t, s.Items(), 1)
	assert.Equal(t, 3, s.ItemCount())

	require.NoError(t, s.Close())
	assert.Len(t, env.svc.CreateCalls(), 1)
}

func TestAddItem_Validation(t *testing.T) {
	s, _ := newTestCart(t)
	ctx := context.Background()

	_, err := s.AddItem(ctx, model.Product{Price: 5}, 1)
	require.Error(t, err)

	_, err = s.AddItem(ctx, model.Product{ID: "prd_1"}, 0)
	require.Error(t, err)
	assert.Empty(t, s.Items())
}

func TestCart_CheckoutScenario(t *testing.T) {
	s, _ := newTestCart(t)
	ctx := context.Background()

	assert.Equal(t, 0, s.ItemCount())
	assert.InDelta(t, 0.0, s.Subtotal(), 1e-9)

	item, err := s.AddItem(ctx, model.Product{ID: "prd_7", Price: 20.00}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, s.ItemCount())
	assert.InDelta(t, 40.00, s.Subtotal(), 1e-9)

	// Quantity zero removes the line.
	require.NoError(t, s.UpdateQuantity(ctx, item.ID, 0))
	assert.Equal(t, 0, s.ItemCount())
	assert.InDelta(t, 0.0, s.Subtotal(), 1e-9)
	assert.Empty(t, s.Items())
	assert.False(t, s.Contains("prd_7"))
}

func TestUpdateQuantity(t *testing.T) {
	s, _ := newTestCart(t)
	ctx := context.Background()

	item, err := s.AddItem(ctx, model.Product{ID: "prd_1", Price: 5.00}, 1)
	require.NoError(t, err)

	require.NoError(t, s.UpdateQuantity(ctx, item.ID, 5))
	assert.Equal(t, 5, s.ItemCount())

	err = s.UpdateQuantity(ctx, "itm_unknown", 3)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestRemoveItem(t *testing.T) {
	s, env := newTestCart(t)
	ctx := context.Background()

	item, err := s.AddItem(ctx, model.Product{ID: "prd_1", Price: 5.00}, 1)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, model.Product{ID: "prd_2", Price: 7.00}, 1)
	require.NoError(t, err)

	require.NoError(t, s.RemoveItem(ctx, item.ID))
	require.Len(t, s.Items(), 1)
	assert.False(t, s.Contains("prd_1"))
	assert.True(t, s.Contains("prd_2"))

	err = s.RemoveItem(ctx, item.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.Close())
	deletes := env.svc.DeleteCalls()
	require.Len(t, deletes, 1)
	assert.Equal(t, item.ID, deletes[0].EntityID)
}

func TestAggregates(t *testing.T) {
	s, _ := newTestCart(t)
	ctx := context.Background()

	_, err := s.AddItem(ctx, model.Product{ID: "prd_1", Price: 20.00, OriginalPrice: 25.00}, 2)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, model.Product{ID: "prd_2", Price: 10.00}, 1)
	require.NoError(t, err)

	assert.Equal(t, 3, s.ItemCount())
	assert.InDelta(t, 50.00, s.Subtotal(), 1e-9)
	assert.InDelta(t, 10.00, s.Savings(), 1e-9)
}

func TestAddItem_RegistersCanonicalID(t *testing.T) {
	s, env := newTestCart(t)
	env.svc.SetCreateResult(model.CanonicalEntity{ID: "itm_server_1", Kind: model.KindCartItem})

	_, err := s.AddItem(context.Background(), model.Product{ID: "prd_1", Price: 5.00}, 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		items := s.Items()
		return len(items) == 1 && items[0].ID == "itm_server_1"
	}, 2*time.Second, 5*time.Millisecond)

	// Product membership keys are untouched by the identifier rewrite.
	assert.True(t, s.Contains("prd_1"))
}

func TestAddItem_OfflineTolerated(t *testing.T) {
	s, env := newTestCart(t)
	env.svc.SetError(model.ErrUnavailable)

	item, err := s.AddItem(context.Background(), model.Product{ID: "prd_1", Price: 5.00}, 1)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
}

func TestCart_SurvivesRestart(t *testing.T) {
	s, env := newTestCart(t)
	ctx := context.Background()

	_, err := s.AddItem(ctx, model.Product{ID: "prd_1", Price: 5.00}, 1)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, model.Product{ID: "prd_2", Price: 7.00}, 2)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	again, err := cart.Open(ctx, cart.Options{Actor: "usr_self", Blob: env.blob})
	require.NoError(t, err)
	defer again.Close()

	items := again.Items()
	require.Len(t, items, 2)
	assert.Equal(t, model.Key("prd_1"), items[0].ProductID)
	assert.Equal(t, model.Key("prd_2"), items[1].ProductID)
	assert.Equal(t, 3, again.ItemCount())
	assert.True(t, again.Contains("prd_1"))
}

func TestCart_Reset(t *testing.T) {
	s, env := newTestCart(t)
	ctx := context.Background()

	_, err := s.AddItem(ctx, model.Product{ID: "prd_1", Price: 5.00}, 1)
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))
	assert.Empty(t, s.Items())
	assert.Equal(t, 0, s.ItemCount())
	assert.False(t, s.Contains("prd_1"))

	_, err = env.blob.Read(ctx, cart.StoreName)
	assert.ErrorIs(t, err, model.ErrBlobNotFound)
}
