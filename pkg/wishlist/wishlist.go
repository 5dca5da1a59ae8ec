// Package wishlist implements the wishlist store: a save-toggle over
// products with a local entity mirror so pages can render names and prices
// without a catalog lookup.
package wishlist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/satchelbase/satchel/internal/blob"
	"github.com/satchelbase/satchel/internal/engine"
	"github.com/satchelbase/satchel/internal/pubsub"
	"github.com/satchelbase/satchel/internal/remote"
	"github.com/satchelbase/satchel/pkg/model"
)

// StoreName is the wishlist's blob name and change feed store component.
const StoreName = "wishlist"

// Options configures a wishlist store.
type Options struct {
	// Actor is the acting user key carried on remote calls.
	Actor model.Key

	// Blob persists the wishlist. Required.
	Blob blob.Store

	// Publisher carries change events. Optional.
	Publisher pubsub.Publisher

	// Remote reconciles save toggles. Optional.
	Remote remote.Service

	SyncTimeout time.Duration
	Logger      *slog.Logger
}

// Store is the wishlist. Safe for concurrent use.
type Store struct {
	c *engine.Container
}

// Open loads the persisted wishlist, starting empty when nothing was
// persisted or the persisted payload is unreadable.
func Open(ctx context.Context, opts Options) (*Store, error) {
	c, err := engine.NewContainer(ctx, engine.Options{
		Store: StoreName,
		Actor: opts.Actor,
		Relations: []engine.RelationSpec{
			{Name: model.RelationSavedProducts, Sync: engine.SyncSave},
		},
		Blob:        opts.Blob,
		Publisher:   opts.Publisher,
		Remote:      opts.Remote,
		SyncTimeout: opts.SyncTimeout,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open wishlist store: %w", err)
	}
	return &Store{c: c}, nil
}

// Toggle flips whether the product is saved and returns the pre-toggle
// state. Saving mirrors the product into the item list in the same
// transaction; unsaving removes the mirror. The remote service is told in
// the background and may override the flip later.
func (s *Store) Toggle(ctx context.Context, product model.Product) (bool, error) {
	if product.ID == "" {
		return false, fmt.Errorf("product id is required")
	}

	mirror := func(st engine.State, member bool) []model.ChangeEvent {
		if !member {
			kept := st.Items.Wishlist[:0]
			for _, item := range st.Items.Wishlist {
				if item.ProductID != product.ID {
					kept = append(kept, item)
				}
			}
			st.Items.Wishlist = kept
			return nil
		}
		for i := range st.Items.Wishlist {
			if st.Items.Wishlist[i].ProductID == product.ID {
				// A mirror left behind by a remote override; refresh it.
				st.Items.Wishlist[i].Name = product.Name
				st.Items.Wishlist[i].Price = product.Price
				st.Items.Wishlist[i].OriginalPrice = product.OriginalPrice
				return nil
			}
		}
		st.Items.Wishlist = append(st.Items.Wishlist, model.WishlistItem{
			ID:            model.NewLocalID(model.KindWishlistItem.IDPrefix()),
			ProductID:     product.ID,
			Name:          product.Name,
			Price:         product.Price,
			OriginalPrice: product.OriginalPrice,
			CreatedAt:     time.Now().UnixMilli(),
		})
		return nil
	}

	return s.c.ToggleWith(ctx, model.RelationSavedProducts, product.ID, mirror)
}

// Contains reports whether the product is saved.
func (s *Store) Contains(productID model.Key) bool {
	return s.c.IsMember(model.RelationSavedProducts, productID)
}

// Items returns the mirrors of currently saved products in save order.
// Mirrors whose save was overridden by the remote service are skipped.
func (s *Store) Items() []model.WishlistItem {
	var out []model.WishlistItem
	s.c.View(func(st engine.State) {
		for _, item := range st.Items.Wishlist {
			if _, saved := st.Relations[model.RelationSavedProducts][item.ProductID]; saved {
				out = append(out, item)
			}
		}
	})
	return out
}

// Count is the number of saved products.
func (s *Store) Count() int {
	return s.c.Count(model.RelationSavedProducts)
}

// TotalValue sums the prices of saved products.
func (s *Store) TotalValue() float64 {
	var total float64
	for _, item := range s.Items() {
		total += item.Price
	}
	return total
}

// Savings sums the discount across saved products whose original price
// exceeds the current price.
func (s *Store) Savings() float64 {
	var saved float64
	for _, item := range s.Items() {
		if item.OriginalPrice > item.Price {
			saved += item.OriginalPrice - item.Price
		}
	}
	return saved
}

// ApplyCorrection applies a server-initiated save revision.
func (s *Store) ApplyCorrection(relation model.RelationName, key model.Key, member bool) {
	s.c.ApplyCorrection(relation, key, member)
}

// Reset empties the wishlist and removes its persisted state.
func (s *Store) Reset(ctx context.Context) error {
	return s.c.Reset(ctx)
}

// Diagnostics reports the wishlist's health counters.
func (s *Store) Diagnostics() engine.Diagnostics {
	return s.c.Diagnostics()
}

// Close waits for in-flight reconciliations and releases the store.
func (s *Store) Close() error {
	return s.c.Close()
}
