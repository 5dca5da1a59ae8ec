// Package cart implements the cart store: an ordered list of priced line
// items keyed by product, with purchase aggregates. Lines are entities; the
// remote service learns about them through the entity pipeline, and quantity
// changes stay local until checkout reads the cart.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/satchelbase/satchel/internal/blob"
	"github.com/satchelbase/satchel/internal/engine"
	"github.com/satchelbase/satchel/internal/pubsub"
	"github.com/satchelbase/satchel/internal/remote"
	"github.com/satchelbase/satchel/pkg/model"
)

// StoreName is the cart's blob name and change feed store component.
const StoreName = "cart"

// Options configures a cart store.
type Options struct {
	// Actor is the acting user key carried on remote calls.
	Actor model.Key

	// Blob persists the cart. Required.
	Blob blob.Store

	// Publisher carries change events. Optional.
	Publisher pubsub.Publisher

	// Remote registers created and deleted lines. Optional.
	Remote remote.Service

	SyncTimeout time.Duration
	Logger      *slog.Logger
}

// Store is the cart. Safe for concurrent use.
type Store struct {
	c *engine.Container

	// mu serializes read-then-write operations (merge on add, quantity
	// updates) that span more than one container transaction.
	mu sync.Mutex
}

// Open loads the persisted cart, starting empty when nothing was persisted
// or the persisted payload is unreadable.
func Open(ctx context.Context, opts Options) (*Store, error) {
	c, err := engine.NewContainer(ctx, engine.Options{
		Store: StoreName,
		Actor: opts.Actor,
		Relations: []engine.RelationSpec{
			{Name: model.RelationCartProducts, Sync: engine.SyncNone},
		},
		Blob:        opts.Blob,
		Publisher:   opts.Publisher,
		Remote:      opts.Remote,
		SyncTimeout: opts.SyncTimeout,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open cart store: %w", err)
	}
	return &Store{c: c}, nil
}

// AddItem puts quantity units of a product in the cart and returns the
// resulting line. Adding a product that already has a line grows that line's
// quantity; otherwise a new line is appended and registered with the remote
// service in the background.
func (s *Store) AddItem(ctx context.Context, product model.Product, quantity int) (model.CartItem, error) {
	if product.ID == "" {
		return model.CartItem{}, fmt.Errorf("product id is required")
	}
	if quantity < 1 {
		return model.CartItem{}, fmt.Errorf("quantity must be at least 1, got %d", quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var merged *model.CartItem
	err := s.c.Update(ctx, func(st engine.State) []model.ChangeEvent {
		for i := range st.Items.Cart {
			if st.Items.Cart[i].ProductID == product.ID {
				st.Items.Cart[i].Quantity += quantity
				line := st.Items.Cart[i]
				merged = &line
				return []model.ChangeEvent{
					model.NewChangeEvent(StoreName, model.OpUpdate).WithEntity(model.KindCartItem, line.ID),
				}
			}
		}
		return nil
	})
	if err != nil {
		return model.CartItem{}, err
	}
	if merged != nil {
		return *merged, nil
	}

	item := model.CartItem{
		ID:            model.NewLocalID(model.KindCartItem.IDPrefix()),
		ProductID:     product.ID,
		Name:          product.Name,
		Price:         product.Price,
		OriginalPrice: product.OriginalPrice,
		Quantity:      quantity,
		CreatedAt:     time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return model.CartItem{}, fmt.Errorf("encode cart item: %w", err)
	}

	err = s.c.CreateAndSync(ctx, model.KindCartItem, item.ID, payload, func(st engine.State) []model.ChangeEvent {
		st.Items.Cart = append(st.Items.Cart, item)
		st.Relations[model.RelationCartProducts][product.ID] = struct{}{}
		return nil
	})
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line. Returns model.ErrNotFound when no line has the identifier.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return s.removeLocked(ctx, itemID)
	}

	found := false
	err := s.c.Update(ctx, func(st engine.State) []model.ChangeEvent {
		for i := range st.Items.Cart {
			if st.Items.Cart[i].ID == itemID {
				st.Items.Cart[i].Quantity = quantity
				found = true
				return []model.ChangeEvent{
					model.NewChangeEvent(StoreName, model.OpUpdate).WithEntity(model.KindCartItem, itemID),
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return model.ErrNotFound
	}
	return nil
}

// RemoveItem deletes a line. The remote deletion is fire-and-forget; its
// failure never restores the line.
func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, itemID)
}

func (s *Store) removeLocked(ctx context.Context, itemID string) error {
	return s.c.DeleteAndSync(ctx, model.KindCartItem, itemID, func(st engine.State) ([]model.ChangeEvent, bool) {
		kept := st.Items.Cart[:0]
		found := false
		for _, line := range st.Items.Cart {
			if line.ID == itemID {
				found = true
				delete(st.Relations[model.RelationCartProducts], line.ProductID)
				continue
			}
			kept = append(kept, line)
		}
		st.Items.Cart = kept
		return nil, found
	})
}

// Items returns the cart lines in insertion order.
func (s *Store) Items() []model.CartItem {
	var out []model.CartItem
	s.c.View(func(st engine.State) {
		out = append(out, st.Items.Cart...)
	})
	return out
}

// Contains reports whether the cart has a line for the product.
func (s *Store) Contains(productID model.Key) bool {
	return s.c.IsMember(model.RelationCartProducts, productID)
}

// ItemCount is the number of units in the cart: the sum of line quantities.
func (s *Store) ItemCount() int {
	var n int
	s.c.View(func(st engine.State) {
		for _, line := range st.Items.Cart {
			n += line.Quantity
		}
	})
	return n
}

// Subtotal is the cart's monetary total: price times quantity, summed.
func (s *Store) Subtotal() float64 {
	var total float64
	s.c.View(func(st engine.State) {
		for _, line := range st.Items.Cart {
			total += line.Price * float64(line.Quantity)
		}
	})
	return total
}

// Savings sums the discount across lines whose original price exceeds the
// current price.
func (s *Store) Savings() float64 {
	var saved float64
	s.c.View(func(st engine.State) {
		for _, line := range st.Items.Cart {
			if line.OriginalPrice > line.Price {
				saved += (line.OriginalPrice - line.Price) * float64(line.Quantity)
			}
		}
	})
	return saved
}

// Reset empties the cart and removes its persisted state.
func (s *Store) Reset(ctx context.Context) error {
	return s.c.Reset(ctx)
}

// Diagnostics reports the cart's health counters.
func (s *Store) Diagnostics() engine.Diagnostics {
	return s.c.Diagnostics()
}

// Close waits for in-flight remote registrations and releases the store.
func (s *Store) Close() error {
	return s.c.Close()
}
