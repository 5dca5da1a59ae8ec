// Package engine implements the optimistic state container: membership
// relations and ordered entity lists that mutate synchronously, persist
// write-through, and reconcile against the remote service in the background.
// The local guess is always applied first; the server may override it later,
// one key at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satchelbase/satchel/internal/blob"
	"github.com/satchelbase/satchel/internal/codec"
	"github.com/satchelbase/satchel/internal/metrics"
	"github.com/satchelbase/satchel/internal/pubsub"
	"github.com/satchelbase/satchel/internal/remote"
	"github.com/satchelbase/satchel/pkg/model"
)

// SyncOp selects which remote call reconciles a relation's toggles.
type SyncOp int

const (
	// SyncNone keeps the relation purely local.
	SyncNone SyncOp = iota
	// SyncRelation reconciles through ToggleRelation.
	SyncRelation
	// SyncLike reconciles through ToggleLike.
	SyncLike
	// SyncSave reconciles through ToggleSave.
	SyncSave
)

// RelationSpec declares one membership relation carried by a container.
type RelationSpec struct {
	Name model.RelationName

	// Evicts lists relations a key is removed from when it enters this one.
	Evicts []model.RelationName

	// Sync selects the reconciliation call for this relation's toggles.
	Sync SyncOp
}

// Options configures a container.
type Options struct {
	// Store names the container. It is the blob name and the change feed
	// subject component.
	Store string

	// Actor is the acting user key carried on reconciliation calls.
	Actor model.Key

	Relations []RelationSpec

	// Blob persists the container state. Required.
	Blob blob.Store

	// Publisher carries change events. Optional.
	Publisher pubsub.Publisher

	// Remote reconciles mutations. Optional; without it the container runs
	// fully local.
	Remote remote.Service

	// SyncTimeout bounds each background reconciliation call.
	SyncTimeout time.Duration

	Logger *slog.Logger
}

const defaultSyncTimeout = 15 * time.Second

// Container holds one store's relations and entity lists. All mutations are
// synchronous and persisted before they return; reconciliation runs on
// goroutines tracked until Close.
type Container struct {
	name        string
	actor       model.Key
	rules       map[model.RelationName][]model.RelationName
	syncOps     map[model.RelationName]SyncOp
	blob        blob.Store
	pub         pubsub.Publisher
	remote      remote.Service
	syncTimeout time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	relations map[model.RelationName]map[model.Key]struct{}
	items     codec.Items
	seq       map[model.RelationName]map[model.Key]uint64
	seqFloor  map[model.RelationName]uint64
	closed    bool
	loadErr   error

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// NewContainer creates a container and loads its persisted state. An
// unreadable blob is recovered as empty state; only blob I/O failures are
// returned.
func NewContainer(ctx context.Context, opts Options) (*Container, error) {
	if opts.Store == "" {
		return nil, fmt.Errorf("store name is required")
	}
	if len(opts.Relations) == 0 {
		return nil, fmt.Errorf("at least one relation is required")
	}
	if opts.Blob == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	syncTimeout := opts.SyncTimeout
	if syncTimeout <= 0 {
		syncTimeout = defaultSyncTimeout
	}

	c := &Container{
		name:        opts.Store,
		actor:       opts.Actor,
		rules:       make(map[model.RelationName][]model.RelationName),
		syncOps:     make(map[model.RelationName]SyncOp),
		blob:        opts.Blob,
		pub:         opts.Publisher,
		remote:      opts.Remote,
		syncTimeout: syncTimeout,
		logger:      logger.With("component", "engine", "store", opts.Store),
		relations:   make(map[model.RelationName]map[model.Key]struct{}),
		seq:         make(map[model.RelationName]map[model.Key]uint64),
		seqFloor:    make(map[model.RelationName]uint64),
	}
	for _, spec := range opts.Relations {
		if _, dup := c.relations[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate relation: %s", spec.Name)
		}
		c.relations[spec.Name] = make(map[model.Key]struct{})
		if len(spec.Evicts) > 0 {
			c.rules[spec.Name] = spec.Evicts
		}
		c.syncOps[spec.Name] = spec.Sync
	}

	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// load reads the persisted blob and installs it. Malformed or too-new blobs
// are discarded: the container starts empty and records the failure for
// Diagnostics.
func (c *Container) load(ctx context.Context) error {
	data, err := c.blob.Read(ctx, c.name)
	if errors.Is(err, model.ErrBlobNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read persisted state %s: %w", c.name, err)
	}

	snap, err := codec.Decode(data)
	if err != nil {
		c.loadErr = err
		switch {
		case errors.Is(err, model.ErrVersionTooNew):
			c.logger.Error("persisted state requires a newer build, starting empty", "error", err)
			metrics.LoadRecoveries.WithLabelValues(c.name, "version_too_new").Inc()
		default:
			c.logger.Warn("persisted state unreadable, starting empty", "error", err)
			metrics.LoadRecoveries.WithLabelValues(c.name, "malformed").Inc()
		}
		return nil
	}

	for name, keys := range snap.Relations {
		set, known := c.relations[name]
		if !known {
			// A relation this build no longer carries. Dropped on the next
			// write-through.
			c.logger.Warn("dropping persisted keys of unknown relation", "relation", name, "keys", len(keys))
			continue
		}
		for _, key := range keys {
			set[key] = struct{}{}
		}
	}
	c.items = snap.Items
	for name, floor := range snap.Seq {
		if _, known := c.relations[name]; known {
			c.seqFloor[name] = floor
		}
	}
	return nil
}

// nextSeqLocked issues the next sequence number for a key, never below the
// persisted floor so responses from a previous process cannot look fresh.
func (c *Container) nextSeqLocked(relation model.RelationName, key model.Key) uint64 {
	m := c.seq[relation]
	if m == nil {
		m = make(map[model.Key]uint64)
		c.seq[relation] = m
	}
	n := m[key]
	if floor := c.seqFloor[relation]; n < floor {
		n = floor
	}
	n++
	m[key] = n
	if n > c.seqFloor[relation] {
		c.seqFloor[relation] = n
	}
	return n
}

// invalidateLocked bumps every issued sequence number of a relation so all
// in-flight reconciliation responses for it are discarded on arrival.
func (c *Container) invalidateLocked(relation model.RelationName) {
	for key := range c.seq[relation] {
		c.nextSeqLocked(relation, key)
	}
}

// snapshotLocked assembles the codec snapshot of the current state.
func (c *Container) snapshotLocked() codec.Snapshot {
	snap := codec.Snapshot{
		Relations: make(map[model.RelationName][]model.Key, len(c.relations)),
		Items:     c.items,
		Seq:       make(map[model.RelationName]uint64),
	}
	for name, set := range c.relations {
		if len(set) == 0 {
			continue
		}
		keys := make([]model.Key, 0, len(set))
		for key := range set {
			keys = append(keys, key)
		}
		snap.Relations[name] = keys
	}
	for name, floor := range c.seqFloor {
		if floor > 0 {
			snap.Seq[name] = floor
		}
	}
	return snap
}

// persistLocked writes the current state through to the blob store. A write
// failure is logged and counted, never surfaced: the in-memory mutation has
// already happened and the user must not see it fail.
func (c *Container) persistLocked() {
	data, err := codec.Encode(c.snapshotLocked())
	if err != nil {
		c.logger.Error("state encode failed", "error", err)
		metrics.BlobWriteErrors.WithLabelValues(c.name).Inc()
		return
	}
	if err := c.blob.Write(context.Background(), c.name, data); err != nil {
		c.logger.Error("write-through failed", "error", err)
		metrics.BlobWriteErrors.WithLabelValues(c.name).Inc()
	}
}

// publish sends change events to the feed, if one is attached.
func (c *Container) publish(events ...model.ChangeEvent) {
	if c.pub == nil {
		return
	}
	for _, ev := range events {
		data, err := ev.Encode()
		if err != nil {
			c.logger.Error("change event encode failed", "op", ev.Op, "error", err)
			continue
		}
		if err := c.pub.Publish(context.Background(), ev.Subject(), data); err != nil {
			c.logger.Warn("change event publish failed", "subject", ev.Subject(), "error", err)
			metrics.PublishErrors.WithLabelValues(c.name).Inc()
			continue
		}
		metrics.EventsPublished.WithLabelValues(c.name).Inc()
	}
}

// spawn runs fn on a tracked goroutine. Returns false once closed.
func (c *Container) spawn(fn func(ctx context.Context)) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.wg.Add(1)
	c.mu.Unlock()

	c.inFlight.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.inFlight.Add(-1)
		ctx, cancel := context.WithTimeout(context.Background(), c.syncTimeout)
		defer cancel()
		fn(ctx)
	}()
	return true
}

// Name returns the store name.
func (c *Container) Name() string {
	return c.name
}

// IsMember reports whether key is present in relation.
func (c *Container) IsMember(relation model.RelationName, key model.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.relations[relation]
	if !ok {
		return false
	}
	_, present := set[key]
	return present
}

// Members returns the keys of a relation in lexical order.
func (c *Container) Members(relation model.RelationName) []model.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.relations[relation]
	if !ok {
		return nil
	}
	keys := make([]model.Key, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Count returns the cardinality of a relation.
func (c *Container) Count(relation model.RelationName) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.relations[relation])
}

// Diagnostics reports container health counters.
type Diagnostics struct {
	Store     string                     `json:"store"`
	LoadError string                     `json:"loadError,omitempty"`
	Relations map[model.RelationName]int `json:"relations"`
	CartItems int                        `json:"cartItems,omitempty"`
	Wishlist  int                        `json:"wishlistItems,omitempty"`
	Posts     int                        `json:"posts,omitempty"`
	InFlight  int64                      `json:"inFlight"`
}

// Diagnostics returns a point-in-time view of the container.
func (c *Container) Diagnostics() Diagnostics {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := Diagnostics{
		Store:     c.name,
		Relations: make(map[model.RelationName]int, len(c.relations)),
		CartItems: len(c.items.Cart),
		Wishlist:  len(c.items.Wishlist),
		Posts:     len(c.items.Posts),
		InFlight:  c.inFlight.Load(),
	}
	if c.loadErr != nil {
		d.LoadError = c.loadErr.Error()
	}
	for name, set := range c.relations {
		d.Relations[name] = len(set)
	}
	return d
}

// Close stops accepting mutations and waits for in-flight reconciliations.
func (c *Container) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}
