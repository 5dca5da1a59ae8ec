// Package codec serializes store state into a versioned, checksummed JSON
// envelope and migrates older envelope versions forward on decode.
package codec

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/satchelbase/satchel/pkg/model"
)

// Version is the envelope version this package encodes.
const Version = 3

// Snapshot is one store's persisted state: relation sets as key lists,
// ordered entity lists, and the per-relation sequence floor.
type Snapshot struct {
	Relations map[model.RelationName][]model.Key `json:"relations,omitempty"`
	Items     Items                              `json:"items"`
	Seq       map[model.RelationName]uint64      `json:"seq,omitempty"`
}

// Items holds the ordered entity lists. List order is preserved verbatim.
type Items struct {
	Cart     []model.CartItem     `json:"cart,omitempty"`
	Wishlist []model.WishlistItem `json:"wishlist,omitempty"`
	Posts    []model.SocialPost   `json:"posts,omitempty"`
}

type envelope struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	State    json.RawMessage `json:"state"`
}

// Encode serializes a snapshot into the current envelope version. Relation
// keys are sorted so equal states produce identical bytes.
func Encode(snap Snapshot) ([]byte, error) {
	normalized := Snapshot{
		Relations: make(map[model.RelationName][]model.Key, len(snap.Relations)),
		Items:     snap.Items,
		Seq:       snap.Seq,
	}
	for rel, keys := range snap.Relations {
		sorted := append([]model.Key(nil), keys...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		normalized.Relations[rel] = sorted
	}

	state, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	return json.Marshal(envelope{
		Version:  Version,
		Checksum: checksum(state),
		State:    state,
	})
}

// Decode parses an envelope of any supported version, migrating older
// shapes forward. It returns model.ErrMalformedBlob for anything
// structurally unusable and model.ErrVersionTooNew when the payload was
// written by a newer codec.
func Decode(data []byte) (Snapshot, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", model.ErrMalformedBlob, err)
	}
	if probe.Version <= 0 {
		return Snapshot{}, fmt.Errorf("%w: missing envelope version", model.ErrMalformedBlob)
	}
	if probe.Version > Version {
		return Snapshot{}, fmt.Errorf("%w: envelope version %d, newest supported is %d",
			model.ErrVersionTooNew, probe.Version, Version)
	}

	for v := probe.Version; v < Version; v++ {
		migrated, err := migrations[v](data)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: migrate v%d: %v", model.ErrMalformedBlob, v, err)
		}
		data = migrated
	}

	return decodeCurrent(data)
}

func decodeCurrent(data []byte) (Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", model.ErrMalformedBlob, err)
	}
	if len(env.State) == 0 {
		return Snapshot{}, fmt.Errorf("%w: missing state", model.ErrMalformedBlob)
	}
	if env.Checksum != checksum(env.State) {
		return Snapshot{}, fmt.Errorf("%w: checksum mismatch", model.ErrMalformedBlob)
	}

	var snap Snapshot
	if err := json.Unmarshal(env.State, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", model.ErrMalformedBlob, err)
	}

	// Relations are sets: drop duplicate keys a hand-edited payload may
	// carry, keeping first occurrence.
	for rel, keys := range snap.Relations {
		snap.Relations[rel] = dedupKeys(keys)
	}
	if snap.Relations == nil {
		snap.Relations = make(map[model.RelationName][]model.Key)
	}
	if snap.Seq == nil {
		snap.Seq = make(map[model.RelationName]uint64)
	}
	return snap, nil
}

func dedupKeys(keys []model.Key) []model.Key {
	seen := make(map[model.Key]struct{}, len(keys))
	out := make([]model.Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func checksum(state []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(state))
}
