// Package testing provides a mock implementation of the remote service for
// testing.
package testing

import (
	"context"
	"sync"

	"github.com/satchelbase/satchel/pkg/model"
)

// ToggleCall records one toggle-style call.
type ToggleCall struct {
	Op       string // relation, like, save
	Relation model.RelationName
	Actor    model.Key
	Target   model.Key
	EntityID string
	Desired  bool
}

// CreateCall records one CreateEntity call.
type CreateCall struct {
	Actor   model.Key
	Kind    model.Kind
	Payload []byte
}

// DeleteCall records one DeleteEntity call.
type DeleteCall struct {
	Actor    model.Key
	EntityID string
}

// MockService is a scriptable remote.Service. By default every toggle agrees
// with the desired state, CreateEntity accepts the local identifier, and
// FetchFullState returns the configured snapshot.
type MockService struct {
	mu sync.Mutex

	toggleCalls []ToggleCall
	createCalls []CreateCall
	deleteCalls []DeleteCall
	fetchCalls  int
	pingCalls   int

	err            error
	relationResult *bool
	likeResult     *bool
	saveResult     *bool
	createResult   *model.CanonicalEntity
	snapshot       model.SyncSnapshot

	// gate, when set, blocks every call until the channel is closed or the
	// context is canceled.
	gate <-chan struct{}
}

// NewMockService creates a new MockService.
func NewMockService() *MockService {
	return &MockService{}
}

func (m *MockService) wait(ctx context.Context) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()

	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return model.WrapError(ctx.Err())
	}
}

// ToggleRelation records the call and returns the scripted or echoed state.
func (m *MockService) ToggleRelation(ctx context.Context, relation model.RelationName, actor, target model.Key, desired bool) (bool, error) {
	if err := m.wait(ctx); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.toggleCalls = append(m.toggleCalls, ToggleCall{
		Op:       "relation",
		Relation: relation,
		Actor:    actor,
		Target:   target,
		Desired:  desired,
	})
	if m.err != nil {
		return false, m.err
	}
	if m.relationResult != nil {
		return *m.relationResult, nil
	}
	return desired, nil
}

// ToggleLike records the call and returns the scripted or echoed state.
func (m *MockService) ToggleLike(ctx context.Context, actor model.Key, entityID string, desired bool) (bool, error) {
	if err := m.wait(ctx); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.toggleCalls = append(m.toggleCalls, ToggleCall{
		Op:       "like",
		Actor:    actor,
		EntityID: entityID,
		Desired:  desired,
	})
	if m.err != nil {
		return false, m.err
	}
	if m.likeResult != nil {
		return *m.likeResult, nil
	}
	return desired, nil
}

// ToggleSave records the call and returns the scripted or echoed state.
func (m *MockService) ToggleSave(ctx context.Context, actor model.Key, entityID string, desired bool) (bool, error) {
	if err := m.wait(ctx); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.toggleCalls = append(m.toggleCalls, ToggleCall{
		Op:       "save",
		Actor:    actor,
		EntityID: entityID,
		Desired:  desired,
	})
	if m.err != nil {
		return false, m.err
	}
	if m.saveResult != nil {
		return *m.saveResult, nil
	}
	return desired, nil
}

// CreateEntity records the call and returns the scripted canonical record.
// Without a scripted result it returns a record with an empty ID, meaning
// the server accepted the local identifier as-is.
func (m *MockService) CreateEntity(ctx context.Context, actor model.Key, kind model.Kind, payload []byte) (model.CanonicalEntity, error) {
	if err := m.wait(ctx); err != nil {
		return model.CanonicalEntity{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls = append(m.createCalls, CreateCall{
		Actor:   actor,
		Kind:    kind,
		Payload: append([]byte(nil), payload...),
	})
	if m.err != nil {
		return model.CanonicalEntity{}, m.err
	}
	if m.createResult != nil {
		return *m.createResult, nil
	}
	return model.CanonicalEntity{Kind: kind}, nil
}

// DeleteEntity records the call.
func (m *MockService) DeleteEntity(ctx context.Context, actor model.Key, entityID string) error {
	if err := m.wait(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteCalls = append(m.deleteCalls, DeleteCall{Actor: actor, EntityID: entityID})
	return m.err
}

// FetchFullState returns the configured snapshot.
func (m *MockService) FetchFullState(ctx context.Context, actor model.Key, local model.SyncSnapshot) (model.SyncSnapshot, error) {
	if err := m.wait(ctx); err != nil {
		return model.SyncSnapshot{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetchCalls++
	if m.err != nil {
		return model.SyncSnapshot{}, m.err
	}
	return m.snapshot, nil
}

// Ping returns the configured error.
func (m *MockService) Ping(ctx context.Context) error {
	if err := m.wait(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pingCalls++
	return m.err
}

// SetError sets an error to return from every call.
func (m *MockService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetRelationResult forces ToggleRelation responses instead of echoing.
func (m *MockService) SetRelationResult(result bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relationResult = &result
}

// SetLikeResult forces ToggleLike responses instead of echoing.
func (m *MockService) SetLikeResult(result bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.likeResult = &result
}

// SetSaveResult forces ToggleSave responses instead of echoing.
func (m *MockService) SetSaveResult(result bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveResult = &result
}

// SetCreateResult forces the CreateEntity response.
func (m *MockService) SetCreateResult(ent model.CanonicalEntity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createResult = &ent
}

// SetSnapshot sets the FetchFullState response.
func (m *MockService) SetSnapshot(snap model.SyncSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snap
}

// SetGate blocks every subsequent call until the channel is closed.
func (m *MockService) SetGate(gate <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

// ToggleCalls returns all recorded toggle-style calls.
func (m *MockService) ToggleCalls() []ToggleCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ToggleCall(nil), m.toggleCalls...)
}

// CreateCalls returns all recorded CreateEntity calls.
func (m *MockService) CreateCalls() []CreateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CreateCall(nil), m.createCalls...)
}

// DeleteCalls returns all recorded DeleteEntity calls.
func (m *MockService) DeleteCalls() []DeleteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeleteCall(nil), m.deleteCalls...)
}

// FetchCalls returns the number of FetchFullState calls.
func (m *MockService) FetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// PingCalls returns the number of Ping calls.
func (m *MockService) PingCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingCalls
}

// Reset clears recorded calls and scripted behavior.
func (m *MockService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggleCalls = nil
	m.createCalls = nil
	m.deleteCalls = nil
	m.fetchCalls = 0
	m.pingCalls = 0
	m.err = nil
	m.relationResult = nil
	m.likeResult = nil
	m.saveResult = nil
	m.createResult = nil
	m.snapshot = model.SyncSnapshot{}
	m.gate = nil
}
