// Package httpclient implements the remote service API over HTTP JSON.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/satchelbase/satchel/pkg/model"
)

// TokenSource yields a bearer token for outgoing requests. A nil source
// sends unauthenticated requests.
type TokenSource interface {
	Token() (string, error)
}

// Client is an HTTP client for the remote reconciliation service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// New creates a new remote service Client.
func New(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
	}
}

func (c *Client) ToggleRelation(ctx context.Context, relation model.RelationName, actor, target model.Key, desired bool) (bool, error) {
	reqBody := map[string]interface{}{
		"relation": relation,
		"actor":    actor,
		"target":   target,
		"desired":  desired,
	}
	resp, err := c.post(ctx, "/api/v1/relations/toggle", reqBody)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return false, err
	}

	var result struct {
		Result bool `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.Result, nil
}

func (c *Client) ToggleLike(ctx context.Context, actor model.Key, entityID string, desired bool) (bool, error) {
	reqBody := map[string]interface{}{
		"actor":    actor,
		"entityId": entityID,
		"desired":  desired,
	}
	resp, err := c.post(ctx, "/api/v1/likes/toggle", reqBody)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return false, err
	}

	var result struct {
		Liked bool `json:"liked"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.Liked, nil
}

func (c *Client) ToggleSave(ctx context.Context, actor model.Key, entityID string, desired bool) (bool, error) {
	reqBody := map[string]interface{}{
		"actor":    actor,
		"entityId": entityID,
		"desired":  desired,
	}
	resp, err := c.post(ctx, "/api/v1/saves/toggle", reqBody)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return false, err
	}

	var result struct {
		Saved bool `json:"saved"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.Saved, nil
}

func (c *Client) CreateEntity(ctx context.Context, actor model.Key, kind model.Kind, payload []byte) (model.CanonicalEntity, error) {
	reqBody := map[string]interface{}{
		"actor":   actor,
		"kind":    kind,
		"payload": json.RawMessage(payload),
	}
	resp, err := c.post(ctx, "/api/v1/entities/create", reqBody)
	if err != nil {
		return model.CanonicalEntity{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusCreated); err != nil {
		return model.CanonicalEntity{}, err
	}

	var ent model.CanonicalEntity
	if err := json.NewDecoder(resp.Body).Decode(&ent); err != nil {
		return model.CanonicalEntity{}, err
	}
	return ent, nil
}

func (c *Client) DeleteEntity(ctx context.Context, actor model.Key, entityID string) error {
	reqBody := map[string]interface{}{
		"actor":    actor,
		"entityId": entityID,
	}
	resp, err := c.post(ctx, "/api/v1/entities/delete", reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.ErrNotFound
	}
	return checkStatus(resp, http.StatusNoContent)
}

func (c *Client) FetchFullState(ctx context.Context, actor model.Key, local model.SyncSnapshot) (model.SyncSnapshot, error) {
	reqBody := map[string]interface{}{
		"actor": actor,
		"state": local,
	}
	resp, err := c.post(ctx, "/api/v1/state/sync", reqBody)
	if err != nil {
		return model.SyncSnapshot{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return model.SyncSnapshot{}, err
	}

	var snap model.SyncSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return model.SyncSnapshot{}, err
	}
	return snap, nil
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return err
	}
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapTransportError(err)
	}
	defer resp.Body.Close()

	return checkStatus(resp, http.StatusOK)
}

func (c *Client) post(ctx context.Context, endpoint string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	return resp, nil
}

func (c *Client) authorize(req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// wrapTransportError maps connection-level failures to ErrUnavailable so
// callers can treat them as transient, keeping cancellation distinct.
func wrapTransportError(err error) error {
	if model.IsCanceled(err) {
		return model.WrapError(err)
	}
	return fmt.Errorf("%w: %v", model.ErrUnavailable, err)
}

func checkStatus(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status code %d", model.ErrUnavailable, resp.StatusCode)
	}
	return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
}
