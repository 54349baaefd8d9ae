// Package persist adapts the external pond/motor persistence endpoint to the
// editor's Persister port.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"pondops/editor-core/internal/editor"
)

// RemoteError is a structured rejection from the persistence endpoint.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("persistence endpoint rejected request: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("persistence endpoint returned status %d", e.Status)
}

// Client implements editor.Persister over HTTP.
type Client struct {
	log      zerolog.Logger
	baseURL  string
	clientID string
	http     *http.Client
}

func NewClient(log zerolog.Logger, baseURL, clientID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		log:      log,
		baseURL:  baseURL,
		clientID: clientID,
		http:     &http.Client{Timeout: timeout},
	}
}

type idResponse struct {
	ID int64 `json:"id"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SavePond creates or updates a pond. Negative ids are creations; the id
// field is omitted from the payload and the backend's assignment returned.
func (c *Client) SavePond(ctx context.Context, p *editor.Pond) (int64, error) {
	payload := map[string]any{
		"title":       p.Title,
		"coordinates": p.Coordinates,
		"centroid":    p.Centroid,
	}
	if p.SupplyLine != nil {
		payload["supply_line"] = p.SupplyLine
	}

	method := http.MethodPost
	path := "/api/v1/ponds"
	if p.Persisted() {
		method = http.MethodPut
		path = fmt.Sprintf("/api/v1/ponds/%d", p.ID)
	}

	var resp idResponse
	if err := c.do(ctx, method, path, payload, &resp); err != nil {
		return 0, err
	}
	if resp.ID != 0 {
		return resp.ID, nil
	}
	return p.ID, nil
}

// DeletePond removes a persisted pond.
func (c *Client) DeletePond(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/ponds/%d", id), nil, nil)
}

// SaveMotor creates or updates a motor within a pond.
func (c *Client) SaveMotor(ctx context.Context, pondID int64, m *editor.Motor) (int64, error) {
	payload := map[string]any{
		"motor_ref_id": m.RefID,
		"title":        m.Title,
		"position":     m.Position,
		"power_hp":     m.PowerHP,
		"state":        m.State,
		"fault_code":   m.FaultCode,
	}

	method := http.MethodPost
	path := fmt.Sprintf("/api/v1/ponds/%d/motors", pondID)
	if m.ID != nil {
		method = http.MethodPut
		path = fmt.Sprintf("/api/v1/motors/%d", *m.ID)
	}

	var resp idResponse
	if err := c.do(ctx, method, path, payload, &resp); err != nil {
		return 0, err
	}
	if resp.ID != 0 {
		return resp.ID, nil
	}
	if m.ID != nil {
		return *m.ID, nil
	}
	return 0, nil
}

// DeleteMotor removes a persisted motor.
func (c *Client) DeleteMotor(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/motors/%d", id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.clientID != "" {
		req.Header.Set("X-Client-ID", c.clientID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remote := &RemoteError{Status: resp.StatusCode}
		var env errorEnvelope
		if decodeErr := json.NewDecoder(resp.Body).Decode(&env); decodeErr == nil {
			remote.Code = env.Error.Code
			remote.Message = env.Error.Message
		}
		return remote
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode persistence response: %w", err)
		}
	}
	return nil
}
