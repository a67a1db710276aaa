// Package contentgraph delivers transform records to their destination: the
// content-graph HTTP service, memory, or a JSONL stream.
package contentgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dgallion1/docsplit/internal/records"
	"github.com/google/uuid"
)

// namespace seeds node ids so the same identity always maps to the same node.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("docsplit.content-graph"))

// NodeID returns the stable node id for a record identity seed.
func NodeID(identity string) string {
	return uuid.NewSHA1(namespace, []byte(identity)).String()
}

// RetryableError marks a failure the content graph may recover from.
type RetryableError struct {
	StatusCode int
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("content graph status %d: %v (retryable)", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("content graph: %v (retryable)", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// Client communicates with the content-graph HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithRetries sets how many times a transient failure is attempted in total.
func WithRetries(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = uint(attempts)
		}
		c.delay = delay
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		attempts: 3,
		delay:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NodeRequest is the body for PUT /nodes/{id}.
type NodeRequest struct {
	Identity      string         `json:"identity"`
	Type          records.Type   `json:"type"`
	ContentDigest string         `json:"content_digest"`
	Record        records.Record `json:"record"`
}

// NodeResponse is the response from GET /nodes/{id}.
type NodeResponse struct {
	ID            string         `json:"id"`
	Identity      string         `json:"identity"`
	Type          records.Type   `json:"type"`
	ContentDigest string         `json:"content_digest"`
	Record        records.Record `json:"record"`
}

// Emit stores rec as a node, retrying transient failures.
func (c *Client) Emit(ctx context.Context, rec records.Record) error {
	req := NodeRequest{
		Identity:      rec.Identity,
		Type:          rec.Internal.Type,
		ContentDigest: rec.Internal.ContentDigest,
		Record:        rec,
	}
	id := NodeID(rec.Identity)
	return retry.Do(
		func() error { return c.PutNode(ctx, id, req) },
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
	)
}

// PutNode stores or replaces the node with the given id.
func (c *Client) PutNode(ctx context.Context, id string, req NodeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.nodeURL(id), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("put node %s: %w", req.Identity, &RetryableError{Err: err})
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("put node %s: %w", req.Identity, statusError(resp))
	}
	return nil
}

// GetNode retrieves a node by id. A missing node yields nil, nil.
func (c *Client) GetNode(ctx context.Context, id string) (*NodeResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get node: %w", &RetryableError{Err: err})
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get node %s: %w", id, statusError(resp))
	}

	var node NodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &node, nil
}

// DeleteNode removes a node. Deleting a missing node is not an error.
func (c *Client) DeleteNode(ctx context.Context, id string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.nodeURL(id), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("delete node: %w", &RetryableError{Err: err})
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	return fmt.Errorf("delete node %s: %w", id, statusError(resp))
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) nodeURL(id string) string {
	return c.baseURL + "/nodes/" + url.PathEscape(id)
}

func statusError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err := fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{StatusCode: resp.StatusCode, Err: err}
	}
	return err
}

func isRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
