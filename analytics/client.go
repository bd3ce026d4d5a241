// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quarry-analytics/quarry/lib/netutil"
)

const (
	// protocolVersion is sent during the initialize handshake.
	protocolVersion = "2025-03-26"

	// sessionHeader carries the session token granted by the
	// initialize handshake on every subsequent request.
	sessionHeader = "X-Quarry-Session"

	// apiKeyHeader authenticates every request to the remote service.
	apiKeyHeader = "X-Api-Key"
)

// Client speaks the analytical query protocol to one tenant's remote
// service endpoint. It owns the session lifecycle: the first call
// performs the initialize handshake, and the resulting session token
// rides along on every later request. Safe for concurrent use.
//
// The Client never retries. A failed handshake leaves the client
// uninitialized so the next call attempts it again.
type Client struct {
	tenantID    string
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	callTimeout time.Duration
	logger      *slog.Logger

	requestSeq atomic.Int64

	mu          sync.Mutex
	initialized bool
	sessionID   string
}

// NewClient builds a client for one tenant endpoint. The *http.Client
// is typically shared across tenants (see Registry) and carries no
// timeout of its own; callTimeout bounds each call instead, covering
// the full exchange including the body read. Zero means unbounded
// (the caller's ctx is the only limit).
func NewClient(tenantID, baseURL, apiKey string, httpClient *http.Client, callTimeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		tenantID:    tenantID,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		httpClient:  httpClient,
		callTimeout: callTimeout,
		logger:      logger.With("tenant", tenantID),
	}
}

// rpcRequest is the wire request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// ensureSession performs the initialize handshake exactly once per
// session, single-flighted: concurrent first calls on a fresh client
// serialize here and all but one observe the already-established
// session. The mutex is held across the handshake network call on
// purpose; per-tenant serialization of initialization is the point.
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}

	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "quarry-queryd",
			"version": "1.0",
		},
	}
	envelope, header, err := c.post(ctx, "initialize", params, "")
	if err != nil {
		return fmt.Errorf("analytics: initialize: %w", err)
	}

	sessionID := header.Get(sessionHeader)
	if sessionID == "" {
		// Some deployments return the token in the result body
		// instead of the response header.
		var body resultBody
		if err := json.Unmarshal(envelope.Result, &body); err == nil {
			sessionID = body.SessionID
		}
	}

	c.sessionID = sessionID
	c.initialized = true
	c.logger.Info("session established", "has_token", sessionID != "")
	return nil
}

// post sends one request and decodes the response body, whichever
// framing the service chose. sessionID is empty for the handshake
// itself.
func (c *Client) post(ctx context.Context, method string, params any, sessionID string) (*Envelope, http.Header, error) {
	// The timeout spans the whole exchange: a remote that returns
	// headers and then stalls mid-body must not block forever. The
	// body is fully read before this function returns, so the
	// deferred cancel fires only after the read completes.
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestSeq.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json, text/event-stream")
	request.Header.Set(apiKeyHeader, c.apiKey)
	if sessionID != "" {
		request.Header.Set(sessionHeader, sessionID)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", method, err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: read response: %w", method, err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, nil, &RemoteError{
			Code:       response.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			StatusCode: response.StatusCode,
		}
	}

	envelope, err := Decode(string(body))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", method, err)
	}
	return envelope, response.Header, nil
}

// call runs one method against an established session, performing the
// handshake first if needed.
func (c *Client) call(ctx context.Context, method string, params any) (*Envelope, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	envelope, _, err := c.post(ctx, method, params, sessionID)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	return envelope, nil
}

// ExecuteQuery runs a query against the named database and returns
// the normalized result. Query-level failures (backend error text,
// remote errors) come back inside the QueryResult; only transport and
// protocol breakdowns return an error.
func (c *Client) ExecuteQuery(ctx context.Context, database, query string) (QueryResult, error) {
	envelope, err := c.call(ctx, "query/execute", map[string]any{
		"database": database,
		"query":    query,
	})
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) {
			result := failedResult(remote.Message)
			result.Metadata.Database = database
			result.Metadata.Query = query
			return result, nil
		}
		return QueryResult{}, err
	}

	result := ExtractPayload(envelope)
	result.Metadata.Database = database
	if result.Metadata.Query == "" {
		result.Metadata.Query = query
	}
	return result, nil
}

// ListDatabases returns the database descriptors the remote service
// exposes to this tenant.
func (c *Client) ListDatabases(ctx context.Context) ([]Record, error) {
	envelope, err := c.call(ctx, "databases/list", nil)
	if err != nil {
		return nil, err
	}
	payload := ExtractPayload(envelope)
	if !payload.Success {
		return nil, fmt.Errorf("analytics: list databases: %s", payload.Error)
	}
	return payload.Data, nil
}

// GetSchema describes the named database's tables and columns.
func (c *Client) GetSchema(ctx context.Context, database string) ([]Record, error) {
	envelope, err := c.call(ctx, "schema/describe", map[string]any{
		"database": database,
	})
	if err != nil {
		return nil, err
	}
	payload := ExtractPayload(envelope)
	if !payload.Success {
		return nil, fmt.Errorf("analytics: schema %s: %s", database, payload.Error)
	}
	return payload.Data, nil
}

// SearchStatistics queries the remote statistics index.
func (c *Client) SearchStatistics(ctx context.Context, term string) ([]Record, error) {
	envelope, err := c.call(ctx, "statistics/search", map[string]any{
		"term": term,
	})
	if err != nil {
		return nil, err
	}
	payload := ExtractPayload(envelope)
	if !payload.Success {
		return nil, fmt.Errorf("analytics: statistics search: %s", payload.Error)
	}
	return payload.Data, nil
}

// CheckConnection pings the remote service over the established
// session and reports reachability.
func (c *Client) CheckConnection(ctx context.Context) error {
	if _, err := c.call(ctx, "ping", nil); err != nil {
		return fmt.Errorf("analytics: ping: %w", err)
	}
	return nil
}
