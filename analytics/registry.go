// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Registry caches one Client per tenant so session state survives
// across requests. All clients share a single *http.Client and its
// connection pool.
//
// The registry lock guards only the map. Session handshakes happen
// inside the client's own lock, so a slow handshake for one tenant
// never blocks lookups for another.
type Registry struct {
	httpClient  *http.Client
	callTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// NewRegistry builds an empty registry. Passing a nil httpClient uses
// http.DefaultClient. callTimeout bounds every remote call made by
// the clients this registry builds; zero means unbounded.
func NewRegistry(httpClient *http.Client, callTimeout time.Duration, logger *slog.Logger) *Registry {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Registry{
		httpClient:  httpClient,
		callTimeout: callTimeout,
		logger:      logger,
		clients:     make(map[string]*Client),
	}
}

// GetOrCreate returns the tenant's cached client, building one on
// first use. Endpoint changes for an existing tenant require Evict
// first; a cached client keeps the endpoint it was built with.
func (r *Registry) GetOrCreate(tenantID, baseURL, apiKey string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[tenantID]; ok {
		return client
	}
	client := NewClient(tenantID, baseURL, apiKey, r.httpClient, r.callTimeout, r.logger)
	r.clients[tenantID] = client
	r.logger.Info("client created", "tenant", tenantID)
	return client
}

// Evict drops the tenant's cached client. The next GetOrCreate builds
// a fresh one, forcing a new session handshake. In-flight calls on
// the evicted client complete normally.
func (r *Registry) Evict(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, tenantID)
}

// Len reports the number of cached clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
