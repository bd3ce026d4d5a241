// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/quarry-analytics/quarry/analytics"
	"github.com/quarry-analytics/quarry/tenant"
)

const (
	// maxRequestBody caps POST bodies. Queries are text; anything
	// bigger than this is not a query.
	maxRequestBody = 64 << 10

	// maxQueryLength bounds the query text itself.
	maxQueryLength = 10000
)

// deliveryMode selects how a result set travels to the caller.
type deliveryMode int

const (
	// deliverBuffered sends the whole result as one JSON document.
	deliverBuffered deliveryMode = iota
	// deliverStreaming sends newline-delimited JSON, one row per
	// line, flushed incrementally.
	deliverStreaming
)

// chooseDeliveryMode picks the delivery mode from the row count.
// Strictly greater than the threshold switches to streaming; a result
// of exactly threshold rows still fits one buffered document.
func chooseDeliveryMode(rowCount, threshold int) deliveryMode {
	if rowCount > threshold {
		return deliverStreaming
	}
	return deliverBuffered
}

// tenantKey is the context key carrying the authenticated tenant.
type tenantKey struct{}

// tenantFrom returns the tenant the auth middleware resolved.
func tenantFrom(ctx context.Context) *tenant.Tenant {
	record, _ := ctx.Value(tenantKey{}).(*tenant.Tenant)
	return record
}

// handler serves the query API. Every route requires a tenant API
// key.
type handler struct {
	service         *analytics.Service
	store           *tenant.Store
	streamThreshold int
	logger          *slog.Logger
}

func newHandler(service *analytics.Service, store *tenant.Store, streamThreshold int, logger *slog.Logger) http.Handler {
	h := &handler{
		service:         service,
		store:           store,
		streamThreshold: streamThreshold,
		logger:          logger,
	}

	// Every route is tenant-scoped, including the health probe: it
	// reports the caller's remote connectivity, not process liveness.
	mux := http.NewServeMux()
	mux.Handle("GET /health", h.authenticate(http.HandlerFunc(h.handleHealth)))
	mux.Handle("GET /databases", h.authenticate(http.HandlerFunc(h.handleDatabases)))
	mux.Handle("GET /schema", h.authenticate(http.HandlerFunc(h.handleSchema)))
	mux.Handle("POST /execute", h.authenticate(http.HandlerFunc(h.handleExecute)))
	return mux
}

// errorBody is the uniform JSON error shape for every failure the API
// reports, matching the result envelope's failure half.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Success: false, Error: message})
}

// authenticate resolves the bearer token to a tenant and stores it in
// the request context. Unknown and inactive keys get the same 401 so
// the response does not reveal which keys exist.
func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		record, err := h.store.ResolveAPIKey(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey{}, record)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	record := tenantFrom(r.Context())
	healthy := true
	if err := h.service.CheckConnection(r.Context(), record.ID); err != nil {
		h.logger.Warn("health probe failed", "tenant", record.ID, "error", err)
		healthy = false
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"healthy": healthy,
	})
}

func (h *handler) handleDatabases(w http.ResponseWriter, r *http.Request) {
	record := tenantFrom(r.Context())
	databases, err := h.service.ListDatabases(r.Context(), record.ID)
	if err != nil {
		h.logger.Warn("list databases failed", "tenant", record.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "database listing failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"databases": databases,
	})
}

func (h *handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	// An empty database is forwarded as-is; the remote service
	// describes its default database.
	database := r.URL.Query().Get("database")
	record := tenantFrom(r.Context())
	schema, err := h.service.GetSchema(r.Context(), record.ID, database)
	if err != nil {
		h.logger.Warn("schema describe failed",
			"tenant", record.ID, "database", database, "error", err)
		writeError(w, http.StatusInternalServerError, "schema lookup failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":  true,
		"schema":   schema,
		"database": database,
	})
}

// executeRequest is the POST /execute request body.
type executeRequest struct {
	Query    string `json:"query"`
	Database string `json:"database"`
}

func (h *handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var request executeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if request.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	// The bound is in characters, not bytes: a multibyte query of
	// maxQueryLength runes is valid.
	if utf8.RuneCountInString(request.Query) > maxQueryLength {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("query exceeds %d characters", maxQueryLength))
		return
	}

	record := tenantFrom(r.Context())
	result := h.service.ExecuteQuery(r.Context(), record.ID, request.Database, request.Query)

	// Failures never start a stream: one error document, error status.
	if !result.Success {
		writeError(w, http.StatusInternalServerError, result.Error)
		return
	}

	if chooseDeliveryMode(result.Metadata.RowCount, h.streamThreshold) == deliverStreaming {
		h.streamResult(w, r, result)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// streamLine is one line of the newline-delimited streaming response.
type streamLine struct {
	Type          string           `json:"type"`
	RowCount      int              `json:"rowCount,omitempty"`
	Columns       []string         `json:"columns,omitempty"`
	ExecutionTime float64          `json:"executionTime,omitempty"`
	Data          analytics.Record `json:"data,omitempty"`
}

// streamResult delivers a large result set as newline-delimited JSON:
// one metadata line, then one line per row, flushed as it goes. The
// loop stops as soon as a write fails or the request context ends; a
// disconnected client must not keep the encoder running.
func (h *handler) streamResult(w http.ResponseWriter, r *http.Request, result analytics.QueryResult) {
	// No Content-Length: the server chunks the transfer on its own.
	w.Header().Set("Content-Type", "application/x-ndjson")

	flusher, _ := w.(http.Flusher)
	encoder := json.NewEncoder(w)

	if err := encoder.Encode(streamLine{
		Type:          "metadata",
		RowCount:      result.Metadata.RowCount,
		Columns:       result.Metadata.Columns,
		ExecutionTime: result.Metadata.ExecutionTime,
	}); err != nil {
		return
	}
	if flusher != nil {
		flusher.Flush()
	}

	ctx := r.Context()
	for i, row := range result.Data {
		if ctx.Err() != nil {
			h.logger.Debug("stream canceled", "rows_sent", i)
			return
		}
		if err := encoder.Encode(streamLine{Type: "row", Data: row}); err != nil {
			h.logger.Debug("stream write failed", "rows_sent", i, "error", err)
			return
		}
		// Flush in small batches: per-row flushing costs a syscall
		// per line for no latency benefit at this row count.
		if flusher != nil && i%100 == 99 {
			flusher.Flush()
		}
	}
	if flusher != nil {
		flusher.Flush()
	}
}
