// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quarry-analytics/quarry/lib/audit"
	"github.com/quarry-analytics/quarry/lib/clock"
	"github.com/quarry-analytics/quarry/tenant"
)

// Directory resolves tenant identifiers to their stored records.
// *tenant.Store satisfies it.
type Directory interface {
	GetByID(ctx context.Context, id string) (*tenant.Tenant, error)
}

// Service is the query execution facade: it resolves the tenant,
// dispatches to that tenant's client, and records an audit trail.
// HTTP handlers talk to the Service, never to clients directly.
type Service struct {
	directory Directory
	registry  *Registry
	auditLog  *audit.Log
	clock     clock.Clock
	logger    *slog.Logger
}

// NewService wires the facade. auditLog may be nil, in which case no
// trail is written.
func NewService(directory Directory, registry *Registry, auditLog *audit.Log, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{
		directory: directory,
		registry:  registry,
		auditLog:  auditLog,
		clock:     clk,
		logger:    logger,
	}
}

// clientFor resolves the tenant record and returns its cached client.
func (s *Service) clientFor(ctx context.Context, tenantID string) (*Client, error) {
	record, err := s.directory.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("analytics: resolve tenant %s: %w", tenantID, err)
	}
	return s.registry.GetOrCreate(record.ID, record.RemoteURL, record.RemoteAPIKey), nil
}

// ExecuteQuery runs a query on behalf of a tenant. It never returns a
// transport error to the caller: every failure mode is folded into
// the QueryResult so delivery code has exactly one shape to handle.
func (s *Service) ExecuteQuery(ctx context.Context, tenantID, database, query string) QueryResult {
	started := s.clock.Now()

	client, err := s.clientFor(ctx, tenantID)
	if err != nil {
		s.logger.Warn("tenant resolution failed", "tenant", tenantID, "error", err)
		result := failedResult(err.Error())
		s.record(tenantID, database, query, result, s.clock.Since(started))
		return result
	}

	result, err := client.ExecuteQuery(ctx, database, query)
	if err != nil {
		s.logger.Warn("query transport failure",
			"tenant", tenantID, "database", database, "error", err)
		result = failedResult(err.Error())
		result.Metadata.Database = database
		result.Metadata.Query = query
	}

	s.record(tenantID, database, query, result, s.clock.Since(started))
	return result
}

// ListDatabases returns the databases visible to the tenant.
func (s *Service) ListDatabases(ctx context.Context, tenantID string) ([]Record, error) {
	client, err := s.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return client.ListDatabases(ctx)
}

// GetSchema describes a database's structure for the tenant.
func (s *Service) GetSchema(ctx context.Context, tenantID, database string) ([]Record, error) {
	client, err := s.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return client.GetSchema(ctx, database)
}

// SearchStatistics searches the remote statistics index for the
// tenant.
func (s *Service) SearchStatistics(ctx context.Context, tenantID, term string) ([]Record, error) {
	client, err := s.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return client.SearchStatistics(ctx, term)
}

// CheckConnection verifies the tenant's remote endpoint is reachable.
func (s *Service) CheckConnection(ctx context.Context, tenantID string) error {
	client, err := s.clientFor(ctx, tenantID)
	if err != nil {
		return err
	}
	return client.CheckConnection(ctx)
}

// record appends one audit entry. Audit failures are logged and
// swallowed: losing a trail entry must not fail the query it
// describes.
func (s *Service) record(tenantID, database, query string, result QueryResult, elapsed time.Duration) {
	if s.auditLog == nil {
		return
	}
	entry := audit.Record{
		Time:         s.clock.Now().UTC(),
		TenantID:     tenantID,
		QueryHash:    audit.HashQuery(query),
		Database:     database,
		Success:      result.Success,
		RowCount:     result.Metadata.RowCount,
		SkippedLines: result.Metadata.SkippedLines,
		Duration:     elapsed,
		Error:        result.Error,
	}
	if err := s.auditLog.Append(entry); err != nil {
		s.logger.Error("audit append failed", "tenant", tenantID, "error", err)
	}
}
