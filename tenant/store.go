// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/quarry-analytics/quarry/lib/sqlitepool"
)

// ErrUnknownAPIKey is returned by ResolveAPIKey for keys that match no
// active tenant. Unknown keys, revoked keys, and keys of inactive
// tenants all produce this same error so the response does not reveal
// which case occurred.
var ErrUnknownAPIKey = errors.New("tenant: unknown API key")

// ErrNotFound is returned by GetByID for missing tenants.
var ErrNotFound = errors.New("tenant: not found")

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	remote_url      TEXT NOT NULL,
	remote_api_key  TEXT NOT NULL,
	key_fingerprint TEXT NOT NULL UNIQUE,
	key_hash        TEXT NOT NULL,
	active          INTEGER NOT NULL DEFAULT 1,
	created_at      INTEGER NOT NULL
);
`

// Store is the SQLite-backed tenant store.
//
// Store is safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// StoreConfig holds the parameters for opening a Store.
type StoreConfig struct {
	// Path is the SQLite database file. Required.
	Path string

	// Logger receives operational messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// OpenStore opens (creating if necessary) the tenant database at the
// configured path. The caller must call Close when done.
func OpenStore(cfg StoreConfig) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   cfg.Path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tenant: opening store: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Upsert inserts or replaces a tenant record. The inbound API key is
// reduced to its fingerprint and argon2id hash before storage; the key
// itself is discarded. An existing record with the same ID is fully
// replaced, which is what catalog re-seeding relies on.
func (s *Store) Upsert(ctx context.Context, record Tenant, inboundAPIKey string) error {
	if record.ID == "" {
		return fmt.Errorf("tenant: ID is required")
	}
	if record.RemoteURL == "" {
		return fmt.Errorf("tenant: RemoteURL is required for %q", record.ID)
	}
	if inboundAPIKey == "" {
		return fmt.Errorf("tenant: inbound API key is required for %q", record.ID)
	}

	keyHash, err := HashAPIKey(inboundAPIKey)
	if err != nil {
		return err
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO tenants (id, name, remote_url, remote_api_key, key_fingerprint, key_hash, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			remote_url = excluded.remote_url,
			remote_api_key = excluded.remote_api_key,
			key_fingerprint = excluded.key_fingerprint,
			key_hash = excluded.key_hash,
			active = excluded.active`,
		&sqlitex.ExecOptions{
			Args: []any{
				record.ID,
				record.Name,
				record.RemoteURL,
				record.RemoteAPIKey,
				Fingerprint(inboundAPIKey),
				keyHash,
				boolToInt(record.Active),
				createdAt.Unix(),
			},
		})
	if err != nil {
		return fmt.Errorf("tenant: upserting %q: %w", record.ID, err)
	}

	s.logger.Info("tenant upserted", "tenant_id", record.ID, "active", record.Active)
	return nil
}

// GetByID returns the tenant with the given ID, or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*Tenant, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var found *Tenant
	err = sqlitex.Execute(conn, `
		SELECT id, name, remote_url, remote_api_key, active, created_at
		FROM tenants WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = scanTenant(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("tenant: looking up %q: %w", id, err)
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// ResolveAPIKey maps a presented inbound API key to its tenant.
// Lookup is by BLAKE3 fingerprint, then the argon2id hash is verified
// so that a leaked fingerprint column alone cannot authenticate.
// Returns ErrUnknownAPIKey for unknown keys and inactive tenants alike.
func (s *Store) ResolveAPIKey(ctx context.Context, presented string) (*Tenant, error) {
	if presented == "" {
		return nil, ErrUnknownAPIKey
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var (
		found   *Tenant
		keyHash string
		active  bool
	)
	err = sqlitex.Execute(conn, `
		SELECT id, name, remote_url, remote_api_key, active, created_at, key_hash
		FROM tenants WHERE key_fingerprint = ?`,
		&sqlitex.ExecOptions{
			Args: []any{Fingerprint(presented)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = scanTenant(stmt)
				active = stmt.ColumnInt(4) != 0
				keyHash = stmt.ColumnText(6)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("tenant: resolving API key: %w", err)
	}

	if found == nil || !active || !VerifyAPIKey(presented, keyHash) {
		return nil, ErrUnknownAPIKey
	}
	return found, nil
}

// List returns all tenant records ordered by ID.
func (s *Store) List(ctx context.Context) ([]Tenant, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var tenants []Tenant
	err = sqlitex.Execute(conn, `
		SELECT id, name, remote_url, remote_api_key, active, created_at
		FROM tenants ORDER BY id`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				tenants = append(tenants, *scanTenant(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("tenant: listing: %w", err)
	}
	return tenants, nil
}

// scanTenant reads the common column prefix (id, name, remote_url,
// remote_api_key, active, created_at) from a result row.
func scanTenant(stmt *sqlite.Stmt) *Tenant {
	return &Tenant{
		ID:           stmt.ColumnText(0),
		Name:         stmt.ColumnText(1),
		RemoteURL:    stmt.ColumnText(2),
		RemoteAPIKey: stmt.ColumnText(3),
		Active:       stmt.ColumnInt(4) != 0,
		CreatedAt:    time.Unix(stmt.ColumnInt64(5), 0).UTC(),
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
