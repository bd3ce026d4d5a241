// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// CatalogEntry is one tenant in a seed catalog file. Unlike [Tenant],
// the entry carries the inbound API key in the clear — catalog files
// are deployment artifacts with restricted permissions, and the key is
// reduced to fingerprint + hash on insert.
type CatalogEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RemoteURL    string `json:"remote_url"`
	RemoteAPIKey string `json:"remote_api_key"`
	APIKey       string `json:"api_key"`
	Active       *bool  `json:"active,omitempty"`
}

// ParseCatalog strips JSONC comments and trailing commas from data,
// then unmarshals the result into catalog entries. The format is a
// JSON array extended with // line comments, /* block comments */,
// and trailing commas.
func ParseCatalog(data []byte) ([]CatalogEntry, error) {
	stripped := jsonc.ToJSON(data)

	var entries []CatalogEntry
	if err := json.Unmarshal(stripped, &entries); err != nil {
		return nil, fmt.Errorf("parsing tenant catalog: %w", err)
	}
	return entries, nil
}

// SeedCatalog reads the JSONC catalog file at path and upserts every
// entry into the store. Seeding is idempotent: re-running with the
// same catalog leaves the store unchanged apart from created_at on
// first insert. Entries default to active unless the catalog says
// otherwise.
func SeedCatalog(ctx context.Context, store *Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading tenant catalog %s: %w", path, err)
	}

	entries, err := ParseCatalog(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	for _, entry := range entries {
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		record := Tenant{
			ID:           entry.ID,
			Name:         entry.Name,
			RemoteURL:    entry.RemoteURL,
			RemoteAPIKey: entry.RemoteAPIKey,
			Active:       active,
		}
		if err := store.Upsert(ctx, record, entry.APIKey); err != nil {
			return fmt.Errorf("seeding tenant %q: %w", entry.ID, err)
		}
	}
	return nil
}
