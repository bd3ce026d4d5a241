// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package tenant provides tenant records, API-key credential handling,
// and the SQLite-backed tenant store.
//
// A tenant is the unit of isolation for the analytical query pipeline:
// each tenant has its own remote service endpoint and credential, and
// the query client registry never shares sessions across tenants. The
// store resolves inbound API keys to tenants for the HTTP layer's
// authorization middleware.
//
// API keys are never stored. The store keeps an argon2id hash for
// verification and a BLAKE3 keyed fingerprint for O(1) lookup; the
// fingerprint key is domain-separated so fingerprints cannot collide
// with any other hash in the system.
//
// Tenants can be seeded from a JSONC catalog file at startup
// ([SeedCatalog]); seeding is an idempotent upsert keyed by tenant ID.
package tenant
