// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package tenant

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/argon2"
)

// Tenant is one customer of the platform. The record carries what the
// query pipeline needs: the remote analytical service endpoint and the
// credential the tenant-scoped client presents to it.
type Tenant struct {
	// ID is the stable tenant identifier (e.g., "acme"). Used as the
	// client registry key and in audit records.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// RemoteURL is the base URL of the tenant's analytical service.
	RemoteURL string `json:"remote_url"`

	// RemoteAPIKey is the credential the query client sends to the
	// remote service. Stored at rest; never exposed over HTTP.
	RemoteAPIKey string `json:"remote_api_key"`

	// Active gates inbound access. Inactive tenants fail
	// authorization with the same error as an unknown key.
	Active bool `json:"active"`

	// CreatedAt is when the record was first inserted.
	CreatedAt time.Time `json:"created_at"`
}

// fingerprintKey is the BLAKE3 domain separation key for API-key
// fingerprints. The byte values are the ASCII encoding of the domain
// name, zero-padded to 32 bytes; readable ASCII makes the key
// inspectable in hex dumps without sacrificing any cryptographic
// property (BLAKE3 keyed mode treats the key as opaque bytes).
var fingerprintKey = [32]byte{
	'q', 'u', 'a', 'r', 'r', 'y', '.', 't', 'e', 'n', 'a', 'n', 't', '.',
	'a', 'p', 'i', 'k', 'e', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Argon2id parameters for API-key hashing at rest. Keys are
// high-entropy machine credentials (not human passwords), so the
// memory cost can stay modest without weakening the scheme.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// Fingerprint returns the hex-encoded BLAKE3 keyed fingerprint of an
// API key. Fingerprints are safe to store, index, and log: recovering
// the key from one requires breaking BLAKE3's keyed mode.
func Fingerprint(apiKey string) string {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		// NewKeyed only fails on a wrong-sized key; ours is a
		// compile-time constant.
		panic("tenant: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write([]byte(apiKey))
	return hex.EncodeToString(hasher.Sum(nil)[:32])
}

// HashAPIKey returns the salted argon2id hash of an API key, encoded
// as "salt-hex:hash-hex". Stored alongside the fingerprint so that a
// fingerprint table leak alone cannot be replayed against the service.
func HashAPIKey(apiKey string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("tenant: generating salt: %w", err)
	}
	digest := argon2.IDKey([]byte(apiKey), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(digest), nil
}

// VerifyAPIKey reports whether apiKey matches the stored
// "salt-hex:hash-hex" encoding produced by [HashAPIKey].
func VerifyAPIKey(apiKey, stored string) bool {
	saltHex, hashHex, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}
	digest := argon2.IDKey([]byte(apiKey), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(digest, expected) == 1
}
