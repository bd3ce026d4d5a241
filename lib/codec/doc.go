// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Quarry's standard CBOR encoding configuration.
//
// Quarry uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the remote analytical service
//     protocol, the inbound HTTP API, and NDJSON streaming.
//   - CBOR for internal records: the query audit log and any future
//     on-disk state files.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Quarry package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (append-only log files):
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
package codec
