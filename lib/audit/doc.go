// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit provides the append-only query audit log.
//
// Every query the facade executes produces one [Record]: tenant,
// query fingerprint (query text is never stored verbatim), target
// database, outcome, row count, and duration. Records are encoded as
// CBOR (lib/codec), zstd-compressed, and appended to a single log
// file as length-prefixed frames.
//
// The log is purely observational: append failures are reported to
// the caller for logging but must never fail the query that produced
// the record.
package audit
