// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the Quarry-standard SQLite connection pool.
//
// Services that need local structured storage (currently the tenant
// store) use this package. It wraps zombiezen.com/go/sqlite with
// production-ready defaults: WAL journal mode, NORMAL synchronous for
// process-crash durability without fsync-per-commit overhead, and a
// busy timeout to handle write contention gracefully.
//
// The pool is built on zombiezen's sqlitex.Pool, which manages a
// fixed-size set of connections. Callers [Pool.Take] a connection,
// perform work, and [Pool.Put] it back. Connections are NOT safe for
// concurrent use — each goroutine must hold its own connection for the
// duration of its work.
//
// This package is intentionally thin: it applies standard pragmas and
// exposes the underlying zombiezen types directly. Services write SQL,
// use sqlitex.Execute for cached statements, and manage transactions
// with sqlitex.ImmediateTransaction.
package sqlitepool
