// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides shared runtime infrastructure for Quarry service
// binaries: structured logger construction and an HTTP server wrapper with
// readiness signaling and graceful shutdown.
//
// Key exports:
//
//   - [NewLogger] -- JSON slog logger to stderr, set as the process default
//   - [HTTPServer] -- TCP listener lifecycle: Serve(ctx) blocks until the
//     context is cancelled and in-flight requests drain
package service
