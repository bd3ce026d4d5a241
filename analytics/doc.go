// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package analytics implements the per-tenant client for the remote
// analytical query service and the facade the HTTP layer consumes.
//
// The remote service is a stateful JSON-RPC endpoint: clients perform
// an initialize handshake that may grant an opaque session token, then
// attach that token to every subsequent request. Responses to the same
// logical call arrive in inconsistent wire shapes — one JSON envelope,
// or a text/event-stream body, with result payloads that may themselves
// be an error string, a newline-delimited record stream, a single JSON
// object, or opaque text. This package absorbs all of that variability:
//
//   - [Client] owns one tenant's session lifecycle (handshake, token
//     reuse, single-flight initialization under concurrent first use).
//   - [Decode] and [ExtractPayload] resolve every recognized wire shape
//     to the one internal [QueryResult] all callers consume.
//   - [Registry] holds one lazily-created Client per tenant for the
//     life of the process; sessions are never shared across tenants.
//   - [Service] is the facade: initialize → call → decode → normalize,
//     converting every transport and protocol failure into a
//     {success:false, error} result rather than letting it escape.
//
// Nothing in this package retries: a failed handshake or query fails
// once and the caller decides what to do next.
package analytics
