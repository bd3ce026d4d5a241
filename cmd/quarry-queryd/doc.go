// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// quarry-queryd is the multi-tenant query gateway. It authenticates
// tenants by API key, proxies their analytical queries to each
// tenant's remote service over a session-managed protocol client, and
// delivers results adaptively: small result sets as one JSON
// document, large ones as a newline-delimited stream.
package main
