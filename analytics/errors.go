// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"errors"
	"fmt"
	"strings"
)

// RemoteError is a structured error response from the remote
// analytical service. Callers can use errors.As to extract the
// structured information:
//
//	var remoteErr *RemoteError
//	if errors.As(err, &remoteErr) {
//	    if remoteErr.Code == -32600 { ... }
//	}
type RemoteError struct {
	// Code is the JSON-RPC error code reported by the service.
	Code int `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// StatusCode is the HTTP status code of the response, when the
	// error came from an HTTP-level failure rather than an envelope.
	StatusCode int `json:"-"`
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analytics: remote error (%d, http %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("analytics: remote error (%d): %s", e.Code, e.Message)
}

// ErrProtocol indicates a response body that matched none of the
// recognized wire encodings. Decode failures are protocol errors, not
// data errors: the whole call fails with no partial result.
var ErrProtocol = errors.New("analytics: unrecognized response encoding")

// errorTextPrefix is the marker the remote service puts in front of
// textual error payloads delivered inside an otherwise-successful
// response.
const errorTextPrefix = "Error:"

// errorTextSubstrings are backend failure messages that appear without
// the standard prefix. Matched case-insensitively.
var errorTextSubstrings = []string{
	"query failed",
	"unknown database",
	"syntax error",
}

// isErrorText reports whether a content payload's text is a
// data-level error message rather than a result. The original message
// is preserved verbatim by the caller for diagnostics.
func isErrorText(text string) bool {
	if strings.HasPrefix(text, errorTextPrefix) {
		return true
	}
	lowered := strings.ToLower(text)
	for _, marker := range errorTextSubstrings {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
