// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"strings"
	"testing"
)

func TestDecodeResponse(t *testing.T) {
	t.Parallel()

	var payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := DecodeResponse(strings.NewReader(`{"name":"metrics","count":3}`), &payload); err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	if payload.Name != "metrics" || payload.Count != 3 {
		t.Errorf("payload = %+v, want {metrics 3}", payload)
	}
}

func TestDecodeResponseInvalidJSON(t *testing.T) {
	t.Parallel()

	var payload map[string]any
	if err := DecodeResponse(strings.NewReader("not json"), &payload); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestErrorBody(t *testing.T) {
	t.Parallel()

	if got := ErrorBody(strings.NewReader("upstream exploded")); got != "upstream exploded" {
		t.Errorf("ErrorBody = %q", got)
	}
}

func TestReadResponse(t *testing.T) {
	t.Parallel()

	data, err := ReadResponse(strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("ReadResponse = %q, want hello", data)
	}
}
