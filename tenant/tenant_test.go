// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package tenant

import (
	"strings"
	"testing"
)

func TestFingerprintStable(t *testing.T) {
	t.Parallel()

	first := Fingerprint("some-api-key")
	second := Fingerprint("some-api-key")
	if first != second {
		t.Error("fingerprint is not deterministic")
	}
	if len(first) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(first))
	}
	if Fingerprint("other-api-key") == first {
		t.Error("distinct keys produced the same fingerprint")
	}
}

func TestHashAndVerifyAPIKey(t *testing.T) {
	t.Parallel()

	stored, err := HashAPIKey("s3cret")
	if err != nil {
		t.Fatalf("HashAPIKey: %v", err)
	}
	if !strings.Contains(stored, ":") {
		t.Errorf("stored encoding = %q, want salt:hash", stored)
	}
	if strings.Contains(stored, "s3cret") {
		t.Error("stored encoding leaks the key")
	}

	if !VerifyAPIKey("s3cret", stored) {
		t.Error("correct key failed verification")
	}
	if VerifyAPIKey("wrong", stored) {
		t.Error("wrong key passed verification")
	}
	if VerifyAPIKey("s3cret", "garbage") {
		t.Error("malformed stored encoding passed verification")
	}
}

func TestHashAPIKeySalted(t *testing.T) {
	t.Parallel()

	first, err := HashAPIKey("same-key")
	if err != nil {
		t.Fatalf("HashAPIKey: %v", err)
	}
	second, err := HashAPIKey("same-key")
	if err != nil {
		t.Fatalf("HashAPIKey: %v", err)
	}
	if first == second {
		t.Error("two hashes of the same key are identical; salt is not random")
	}
}
