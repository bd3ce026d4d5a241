// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"strings"
	"testing"
)

func TestHashQuery(t *testing.T) {
	t.Parallel()
	first := HashQuery("SELECT 1")
	second := HashQuery("SELECT 1")
	if first != second {
		t.Error("identical queries produced different fingerprints")
	}
	if first == HashQuery("SELECT 2") {
		t.Error("distinct queries produced the same fingerprint")
	}
	if len(first) != 64 {
		t.Errorf("len(fingerprint) = %d, want 64 hex chars", len(first))
	}
	for _, r := range first {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("fingerprint contains non-hex rune %q", r)
		}
	}
}
