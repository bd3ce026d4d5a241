// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestAppendAndReadAll(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.log")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	records := []Record{
		{
			Time:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			TenantID: "acme",
			QueryHash: "deadbeef",
			Success:  true,
			RowCount: 42,
			Duration: 120 * time.Millisecond,
		},
		{
			Time:     time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC),
			TenantID: "acme",
			QueryHash: "cafef00d",
			Database: "metrics",
			Success:  false,
			Error:    "Error: Unknown database 'metrics'",
		},
	}
	for _, record := range records {
		if err := log.Append(record); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	decoded, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("ReadAll returned %d records, want 2", len(decoded))
	}
	if decoded[0].TenantID != "acme" || decoded[0].RowCount != 42 {
		t.Errorf("decoded[0] = %+v", decoded[0])
	}
	if decoded[1].Success || decoded[1].Error == "" {
		t.Errorf("decoded[1] = %+v, want failure record", decoded[1])
	}
}

func TestAppendSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.log")

	for i := range 2 {
		log, err := Open(path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		if err := log.Append(Record{TenantID: "globex", Success: true}); err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}
		if err := log.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i, err)
		}
	}

	decoded, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(decoded) != 2 {
		t.Errorf("ReadAll returned %d records, want 2 across reopen", len(decoded))
	}
}

func TestConcurrentAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.log")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var group sync.WaitGroup
	for range 8 {
		group.Add(1)
		go func() {
			defer group.Done()
			for range 10 {
				if err := log.Append(Record{TenantID: "initech", Success: true}); err != nil {
					t.Errorf("Append: %v", err)
				}
			}
		}()
	}
	group.Wait()
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	decoded, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(decoded) != 80 {
		t.Errorf("ReadAll returned %d records, want 80", len(decoded))
	}
}

func TestReadAllTruncatedFrame(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.log")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := log.Append(Record{TenantID: "acme"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Chop the last byte off to simulate a torn write.
	truncate(t, path, 1)

	if _, err := ReadAll(path); err == nil {
		t.Error("expected error for truncated frame")
	}
}

// truncate removes n bytes from the end of the file at path.
func truncate(t *testing.T, path string, n int64) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := os.Truncate(path, info.Size()-n); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}
