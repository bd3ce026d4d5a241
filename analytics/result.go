// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package analytics

// Record is one result row: column name → value.
type Record = map[string]any

// Metadata describes a query result's shape and execution.
type Metadata struct {
	// RowCount is the number of rows in Data. When the payload
	// carried a completion record, this is its authoritative actual
	// count; otherwise the metadata-declared estimate; otherwise
	// len(Data).
	RowCount int `json:"rowCount"`

	// Columns are the result column names, when the payload declared
	// them.
	Columns []string `json:"columns,omitempty"`

	// ExecutionTime is the remote execution time in milliseconds, as
	// reported by the completion record.
	ExecutionTime float64 `json:"executionTime,omitempty"`

	// Database is the database the query targeted, when one was
	// specified.
	Database string `json:"database,omitempty"`

	// Query is the original query text as echoed by the service's
	// metadata record.
	Query string `json:"query,omitempty"`

	// SkippedLines counts malformed lines dropped from a multi-record
	// payload. Partial corruption does not fail the query; this
	// counter makes it observable.
	SkippedLines int `json:"skippedLines,omitempty"`
}

// QueryResult is the one internal result shape all callers consume,
// regardless of which wire encoding the remote service used. Exactly
// one of Data or Error is meaningful: Success=false implies Data is
// absent or empty.
type QueryResult struct {
	Success  bool     `json:"success"`
	Data     []Record `json:"data,omitempty"`
	Metadata Metadata `json:"metadata"`
	Error    string   `json:"error,omitempty"`
}

// failedResult builds the uniform failure shape. The message is
// preserved verbatim for diagnostics.
func failedResult(message string) QueryResult {
	return QueryResult{Success: false, Error: message}
}
