// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/quarry-analytics/quarry/lib/codec"
)

// Record is one audit log entry describing a single query execution.
type Record struct {
	// Time is when the query completed (success or failure).
	Time time.Time `json:"time"`

	// TenantID identifies the tenant that issued the query.
	TenantID string `json:"tenant_id"`

	// QueryHash is the hex-encoded fingerprint of the query text.
	// The text itself is never stored.
	QueryHash string `json:"query_hash"`

	// Database is the target database, if one was specified.
	Database string `json:"database,omitempty"`

	// Success reports whether the query produced a result.
	Success bool `json:"success"`

	// RowCount is the number of rows the query produced.
	RowCount int `json:"row_count"`

	// SkippedLines counts malformed payload lines dropped by the codec.
	SkippedLines int `json:"skipped_lines,omitempty"`

	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"duration"`

	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`
}

// Shared zstd coder instances. Both are safe for concurrent use via
// EncodeAll/DecodeAll; creating them once avoids repeated
// initialization overhead.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("audit: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("audit: zstd decoder initialization failed: " + err.Error())
	}
}

// Log is an append-only audit log backed by a single file. Each
// record is stored as a frame: a 4-byte big-endian length followed by
// the zstd-compressed CBOR encoding of the Record. Frames are flushed
// per append, so a crash loses at most the record being written.
//
// Log is safe for concurrent use.
type Log struct {
	mutex sync.Mutex
	file  *os.File
}

// Open opens the audit log at path, creating it if necessary.
// Existing content is preserved; new records are appended.
func Open(path string) (*Log, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: opening %s: %w", path, err)
	}
	return &Log{file: file}, nil
}

// Append writes one record to the log.
func (l *Log) Append(record Record) error {
	encoded, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("audit: encoding record: %w", err)
	}
	compressed := zstdEncoder.EncodeAll(encoded, nil)

	frame := make([]byte, 4+len(compressed))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(compressed)))
	copy(frame[4:], compressed)

	l.mutex.Lock()
	defer l.mutex.Unlock()
	if _, err := l.file.Write(frame); err != nil {
		return fmt.Errorf("audit: appending record: %w", err)
	}
	return nil
}

// Close closes the underlying file. The log must not be used after
// Close.
func (l *Log) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.file.Close()
}

// ReadAll decodes every record in the log file at path. Intended for
// offline inspection and tests, not the serving path.
func ReadAll(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("audit: reading %s: %w", path, err)
	}

	var records []Record
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("audit: truncated frame header (%d trailing bytes)", len(data))
		}
		frameLen := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < frameLen {
			return nil, fmt.Errorf("audit: truncated frame: have %d bytes, need %d", len(data), frameLen)
		}

		decompressed, err := zstdDecoder.DecodeAll(data[:frameLen], nil)
		if err != nil {
			return nil, fmt.Errorf("audit: decompressing record %d: %w", len(records), err)
		}
		var record Record
		if err := codec.Unmarshal(decompressed, &record); err != nil {
			return nil, fmt.Errorf("audit: decoding record %d: %w", len(records), err)
		}
		records = append(records, record)
		data = data[frameLen:]
	}
	return records, nil
}
