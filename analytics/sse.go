// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"bufio"
	"io"
	"strings"
)

// streamEntry is a single entry parsed from an event-stream framed
// response: one "data:" line and the event label that preceded it.
type streamEntry struct {
	// Event is the label from the most recent "event:" line, or
	// "message" if no label preceded the data line (the default event
	// type in the W3C Server-Sent Events specification).
	Event string

	// Data is the payload of one "data:" line. The analytical
	// service frames exactly one JSON document per data line, so no
	// multi-line joining is performed.
	Data string
}

// streamScanner reads event-stream framed text line by line, emitting
// one entry per "data:" line. Both \n and \r\n line endings are
// tolerated. Comment lines (":...") and unknown fields are ignored.
//
// Usage:
//
//	scanner := newStreamScanner(reader)
//	for scanner.Next() {
//	    entry := scanner.Entry()
//	    // decode entry.Data
//	}
//	if err := scanner.Err(); err != nil {
//	    // handle error
//	}
type streamScanner struct {
	reader    *bufio.Reader
	current   streamEntry
	eventType string
	err       error
}

func newStreamScanner(reader io.Reader) *streamScanner {
	return &streamScanner{
		reader: bufio.NewReaderSize(reader, 64*1024),
	}
}

// Next advances to the next data entry. Returns false when the stream
// ends (EOF) or an error occurs. After Next returns false, call [Err]
// to distinguish EOF from errors.
func (scanner *streamScanner) Next() bool {
	scanner.current = streamEntry{}

	for {
		line, err := scanner.reader.ReadString('\n')

		if err != nil && line == "" {
			if err != io.EOF {
				scanner.err = err
			}
			return false
		}

		// Strip trailing newline and optional carriage return.
		line = strings.TrimRight(line, "\r\n")

		// Blank line = event boundary: reset the pending label.
		if line == "" {
			scanner.eventType = ""
			if err == io.EOF {
				return false
			}
			continue
		}

		// Comment lines start with ":".
		if strings.HasPrefix(line, ":") {
			if err == io.EOF {
				return false
			}
			continue
		}

		// Parse "field: value" or "field:value" (space after the
		// colon is optional).
		field, value, hasColon := strings.Cut(line, ":")
		if !hasColon {
			field = line
			value = ""
		} else {
			// A value starting with a space has exactly one removed.
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "event":
			scanner.eventType = value
		case "data":
			label := scanner.eventType
			if label == "" {
				label = "message"
			}
			scanner.current = streamEntry{Event: label, Data: value}
			if err == io.EOF {
				// Emit the final entry; the next call returns false.
				scanner.err = io.EOF
			}
			return true
		default:
			// "id", "retry", and unknown fields are ignored.
		}

		if err == io.EOF {
			return false
		}
	}
}

// Entry returns the most recently parsed entry. Only valid after
// [Next] returns true.
func (scanner *streamScanner) Entry() streamEntry {
	return scanner.current
}

// Err returns the first error encountered during scanning. Returns
// nil if scanning ended due to a clean EOF.
func (scanner *streamScanner) Err() error {
	if scanner.err == io.EOF {
		return nil
	}
	return scanner.err
}
