// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Envelope is the decoded top-level response before payload-specific
// extraction. Result holds the authoritative result document; ID is
// the request correlation token the service echoed back (present only
// for event-stream responses, which interleave notifications that
// carry no ID).
type Envelope struct {
	ID     json.RawMessage
	Result json.RawMessage
}

// envelopeProbe is the shape sniffed from each candidate JSON
// document while decoding.
type envelopeProbe struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RemoteError    `json:"error"`
}

// Decode resolves a raw response body to an Envelope, accepting
// either of the service's two framings without configuration:
//
//   - Event-stream text: every "data:" line is decoded; the
//     authoritative result is the LAST entry carrying both an "id"
//     and a "result" field. Earlier entries are progress
//     notifications and are ignored.
//   - A single JSON document with a "result" field. A document with
//     an "error" field instead surfaces that error.
//
// Anything else is a protocol error (ErrProtocol): the response
// matched no recognized encoding, and the whole call fails with no
// partial result.
func Decode(raw string) (*Envelope, error) {
	if containsStreamMarkers(raw) {
		return decodeEventStream(raw)
	}

	var probe envelopeProbe
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if probe.Error != nil {
		return nil, probe.Error
	}
	if len(probe.Result) == 0 {
		return nil, fmt.Errorf("%w: document has neither result nor error", ErrProtocol)
	}
	return &Envelope{ID: probe.ID, Result: probe.Result}, nil
}

// containsStreamMarkers reports whether the body uses event-stream
// framing. A JSON document never starts a line with "event:" or
// "data:", so line-anchored markers are unambiguous.
func containsStreamMarkers(raw string) bool {
	for _, line := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if strings.HasPrefix(line, "event:") || strings.HasPrefix(line, "data:") {
			return true
		}
	}
	return false
}

// decodeEventStream walks the framed entries and selects the last one
// whose payload carries both an id and a result.
func decodeEventStream(raw string) (*Envelope, error) {
	scanner := newStreamScanner(strings.NewReader(raw))

	var selected *Envelope
	for scanner.Next() {
		entry := scanner.Entry()

		var probe envelopeProbe
		if err := json.Unmarshal([]byte(entry.Data), &probe); err != nil {
			// Non-JSON data entries (keepalives, banners) are not
			// candidates; they do not fail the decode.
			continue
		}
		if len(probe.ID) > 0 && len(probe.Result) > 0 {
			selected = &Envelope{ID: probe.ID, Result: probe.Result}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if selected == nil {
		return nil, fmt.Errorf("%w: no event carries id and result", ErrProtocol)
	}
	return selected, nil
}

// contentItem is one element of a result's content array.
type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// resultBody is the shape of the envelope's result document.
type resultBody struct {
	Content   []contentItem `json:"content"`
	SessionID string        `json:"sessionId"`
}

// recordLine is the discriminated shape of one line in a
// newline-delimited record stream payload.
type recordLine struct {
	Type          string   `json:"type"`
	Columns       []string `json:"columns"`
	RowCount      *int     `json:"rowCount"`
	Query         string   `json:"query"`
	ExecutionTime float64  `json:"executionTime"`
}

// nonFiniteToken rewrites the bare tokens NaN, Infinity and -Infinity
// to null. Some backends serialize IEEE non-finite values with these
// tokens, which are not valid strict JSON; dropping the row over them
// would lose otherwise-good data. Tokens inside strings are left
// alone (the pattern requires a preceding separator character).
var nonFiniteToken = regexp.MustCompile(`([:\[,]\s*)(?:-?Infinity|NaN)(\s*[,\]}])`)

func sanitizeNonFinite(line string) string {
	// Two passes: the first match consumes the separator that would
	// anchor an immediately-adjacent token.
	line = nonFiniteToken.ReplaceAllString(line, "${1}null${2}")
	return nonFiniteToken.ReplaceAllString(line, "${1}null${2}")
}

// ExtractPayload normalizes an envelope's result document into a
// QueryResult. The payload takes one of four forms, tried in order:
//
//  1. Error text: content text starting with "Error:" or containing a
//     known backend failure message → {success:false, error:text}.
//  2. Record stream: newline-delimited JSON documents where one line
//     carries type:"metadata" (columns, estimated row count, query
//     text) and an optional type:"completion" trailer carries the
//     authoritative row count and execution time; every other
//     parseable line is one data record. Malformed lines are skipped
//     and counted, never fatal.
//  3. Single JSON object: one data record.
//  4. Opaque text: preserved as a single record under a "text" key
//     rather than discarded.
//
// When the result has no content array at all, the result document
// itself is the payload (object → one record, array → records).
func ExtractPayload(envelope *Envelope) QueryResult {
	var body resultBody
	if err := json.Unmarshal(envelope.Result, &body); err != nil || len(body.Content) == 0 {
		return extractBareResult(envelope.Result)
	}

	text := body.Content[0].Text

	if isErrorText(text) {
		return failedResult(text)
	}

	if stream, ok := extractRecordStream(text); ok {
		return stream
	}

	var single Record
	if err := json.Unmarshal([]byte(sanitizeNonFinite(text)), &single); err == nil {
		return QueryResult{
			Success:  true,
			Data:     []Record{single},
			Metadata: Metadata{RowCount: 1},
		}
	}

	// Opaque text: keep it rather than treating it as an error.
	return QueryResult{
		Success:  true,
		Data:     []Record{{"text": text}},
		Metadata: Metadata{RowCount: 1},
	}
}

// extractRecordStream parses a newline-delimited multi-record payload.
// Returns ok=false when the text is not a record stream (no line
// carries the metadata discriminator).
func extractRecordStream(text string) (QueryResult, bool) {
	lines := splitLines(text)

	hasMetadata := false
	for _, line := range lines {
		var discriminator recordLine
		if err := json.Unmarshal([]byte(line), &discriminator); err == nil && discriminator.Type == "metadata" {
			hasMetadata = true
			break
		}
	}
	if !hasMetadata {
		return QueryResult{}, false
	}

	result := QueryResult{Success: true}
	declaredRows := -1
	actualRows := -1

	for _, line := range lines {
		line = sanitizeNonFinite(line)

		var discriminator recordLine
		if err := json.Unmarshal([]byte(line), &discriminator); err == nil {
			switch discriminator.Type {
			case "metadata":
				result.Metadata.Columns = discriminator.Columns
				result.Metadata.Query = discriminator.Query
				if discriminator.RowCount != nil {
					declaredRows = *discriminator.RowCount
				}
				continue
			case "completion":
				result.Metadata.ExecutionTime = discriminator.ExecutionTime
				if discriminator.RowCount != nil {
					actualRows = *discriminator.RowCount
				}
				continue
			}
		}

		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			// Partial-result tolerance: one corrupt line does not
			// abort the extraction.
			result.Metadata.SkippedLines++
			continue
		}
		result.Data = append(result.Data, record)
	}

	// Row count preference: completion's actual count, then the
	// metadata estimate, then what we actually extracted.
	switch {
	case actualRows >= 0:
		result.Metadata.RowCount = actualRows
	case declaredRows >= 0:
		result.Metadata.RowCount = declaredRows
	default:
		result.Metadata.RowCount = len(result.Data)
	}

	return result, true
}

// extractBareResult handles envelopes whose result document has no
// content array: the document itself is the payload.
func extractBareResult(result json.RawMessage) QueryResult {
	var records []Record
	if err := json.Unmarshal(result, &records); err == nil {
		return QueryResult{
			Success:  true,
			Data:     records,
			Metadata: Metadata{RowCount: len(records)},
		}
	}

	var record Record
	if err := json.Unmarshal(result, &record); err == nil {
		return QueryResult{
			Success:  true,
			Data:     []Record{record},
			Metadata: Metadata{RowCount: 1},
		}
	}

	return failedResult("unrecognized result payload")
}

// splitLines splits on either line-ending convention and drops blank
// lines.
func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
