// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDecodePlainJSON(t *testing.T) {
	t.Parallel()
	envelope, err := Decode(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if string(envelope.Result) != `{"ok":true}` {
		t.Errorf("Result = %s, want {\"ok\":true}", envelope.Result)
	}
}

func TestDecodePlainJSONError(t *testing.T) {
	t.Parallel()
	_, err := Decode(`{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"bad request"}}`)
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Decode() error = %v, want *RemoteError", err)
	}
	if remote.Code != -32600 {
		t.Errorf("Code = %d, want -32600", remote.Code)
	}
	if remote.Message != "bad request" {
		t.Errorf("Message = %q, want %q", remote.Message, "bad request")
	}
}

func TestDecodeEventStreamSelectsLastResult(t *testing.T) {
	t.Parallel()
	raw := strings.Join([]string{
		"event: message",
		`data: {"jsonrpc":"2.0","method":"notifications/progress","params":{"pct":50}}`,
		"",
		"event: message",
		`data: {"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"partial"}]}}`,
		"",
		"event: message",
		`data: {"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"final"}]}}`,
		"",
	}, "\n")

	envelope, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	var body resultBody
	if err := json.Unmarshal(envelope.Result, &body); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if got := body.Content[0].Text; got != "final" {
		t.Errorf("selected text = %q, want %q", got, "final")
	}
}

func TestDecodeEventStreamIgnoresNonJSONData(t *testing.T) {
	t.Parallel()
	raw := "data: not json at all\n\n" +
		`data: {"jsonrpc":"2.0","id":7,"result":{"content":[{"type":"text","text":"ok"}]}}` + "\n"
	envelope, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if envelope.Result == nil {
		t.Fatal("Result is nil")
	}
}

func TestDecodeEventStreamNoResult(t *testing.T) {
	t.Parallel()
	_, err := Decode("data: {\"jsonrpc\":\"2.0\",\"method\":\"x\"}\n\n")
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Decode() error = %v, want ErrProtocol", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	t.Parallel()
	_, err := Decode("<html>502 Bad Gateway</html>")
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Decode() error = %v, want ErrProtocol", err)
	}
}

func TestDecodeNeitherResultNorError(t *testing.T) {
	t.Parallel()
	_, err := Decode(`{"jsonrpc":"2.0","id":1}`)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Decode() error = %v, want ErrProtocol", err)
	}
}

func textEnvelope(t *testing.T, text string) *Envelope {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &Envelope{ID: json.RawMessage("1"), Result: body}
}

func TestExtractPayloadErrorText(t *testing.T) {
	t.Parallel()
	for _, text := range []string{
		"Error: database exploded",
		"Query failed: timeout",
		"Unknown database: nope",
		"near \"SELEC\": syntax error",
	} {
		result := ExtractPayload(textEnvelope(t, text))
		if result.Success {
			t.Errorf("ExtractPayload(%q).Success = true, want false", text)
		}
		if result.Error != text {
			t.Errorf("Error = %q, want the original text preserved", result.Error)
		}
	}
}

func TestExtractPayloadRecordStream(t *testing.T) {
	t.Parallel()
	text := strings.Join([]string{
		`{"type":"metadata","columns":["name","value"],"rowCount":3,"query":"SELECT name, value FROM t"}`,
		`{"name":"a","value":1}`,
		`{"name":"b","value":2}`,
		`{"name":"c","value":3}`,
		`{"type":"completion","rowCount":3,"executionTime":12.5}`,
	}, "\n")

	result := ExtractPayload(textEnvelope(t, text))
	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if len(result.Data) != 3 {
		t.Fatalf("len(Data) = %d, want 3", len(result.Data))
	}
	if result.Data[0]["name"] != "a" {
		t.Errorf("Data[0][name] = %v, want a", result.Data[0]["name"])
	}
	if result.Metadata.RowCount != 3 {
		t.Errorf("RowCount = %d, want 3", result.Metadata.RowCount)
	}
	if result.Metadata.ExecutionTime != 12.5 {
		t.Errorf("ExecutionTime = %v, want 12.5", result.Metadata.ExecutionTime)
	}
	if len(result.Metadata.Columns) != 2 || result.Metadata.Columns[0] != "name" {
		t.Errorf("Columns = %v, want [name value]", result.Metadata.Columns)
	}
	if result.Metadata.Query != "SELECT name, value FROM t" {
		t.Errorf("Query = %q", result.Metadata.Query)
	}
}

func TestExtractPayloadSkipsMalformedLines(t *testing.T) {
	t.Parallel()
	text := strings.Join([]string{
		`{"type":"metadata","columns":["x"],"rowCount":3}`,
		`{"x":1}`,
		`{"x":2,TRUNCATED`,
		`{"x":3}`,
	}, "\n")

	result := ExtractPayload(textEnvelope(t, text))
	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if len(result.Data) != 2 {
		t.Fatalf("len(Data) = %d, want 2", len(result.Data))
	}
	if result.Metadata.SkippedLines != 1 {
		t.Errorf("SkippedLines = %d, want 1", result.Metadata.SkippedLines)
	}
	// Declared estimate wins over extracted count when no completion
	// record arrived.
	if result.Metadata.RowCount != 3 {
		t.Errorf("RowCount = %d, want declared 3", result.Metadata.RowCount)
	}
}

func TestExtractPayloadNonFiniteValues(t *testing.T) {
	t.Parallel()
	text := strings.Join([]string{
		`{"type":"metadata","columns":["v"]}`,
		`{"v":NaN}`,
		`{"v":Infinity,"w":-Infinity}`,
		`{"v":[1,NaN,3]}`,
	}, "\n")

	result := ExtractPayload(textEnvelope(t, text))
	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if len(result.Data) != 3 {
		t.Fatalf("len(Data) = %d, want 3 (non-finite tokens become null, not skips)", len(result.Data))
	}
	if result.Data[0]["v"] != nil {
		t.Errorf("Data[0][v] = %v, want nil", result.Data[0]["v"])
	}
	if result.Data[1]["w"] != nil {
		t.Errorf("Data[1][w] = %v, want nil", result.Data[1]["w"])
	}
	array, ok := result.Data[2]["v"].([]any)
	if !ok || len(array) != 3 || array[1] != nil {
		t.Errorf("Data[2][v] = %v, want [1 <nil> 3]", result.Data[2]["v"])
	}
	if result.Metadata.SkippedLines != 0 {
		t.Errorf("SkippedLines = %d, want 0", result.Metadata.SkippedLines)
	}
}

func TestSanitizeNonFiniteKeepsStrings(t *testing.T) {
	t.Parallel()
	input := `{"note":"NaN is not a number","v":NaN}`
	got := sanitizeNonFinite(input)
	want := `{"note":"NaN is not a number","v":null}`
	if got != want {
		t.Errorf("sanitizeNonFinite() = %q, want %q", got, want)
	}
}

func TestExtractPayloadSingleObject(t *testing.T) {
	t.Parallel()
	result := ExtractPayload(textEnvelope(t, `{"answer":42}`))
	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if len(result.Data) != 1 {
		t.Fatalf("len(Data) = %d, want 1", len(result.Data))
	}
	if result.Data[0]["answer"] != float64(42) {
		t.Errorf("Data[0][answer] = %v, want 42", result.Data[0]["answer"])
	}
	if result.Metadata.RowCount != 1 {
		t.Errorf("RowCount = %d, want 1", result.Metadata.RowCount)
	}
}

func TestExtractPayloadOpaqueText(t *testing.T) {
	t.Parallel()
	result := ExtractPayload(textEnvelope(t, "42 rows affected"))
	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if len(result.Data) != 1 {
		t.Fatalf("len(Data) = %d, want 1", len(result.Data))
	}
	if result.Data[0]["text"] != "42 rows affected" {
		t.Errorf("Data[0][text] = %v", result.Data[0]["text"])
	}
}

func TestExtractPayloadBareResultArray(t *testing.T) {
	t.Parallel()
	envelope := &Envelope{Result: json.RawMessage(`[{"id":"db1"},{"id":"db2"}]`)}
	result := ExtractPayload(envelope)
	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if len(result.Data) != 2 {
		t.Fatalf("len(Data) = %d, want 2", len(result.Data))
	}
	if result.Metadata.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", result.Metadata.RowCount)
	}
}

func TestExtractPayloadBareResultObject(t *testing.T) {
	t.Parallel()
	envelope := &Envelope{Result: json.RawMessage(`{"status":"ok"}`)}
	result := ExtractPayload(envelope)
	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if len(result.Data) != 1 {
		t.Fatalf("len(Data) = %d, want 1", len(result.Data))
	}
}

func TestIsErrorTextCaseInsensitive(t *testing.T) {
	t.Parallel()
	cases := []struct {
		text string
		want bool
	}{
		{"Error: boom", true},
		{"QUERY FAILED", true},
		{"unknown DATABASE foo", true},
		{"Syntax Error near line 3", true},
		{"all good", false},
		{"the word terror: is not a prefix", false},
	}
	for _, c := range cases {
		if got := isErrorText(c.text); got != c.want {
			t.Errorf("isErrorText(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}
