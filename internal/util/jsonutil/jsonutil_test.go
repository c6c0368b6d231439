package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestStripFencesPlainJSON(t *testing.T) {
	in := []byte(`  {"a":1}  `)
	got := string(StripFences(in))
	if got != `{"a":1}` {
		t.Fatalf("StripFences() = %q", got)
	}
}

func TestStripFencesWithInfoString(t *testing.T) {
	in := []byte("```json\n{\"a\":1}\n```")
	got := string(StripFences(in))
	if got != `{"a":1}` {
		t.Fatalf("StripFences() = %q", got)
	}
}

func TestStripFencesBareFence(t *testing.T) {
	in := []byte("```\n[1,2]\n```")
	got := string(StripFences(in))
	if got != "[1,2]" {
		t.Fatalf("StripFences() = %q", got)
	}
}

func TestUnmarshalStrictThroughFence(t *testing.T) {
	raw := json.RawMessage("```json\n{\"name\":\"x\"}\n```")
	var out struct {
		Name string `json:"name"`
	}
	if err := UnmarshalStrict(raw, &out); err != nil {
		t.Fatalf("UnmarshalStrict() error = %v", err)
	}
	if out.Name != "x" {
		t.Fatalf("UnmarshalStrict() name = %q", out.Name)
	}
}

func TestUnmarshalStrictRejectsGarbage(t *testing.T) {
	raw := json.RawMessage("```json\nnot json at all\n```")
	var out map[string]any
	if err := UnmarshalStrict(raw, &out); err == nil {
		t.Fatalf("UnmarshalStrict() expected error, got nil")
	}
}

func TestMarshalNoEscapeKeepsAngleBrackets(t *testing.T) {
	b, err := MarshalNoEscape(map[string]string{"s": "<div>&</div>"})
	if err != nil {
		t.Fatalf("MarshalNoEscape() error = %v", err)
	}
	want := `{"s":"<div>&</div>"}`
	if string(b) != want {
		t.Fatalf("MarshalNoEscape() = %s, want %s", b, want)
	}
}

func TestUnescapeUnicodeString(t *testing.T) {
	got, err := UnescapeUnicodeString(`a > b`)
	if err != nil {
		t.Fatalf("UnescapeUnicodeString() error = %v", err)
	}
	if got != "a > b" {
		t.Fatalf("UnescapeUnicodeString() = %q", got)
	}
}
