package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	t "miniforge/internal/types"
)

func testFiles() []t.ProjectFile {
	return []t.ProjectFile{
		{Filename: "app/page.tsx", Content: "import Counter from './counter'\nexport default function Page() {}\n"},
		{Filename: "app/counter.tsx", Content: "\"use client\"\nexport default function Counter() {}\n"},
		{Filename: "styles.css", Content: "body { margin: 0 }\n"},
	}
}

func testRegistry() *Registry {
	r := NewRegistry()
	RegisterInspectionTools(r, testFiles())
	return r
}

func TestGrepFindsMatchesWithLineNumbers(tt *testing.T) {
	r := testRegistry()
	raw, err := r.Call(context.Background(), "grep", json.RawMessage(`{"pattern":"Counter"}`))
	if err != nil {
		tt.Fatalf("grep error = %v", err)
	}
	var out struct {
		Matches []string `json:"matches"`
		Count   int      `json:"count"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		tt.Fatalf("grep output decode: %v", err)
	}
	if out.Count != 2 {
		tt.Fatalf("grep count = %d, want 2 (%v)", out.Count, out.Matches)
	}
}

func TestGrepGlobFilters(tt *testing.T) {
	r := testRegistry()
	raw, err := r.Call(context.Background(), "grep", json.RawMessage(`{"pattern":"margin","glob":"*.tsx"}`))
	if err != nil {
		tt.Fatalf("grep error = %v", err)
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		tt.Fatalf("grep output decode: %v", err)
	}
	if out.Count != 0 {
		tt.Fatalf("grep count = %d, want 0", out.Count)
	}
}

func TestFindMatchesByBaseName(tt *testing.T) {
	r := testRegistry()
	raw, err := r.Call(context.Background(), "find", json.RawMessage(`{"glob":"*.tsx"}`))
	if err != nil {
		tt.Fatalf("find error = %v", err)
	}
	var out struct {
		Matches []string `json:"matches"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		tt.Fatalf("find output decode: %v", err)
	}
	if len(out.Matches) != 2 {
		tt.Fatalf("find matches = %v, want both tsx files", out.Matches)
	}
}

func TestCatReturnsContent(tt *testing.T) {
	r := testRegistry()
	raw, err := r.Call(context.Background(), "cat", json.RawMessage(`{"filename":"styles.css"}`))
	if err != nil {
		tt.Fatalf("cat error = %v", err)
	}
	var out struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		tt.Fatalf("cat output decode: %v", err)
	}
	if out.Filename != "styles.css" || out.Content == "" {
		tt.Fatalf("cat output = %+v", out)
	}
}

func TestCatUnknownFileFails(tt *testing.T) {
	r := testRegistry()
	if _, err := r.Call(context.Background(), "cat", json.RawMessage(`{"filename":"nope.ts"}`)); err == nil {
		tt.Fatalf("cat expected error for unknown file")
	}
}

func TestTreeListsEveryFile(tt *testing.T) {
	r := testRegistry()
	raw, err := r.Call(context.Background(), "tree", json.RawMessage(`{}`))
	if err != nil {
		tt.Fatalf("tree error = %v", err)
	}
	var out struct {
		Tree string `json:"tree"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		tt.Fatalf("tree output decode: %v", err)
	}
	for _, want := range []string{"page.tsx", "counter.tsx", "styles.css"} {
		if !strings.Contains(out.Tree, want) {
			tt.Fatalf("tree output missing %s:\n%s", want, out.Tree)
		}
	}
}

func TestUnregisteredToolIsRejected(tt *testing.T) {
	r := testRegistry()
	_, err := r.Call(context.Background(), "rm", json.RawMessage(`{}`))
	if !errors.Is(err, ErrToolNotFound) {
		tt.Fatalf("Call(rm) error = %v, want ErrToolNotFound", err)
	}
}

func TestAllowedToolsIsTheFixedSet(tt *testing.T) {
	got := AllowedTools()
	want := []string{"grep", "find", "tree", "cat"}
	if len(got) != len(want) {
		tt.Fatalf("AllowedTools() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			tt.Fatalf("AllowedTools() = %v, want %v", got, want)
		}
	}
}

