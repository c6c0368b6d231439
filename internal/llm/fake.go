package llm

import (
	"context"
	"encoding/json"
)

// FakeClient returns deterministic, minimal JSON payloads per stage for
// offline runs and tests.
type FakeClient struct{}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	stage := StageFrom(ctx)
	var obj any
	switch stage {
	case "g0":
		obj = map[string]any{
			"needsContext": false,
			"requests":     []any{},
			"notes":        []string{"fake g0 output"},
		}
	case "g1":
		obj = map[string]any{
			"feature":      "",
			"requirements": []string{},
			"targetFiles":  []string{},
			"dependencies": []string{},
			"needsChanges": false,
			"reason":       "fake g1: prompt requires no code changes",
		}
	case "g2":
		obj = map[string]any{
			"patches":             []any{},
			"implementationNotes": []string{"fake g2 output"},
		}
	case "g3", "g4":
		obj = map[string]any{"files": []any{}}
	default:
		obj = map[string]any{}
	}
	b, _ := json.Marshal(obj)
	return json.RawMessage(b), nil
}
