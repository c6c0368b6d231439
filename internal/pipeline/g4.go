package pipeline

import (
	"context"
	"fmt"

	"miniforge/internal/llm"
	t "miniforge/internal/types"
	"miniforge/internal/util/jsonutil"
)

// G4 is the repair call: it receives exactly the files the validators flagged
// plus the accumulated error messages, and must echo the same filenames back
// with corrected content.
type G4 struct {
	LLM llm.StageCaller
}

func (g *G4) Run(ctx context.Context, invalid []t.GeneratedFile, findings []t.ValidationFinding) ([]t.GeneratedFile, error) {
	sys := `You are repairing generated files that failed structural validation.
Fix every listed problem. Return each file you were given, complete, under its original filename. Do not add files. Do not drop files. Do not rename files.

Return STRICT JSON ONLY:
{
  "files": [{"filename": "string", "content": "string"}]
}`

	msgs := make([]string, 0, len(findings))
	for _, f := range findings {
		msgs = append(msgs, fmt.Sprintf("[%s] %s: %s", f.Kind, f.File, f.Message))
	}
	input := map[string]any{"files": invalid, "errors": msgs}
	raw, err := g.LLM.Call(ctx, "g4", sys, input)
	if err != nil {
		return nil, err
	}
	var out t.G4Out
	if err := jsonutil.UnmarshalStrict(raw, &out); err != nil {
		return nil, fmt.Errorf("parse g4 output: %w", err)
	}
	return out.Files, nil
}
