package pipeline

import (
	"context"
	"fmt"

	"miniforge/internal/llm"
	t "miniforge/internal/types"
	"miniforge/internal/util/jsonutil"
)

// G1 is the intent-parse stage: prompt (plus gathered context) in, IntentSpec
// out. A needsChanges=false answer short-circuits the whole pipeline.
type G1 struct {
	LLM llm.StageCaller
}

func (g *G1) Run(ctx context.Context, prompt string, files []t.ProjectFile, gathered []t.ToolFinding) (t.IntentSpec, error) {
	sys := `You are a requirements analyst for a small web application project.
Convert the change request into a structured requirement.

Return STRICT JSON ONLY:
{
  "feature": "string",
  "requirements": ["string"],
  "targetFiles": ["string"],
  "dependencies": ["string"],
  "needsChanges": true|false,
  "reason": "string",
  "contractInteractions": {"reads":["string"],"writes":["string"]}
}

Constraints:
- If the request needs no code change (greeting, question, already satisfied), set needsChanges=false, give the reason, and leave every array empty.
- targetFiles must use paths from the provided file list where the file already exists.
- Include contractInteractions only when the feature touches on-chain state.`

	input := map[string]any{
		"prompt":    prompt,
		"fileNames": fileNames(files),
	}
	if len(gathered) > 0 {
		input["gatheredContext"] = gathered
	}
	raw, err := g.LLM.Call(ctx, "g1", sys, input)
	if err != nil {
		return t.IntentSpec{}, err
	}
	var out t.IntentSpec
	if err := jsonutil.UnmarshalStrict(raw, &out); err != nil {
		return t.IntentSpec{}, fmt.Errorf("parse g1 output: %w", err)
	}
	return out, nil
}
