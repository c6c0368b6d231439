package pipeline

import (
	"context"
	"fmt"

	"miniforge/internal/llm"
	t "miniforge/internal/types"
	"miniforge/internal/util/jsonutil"
)

// G3 is the code-generate stage: full replacement contents for every planned
// file plus any new files the plan implies. Partial diffs are not accepted.
type G3 struct {
	LLM llm.StageCaller
}

func (g *G3) Run(ctx context.Context, intent t.IntentSpec, plan t.PatchPlan, files []t.ProjectFile) ([]t.GeneratedFile, error) {
	sys := `You are implementing a planned change to a small web application.
Emit the COMPLETE new content of every file the plan touches, plus any new files it requires. Full files only, never fragments or diffs.

Return STRICT JSON ONLY:
{
  "files": [{"filename": "string", "content": "string"}]
}

Constraints:
- Interactive components (state hooks, event handlers) start with "use client".
- Every import must resolve to a project file or a framework module.
- Keep untouched parts of modified files byte-identical to the input.`

	input := map[string]any{"intent": intent, "plan": plan, "files": files}
	raw, err := g.LLM.Call(ctx, "g3", sys, input)
	if err != nil {
		return nil, err
	}
	var out t.G3Out
	if err := jsonutil.UnmarshalStrict(raw, &out); err != nil {
		return nil, fmt.Errorf("parse g3 output: %w", err)
	}
	// A structurally empty element is malformed stage output, not a validator
	// finding: there is nothing downstream could repair.
	for i, f := range out.Files {
		if f.Filename == "" {
			return nil, fmt.Errorf("g3 output file %d has no filename", i)
		}
		if f.Content == "" {
			return nil, fmt.Errorf("g3 output file %q has no content", f.Filename)
		}
	}
	return out.Files, nil
}
