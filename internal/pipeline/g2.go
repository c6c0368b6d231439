package pipeline

import (
	"context"
	"fmt"
	"log"

	"miniforge/internal/llm"
	t "miniforge/internal/types"
	"miniforge/internal/util/jsonutil"
)

// G2 is the patch-plan stage: it decides what must change per file, without
// emitting any code yet.
type G2 struct {
	LLM llm.StageCaller
}

func (g *G2) Run(ctx context.Context, intent t.IntentSpec, files []t.ProjectFile) (t.PatchPlan, error) {
	sys := `You are a senior engineer planning a change to a small web application.
Given the structured requirement and the current files, describe what must change in each file. Do NOT write code.

Return STRICT JSON ONLY:
{
  "patches": [{
    "filename": "string",
    "operation": "create|modify|delete",
    "purpose": "string",
    "changes": [{
      "type": "add|replace|remove",
      "target": "string",
      "description": "string",
      "location": "string",
      "dependencies": ["string"],
      "contractInteraction": "string"
    }]
  }],
  "implementationNotes": ["string"]
}

Constraints:
- Every patch must carry at least one change.
- Prefer modifying existing files over creating parallel ones.`

	input := map[string]any{"intent": intent, "files": files}
	raw, err := g.LLM.Call(ctx, "g2", sys, input)
	if err != nil {
		return t.PatchPlan{}, err
	}
	var out t.PatchPlan
	if err := jsonutil.UnmarshalStrict(raw, &out); err != nil {
		return t.PatchPlan{}, fmt.Errorf("parse g2 output: %w", err)
	}
	out.Patches = sanitizePatches(out.Patches)
	return out, nil
}

// sanitizePatches drops malformed patches (logged, not fatal) and resolves
// duplicate filenames last-write-wins.
func sanitizePatches(patches []t.Patch) []t.Patch {
	byFile := map[string]int{}
	out := make([]t.Patch, 0, len(patches))
	for _, p := range patches {
		if p.Filename == "" || !p.Operation.Valid() || len(p.Changes) == 0 {
			log.Printf("pipeline g2: dropping malformed patch %+v", summary(p))
			continue
		}
		if i, ok := byFile[p.Filename]; ok {
			out[i] = p
			continue
		}
		byFile[p.Filename] = len(out)
		out = append(out, p)
	}
	return out
}

func summary(p t.Patch) string {
	return fmt.Sprintf("{filename:%q op:%q changes:%d}", p.Filename, p.Operation, len(p.Changes))
}
