package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"miniforge/internal/llm"
	"miniforge/internal/toolexec"
	t "miniforge/internal/types"
	"miniforge/internal/util/jsonutil"
)

// maxToolRequests caps how many inspections one run may perform. Anything the
// model asks for beyond this is ignored.
const maxToolRequests = 3

// G0 is the context-gather stage. It decides whether the prompt can be acted
// on directly or the codebase must be inspected first, and runs at most three
// read-only tools. This stage never mutates files.
type G0 struct {
	LLM   llm.StageCaller
	Tools *toolexec.Registry
}

func (g *G0) Run(ctx context.Context, prompt string, files []t.ProjectFile) ([]t.ToolFinding, error) {
	sys := `You are preparing to modify a small web application.
Decide whether the change request is specific enough to act on directly, or whether the existing codebase must be inspected first.

Available read-only tools: grep {pattern, glob?}, find {glob}, tree {}, cat {filename}.

Return STRICT JSON ONLY:
{
  "needsContext": true|false,
  "requests": [{"tool":"string","args":["string"],"reason":"string"}],
  "notes": ["string"]
}

Constraints:
- At most 3 requests; each must state a concrete reason.
- Request context only when the prompt references existing code you cannot see.`

	input := map[string]any{"prompt": prompt, "fileNames": fileNames(files)}
	raw, err := g.LLM.Call(ctx, "g0", sys, input)
	if err != nil {
		return nil, err
	}
	var out t.G0Out
	if err := jsonutil.UnmarshalStrict(raw, &out); err != nil {
		return nil, fmt.Errorf("parse g0 output: %w", err)
	}
	if !out.NeedsContext || len(out.Requests) == 0 {
		return nil, nil
	}

	reqs := out.Requests
	if len(reqs) > maxToolRequests {
		log.Printf("pipeline g0: truncating %d tool requests to %d", len(reqs), maxToolRequests)
		reqs = reqs[:maxToolRequests]
	}

	findings := make([]t.ToolFinding, 0, len(reqs))
	for _, req := range reqs {
		finding := t.ToolFinding{Tool: req.Tool, Args: req.Args}
		toolIn, err := toolInput(req.Tool, req.Args)
		if err == nil {
			var out json.RawMessage
			out, err = g.Tools.Call(ctx, req.Tool, toolIn)
			if err == nil {
				finding.Output = string(out)
			}
		}
		if err != nil {
			// Tool failures are context, not fatalities; the next stage
			// sees the error text and works with what it has.
			finding.Error = err.Error()
			log.Printf("pipeline g0: tool %s failed: %v", req.Tool, err)
		}
		findings = append(findings, finding)
	}
	return findings, nil
}

// toolInput maps positional args from the stage contract onto each tool's
// JSON input shape.
func toolInput(tool string, args []string) (json.RawMessage, error) {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	switch tool {
	case "grep":
		if arg(0) == "" {
			return nil, fmt.Errorf("grep needs a pattern argument")
		}
		return json.Marshal(map[string]string{"pattern": arg(0), "glob": arg(1)})
	case "find":
		if arg(0) == "" {
			return nil, fmt.Errorf("find needs a glob argument")
		}
		return json.Marshal(map[string]string{"glob": arg(0)})
	case "tree":
		return json.RawMessage(`{}`), nil
	case "cat":
		if arg(0) == "" {
			return nil, fmt.Errorf("cat needs a filename argument")
		}
		return json.Marshal(map[string]string{"filename": arg(0)})
	default:
		return nil, fmt.Errorf("%w: %s", toolexec.ErrToolNotAllowed, tool)
	}
}

func fileNames(files []t.ProjectFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Filename)
	}
	return out
}
