package pipeline

import (
	"context"
	"fmt"
	"log"

	"miniforge/internal/llm"
	"miniforge/internal/toolexec"
	t "miniforge/internal/types"
	"miniforge/internal/validate"
)

// Executor runs the five generation stages in strict order against a
// project's current file set. Stage-contract violations are fatal to the run;
// validator findings route through one bounded repair pass.
type Executor struct {
	LLM llm.StageCaller
}

func NewExecutor(caller llm.StageCaller) *Executor {
	return &Executor{LLM: caller}
}

// Run turns a change request into verified file contents. When intent parsing
// decides no change is needed, the input file set comes back unchanged and
// later stages never run.
func (e *Executor) Run(ctx context.Context, prompt string, current []t.ProjectFile) ([]t.GeneratedFile, error) {
	tools := toolexec.NewRegistry()
	toolexec.RegisterInspectionTools(tools, current)

	g0 := &G0{LLM: e.LLM, Tools: tools}
	gathered, err := g0.Run(ctx, prompt, current)
	if err != nil {
		return nil, fmt.Errorf("pipeline: stage g0: %w", err)
	}

	g1 := &G1{LLM: e.LLM}
	intent, err := g1.Run(ctx, prompt, current, gathered)
	if err != nil {
		return nil, fmt.Errorf("pipeline: stage g1: %w", err)
	}
	if !intent.NeedsChanges {
		log.Printf("pipeline: no changes needed (%s), short-circuiting", intent.Reason)
		return asGenerated(current), nil
	}

	g2 := &G2{LLM: e.LLM}
	plan, err := g2.Run(ctx, intent, current)
	if err != nil {
		return nil, fmt.Errorf("pipeline: stage g2: %w", err)
	}

	g3 := &G3{LLM: e.LLM}
	generated, err := g3.Run(ctx, intent, plan, current)
	if err != nil {
		return nil, fmt.Errorf("pipeline: stage g3: %w", err)
	}

	final, err := e.validateAndRepair(ctx, generated, current)
	if err != nil {
		return nil, err
	}
	return final, nil
}

// validateAndRepair runs the static validators and, when they find problems,
// regenerates exactly the invalid subset through one repair call. Repair
// responses that omit an expected file fall back to the pre-repair content;
// losing the file entirely would be worse than shipping it unfixed.
func (e *Executor) validateAndRepair(ctx context.Context, generated []t.GeneratedFile, current []t.ProjectFile) ([]t.GeneratedFile, error) {
	findings := validate.RunAll(generated, current)
	if len(findings) == 0 {
		return generated, nil
	}
	log.Printf("pipeline: %d validation findings, running repair", len(findings))

	invalidNames := map[string]bool{}
	for _, f := range findings {
		if f.File != "" {
			invalidNames[f.File] = true
		}
	}
	var invalid []t.GeneratedFile
	for _, f := range generated {
		if invalidNames[f.Filename] {
			invalid = append(invalid, f)
		}
	}
	if len(invalid) == 0 {
		// Findings without a file (empty result set) cannot be repaired
		// file-by-file; surface them as a fatal contract problem.
		return nil, fmt.Errorf("pipeline: stage g4: unrepairable findings: %v", findings)
	}

	g4 := &G4{LLM: e.LLM}
	repaired, err := g4.Run(ctx, invalid, findings)
	if err != nil {
		return nil, fmt.Errorf("pipeline: stage g4: %w", err)
	}

	repairedByName := map[string]t.GeneratedFile{}
	for _, f := range repaired {
		if !invalidNames[f.Filename] {
			log.Printf("pipeline g4: dropping unexpected file %q from repair response", f.Filename)
			continue
		}
		repairedByName[f.Filename] = f
	}

	// Union of untouched-valid files and repaired files, de-duplicated by
	// filename, last write wins.
	merged := make(map[string]t.GeneratedFile, len(generated))
	order := make([]string, 0, len(generated))
	for _, f := range generated {
		if _, seen := merged[f.Filename]; !seen {
			order = append(order, f.Filename)
		}
		merged[f.Filename] = f
	}
	for name := range invalidNames {
		if fixed, ok := repairedByName[name]; ok {
			merged[name] = fixed
		} else {
			log.Printf("pipeline g4: repair response omitted %q, keeping pre-repair content", name)
		}
	}

	out := make([]t.GeneratedFile, 0, len(order))
	for _, name := range order {
		out = append(out, merged[name])
	}
	return out, nil
}

func asGenerated(files []t.ProjectFile) []t.GeneratedFile {
	out := make([]t.GeneratedFile, 0, len(files))
	for _, f := range files {
		out = append(out, t.GeneratedFile{Filename: f.Filename, Content: f.Content})
	}
	return out
}
