// Package validate holds the structural checks run against code-generate
// output. Every check is a pure function: same input, same findings, no I/O.
package validate

import (
	t "miniforge/internal/types"
)

// Validator is one stateless structural check over a candidate file set.
// existing is the project's pre-generation file set.
type Validator func(candidate []t.GeneratedFile, existing []t.ProjectFile) []t.ValidationFinding

// All returns the fixed validator set in execution order.
func All() []Validator {
	return []Validator{
		Completeness,
		ImportResolution,
		ClientDirective,
		SyntaxRisk,
	}
}

// RunAll executes every validator and concatenates findings.
func RunAll(candidate []t.GeneratedFile, existing []t.ProjectFile) []t.ValidationFinding {
	var out []t.ValidationFinding
	for _, v := range All() {
		out = append(out, v(candidate, existing)...)
	}
	return out
}
