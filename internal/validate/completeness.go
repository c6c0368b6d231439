package validate

import (
	"strings"

	t "miniforge/internal/types"
)

// Completeness flags an empty result set and files with blank content. A
// blank file out of code generation always means truncated model output.
func Completeness(candidate []t.GeneratedFile, _ []t.ProjectFile) []t.ValidationFinding {
	if len(candidate) == 0 {
		return []t.ValidationFinding{{
			File:    "",
			Message: "code generation returned no files",
			Kind:    t.FindingMissingFile,
		}}
	}
	var out []t.ValidationFinding
	for _, f := range candidate {
		if strings.TrimSpace(f.Content) == "" {
			out = append(out, t.ValidationFinding{
				File:    f.Filename,
				Message: "file content is empty",
				Kind:    t.FindingMissingFile,
			})
		}
	}
	return out
}
