package validate

import (
	"regexp"
	"strings"

	t "miniforge/internal/types"
)

// Interactive constructs that require client-side execution.
var (
	hookRe    = regexp.MustCompile(`\buse(State|Effect|Reducer|Ref|Callback|Memo|Context)\s*\(`)
	handlerRe = regexp.MustCompile(`\bon(Click|Change|Submit|Input|KeyDown|KeyUp|Focus|Blur|MouseEnter|MouseLeave)\s*=`)
)

// ClientDirective flags component files that use state hooks or event
// handlers but omit the "use client" marker the runtime requires.
func ClientDirective(candidate []t.GeneratedFile, _ []t.ProjectFile) []t.ValidationFinding {
	var out []t.ValidationFinding
	for _, f := range candidate {
		if !scriptLike(f.Filename) {
			continue
		}
		if !hookRe.MatchString(f.Content) && !handlerRe.MatchString(f.Content) {
			continue
		}
		if hasClientDirective(f.Content) {
			continue
		}
		out = append(out, t.ValidationFinding{
			File:    f.Filename,
			Message: `interactive component is missing the "use client" directive`,
			Kind:    t.FindingMissingDirective,
		})
	}
	return out
}

func hasClientDirective(content string) bool {
	// The directive must appear before any code; scan past blanks/comments.
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
			continue
		}
		return strings.HasPrefix(trimmed, `"use client"`) || strings.HasPrefix(trimmed, `'use client'`)
	}
	return false
}
