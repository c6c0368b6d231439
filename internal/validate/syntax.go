package validate

import (
	"fmt"
	"regexp"
	"strings"

	t "miniforge/internal/types"
)

var danglingImportRe = regexp.MustCompile(`(?m)^\s*import\s+[^'"]*$`)

// SyntaxRisk is a pattern-based check for gross structural damage in model
// output: unbalanced braces/parens, unterminated imports, odd template
// literal counts. It is a heuristic, not a parser, and is deliberately
// conservative: a false positive only costs one repair pass, a missed fatal
// error costs a broken deploy.
func SyntaxRisk(candidate []t.GeneratedFile, _ []t.ProjectFile) []t.ValidationFinding {
	var out []t.ValidationFinding
	for _, f := range candidate {
		if !scriptLike(f.Filename) {
			continue
		}
		for _, msg := range syntaxRisks(f.Content) {
			out = append(out, t.ValidationFinding{
				File:    f.Filename,
				Message: msg,
				Kind:    t.FindingSyntaxRisk,
			})
		}
	}
	return out
}

func syntaxRisks(content string) []string {
	var risks []string
	stripped := stripStringsAndComments(content)

	if d := strings.Count(stripped, "{") - strings.Count(stripped, "}"); d != 0 {
		risks = append(risks, fmt.Sprintf("unbalanced braces (delta %+d)", d))
	}
	if d := strings.Count(stripped, "(") - strings.Count(stripped, ")"); d != 0 {
		risks = append(risks, fmt.Sprintf("unbalanced parentheses (delta %+d)", d))
	}
	if strings.Count(content, "`")%2 != 0 {
		risks = append(risks, "odd number of template literal backticks")
	}
	// Checked against the original content: stripping removes the quoted
	// specifier and would make every import look dangling.
	if m := danglingImportRe.FindString(content); m != "" {
		risks = append(risks, fmt.Sprintf("dangling import statement %q", strings.TrimSpace(m)))
	}
	return risks
}

// stripStringsAndComments blanks out string/comment bodies so bracket
// counting ignores them. Template literals are left alone; interpolated
// expressions make them unsafe to blank with a scanner this simple.
func stripStringsAndComments(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case c == '/' && i+1 < len(content) && content[i+1] == '/':
			for i < len(content) && content[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(content) && content[i+1] == '*':
			i += 2
			for i+1 < len(content) && !(content[i] == '*' && content[i+1] == '/') {
				i++
			}
			i += 2
		case c == '\'' || c == '"':
			quote := c
			i++
			for i < len(content) && content[i] != quote && content[i] != '\n' {
				if content[i] == '\\' {
					i++
				}
				i++
			}
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
