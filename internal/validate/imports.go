package validate

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	t "miniforge/internal/types"
)

// Import-like references: static ESM, dynamic import(), and require().
var (
	staticImportRe  = regexp.MustCompile(`(?m)^\s*import\s+(?:[^'"]+\s+from\s+)?['"]([^'"]+)['"]`)
	dynamicImportRe = regexp.MustCompile(`import\(\s*['"]([^'"]+)['"]\s*\)`)
	requireRe       = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
)

// frameworkModules is the fixed allow-list of modules the preview host
// provides without a project-local file backing them.
var frameworkModules = []string{
	"react",
	"react-dom",
	"next",
	"next/",
	"viem",
	"viem/",
	"wagmi",
	"wagmi/",
	"ethers",
	"@coinbase/onchainkit",
	"@farcaster/",
	"@tanstack/react-query",
	"tailwindcss",
	"clsx",
	"zod",
}

// resolvable extensions tried when a reference omits its suffix.
var importExts = []string{"", ".ts", ".tsx", ".js", ".jsx", ".css", ".json", "/index.ts", "/index.tsx", "/index.js"}

// ImportResolution extracts import-like references from every candidate file
// and checks each against candidate files, pre-existing files, and the
// framework allow-list. Unresolved references are flagged per file.
func ImportResolution(candidate []t.GeneratedFile, existing []t.ProjectFile) []t.ValidationFinding {
	known := map[string]bool{}
	for _, f := range candidate {
		known[f.Filename] = true
	}
	for _, f := range existing {
		known[f.Filename] = true
	}

	var out []t.ValidationFinding
	for _, f := range candidate {
		if !scriptLike(f.Filename) {
			continue
		}
		for _, ref := range extractImports(f.Content) {
			if resolves(ref, f.Filename, known) {
				continue
			}
			out = append(out, t.ValidationFinding{
				File:    f.Filename,
				Message: fmt.Sprintf("unresolved import %q", ref),
				Kind:    t.FindingMissingImport,
			})
		}
	}
	return out
}

func extractImports(content string) []string {
	seen := map[string]bool{}
	var refs []string
	for _, re := range []*regexp.Regexp{staticImportRe, dynamicImportRe, requireRe} {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			if ref := m[1]; !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	return refs
}

func resolves(ref, from string, known map[string]bool) bool {
	switch {
	case strings.HasPrefix(ref, "./"), strings.HasPrefix(ref, "../"):
		base := path.Join(path.Dir(from), ref)
		return anyKnown(base, known)
	case strings.HasPrefix(ref, "@/"):
		return anyKnown(strings.TrimPrefix(ref, "@/"), known)
	default:
		// Bare specifier: must be framework-provided.
		for _, mod := range frameworkModules {
			if ref == mod || (strings.HasSuffix(mod, "/") && strings.HasPrefix(ref, mod)) {
				return true
			}
		}
		return false
	}
}

func anyKnown(base string, known map[string]bool) bool {
	for _, ext := range importExts {
		if known[base+ext] {
			return true
		}
	}
	return false
}

func scriptLike(filename string) bool {
	switch strings.ToLower(path.Ext(filename)) {
	case ".js", ".jsx", ".ts", ".tsx", ".mjs":
		return true
	}
	return false
}
