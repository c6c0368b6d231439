package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	t "miniforge/internal/types"
)

// RegisterInspectionTools installs the fixed read-only capability set over a
// snapshot of the project's files: grep, find, tree, cat. This is the entire
// allow-list; there is no shell escape.
func RegisterInspectionTools(r *Registry, files []t.ProjectFile) {
	if r == nil {
		return
	}
	fs := fileSet(files)
	r.Register(&grepTool{fs: fs})
	r.Register(&findTool{fs: fs})
	r.Register(&treeTool{fs: fs})
	r.Register(&catTool{fs: fs})
}

// AllowedTools returns the names of the inspection capability set.
func AllowedTools() []string { return []string{"grep", "find", "tree", "cat"} }

type fileSet []t.ProjectFile

func (fs fileSet) names() []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Filename)
	}
	sort.Strings(out)
	return out
}

// grep -------------------------------------------------------------------------

type grepTool struct{ fs fileSet }

type grepInput struct {
	Pattern string `json:"pattern"`
	Glob    string `json:"glob,omitempty"`
}

func (g *grepTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "grep",
		Description: "search file contents with a regular expression; returns filename:line matches",
		InputSchema: json.RawMessage(`{"pattern":"string","glob":"string?"}`),
	}
}

func (g *grepTool) Call(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in grepInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("grep: %w", err)
	}
	re, err := regexp.Compile(in.Pattern)
	if err != nil {
		return nil, fmt.Errorf("grep: bad pattern: %w", err)
	}
	var hits []string
	for _, f := range g.fs {
		if in.Glob != "" {
			if ok, _ := path.Match(in.Glob, path.Base(f.Filename)); !ok {
				continue
			}
		}
		for i, line := range strings.Split(f.Content, "\n") {
			if re.MatchString(line) {
				hits = append(hits, fmt.Sprintf("%s:%d:%s", f.Filename, i+1, strings.TrimSpace(line)))
				if len(hits) >= 200 {
					return marshalLines(hits)
				}
			}
		}
	}
	return marshalLines(hits)
}

// find -------------------------------------------------------------------------

type findTool struct{ fs fileSet }

type findInput struct {
	Glob string `json:"glob"`
}

func (f *findTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "find",
		Description: "list filenames matching a glob pattern",
		InputSchema: json.RawMessage(`{"glob":"string"}`),
	}
}

func (f *findTool) Call(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in findInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	var hits []string
	for _, name := range f.fs.names() {
		if ok, _ := path.Match(in.Glob, name); ok {
			hits = append(hits, name)
			continue
		}
		if ok, _ := path.Match(in.Glob, path.Base(name)); ok {
			hits = append(hits, name)
		}
	}
	return marshalLines(hits)
}

// tree -------------------------------------------------------------------------

type treeTool struct{ fs fileSet }

func (tr *treeTool) Spec() ToolSpec {
	return ToolSpec{Name: "tree", Description: "render the project file tree"}
}

func (tr *treeTool) Call(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	var b strings.Builder
	for _, name := range tr.fs.names() {
		depth := strings.Count(name, "/")
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(path.Base(name))
		b.WriteByte('\n')
	}
	return json.Marshal(map[string]string{"tree": b.String()})
}

// cat --------------------------------------------------------------------------

type catTool struct{ fs fileSet }

type catInput struct {
	Filename string `json:"filename"`
}

func (c *catTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "cat",
		Description: "return the full content of one file",
		InputSchema: json.RawMessage(`{"filename":"string"}`),
	}
}

func (c *catTool) Call(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in catInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("cat: %w", err)
	}
	for _, f := range c.fs {
		if f.Filename == in.Filename {
			return json.Marshal(map[string]string{"filename": f.Filename, "content": f.Content})
		}
	}
	return nil, fmt.Errorf("cat: no such file %q", in.Filename)
}

func marshalLines(lines []string) (json.RawMessage, error) {
	if lines == nil {
		lines = []string{}
	}
	return json.Marshal(map[string]any{"matches": lines, "count": len(lines)})
}
