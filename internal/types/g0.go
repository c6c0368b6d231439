package types

// G0ToolRequest is one read-only inspection the model wants before parsing
// intent. Tool names come from the fixed toolexec capability set.
type G0ToolRequest struct {
	Tool   string   `json:"tool"`
	Args   []string `json:"args"`
	Reason string   `json:"reason"`
}

// G0Out is the context-gather stage contract. At most three requests are
// honored; anything past that is ignored.
type G0Out struct {
	NeedsContext bool            `json:"needsContext"`
	Requests     []G0ToolRequest `json:"requests"`
	Notes        []string        `json:"notes,omitempty"`
}

// ToolFinding is a gathered result folded back into the intent-parse input.
type ToolFinding struct {
	Tool   string `json:"tool"`
	Args   []string `json:"args,omitempty"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}
