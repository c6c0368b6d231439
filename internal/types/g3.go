package types

// G3Out is the code-generate stage contract: complete replacement contents
// for every planned file plus any new files the plan implies.
type G3Out struct {
	Files []GeneratedFile `json:"files"`
}
