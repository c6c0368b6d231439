package types

type PatchOperation string

const (
	PatchCreate PatchOperation = "create"
	PatchModify PatchOperation = "modify"
	PatchDelete PatchOperation = "delete"
)

func (op PatchOperation) Valid() bool {
	switch op {
	case PatchCreate, PatchModify, PatchDelete:
		return true
	}
	return false
}

// PatchChange describes one intended change inside a file, without code.
type PatchChange struct {
	Type                string   `json:"type"` // add | replace | remove
	Target              string   `json:"target"`
	Description         string   `json:"description"`
	Location            string   `json:"location,omitempty"`
	Dependencies        []string `json:"dependencies,omitempty"`
	ContractInteraction string   `json:"contractInteraction,omitempty"`
}

// Patch is the planned change set for a single file. A valid patch carries a
// filename, a known operation, and at least one change.
type Patch struct {
	Filename  string         `json:"filename"`
	Operation PatchOperation `json:"operation"`
	Purpose   string         `json:"purpose"`
	Changes   []PatchChange  `json:"changes"`
}

// PatchPlan is the patch-plan stage contract. Duplicate filenames resolve
// last-write-wins.
type PatchPlan struct {
	Patches             []Patch  `json:"patches"`
	ImplementationNotes []string `json:"implementationNotes,omitempty"`
}
