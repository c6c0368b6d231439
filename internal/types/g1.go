package types

// ContractInteractions lists on-chain reads/writes the requested feature
// performs, when the prompt touches web3 functionality.
type ContractInteractions struct {
	Reads  []string `json:"reads"`
	Writes []string `json:"writes"`
}

// IntentSpec is the intent-parse stage contract: the structured requirement
// extracted from the prompt. When NeedsChanges is false all slices are empty
// and the executor must not run later stages.
type IntentSpec struct {
	Feature              string                `json:"feature"`
	Requirements         []string              `json:"requirements"`
	TargetFiles          []string              `json:"targetFiles"`
	Dependencies         []string              `json:"dependencies"`
	NeedsChanges         bool                  `json:"needsChanges"`
	Reason               string                `json:"reason"`
	ContractInteractions *ContractInteractions `json:"contractInteractions,omitempty"`
}
