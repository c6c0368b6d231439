package types

// G4Out is the repair-call contract. The repair call receives exactly the
// invalid files and must echo the same filenames back.
type G4Out struct {
	Files []GeneratedFile `json:"files"`
}
