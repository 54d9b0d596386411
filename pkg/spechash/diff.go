package spechash

// Diff pairs the observed and desired properties of a resource. It is kept
// as-is for inspection and never hashed.
type Diff struct {
	// Before is the current state, nil when the resource does not exist yet.
	Before any `json:"before" yaml:"before"`

	// After is the desired state, nil when the resource is being removed.
	After any `json:"after" yaml:"after"`
}

// CreateDiff pairs before and after without normalizing either side.
func CreateDiff(before, after any) *Diff {
	return &Diff{Before: before, After: after}
}
