package entity

// Axiom is one extracted thematic insight. Axioms are immutable and keep
// their extraction rank (slice order).
type Axiom struct {
	Label       string `json:"label"`
	Explanation string `json:"explanation"`
}
