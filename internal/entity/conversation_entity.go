package entity

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the durable session record: one manuscript, its axioms,
// and the committed turn history. Id is the join key with the persistence
// gateway and is stable for the lifetime of the record.
type Conversation struct {
	Id             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Manuscript     Manuscript `json:"manuscript"`
	Axioms         []Axiom    `json:"axioms"`
	Turns          []Turn     `json:"turns"`
	LastActivityAt time.Time  `json:"last_activity_at"`
}

// Clone deep-copies the record so serialization-time mutation (document
// stripping) never touches the live session state.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Axioms = make([]Axiom, len(c.Axioms))
	copy(cp.Axioms, c.Axioms)
	cp.Turns = make([]Turn, len(c.Turns))
	copy(cp.Turns, c.Turns)
	return &cp
}
