package entity

import "time"

// Turn is one exchange unit. An assistant turn grows by append while its
// stream is in flight and is frozen at stream end; user turns never mutate.
type Turn struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
