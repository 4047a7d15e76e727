package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "TURN_COMMITTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewResearchStartedEvent fires when a manuscript upload yields a new
// conversation.
func NewResearchStartedEvent(conversationID, title string, axiomCount int) Event {
	return BaseEvent{
		Type: "RESEARCH_STARTED",
		Data: map[string]interface{}{
			"conversation_id": conversationID,
			"title":           title,
			"axiom_count":     axiomCount,
		},
		OccurredAt: time.Now(),
	}
}

// NewTurnCommittedEvent fires when a streamed exchange freezes into history.
func NewTurnCommittedEvent(conversationID string, turnCount int) Event {
	return BaseEvent{
		Type: "TURN_COMMITTED",
		Data: map[string]interface{}{
			"conversation_id": conversationID,
			"turn_count":      turnCount,
		},
		OccurredAt: time.Now(),
	}
}

// NewTitleUpdatedEvent fires when the async summarizer renames a
// conversation.
func NewTitleUpdatedEvent(conversationID, title string) Event {
	return BaseEvent{
		Type: "TITLE_UPDATED",
		Data: map[string]interface{}{
			"conversation_id": conversationID,
			"title":           title,
		},
		OccurredAt: time.Now(),
	}
}

// NewConversationDeletedEvent fires when a stored conversation is removed.
func NewConversationDeletedEvent(conversationID string) Event {
	return BaseEvent{
		Type: "CONVERSATION_DELETED",
		Data: map[string]interface{}{
			"conversation_id": conversationID,
		},
		OccurredAt: time.Now(),
	}
}
