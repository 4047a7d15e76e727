package dto

import (
	"time"

	"github.com/google/uuid"
)

type StartResearchRequest struct {
	Locale string `form:"locale"`
}

type SendMessageRequest struct {
	Message string `json:"message" validate:"required"`
	Locale  string `json:"locale"`
}

type AxiomResponse struct {
	Axiom      string `json:"axiom"`
	Definition string `json:"definition"`
}

type TurnResponse struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type ManuscriptResponse struct {
	Id          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	PreviewURL  string    `json:"preview_url,omitempty"`
	Resumable   bool      `json:"resumable"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type ConversationResponse struct {
	Id             uuid.UUID          `json:"id"`
	Title          string             `json:"title"`
	Manuscript     ManuscriptResponse `json:"manuscript"`
	Axioms         []AxiomResponse    `json:"axioms"`
	Turns          []TurnResponse     `json:"turns"`
	LastActivityAt time.Time          `json:"last_activity_at"`
}

// ConversationSummaryResponse is the sidebar listing form: no turns, no
// document payload.
type ConversationSummaryResponse struct {
	Id             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	TurnCount      int       `json:"turn_count"`
	Resumable      bool      `json:"resumable"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type SessionResponse struct {
	State         string                        `json:"state"`
	Status        string                        `json:"status"`
	Busy          bool                          `json:"busy"`
	Active        *ConversationResponse         `json:"active,omitempty"`
	Conversations []ConversationSummaryResponse `json:"conversations"`
}

type SendMessageResponse struct {
	ConversationId uuid.UUID    `json:"conversation_id"`
	Turn           TurnResponse `json:"turn"`
}

// PublishSummarizeTitleMessage rides the in-process bus from the first
// completed exchange to the title consumer.
type PublishSummarizeTitleMessage struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	FirstMessage   string    `json:"first_message"`
	Locale         string    `json:"locale"`
}
