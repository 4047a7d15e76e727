package genai

import (
	"context"
	"errors"
)

var (
	// ErrExtractionFailed covers any non-parseable or failed axiom
	// extraction response.
	ErrExtractionFailed = errors.New("genai: axiom extraction failed")

	// ErrDocumentGroundingUnsupported is returned by providers that cannot
	// attach raw document bytes to a request.
	ErrDocumentGroundingUnsupported = errors.New("genai: provider does not support document grounding")
)

// Message is one prior turn in a provider-agnostic shape.
// Roles follow the Gemini convention: "user" and "model".
type Message struct {
	Role    string
	Content string
}

// DocumentPayload is the transport-safe encoded form of an uploaded
// document.
type DocumentPayload struct {
	MimeType string
	Data     string // base64
}

// Fragment is one incremental piece of a streamed response. A terminal
// error travels in-band as the last fragment before the channel closes.
type Fragment struct {
	Text string
	Err  error
}

// Stream is a finite, forward-only, non-restartable fragment sequence,
// consumed by exactly one reader.
type Stream <-chan Fragment

// Axiom mirrors the extractor's wire shape ({"axiom", "definition"}).
type Axiom struct {
	Label       string `json:"axiom"`
	Explanation string `json:"definition"`
}

// Option allows optional generation parameters.
type Option func(*Options)

type Options struct {
	Temperature float64
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// ThemeExtractor returns the ordered axiomatic themes of a document.
type ThemeExtractor interface {
	Extract(ctx context.Context, doc *DocumentPayload, locale string) ([]Axiom, error)
}

// Responder streams an answer grounded in the document and prior turns.
// doc may be nil when the attachment policy skips this turn.
type Responder interface {
	ConverseStream(ctx context.Context, doc *DocumentPayload, history []Message, userText, locale string, opts ...Option) (Stream, error)
}

// TitleSummarizer names a conversation from its first user message.
// Failures are non-critical; callers keep the default title.
type TitleSummarizer interface {
	Summarize(ctx context.Context, firstMessage, locale string) (string, error)
}

// Provider is the full collaborator contract.
type Provider interface {
	ThemeExtractor
	Responder
	TitleSummarizer
}
