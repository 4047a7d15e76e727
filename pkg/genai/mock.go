package genai

import (
	"context"
	"strings"
	"time"
)

// MockProvider is a scripted collaborator for tests and the simulation
// harness. Fragments are replayed in order with an optional delay; a
// non-nil FailAfter error is emitted after the scripted fragments.
type MockProvider struct {
	Axioms        []Axiom
	Fragments     []string
	FragmentDelay time.Duration
	Title         string

	ExtractErr   error
	ConverseErr  error
	SummarizeErr error
	FailAfter    error
}

var _ Provider = &MockProvider{}

func (m *MockProvider) Extract(ctx context.Context, doc *DocumentPayload, locale string) ([]Axiom, error) {
	if m.ExtractErr != nil {
		return nil, m.ExtractErr
	}
	out := make([]Axiom, len(m.Axioms))
	copy(out, m.Axioms)
	return out, nil
}

func (m *MockProvider) ConverseStream(ctx context.Context, doc *DocumentPayload, history []Message, userText, locale string, opts ...Option) (Stream, error) {
	if m.ConverseErr != nil {
		return nil, m.ConverseErr
	}

	fragments := make(chan Fragment)
	go func() {
		defer close(fragments)
		for _, f := range m.Fragments {
			if m.FragmentDelay > 0 {
				select {
				case <-time.After(m.FragmentDelay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case fragments <- Fragment{Text: f}:
			case <-ctx.Done():
				return
			}
		}
		if m.FailAfter != nil {
			select {
			case fragments <- Fragment{Err: m.FailAfter}:
			case <-ctx.Done():
			}
		}
	}()

	return fragments, nil
}

func (m *MockProvider) Summarize(ctx context.Context, firstMessage, locale string) (string, error) {
	if m.SummarizeErr != nil {
		return "", m.SummarizeErr
	}
	if m.Title != "" {
		return m.Title, nil
	}
	words := strings.Fields(firstMessage)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " "), nil
}
