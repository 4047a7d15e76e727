package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/OussamaSEBROU/the-senctuary/internal/document"
	"github.com/OussamaSEBROU/the-senctuary/internal/persistence"
	"github.com/OussamaSEBROU/the-senctuary/internal/pkg/logger"
	"github.com/OussamaSEBROU/the-senctuary/internal/stream"
	"github.com/OussamaSEBROU/the-senctuary/pkg/genai"
	"github.com/OussamaSEBROU/the-senctuary/pkg/kv"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

var pdfBytes = []byte("%PDF-1.4\nminimal test manuscript")

func newTestManager(t *testing.T, provider genai.Provider) (*Manager, *persistence.Gateway) {
	t.Helper()

	dir := t.TempDir()
	log := logger.NewIsolatedLogger(filepath.Join(dir, "test.log"))

	encoder, err := document.NewEncoder(filepath.Join(dir, "uploads"), 0, log)
	assert.NoError(t, err)

	store, err := kv.NewFileStore(filepath.Join(dir, "store"), 0)
	assert.NoError(t, err)
	gateway := persistence.NewGateway(store, "sanctuary:conversations", 0, log)

	accumulator := stream.NewAccumulator(2 * time.Second)

	return NewManager(encoder, gateway, provider, accumulator, AttachEveryTurn, log), gateway
}

func TestStartResearchMakesSessionReady(t *testing.T) {
	provider := &genai.MockProvider{
		Axioms: []genai.Axiom{
			{Label: "Entropy", Explanation: "Disorder grows."},
			{Label: "Duality", Explanation: "Waves and particles."},
		},
	}
	m, gateway := newTestManager(t, provider)
	ctx := context.Background()

	conv, err := m.StartResearch(ctx, "thesis.pdf", pdfBytes, "en")
	assert.NoError(t, err)
	assert.Equal(t, "thesis.pdf", conv.Title)
	assert.Len(t, conv.Axioms, 2)
	assert.Equal(t, "Entropy", conv.Axioms[0].Label)
	assert.True(t, conv.Manuscript.Resumable())

	snap := m.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, StatusReady, snap.Status)
	assert.False(t, snap.Busy)
	assert.Equal(t, conv.Id, snap.Active.Id)

	stored := gateway.Load(ctx)
	assert.Len(t, stored, 1)
	assert.Equal(t, conv.Id, stored[0].Id)
}

func TestStartResearchExtractionFailureLeavesSessionEmpty(t *testing.T) {
	provider := &genai.MockProvider{ExtractErr: genai.ErrExtractionFailed}
	m, gateway := newTestManager(t, provider)
	ctx := context.Background()

	_, err := m.StartResearch(ctx, "thesis.pdf", pdfBytes, "en")
	assert.ErrorIs(t, err, genai.ErrExtractionFailed)

	snap := m.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.Equal(t, StatusError, snap.Status)
	assert.False(t, snap.Busy)
	assert.Empty(t, snap.Conversations)
	assert.Empty(t, gateway.Load(ctx))
}

func TestStartResearchRejectsNonPDF(t *testing.T) {
	m, _ := newTestManager(t, &genai.MockProvider{})

	_, err := m.StartResearch(context.Background(), "notes.txt", []byte("plain text"), "en")
	assert.ErrorIs(t, err, document.ErrNotPDF)
	assert.Equal(t, StateEmpty, m.Snapshot().State)
}

func TestSendCommitsExchangeAndStreamsUpdates(t *testing.T) {
	provider := &genai.MockProvider{
		Axioms:    []genai.Axiom{{Label: "A", Explanation: "a"}},
		Fragments: []string{"The ", "document ", "argues..."},
	}
	m, gateway := newTestManager(t, provider)
	ctx := context.Background()

	_, err := m.StartResearch(ctx, "thesis.pdf", pdfBytes, "en")
	assert.NoError(t, err)

	var updates []string
	turn, err := m.Send(ctx, "What is the thesis?", "en", func(_ uuid.UUID, accumulated string) {
		updates = append(updates, accumulated)
	})
	assert.NoError(t, err)
	assert.Equal(t, "The document argues...", turn.Text)

	// Each update extends the previous one; nothing is reordered or lost.
	assert.Equal(t, []string{"The ", "The document ", "The document argues..."}, updates)

	snap := m.Snapshot()
	assert.Len(t, snap.Active.Turns, 2)
	assert.Equal(t, "What is the thesis?", snap.Active.Turns[0].Text)
	assert.Equal(t, "The document argues...", snap.Active.Turns[1].Text)

	stored := gateway.Load(ctx)
	assert.Len(t, stored, 1)
	assert.Len(t, stored[0].Turns, 2)
}

func TestSendWithoutActiveConversation(t *testing.T) {
	m, _ := newTestManager(t, &genai.MockProvider{})

	_, err := m.Send(context.Background(), "hello?", "en", nil)
	assert.ErrorIs(t, err, ErrNoActiveConversation)
}

func TestSendRejectsConcurrentSend(t *testing.T) {
	provider := &genai.MockProvider{
		Axioms:        []genai.Axiom{{Label: "A", Explanation: "a"}},
		Fragments:     []string{"slow ", "answer"},
		FragmentDelay: 150 * time.Millisecond,
	}
	m, _ := newTestManager(t, provider)
	ctx := context.Background()

	_, err := m.StartResearch(ctx, "thesis.pdf", pdfBytes, "en")
	assert.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := m.Send(ctx, "first", "en", nil)
		assert.NoError(t, err)
	}()

	time.Sleep(50 * time.Millisecond)
	_, err = m.Send(ctx, "second", "en", nil)
	assert.ErrorIs(t, err, ErrBusy)
	wg.Wait()

	// The rejected send queued nothing; only the first exchange exists.
	snap := m.Snapshot()
	assert.Len(t, snap.Active.Turns, 2)
	assert.Equal(t, "first", snap.Active.Turns[0].Text)
}

func TestSendStreamFailureDiscardsUncommittedPair(t *testing.T) {
	provider := &genai.MockProvider{
		Axioms:    []genai.Axiom{{Label: "A", Explanation: "a"}},
		Fragments: []string{"partial "},
		FailAfter: errors.New("upstream reset"),
	}
	m, _ := newTestManager(t, provider)
	ctx := context.Background()

	_, err := m.StartResearch(ctx, "thesis.pdf", pdfBytes, "en")
	assert.NoError(t, err)

	_, err = m.Send(ctx, "doomed question", "en", nil)
	assert.ErrorIs(t, err, stream.ErrStreamInterrupted)

	// Partial text never becomes history; a retry starts clean.
	snap := m.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.False(t, snap.Busy)
	assert.Empty(t, snap.Active.Turns)

	provider.FailAfter = nil
	provider.Fragments = []string{"recovered"}
	turn, err := m.Send(ctx, "retry", "en", nil)
	assert.NoError(t, err)
	assert.Equal(t, "recovered", turn.Text)
	assert.Len(t, m.Snapshot().Active.Turns, 2)
}

func TestSaveDuringStreamExcludesUncommittedTurns(t *testing.T) {
	provider := &genai.MockProvider{
		Axioms:        []genai.Axiom{{Label: "A", Explanation: "a"}},
		Fragments:     []string{"slow ", "and ", "steady ", "answer"},
		FragmentDelay: 60 * time.Millisecond,
	}
	m, gateway := newTestManager(t, provider)
	ctx := context.Background()

	conv, err := m.StartResearch(ctx, "thesis.pdf", pdfBytes, "en")
	assert.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := m.Send(ctx, "question", "en", nil)
		assert.NoError(t, err)
	}()

	time.Sleep(100 * time.Millisecond)

	// The async title consumer renaming mid-stream triggers a save; the
	// half-built exchange must not reach the durable store.
	assert.NoError(t, m.RenameConversation(ctx, conv.Id, "Renamed Mid Stream"))

	stored := gateway.Load(ctx)
	assert.Len(t, stored, 1)
	assert.Equal(t, "Renamed Mid Stream", stored[0].Title)
	assert.Empty(t, stored[0].Turns)

	wg.Wait()

	// Once frozen, the full exchange persists alongside the new title.
	stored = gateway.Load(ctx)
	assert.Len(t, stored[0].Turns, 2)
	assert.Equal(t, "slow and steady answer", stored[0].Turns[1].Text)
	assert.Equal(t, "Renamed Mid Stream", stored[0].Title)
}

func TestResetMidStreamDiscardsPartialExchange(t *testing.T) {
	provider := &genai.MockProvider{
		Axioms:        []genai.Axiom{{Label: "A", Explanation: "a"}},
		Fragments:     []string{"never ", "to ", "be ", "committed"},
		FragmentDelay: 60 * time.Millisecond,
	}
	m, gateway := newTestManager(t, provider)
	ctx := context.Background()

	conv, err := m.StartResearch(ctx, "thesis.pdf", pdfBytes, "en")
	assert.NoError(t, err)

	var sendErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, sendErr = m.Send(ctx, "doomed question", "en", nil)
	}()

	time.Sleep(100 * time.Millisecond)
	m.Reset(ctx)
	wg.Wait()

	assert.ErrorIs(t, sendErr, context.Canceled)

	snap := m.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.False(t, snap.Busy)
	assert.Len(t, snap.Conversations, 1)
	assert.Empty(t, snap.Conversations[0].Turns)

	// The partial turn never reached the durable store either.
	for _, c := range gateway.Load(ctx) {
		assert.Empty(t, c.Turns)
	}

	// The session recovers: reopening and sending works cleanly.
	_, err = m.Select(ctx, conv.Id)
	assert.NoError(t, err)
	turn, err := m.Send(ctx, "retry", "en", nil)
	assert.NoError(t, err)
	assert.Equal(t, "never to be committed", turn.Text)
	assert.Len(t, m.Snapshot().Active.Turns, 2)
}

func TestDeleteActiveMidStreamLeavesOthersIntact(t *testing.T) {
	provider := &genai.MockProvider{
		Axioms:    []genai.Axiom{{Label: "A", Explanation: "a"}},
		Fragments: []string{"prior answer"},
	}
	m, gateway := newTestManager(t, provider)
	ctx := context.Background()

	other, err := m.StartResearch(ctx, "other.pdf", pdfBytes, "en")
	assert.NoError(t, err)
	_, err = m.Send(ctx, "prior question", "en", nil)
	assert.NoError(t, err)

	active, err := m.StartResearch(ctx, "active.pdf", pdfBytes, "en")
	assert.NoError(t, err)

	provider.Fragments = []string{"doomed ", "partial ", "stream ", "text"}
	provider.FragmentDelay = 60 * time.Millisecond

	var sendErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, sendErr = m.Send(ctx, "interrupted question", "en", nil)
	}()

	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, m.Delete(ctx, active.Id))
	wg.Wait()

	assert.ErrorIs(t, sendErr, context.Canceled)

	// Teardown mid-stream never touches the other conversation.
	snap := m.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.False(t, snap.Busy)
	assert.Len(t, snap.Conversations, 1)
	assert.Equal(t, other.Id, snap.Conversations[0].Id)
	assert.Len(t, snap.Conversations[0].Turns, 2)
	assert.Equal(t, "prior answer", snap.Conversations[0].Turns[1].Text)

	stored := gateway.Load(ctx)
	assert.Len(t, stored, 1)
	assert.Equal(t, other.Id, stored[0].Id)
	assert.Len(t, stored[0].Turns, 2)
	assert.Equal(t, "prior answer", stored[0].Turns[1].Text)
}

func TestSelectSwitchesActiveConversation(t *testing.T) {
	provider := &genai.MockProvider{Axioms: []genai.Axiom{{Label: "A", Explanation: "a"}}}
	m, _ := newTestManager(t, provider)
	ctx := context.Background()

	first, err := m.StartResearch(ctx, "first.pdf", pdfBytes, "en")
	assert.NoError(t, err)
	second, err := m.StartResearch(ctx, "second.pdf", pdfBytes, "en")
	assert.NoError(t, err)
	assert.Equal(t, second.Id, m.Snapshot().Active.Id)

	selected, err := m.Select(ctx, first.Id)
	assert.NoError(t, err)
	assert.Equal(t, first.Id, selected.Id)
	assert.Equal(t, first.Id, m.Snapshot().Active.Id)

	_, err = m.Select(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestDeleteActiveConversationEmptiesSession(t *testing.T) {
	provider := &genai.MockProvider{Axioms: []genai.Axiom{{Label: "A", Explanation: "a"}}}
	m, gateway := newTestManager(t, provider)
	ctx := context.Background()

	conv, err := m.StartResearch(ctx, "thesis.pdf", pdfBytes, "en")
	assert.NoError(t, err)

	assert.NoError(t, m.Delete(ctx, conv.Id))

	snap := m.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.Empty(t, snap.Conversations)
	assert.Empty(t, gateway.Load(ctx))

	assert.ErrorIs(t, m.Delete(ctx, conv.Id), ErrConversationNotFound)
}

func TestDeleteInactiveConversationKeepsActive(t *testing.T) {
	provider := &genai.MockProvider{Axioms: []genai.Axiom{{Label: "A", Explanation: "a"}}}
	m, _ := newTestManager(t, provider)
	ctx := context.Background()

	first, err := m.StartResearch(ctx, "first.pdf", pdfBytes, "en")
	assert.NoError(t, err)
	second, err := m.StartResearch(ctx, "second.pdf", pdfBytes, "en")
	assert.NoError(t, err)

	assert.NoError(t, m.Delete(ctx, first.Id))

	snap := m.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, second.Id, snap.Active.Id)
	assert.Len(t, snap.Conversations, 1)
}

func TestResetKeepsStoredConversations(t *testing.T) {
	provider := &genai.MockProvider{Axioms: []genai.Axiom{{Label: "A", Explanation: "a"}}}
	m, _ := newTestManager(t, provider)
	ctx := context.Background()

	conv, err := m.StartResearch(ctx, "thesis.pdf", pdfBytes, "en")
	assert.NoError(t, err)

	m.Reset(ctx)

	snap := m.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.Len(t, snap.Conversations, 1)

	// A reset session can reopen the stored conversation.
	selected, err := m.Select(ctx, conv.Id)
	assert.NoError(t, err)
	assert.Equal(t, conv.Id, selected.Id)
	assert.NotEmpty(t, selected.Manuscript.PreviewHandle)
}

func TestFirstExchangeHookFiresOnce(t *testing.T) {
	provider := &genai.MockProvider{
		Axioms:    []genai.Axiom{{Label: "A", Explanation: "a"}},
		Fragments: []string{"answer"},
	}
	m, _ := newTestManager(t, provider)
	ctx := context.Background()

	var mu sync.Mutex
	var calls []string
	m.SetFirstExchangeHook(func(_ uuid.UUID, firstMessage, locale string) {
		mu.Lock()
		calls = append(calls, firstMessage+"/"+locale)
		mu.Unlock()
	})

	_, err := m.StartResearch(ctx, "thesis.pdf", pdfBytes, "en")
	assert.NoError(t, err)

	_, err = m.Send(ctx, "opening question", "en", nil)
	assert.NoError(t, err)
	_, err = m.Send(ctx, "follow-up", "en", nil)
	assert.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"opening question/en"}, calls)
}

func TestRenameConversation(t *testing.T) {
	provider := &genai.MockProvider{Axioms: []genai.Axiom{{Label: "A", Explanation: "a"}}}
	m, gateway := newTestManager(t, provider)
	ctx := context.Background()

	conv, err := m.StartResearch(ctx, "thesis.pdf", pdfBytes, "en")
	assert.NoError(t, err)

	assert.NoError(t, m.RenameConversation(ctx, conv.Id, "Entropy And Its Discontents"))
	assert.Equal(t, "Entropy And Its Discontents", m.Snapshot().Active.Title)

	stored := gateway.Load(ctx)
	assert.Equal(t, "Entropy And Its Discontents", stored[0].Title)

	assert.ErrorIs(t, m.RenameConversation(ctx, uuid.New(), "x"), ErrConversationNotFound)
}

func TestBootstrapLoadsCollectionButStaysEmpty(t *testing.T) {
	provider := &genai.MockProvider{Axioms: []genai.Axiom{{Label: "A", Explanation: "a"}}}
	m, gateway := newTestManager(t, provider)
	ctx := context.Background()

	conv, err := m.StartResearch(ctx, "thesis.pdf", pdfBytes, "en")
	assert.NoError(t, err)

	fresh := NewManager(m.encoder, gateway, provider, m.accumulator, AttachEveryTurn, m.logger)
	fresh.Bootstrap(ctx)

	snap := fresh.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.Len(t, snap.Conversations, 1)
	assert.Equal(t, conv.Id, snap.Conversations[0].Id)
}
