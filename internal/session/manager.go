package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OussamaSEBROU/the-senctuary/internal/constant"
	"github.com/OussamaSEBROU/the-senctuary/internal/document"
	"github.com/OussamaSEBROU/the-senctuary/internal/entity"
	"github.com/OussamaSEBROU/the-senctuary/internal/persistence"
	"github.com/OussamaSEBROU/the-senctuary/internal/pkg/logger"
	"github.com/OussamaSEBROU/the-senctuary/internal/stream"
	"github.com/OussamaSEBROU/the-senctuary/pkg/genai"

	"github.com/google/uuid"
)

var (
	// ErrBusy rejects a second upload or send while one is in flight.
	// Rejected calls leave the session untouched; nothing is queued.
	ErrBusy = errors.New("session: an operation is already in flight")

	ErrNoActiveConversation = errors.New("session: no active conversation")
	ErrConversationNotFound = errors.New("session: conversation not found")
)

const (
	StateEmpty = "EMPTY"
	StateReady = "READY"

	StatusReady      = "Ready"
	StatusProcessing = "Processing"
	StatusError      = "Error"

	AttachEveryTurn = "every-turn"
	AttachFirstTurn = "first-turn"
)

// FirstExchangeHook fires after the first completed exchange of a
// conversation, carrying what the title summarizer needs.
type FirstExchangeHook func(conversationID uuid.UUID, firstMessage, locale string)

// Snapshot is a read-only copy of the live session for transports.
type Snapshot struct {
	State         string
	Status        string
	Busy          bool
	Active        *entity.Conversation
	Conversations []*entity.Conversation
}

// Manager is the sole owner of the active conversation, the stored
// collection, and the busy gate. All mutation funnels through its named
// operations; transports never write session state directly.
type Manager struct {
	mu            sync.Mutex
	conversations []*entity.Conversation
	activeID      uuid.UUID // uuid.Nil = Empty
	busy          bool
	status        string

	// Identity of the in-flight send. Cancellation bumps the sequence so
	// late fragments and the final commit of an abandoned stream are
	// ignored instead of mutating a conversation that moved on.
	streamSeq    uint64
	streamConvID uuid.UUID
	cancelStream context.CancelFunc

	encoder      *document.Encoder
	gateway      *persistence.Gateway
	provider     genai.Provider
	accumulator  *stream.Accumulator
	logger       logger.ILogger
	attachPolicy string

	onFirstExchange FirstExchangeHook
}

func NewManager(
	encoder *document.Encoder,
	gateway *persistence.Gateway,
	provider genai.Provider,
	accumulator *stream.Accumulator,
	attachPolicy string,
	log logger.ILogger,
) *Manager {
	if attachPolicy != AttachFirstTurn {
		attachPolicy = AttachEveryTurn
	}
	return &Manager{
		conversations: []*entity.Conversation{},
		status:        StatusReady,
		encoder:       encoder,
		gateway:       gateway,
		provider:      provider,
		accumulator:   accumulator,
		attachPolicy:  attachPolicy,
		logger:        log,
	}
}

// SetFirstExchangeHook wires the async title pipeline. Must be called
// before the first Send.
func (m *Manager) SetFirstExchangeHook(h FirstExchangeHook) {
	m.onFirstExchange = h
}

// Bootstrap loads the stored collection. The session itself always starts
// Empty; stored conversations become active only through Select.
func (m *Manager) Bootstrap(ctx context.Context) {
	conversations := m.gateway.Load(ctx)
	m.mu.Lock()
	m.conversations = conversations
	m.mu.Unlock()
	m.logger.Info("SessionManager", "Bootstrapped conversation collection", map[string]interface{}{
		"count": len(conversations),
	})
}

// StartResearch runs the upload flow: encode, extract axioms, create and
// persist a new conversation, make it active. On any failure the prior
// state is fully restored and nothing is persisted. A returned
// persistence error accompanies an otherwise committed conversation; the
// in-memory session is correct and usable either way.
func (m *Manager) StartResearch(ctx context.Context, displayName string, content []byte, locale string) (*entity.Conversation, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.busy = true
	m.status = StatusProcessing
	m.mu.Unlock()

	manuscript, err := m.encoder.Encode(displayName, content)
	if err != nil {
		m.settle(StatusError)
		return nil, err
	}

	axioms, err := m.provider.Extract(ctx, &genai.DocumentPayload{
		MimeType: constant.PDFMimeType,
		Data:     manuscript.EncodedBytes,
	}, locale)
	if err != nil {
		m.encoder.Release(manuscript.PreviewHandle)
		m.settle(StatusError)
		return nil, err
	}

	conv := &entity.Conversation{
		Id:             uuid.New(),
		Title:          defaultTitle(displayName, locale),
		Manuscript:     *manuscript,
		Axioms:         mapAxioms(axioms),
		Turns:          []entity.Turn{},
		LastActivityAt: time.Now(),
	}

	m.mu.Lock()
	m.releaseActiveLocked()
	m.conversations = append(m.conversations, conv)
	m.activeID = conv.Id
	m.busy = false
	m.status = StatusReady
	list, activeID := m.collectionLocked()
	result := conv.Clone()
	m.mu.Unlock()

	if err := m.gateway.Save(ctx, list, activeID); err != nil {
		m.logger.Error("SessionManager", "Failed to persist new conversation", map[string]interface{}{
			"conversation_id": conv.Id.String(),
			"error":           err.Error(),
		})
		return result, err
	}
	return result, nil
}

// Send appends a user turn plus an empty assistant placeholder, streams
// the response into the placeholder, and commits the frozen turn. While
// the stream runs, busy gates out concurrent sends; onUpdate observes the
// accumulated text after every fragment. A stream failure discards the
// uncommitted pair and leaves previously committed turns intact.
func (m *Manager) Send(ctx context.Context, text, locale string, onUpdate func(conversationID uuid.UUID, accumulated string)) (*entity.Turn, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	conv := m.findLocked(m.activeID)
	if conv == nil {
		m.mu.Unlock()
		return nil, ErrNoActiveConversation
	}

	m.busy = true
	m.status = StatusProcessing
	m.streamSeq++
	seq := m.streamSeq
	m.streamConvID = conv.Id
	convID := conv.Id

	history := make([]genai.Message, 0, len(conv.Turns))
	for _, t := range conv.Turns {
		role := "user"
		if t.Speaker == constant.TurnSpeakerAssistant {
			role = "model"
		}
		history = append(history, genai.Message{Role: role, Content: t.Text})
	}

	now := time.Now()
	conv.Turns = append(conv.Turns,
		entity.Turn{Speaker: constant.TurnSpeakerUser, Text: text, CreatedAt: now},
		entity.Turn{Speaker: constant.TurnSpeakerAssistant, Text: "", CreatedAt: now},
	)

	var doc *genai.DocumentPayload
	attach := m.attachPolicy == AttachEveryTurn || len(history) == 0
	if attach && conv.Manuscript.Resumable() {
		doc = &genai.DocumentPayload{
			MimeType: constant.PDFMimeType,
			Data:     conv.Manuscript.EncodedBytes,
		}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	m.cancelStream = cancel
	m.mu.Unlock()
	defer cancel()

	fragments, err := m.provider.ConverseStream(streamCtx, doc, history, text, locale)
	if err != nil {
		m.failSend(seq, convID)
		return nil, fmt.Errorf("%w: %v", stream.ErrStreamInterrupted, err)
	}

	final, err := m.accumulator.Consume(streamCtx, fragments, func(accumulated string) {
		m.applyStreamUpdate(seq, convID, accumulated)
		if onUpdate != nil {
			onUpdate(convID, accumulated)
		}
	})
	if err != nil {
		m.failSend(seq, convID)
		return nil, err
	}

	committed, first, ok := m.commitSend(seq, convID, final)
	if !ok {
		// Torn down while the last fragments were in flight; the
		// canceller already discarded the pair.
		return nil, context.Canceled
	}

	m.mu.Lock()
	list, activeID := m.collectionLocked()
	m.mu.Unlock()
	saveErr := m.gateway.Save(ctx, list, activeID)
	if saveErr != nil {
		m.logger.Error("SessionManager", "Failed to persist committed turn", map[string]interface{}{
			"conversation_id": convID.String(),
			"error":           saveErr.Error(),
		})
	}

	if first && m.onFirstExchange != nil {
		m.onFirstExchange(convID, text, locale)
	}

	return committed, saveErr
}

// Select makes a stored conversation active, abandoning any in-flight
// stream of the outgoing one and swapping preview handles.
func (m *Manager) Select(ctx context.Context, id uuid.UUID) (*entity.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv := m.findLocked(id)
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	if id == m.activeID {
		return conv.Clone(), nil
	}

	m.cancelInFlightLocked()
	m.releaseActiveLocked()

	handle, err := m.encoder.Materialize(&conv.Manuscript)
	if err != nil {
		// Preview is a convenience; the conversation still opens.
		m.logger.Warn("SessionManager", "Could not materialize preview", map[string]interface{}{
			"conversation_id": id.String(),
			"error":           err.Error(),
		})
		handle = ""
	}
	conv.Manuscript.PreviewHandle = handle
	m.activeID = id
	m.status = StatusReady

	return conv.Clone(), nil
}

// Delete removes a conversation from the collection and persists the
// shrunken collection. Deleting the active conversation empties the
// session.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	idx := -1
	for i, c := range m.conversations {
		if c.Id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return ErrConversationNotFound
	}

	if id == m.activeID {
		m.cancelInFlightLocked()
		m.releaseActiveLocked()
		m.activeID = uuid.Nil
	}
	m.conversations = append(m.conversations[:idx], m.conversations[idx+1:]...)
	list, activeID := m.collectionLocked()
	m.mu.Unlock()

	return m.gateway.Save(ctx, list, activeID)
}

// Reset returns to Empty without touching stored records ("New Research").
func (m *Manager) Reset(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelInFlightLocked()
	m.releaseActiveLocked()
	m.activeID = uuid.Nil
	m.status = StatusReady
}

// RenameConversation is used by the async title pipeline. The caller
// tolerates persistence failures; the in-memory title always sticks.
func (m *Manager) RenameConversation(ctx context.Context, id uuid.UUID, title string) error {
	m.mu.Lock()
	conv := m.findLocked(id)
	if conv == nil {
		m.mu.Unlock()
		return ErrConversationNotFound
	}
	conv.Title = title
	list, activeID := m.collectionLocked()
	m.mu.Unlock()

	return m.gateway.Save(ctx, list, activeID)
}

// Snapshot returns a deep copy of the live session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:         StateEmpty,
		Status:        m.status,
		Busy:          m.busy,
		Conversations: m.sortedClonesLocked(),
	}
	if active := m.findLocked(m.activeID); active != nil {
		snap.State = StateReady
		snap.Active = active.Clone()
	}
	return snap
}

// Conversations lists stored conversations, most recent activity first.
func (m *Manager) Conversations() []*entity.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedClonesLocked()
}

// --- internals (callers hold m.mu unless noted) ---

func (m *Manager) findLocked(id uuid.UUID) *entity.Conversation {
	if id == uuid.Nil {
		return nil
	}
	for _, c := range m.conversations {
		if c.Id == id {
			return c
		}
	}
	return nil
}

// collectionLocked deep-clones the collection for persistence. Save
// marshals outside the lock, so live records must never leak out of it;
// an in-flight exchange is uncommitted and is excluded from the clone.
func (m *Manager) collectionLocked() ([]*entity.Conversation, uuid.UUID) {
	list := make([]*entity.Conversation, len(m.conversations))
	for i, c := range m.conversations {
		cp := c.Clone()
		if m.busy && c.Id == m.streamConvID {
			cp.Turns = dropUncommittedPair(cp.Turns)
		}
		list[i] = cp
	}
	return list, m.activeID
}

func (m *Manager) sortedClonesLocked() []*entity.Conversation {
	out := make([]*entity.Conversation, len(m.conversations))
	for i, c := range m.conversations {
		out[i] = c.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out
}

// releaseActiveLocked frees the active conversation's preview handle.
func (m *Manager) releaseActiveLocked() {
	if active := m.findLocked(m.activeID); active != nil && active.Manuscript.PreviewHandle != "" {
		m.encoder.Release(active.Manuscript.PreviewHandle)
		active.Manuscript.PreviewHandle = ""
	}
}

// cancelInFlightLocked abandons the in-flight stream: stop pulling,
// discard the uncommitted turn pair, invalidate late updates.
func (m *Manager) cancelInFlightLocked() {
	if !m.busy {
		return
	}
	if m.cancelStream != nil {
		m.cancelStream()
		m.cancelStream = nil
	}
	if conv := m.findLocked(m.streamConvID); conv != nil {
		conv.Turns = dropUncommittedPair(conv.Turns)
	}
	m.streamSeq++
	m.busy = false
}

// applyStreamUpdate grows the in-flight placeholder. A stale sequence
// means the stream was abandoned and the update is dropped.
func (m *Manager) applyStreamUpdate(seq uint64, convID uuid.UUID, accumulated string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streamSeq != seq {
		return
	}
	conv := m.findLocked(convID)
	if conv == nil || len(conv.Turns) == 0 {
		return
	}
	last := &conv.Turns[len(conv.Turns)-1]
	if last.Speaker == constant.TurnSpeakerAssistant {
		last.Text = accumulated
	}
}

// failSend discards the uncommitted pair after a stream failure, unless a
// canceller already did.
func (m *Manager) failSend(seq uint64, convID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streamSeq != seq {
		return
	}
	if conv := m.findLocked(convID); conv != nil {
		conv.Turns = dropUncommittedPair(conv.Turns)
	}
	m.cancelStream = nil
	m.busy = false
	m.status = StatusError
}

// commitSend freezes the placeholder with the final text. Returns ok =
// false when the stream was abandoned before commit.
func (m *Manager) commitSend(seq uint64, convID uuid.UUID, final string) (*entity.Turn, bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streamSeq != seq {
		return nil, false, false
	}
	conv := m.findLocked(convID)
	if conv == nil || len(conv.Turns) == 0 {
		return nil, false, false
	}

	last := &conv.Turns[len(conv.Turns)-1]
	last.Text = final
	conv.LastActivityAt = time.Now()

	m.cancelStream = nil
	m.busy = false
	m.status = StatusReady

	committed := *last
	first := len(conv.Turns) == 2
	return &committed, first, true
}

func (m *Manager) settle(status string) {
	m.mu.Lock()
	m.busy = false
	m.status = status
	m.mu.Unlock()
}

// dropUncommittedPair trims the trailing user turn + assistant placeholder
// of a failed or abandoned exchange.
func dropUncommittedPair(turns []entity.Turn) []entity.Turn {
	if len(turns) >= 2 &&
		turns[len(turns)-1].Speaker == constant.TurnSpeakerAssistant &&
		turns[len(turns)-2].Speaker == constant.TurnSpeakerUser {
		return turns[:len(turns)-2]
	}
	return turns
}

func defaultTitle(displayName, locale string) string {
	if displayName != "" {
		return displayName
	}
	return constant.DefaultTitle(locale)
}

func mapAxioms(in []genai.Axiom) []entity.Axiom {
	out := make([]entity.Axiom, len(in))
	for i, a := range in {
		out[i] = entity.Axiom{Label: a.Label, Explanation: a.Explanation}
	}
	return out
}
