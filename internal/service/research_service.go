package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/OussamaSEBROU/the-senctuary/internal/dto"
	"github.com/OussamaSEBROU/the-senctuary/internal/mapper"
	"github.com/OussamaSEBROU/the-senctuary/internal/persistence"
	"github.com/OussamaSEBROU/the-senctuary/internal/pkg/logger"
	"github.com/OussamaSEBROU/the-senctuary/internal/repository/memory"
	"github.com/OussamaSEBROU/the-senctuary/internal/session"
	internalWS "github.com/OussamaSEBROU/the-senctuary/internal/websocket"
	"github.com/OussamaSEBROU/the-senctuary/pkg/events"
	pktNats "github.com/OussamaSEBROU/the-senctuary/pkg/nats"

	"github.com/google/uuid"
)

type IResearchService interface {
	StartResearch(ctx context.Context, fileName string, content []byte, locale string) (*dto.ConversationResponse, error)
	SendMessage(ctx context.Context, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	GetSession(ctx context.Context) *dto.SessionResponse
	ListConversations(ctx context.Context) []dto.ConversationSummaryResponse
	SelectConversation(ctx context.Context, id uuid.UUID) (*dto.ConversationResponse, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	Reset(ctx context.Context)
}

type researchService struct {
	manager          *session.Manager
	mapper           *mapper.ResearchMapper
	snapshots        *memory.SnapshotRepository
	publisherService IPublisherService
	hub              *internalWS.Hub
	eventPublisher   *pktNats.Publisher
	logger           logger.ILogger
}

func NewResearchService(
	manager *session.Manager,
	snapshots *memory.SnapshotRepository,
	publisherService IPublisherService,
	hub *internalWS.Hub,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IResearchService {
	s := &researchService{
		manager:          manager,
		mapper:           mapper.NewResearchMapper(),
		snapshots:        snapshots,
		publisherService: publisherService,
		hub:              hub,
		eventPublisher:   eventPublisher,
		logger:           log,
	}

	// First completed exchange kicks off async title summarization.
	manager.SetFirstExchangeHook(func(conversationID uuid.UUID, firstMessage, locale string) {
		payload := dto.PublishSummarizeTitleMessage{
			ConversationId: conversationID,
			FirstMessage:   firstMessage,
			Locale:         locale,
		}
		msgJson, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("ResearchService", "Failed to marshal title message", map[string]interface{}{"error": err.Error()})
			return
		}
		if err := s.publisherService.Publish(context.Background(), msgJson); err != nil {
			s.logger.Error("ResearchService", "Failed to publish title message", map[string]interface{}{"error": err.Error()})
		}
	})

	return s
}

func (s *researchService) StartResearch(ctx context.Context, fileName string, content []byte, locale string) (*dto.ConversationResponse, error) {
	conv, err := s.manager.StartResearch(ctx, fileName, content, locale)
	if err != nil && conv == nil {
		return nil, err
	}

	s.snapshots.Invalidate()

	res := s.mapper.ToConversationResponse(conv)
	s.hub.Broadcast("research_started", res)

	if s.eventPublisher != nil {
		evt := events.NewResearchStartedEvent(conv.Id.String(), conv.Title, len(conv.Axioms))
		if pubErr := s.eventPublisher.Publish(ctx, evt); pubErr != nil {
			s.logger.Warn("ResearchService", "Failed to publish NATS event", map[string]interface{}{"error": pubErr.Error()})
		}
	}

	// A quota failure after the conversation committed in memory degrades
	// to a warning: the session is usable, only durability suffered.
	if errors.Is(err, persistence.ErrStorageQuotaExceeded) {
		s.hub.Broadcast("storage_warning", map[string]interface{}{
			"conversation_id": conv.Id.String(),
		})
		return res, nil
	}

	return res, err
}

func (s *researchService) SendMessage(ctx context.Context, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	turn, err := s.manager.Send(ctx, req.Message, req.Locale, func(conversationID uuid.UUID, accumulated string) {
		s.hub.Broadcast("stream_fragment", map[string]interface{}{
			"conversation_id": conversationID.String(),
			"text":            accumulated,
		})
	})
	if err != nil && !errors.Is(err, persistence.ErrStorageQuotaExceeded) {
		s.snapshots.Invalidate()
		return nil, err
	}

	s.snapshots.Invalidate()

	snap := s.manager.Snapshot()
	convID := uuid.Nil
	turnCount := 0
	if snap.Active != nil {
		convID = snap.Active.Id
		turnCount = len(snap.Active.Turns)
	}

	res := &dto.SendMessageResponse{
		ConversationId: convID,
		Turn:           dto.TurnResponse{Speaker: turn.Speaker, Text: turn.Text, CreatedAt: turn.CreatedAt},
	}
	s.hub.Broadcast("turn_committed", res)

	if s.eventPublisher != nil {
		evt := events.NewTurnCommittedEvent(convID.String(), turnCount)
		if pubErr := s.eventPublisher.Publish(ctx, evt); pubErr != nil {
			s.logger.Warn("ResearchService", "Failed to publish NATS event", map[string]interface{}{"error": pubErr.Error()})
		}
	}

	if errors.Is(err, persistence.ErrStorageQuotaExceeded) {
		s.hub.Broadcast("storage_warning", map[string]interface{}{
			"conversation_id": convID.String(),
		})
	}

	return res, nil
}

func (s *researchService) GetSession(ctx context.Context) *dto.SessionResponse {
	snap, found := s.snapshots.Get()
	if !found {
		snap = s.manager.Snapshot()
		s.snapshots.Save(snap)
	}
	return s.mapper.ToSessionResponse(snap)
}

func (s *researchService) ListConversations(ctx context.Context) []dto.ConversationSummaryResponse {
	conversations := s.manager.Conversations()
	out := make([]dto.ConversationSummaryResponse, len(conversations))
	for i, c := range conversations {
		out[i] = s.mapper.ToSummaryResponse(c)
	}
	return out
}

func (s *researchService) SelectConversation(ctx context.Context, id uuid.UUID) (*dto.ConversationResponse, error) {
	conv, err := s.manager.Select(ctx, id)
	if err != nil {
		return nil, err
	}

	s.snapshots.Invalidate()
	res := s.mapper.ToConversationResponse(conv)
	s.hub.Broadcast("conversation_selected", res)
	return res, nil
}

func (s *researchService) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	err := s.manager.Delete(ctx, id)
	if err != nil && !errors.Is(err, persistence.ErrStorageQuotaExceeded) {
		return err
	}

	s.snapshots.Invalidate()
	s.hub.Broadcast("conversation_deleted", map[string]interface{}{"id": id.String()})

	if s.eventPublisher != nil {
		evt := events.NewConversationDeletedEvent(id.String())
		if pubErr := s.eventPublisher.Publish(ctx, evt); pubErr != nil {
			s.logger.Warn("ResearchService", "Failed to publish NATS event", map[string]interface{}{"error": pubErr.Error()})
		}
	}
	return err
}

func (s *researchService) Reset(ctx context.Context) {
	s.manager.Reset(ctx)
	s.snapshots.Invalidate()
	s.hub.Broadcast("session_reset", nil)
}
