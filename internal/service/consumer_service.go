package service

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/OussamaSEBROU/the-senctuary/internal/constant"
	"github.com/OussamaSEBROU/the-senctuary/internal/dto"
	"github.com/OussamaSEBROU/the-senctuary/internal/repository/memory"
	"github.com/OussamaSEBROU/the-senctuary/internal/session"
	internalWS "github.com/OussamaSEBROU/the-senctuary/internal/websocket"
	"github.com/OussamaSEBROU/the-senctuary/pkg/events"
	"github.com/OussamaSEBROU/the-senctuary/pkg/genai"
	pktNats "github.com/OussamaSEBROU/the-senctuary/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService runs the async title pipeline: first exchange of a
// conversation comes in on the bus, the summarizer condenses it, the
// conversation is renamed and every connected client hears about it.
type consumerService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	manager        *session.Manager
	provider       genai.TitleSummarizer
	snapshots      *memory.SnapshotRepository
	hub            *internalWS.Hub
	eventPublisher *pktNats.Publisher
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	manager *session.Manager,
	provider genai.TitleSummarizer,
	snapshots *memory.SnapshotRepository,
	hub *internalWS.Hub,
	eventPublisher *pktNats.Publisher,
) IConsumerService {
	return &consumerService{
		pubSub:         pubSub,
		topicName:      topicName,
		manager:        manager,
		provider:       provider,
		snapshots:      snapshots,
		hub:            hub,
		eventPublisher: eventPublisher,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishSummarizeTitleMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Summarizing title for ConversationId: %s", payload.ConversationId)

	title, err := cs.provider.Summarize(ctx, payload.FirstMessage, payload.Locale)
	if err != nil || strings.TrimSpace(title) == "" {
		// The default title is acceptable; a failed summary is not worth
		// retrying against the provider.
		log.Printf("[WARN] Title summarization failed for %s, keeping default: %v", payload.ConversationId, err)
		msg.Ack()
		return
	}

	// Enforce the word cap even when the provider rambles.
	words := strings.Fields(title)
	if len(words) > constant.TitleWordLimit {
		title = strings.Join(words[:constant.TitleWordLimit], " ")
	}

	if err := cs.manager.RenameConversation(ctx, payload.ConversationId, title); err != nil {
		if err == session.ErrConversationNotFound {
			log.Printf("[WARN] Conversation %s gone before rename, dropping", payload.ConversationId)
			msg.Ack()
			return
		}
		// Persistence failed; the in-memory title stuck, which is enough.
		log.Printf("[WARN] Failed to persist title for %s: %v", payload.ConversationId, err)
	}

	cs.snapshots.Invalidate()
	cs.hub.Broadcast("title_updated", map[string]interface{}{
		"conversation_id": payload.ConversationId.String(),
		"title":           title,
	})

	if cs.eventPublisher != nil {
		evt := events.NewTitleUpdatedEvent(payload.ConversationId.String(), title)
		if pubErr := cs.eventPublisher.Publish(ctx, evt); pubErr != nil {
			log.Printf("[WARN] Failed to publish NATS event: %v", pubErr)
		}
	}

	log.Printf("[SUCCESS] Conversation %s renamed to %q", payload.ConversationId, title)
	msg.Ack()
}
