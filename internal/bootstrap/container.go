package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/OussamaSEBROU/the-senctuary/internal/config"
	"github.com/OussamaSEBROU/the-senctuary/internal/controller"
	"github.com/OussamaSEBROU/the-senctuary/internal/document"
	"github.com/OussamaSEBROU/the-senctuary/internal/handler"
	"github.com/OussamaSEBROU/the-senctuary/internal/persistence"
	"github.com/OussamaSEBROU/the-senctuary/internal/pkg/logger"
	"github.com/OussamaSEBROU/the-senctuary/internal/repository/memory"
	"github.com/OussamaSEBROU/the-senctuary/internal/service"
	"github.com/OussamaSEBROU/the-senctuary/internal/session"
	"github.com/OussamaSEBROU/the-senctuary/internal/stream"
	"github.com/OussamaSEBROU/the-senctuary/internal/websocket"
	"github.com/OussamaSEBROU/the-senctuary/pkg/genai/factory"
	"github.com/OussamaSEBROU/the-senctuary/pkg/kv"

	pktNats "github.com/OussamaSEBROU/the-senctuary/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	ResearchController controller.IResearchController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets & Live Stream
	StreamHandler *handler.StreamHandler
	WebSocketHub  *websocket.Hub
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. GenAI Provider based on Config
	provider, err := factory.NewProvider(
		cfg.Ai.Provider,
		cfg.Ai.Model,
		cfg.Keys.GoogleGemini,
		cfg.Keys.OpenAI,
		cfg.Ai.OpenAIBaseURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize GenAI Provider: %v", err)
	}
	log.Printf("[INFO] Using GenAI Provider: %s (%s)", cfg.Ai.Provider, cfg.Ai.Model)

	// 3.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// Conversation store backend
	var store kv.Store
	if cfg.Storage.Backend == "file" {
		fileStore, err := kv.NewFileStore(cfg.Storage.FileDir, cfg.Storage.QuotaBytes)
		if err != nil {
			log.Fatalf("[FATAL] Failed to initialize file store: %v", err)
		}
		store = fileStore
		log.Printf("[INFO] Using Storage Backend: FILE (%s)", cfg.Storage.FileDir)
	} else {
		store = kv.NewRedisStore(rdb)
		log.Printf("[INFO] Using Storage Backend: REDIS")
	}
	gateway := persistence.NewGateway(store, cfg.Storage.Key, cfg.Storage.SoftLimitBytes, sysLogger)

	encoder, err := document.NewEncoder(cfg.App.UploadsDir, cfg.Ai.MaxUploadBytes, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize document encoder: %v", err)
	}

	accumulator := stream.NewAccumulator(time.Duration(cfg.Ai.StreamIdleSecs) * time.Second)

	// 4. Session Core
	manager := session.NewManager(encoder, gateway, provider, accumulator, cfg.Ai.AttachPolicy, sysLogger)
	manager.Bootstrap(context.Background())

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// In-memory snapshot cache
	snapshots := memory.NewSnapshotRepository()

	// 5. Services
	publisherService := service.NewPublisherService(cfg.Keys.TitleTopic, pubSub)
	researchService := service.NewResearchService(
		manager,
		snapshots,
		publisherService,
		wsHub,
		natsPub,
		sysLogger,
	)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.TitleTopic,
		manager,
		provider,
		snapshots,
		wsHub,
		natsPub,
	)

	// Handler
	streamHandler := handler.NewStreamHandler(wsHub, wsLogger)

	// 6. Controllers
	return &Container{
		ResearchController: controller.NewResearchController(researchService),
		ConsumerService:    consumerService,
		StreamHandler:      streamHandler,
		WebSocketHub:       wsHub,
	}
}
