package bootstrap

import (
	"context"
	"log"

	"campus-market-be/internal/config"
	"campus-market-be/internal/controller"
	"campus-market-be/internal/handler"
	"campus-market-be/internal/pkg/logger"
	"campus-market-be/internal/repository/implementation"
	"campus-market-be/internal/service"
	"campus-market-be/internal/websocket"
	pktNats "campus-market-be/pkg/nats"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Container struct {
	ChatController controller.IChatController

	// WebSockets
	StreamHandler *handler.StreamHandler
	WebSocketHub  *websocket.Hub

	// Held for shutdown.
	NatsPublisher *pktNats.Publisher
	Logger        logger.ILogger
}

func NewContainer(db *mongo.Database, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Repositories
	sessionRepo := implementation.NewChatSessionRepository(db)
	messageRepo := implementation.NewChatMessageRepository(db)
	profileRepo := implementation.NewUserProfileRepository(db)

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

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// Services
	profileService := service.NewProfileService(profileRepo)

	var publisher service.IEventPublisher
	if natsPub != nil {
		publisher = natsPub
	}
	chatService := service.NewChatService(
		sessionRepo,
		messageRepo,
		profileService,
		publisher,
		wsHub,
		sysLogger,
		cfg.Chat,
	)
	conversationService := service.NewConversationService(sessionRepo, profileService, sysLogger, cfg.Chat)

	streamHandler := handler.NewStreamHandler(chatService, conversationService, wsHub, wsLogger)

	return &Container{
		ChatController: controller.NewChatController(chatService, conversationService),
		StreamHandler:  streamHandler,
		WebSocketHub:   wsHub,
		NatsPublisher:  natsPub,
		Logger:         sysLogger,
	}
}
