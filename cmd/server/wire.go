package main

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"chatstream/internal/config"
	"chatstream/internal/domain"
	"chatstream/internal/handlers"
	"chatstream/internal/ratelimit"
	chatrepo "chatstream/internal/repository/chat"
	messagerepo "chatstream/internal/repository/message"
	usagerepo "chatstream/internal/repository/usage"
	"chatstream/internal/services"
	"chatstream/internal/services/ai"
	"chatstream/internal/services/chat"
	"chatstream/internal/services/quota"
)

// Application aggregates everything the server needs to run.
type Application struct {
	Config       *config.Config
	Logger       services.Logger
	DB           *gorm.DB
	ChatHandler  *handlers.ChatHandler
	PageHandler  *handlers.PageHandler
	BurstLimiter *ratelimit.MemoryLimiter
}

// newApplication builds the full dependency graph: database, repositories,
// services, handlers.
func newApplication(cfg *config.Config) (*Application, error) {
	logger := services.NewLogger("chatstream")

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&domain.Chat{}, &domain.Message{}, &domain.UsageRecord{}); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	chatRepository := chatrepo.NewChatRepository(db)
	messageRepository := messagerepo.NewMessageRepository(db)
	usageRepository := usagerepo.NewUsageRepository(db)

	quotaService, err := quota.NewService(
		&quota.Config{DailyMessageLimit: cfg.DailyMessageLimit},
		usageRepository,
		quota.SystemClock{},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("initializing quota service: %w", err)
	}

	aiConfig := ai.DefaultConfig()
	aiConfig.LLMKey = cfg.LLMAPIKey
	aiConfig.LLMBaseURL = cfg.LLMBaseURL
	aiConfig.Timeout = cfg.ProviderTimeout
	aiProvider, err := ai.NewOpenAIProvider(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("initializing AI provider: %w", err)
	}

	chatService := chat.NewService(chatRepository, messageRepository, logger)

	streamingConfig := chat.DefaultConfig()
	streamingConfig.StreamModel = cfg.LLMModel
	streamingConfig.HistoryWindow = cfg.HistoryWindow
	streamingConfig.StreamTimeout = cfg.ProviderTimeout
	streamingService, err := chat.NewStreamingService(streamingConfig, chatRepository, messageRepository, aiProvider, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing streaming service: %w", err)
	}

	return &Application{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		ChatHandler:  handlers.NewChatHandler(chatService, streamingService, quotaService, logger),
		PageHandler:  handlers.NewPageHandler(chatService, quotaService),
		BurstLimiter: ratelimit.NewMemoryLimiter(ratelimit.DefaultStreamConfig()),
	}, nil
}
