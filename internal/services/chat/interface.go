package chat

import (
	"context"

	"chatstream/internal/domain"
	"chatstream/internal/services/ai"
)

// AIProvider is the slice of the AI service the chat package needs.
type AIProvider interface {
	StreamCompletion(ctx context.Context, model string, messages []ai.ChatMessage, onDelta func(string) error) error
}

// ChatProvider handles basic chat operations
type ChatProvider interface {
	CreateChat(ctx context.Context, userID uint) (*domain.Chat, error)
	GetOrCreateActiveChat(ctx context.Context, userID uint) (*domain.Chat, error)
	GetUserChats(ctx context.Context, userID uint) ([]domain.Chat, error)
	GetChatMessages(ctx context.Context, userID, chatID uint) ([]domain.Message, error)
	DeleteChat(ctx context.Context, userID, chatID uint) error
}

// StreamProvider handles one streamed exchange
type StreamProvider interface {
	StreamExchange(ctx context.Context, userID, chatID uint, message string, onDelta func(string) error) error
}
