package chat

import (
	"context"

	"chatstream/internal/domain"
)

// ChatRepository handles chat data operations. Every query is scoped by the
// owning user id; callers never bypass that scoping.
type ChatRepository interface {
	Create(ctx context.Context, chat *domain.Chat) (*domain.Chat, error)
	FindByID(ctx context.Context, id uint) (*domain.Chat, error)
	FindByUserID(ctx context.Context, userID uint) ([]domain.Chat, error)
	FindMostRecentByUserID(ctx context.Context, userID uint) (*domain.Chat, error)
	VerifyOwnership(ctx context.Context, chatID, userID uint) (bool, error)
	Delete(ctx context.Context, chatID uint, userID uint) error
	TouchUpdatedAt(ctx context.Context, chatID uint) error
	SetTitleIfEmpty(ctx context.Context, chatID uint, title string) error
}
