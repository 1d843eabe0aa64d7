package chat

import (
	"context"
	"errors"

	"chatstream/internal/domain"
	"chatstream/internal/repository/chat"
	"chatstream/internal/repository/message"
)

// Service implements the chat CRUD surface around the repositories.
type Service struct {
	chatRepo    chat.ChatRepository
	messageRepo message.MessageRepository
	logger      Logger
}

func NewService(chatRepo chat.ChatRepository, messageRepo message.MessageRepository, logger Logger) *Service {
	return &Service{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		logger:      logger,
	}
}

// CreateChat starts a new, untitled conversation. The title is derived
// later, from the first completed exchange.
func (s *Service) CreateChat(ctx context.Context, userID uint) (*domain.Chat, error) {
	created, err := s.chatRepo.Create(ctx, &domain.Chat{UserID: userID})
	if err != nil {
		return nil, NewStoreError("create_chat", "failed to create chat", err)
	}
	s.logger.Info("chat created", "chat_id", created.ID, "user_id", userID)
	return created, nil
}

// GetOrCreateActiveChat resolves the chat the main view should show: the
// most recently updated one, or a fresh chat when the user has none.
func (s *Service) GetOrCreateActiveChat(ctx context.Context, userID uint) (*domain.Chat, error) {
	existing, err := s.chatRepo.FindMostRecentByUserID(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, chat.ErrChatNotFound) {
		return nil, NewStoreError("active_chat", "failed to resolve active chat", err)
	}
	return s.CreateChat(ctx, userID)
}

func (s *Service) GetUserChats(ctx context.Context, userID uint) ([]domain.Chat, error) {
	chats, err := s.chatRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, NewStoreError("list_chats", "failed to list chats", err)
	}
	return chats, nil
}

// GetChatMessages returns a chat's history in canonical order after
// verifying ownership.
func (s *Service) GetChatMessages(ctx context.Context, userID, chatID uint) ([]domain.Message, error) {
	owned, err := s.chatRepo.VerifyOwnership(ctx, chatID, userID)
	if err != nil {
		return nil, NewStoreError("ownership", "failed to verify chat ownership", err)
	}
	if !owned {
		return nil, NewNotFoundError(userID, chatID)
	}

	messages, err := s.messageRepo.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, NewStoreError("list_messages", "failed to list messages", err)
	}
	return messages, nil
}

// DeleteChat removes a chat and all of its messages.
func (s *Service) DeleteChat(ctx context.Context, userID, chatID uint) error {
	if err := s.chatRepo.Delete(ctx, chatID, userID); err != nil {
		if errors.Is(err, chat.ErrUnauthorizedAccess) {
			return NewNotFoundError(userID, chatID)
		}
		return NewStoreError("delete_chat", "failed to delete chat", err)
	}
	s.logger.Info("chat deleted", "chat_id", chatID, "user_id", userID)
	return nil
}
