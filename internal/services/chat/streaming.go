package chat

import (
	"context"
	"strings"

	"chatstream/internal/domain"
	"chatstream/internal/repository/chat"
	"chatstream/internal/repository/message"
)

// StreamingService orchestrates one streamed exchange: ownership check,
// user-message persistence, context assembly, provider stream, and
// completion persistence.
type StreamingService struct {
	config      *Config
	chatRepo    chat.ChatRepository
	messageRepo message.MessageRepository
	aiService   AIProvider
	logger      Logger
}

func NewStreamingService(
	config *Config,
	chatRepo chat.ChatRepository,
	messageRepo message.MessageRepository,
	aiService AIProvider,
	logger Logger,
) (*StreamingService, error) {
	if err := config.Validate(); err != nil {
		return nil, &ChatError{Type: ErrTypeConfig, Operation: "new", Message: err.Error()}
	}
	return &StreamingService{
		config:      config,
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		aiService:   aiService,
		logger:      logger,
	}, nil
}

// StreamExchange runs the side effects of one exchange in strict order:
//
//  1. verify the chat belongs to the user,
//  2. persist the user message (durable even if the provider then fails),
//  3. load the recent history window and map it to provider context,
//  4. stream the completion, forwarding every delta to onDelta,
//  5. after the provider signals completion, persist the accumulated
//     assistant text exactly once and set the chat title if unset.
//
// The caller's ctx governs the whole exchange; the provider call
// additionally carries its own timeout. A failure after step 2 leaves the
// user message in place: the user's turn is persisted at least once, never
// rolled back.
func (s *StreamingService) StreamExchange(
	ctx context.Context,
	userID, chatID uint,
	messageText string,
	onDelta func(string) error,
) error {
	if strings.TrimSpace(messageText) == "" {
		return NewValidationError("stream_exchange", "message is required")
	}

	s.logger.Info("starting stream exchange", "user_id", userID, "chat_id", chatID)

	owned, err := s.chatRepo.VerifyOwnership(ctx, chatID, userID)
	if err != nil {
		return NewStoreError("ownership", "failed to verify chat ownership", err)
	}
	if !owned {
		return NewNotFoundError(userID, chatID)
	}

	if err := s.saveUserMessage(ctx, chatID, messageText); err != nil {
		return NewStoreError("save_user_message", "failed to persist user message", err)
	}

	history, err := s.messageRepo.FindRecentWindow(ctx, chatID, s.config.HistoryWindow)
	if err != nil {
		return NewStoreError("load_history", "failed to load conversation history", err)
	}

	var fullReply strings.Builder
	llmCtx, llmCancel := context.WithTimeout(ctx, s.config.StreamTimeout)
	defer llmCancel()
	streamErr := s.aiService.StreamCompletion(llmCtx, s.config.StreamModel, buildContext(history), func(delta string) error {
		fullReply.WriteString(delta)
		return onDelta(delta)
	})
	if streamErr != nil {
		s.logger.Error("stream completion failed", "error", streamErr, "chat_id", chatID)
		return NewStreamError("streaming", "AI streaming failed", streamErr)
	}

	if err := s.completeExchange(chatID, messageText, fullReply.String()); err != nil {
		return err
	}

	s.logger.Info("stream exchange completed", "chat_id", chatID, "response_length", fullReply.Len())
	return nil
}

// saveUserMessage persists the user's turn and bumps the chat's timestamp.
func (s *StreamingService) saveUserMessage(ctx context.Context, chatID uint, content string) error {
	userMessage := &domain.Message{
		ChatID:  chatID,
		Role:    domain.RoleUser,
		Content: content,
	}
	if _, err := s.messageRepo.Create(ctx, userMessage); err != nil {
		return err
	}
	_ = s.chatRepo.TouchUpdatedAt(ctx, chatID)
	return nil
}

// completeExchange persists the assistant turn and derives the title from
// the first user message when none is set. It runs on its own context so a
// client that has gone away cannot interrupt completion persistence.
func (s *StreamingService) completeExchange(chatID uint, userMessage, reply string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.DBSaveTimeout)
	defer cancel()

	if len(reply) > 0 {
		aiMessage := &domain.Message{
			ChatID:  chatID,
			Role:    domain.RoleAssistant,
			Content: reply,
		}
		if _, err := s.messageRepo.Create(ctx, aiMessage); err != nil {
			s.logger.Error("failed to save assistant message", "error", err, "chat_id", chatID)
			return NewStoreError("save_assistant_message", "failed to persist assistant message", err)
		}
	}

	if err := s.chatRepo.SetTitleIfEmpty(ctx, chatID, domain.DeriveTitle(userMessage)); err != nil {
		s.logger.Warn("failed to set chat title", "error", err, "chat_id", chatID)
	}
	_ = s.chatRepo.TouchUpdatedAt(ctx, chatID)
	return nil
}
