package chat

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"chatstream/internal/domain"
)

var ErrChatNotFound = errors.New("chat not found")
var ErrUnauthorizedAccess = errors.New("unauthorized access to chat")

type gormChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &gormChatRepository{db: db}
}

func (r *gormChatRepository) Create(ctx context.Context, chat *domain.Chat) (*domain.Chat, error) {
	if chat.UserID == 0 {
		return nil, errors.New("chat must have an owner")
	}

	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		log.Printf("[ChatRepository] Database error during chat creation for user ID %d: %v", chat.UserID, err)
		return nil, errors.New("database error creating chat")
	}
	return chat, nil
}

func (r *gormChatRepository) FindByID(ctx context.Context, id uint) (*domain.Chat, error) {
	if id == 0 {
		return nil, errors.New("invalid chat ID")
	}

	var chat domain.Chat
	err := r.db.WithContext(ctx).First(&chat, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		log.Printf("[ChatRepository] Database error finding chat ID %d: %v", id, err)
		return nil, errors.New("database error finding chat")
	}
	return &chat, nil
}

// FindByUserID returns the user's chats in sidebar order, most recently
// updated first.
func (r *gormChatRepository) FindByUserID(ctx context.Context, userID uint) ([]domain.Chat, error) {
	if userID == 0 {
		return nil, errors.New("invalid user ID")
	}

	var chats []domain.Chat
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Find(&chats).Error
	if err != nil {
		log.Printf("[ChatRepository] Database error finding chats for user ID %d: %v", userID, err)
		return nil, errors.New("database error fetching chats")
	}
	return chats, nil
}

// FindMostRecentByUserID returns the most recently updated chat for a user,
// or ErrChatNotFound when the user has none yet.
func (r *gormChatRepository) FindMostRecentByUserID(ctx context.Context, userID uint) (*domain.Chat, error) {
	if userID == 0 {
		return nil, errors.New("invalid user ID")
	}

	var chat domain.Chat
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		log.Printf("[ChatRepository] Database error finding recent chat for user ID %d: %v", userID, err)
		return nil, errors.New("database error finding recent chat")
	}
	return &chat, nil
}

// VerifyOwnership checks that a chat exists and belongs to the user without
// exposing any of its data.
func (r *gormChatRepository) VerifyOwnership(ctx context.Context, chatID, userID uint) (bool, error) {
	if chatID == 0 || userID == 0 {
		return false, errors.New("invalid chat ID or user ID")
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Chat{}).
		Where("id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		log.Printf("[ChatRepository] Database error checking chat ownership for chat ID %d, user ID %d: %v", chatID, userID, err)
		return false, errors.New("database error checking chat ownership")
	}
	return count > 0, nil
}

// Delete removes a chat and all of its messages in one transaction. The
// user id scoping means deleting someone else's chat reports
// ErrUnauthorizedAccess rather than touching anything.
func (r *gormChatRepository) Delete(ctx context.Context, chatID uint, userID uint) error {
	if chatID == 0 || userID == 0 {
		return errors.New("invalid chat ID or user ID")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", chatID, userID).Delete(&domain.Chat{})
		if result.Error != nil {
			log.Printf("[ChatRepository] Database error deleting chat ID %d for user ID %d: %v", chatID, userID, result.Error)
			return errors.New("database error deleting chat")
		}
		if result.RowsAffected == 0 {
			return ErrUnauthorizedAccess
		}

		if err := tx.Where("chat_id = ?", chatID).Delete(&domain.Message{}).Error; err != nil {
			log.Printf("[ChatRepository] Database error cascading message delete for chat ID %d: %v", chatID, err)
			return errors.New("database error deleting chat messages")
		}
		return nil
	})
}

func (r *gormChatRepository) TouchUpdatedAt(ctx context.Context, chatID uint) error {
	if chatID == 0 {
		return errors.New("invalid chat ID")
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", chatID).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP"))
	if result.Error != nil {
		log.Printf("[ChatRepository] Database error updating timestamp for chat ID %d: %v", chatID, result.Error)
		return errors.New("database error updating chat timestamp")
	}
	if result.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}

// SetTitleIfEmpty writes the title only when none is set yet. The guard in
// the WHERE clause keeps the title-at-most-once invariant even when two
// exchanges race on a fresh chat.
func (r *gormChatRepository) SetTitleIfEmpty(ctx context.Context, chatID uint, title string) error {
	if chatID == 0 {
		return errors.New("invalid chat ID")
	}
	if title == "" {
		return errors.New("title is required")
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ? AND (title IS NULL OR title = '')", chatID).
		Updates(map[string]interface{}{
			"title":      title,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		log.Printf("[ChatRepository] Database error setting title for chat ID %d: %v", chatID, result.Error)
		return errors.New("database error setting chat title")
	}
	// RowsAffected == 0 just means the title was already set.
	return nil
}
