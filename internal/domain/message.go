package domain

import (
	"errors"
	"time"
)

// Message roles. No other role is ever persisted or sent to the provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn within a chat. Messages are immutable
// once written; creation-timestamp ascending is the canonical order.
type Message struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	ChatID    uint      `json:"chat_id" gorm:"not null;index"`
	Role      string    `json:"role" gorm:"not null"`
	Content   string    `json:"content" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// IsValid checks the invariants a message must satisfy before it is written.
func (m *Message) IsValid() error {
	if m.ChatID == 0 {
		return errors.New("message must belong to a chat")
	}
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return errors.New("message role must be user or assistant")
	}
	if m.Content == "" {
		return errors.New("message content is required")
	}
	return nil
}
