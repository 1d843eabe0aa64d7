package domain

import "time"

// TitleMaxLen is the length a chat title is truncated to when it is derived
// from the first user message.
const TitleMaxLen = 50

// Chat represents a single conversation thread owned by one user.
type Chat struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Title     string    `json:"title"` // set once, from the first user message
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeriveTitle builds a chat title from the first user message, truncating to
// TitleMaxLen characters plus an ellipsis when the message is longer.
func DeriveTitle(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) > TitleMaxLen {
		return string(runes[:TitleMaxLen]) + "..."
	}
	return firstMessage
}
