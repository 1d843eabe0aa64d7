package domain

import "time"

// UsageRecord tracks one user's daily message counter. A record is created
// on first use, reset in place on day rollover, and never deleted.
type UsageRecord struct {
	UserID       uint      `json:"user_id" gorm:"primarykey"`
	MessageCount int       `json:"message_count" gorm:"not null;default:0"`
	ResetDate    time.Time `json:"reset_date" gorm:"not null"` // UTC calendar day the count belongs to
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SameUTCDay reports whether the record's reset date falls on the same UTC
// calendar day as now. A mismatch means the stored count belongs to a
// previous day and must be treated as zero.
func (u *UsageRecord) SameUTCDay(now time.Time) bool {
	a := u.ResetDate.UTC()
	b := now.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
