package usage

import (
	"context"
	"time"

	"chatstream/internal/domain"
)

type UsageRepository interface {
	FindByUserID(ctx context.Context, userID uint) (*domain.UsageRecord, error)
	Create(ctx context.Context, record *domain.UsageRecord) (*domain.UsageRecord, error)
	// ResetForDay zeroes the counter and stamps it with the given day.
	ResetForDay(ctx context.Context, userID uint, day time.Time) error
	// IncrementIfBelow bumps the counter by one only while it is below the
	// limit, in a single conditional UPDATE. It returns the count after the
	// attempt and whether the increment was applied.
	IncrementIfBelow(ctx context.Context, userID uint, limit int) (int, bool, error)
}
