package usage

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"chatstream/internal/domain"
)

var ErrUsageNotFound = errors.New("usage record not found")

type gormUsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &gormUsageRepository{db: db}
}

func (r *gormUsageRepository) FindByUserID(ctx context.Context, userID uint) (*domain.UsageRecord, error) {
	if userID == 0 {
		return nil, errors.New("invalid user ID")
	}

	var record domain.UsageRecord
	err := r.db.WithContext(ctx).First(&record, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUsageNotFound
		}
		log.Printf("[UsageRepository] Database error finding usage for user ID %d: %v", userID, err)
		return nil, errors.New("database error finding usage record")
	}
	return &record, nil
}

func (r *gormUsageRepository) Create(ctx context.Context, record *domain.UsageRecord) (*domain.UsageRecord, error) {
	if record.UserID == 0 {
		return nil, errors.New("invalid user ID")
	}
	if record.MessageCount < 0 {
		return nil, errors.New("message count cannot be negative")
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		log.Printf("[UsageRepository] Database error creating usage for user ID %d: %v", record.UserID, err)
		return nil, errors.New("database error creating usage record")
	}
	return record, nil
}

func (r *gormUsageRepository) ResetForDay(ctx context.Context, userID uint, day time.Time) error {
	if userID == 0 {
		return errors.New("invalid user ID")
	}

	result := r.db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"message_count": 0,
			"reset_date":    day.UTC(),
		})
	if result.Error != nil {
		log.Printf("[UsageRepository] Database error resetting usage for user ID %d: %v", userID, result.Error)
		return errors.New("database error resetting usage record")
	}
	if result.RowsAffected == 0 {
		return ErrUsageNotFound
	}
	return nil
}

// IncrementIfBelow is the admission point of the quota ledger. The guard in
// the WHERE clause makes check-and-increment one statement, so two
// concurrent requests from the same user cannot both take the last slot.
func (r *gormUsageRepository) IncrementIfBelow(ctx context.Context, userID uint, limit int) (int, bool, error) {
	if userID == 0 {
		return 0, false, errors.New("invalid user ID")
	}
	if limit <= 0 {
		return 0, false, errors.New("limit must be positive")
	}

	result := r.db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ? AND message_count < ?", userID, limit).
		Update("message_count", gorm.Expr("message_count + 1"))
	if result.Error != nil {
		log.Printf("[UsageRepository] Database error incrementing usage for user ID %d: %v", userID, result.Error)
		return 0, false, errors.New("database error incrementing usage record")
	}

	record, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	return record.MessageCount, result.RowsAffected > 0, nil
}
