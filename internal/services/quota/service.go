package quota

import (
	"context"
	"errors"
	"time"

	"chatstream/internal/domain"
	"chatstream/internal/repository/usage"
)

// Clock abstracts "today" so tests can simulate day rollover.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Logger defines the logging interface used by the quota service.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
}

// Service is the quota ledger: a per-user daily message counter with an
// admit/reject policy.
type Service struct {
	config    *Config
	usageRepo usage.UsageRepository
	clock     Clock
	logger    Logger
}

func NewService(config *Config, usageRepo usage.UsageRepository, clock Clock, logger Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, &QuotaError{Type: ErrTypeConfig, Operation: "new", Message: err.Error()}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{
		config:    config,
		usageRepo: usageRepo,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Limit returns the configured daily limit.
func (s *Service) Limit() int { return s.config.DailyMessageLimit }

// Admit implements check-and-consume. It fetches (or creates) the user's
// usage record, resets the counter when the stored day is not today (UTC),
// and then attempts a conditional increment. A rejected request mutates
// nothing beyond the day-rollover reset.
//
// The reset and the increment are separate statements, so two requests
// racing across midnight may both observe the rollover; the increment
// itself is a single guarded UPDATE and cannot push the count past the
// limit.
func (s *Service) Admit(ctx context.Context, userID uint) (Decision, error) {
	now := s.clock.Now().UTC()
	limit := s.config.DailyMessageLimit

	record, err := s.usageRepo.FindByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, usage.ErrUsageNotFound) {
			return Decision{}, NewStoreError("admit", "failed to load usage record", userID, err)
		}
		record, err = s.usageRepo.Create(ctx, &domain.UsageRecord{
			UserID:       userID,
			MessageCount: 0,
			ResetDate:    now,
		})
		if err != nil {
			// Two first-ever requests can race here; the loser's insert
			// conflicts with the winner's row. Re-read and carry on.
			record, err = s.usageRepo.FindByUserID(ctx, userID)
			if err != nil {
				return Decision{}, NewStoreError("admit", "failed to create usage record", userID, err)
			}
		}
	}

	if !record.SameUTCDay(now) {
		s.logger.Info("quota day rollover", "user_id", userID, "previous_count", record.MessageCount)
		if err := s.usageRepo.ResetForDay(ctx, userID, now); err != nil {
			return Decision{}, NewStoreError("admit", "failed to reset usage record", userID, err)
		}
	}

	count, applied, err := s.usageRepo.IncrementIfBelow(ctx, userID, limit)
	if err != nil {
		return Decision{}, NewStoreError("admit", "failed to increment usage record", userID, err)
	}
	if !applied {
		s.logger.Warn("quota exceeded", "user_id", userID, "limit", limit)
		return Decision{Allowed: false, Remaining: 0, Limit: limit}, nil
	}

	s.logger.Debug("quota admitted", "user_id", userID, "count", count, "limit", limit)
	return Decision{Allowed: true, Remaining: limit - count, Limit: limit}, nil
}

// Remaining reports how many messages the user has left today without
// consuming one.
func (s *Service) Remaining(ctx context.Context, userID uint) (int, error) {
	now := s.clock.Now().UTC()
	limit := s.config.DailyMessageLimit

	record, err := s.usageRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, usage.ErrUsageNotFound) {
			return limit, nil
		}
		return 0, NewStoreError("remaining", "failed to load usage record", userID, err)
	}
	if !record.SameUTCDay(now) {
		return limit, nil
	}
	remaining := limit - record.MessageCount
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
