package usage

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chatstream/internal/domain"
)

func newTestRepo(t *testing.T) UsageRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.UsageRecord{}))
	return NewUsageRepository(db)
}

func TestFindByUserIDNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.FindByUserID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUsageNotFound)
}

func TestCreateAndFind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := repo.Create(ctx, &domain.UsageRecord{UserID: 1, MessageCount: 0, ResetDate: day})
	require.NoError(t, err)

	found, err := repo.FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, found.MessageCount)
	assert.True(t, found.SameUTCDay(day))
}

func TestIncrementIfBelowStopsAtLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &domain.UsageRecord{UserID: 1, ResetDate: time.Now().UTC()})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		count, applied, err := repo.IncrementIfBelow(ctx, 1, 3)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, i, count)
	}

	count, applied, err := repo.IncrementIfBelow(ctx, 1, 3)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 3, count)
}

func TestIncrementIfBelowMissingRecord(t *testing.T) {
	repo := newTestRepo(t)

	_, _, err := repo.IncrementIfBelow(context.Background(), 99, 3)
	assert.Error(t, err)
}

func TestResetForDayZeroesCounter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &domain.UsageRecord{UserID: 1, ResetDate: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	_, _, err = repo.IncrementIfBelow(ctx, 1, 10)
	require.NoError(t, err)

	today := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	require.NoError(t, repo.ResetForDay(ctx, 1, today))

	found, err := repo.FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, found.MessageCount)
	assert.True(t, found.SameUTCDay(today))
}

func TestResetForDayMissingRecord(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.ResetForDay(context.Background(), 42, time.Now().UTC())
	assert.ErrorIs(t, err, ErrUsageNotFound)
}
