package chat

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chatstream/internal/domain"
	chatrepo "chatstream/internal/repository/chat"
	messagerepo "chatstream/internal/repository/message"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Chat{}, &domain.Message{}))
	return NewService(chatrepo.NewChatRepository(db), messagerepo.NewMessageRepository(db), testLogger{}), db
}

func TestGetOrCreateActiveChatCreatesWhenEmpty(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	active, err := svc.GetOrCreateActiveChat(ctx, 1)
	require.NoError(t, err)
	assert.NotZero(t, active.ID)
	assert.Empty(t, active.Title)
}

func TestGetOrCreateActiveChatReturnsMostRecent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateChat(ctx, 1)
	require.NoError(t, err)
	latest, err := svc.CreateChat(ctx, 1)
	require.NoError(t, err)

	active, err := svc.GetOrCreateActiveChat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, active.ID)
}

func TestGetChatMessagesEnforcesOwnership(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	other := &domain.Chat{UserID: 2}
	require.NoError(t, db.Create(other).Error)

	_, err := svc.GetChatMessages(ctx, 1, other.ID)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestDeleteChatNotOwnedLooksLikeNotFound(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	other := &domain.Chat{UserID: 2}
	require.NoError(t, db.Create(other).Error)

	err := svc.DeleteChat(ctx, 1, other.ID)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	// Untouched.
	var count int64
	require.NoError(t, db.Model(&domain.Chat{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
