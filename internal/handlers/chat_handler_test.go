package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chatstream/internal/domain"
	"chatstream/internal/middleware"
	chatrepo "chatstream/internal/repository/chat"
	messagerepo "chatstream/internal/repository/message"
	usagerepo "chatstream/internal/repository/usage"
	"chatstream/internal/services"
	"chatstream/internal/services/ai"
	"chatstream/internal/services/chat"
	"chatstream/internal/services/quota"
)

type scriptedProvider struct {
	chunks    []string
	err       error
	delivered int
}

func (p *scriptedProvider) StreamCompletion(_ context.Context, _ string, _ []ai.ChatMessage, onDelta func(string) error) error {
	for _, chunk := range p.chunks {
		if err := onDelta(chunk); err != nil {
			return err
		}
		p.delivered++
	}
	return p.err
}

type handlerFixture struct {
	db     *gorm.DB
	router *mux.Router
	chatID uint
}

// newHandlerFixture wires the full stack over an in-memory database: real
// repositories and services, a scripted provider, and a router that
// authenticates requests as user 1.
func newHandlerFixture(t *testing.T, provider chat.AIProvider, dailyLimit int) *handlerFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Chat{}, &domain.Message{}, &domain.UsageRecord{}))

	chats := chatrepo.NewChatRepository(db)
	messages := messagerepo.NewMessageRepository(db)
	usages := usagerepo.NewUsageRepository(db)
	log := &services.NoOpLogger{}

	quotaSvc, err := quota.NewService(&quota.Config{DailyMessageLimit: dailyLimit}, usages, quota.SystemClock{}, log)
	require.NoError(t, err)

	chatSvc := chat.NewService(chats, messages, log)
	streamSvc, err := chat.NewStreamingService(&chat.Config{
		StreamModel:   "test-model",
		HistoryWindow: 20,
		StreamTimeout: 5 * time.Second,
		DBSaveTimeout: 5 * time.Second,
	}, chats, messages, provider, log)
	require.NoError(t, err)

	handler := NewChatHandler(chatSvc, streamSvc, quotaSvc, log)

	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, uint(1))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.HandleFunc("/api/chat", handler.StreamChat).Methods(http.MethodPost)
	router.HandleFunc("/api/chats", handler.GetUserChats).Methods(http.MethodGet)
	router.HandleFunc("/api/chats", handler.CreateChat).Methods(http.MethodPost)
	router.HandleFunc("/api/chats/{id:[0-9]+}/messages", handler.GetChatMessages).Methods(http.MethodGet)
	router.HandleFunc("/api/chats/{id:[0-9]+}", handler.DeleteChat).Methods(http.MethodDelete)

	created, err := chats.Create(context.Background(), &domain.Chat{UserID: 1})
	require.NoError(t, err)

	return &handlerFixture{db: db, router: router, chatID: created.ID}
}

func (f *handlerFixture) streamRequest(chatID uint, message string) *http.Request {
	body, _ := json.Marshal(map[string]interface{}{"chatId": chatID, "message": message})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (f *handlerFixture) messageCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&domain.Message{}).Count(&count).Error)
	return count
}

func TestStreamChatSuccess(t *testing.T) {
	fx := newHandlerFixture(t, &scriptedProvider{chunks: []string{"Hello", " ", "world"}}, 10)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, fx.streamRequest(fx.chatID, "Hi!"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello world", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, int64(2), fx.messageCount(t))
}

func TestStreamChatMissingFields(t *testing.T) {
	fx := newHandlerFixture(t, &scriptedProvider{}, 10)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"no chat id", `{"message":"hi"}`},
		{"no message", `{"chatId":1}`},
		{"blank message", fmt.Sprintf(`{"chatId":%d,"message":"   "}`, fx.chatID)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			fx.router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Zero(t, fx.messageCount(t))
}

func TestStreamChatQuotaExceeded(t *testing.T) {
	fx := newHandlerFixture(t, &scriptedProvider{chunks: []string{"ok"}}, 1)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, fx.streamRequest(fx.chatID, "first"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, fx.streamRequest(fx.chatID, "second"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	assert.Equal(t, "rate_limit_exceeded", payload["error"])
	assert.Contains(t, payload["message"], "resets at midnight UTC")

	// The rejected message was never persisted.
	assert.Equal(t, int64(2), fx.messageCount(t))
}

func TestStreamChatUnknownChatIsNotFound(t *testing.T) {
	fx := newHandlerFixture(t, &scriptedProvider{chunks: []string{"ok"}}, 10)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, fx.streamRequest(9999, "hi"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, fx.messageCount(t))
}

func TestStreamChatUnauthenticated(t *testing.T) {
	fx := newHandlerFixture(t, &scriptedProvider{}, 10)

	// No auth middleware: the request context carries no user id.
	handler := NewChatHandler(nil, nil, nil, &services.NoOpLogger{})
	rec := httptest.NewRecorder()
	handler.StreamChat(rec, fx.streamRequest(fx.chatID, "hi"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndListChats(t *testing.T) {
	fx := newHandlerFixture(t, &scriptedProvider{}, 10)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chats", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Chat
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotZero(t, created.ID)

	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var chats []domain.Chat
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&chats))
	assert.Len(t, chats, 2) // fixture chat + the one just created
}

func TestGetChatMessages(t *testing.T) {
	fx := newHandlerFixture(t, &scriptedProvider{chunks: []string{"answer"}}, 10)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, fx.streamRequest(fx.chatID, "question"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/chats/%d/messages", fx.chatID), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var messages []domain.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&messages))
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
	assert.Equal(t, "question", messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, messages[1].Role)
	assert.Equal(t, "answer", messages[1].Content)
}

func TestGetChatMessagesNotOwned(t *testing.T) {
	fx := newHandlerFixture(t, &scriptedProvider{}, 10)

	// A chat owned by someone else looks like it does not exist.
	other := &domain.Chat{UserID: 2}
	require.NoError(t, fx.db.Create(other).Error)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/chats/%d/messages", other.ID), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteChat(t *testing.T) {
	fx := newHandlerFixture(t, &scriptedProvider{chunks: []string{"a"}}, 10)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, fx.streamRequest(fx.chatID, "hello"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/chats/%d", fx.chatID), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Zero(t, fx.messageCount(t))

	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/chats/%d", fx.chatID), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// droppedConnWriter simulates a client that goes away mid-stream: writes
// start failing after the first chunk reaches the wire.
type droppedConnWriter struct {
	*httptest.ResponseRecorder
	failAfter int
	writes    int
}

func (w *droppedConnWriter) Write(b []byte) (int, error) {
	w.writes++
	if w.writes > w.failAfter {
		return 0, errors.New("broken pipe")
	}
	return w.ResponseRecorder.Write(b)
}

func TestStreamChatClientGoneDrainsAndPersists(t *testing.T) {
	provider := &scriptedProvider{chunks: []string{"The ", "full ", "reply"}}
	fx := newHandlerFixture(t, provider, 10)

	rec := &droppedConnWriter{ResponseRecorder: httptest.NewRecorder(), failAfter: 1}
	fx.router.ServeHTTP(rec, fx.streamRequest(fx.chatID, "hello"))

	// The provider stream is consumed to the end even though forwarding
	// stopped after the first chunk.
	assert.Equal(t, len(provider.chunks), provider.delivered)

	// Both turns are persisted, the assistant one with the complete reply.
	var messages []domain.Message
	require.NoError(t, fx.db.Where("chat_id = ?", fx.chatID).Order("id ASC").Find(&messages).Error)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "The full reply", messages[1].Content)
}

// cancellingProvider cancels the request context after its first delta, the
// way an aborting client does.
type cancellingProvider struct {
	scriptedProvider
	cancel context.CancelFunc
}

func (p *cancellingProvider) StreamCompletion(ctx context.Context, model string, messages []ai.ChatMessage, onDelta func(string) error) error {
	wrapped := func(delta string) error {
		err := onDelta(delta)
		p.cancel()
		return err
	}
	return p.scriptedProvider.StreamCompletion(ctx, model, messages, wrapped)
}

func TestStreamChatRequestCancelMidStreamStillPersists(t *testing.T) {
	provider := &cancellingProvider{scriptedProvider: scriptedProvider{chunks: []string{"part", "ial ", "reply"}}}
	fx := newHandlerFixture(t, provider, 10)

	ctx, cancel := context.WithCancel(context.Background())
	provider.cancel = cancel

	req := fx.streamRequest(fx.chatID, "hello").WithContext(ctx)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	// The exchange is detached from the request context: the provider ran
	// to completion and the assistant turn was persisted in full.
	assert.Equal(t, 3, provider.delivered)

	var messages []domain.Message
	require.NoError(t, fx.db.Where("chat_id = ?", fx.chatID).Order("id ASC").Find(&messages).Error)
	require.Len(t, messages, 2)
	assert.Equal(t, "partial reply", messages[1].Content)
}

func TestStreamChatTitleFromFirstMessage(t *testing.T) {
	fx := newHandlerFixture(t, &scriptedProvider{chunks: []string{"ok"}}, 10)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, fx.streamRequest(fx.chatID, "What is the capital of France?"))
	require.Equal(t, http.StatusOK, rec.Code)

	var after domain.Chat
	require.NoError(t, fx.db.First(&after, fx.chatID).Error)
	assert.Equal(t, "What is the capital of France?", after.Title)
}
