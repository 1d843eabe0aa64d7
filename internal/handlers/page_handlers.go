package handlers

import (
	"bytes"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/yuin/goldmark"

	"chatstream/internal/domain"
	"chatstream/internal/middleware"
	"chatstream/internal/services/chat"
	"chatstream/internal/services/quota"
)

// Template cache to avoid parsing templates on every request
var (
	templateCache     map[string]*template.Template
	templateCacheOnce sync.Once
)

func loadTemplateCache() {
	templateCache = make(map[string]*template.Template)

	templates := []string{"chat.html", "error.html"}

	for _, tmpl := range templates {
		ts := template.New(tmpl)

		ts, err := ts.ParseFiles("web/templates/layout.html")
		if err != nil {
			log.Fatalf("Error parsing layout for %s: %v", tmpl, err)
		}

		ts, err = ts.ParseFiles("web/templates/" + tmpl)
		if err != nil {
			log.Fatalf("Error parsing %s: %v", tmpl, err)
		}

		templateCache[tmpl] = ts
	}
}

func renderTemplate(w http.ResponseWriter, tmpl string, data map[string]interface{}) {
	templateCacheOnce.Do(loadTemplateCache)
	addSecurityHeaders(w)

	if data == nil {
		data = make(map[string]interface{})
	}

	t, ok := templateCache[tmpl]
	if !ok {
		log.Printf("Template %s not found in cache", tmpl)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	if err := t.ExecuteTemplate(w, "layout.html", data); err != nil {
		log.Printf("Template render error for %s: %v", tmpl, err)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
	}
}

func addSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

// messageView is a message prepared for rendering; assistant markdown is
// converted to HTML, user text stays plain.
type messageView struct {
	domain.Message
	HTML template.HTML
}

type PageHandler struct {
	chatService  chat.ChatProvider
	quotaService *quota.Service
	markdown     goldmark.Markdown
}

func NewPageHandler(cs chat.ChatProvider, qs *quota.Service) *PageHandler {
	return &PageHandler{
		chatService:  cs,
		quotaService: qs,
		markdown:     goldmark.New(),
	}
}

// ShowChatPage renders the main view. Chat selection is query-driven:
// ?chat=<id> selects a chat, ?new=true creates one, and with neither the
// most recent chat is shown (created on demand for first-time users).
func (h *PageHandler) ShowChatPage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var active *domain.Chat
	var err error
	query := r.URL.Query()
	switch {
	case query.Get("new") == "true":
		active, err = h.chatService.CreateChat(r.Context(), userID)
	case query.Get("chat") != "":
		var chatID uint64
		chatID, err = strconv.ParseUint(query.Get("chat"), 10, 32)
		if err != nil {
			h.ShowErrorPage(w, "400", "Bad Request", "Invalid chat id.")
			return
		}
		var messages []domain.Message
		messages, err = h.chatService.GetChatMessages(r.Context(), userID, uint(chatID))
		if err == nil {
			h.renderChat(w, r, userID, uint(chatID), messages)
			return
		}
		if chat.IsNotFound(err) {
			h.ShowErrorPage(w, "404", "Chat Not Found", "This conversation does not exist.")
			return
		}
	default:
		active, err = h.chatService.GetOrCreateActiveChat(r.Context(), userID)
	}
	if err != nil {
		log.Printf("[PageHandler] Failed to resolve chat for user %d: %v", userID, err)
		h.ShowErrorPage(w, "500", "Something went wrong", "Could not load your conversation.")
		return
	}

	messages, err := h.chatService.GetChatMessages(r.Context(), userID, active.ID)
	if err != nil {
		log.Printf("[PageHandler] Failed to load messages for chat %d: %v", active.ID, err)
		h.ShowErrorPage(w, "500", "Something went wrong", "Could not load your conversation.")
		return
	}
	h.renderChat(w, r, userID, active.ID, messages)
}

func (h *PageHandler) renderChat(w http.ResponseWriter, r *http.Request, userID, chatID uint, messages []domain.Message) {
	chats, err := h.chatService.GetUserChats(r.Context(), userID)
	if err != nil {
		log.Printf("[PageHandler] Failed to list chats for user %d: %v", userID, err)
		h.ShowErrorPage(w, "500", "Something went wrong", "Could not load your conversations.")
		return
	}

	remaining, err := h.quotaService.Remaining(r.Context(), userID)
	if err != nil {
		log.Printf("[PageHandler] Failed to read quota for user %d: %v", userID, err)
		remaining = 0
	}

	views := make([]messageView, 0, len(messages))
	for _, m := range messages {
		view := messageView{Message: m}
		if m.Role == domain.RoleAssistant {
			var buf bytes.Buffer
			if err := h.markdown.Convert([]byte(m.Content), &buf); err == nil {
				view.HTML = template.HTML(buf.String())
			}
		}
		views = append(views, view)
	}

	renderTemplate(w, "chat.html", map[string]interface{}{
		"UserID":       userID,
		"ActiveChatID": chatID,
		"Chats":        chats,
		"Messages":     views,
		"Remaining":    remaining,
		"Limit":        h.quotaService.Limit(),
	})
}

func (h *PageHandler) ShowErrorPage(w http.ResponseWriter, code, message, description string) {
	data := map[string]interface{}{
		"Code":        code,
		"Message":     message,
		"Description": description,
	}
	renderTemplate(w, "error.html", data)
}
