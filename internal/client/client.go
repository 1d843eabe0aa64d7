package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"chatstream/internal/domain"
)

// Client is the HTTP transport of the stream consumer. It issues requests
// against the chat service and reads completion streams incrementally.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		// No overall timeout: streams are open-ended. Cancellation comes
		// from the caller's context.
		httpClient: &http.Client{},
	}
}

// StreamResult summarises one completed (or cancelled) stream.
type StreamResult struct {
	FullText  string
	Limit     int
	Remaining int
}

// StreamMessage posts one user message and reads the response stream,
// invoking onChunk for every chunk as it arrives. Cancelling ctx aborts the
// read; the partial result is returned alongside ErrAborted.
func (c *Client) StreamMessage(ctx context.Context, chatID uint, message string, onChunk func(string)) (*StreamResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"chatId":  chatID,
		"message": message,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &StreamResult{}, ErrAborted
		}
		return nil, errors.Wrap(err, "sending request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		var payload struct {
			Message   string `json:"message"`
			Limit     int    `json:"limit"`
			Remaining int    `json:"remaining"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return nil, &RateLimitError{Limit: payload.Limit, Remaining: payload.Remaining, Message: payload.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("chat request failed with status %d", resp.StatusCode)
	}

	result := &StreamResult{
		Limit:     headerInt(resp, "X-RateLimit-Limit"),
		Remaining: headerInt(resp, "X-RateLimit-Remaining"),
	}

	var full bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			full.WriteString(chunk)
			if onChunk != nil {
				onChunk(chunk)
			}
		}
		if readErr != nil {
			result.FullText = full.String()
			if readErr == io.EOF {
				return result, nil
			}
			if ctx.Err() != nil {
				return result, ErrAborted
			}
			return result, errors.Wrap(readErr, "reading stream")
		}
	}
}

// ListChats returns the user's chats, most recently updated first.
func (c *Client) ListChats(ctx context.Context) ([]domain.Chat, error) {
	var chats []domain.Chat
	if err := c.getJSON(ctx, "/api/chats", &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// CreateChat starts a fresh conversation.
func (c *Client) CreateChat(ctx context.Context) (*domain.Chat, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chats", nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "creating chat")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return nil, errors.Errorf("create chat failed with status %d", resp.StatusCode)
	}

	var created domain.Chat
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, errors.Wrap(err, "decoding chat")
	}
	return &created, nil
}

// GetMessages returns a chat's history in canonical order.
func (c *Client) GetMessages(ctx context.Context, chatID uint) ([]domain.Message, error) {
	var messages []domain.Message
	if err := c.getJSON(ctx, fmt.Sprintf("/api/chats/%d/messages", chatID), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteChat removes a chat and its messages.
func (c *Client) DeleteChat(ctx context.Context, chatID uint) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/api/chats/%d", c.baseURL, chatID), nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "deleting chat")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return errors.Errorf("delete chat failed with status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "requesting %s", path)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("request %s failed with status %d", path, resp.StatusCode)
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decoding response")
}

func headerInt(resp *http.Response, name string) int {
	v, err := strconv.Atoi(resp.Header.Get(name))
	if err != nil {
		return 0
	}
	return v
}
