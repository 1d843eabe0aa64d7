package client

import (
	"context"
	"sync"
)

// Consumer drives a Session with a Client: it submits messages, feeds stream
// chunks back into the reducer, and exposes Abort for mid-stream cancellation.
// Methods are safe for concurrent use; chunk callbacks fire under the same
// lock that guards the session.
type Consumer struct {
	client  *Client
	session *Session

	mu     sync.Mutex
	cancel context.CancelFunc

	// OnUpdate, when set, is invoked after every state change. Used by the
	// CLI to repaint incrementally.
	OnUpdate func(*Session)
}

func NewConsumer(c *Client, chatID uint) *Consumer {
	return &Consumer{
		client:  c,
		session: &Session{ChatID: chatID},
	}
}

// Session returns a snapshot copy of the current session.
func (c *Consumer) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := *c.session
	snap.Messages = append([]DisplayMessage(nil), c.session.Messages...)
	return snap
}

// Send submits one user message and blocks until the stream finishes, is
// aborted, or fails. onChunk, when non-nil, fires for each chunk as it
// arrives. The session reflects the final outcome either way.
func (c *Consumer) Send(ctx context.Context, message string, onChunk func(string)) error {
	c.mu.Lock()
	if !c.session.CanSubmit() {
		c.mu.Unlock()
		return ErrStreamInFlight
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.apply(Submit(message))
	chatID := c.session.ChatID
	c.mu.Unlock()
	defer cancel()

	result, err := c.client.StreamMessage(streamCtx, chatID, message, func(chunk string) {
		c.mu.Lock()
		c.apply(Chunk(chunk))
		c.mu.Unlock()
		if onChunk != nil {
			onChunk(chunk)
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = nil

	switch {
	case err == nil:
		c.session.Limit = result.Limit
		c.session.Remaining = result.Remaining
		c.apply(Done())
		return nil
	case IsAborted(err):
		c.apply(Aborted())
		return err
	case IsRateLimited(err):
		var rle *RateLimitError
		if e, ok := err.(*RateLimitError); ok {
			rle = e
		}
		c.apply(RateLimited(rle))
		return err
	default:
		c.apply(Failed(err))
		return err
	}
}

// Abort cancels the in-flight stream, if any. The partial response is kept
// with a stopped marker once the transport confirms.
func (c *Consumer) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.State != StateStreaming {
		return
	}
	c.apply(AbortRequested())
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Consumer) apply(ev Event) {
	c.session.Apply(ev)
	if c.OnUpdate != nil {
		c.OnUpdate(c.session)
	}
}
