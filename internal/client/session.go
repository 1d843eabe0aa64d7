package client

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of the stream consumer.
type State int

const (
	// StateIdle means no stream is in flight; submission is allowed.
	StateIdle State = iota
	// StateStreaming means a response stream is being consumed.
	StateStreaming
	// StateAborting means the user requested cancellation and the session
	// is waiting for the transport to confirm.
	StateAborting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateAborting:
		return "aborting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DisplayMessage is one entry in the session's message list. Optimistic
// entries have not been confirmed by the server yet.
type DisplayMessage struct {
	ID         string
	Role       string
	Content    string
	Optimistic bool
}

const abortSuffix = "\n\n*[Generation stopped]*"

// Session holds the consumer's view of one conversation. State only changes
// through Apply, which makes the transitions testable as a pure reducer.
type Session struct {
	ChatID    uint
	State     State
	Messages  []DisplayMessage
	Streaming string // partial assistant text accumulated during a stream
	Err       error

	// Limit and Remaining mirror the most recent rate-limit headers.
	Limit     int
	Remaining int

	optimisticSeq int
}

// Event is a state transition input. Exactly one constructor per transition.
type Event struct {
	kind      eventKind
	message   string
	chunk     string
	err       error
	limitInfo *RateLimitError
}

type eventKind int

const (
	eventSubmit eventKind = iota
	eventChunk
	eventDone
	eventRateLimited
	eventAbortRequested
	eventAborted
	eventFailed
)

func Submit(message string) Event         { return Event{kind: eventSubmit, message: message} }
func Chunk(text string) Event             { return Event{kind: eventChunk, chunk: text} }
func Done() Event                         { return Event{kind: eventDone} }
func RateLimited(e *RateLimitError) Event { return Event{kind: eventRateLimited, limitInfo: e} }
func AbortRequested() Event               { return Event{kind: eventAbortRequested} }
func Aborted() Event                      { return Event{kind: eventAborted} }
func Failed(err error) Event              { return Event{kind: eventFailed, err: err} }

// Apply advances the session by one event. Events that are invalid in the
// current state are ignored, which keeps late chunks from a cancelled stream
// harmless.
func (s *Session) Apply(ev Event) {
	switch s.State {
	case StateIdle:
		if ev.kind == eventSubmit {
			// Blank input never leaves Idle; callers also guard this, but
			// the reducer does not rely on them.
			if strings.TrimSpace(ev.message) == "" {
				return
			}
			s.optimisticSeq++
			s.Messages = append(s.Messages, DisplayMessage{
				ID:         fmt.Sprintf("optimistic-%d", s.optimisticSeq),
				Role:       "user",
				Content:    ev.message,
				Optimistic: true,
			})
			s.Streaming = ""
			s.Err = nil
			s.State = StateStreaming
		}

	case StateStreaming:
		switch ev.kind {
		case eventChunk:
			s.Streaming += ev.chunk
		case eventDone:
			// An empty reply is not a message, matching what the server
			// persists.
			if s.Streaming == "" {
				s.State = StateIdle
			} else {
				s.finishAssistant(s.Streaming)
			}
		case eventAbortRequested:
			s.State = StateAborting
		case eventAborted:
			// Cancellation from outside (parent context), not via an
			// explicit abort request. Same outcome.
			if s.Streaming != "" {
				s.finishAssistant(s.Streaming + abortSuffix)
			} else {
				s.State = StateIdle
			}
		case eventRateLimited:
			s.dropOptimistic()
			msg := "Daily message limit reached."
			if ev.limitInfo != nil && ev.limitInfo.Message != "" {
				msg = ev.limitInfo.Message
			}
			s.finishAssistant(msg)
			s.Err = ev.limitInfo
		case eventFailed:
			s.dropOptimistic()
			s.Streaming = ""
			s.Err = ev.err
			s.State = StateIdle
		}

	case StateAborting:
		switch ev.kind {
		case eventChunk:
			// The transport may deliver buffered chunks before the cancel
			// lands; keep them so the preserved partial is complete.
			s.Streaming += ev.chunk
		case eventAborted, eventDone:
			if s.Streaming != "" {
				s.finishAssistant(s.Streaming + abortSuffix)
			} else {
				s.Streaming = ""
				s.State = StateIdle
			}
		case eventFailed:
			// Cancellation surfaces as an error from the transport; treat it
			// the same as a confirmed abort.
			if IsAborted(ev.err) {
				s.Apply(Aborted())
				return
			}
			s.dropOptimistic()
			s.Streaming = ""
			s.Err = ev.err
			s.State = StateIdle
		}
	}
}

func (s *Session) finishAssistant(content string) {
	s.optimisticSeq++
	s.Messages = append(s.Messages, DisplayMessage{
		ID:      fmt.Sprintf("assistant-%d", s.optimisticSeq),
		Role:    "assistant",
		Content: content,
	})
	s.Streaming = ""
	s.State = StateIdle
}

// dropOptimistic removes the trailing unconfirmed user message, if any.
func (s *Session) dropOptimistic() {
	if n := len(s.Messages); n > 0 && s.Messages[n-1].Optimistic {
		s.Messages = s.Messages[:n-1]
	}
}

// CanSubmit reports whether a new message may be sent.
func (s *Session) CanSubmit() bool { return s.State == StateIdle }
