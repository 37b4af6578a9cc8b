package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// StoppedText is shown when the user stops a response before any content
// has streamed.
const StoppedText = "Stopped."

var (
	// ErrAssistantDisabled is returned when the backend reports the
	// assistant is turned off.
	ErrAssistantDisabled = errors.New("assistant is disabled")
	// ErrStreamActive is returned when a send arrives while a response
	// is still streaming.
	ErrStreamActive = errors.New("a response is already streaming")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
)

// ChatStreamer issues one streaming chat request.
type ChatStreamer interface {
	StreamChat(ctx context.Context, req ChatRequest, handler func(StreamEvent) error) error
}

// Controller owns the one outstanding streaming request a chat surface
// may have. It appends the user message and an assistant placeholder
// before the request goes out, applies stream events to the placeholder
// in order, and commits the session to the store when the stream
// finishes. Starting a new stream always supersedes the previous one:
// the superseded stream's callbacks become no-ops via a generation
// counter.
type Controller struct {
	mu     sync.Mutex
	client ChatStreamer
	store  *SessionStore

	enabled bool
	chatCtx Context

	sessionID string
	messages  []Message

	generation    int
	cancel        context.CancelFunc
	streaming     bool
	stopRequested bool

	onDelta func(text string)
}

// NewController creates a controller for one chat surface.
func NewController(client ChatStreamer, store *SessionStore) *Controller {
	return &Controller{
		client:  client,
		store:   store,
		chatCtx: GlobalContext(),
	}
}

// SetEnabled records the server-reported assistant flag.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// Enabled reports whether sends are currently allowed.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// OnDelta registers a callback invoked with each non-empty delta text as
// it arrives. The callback must not call back into the controller.
func (c *Controller) OnDelta(fn func(text string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDelta = fn
}

// Context returns the context the controller is currently chatting in.
func (c *Controller) Context() Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatCtx
}

// Streaming reports whether a stream is currently in flight.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Messages returns a copy of the in-memory message list.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// SessionID returns the id of the session the controller is writing to.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SetConversation installs the context, session and display list the
// controller should operate on, as decided by the reconciler.
func (c *Controller) SetConversation(chatCtx Context, sessionID string, messages []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatCtx = chatCtx
	c.sessionID = sessionID
	c.messages = make([]Message, len(messages))
	copy(c.messages, messages)
	if sessionID != "" {
		c.store.SetActive(sessionID)
	}
}

// Stop requests a user-initiated abort of the in-flight stream. The
// assistant message is finalized with whatever content has streamed so
// far, or StoppedText if none.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streaming || c.cancel == nil {
		return
	}
	c.stopRequested = true
	c.cancel()
}

// AbortIncidental cancels the in-flight stream without marking it
// user-requested, e.g. when the selected context changes mid-stream. The
// partial response is discarded silently.
func (c *Controller) AbortIncidental() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streaming || c.cancel == nil {
		return
	}
	c.stopRequested = false
	c.cancel()
}

// Send issues one streaming request for the given user input and blocks
// until the stream completes, is stopped, or fails. Stream failures are
// surfaced inline on the assistant message, not returned; only
// precondition violations (disabled assistant, blank input, stream
// already active) produce an error, and those are strict no-ops.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return ErrAssistantDisabled
	}
	if c.streaming {
		c.mu.Unlock()
		return ErrStreamActive
	}

	// Supersede any stale handle left behind by an aborted stream.
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	gen := c.generation

	sessionID, err := c.store.EnsureSessionID(c.chatCtx)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.sessionID = sessionID
	c.store.SetActive(sessionID)

	conversationID := ""
	if session, ok := c.store.Get(sessionID); ok {
		conversationID = session.ConversationID
	}

	// Reflect the send immediately, before any network traffic.
	c.dropWelcomeLocked()
	c.messages = append(c.messages, NewUserMessage(text))
	placeholder := NewAssistantPlaceholder()
	c.messages = append(c.messages, placeholder)
	placeholderID := placeholder.ID

	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.streaming = true
	c.stopRequested = false

	req := ChatRequest{
		Message:        text,
		ConversationID: conversationID,
	}
	if !c.chatCtx.IsGlobal() {
		req.SurrogateID = c.chatCtx.EntityID
	}
	c.mu.Unlock()

	streamErr := c.client.StreamChat(streamCtx, req, func(event StreamEvent) error {
		c.applyEvent(gen, placeholderID, event)
		return nil
	})

	cancel()
	c.finish(gen, placeholderID, streamErr)
	return nil
}

func (c *Controller) applyEvent(gen int, placeholderID string, event StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A superseded stream's events are no-ops.
	if gen != c.generation {
		return
	}
	idx := c.messageIndexLocked(placeholderID)
	if idx < 0 {
		return
	}

	switch event.Type {
	case EventStart:
		c.messages[idx].Status = StatusThinking

	case EventDelta:
		data, err := event.Delta()
		if err != nil || data.Text == "" {
			return
		}
		c.messages[idx].Content += data.Text
		c.messages[idx].Status = StatusStreaming
		if c.onDelta != nil {
			c.onDelta(data.Text)
		}

	case EventDone:
		data, err := event.Done()
		if err != nil {
			LogWarn("Failed to decode done event: %v", err)
			return
		}
		c.messages[idx].Content = data.Content
		c.messages[idx].ProposedActions = normalizeActions(data.ProposedActions)
		c.messages[idx].Status = StatusDone
		c.messages[idx].Timestamp = MessageTimestamp(time.Now())
		c.commitLocked(data.ConversationID)

	case EventError:
		data, err := event.ErrorMessage()
		if err != nil {
			data.Message = "unknown error"
		}
		c.messages[idx].Content = fmt.Sprintf("Sorry, something went wrong: %s", data.Message)
		c.messages[idx].Status = StatusError

	default:
		LogDebug("Ignoring unknown stream event type %q", event.Type)
	}
}

// finish settles the stream's terminal state once the transport returns.
func (c *Controller) finish(gen int, placeholderID string, streamErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}
	c.streaming = false
	c.cancel = nil

	if streamErr == nil {
		return
	}

	idx := c.messageIndexLocked(placeholderID)
	if idx < 0 {
		return
	}

	if errors.Is(streamErr, context.Canceled) {
		if !c.stopRequested {
			// Incidental abort (context switch, supersede): discard
			// silently, never an error state.
			return
		}
		if c.messages[idx].Content == "" {
			c.messages[idx].Content = StoppedText
		}
		c.messages[idx].Status = StatusDone
		c.messages[idx].Timestamp = MessageTimestamp(time.Now())
		c.commitLocked("")
		return
	}

	LogError("Chat stream failed: %v", streamErr)
	c.messages[idx].Content = fmt.Sprintf("Sorry, something went wrong: %v", streamErr)
	c.messages[idx].Status = StatusError
}

// commitLocked persists the current message list into the active session.
func (c *Controller) commitLocked(conversationID string) {
	if c.sessionID == "" {
		return
	}
	if err := c.store.UpdateSessionMessages(c.sessionID, c.messages, c.chatCtx); err != nil {
		LogWarn("Failed to persist session %s: %v", c.sessionID, err)
	}
	if conversationID != "" {
		if err := c.store.BindConversation(c.sessionID, conversationID); err != nil {
			LogWarn("Failed to record conversation id: %v", err)
		}
	}
}

func (c *Controller) messageIndexLocked(id string) int {
	for i := range c.messages {
		if c.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) dropWelcomeLocked() {
	kept := c.messages[:0]
	for _, msg := range c.messages {
		if msg.ID != WelcomeMessageID {
			kept = append(kept, msg)
		}
	}
	c.messages = kept
}

func normalizeActions(actions []ProposedAction) []ProposedAction {
	for i := range actions {
		if actions[i].Status == "" {
			actions[i].Status = ActionPending
		}
	}
	return actions
}
