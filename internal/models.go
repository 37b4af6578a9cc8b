package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Entity types a chat session can be scoped to
const (
	EntityGlobal    = "global"
	EntitySurrogate = "surrogate"
)

// Message lifecycle states
const (
	StatusThinking  = "thinking"
	StatusStreaming = "streaming"
	StatusDone      = "done"
	StatusError     = "error"
)

// Proposed action states
const (
	ActionPending  = "pending"
	ActionApproved = "approved"
	ActionRejected = "rejected"
)

// Retention limits for locally stored history
const (
	MaxSessions        = 10
	MaxSessionMessages = 50
)

// WelcomeMessageID marks the synthetic greeting shown before any real
// history exists. It is never persisted.
const WelcomeMessageID = "welcome"

const previewMaxLen = 80

// Context identifies what a chat session is grounded in: a specific
// surrogate case, or the global workspace when EntityID is empty.
type Context struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id,omitempty"`
	EntityName string `json:"entity_name,omitempty"`
}

// GlobalContext returns the context for a chat not scoped to any entity.
func GlobalContext() Context {
	return Context{EntityType: EntityGlobal}
}

// SurrogateContext returns the context for a chat scoped to a surrogate case.
func SurrogateContext(id, name string) Context {
	return Context{EntityType: EntitySurrogate, EntityID: id, EntityName: name}
}

// IsGlobal reports whether the context is unscoped.
func (c Context) IsGlobal() bool {
	return c.EntityType == "" || c.EntityType == EntityGlobal
}

// Same reports whether two contexts identify the same chat scope.
func (c Context) Same(other Context) bool {
	if c.IsGlobal() || other.IsGlobal() {
		return c.IsGlobal() && other.IsGlobal()
	}
	return c.EntityType == other.EntityType && c.EntityID == other.EntityID
}

// Label returns the human-readable title for a session in this context.
func (c Context) Label() string {
	if c.IsGlobal() {
		return "Global Chat"
	}
	if c.EntityName != "" {
		return c.EntityName
	}
	return fmt.Sprintf("Surrogate %s", c.EntityID)
}

// ProposedAction is a structured, human-approvable side effect suggested
// by the assistant. An empty ApprovalID means the action cannot be
// approved or rejected.
type ProposedAction struct {
	ApprovalID string          `json:"approval_id,omitempty"`
	ActionType string          `json:"action_type"`
	ActionData json.RawMessage `json:"action_data,omitempty"`
	Status     string          `json:"status"`
}

// Message is a single entry in a conversation. Content is accumulated in
// place while a response streams; array order is authoritative for
// display, not Timestamp.
type Message struct {
	ID              string           `json:"id"`
	Role            string           `json:"role"` // "user" or "assistant"
	Content         string           `json:"content"`
	Timestamp       string           `json:"timestamp,omitempty"`
	Status          string           `json:"status"`
	ProposedActions []ProposedAction `json:"proposed_actions,omitempty"`
}

// ChatSession is a persisted, resumable conversation thread bound to one
// context and one user.
type ChatSession struct {
	ID             string    `json:"id"`
	Label          string    `json:"label"`
	Preview        string    `json:"preview,omitempty"`
	UpdatedAt      string    `json:"updated_at"`
	EntityType     string    `json:"entity_type"`
	EntityID       string    `json:"entity_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Messages       []Message `json:"messages"`
}

// Context returns the context this session is bound to.
func (s *ChatSession) Context() Context {
	return Context{EntityType: s.EntityType, EntityID: s.EntityID, EntityName: s.Label}
}

// Matches reports whether the session belongs to the given context.
// Sessions are identified by (entityType, entityID) for "continue
// existing chat" lookup.
func (s *ChatSession) Matches(c Context) bool {
	if c.IsGlobal() {
		return s.EntityType == EntityGlobal || s.EntityType == ""
	}
	return s.EntityType == c.EntityType && s.EntityID == c.EntityID
}

// MessageTimestamp formats a display timestamp for a message. Display
// only; ordering is positional.
func MessageTimestamp(t time.Time) string {
	return t.Format("3:04 PM")
}

// NewUserMessage builds a user message ready to append to a conversation.
func NewUserMessage(text string) Message {
	now := time.Now()
	return Message{
		ID:        fmt.Sprintf("user-%d", now.UnixMilli()),
		Role:      "user",
		Content:   text,
		Timestamp: MessageTimestamp(now),
		Status:    StatusDone,
	}
}

// NewAssistantPlaceholder builds the pending assistant message appended
// before the streaming request is issued.
func NewAssistantPlaceholder() Message {
	now := time.Now()
	return Message{
		ID:        fmt.Sprintf("assistant-%d", now.UnixMilli()),
		Role:      "assistant",
		Content:   "",
		Timestamp: MessageTimestamp(now),
		Status:    StatusThinking,
	}
}

// WelcomeMessage returns the default greeting shown when no history is
// available for the current context.
func WelcomeMessage() Message {
	return Message{
		ID:      WelcomeMessageID,
		Role:    "assistant",
		Content: "Hi! I'm your assistant. Ask me about cases, matches, or tasks, or pick a surrogate to chat about.",
		Status:  StatusDone,
	}
}

// DerivePreview returns the truncated text of the most recent user
// message, for session list display.
func DerivePreview(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "user" {
			continue
		}
		text := strings.TrimSpace(messages[i].Content)
		if text == "" {
			continue
		}
		return truncate(text, previewMaxLen)
	}
	return ""
}

// NormalizeMessages prepares a message list for persistence: the
// synthetic welcome message is dropped, the list is capped at
// MaxSessionMessages keeping the newest entries, and any lingering
// thinking/streaming status is coerced to done since a reload never
// resumes an interrupted stream.
func NormalizeMessages(messages []Message) []Message {
	normalized := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.ID == WelcomeMessageID {
			continue
		}
		if msg.Status == StatusThinking || msg.Status == StatusStreaming {
			msg.Status = StatusDone
		}
		normalized = append(normalized, msg)
	}
	if len(normalized) > MaxSessionMessages {
		normalized = normalized[len(normalized)-MaxSessionMessages:]
	}
	return normalized
}

// PatchActionStatus sets the status of every proposed action carrying the
// given approval id, across all messages. It returns the updated list and
// whether anything changed.
func PatchActionStatus(messages []Message, approvalID, status string) ([]Message, bool) {
	if approvalID == "" {
		return messages, false
	}
	changed := false
	patched := make([]Message, len(messages))
	for i, msg := range messages {
		patched[i] = msg
		if len(msg.ProposedActions) == 0 {
			continue
		}
		actions := make([]ProposedAction, len(msg.ProposedActions))
		copy(actions, msg.ProposedActions)
		for j := range actions {
			if actions[j].ApprovalID == approvalID {
				actions[j].Status = status
				changed = true
			}
		}
		patched[i].ProposedActions = actions
	}
	return patched, changed
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
