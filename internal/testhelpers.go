package internal

import (
	"encoding/json"
	"fmt"
	"time"
)

// CreateTestChatSession creates a test session with sample data
func CreateTestChatSession(id string) *ChatSession {
	return &ChatSession{
		ID:         id,
		Label:      "Global Chat",
		Preview:    "Hello, how are you?",
		UpdatedAt:  time.Now().Format(time.RFC3339),
		EntityType: EntityGlobal,
		Messages: []Message{
			{
				ID:        "user-1",
				Role:      "user",
				Content:   "Hello, how are you?",
				Timestamp: "9:15 AM",
				Status:    StatusDone,
			},
			{
				ID:        "assistant-1",
				Role:      "assistant",
				Content:   "I'm doing well, thank you!",
				Timestamp: "9:15 AM",
				Status:    StatusDone,
			},
		},
	}
}

// CreateTestChatSessionWithMessages creates a test session with custom messages
func CreateTestChatSessionWithMessages(id string, c Context, messages []Message) *ChatSession {
	return &ChatSession{
		ID:         id,
		Label:      c.Label(),
		UpdatedAt:  time.Now().Format(time.RFC3339),
		EntityType: normalizeEntityType(c),
		EntityID:   c.EntityID,
		Preview:    DerivePreview(messages),
		Messages:   messages,
	}
}

// CreateTestMessages creates an alternating user/assistant exchange of n messages
func CreateTestMessages(n int) []Message {
	messages := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		messages = append(messages, Message{
			ID:      fmt.Sprintf("%s-%d", role, i),
			Role:    role,
			Content: fmt.Sprintf("message %d", i),
			Status:  StatusDone,
		})
	}
	return messages
}

// MemoryStorage is an in-memory Storage for tests. It stores the raw
// history JSON so malformed-data behavior can be exercised.
type MemoryStorage struct {
	historyRaw string
	hasHistory bool
	user       string
	hasUser    bool
	saveErr    error
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// SeedHistory installs a raw history record, bypassing validation
func (m *MemoryStorage) SeedHistory(raw string) {
	m.historyRaw = raw
	m.hasHistory = true
}

// SeedUser installs a user binding
func (m *MemoryStorage) SeedUser(userID string) {
	m.user = userID
	m.hasUser = true
}

// FailSaves makes subsequent saves return err
func (m *MemoryStorage) FailSaves(err error) {
	m.saveErr = err
}

// LoadHistory implements Storage
func (m *MemoryStorage) LoadHistory() []ChatSession {
	if !m.hasHistory || m.historyRaw == "" {
		return nil
	}
	var sessions []ChatSession
	if err := json.Unmarshal([]byte(m.historyRaw), &sessions); err != nil {
		return nil
	}
	return sessions
}

// SaveHistory implements Storage
func (m *MemoryStorage) SaveHistory(sessions []ChatSession) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return err
	}
	m.historyRaw = string(data)
	m.hasHistory = true
	return nil
}

// LoadUser implements Storage
func (m *MemoryStorage) LoadUser() (string, bool) {
	return m.user, m.hasUser && m.user != ""
}

// SaveUser implements Storage
func (m *MemoryStorage) SaveUser(userID string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.user = userID
	m.hasUser = true
	return nil
}

// Clear implements Storage
func (m *MemoryStorage) Clear() error {
	m.historyRaw = ""
	m.hasHistory = false
	m.user = ""
	m.hasUser = false
	return nil
}

// Close implements Storage
func (m *MemoryStorage) Close() error {
	return nil
}
