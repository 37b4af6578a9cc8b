package internal

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore is the single writer of persisted chat history. All
// mutations go through Upsert/UpdateSessionMessages/Clear; sessions are
// ordered most-recent-first and capped at MaxSessions.
type SessionStore struct {
	mu       sync.Mutex
	storage  Storage
	sessions []ChatSession
	activeID string
	userID   string
}

// NewSessionStore creates a store over the given persistence backend.
func NewSessionStore(storage Storage) *SessionStore {
	return &SessionStore{storage: storage}
}

// Init loads stored history for the given user. If no user binding
// exists, or it mismatches userID, history is wiped before the binding is
// updated — stored history is entirely user-scoped.
func (s *SessionStore) Init(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storedUser, ok := s.storage.LoadUser()
	if !ok || storedUser != userID {
		if ok {
			LogInfo("Stored history belongs to another user, clearing")
		}
		if err := s.storage.Clear(); err != nil {
			return err
		}
		s.sessions = nil
	} else {
		s.sessions = s.storage.LoadHistory()
	}

	if err := s.storage.SaveUser(userID); err != nil {
		return err
	}
	s.userID = userID
	return nil
}

// Teardown releases the persistence backend.
func (s *SessionStore) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.Close()
}

// Sessions returns a copy of the current session list, most recent first.
func (s *SessionStore) Sessions() []ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Get returns the session with the given id.
func (s *SessionStore) Get(id string) (ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.ID == id {
			return session, true
		}
	}
	return ChatSession{}, false
}

// SetActive marks the session the user is currently viewing.
func (s *SessionStore) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = id
}

// ActiveID returns the id of the currently viewed session, if any.
func (s *SessionStore) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns the currently viewed session.
func (s *SessionStore) Active() (ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == "" {
		return ChatSession{}, false
	}
	for _, session := range s.sessions {
		if session.ID == s.activeID {
			return session, true
		}
	}
	return ChatSession{}, false
}

// Upsert inserts or replaces a session by id at the front of the list,
// truncates to MaxSessions, and persists.
func (s *SessionStore) Upsert(session ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(session)
}

func (s *SessionStore) upsertLocked(session ChatSession) error {
	remaining := make([]ChatSession, 0, len(s.sessions)+1)
	remaining = append(remaining, session)
	for _, existing := range s.sessions {
		if existing.ID != session.ID {
			remaining = append(remaining, existing)
		}
	}
	if len(remaining) > MaxSessions {
		remaining = remaining[:MaxSessions]
	}
	s.sessions = remaining
	return s.storage.SaveHistory(s.sessions)
}

// EnsureSessionID returns the id of an existing session matching the
// given context, preferring the active session when it matches, or
// creates and persists a new empty session and returns its id.
func (s *SessionStore) EnsureSessionID(c Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != "" {
		for _, session := range s.sessions {
			if session.ID == s.activeID && session.Matches(c) {
				return session.ID, nil
			}
		}
	}
	for _, session := range s.sessions {
		if session.Matches(c) {
			return session.ID, nil
		}
	}

	session := ChatSession{
		ID:         uuid.NewString(),
		Label:      c.Label(),
		UpdatedAt:  time.Now().Format(time.RFC3339),
		EntityType: normalizeEntityType(c),
		EntityID:   c.EntityID,
		Messages:   []Message{},
	}
	if err := s.upsertLocked(session); err != nil {
		return "", err
	}
	s.activeID = session.ID
	return session.ID, nil
}

// UpdateSessionMessages replaces a session's message list, recomputing
// label and preview, normalizing messages, and persisting. The session
// is created if it no longer exists (it may have been evicted).
func (s *SessionStore) UpdateSessionMessages(sessionID string, messages []Message, c Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := NormalizeMessages(messages)

	session := ChatSession{
		ID:         sessionID,
		EntityType: normalizeEntityType(c),
		EntityID:   c.EntityID,
		Messages:   normalized,
	}
	for _, existing := range s.sessions {
		if existing.ID == sessionID {
			session.ConversationID = existing.ConversationID
			break
		}
	}
	session.Label = c.Label()
	session.Preview = DerivePreview(normalized)
	session.UpdatedAt = time.Now().Format(time.RFC3339)

	return s.upsertLocked(session)
}

// BindConversation records the server-issued conversation id on a
// session so follow-up sends can continue it.
func (s *SessionStore) BindConversation(sessionID, conversationID string) error {
	if conversationID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			s.sessions[i].ConversationID = conversationID
			return s.storage.SaveHistory(s.sessions)
		}
	}
	return fmt.Errorf("session %s not found", sessionID)
}

// Clear empties all sessions and removes both storage records.
func (s *SessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	s.activeID = ""
	return s.storage.Clear()
}

func normalizeEntityType(c Context) string {
	if c.IsGlobal() {
		return EntityGlobal
	}
	return c.EntityType
}
