package internal

import (
	"database/sql"
	"encoding/json"
)

// Storage keys mirroring the web client's session-storage records
const (
	historyKey = "assistant.chatHistory"
	userKey    = "assistant.chatHistoryUser"
)

// Storage is the persistence backend for chat history: a JSON array of
// sessions under a fixed key plus a single user-binding record.
type Storage interface {
	LoadHistory() []ChatSession
	SaveHistory(sessions []ChatSession) error
	LoadUser() (string, bool)
	SaveUser(userID string) error
	Clear() error
	Close() error
}

// SQLiteStorage persists history in the assistantKV table.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates storage over an open store database.
func NewSQLiteStorage(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// OpenSQLiteStorage opens the store database at path and wraps it.
func OpenSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := OpenStoreDatabase(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStorage(db), nil
}

// LoadHistory returns the stored session list. Malformed or missing data
// is treated as empty history, never an error.
func (s *SQLiteStorage) LoadHistory() []ChatSession {
	raw, ok, err := kvGet(s.db, historyKey)
	if err != nil {
		LogWarn("Failed to read stored history: %v", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	var sessions []ChatSession
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		LogWarn("Stored history is malformed, starting fresh: %v", err)
		return nil
	}
	return sessions
}

// SaveHistory persists the session list as a JSON array.
func (s *SQLiteStorage) SaveHistory(sessions []ChatSession) error {
	if sessions == nil {
		sessions = []ChatSession{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return &StoreError{Op: "save", Key: historyKey, Err: err}
	}
	if err := kvSet(s.db, historyKey, string(data)); err != nil {
		return &StoreError{Op: "save", Key: historyKey, Err: err}
	}
	return nil
}

// LoadUser returns the user the stored history belongs to, if recorded.
func (s *SQLiteStorage) LoadUser() (string, bool) {
	user, ok, err := kvGet(s.db, userKey)
	if err != nil {
		LogWarn("Failed to read user binding: %v", err)
		return "", false
	}
	return user, ok && user != ""
}

// SaveUser records which user the stored history belongs to.
func (s *SQLiteStorage) SaveUser(userID string) error {
	if err := kvSet(s.db, userKey, userID); err != nil {
		return &StoreError{Op: "save", Key: userKey, Err: err}
	}
	return nil
}

// Clear removes both the history record and the user binding.
func (s *SQLiteStorage) Clear() error {
	if err := kvDelete(s.db, historyKey); err != nil {
		return &StoreError{Op: "clear", Key: historyKey, Err: err}
	}
	if err := kvDelete(s.db, userKey); err != nil {
		return &StoreError{Op: "clear", Key: userKey, Err: err}
	}
	return nil
}

// Close releases the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
