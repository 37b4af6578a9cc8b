package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// Storage keys used by the session store fixture
const (
	HistoryKey = "assistant.chatHistory"
	UserKey    = "assistant.chatHistoryUser"
)

// CreateStoreFixture creates a history store database fixture at dbPath,
// pre-seeded with the given raw history JSON and user binding. Empty
// values are not inserted.
func CreateStoreFixture(t *testing.T, dbPath, historyJSON, user string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS assistantKV (
		key TEXT PRIMARY KEY,
		value TEXT
	)`
	if _, err := db.Exec(createTableSQL); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	insertSQL := "INSERT INTO assistantKV (key, value) VALUES (?, ?)"
	if historyJSON != "" {
		if _, err := db.Exec(insertSQL, HistoryKey, historyJSON); err != nil {
			t.Fatalf("Failed to insert history: %v", err)
		}
	}
	if user != "" {
		if _, err := db.Exec(insertSQL, UserKey, user); err != nil {
			t.Fatalf("Failed to insert user binding: %v", err)
		}
	}
}

// ReadStoreValue reads one key back out of a store fixture.
func ReadStoreValue(t *testing.T, dbPath, key string) (string, bool) {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	var value sql.NullString
	err = db.QueryRow("SELECT value FROM assistantKV WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		t.Fatalf("Failed to read key %q: %v", key, err)
	}
	return value.String, value.Valid
}
