package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// assistantKV is the single key-value table backing the session store.
// It holds exactly two records: the session history JSON array and the
// user-binding string.
const createKVTableSQL = `
CREATE TABLE IF NOT EXISTS assistantKV (
	key TEXT PRIMARY KEY,
	value TEXT
)`

// OpenStoreDatabase opens (creating if needed) the SQLite database that
// backs local chat history.
func OpenStoreDatabase(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &StoreError{Op: "open", Key: path, Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Op: "open", Key: path, Err: err}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &StoreError{Op: "open", Key: path, Err: fmt.Errorf("database ping failed: %w", err)}
	}

	if _, err := db.Exec(createKVTableSQL); err != nil {
		_ = db.Close()
		return nil, &StoreError{Op: "open", Key: path, Err: err}
	}

	return db, nil
}

func kvGet(db *sql.DB, key string) (string, bool, error) {
	var value sql.NullString
	err := db.QueryRow("SELECT value FROM assistantKV WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query failed: %w", err)
	}
	if !value.Valid {
		return "", false, nil
	}
	return value.String, true, nil
}

func kvSet(db *sql.DB, key, value string) error {
	_, err := db.Exec(
		"INSERT INTO assistantKV (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

func kvDelete(db *sql.DB, key string) error {
	if _, err := db.Exec("DELETE FROM assistantKV WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}
