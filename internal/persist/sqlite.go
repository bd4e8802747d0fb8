package persist

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS picker_kv (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
)`

// SQLiteStorage keeps picker state for many origins in one database.
// Each origin is a namespace.
type SQLiteStorage struct {
	db        *sql.DB
	namespace string
	owned     bool
}

// OpenSQLite opens (or creates) the database at path and returns the
// storage for namespace. Close releases the database.
func OpenSQLite(path, namespace string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("persist: %s: %w", pragma, err)
		}
	}
	s, err := NewSQLiteStorage(db, namespace)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLiteStorage uses an already open database. The caller keeps
// ownership of db.
func NewSQLiteStorage(db *sql.DB, namespace string) (*SQLiteStorage, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("persist: create schema: %w", err)
	}
	return &SQLiteStorage{db: db, namespace: namespace}, nil
}

// Namespace returns the origin this storage is scoped to.
func (s *SQLiteStorage) Namespace() string { return s.namespace }

func (s *SQLiteStorage) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(
		`SELECT value FROM picker_kv WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("persist: get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteStorage) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO picker_kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.namespace, key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("persist: set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM picker_kv WHERE namespace = ? AND key = ?`, s.namespace, key); err != nil {
		return fmt.Errorf("persist: remove %s: %w", key, err)
	}
	return nil
}

// Namespaces lists every origin with stored state.
func (s *SQLiteStorage) Namespaces() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT namespace FROM picker_kv ORDER BY namespace`)
	if err != nil {
		return nil, fmt.Errorf("persist: list namespaces: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// Close closes the database when OpenSQLite opened it.
func (s *SQLiteStorage) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
