// Package storage persists player state in a local SQLite database.
//
// The layout is a single key-value table: the full catalog snapshot is
// stored as one JSON document, and the auth token lives under its own
// key so it can be read without decoding the snapshot.
package storage

import (
	"database/sql"
	"encoding/json"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

const (
	stateKey = "player-storage"
	tokenKey = "auth-token"
)

// Store is a SQLite-backed key-value store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Single writer; the kv schema has no concurrent-write use case.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}

	return &Store{db: db}, nil
}

// SaveState writes the state document under the snapshot key.
func (s *Store) SaveState(state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to encode state")
	}
	return s.put(stateKey, string(data))
}

// LoadState reads the persisted state document into out. It returns
// (false, nil) when no snapshot has been written yet.
func (s *Store) LoadState(out any) (bool, error) {
	value, ok, err := s.get(stateKey)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, errors.Wrap(err, "failed to decode state")
	}
	return true, nil
}

// SaveToken writes the auth token under its dedicated key.
func (s *Store) SaveToken(token string) error {
	return s.put(tokenKey, token)
}

// LoadToken reads the auth token. An empty string means no token is
// stored.
func (s *Store) LoadToken() (string, error) {
	value, ok, err := s.get(tokenKey)
	if err != nil || !ok {
		return "", err
	}
	return value, nil
}

// WipeAll removes every persisted key. Used on auth expiry, where
// partial state must not survive.
func (s *Store) WipeAll() error {
	if _, err := s.db.Exec(`DELETE FROM kv`); err != nil {
		return errors.Wrap(err, "failed to wipe storage")
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to write key %s", key)
	}
	return nil
}

func (s *Store) get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to read key %s", key)
	}
	return value, true, nil
}
