package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// AccessTokenKey is the credential key holding the API bearer token.
const AccessTokenKey = "accessToken"

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("credential not found")

// CredentialStore is a small key/value store for secrets.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SQLiteCredentialStore implements CredentialStore backed by SQLite.
type SQLiteCredentialStore struct {
	db *DB
}

// NewSQLiteCredentialStore creates a credential store using the given database.
func NewSQLiteCredentialStore(db *DB) *SQLiteCredentialStore {
	return &SQLiteCredentialStore{db: db}
}

func (s *SQLiteCredentialStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.sql.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading credential %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteCredentialStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("writing credential %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteCredentialStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting credential %s: %w", key, err)
	}
	return nil
}

// MemoryCredentialStore is an in-memory CredentialStore implementation.
type MemoryCredentialStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryCredentialStore creates an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{values: make(map[string]string)}
}

func (s *MemoryCredentialStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryCredentialStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryCredentialStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// AccessToken reads the bearer token, returning "" when none is stored.
func AccessToken(ctx context.Context, s CredentialStore) (string, error) {
	tok, err := s.Get(ctx, AccessTokenKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return tok, err
}

// SetAccessToken stores the bearer token, or deletes it when token is empty.
func SetAccessToken(ctx context.Context, s CredentialStore, token string) error {
	if token == "" {
		return s.Delete(ctx, AccessTokenKey)
	}
	return s.Set(ctx, AccessTokenKey, token)
}
