// Package store implements the encrypted key-value store backing all durable
// local state. Values are JSON-serialized, sealed under the session key, and
// written to a local sqlite file. Reads fall back to legacy plaintext records
// so state written before encryption was introduced stays readable.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/FlowDeck/FlowDeck/internal/secrets"
)

// Well-known keys. MigrateAll sweeps exactly this list.
const (
	KeyChatSessions  = "chat_sessions"
	KeyGatewayConfig = "gateway_config"
	KeyGraphConfig   = "graph_config"
)

// KnownKeys lists every key the application persists.
var KnownKeys = []string{KeyChatSessions, KeyGatewayConfig, KeyGraphConfig}

// ErrNotFound is returned by GetItem when no usable value exists for a key.
var ErrNotFound = errors.New("store: key not found")

// Store is the encrypted key-value store.
type Store struct {
	db  *sql.DB
	key *secrets.SessionKey
}

// Open opens (or creates) the store file at dbPath.
func Open(dbPath string, key *secrets.SessionKey) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply store schema: %w", err)
	}
	return &Store{db: db, key: key}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetItem serializes v to JSON, seals it under the session key with a fresh
// nonce, and writes it.
func (s *Store) SetItem(key string, v any) error {
	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	sealed, err := s.key.Seal(plain)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	_, err = s.db.Exec(`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, sealed)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// GetItem reads and unmarshals the value for key into out. On any decryption
// failure it attempts to parse the stored value as legacy plain JSON before
// giving up; crypto errors never escape this path, only ErrNotFound does.
func (s *Store) GetItem(key string, out any) error {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}

	if secrets.IsSealed(raw) {
		plain, err := s.key.Open(raw)
		if err == nil {
			if err := json.Unmarshal(plain, out); err == nil {
				return nil
			}
		}
		slog.Warn("store: sealed value unreadable, trying legacy parse", "key", key)
	}
	// Legacy path: value written before encryption was introduced.
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return ErrNotFound
	}
	return nil
}

// RemoveItem deletes the value for key. Missing keys are not an error.
func (s *Store) RemoveItem(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// MigrateAll sweeps the known keys and re-writes any value still stored as
// plain JSON in sealed form. "Parses as a JSON object or array" is the proxy
// for "not yet encrypted"; sealed values are skipped by their envelope marker.
// Returns the number of migrated keys.
func (s *Store) MigrateAll() (int, error) {
	migrated := 0
	for _, key := range KnownKeys {
		var raw string
		err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return migrated, fmt.Errorf("scan %s: %w", key, err)
		}
		if secrets.IsSealed(raw) {
			continue
		}
		var probe any
		if err := json.Unmarshal([]byte(raw), &probe); err != nil {
			continue
		}
		switch probe.(type) {
		case map[string]any, []any:
		default:
			continue
		}
		sealed, err := s.key.Seal([]byte(raw))
		if err != nil {
			return migrated, fmt.Errorf("seal %s: %w", key, err)
		}
		if _, err := s.db.Exec(`UPDATE kv SET value = ?, updated_at = CURRENT_TIMESTAMP WHERE key = ?`, sealed, key); err != nil {
			return migrated, fmt.Errorf("rewrite %s: %w", key, err)
		}
		migrated++
		slog.Info("store: migrated legacy value", "key", key)
	}
	return migrated, nil
}

// putRaw writes a raw value without sealing. Test hook for legacy records.
func (s *Store) putRaw(key, raw string) error {
	_, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, raw)
	return err
}
