package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/FlowDeck/FlowDeck/internal/secrets"
)

func newTestStore(t *testing.T) (*Store, *secrets.SessionKey) {
	t.Helper()
	key, err := secrets.NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey: %v", err)
	}
	s, err := Open(filepath.Join(t.TempDir(), "state.db"), key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, key
}

func TestSetGetItem_Roundtrip(t *testing.T) {
	s, _ := newTestStore(t)

	in := map[string]any{"threads": []any{map[string]any{"id": "t1", "title": "hello"}}}
	if err := s.SetItem(KeyChatSessions, in); err != nil {
		t.Fatalf("SetItem: %v", err)
	}

	var out map[string]any
	if err := s.GetItem(KeyChatSessions, &out); err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("roundtrip mismatch:\n got %#v\nwant %#v", out, in)
	}
}

func TestGetItem_Missing(t *testing.T) {
	s, _ := newTestStore(t)
	var out map[string]any
	if err := s.GetItem("nope", &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetItem missing key: err = %v, want ErrNotFound", err)
	}
}

func TestGetItem_ValueAtRestIsSealed(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.SetItem(KeyGatewayConfig, map[string]string{"apiKey": "secret"}); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	var raw string
	if err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, KeyGatewayConfig).Scan(&raw); err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if !secrets.IsSealed(raw) {
		t.Fatalf("stored value not sealed: %q", raw)
	}
}

func TestGetItem_WrongSessionKeyFailsClosed(t *testing.T) {
	key1, _ := secrets.NewSessionKey()
	dir := t.TempDir()
	s1, err := Open(filepath.Join(dir, "state.db"), key1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.SetItem(KeyChatSessions, map[string]string{"a": "b"}); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	s1.Close()

	// Reopen under a different session key: the sealed value must not decode,
	// and must not be misread as legacy plaintext either.
	key2, _ := secrets.NewSessionKey()
	s2, err := Open(filepath.Join(dir, "state.db"), key2)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	var out map[string]string
	if err := s2.GetItem(KeyChatSessions, &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetItem under wrong key: err = %v, want ErrNotFound", err)
	}
}

func TestGetItem_LegacyPlaintextFallback(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.putRaw(KeyGraphConfig, `{"baseUrl":"http://old:7474","username":"neo4j"}`); err != nil {
		t.Fatalf("putRaw: %v", err)
	}

	var out map[string]string
	if err := s.GetItem(KeyGraphConfig, &out); err != nil {
		t.Fatalf("GetItem legacy: %v", err)
	}
	if out["baseUrl"] != "http://old:7474" {
		t.Fatalf("legacy value = %#v", out)
	}
}

func TestMigrateAll(t *testing.T) {
	s, _ := newTestStore(t)

	// One legacy object, one already-sealed value, one non-JSON string.
	if err := s.putRaw(KeyGraphConfig, `{"baseUrl":"http://old:7474"}`); err != nil {
		t.Fatalf("putRaw: %v", err)
	}
	if err := s.SetItem(KeyGatewayConfig, map[string]string{"apiKey": "k"}); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if err := s.putRaw(KeyChatSessions, `not json at all`); err != nil {
		t.Fatalf("putRaw: %v", err)
	}

	n, err := s.MigrateAll()
	if err != nil {
		t.Fatalf("MigrateAll: %v", err)
	}
	if n != 1 {
		t.Fatalf("MigrateAll migrated %d keys, want 1", n)
	}

	var raw string
	if err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, KeyGraphConfig).Scan(&raw); err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if !secrets.IsSealed(raw) {
		t.Fatalf("migrated value not sealed: %q", raw)
	}
	var out map[string]string
	if err := s.GetItem(KeyGraphConfig, &out); err != nil {
		t.Fatalf("GetItem after migrate: %v", err)
	}
	if out["baseUrl"] != "http://old:7474" {
		t.Fatalf("migrated value = %#v", out)
	}

	// Second sweep is a no-op.
	n, err = s.MigrateAll()
	if err != nil {
		t.Fatalf("MigrateAll second sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep migrated %d keys, want 0", n)
	}
}

func TestRemoveItem(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.SetItem(KeyChatSessions, []string{"x"}); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if err := s.RemoveItem(KeyChatSessions); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	var out []string
	if err := s.GetItem(KeyChatSessions, &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetItem after remove: err = %v, want ErrNotFound", err)
	}
	if err := s.RemoveItem("never-existed"); err != nil {
		t.Fatalf("RemoveItem missing key: %v", err)
	}
}
