package chat

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/FlowDeck/FlowDeck/internal/store"
)

// fakeKV keeps persisted values in memory and counts writes.
type fakeKV struct {
	data   map[string][]byte
	writes int
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string][]byte{}} }

func (f *fakeKV) SetItem(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.data[key] = data
	f.writes++
	return nil
}

func (f *fakeKV) GetItem(key string, out any) error {
	data, ok := f.data[key]
	if !ok {
		return store.ErrNotFound
	}
	return json.Unmarshal(data, out)
}

func TestNewStore_StartsWithOneActiveThread(t *testing.T) {
	s, err := NewStore(newFakeKV())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	active := s.Active()
	if active == nil {
		t.Fatalf("no active thread on fresh store")
	}
	if active.Title != DefaultTitle {
		t.Fatalf("fresh thread title = %q, want %q", active.Title, DefaultTitle)
	}
	if len(active.Messages) != 0 {
		t.Fatalf("fresh thread has %d messages", len(active.Messages))
	}
}

func TestAddMessage_TitleFromFirstUserMessage(t *testing.T) {
	s, err := NewStore(newFakeKV())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	// A system message first must not set the title.
	if err := s.AddMessage(Message{Role: RoleSystem, Content: "connected"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if s.Active().Title != DefaultTitle {
		t.Fatalf("system message set the title: %q", s.Active().Title)
	}

	if err := s.AddMessage(Message{Role: RoleUser, Content: "How do I deploy?"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if got := s.Active().Title; got != "How do I deploy?" {
		t.Fatalf("title = %q", got)
	}

	// A second user message leaves the title alone.
	if err := s.AddMessage(Message{Role: RoleUser, Content: "Different topic"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if got := s.Active().Title; got != "How do I deploy?" {
		t.Fatalf("second user message changed the title to %q", got)
	}
}

func TestAddMessage_TitleTruncation(t *testing.T) {
	s, err := NewStore(newFakeKV())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	long := strings.Repeat("a", 45)
	if err := s.AddMessage(Message{Role: RoleUser, Content: long}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	want := strings.Repeat("a", 30) + "..."
	if got := s.Active().Title; got != want {
		t.Fatalf("truncated title = %q, want %q", got, want)
	}
}

func TestAddMessage_StampsTimestamp(t *testing.T) {
	s, err := NewStore(newFakeKV())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.AddMessage(Message{Role: RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	msgs := s.Active().Messages
	if msgs[len(msgs)-1].Timestamp.IsZero() {
		t.Fatalf("appended message has zero timestamp")
	}
}

func TestSwitchChat(t *testing.T) {
	s, err := NewStore(newFakeKV())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	first := s.ActiveID()
	second, err := s.CreateNewChat()
	if err != nil {
		t.Fatalf("CreateNewChat: %v", err)
	}
	if s.ActiveID() != second.ID {
		t.Fatalf("new chat not active")
	}
	if err := s.SwitchChat(first); err != nil {
		t.Fatalf("SwitchChat: %v", err)
	}
	if s.ActiveID() != first {
		t.Fatalf("SwitchChat did not move the active pointer")
	}
	if err := s.SwitchChat("missing"); err == nil {
		t.Fatalf("SwitchChat to unknown id succeeded")
	}
}

func TestDeleteChat_ActiveFallsBack(t *testing.T) {
	s, err := NewStore(newFakeKV())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	first := s.ActiveID()
	second, err := s.CreateNewChat()
	if err != nil {
		t.Fatalf("CreateNewChat: %v", err)
	}

	// Deleting the active thread falls back to the next one.
	if err := s.DeleteChat(second.ID); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if s.ActiveID() != first {
		t.Fatalf("active after delete = %s, want %s", s.ActiveID(), first)
	}

	// Deleting the last thread creates a fresh one.
	if err := s.DeleteChat(first); err != nil {
		t.Fatalf("DeleteChat last: %v", err)
	}
	if s.Active() == nil || s.ActiveID() == first {
		t.Fatalf("no fresh thread after deleting the last one")
	}
	if len(s.List()) != 1 {
		t.Fatalf("thread count = %d, want 1", len(s.List()))
	}
}

func TestNewStore_LoadsPersistedThreads(t *testing.T) {
	kv := newFakeKV()
	s1, err := NewStore(kv)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s1.AddMessage(Message{Role: RoleUser, Content: "persist me"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	s2, err := NewStore(kv)
	if err != nil {
		t.Fatalf("NewStore reload: %v", err)
	}
	active := s2.Active()
	if active == nil || active.Title != "persist me" {
		t.Fatalf("reloaded active thread = %+v", active)
	}
	if len(active.Messages) != 1 || active.Messages[0].Content != "persist me" {
		t.Fatalf("reloaded messages = %+v", active.Messages)
	}
}

func TestMutations_PersistBeforeReturning(t *testing.T) {
	kv := newFakeKV()
	s, err := NewStore(kv)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	before := kv.writes
	if err := s.AddMessage(Message{Role: RoleUser, Content: "x"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if kv.writes != before+1 {
		t.Fatalf("AddMessage wrote %d times, want 1", kv.writes-before)
	}
}

func TestDeleteChat_Unknown(t *testing.T) {
	s, err := NewStore(newFakeKV())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.DeleteChat("missing"); err == nil {
		t.Fatalf("DeleteChat unknown id succeeded")
	}
}
