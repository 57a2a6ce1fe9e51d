// Package chat maintains the ordered collection of chat threads and their
// messages, persisted through the encrypted store.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FlowDeck/FlowDeck/internal/store"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

const (
	// DefaultTitle is the title of a thread before its first user message.
	DefaultTitle = "New Chat"
	// titleCap bounds derived titles; longer first messages are truncated
	// with a marker.
	titleCap    = 30
	titleMarker = "..."
)

// FileRef describes an attachment carried by a message. The attachment data
// itself travels on the wire, not in the persisted thread.
type FileRef struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Message is one chat message. Immutable once appended.
type Message struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Files     []FileRef       `json:"files,omitempty"`
	Preview   json.RawMessage `json:"preview,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Thread is a persisted, named, ordered sequence of messages.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KV is the persistence surface the store needs. Satisfied by *store.Store.
type KV interface {
	SetItem(key string, v any) error
	GetItem(key string, out any) error
}

// Store owns the thread list and the active-thread pointer.
type Store struct {
	mu       sync.Mutex
	kv       KV
	threads  []*Thread
	activeID string
	now      func() time.Time
}

// NewStore loads persisted threads (if any) and returns a ready store.
// A fresh store starts with one empty active thread.
func NewStore(kv KV) (*Store, error) {
	s := &Store{kv: kv, now: time.Now}
	var persisted []*Thread
	err := kv.GetItem(store.KeyChatSessions, &persisted)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load chat sessions: %w", err)
	}
	s.threads = persisted
	if len(s.threads) == 0 {
		if _, err := s.CreateNewChat(); err != nil {
			return nil, err
		}
	} else {
		s.activeID = s.threads[0].ID
	}
	return s, nil
}

// CreateNewChat allocates a new thread, prepends it, makes it active, and
// persists before returning.
func (s *Store) CreateNewChat() (*Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

func (s *Store) createLocked() (*Thread, error) {
	now := s.now()
	t := &Thread{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.threads = append([]*Thread{t}, s.threads...)
	s.activeID = t.ID
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return t, nil
}

// AddMessage appends msg to the active thread, stamping its timestamp. The
// thread's first user message sets the title.
func (s *Store) AddMessage(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.activeLocked()
	if t == nil {
		var err error
		t, err = s.createLocked()
		if err != nil {
			return err
		}
	}

	msg.Timestamp = s.now()
	if msg.Role == RoleUser && t.Title == DefaultTitle && firstUserIndex(t.Messages) < 0 {
		t.Title = deriveTitle(msg.Content)
	}
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = msg.Timestamp
	return s.persistLocked()
}

// Active returns the active thread, or nil if none exists.
func (s *Store) Active() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

// ActiveID returns the active thread id.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// List returns the threads in order, newest first.
func (s *Store) List() []*Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Thread, len(s.threads))
	copy(out, s.threads)
	return out
}

// SwitchChat makes the thread with the given id active.
func (s *Store) SwitchChat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.threads {
		if t.ID == id {
			s.activeID = id
			return nil
		}
	}
	return fmt.Errorf("chat: no thread %s", id)
}

// DeleteChat removes the thread with the given id. Deleting the active thread
// falls back to the next available thread, or creates a fresh one if none
// remain.
func (s *Store) DeleteChat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, t := range s.threads {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("chat: no thread %s", id)
	}
	s.threads = append(s.threads[:idx], s.threads[idx+1:]...)

	if s.activeID == id {
		if len(s.threads) > 0 {
			s.activeID = s.threads[0].ID
		} else {
			_, err := s.createLocked()
			return err
		}
	}
	return s.persistLocked()
}

func (s *Store) activeLocked() *Thread {
	for _, t := range s.threads {
		if t.ID == s.activeID {
			return t
		}
	}
	return nil
}

// persistLocked writes the full thread list. There is no transaction boundary
// around list mutation + persist; a crash in between loses the latest change.
func (s *Store) persistLocked() error {
	return s.kv.SetItem(store.KeyChatSessions, s.threads)
}

func firstUserIndex(msgs []Message) int {
	for i, m := range msgs {
		if m.Role == RoleUser {
			return i
		}
	}
	return -1
}

func deriveTitle(content string) string {
	title := strings.TrimSpace(content)
	if title == "" {
		return DefaultTitle
	}
	runes := []rune(title)
	if len(runes) <= titleCap {
		return title
	}
	return string(runes[:titleCap]) + titleMarker
}
