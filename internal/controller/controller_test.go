package controller

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FlowDeck/FlowDeck/internal/bus"
	"github.com/FlowDeck/FlowDeck/internal/chat"
	"github.com/FlowDeck/FlowDeck/internal/gateway"
	"github.com/FlowDeck/FlowDeck/internal/store"
)

type fakeKV struct {
	data map[string]json.RawMessage
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string]json.RawMessage{}} }

func (f *fakeKV) SetItem(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *fakeKV) GetItem(key string, out any) error {
	raw, ok := f.data[key]
	if !ok {
		return store.ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

type fakeGateway struct {
	reply   *gateway.Reply
	err     error
	sent    []string
	files   [][]gateway.Attachment
	entered chan struct{}
	blockOn chan struct{}
}

func (f *fakeGateway) SendMessage(ctx context.Context, text string, files []gateway.Attachment) (*gateway.Reply, error) {
	if f.entered != nil {
		close(f.entered)
		f.entered = nil
	}
	if f.blockOn != nil {
		<-f.blockOn
	}
	f.sent = append(f.sent, text)
	f.files = append(f.files, files)
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeGateway) SessionID() string { return "fd_test" }

type fakeTracker struct {
	started []string
}

func (f *fakeTracker) Start(ctx context.Context, executionID string) {
	f.started = append(f.started, executionID)
}

func newTestController(t *testing.T, gw Gateway, tracker Tracker, b *bus.Bus, render func(string)) (*Controller, *chat.Store) {
	t.Helper()
	chats, err := chat.NewStore(newFakeKV())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return New(chats, gw, tracker, b, NewStreamer(0), render), chats
}

func TestSend_SuccessfulTurn(t *testing.T) {
	gw := &fakeGateway{reply: &gateway.Reply{Text: "Hi there"}}
	var rendered string
	c, chats := newTestController(t, gw, nil, nil, func(v string) { rendered = v })

	if err := c.Send(context.Background(), "Hello", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs := chats.Active().Messages
	if len(msgs) != 2 {
		t.Fatalf("message count = %d, want user + assistant", len(msgs))
	}
	if msgs[0].Role != chat.RoleUser || msgs[0].Content != "Hello" {
		t.Fatalf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != chat.RoleAssistant || msgs[1].Content != "Hi there" {
		t.Fatalf("second message = %+v", msgs[1])
	}
	if rendered != "Hi there" {
		t.Fatalf("rendered = %q", rendered)
	}
}

func TestSend_GatewayErrorBecomesChatMessage(t *testing.T) {
	gw := &fakeGateway{err: &gateway.StatusError{Code: 404}}
	var rendered string
	c, chats := newTestController(t, gw, nil, nil, func(v string) { rendered = v })

	if err := c.Send(context.Background(), "Hello", nil); err != nil {
		t.Fatalf("Send returned error instead of chat-visible message: %v", err)
	}

	msgs := chats.Active().Messages
	if len(msgs) != 2 {
		t.Fatalf("message count = %d, want user + system", len(msgs))
	}
	if msgs[0].Role != chat.RoleUser {
		t.Fatalf("user message missing despite gateway failure: %+v", msgs[0])
	}
	if msgs[1].Role != chat.RoleSystem || msgs[1].Content == "" {
		t.Fatalf("system message = %+v", msgs[1])
	}
	if rendered != msgs[1].Content {
		t.Fatalf("rendered %q, persisted %q", rendered, msgs[1].Content)
	}
}

func TestSend_ExecutionIDStartsTracker(t *testing.T) {
	gw := &fakeGateway{reply: &gateway.Reply{Text: "working on it", ExecutionID: "ex-42"}}
	tracker := &fakeTracker{}
	c, _ := newTestController(t, gw, tracker, nil, nil)

	if err := c.Send(context.Background(), "run it", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(tracker.started) != 1 || tracker.started[0] != "ex-42" {
		t.Fatalf("tracker.started = %v", tracker.started)
	}
}

func TestSend_SecondSendWhileInFlight(t *testing.T) {
	gw := &fakeGateway{
		reply:   &gateway.Reply{Text: "ok"},
		entered: make(chan struct{}),
		blockOn: make(chan struct{}),
	}
	entered := gw.entered
	c, _ := newTestController(t, gw, nil, nil, nil)

	errc := make(chan error, 1)
	go func() { errc <- c.Send(context.Background(), "first", nil) }()
	<-entered

	if err := c.Send(context.Background(), "second", nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("second send was not rejected: %v", err)
	}
	close(gw.blockOn)
	if err := <-errc; err != nil {
		t.Fatalf("first send: %v", err)
	}
	if len(gw.sent) != 1 || gw.sent[0] != "first" {
		t.Fatalf("gateway saw %v", gw.sent)
	}
}

func TestSend_PublishesTranscriptEvents(t *testing.T) {
	gw := &fakeGateway{reply: &gateway.Reply{Text: "pong"}}
	b := bus.New()
	var events []bus.TranscriptEvent
	b.SubscribeTranscript(func(ev bus.TranscriptEvent) { events = append(events, ev) })
	c, _ := newTestController(t, gw, nil, b, nil)

	if err := c.Send(context.Background(), "ping", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("event count = %d", len(events))
	}
	if events[0].Role != chat.RoleUser || events[0].Content != "ping" {
		t.Fatalf("events[0] = %+v", events[0])
	}
	if events[1].Role != chat.RoleAssistant || events[1].Content != "pong" {
		t.Fatalf("events[1] = %+v", events[1])
	}
	if events[0].SessionID != "fd_test" {
		t.Fatalf("session id = %q", events[0].SessionID)
	}
}

func TestSend_AttachmentsTravelOnWire(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hello file"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	gw := &fakeGateway{reply: &gateway.Reply{Text: "got it"}}
	c, chats := newTestController(t, gw, nil, nil, nil)
	if err := c.Send(context.Background(), "see attached", []string{path}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(gw.files[0]) != 1 {
		t.Fatalf("wire attachments = %v", gw.files[0])
	}
	att := gw.files[0][0]
	if att.Name != "note.txt" || !strings.HasPrefix(att.Type, "text/plain") {
		t.Fatalf("attachment = %+v", att)
	}
	decoded, err := base64.StdEncoding.DecodeString(att.Data)
	if err != nil || string(decoded) != "hello file" {
		t.Fatalf("attachment data round-trip: %q %v", decoded, err)
	}

	refs := chats.Active().Messages[0].Files
	if len(refs) != 1 || refs[0].Name != "note.txt" || refs[0].Size != int64(len("hello file")) {
		t.Fatalf("persisted refs = %+v", refs)
	}
}

func TestLoadAttachments_MissingFile(t *testing.T) {
	if _, _, err := LoadAttachments([]string{"/no/such/file"}); err == nil {
		t.Fatalf("missing attachment accepted")
	}
}
