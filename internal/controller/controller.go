// Package controller owns the send/receive lifecycle of a chat turn: persist
// the user message, relay it to the workflow gateway, render the reply
// (streamed or instant), and hand any execution id to the monitor.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/FlowDeck/FlowDeck/internal/bus"
	"github.com/FlowDeck/FlowDeck/internal/chat"
	"github.com/FlowDeck/FlowDeck/internal/gateway"
)

// ErrBusy is returned when a send is attempted while another is outstanding.
var ErrBusy = errors.New("controller: a send is already in flight")

// Gateway is the outbound relay surface. Satisfied by *gateway.Client.
type Gateway interface {
	SendMessage(ctx context.Context, text string, files []gateway.Attachment) (*gateway.Reply, error)
	SessionID() string
}

// Tracker follows a workflow execution. Satisfied by *execution.Monitor.
type Tracker interface {
	Start(ctx context.Context, executionID string)
}

// Controller coordinates one chat turn at a time.
type Controller struct {
	chats    *chat.Store
	gw       Gateway
	tracker  Tracker
	bus      *bus.Bus
	streamer *Streamer
	render   func(string)

	mu       sync.Mutex
	inFlight bool
}

// New assembles a controller. render receives the progressively revealed
// assistant reply; tracker and b may be nil when execution monitoring or
// event fan-out is not wanted.
func New(chats *chat.Store, gw Gateway, tracker Tracker, b *bus.Bus, streamer *Streamer, render func(string)) *Controller {
	if render == nil {
		render = func(string) {}
	}
	return &Controller{
		chats:    chats,
		gw:       gw,
		tracker:  tracker,
		bus:      b,
		streamer: streamer,
		render:   render,
	}
}

// Send runs one full chat turn. The user message is persisted before the
// gateway is contacted, so a failed relay still leaves the user's words in
// the thread. Gateway failures are converted to a chat-visible system message
// rather than returned; only ErrBusy and persistence failures escape.
func (c *Controller) Send(ctx context.Context, text string, filePaths []string) error {
	if !c.acquire() {
		return ErrBusy
	}
	defer c.release()

	// A new send supersedes any reply still being revealed.
	c.streamer.Cancel()

	wire, refs, err := LoadAttachments(filePaths)
	if err != nil {
		return err
	}

	if err := c.chats.AddMessage(chat.Message{
		Role:    chat.RoleUser,
		Content: text,
		Files:   refs,
	}); err != nil {
		return err
	}
	c.publishTranscript(chat.RoleUser, text)

	reply, err := c.gw.SendMessage(ctx, text, wire)
	if err != nil {
		explanation := gateway.Explain(err)
		slog.Error("send failed", "error", err)
		if perr := c.chats.AddMessage(chat.Message{
			Role:    chat.RoleSystem,
			Content: explanation,
		}); perr != nil {
			return perr
		}
		c.render(explanation)
		return nil
	}

	if reply.ExecutionID != "" && c.tracker != nil {
		c.tracker.Start(ctx, reply.ExecutionID)
	}

	if err := c.chats.AddMessage(chat.Message{
		Role:    chat.RoleAssistant,
		Content: reply.Text,
	}); err != nil {
		return err
	}
	c.publishTranscript(chat.RoleAssistant, reply.Text)

	// Stream cancellation is not an error for the turn: the full reply is
	// already persisted, only its reveal was cut short.
	if err := c.streamer.Stream(ctx, reply.Text, c.render); err != nil {
		slog.Debug("stream canceled", "error", err)
	}
	return nil
}

func (c *Controller) publishTranscript(role, content string) {
	if c.bus == nil {
		return
	}
	c.bus.PublishTranscript(bus.TranscriptEvent{
		ThreadID:  c.chats.ActiveID(),
		SessionID: c.gw.SessionID(),
		Role:      role,
		Content:   content,
	})
}

func (c *Controller) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return false
	}
	c.inFlight = true
	return true
}

func (c *Controller) release() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}
