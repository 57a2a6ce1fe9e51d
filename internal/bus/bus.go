// Package bus provides the in-process event bus that decouples the chat
// controller, execution monitor, notifier and transcript mirror.
package bus

import (
	"sync"
	"time"
)

// Node statuses carried by execution events.
const (
	NodeRunning   = "running"
	NodeCompleted = "completed"
	NodeError     = "error"
)

// NodeStatus is the derived state of one workflow node.
type NodeStatus struct {
	Name            string `json:"name"`
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMS int64  `json:"execution_time_ms,omitempty"`
}

// ExecutionEvent is a snapshot of a monitored workflow execution. Cleared
// marks the final event after the grace window, when the rendered state
// should be dropped.
type ExecutionEvent struct {
	ExecutionID string       `json:"execution_id"`
	Finished    bool         `json:"finished"`
	Cleared     bool         `json:"cleared"`
	Error       string       `json:"error,omitempty"`
	Nodes       []NodeStatus `json:"nodes,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// TranscriptEvent is one appended chat message, as seen by the mirror.
type TranscriptEvent struct {
	ThreadID  string    `json:"thread_id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus fans events out to subscribers. Dispatch is synchronous and in
// subscription order; subscribers that block slow down the publisher.
type Bus struct {
	mu         sync.RWMutex
	execSubs   []func(ExecutionEvent)
	transcSubs []func(TranscriptEvent)
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// SubscribeExecution registers a callback for execution snapshots.
func (b *Bus) SubscribeExecution(fn func(ExecutionEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.execSubs = append(b.execSubs, fn)
}

// SubscribeTranscript registers a callback for transcript events.
func (b *Bus) SubscribeTranscript(fn func(TranscriptEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transcSubs = append(b.transcSubs, fn)
}

// PublishExecution delivers an execution snapshot to all subscribers.
func (b *Bus) PublishExecution(ev ExecutionEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.RLock()
	subs := make([]func(ExecutionEvent), len(b.execSubs))
	copy(subs, b.execSubs)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// PublishTranscript delivers a transcript event to all subscribers.
func (b *Bus) PublishTranscript(ev TranscriptEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.RLock()
	subs := make([]func(TranscriptEvent), len(b.transcSubs))
	copy(subs, b.transcSubs)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}
