// Package execution monitors workflow executions: it polls the engine's
// status endpoint until an execution finishes and publishes per-node status
// snapshots on the event bus.
package execution

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/FlowDeck/FlowDeck/internal/bus"
	"github.com/FlowDeck/FlowDeck/internal/gateway"
)

const (
	defaultInterval = 1 * time.Second
	defaultGrace    = 5 * time.Second
)

// Fetcher retrieves execution status records. Satisfied by *gateway.Client.
type Fetcher interface {
	FetchExecution(ctx context.Context, executionID string) (*gateway.ExecutionRecord, error)
}

// Monitor tracks at most one execution at a time. Starting a new one cancels
// the previous poll unconditionally; there is no queueing of overlapping
// executions.
type Monitor struct {
	fetcher  Fetcher
	bus      *bus.Bus
	interval time.Duration
	grace    time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor with the standard 1s poll interval and 5s
// grace window.
func NewMonitor(f Fetcher, b *bus.Bus) *Monitor {
	return &Monitor{fetcher: f, bus: b, interval: defaultInterval, grace: defaultGrace}
}

// NewMonitorWithIntervals creates a monitor with explicit timings. Used by
// tests and by callers that tune polling.
func NewMonitorWithIntervals(f Fetcher, b *bus.Bus, interval, grace time.Duration) *Monitor {
	return &Monitor{fetcher: f, bus: b, interval: interval, grace: grace}
}

// Start begins polling executionID, canceling any previous poll.
func (m *Monitor) Start(ctx context.Context, executionID string) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	pollCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		m.poll(pollCtx, executionID)
	}()
}

// Stop cancels the active poll, if any, and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// poll runs the Polling → Finished state machine for one execution: an
// immediate fetch, then a fixed-interval loop until the record reports
// finished or stopped, then the grace window, then a clearing event.
func (m *Monitor) poll(ctx context.Context, executionID string) {
	if m.fetchOnce(ctx, executionID) {
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.fetchOnce(ctx, executionID) {
				return
			}
		}
	}
}

// fetchOnce performs one status fetch and reports whether polling is over.
func (m *Monitor) fetchOnce(ctx context.Context, executionID string) bool {
	rec, err := m.fetcher.FetchExecution(ctx, executionID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		if isPolicyRejection(err) {
			// Retrying is futile without a server-side configuration change.
			slog.Warn("execution: policy rejection, polling stopped", "execution_id", executionID, "error", err)
			m.bus.PublishExecution(bus.ExecutionEvent{
				ExecutionID: executionID,
				Error:       "Status endpoint rejected the request (cross-origin policy). Polling stopped.",
				Cleared:     true,
			})
			return true
		}
		slog.Warn("execution: status fetch failed, will retry", "execution_id", executionID, "error", err)
		return false
	}

	done := rec.Finished || rec.Stopped()
	m.bus.PublishExecution(bus.ExecutionEvent{
		ExecutionID: executionID,
		Finished:    done,
		Nodes:       deriveNodes(rec),
	})
	if !done {
		return false
	}

	// Hold the last rendered state for the grace window, then clear.
	select {
	case <-ctx.Done():
	case <-time.After(m.grace):
	}
	m.bus.PublishExecution(bus.ExecutionEvent{
		ExecutionID: executionID,
		Finished:    true,
		Cleared:     true,
	})
	return true
}

// deriveNodes maps per-node run data to display statuses: error if the last
// recorded run carries an error payload, running while the execution is
// neither finished nor stopped, completed otherwise. Node order is stable.
func deriveNodes(rec *gateway.ExecutionRecord) []bus.NodeStatus {
	run := rec.Data.ResultData.RunData
	if len(run) == 0 {
		return nil
	}
	names := make([]string, 0, len(run))
	for name := range run {
		names = append(names, name)
	}
	sort.Strings(names)

	inFlight := !rec.Finished && !rec.Stopped()
	out := make([]bus.NodeStatus, 0, len(names))
	for _, name := range names {
		attempts := run[name]
		ns := bus.NodeStatus{Name: name, Status: bus.NodeCompleted}
		if len(attempts) > 0 {
			ns.ExecutionTimeMS = attempts[len(attempts)-1].ExecutionTime
		}
		if raw := gateway.LastError(attempts); raw != nil {
			ns.Status = bus.NodeError
			ns.Error = errorMessage(raw)
		} else if inFlight {
			ns.Status = bus.NodeRunning
		}
		out = append(out, ns)
	}
	return out
}

func errorMessage(raw json.RawMessage) string {
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

// isPolicyRejection heuristically detects a cross-origin policy rejection
// from the error text. Anything matching is treated as permanently fatal for
// the current polling session.
func isPolicyRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"cors", "cross-origin", "access-control-allow", "blocked by policy"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
