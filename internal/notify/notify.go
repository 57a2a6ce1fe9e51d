// Package notify posts a Slack incoming-webhook message when a tracked
// workflow execution finishes, so long-running workflows can be watched
// without keeping the terminal in view.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/FlowDeck/FlowDeck/internal/bus"
	"github.com/FlowDeck/FlowDeck/internal/config"
)

const postTimeout = 10 * time.Second

// poster sends one webhook message. Split out for tests.
type poster func(ctx context.Context, url string, msg *slack.WebhookMessage) error

// Notifier watches execution events and announces completions.
type Notifier struct {
	cfg  config.NotifyConfig
	post poster
}

// New creates a notifier. It does nothing until attached to a bus.
func New(cfg config.NotifyConfig) *Notifier {
	return &Notifier{cfg: cfg, post: slack.PostWebhookContext}
}

// Attach subscribes the notifier to execution events. Only the completion
// snapshot triggers a message; intermediate polls and the grace-window clear
// are skipped.
func (n *Notifier) Attach(b *bus.Bus) {
	if !n.cfg.Enabled || strings.TrimSpace(n.cfg.SlackWebhookURL) == "" {
		return
	}
	b.SubscribeExecution(func(ev bus.ExecutionEvent) {
		// Completion snapshots and terminal errors notify; intermediate
		// polls and the grace-window clear do not.
		terminalError := ev.Error != ""
		completed := ev.Finished && !ev.Cleared
		if !completed && !terminalError {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
		defer cancel()
		if err := n.post(ctx, n.cfg.SlackWebhookURL, message(ev)); err != nil {
			slog.Warn("notify: webhook post failed", "execution_id", ev.ExecutionID, "error", err)
		}
	})
}

func message(ev bus.ExecutionEvent) *slack.WebhookMessage {
	failed := 0
	for _, node := range ev.Nodes {
		if node.Status == bus.NodeError {
			failed++
		}
	}
	text := fmt.Sprintf("Workflow execution %s finished (%d nodes)", ev.ExecutionID, len(ev.Nodes))
	if failed > 0 {
		text = fmt.Sprintf("Workflow execution %s finished with %d failed node(s)", ev.ExecutionID, failed)
	}
	if !ev.Finished {
		text = fmt.Sprintf("Workflow execution %s stopped", ev.ExecutionID)
	}
	if ev.Error != "" {
		text += "\n> " + ev.Error
	}
	return &slack.WebhookMessage{Text: text}
}
