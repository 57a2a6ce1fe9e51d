// Package gateway implements the workflow engine client: it posts chat
// messages to the configured webhook, normalizes the engine's heterogeneous
// response shapes, and fetches execution status records for the monitor.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FlowDeck/FlowDeck/internal/config"
)

// apiKeyHeader is the optional engine API key header.
const apiKeyHeader = "X-N8N-API-KEY"

// replyFields is the field-priority order for extracting the reply text,
// checked first at the top level and then inside a nested "data" object.
var replyFields = []string{"output", "reply", "message"}

// Attachment is one file carried on a send, base64-encoded.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// Reply is the normalized webhook response.
type Reply struct {
	Text        string
	ExecutionID string
}

// Client talks to the workflow engine. The session id is generated once per
// process and reused for every send, so the downstream workflow can correlate
// a conversation. No timeout is enforced at this layer; callers bound sends
// through ctx.
type Client struct {
	cfg        config.GatewayConfig
	httpClient *http.Client
	sessionID  string
}

// NewClient creates a gateway client for the given config.
func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		sessionID:  fmt.Sprintf("fd_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8]),
	}
}

// SessionID returns the per-process conversation id.
func (c *Client) SessionID() string { return c.sessionID }

// SendMessage posts text (and any attachments) to the webhook and returns the
// normalized reply.
func (c *Client) SendMessage(ctx context.Context, text string, files []Attachment) (*Reply, error) {
	if strings.TrimSpace(c.cfg.WebhookURL) == "" {
		return nil, fmt.Errorf("gateway: webhook URL not configured")
	}
	if files == nil {
		files = []Attachment{}
	}
	body, err := json.Marshal(map[string]any{
		"action":    "sendMessage",
		"sessionId": c.sessionID,
		"chatInput": text,
		"message":   text,
		"files":     files,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		req.Header.Set(apiKeyHeader, key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return normalizeReply(raw), nil
}

// normalizeReply accepts the three supported body shapes: an array of result
// objects, an object possibly wrapping the payload in a nested "data" field,
// or a plain non-JSON text body.
func normalizeReply(raw []byte) *Reply {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return &Reply{}
	}

	var parsed any
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		// Not JSON: the body is the reply.
		return &Reply{Text: string(trimmed)}
	}

	var obj map[string]any
	switch v := parsed.(type) {
	case []any:
		if len(v) == 0 {
			return &Reply{Text: string(trimmed)}
		}
		first, ok := v[0].(map[string]any)
		if !ok {
			return &Reply{Text: stringify(v[0])}
		}
		obj = first
	case map[string]any:
		obj = v
	default:
		// A bare JSON scalar.
		return &Reply{Text: stringify(v)}
	}

	reply := &Reply{ExecutionID: extractExecutionID(obj)}
	if text, ok := extractReplyText(obj); ok {
		reply.Text = text
		return reply
	}
	// No known field matched: fall back to the raw JSON stringification.
	out, err := json.Marshal(obj)
	if err != nil {
		out = trimmed
	}
	reply.Text = string(out)
	return reply
}

// extractReplyText applies the field-priority rule at the top level and then
// inside a nested "data" object.
func extractReplyText(obj map[string]any) (string, bool) {
	for _, field := range replyFields {
		if s, ok := obj[field].(string); ok && s != "" {
			return s, true
		}
	}
	if data, ok := obj["data"].(map[string]any); ok {
		for _, field := range replyFields {
			if s, ok := data[field].(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// extractExecutionID looks for an execution id top-level or nested in "data".
func extractExecutionID(obj map[string]any) string {
	if id := stringField(obj, "executionId"); id != "" {
		return id
	}
	if data, ok := obj["data"].(map[string]any); ok {
		return stringField(data, "executionId")
	}
	return ""
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}
