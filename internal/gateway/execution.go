package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RunAttempt is one recorded run of a workflow node.
type RunAttempt struct {
	StartTime     int64           `json:"startTime,omitempty"`
	ExecutionTime int64           `json:"executionTime,omitempty"`
	Error         json.RawMessage `json:"error,omitempty"`
}

// ExecutionRecord is the engine's status record for one execution. RunData is
// keyed by node name; attempts are in run order.
type ExecutionRecord struct {
	ID        string  `json:"id"`
	Finished  bool    `json:"finished"`
	StoppedAt *string `json:"stoppedAt"`
	Data      struct {
		ResultData struct {
			RunData map[string][]RunAttempt `json:"runData"`
		} `json:"resultData"`
	} `json:"data"`
}

// Stopped reports whether the execution carries a stop timestamp.
func (r *ExecutionRecord) Stopped() bool {
	return r.StoppedAt != nil && strings.TrimSpace(*r.StoppedAt) != ""
}

// FetchExecution retrieves the full status record for an execution id,
// requesting per-node run data.
func (c *Client) FetchExecution(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	if strings.TrimSpace(c.cfg.BaseURL) == "" {
		return nil, fmt.Errorf("gateway: base URL not configured")
	}
	url := fmt.Sprintf("%s/api/v1/executions/%s?includeData=true", c.cfg.BaseURL, executionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		req.Header.Set(apiKeyHeader, key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: fetch execution %s: %w", executionID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read execution %s: %w", executionID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var rec ExecutionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("gateway: decode execution %s: %w", executionID, err)
	}
	if rec.ID == "" {
		rec.ID = executionID
	}
	return &rec, nil
}

// LastError returns the error payload of the final run attempt, or nil.
func LastError(attempts []RunAttempt) json.RawMessage {
	if len(attempts) == 0 {
		return nil
	}
	last := attempts[len(attempts)-1]
	if len(last.Error) == 0 || string(last.Error) == "null" {
		return nil
	}
	return last.Error
}
