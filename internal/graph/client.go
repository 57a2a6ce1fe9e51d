// Package graph implements the graph database client: read queries against
// the HTTP transactional endpoint and an incremental expand/collapse view
// over the returned nodes and relationships.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/FlowDeck/FlowDeck/internal/config"
)

// QueryError is a query-level error reported by the database, distinct from
// transport-level HTTP failure.
type QueryError struct {
	Code    string
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("graph: %s: %s", e.Code, e.Message)
}

// statement is one entry of the transactional request payload.
type statement struct {
	Statement          string         `json:"statement"`
	Parameters         map[string]any `json:"parameters,omitempty"`
	ResultDataContents []string       `json:"resultDataContents"`
	IncludeStats       bool           `json:"includeStats"`
}

// Response is the transactional endpoint's response envelope.
type Response struct {
	Results []struct {
		Columns []string `json:"columns"`
		Data    []struct {
			Row   []json.RawMessage `json:"row"`
			Graph struct {
				Nodes []struct {
					ID         string         `json:"id"`
					Labels     []string       `json:"labels"`
					Properties map[string]any `json:"properties"`
				} `json:"nodes"`
				Relationships []struct {
					ID         string         `json:"id"`
					Type       string         `json:"type"`
					StartNode  string         `json:"startNode"`
					EndNode    string         `json:"endNode"`
					Properties map[string]any `json:"properties"`
				} `json:"relationships"`
			} `json:"graph"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Client queries the graph database over HTTP with basic authentication.
type Client struct {
	cfg        config.GraphConfig
	httpClient *http.Client
	colors     *colorAssigner
}

// NewClient creates a graph client for the given config.
func NewClient(cfg config.GraphConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		colors:     newColorAssigner(),
	}
}

// ExecuteQuery runs a read query, requesting both row and graph result
// content, and returns the raw response. A query-level error raises
// *QueryError; HTTP and transport failures surface as ordinary errors.
func (c *Client) ExecuteQuery(ctx context.Context, cypher string, params map[string]any) (*Response, error) {
	if strings.TrimSpace(c.cfg.BaseURL) == "" {
		return nil, fmt.Errorf("graph: base URL not configured")
	}
	db := c.cfg.Database
	if db == "" {
		db = "neo4j"
	}
	url := fmt.Sprintf("%s/db/%s/tx/commit", c.cfg.BaseURL, db)

	body, err := json.Marshal(map[string]any{
		"statements": []statement{{
			Statement:          cypher,
			Parameters:         params,
			ResultDataContents: []string{"row", "graph"},
			IncludeStats:       true,
		}},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph: query: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("graph: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("graph: HTTP %d", resp.StatusCode)
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("graph: decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		first := parsed.Errors[0]
		return nil, &QueryError{Code: first.Code, Message: first.Message}
	}
	return &parsed, nil
}

// Query runs a read query and parses it into deduplicated graph data.
func (c *Client) Query(ctx context.Context, cypher string, params map[string]any) (*Data, error) {
	resp, err := c.ExecuteQuery(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return c.ParseGraphData(resp), nil
}
