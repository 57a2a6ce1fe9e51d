package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/FlowDeck/FlowDeck/internal/config"
)

func TestFetchExecution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/executions/42" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("includeData") != "true" {
			t.Errorf("includeData missing: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{
			"id": "42",
			"finished": false,
			"stoppedAt": null,
			"data": {"resultData": {"runData": {
				"Webhook": [{"startTime": 1, "executionTime": 3}],
				"HTTP Request": [{"startTime": 5, "executionTime": 9, "error": {"message": "timeout"}}]
			}}}
		}`))
	}))
	defer srv.Close()

	c := NewClient(config.GatewayConfig{BaseURL: srv.URL})
	rec, err := c.FetchExecution(context.Background(), "42")
	if err != nil {
		t.Fatalf("FetchExecution: %v", err)
	}
	if rec.Finished || rec.Stopped() {
		t.Fatalf("record should be unfinished: %+v", rec)
	}
	run := rec.Data.ResultData.RunData
	if len(run) != 2 {
		t.Fatalf("runData nodes = %d", len(run))
	}
	if LastError(run["Webhook"]) != nil {
		t.Fatalf("Webhook node should have no error")
	}
	if LastError(run["HTTP Request"]) == nil {
		t.Fatalf("HTTP Request node error lost")
	}
}

func TestFetchExecution_Stopped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"7","finished":false,"stoppedAt":"2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewClient(config.GatewayConfig{BaseURL: srv.URL})
	rec, err := c.FetchExecution(context.Background(), "7")
	if err != nil {
		t.Fatalf("FetchExecution: %v", err)
	}
	if !rec.Stopped() {
		t.Fatalf("Stopped() = false with stoppedAt set")
	}
}

func TestLastError_NullIsNoError(t *testing.T) {
	attempts := []RunAttempt{
		{Error: []byte(`{"message":"first try failed"}`)},
		{Error: []byte(`null`)},
	}
	// Only the final attempt counts.
	if LastError(attempts) != nil {
		t.Fatalf("null error on last attempt treated as error")
	}
	if LastError(nil) != nil {
		t.Fatalf("empty attempts produced an error")
	}
}
