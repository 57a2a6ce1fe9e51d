package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalize_StripsTrailingSlashes(t *testing.T) {
	cfg := &Config{
		Gateway: GatewayConfig{
			BaseURL:    "http://localhost:5678/",
			WebhookURL: "http://localhost:5678/webhook/chat///",
		},
		Graph: GraphConfig{BaseURL: "http://localhost:7474/ "},
	}
	cfg.Normalize()

	if cfg.Gateway.BaseURL != "http://localhost:5678" {
		t.Fatalf("BaseURL = %q", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.WebhookURL != "http://localhost:5678/webhook/chat" {
		t.Fatalf("WebhookURL = %q", cfg.Gateway.WebhookURL)
	}
	if cfg.Graph.BaseURL != "http://localhost:7474" {
		t.Fatalf("Graph.BaseURL = %q", cfg.Graph.BaseURL)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("FLOWDECK_CONFIG", filepath.Join(t.TempDir(), "config.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Username != "admin" {
		t.Fatalf("default username = %q", cfg.Auth.Username)
	}
	if cfg.Stream.Speed != "normal" {
		t.Fatalf("default stream speed = %q", cfg.Stream.Speed)
	}
	if cfg.Graph.Database != "neo4j" {
		t.Fatalf("default graph database = %q", cfg.Graph.Database)
	}
}

func TestSaveLoad_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.json")
	t.Setenv("FLOWDECK_CONFIG", path)

	cfg := Default()
	cfg.Gateway.WebhookURL = "https://flows.example.com/webhook/chat/"
	cfg.Gateway.APIKey = "k1"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Gateway.WebhookURL != "https://flows.example.com/webhook/chat" {
		t.Fatalf("loaded WebhookURL = %q, trailing slash not stripped on save", got.Gateway.WebhookURL)
	}
	if got.Gateway.APIKey != "k1" {
		t.Fatalf("loaded APIKey = %q", got.Gateway.APIKey)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLOWDECK_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("FLOWDECK_GATEWAY_WEBHOOK_URL", "http://env.example/hook/")
	t.Setenv("FLOWDECK_GRAPH_USERNAME", "neo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.WebhookURL != "http://env.example/hook" {
		t.Fatalf("env override WebhookURL = %q", cfg.Gateway.WebhookURL)
	}
	if cfg.Graph.Username != "neo" {
		t.Fatalf("env override Graph.Username = %q", cfg.Graph.Username)
	}
}

func TestConfigPath_ExplicitEnv(t *testing.T) {
	want := filepath.Join(os.TempDir(), "explicit.json")
	t.Setenv("FLOWDECK_CONFIG", want)
	got, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	if got != want {
		t.Fatalf("ConfigPath = %q, want %q", got, want)
	}
}
