package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/FlowDeck/FlowDeck/internal/config"
)

func TestDiffRenderer_PrintsOnlyNewSuffix(t *testing.T) {
	var out strings.Builder
	r := &diffRenderer{out: &out}
	r.render("Hel")
	r.render("Hello")
	r.render("Hello world")
	if out.String() != "Hello world" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestDiffRenderer_NonExtensionStartsFresh(t *testing.T) {
	var out strings.Builder
	r := &diffRenderer{out: &out}
	r.render("first reply")
	r.reset()
	r.render("second")
	if out.String() != "first reply\nsecond" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestConfigureGateway_SavesAndNormalizes(t *testing.T) {
	t.Setenv("FLOWDECK_CONFIG", filepath.Join(t.TempDir(), "config.json"))

	rootCmd.SetArgs([]string{"configure", "gateway",
		"--webhook-url", "https://flows.example.com/webhook/abc/",
		"--execution-url", "https://flows.example.com/",
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("configure gateway: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.WebhookURL != "https://flows.example.com/webhook/abc" {
		t.Fatalf("webhook url = %q, trailing slash kept", cfg.Gateway.WebhookURL)
	}
	if cfg.Gateway.BaseURL != "https://flows.example.com" {
		t.Fatalf("base url = %q", cfg.Gateway.BaseURL)
	}
}

func TestConfigureStream_RejectsUnknownSpeed(t *testing.T) {
	t.Setenv("FLOWDECK_CONFIG", filepath.Join(t.TempDir(), "config.json"))

	rootCmd.SetArgs([]string{"configure", "stream", "--speed", "ludicrous"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("unknown speed accepted")
	}

	rootCmd.SetArgs([]string{"configure", "stream", "--speed", "slow"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("configure stream: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stream.Speed != "slow" {
		t.Fatalf("speed = %q", cfg.Stream.Speed)
	}
}
