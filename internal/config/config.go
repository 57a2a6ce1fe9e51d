// Package config provides configuration types and loading for flowdeck.
package config

// Config is the root configuration struct.
// Top-level groups: Gateway, Graph, Auth, Stream, Notify, Mirror.
type Config struct {
	Gateway GatewayConfig `json:"gateway"`
	Graph   GraphConfig   `json:"graph"`
	Auth    AuthConfig    `json:"auth"`
	Stream  StreamConfig  `json:"stream"`
	Notify  NotifyConfig  `json:"notify"`
	Mirror  MirrorConfig  `json:"mirror"`
}

// ---------------------------------------------------------------------------
// Gateway – workflow engine webhook
// ---------------------------------------------------------------------------

// GatewayConfig configures the workflow engine connection.
// URLs are stored without a trailing slash; Normalize enforces this.
type GatewayConfig struct {
	BaseURL    string `json:"baseUrl" envconfig:"BASE_URL"`
	WebhookURL string `json:"webhookUrl" envconfig:"WEBHOOK_URL"`
	APIKey     string `json:"apiKey" envconfig:"API_KEY"`
}

// ---------------------------------------------------------------------------
// Graph – graph database HTTP endpoint
// ---------------------------------------------------------------------------

// GraphConfig configures the graph database connection.
type GraphConfig struct {
	BaseURL  string `json:"baseUrl" envconfig:"BASE_URL"`
	Username string `json:"username" envconfig:"USERNAME"`
	Password string `json:"password" envconfig:"PASSWORD"`
	Database string `json:"database" envconfig:"DATABASE"`
}

// ---------------------------------------------------------------------------
// Auth – local credential gate
// ---------------------------------------------------------------------------

// AuthConfig configures the local login gate.
type AuthConfig struct {
	Username string `json:"username" envconfig:"USERNAME"`
	// SessionTTLMinutes bounds how long a login stays valid. Zero means the
	// default (24h).
	SessionTTLMinutes int `json:"sessionTtlMinutes" envconfig:"SESSION_TTL_MINUTES"`
}

// ---------------------------------------------------------------------------
// Stream – assistant reply reveal
// ---------------------------------------------------------------------------

// StreamConfig configures streamed rendering of assistant replies.
// Speed is one of: instant, fast, normal, slow.
type StreamConfig struct {
	Speed string `json:"speed" envconfig:"SPEED"`
}

// ---------------------------------------------------------------------------
// Notify – execution completion notifications
// ---------------------------------------------------------------------------

// NotifyConfig configures the optional Slack incoming-webhook notifier.
type NotifyConfig struct {
	Enabled         bool   `json:"enabled" envconfig:"ENABLED"`
	SlackWebhookURL string `json:"slackWebhookUrl" envconfig:"SLACK_WEBHOOK_URL"`
}

// ---------------------------------------------------------------------------
// Mirror – transcript mirroring
// ---------------------------------------------------------------------------

// MirrorConfig configures the optional Kafka transcript mirror.
type MirrorConfig struct {
	Enabled bool     `json:"enabled" envconfig:"ENABLED"`
	Brokers []string `json:"brokers" envconfig:"BROKERS"`
	Topic   string   `json:"topic" envconfig:"TOPIC"`
}
