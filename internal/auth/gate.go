// Package auth implements the local credential gate: a single-account
// password check with a time-boxed in-memory session. Not a hardened auth
// system; it gates the local client, nothing more.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"github.com/FlowDeck/FlowDeck/internal/config"
	"github.com/FlowDeck/FlowDeck/internal/secrets"
)

const (
	// Iterations is the PBKDF2-SHA256 work factor. Stable across versions:
	// stored hashes embed it, so changing it only affects new passwords.
	Iterations = 310_000

	saltSize   = 16
	keyLen     = 32
	defaultTTL = 24 * time.Hour

	// failDelay is the artificial delay both failure paths take, so an
	// observer cannot tell unknown-user from wrong-password by timing.
	failDelay = 400 * time.Millisecond

	keyringService = "flowdeck.auth"
	credFileName   = "credentials.json"

	// encContext separates the data-at-rest key derivation from the login
	// hash derivation. Changing it orphans existing encrypted data.
	encContext = "flowdeck/enc/v1"
)

// ErrInvalidLogin is returned for both unknown users and wrong passwords.
var ErrInvalidLogin = errors.New("auth: invalid username or password")

// ErrNoCredential is returned when no account has been provisioned yet.
var ErrNoCredential = errors.New("auth: no credential on record")

// credentialRecord is the stored salt + derived hash for the single account.
type credentialRecord struct {
	Username   string `json:"username"`
	Salt       string `json:"salt"`
	Hash       string `json:"hash"`
	Iterations int    `json:"iterations"`
}

// Session is the volatile login record.
type Session struct {
	Username  string
	LoginTime time.Time
	ExpiresAt time.Time
}

// Gate performs login checks and tracks the current session.
type Gate struct {
	mu         sync.Mutex
	session    *Session
	sessionKey *secrets.SessionKey
	ttl        time.Duration
	delay      time.Duration
	now        func() time.Time
	sleep      func(time.Duration)
}

// NewGate creates a gate tied to the given session key; Logout clears it.
func NewGate(sessionKey *secrets.SessionKey, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Gate{
		sessionKey: sessionKey,
		ttl:        ttl,
		delay:      failDelay,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// SetPassword provisions (or replaces) the stored credential for username.
func (g *Gate) SetPassword(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("auth: username and password required")
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	hash := pbkdf2.Key([]byte(password), salt, Iterations, keyLen, sha256.New)
	rec := credentialRecord{
		Username:   username,
		Salt:       base64.RawStdEncoding.EncodeToString(salt),
		Hash:       base64.RawStdEncoding.EncodeToString(hash),
		Iterations: Iterations,
	}
	return saveCredential(rec)
}

// Login verifies the password and opens a session on success. Unknown-user
// and wrong-password failures take the same fixed delay and return the same
// error.
func (g *Gate) Login(username, password string) error {
	rec, err := loadCredential()
	if err != nil {
		if errors.Is(err, ErrNoCredential) {
			g.sleep(g.delay)
			return ErrInvalidLogin
		}
		return err
	}
	if rec.Username != strings.TrimSpace(username) {
		g.sleep(g.delay)
		return ErrInvalidLogin
	}
	salt, err := base64.RawStdEncoding.DecodeString(rec.Salt)
	if err != nil {
		return fmt.Errorf("corrupt credential record: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(rec.Hash)
	if err != nil {
		return fmt.Errorf("corrupt credential record: %w", err)
	}
	iters := rec.Iterations
	if iters <= 0 {
		iters = Iterations
	}
	got := pbkdf2.Key([]byte(password), salt, iters, len(want), sha256.New)
	if !hmac.Equal(got, want) {
		g.sleep(g.delay)
		return ErrInvalidLogin
	}

	// The data-at-rest key is derived from the same password under a
	// distinct salt context, so the encrypted store opens across restarts
	// without ever persisting the key itself.
	if g.sessionKey != nil {
		encSalt := append(append([]byte{}, salt...), []byte(encContext)...)
		encKey := pbkdf2.Key([]byte(password), encSalt, iters, secrets.KeySize, sha256.New)
		if err := g.sessionKey.Set(encKey); err != nil {
			return fmt.Errorf("install session key: %w", err)
		}
	}

	now := g.now()
	g.mu.Lock()
	g.session = &Session{Username: rec.Username, LoginTime: now, ExpiresAt: now.Add(g.ttl)}
	g.mu.Unlock()
	return nil
}

// Authenticated reports whether a live session exists. An expired session is
// cleared as a side effect.
func (g *Gate) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return false
	}
	if g.now().After(g.session.ExpiresAt) {
		g.session = nil
		return false
	}
	return true
}

// Current returns a copy of the active session, if any.
func (g *Gate) Current() (Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return Session{}, false
	}
	return *g.session, true
}

// Logout clears the session and the encryption key.
func (g *Gate) Logout() {
	g.mu.Lock()
	g.session = nil
	g.mu.Unlock()
	if g.sessionKey != nil {
		g.sessionKey.Clear()
	}
}

// FromConfig builds a gate using the configured TTL.
func FromConfig(sessionKey *secrets.SessionKey, cfg config.AuthConfig) *Gate {
	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	return NewGate(sessionKey, ttl)
}

// --- credential storage backends ---
//
// Priority mirrors the key-backend resolution used for other local secrets:
// OS keyring first, config-dir file fallback. FLOWDECK_AUTH_BACKEND=file
// forces the file backend (used on headless hosts and in tests).

func saveCredential(rec credentialRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if credBackend() != "file" {
		if err := keyring.Set(keyringService, rec.Username, string(data)); err == nil {
			return nil
		}
	}
	path, err := credFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func loadCredential() (credentialRecord, error) {
	var rec credentialRecord
	if credBackend() != "file" {
		if val, err := keyring.Get(keyringService, keyringUsername()); err == nil {
			if err := json.Unmarshal([]byte(val), &rec); err == nil && rec.Username != "" {
				return rec, nil
			}
		}
	}
	path, err := credFilePath()
	if err != nil {
		return rec, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return rec, ErrNoCredential
	}
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil || rec.Username == "" {
		return rec, fmt.Errorf("corrupt credential file %s", path)
	}
	return rec, nil
}

func credBackend() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("FLOWDECK_AUTH_BACKEND")))
	switch v {
	case "file", "keyring":
		return v
	default:
		return "keyring"
	}
}

func keyringUsername() string {
	if u := strings.TrimSpace(os.Getenv("FLOWDECK_AUTH_USERNAME")); u != "" {
		return u
	}
	return "admin"
}

func credFilePath() (string, error) {
	return config.StatePath(credFileName)
}
