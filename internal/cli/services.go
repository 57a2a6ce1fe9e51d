package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/FlowDeck/FlowDeck/internal/auth"
	"github.com/FlowDeck/FlowDeck/internal/bus"
	"github.com/FlowDeck/FlowDeck/internal/chat"
	"github.com/FlowDeck/FlowDeck/internal/config"
	"github.com/FlowDeck/FlowDeck/internal/controller"
	"github.com/FlowDeck/FlowDeck/internal/execution"
	"github.com/FlowDeck/FlowDeck/internal/gateway"
	"github.com/FlowDeck/FlowDeck/internal/mirror"
	"github.com/FlowDeck/FlowDeck/internal/notify"
	"github.com/FlowDeck/FlowDeck/internal/secrets"
	"github.com/FlowDeck/FlowDeck/internal/store"
)

const dbFileName = "flowdeck.db"

const maxLoginAttempts = 3

// services is the assembled dependency graph behind the interactive
// commands. Everything is constructed explicitly here; nothing lives in
// package-level singletons.
type services struct {
	cfg     *config.Config
	gate    *auth.Gate
	kv      *store.Store
	chats   *chat.Store
	bus     *bus.Bus
	gw      *gateway.Client
	monitor *execution.Monitor
	mirror  *mirror.Mirror
	ctrl    *controller.Controller
}

// openSession authenticates interactively and wires up the full service
// graph. The encrypted store only opens after a successful login, since the
// data-at-rest key is derived from the password.
func openSession(render func(string)) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	key, err := secrets.NewSessionKey()
	if err != nil {
		return nil, err
	}
	gate := auth.FromConfig(key, cfg.Auth)
	if err := promptLogin(gate, cfg.Auth.Username); err != nil {
		return nil, err
	}

	dbPath, err := config.StatePath(dbFileName)
	if err != nil {
		return nil, err
	}
	kv, err := store.Open(dbPath, key)
	if err != nil {
		return nil, err
	}
	if n, err := kv.MigrateAll(); err != nil {
		fmt.Printf("Migration warning: %v\n", err)
	} else if n > 0 {
		fmt.Printf("Encrypted %d legacy value(s) at rest.\n", n)
	}

	// Credentials also live sealed in the store, so they survive even when
	// the plain config file omits them. The file wins when both are set.
	var storedGateway config.GatewayConfig
	if err := kv.GetItem(store.KeyGatewayConfig, &storedGateway); err == nil && cfg.Gateway.APIKey == "" {
		cfg.Gateway.APIKey = storedGateway.APIKey
	}
	var storedGraph config.GraphConfig
	if err := kv.GetItem(store.KeyGraphConfig, &storedGraph); err == nil && cfg.Graph.Password == "" {
		cfg.Graph.Password = storedGraph.Password
	}
	if err := kv.SetItem(store.KeyGatewayConfig, cfg.Gateway); err != nil {
		fmt.Printf("Store warning: %v\n", err)
	}
	if err := kv.SetItem(store.KeyGraphConfig, cfg.Graph); err != nil {
		fmt.Printf("Store warning: %v\n", err)
	}

	chats, err := chat.NewStore(kv)
	if err != nil {
		kv.Close()
		return nil, err
	}

	b := bus.New()
	gw := gateway.NewClient(cfg.Gateway)
	monitor := execution.NewMonitor(gw, b)
	notify.New(cfg.Notify).Attach(b)
	m := mirror.New(cfg.Mirror)
	m.Attach(b)

	delay, err := controller.SpeedDelay(cfg.Stream.Speed)
	if err != nil {
		fmt.Printf("Config warning: %v (streaming disabled)\n", err)
		delay = 0
	}

	svc := &services{
		cfg:     cfg,
		gate:    gate,
		kv:      kv,
		chats:   chats,
		bus:     b,
		gw:      gw,
		monitor: monitor,
		mirror:  m,
	}
	svc.ctrl = controller.New(chats, gw, monitor, b, controller.NewStreamer(delay), render)
	return svc, nil
}

// close tears the session down: monitor stopped, mirror flushed, store
// closed, session key wiped.
func (s *services) close() {
	s.monitor.Stop()
	if err := s.mirror.Close(); err != nil {
		fmt.Printf("Mirror close warning: %v\n", err)
	}
	if err := s.kv.Close(); err != nil {
		fmt.Printf("Store close warning: %v\n", err)
	}
	s.gate.Logout()
}

func promptLogin(gate *auth.Gate, defaultUser string) error {
	in := bufio.NewReader(os.Stdin)
	for attempt := 0; attempt < maxLoginAttempts; attempt++ {
		username := promptLine(in, fmt.Sprintf("Username [%s]: ", defaultUser))
		if username == "" {
			username = defaultUser
		}
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}
		err = gate.Login(username, password)
		if err == nil {
			return nil
		}
		fmt.Println(err)
	}
	return fmt.Errorf("too many failed login attempts")
}

func promptLine(in *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

// promptPassword reads without echo when stdin is a terminal and falls back
// to a plain line read otherwise (pipes, tests).
func promptPassword(label string) (string, error) {
	fmt.Print(label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
