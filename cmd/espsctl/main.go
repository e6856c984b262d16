// Command espsctl configures and monitors an ESPixelStick over its
// WebSocket interface.
//
// Usage:
//
//	espsctl [flags] [command [args...]]
//
// Flags:
//
//	-config string        Configuration file path (default "espsctl.yaml")
//	-url string           Device WebSocket URL, name or address
//	-view string          Initial view: home, network, config, admin, diag, files
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  Write a protocol capture to this file
//	-state-dir string     Directory for remembered devices
//	-timeout duration     Timeout for one-shot commands (default 10s)
//	-interactive          Open the interactive console
//
// Commands:
//
//	status                 - Print device status
//	admin                  - Print firmware and board info
//	get <section>          - Print system, input_config or output_config
//	set <section> <path> <value> - Change one value and save
//	backup [file]          - Write the configuration to a file
//	restore <file>         - Merge a backup into the device configuration
//	files                  - List files on the SD card
//	delete <name>...       - Delete files
//	reboot                 - Restart the device
//	reset                  - Factory reset the device
//	upload <firmware.bin>  - Flash new firmware
//	discover               - Find devices on the local network
//
// Examples:
//
//	# Find devices, then open a console on one of them
//	espsctl discover
//	espsctl -url ws://10.0.0.5/ws -interactive
//
//	# Back up and restore
//	espsctl -url 10.0.0.5 backup
//	espsctl -url 10.0.0.5 restore esps-porch-1640e0.json
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/espixelstick/esps-go/cmd/espsctl/commands"
	"github.com/espixelstick/esps-go/cmd/espsctl/interactive"
	"github.com/espixelstick/esps-go/internal/control"
	"github.com/espixelstick/esps-go/pkg/config"
	"github.com/espixelstick/esps-go/pkg/discovery"
	protolog "github.com/espixelstick/esps-go/pkg/log"
	"github.com/espixelstick/esps-go/pkg/persistence"
	"github.com/espixelstick/esps-go/pkg/service"
	"github.com/espixelstick/esps-go/pkg/webapi"
)

// Flags holds the command-line settings. Set flags override the
// configuration file.
type Flags struct {
	ConfigFile  string
	URL         string
	View        string
	LogLevel    string
	ProtocolLog string
	StateDir    string
	Timeout     time.Duration
	Interactive bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "espsctl.yaml", "Configuration file path")
	flag.StringVar(&flags.URL, "url", "", "Device WebSocket URL, name or address")
	flag.StringVar(&flags.View, "view", "", "Initial view: home, network, config, admin, diag, files")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Write a protocol capture to this file")
	flag.StringVar(&flags.StateDir, "state-dir", "", "Directory for remembered devices")
	flag.DurationVar(&flags.Timeout, "timeout", control.DefaultTimeout, "Timeout for one-shot commands")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Open the interactive console")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	args := flag.Args()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(args) > 0 && args[0] == "discover" {
		if err := runDiscover(ctx, cfg, logger); err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		return
	}

	store := stateStore(cfg)
	url, err := resolveURL(cfg.Device.URL, store)
	if err != nil {
		log.Fatalf("%v", err)
	}
	cfg.Device.URL = url

	if err := run(ctx, cancel, cfg, logger, store, args); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config) {
	if flags.URL != "" {
		cfg.Device.URL = flags.URL
	}
	if flags.View != "" {
		cfg.Device.View = flags.View
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.ProtocolLog != "" {
		cfg.Log.ProtocolLog = flags.ProtocolLog
	}
	if flags.StateDir != "" {
		cfg.StateDir = flags.StateDir
	}
}

func stateStore(cfg *config.Config) *persistence.StateStore {
	if cfg.StateDir == "" {
		return nil
	}
	return persistence.NewStateStore(filepath.Join(cfg.StateDir, "state.json"))
}

// resolveURL accepts a full URL, a bare address, a remembered device
// name, or nothing (the last device used).
func resolveURL(target string, store *persistence.StateStore) (string, error) {
	var state *persistence.ClientState
	if store != nil {
		loaded, err := store.Load()
		if err != nil {
			log.Printf("Warning: failed to load state: %v", err)
		}
		state = loaded
	}

	if target == "" {
		if state != nil && state.LastURL != "" {
			return state.LastURL, nil
		}
		return "", fmt.Errorf("no device given (use -url or run 'espsctl discover')")
	}
	if state != nil {
		if d, ok := state.Lookup(target); ok {
			return d.URL, nil
		}
	}
	if strings.Contains(target, "://") {
		return target, nil
	}
	return discovery.WebSocketURL(target, discovery.DefaultHTTPPort), nil
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *slog.Logger, store *persistence.StateStore, args []string) error {
	sc := cfg.SessionConfig()
	sc.Logger = logger

	if cfg.Log.ProtocolLog != "" {
		fl, err := protolog.NewFileLogger(cfg.Log.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fl.Close()
		sc.ProtocolLogger = fl
		if level, _ := config.ParseLevel(cfg.Log.Level); level <= slog.LevelDebug {
			sc.ProtocolLogger = protolog.NewMultiLogger(fl, protolog.NewSlogAdapter(logger))
		}
	}
	if !flags.Interactive && len(args) > 0 {
		// One-shot commands fetch what they need themselves.
		sc.View = service.ViewNetwork
	}

	session, err := service.NewSession(sc)
	if err != nil {
		return err
	}
	api, err := webapi.NewClient(webapi.ClientConfig{BaseURL: sc.URL, Logger: logger})
	if err != nil {
		return err
	}
	ctl := control.New(session, api, flags.Timeout)

	go func() {
		if err := session.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Session stopped: %v", err)
		}
	}()
	defer session.Close()

	log.Printf("Connecting to %s", sc.URL)
	if err := ctl.WaitConnected(ctx); err != nil {
		return err
	}
	defer remember(store, ctl)

	if flags.Interactive || len(args) == 0 {
		console, err := interactive.New(ctl)
		if err != nil {
			return err
		}
		log.SetOutput(console.Stdout())
		console.Run(ctx, cancel)
		return nil
	}
	return commands.Run(ctx, ctl, os.Stdout, args)
}

func remember(store *persistence.StateStore, ctl *control.Controller) {
	if store == nil {
		return
	}
	state, err := store.Load()
	if err != nil || state == nil {
		state = &persistence.ClientState{}
	}
	state.Remember(ctl.KnownDevice(time.Now()))
	if err := store.Save(state); err != nil {
		log.Printf("Warning: failed to save state: %v", err)
	}
}

func runDiscover(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	browser, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{
		BrowseTimeout: cfg.Discovery.Timeout,
		Interface:     cfg.Discovery.Interface,
	})
	if err != nil {
		return err
	}
	browser.SetLogger(logger)
	defer browser.Stop()

	log.Printf("Browsing for %s...", cfg.Discovery.Timeout)
	devices, err := browser.FindAll(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No devices found")
		return nil
	}
	fmt.Printf("Found %d device(s):\n", len(devices))
	for i, d := range devices {
		fmt.Printf("  %d. %s\n", i+1, d)
	}
	return nil
}
