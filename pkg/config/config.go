// Package config loads the client configuration file.
//
// The file is YAML. Every field is optional; missing fields keep their
// defaults. Durations are written as Go duration strings ("1s", "250ms").
//
//	device:
//	  url: ws://10.0.0.5/ws
//	  view: home
//	session:
//	  status_interval: 1s
//	queue:
//	  reply_timeout: 2s
//	log:
//	  level: debug
//	  protocol_log: /var/log/esps/session.elog
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/espixelstick/esps-go/pkg/connection"
	"github.com/espixelstick/esps-go/pkg/queue"
	"github.com/espixelstick/esps-go/pkg/service"
	"github.com/espixelstick/esps-go/pkg/transport"
)

// Config is the client configuration.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Session   SessionConfig   `yaml:"session"`
	Queue     QueueConfig     `yaml:"queue"`
	KeepAlive KeepAliveConfig `yaml:"keepalive"`
	Backoff   BackoffConfig   `yaml:"backoff"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Log       LogConfig       `yaml:"log"`
	StateDir  string          `yaml:"state_dir"`
}

// DeviceConfig selects the device.
type DeviceConfig struct {
	URL  string `yaml:"url"`
	View string `yaml:"view"`
}

// SessionConfig holds session timings.
type SessionConfig struct {
	DialTimeout        time.Duration `yaml:"dial_timeout"`
	StatusInterval     time.Duration `yaml:"status_interval"`
	TimeDriftThreshold time.Duration `yaml:"time_drift_threshold"`
	FileListRefresh    time.Duration `yaml:"file_list_refresh"`
}

// QueueConfig holds command timeouts.
type QueueConfig struct {
	ShortTimeout time.Duration `yaml:"short_timeout"`
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
}

// KeepAliveConfig holds heartbeat timings.
type KeepAliveConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	PongTimeout  time.Duration `yaml:"pong_timeout"`
}

// BackoffConfig holds reconnect delays.
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

// DiscoveryConfig holds mDNS settings.
type DiscoveryConfig struct {
	Interface string        `yaml:"interface"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string `yaml:"level"`
	ProtocolLog string `yaml:"protocol_log"`
}

// LoadError describes a configuration file that could not be used.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Default returns the built-in configuration.
func Default() *Config {
	sc := service.DefaultSessionConfig()
	return &Config{
		Device: DeviceConfig{View: service.ViewHome.String()},
		Session: SessionConfig{
			DialTimeout:        sc.DialTimeout,
			StatusInterval:     sc.StatusInterval,
			TimeDriftThreshold: sc.TimeDriftThreshold,
			FileListRefresh:    sc.FileListRefresh,
		},
		Queue: QueueConfig{
			ShortTimeout: sc.Queue.ShortTimeout,
			ReplyTimeout: sc.Queue.ReplyTimeout,
		},
		KeepAlive: KeepAliveConfig{
			PingInterval: sc.KeepAlive.PingInterval,
			PongTimeout:  sc.KeepAlive.PongTimeout,
		},
		Backoff: BackoffConfig{
			Initial:    connection.InitialBackoff,
			Max:        connection.MaxBackoff,
			Multiplier: connection.BackoffMultiplier,
			Jitter:     connection.JitterFactor,
		},
		Discovery: DiscoveryConfig{Timeout: 5 * time.Second},
		Log:       LogConfig{Level: "info"},
	}
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if c.Device.View != "" {
		if _, ok := service.ParseView(c.Device.View); !ok {
			return &LoadError{Message: fmt.Sprintf("unknown view %q", c.Device.View)}
		}
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return &LoadError{Message: "invalid log level", Cause: err}
	}
	durations := map[string]time.Duration{
		"session.dial_timeout":    c.Session.DialTimeout,
		"session.status_interval": c.Session.StatusInterval,
		"queue.short_timeout":     c.Queue.ShortTimeout,
		"queue.reply_timeout":     c.Queue.ReplyTimeout,
		"keepalive.ping_interval": c.KeepAlive.PingInterval,
		"keepalive.pong_timeout":  c.KeepAlive.PongTimeout,
	}
	for name, d := range durations {
		if d < 0 {
			return &LoadError{Message: fmt.Sprintf("%s must not be negative", name)}
		}
	}
	if c.KeepAlive.PingInterval > 0 && c.KeepAlive.PongTimeout > 0 &&
		c.KeepAlive.PongTimeout <= c.KeepAlive.PingInterval {
		return &LoadError{Message: "keepalive.pong_timeout must exceed keepalive.ping_interval"}
	}
	return nil
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level %q", name)
	}
}

// SessionConfig returns a session configuration for the device. The
// dialer, clock and loggers are left for the caller.
func (c *Config) SessionConfig() service.SessionConfig {
	sc := service.DefaultSessionConfig()
	sc.URL = c.Device.URL
	if v, ok := service.ParseView(c.Device.View); ok {
		sc.View = v
	}
	sc.DialTimeout = c.Session.DialTimeout
	sc.StatusInterval = c.Session.StatusInterval
	sc.TimeDriftThreshold = c.Session.TimeDriftThreshold
	sc.FileListRefresh = c.Session.FileListRefresh
	sc.Queue = queue.Config{
		ShortTimeout: c.Queue.ShortTimeout,
		ReplyTimeout: c.Queue.ReplyTimeout,
	}
	sc.KeepAlive = transport.KeepAliveConfig{
		PingInterval: c.KeepAlive.PingInterval,
		PongTimeout:  c.KeepAlive.PongTimeout,
	}
	sc.Backoff = connection.BackoffConfig{
		Initial:    c.Backoff.Initial,
		Max:        c.Backoff.Max,
		Multiplier: c.Backoff.Multiplier,
		Jitter:     c.Backoff.Jitter,
	}
	return sc
}
