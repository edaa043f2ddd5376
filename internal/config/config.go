// Package config loads process configuration from the environment (and
// optionally a ".env" file), following the pack's caarlos0/env + godotenv
// pattern: godotenv populates os.Environ best-effort, caarlos0/env then
// parses struct tags out of it, and a Validate method catches anything
// the tags alone can't express.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// HostConfig configures the winfrey-host process.
type HostConfig struct {
	DocumentPath       string        `env:"WINFREY_DOCUMENT_PATH,required"`
	NATSUrl            string        `env:"WINFREY_NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	InteractiveSubject string        `env:"WINFREY_INTERACTIVE_SUBJECT" envDefault:"winfrey.interactive"`
	BroadcastSubject   string        `env:"WINFREY_BROADCAST_SUBJECT" envDefault:"winfrey.broadcast"`
	InitialBatchDelay  time.Duration `env:"WINFREY_INITIAL_BATCH_DELAY" envDefault:"250ms"`
	LatencyMargin      time.Duration `env:"WINFREY_LATENCY_MARGIN" envDefault:"50ms"`
	SnapshotInterval   time.Duration `env:"WINFREY_SNAPSHOT_INTERVAL" envDefault:"30s"`
	MetricsAddr        string        `env:"WINFREY_METRICS_ADDR" envDefault:":9090"`
	LogLevel           string        `env:"WINFREY_LOG_LEVEL" envDefault:"info"`
	LogFormat          string        `env:"WINFREY_LOG_FORMAT" envDefault:"json"`
}

// ParticipantConfig configures the winfrey-participant process.
type ParticipantConfig struct {
	ServerAddress        string        `env:"WINFREY_SERVER_ADDR,required"`
	InteractiveSubject   string        `env:"WINFREY_INTERACTIVE_SUBJECT" envDefault:"winfrey.interactive"`
	BroadcastSubject     string        `env:"WINFREY_BROADCAST_SUBJECT" envDefault:"winfrey.broadcast"`
	PollTimeout          time.Duration `env:"WINFREY_POLL_TIMEOUT" envDefault:"500ms"`
	ClockRefreshInterval time.Duration `env:"WINFREY_CLOCK_REFRESH" envDefault:"30s"`
	LogLevel             string        `env:"WINFREY_LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"WINFREY_LOG_FORMAT" envDefault:"json"`
}

// LoadHostConfig loads a .env file if present (its absence is not an
// error), parses the environment into a HostConfig, and validates it.
func LoadHostConfig() (*HostConfig, error) {
	_ = godotenv.Load()

	cfg := &HostConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse host config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks constraints caarlos0/env's tags can't express on their
// own: positive durations and a recognized log level/format.
func (c *HostConfig) Validate() error {
	if c.DocumentPath == "" {
		return fmt.Errorf("config: WINFREY_DOCUMENT_PATH must not be empty")
	}
	if c.InitialBatchDelay <= 0 {
		return fmt.Errorf("config: WINFREY_INITIAL_BATCH_DELAY must be positive")
	}
	if c.LatencyMargin < 0 {
		return fmt.Errorf("config: WINFREY_LATENCY_MARGIN must not be negative")
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("config: WINFREY_SNAPSHOT_INTERVAL must be positive")
	}
	if c.InteractiveSubject == c.BroadcastSubject {
		return fmt.Errorf("config: interactive and broadcast subjects must differ")
	}
	return validLogSettings(c.LogLevel, c.LogFormat)
}

// Print writes a human-readable dump of the configuration, mirroring the
// pack's habit of a plain-text startup banner alongside structured logs.
func (c *HostConfig) Print() {
	fmt.Printf("WinfreyEdit host configuration:\n")
	fmt.Printf("  document path:       %s\n", c.DocumentPath)
	fmt.Printf("  nats url:            %s\n", c.NATSUrl)
	fmt.Printf("  interactive subject: %s\n", c.InteractiveSubject)
	fmt.Printf("  broadcast subject:   %s\n", c.BroadcastSubject)
	fmt.Printf("  initial batch delay: %s\n", c.InitialBatchDelay)
	fmt.Printf("  latency margin:      %s\n", c.LatencyMargin)
	fmt.Printf("  snapshot interval:   %s\n", c.SnapshotInterval)
	fmt.Printf("  metrics addr:        %s\n", c.MetricsAddr)
}

// LogConfig writes the same information as a structured log event.
func (c *HostConfig) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("document_path", c.DocumentPath).
		Str("nats_url", c.NATSUrl).
		Str("interactive_subject", c.InteractiveSubject).
		Str("broadcast_subject", c.BroadcastSubject).
		Dur("initial_batch_delay", c.InitialBatchDelay).
		Dur("latency_margin", c.LatencyMargin).
		Dur("snapshot_interval", c.SnapshotInterval).
		Str("metrics_addr", c.MetricsAddr).
		Msg("host configuration loaded")
}

// LoadParticipantConfig loads a .env file if present, parses the
// environment into a ParticipantConfig, and validates it.
func LoadParticipantConfig() (*ParticipantConfig, error) {
	_ = godotenv.Load()

	cfg := &ParticipantConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse participant config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks participant-side constraints.
func (c *ParticipantConfig) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("config: WINFREY_SERVER_ADDR must not be empty")
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("config: WINFREY_POLL_TIMEOUT must be positive")
	}
	if c.ClockRefreshInterval <= 0 {
		return fmt.Errorf("config: WINFREY_CLOCK_REFRESH must be positive")
	}
	if c.InteractiveSubject == c.BroadcastSubject {
		return fmt.Errorf("config: interactive and broadcast subjects must differ")
	}
	return validLogSettings(c.LogLevel, c.LogFormat)
}

// Print writes a human-readable dump of the configuration.
func (c *ParticipantConfig) Print() {
	fmt.Printf("WinfreyEdit participant configuration:\n")
	fmt.Printf("  server address:      %s\n", c.ServerAddress)
	fmt.Printf("  interactive subject: %s\n", c.InteractiveSubject)
	fmt.Printf("  broadcast subject:   %s\n", c.BroadcastSubject)
	fmt.Printf("  poll timeout:        %s\n", c.PollTimeout)
	fmt.Printf("  clock refresh:       %s\n", c.ClockRefreshInterval)
}

func validLogSettings(level, format string) error {
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unrecognized log level %q", level)
	}
	switch format {
	case "json", "console":
	default:
		return fmt.Errorf("config: unrecognized log format %q", format)
	}
	return nil
}
