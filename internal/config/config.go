package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the relay listens on.
	DefaultAddr = ":3000"
	// DefaultMaxPayloadBytes limits inbound WebSocket frame size.
	DefaultMaxPayloadBytes int64 = 1 << 20
	// DefaultMaxClients bounds concurrent WebSocket connections. Zero disables the limit.
	DefaultMaxClients = 256

	// DefaultBroadcastInterval is the cadence of world snapshot broadcasts.
	DefaultBroadcastInterval = 100 * time.Millisecond
	// DefaultHeartbeatInterval is the cadence of keepalive heartbeat frames.
	DefaultHeartbeatInterval = 5 * time.Second
	// DefaultPingInterval is the per-session latency probe cadence.
	DefaultPingInterval = 15 * time.Second
	// DefaultSessionTimeout is how long a session may stay silent before eviction.
	DefaultSessionTimeout = 30 * time.Second

	// DefaultJournalDumpWindow bounds how frequently journal dumps may be requested.
	DefaultJournalDumpWindow = time.Minute
	// DefaultJournalDumpBurst sets how many journal dump requests fit in one window.
	DefaultJournalDumpBurst = 1

	// DefaultLogLevel controls verbosity for relay logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "relay.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the relay service.
type Config struct {
	Address           string
	AllowedOrigins    []string
	MaxPayloadBytes   int64
	MaxClients        int
	BroadcastInterval time.Duration
	HeartbeatInterval time.Duration
	PingInterval      time.Duration
	SessionTimeout    time.Duration
	AdminToken        string
	JournalDir        string
	JournalDumpWindow time.Duration
	JournalDumpBurst  int
	Logging           LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the relay configuration from environment variables, applying sane defaults
// and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address:           resolveAddr(),
		AllowedOrigins:    parseList(os.Getenv("RELAY_ALLOWED_ORIGINS")),
		MaxPayloadBytes:   DefaultMaxPayloadBytes,
		MaxClients:        DefaultMaxClients,
		BroadcastInterval: DefaultBroadcastInterval,
		HeartbeatInterval: DefaultHeartbeatInterval,
		PingInterval:      DefaultPingInterval,
		SessionTimeout:    DefaultSessionTimeout,
		AdminToken:        strings.TrimSpace(os.Getenv("RELAY_ADMIN_TOKEN")),
		JournalDir:        strings.TrimSpace(os.Getenv("RELAY_JOURNAL_DIR")),
		JournalDumpWindow: DefaultJournalDumpWindow,
		JournalDumpBurst:  DefaultJournalDumpBurst,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("RELAY_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("RELAY_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("RELAY_MAX_PAYLOAD_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("RELAY_MAX_PAYLOAD_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxPayloadBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_MAX_CLIENTS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("RELAY_MAX_CLIENTS must be a non-negative integer, got %q", raw))
		} else {
			cfg.MaxClients = value
		}
	}

	durations := []struct {
		env    string
		target *time.Duration
	}{
		{"RELAY_BROADCAST_INTERVAL", &cfg.BroadcastInterval},
		{"RELAY_HEARTBEAT_INTERVAL", &cfg.HeartbeatInterval},
		{"RELAY_PING_INTERVAL", &cfg.PingInterval},
		{"RELAY_SESSION_TIMEOUT", &cfg.SessionTimeout},
		{"RELAY_JOURNAL_DUMP_WINDOW", &cfg.JournalDumpWindow},
	}
	for _, entry := range durations {
		raw := strings.TrimSpace(os.Getenv(entry.env))
		if raw == "" {
			continue
		}
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be a positive duration, got %q", entry.env, raw))
		} else {
			*entry.target = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_JOURNAL_DUMP_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("RELAY_JOURNAL_DUMP_BURST must be a positive integer, got %q", raw))
		} else {
			cfg.JournalDumpBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("RELAY_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("RELAY_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("RELAY_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("RELAY_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

// resolveAddr prefers RELAY_ADDR but honours a bare PORT value for container platforms.
func resolveAddr() string {
	if value := strings.TrimSpace(os.Getenv("RELAY_ADDR")); value != "" {
		return value
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		return ":" + port
	}
	return DefaultAddr
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
