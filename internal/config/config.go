// Package config loads the server/database/logging configuration consumed
// by cmd/bitgptserver. The shape is grounded on the reference service's
// cmd/appserver/main.go usage (cfg.Server.Host/Port, cfg.Database.*,
// cfg.Logging.*) rather than either of that repo's own internal/config
// definitions, which do not actually match what its main.go dereferences.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig controls the Postgres connection. DSN takes precedence
// over the discrete Host/Port/User/Password/Name/SSLMode fields.
type DatabaseConfig struct {
	DSN             string `json:"dsn"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	User            string `json:"user"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	SSLMode         string `json:"ssl_mode"`
	MaxOpenConns    int    `json:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime_seconds"`
}

// ConnectionString assembles a libpq-style DSN from the discrete fields.
// Only called when DSN is empty but Host and Name are both set.
func (d DatabaseConfig) ConnectionString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := d.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, port, d.User, d.Password, d.Name, sslMode,
	)
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	Output     string `json:"output"`
	FilePrefix string `json:"file_prefix"`
}

// AutoUpgradeConfig controls the background auto-upgrade worker's poll
// cadence and retry budget (§4.5 "Retries").
type AutoUpgradeConfig struct {
	PollIntervalSeconds int `json:"poll_interval_seconds"`
	MaxAttempts         int `json:"max_attempts"`
}

// FundsConfig controls the periodic fund-payout scheduler (§4.7 NGS /
// Leadership Stipend ticks).
type FundsConfig struct {
	NewcomerScheduleCron  string `json:"newcomer_schedule_cron"`
	StipendScheduleCron   string `json:"stipend_schedule_cron"`
	MaxAutoUpgradeChain   int    `json:"max_auto_upgrade_chain"`
	SweepoverMaxAncestors int    `json:"sweepover_max_ancestors"`
}

// RateLimitConfig controls the per-client token-bucket limiter placed
// ahead of the state-mutating `/join` and `/upgrade` endpoints.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	Burst             int `json:"burst"`
}

// Config is the top-level configuration object.
type Config struct {
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Logging     LoggingConfig     `json:"logging"`
	AutoUpgrade AutoUpgradeConfig `json:"auto_upgrade"`
	Funds       FundsConfig       `json:"funds"`
	RateLimit   RateLimitConfig   `json:"rate_limit"`
}

// Default returns a zero-value Config with applyDefaults applied, for
// callers (cmd/bitgptserver) that run without a -config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads a JSON configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadFile dispatches on file extension; YAML files use a minimal
// flow-free key:value parser since no YAML library is wired into this
// module (see DESIGN.md for why gopkg.in/yaml.v3 was not introduced).
func LoadFile(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadConfig(path)
	case ".yaml", ".yml":
		return loadMinimalYAML(path)
	default:
		return LoadConfig(path)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.AutoUpgrade.PollIntervalSeconds <= 0 {
		cfg.AutoUpgrade.PollIntervalSeconds = 5
	}
	if cfg.AutoUpgrade.MaxAttempts <= 0 {
		cfg.AutoUpgrade.MaxAttempts = 5
	}
	if cfg.Funds.NewcomerScheduleCron == "" {
		cfg.Funds.NewcomerScheduleCron = "0 0 */30 * *"
	}
	if cfg.Funds.StipendScheduleCron == "" {
		cfg.Funds.StipendScheduleCron = "0 0 * * *"
	}
	if cfg.Funds.MaxAutoUpgradeChain <= 0 {
		cfg.Funds.MaxAutoUpgradeChain = 32
	}
	if cfg.Funds.SweepoverMaxAncestors <= 0 {
		cfg.Funds.SweepoverMaxAncestors = 60
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 60
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}
}

// loadMinimalYAML supports the narrow subset of YAML this service's own
// config files use: flat "section:" blocks of two-space-indented
// "key: value" pairs. It intentionally rejects anything else.
func loadMinimalYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	raw := map[string]map[string]string{}
	var section string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimRight(line, " \t\r")
		if trimmed == "" || strings.HasPrefix(strings.TrimSpace(trimmed), "#") {
			continue
		}
		if !strings.HasPrefix(trimmed, " ") && strings.HasSuffix(trimmed, ":") {
			section = strings.TrimSuffix(trimmed, ":")
			raw[section] = map[string]string{}
			continue
		}
		parts := strings.SplitN(strings.TrimSpace(trimmed), ":", 2)
		if len(parts) != 2 || section == "" {
			continue
		}
		raw[section][strings.TrimSpace(parts[0])] = strings.Trim(strings.TrimSpace(parts[1]), `"`)
	}

	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(asJSON, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}
