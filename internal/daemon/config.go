// Package daemon manages the PiùCane daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/piucane/piucane/internal/app/gamification"
	"github.com/piucane/piucane/internal/domain"
)

// Config holds all daemon configuration.
type Config struct {
	API           APIConfig                 `toml:"api"`
	Storage       StorageConfig             `toml:"storage"`
	Lock          LockConfig                `toml:"lock"`
	Gamification  GamificationConfig        `toml:"gamification"`
	Notifications domain.NotificationPolicy `toml:"notifications"`
	Logging       LoggingConfig             `toml:"logging"`
	Telemetry     TelemetryConfig           `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// StorageConfig selects the profile store.
type StorageConfig struct {
	Driver        string `toml:"driver"` // "sqlite" or "mongo"
	Dir           string `toml:"dir"`    // sqlite data directory
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// LockConfig selects the per-user lock backend.
type LockConfig struct {
	Driver        string `toml:"driver"` // "local" or "redis"
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	TTL           string `toml:"ttl"`
	Wait          string `toml:"wait"`
}

// GamificationConfig tunes the engines.
type GamificationConfig struct {
	Timezone        string               `toml:"timezone"`
	EventMultiplier float64              `toml:"event_multiplier"`
	ItemRewardTTL   string               `toml:"item_reward_ttl"`
	Cooldown        string               `toml:"cooldown"`
	HistoryWindow   int                  `toml:"history_window"`
	StagnantAfter   string               `toml:"stagnant_after"`
	ExpirySweep     string               `toml:"expiry_sweep"`
	Thresholds      domain.DDAThresholds `toml:"thresholds"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"` // empty: stderr only
}

// TelemetryConfig controls metrics and health checks.
type TelemetryConfig struct {
	Prometheus     bool   `toml:"prometheus"`
	HealthInterval string `toml:"health_interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	homeDir := piucaneHome()
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        8420,
			CORSOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Driver:        "sqlite",
			Dir:           homeDir,
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "piucane",
		},
		Lock: LockConfig{
			Driver:    "local",
			RedisAddr: "localhost:6379",
			TTL:       "10s",
			Wait:      "5s",
		},
		Gamification: GamificationConfig{
			Timezone:        "Europe/Rome",
			EventMultiplier: 1.0,
			ItemRewardTTL:   "2160h", // 90 days
			Cooldown:        "24h",
			HistoryWindow:   10,
			StagnantAfter:   "72h",
			ExpirySweep:     "1h",
			Thresholds:      domain.DefaultDDAThresholds(),
		},
		Notifications: domain.DefaultNotificationPolicy(),
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(homeDir, "piucane.log"),
		},
		Telemetry: TelemetryConfig{
			Prometheus:     true,
			HealthInterval: "60s",
		},
	}
}

// LoadConfig reads config from $PIUCANE_HOME/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFile(filepath.Join(piucaneHome(), "config.toml"))
}

// LoadConfigFile reads config from path. A missing file yields the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to $PIUCANE_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(piucaneHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Validate rejects unknown drivers and malformed values.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "mongo":
	default:
		return fmt.Errorf("storage.driver must be sqlite or mongo, got %q", c.Storage.Driver)
	}
	switch c.Lock.Driver {
	case "local", "redis":
	default:
		return fmt.Errorf("lock.driver must be local or redis, got %q", c.Lock.Driver)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	if err := c.Gamification.Thresholds.Validate(); err != nil {
		return fmt.Errorf("gamification.thresholds: %w", err)
	}
	ec, err := c.EngineConfig()
	if err != nil {
		return err
	}
	if ec.ExpirySweep <= 0 {
		return fmt.Errorf("gamification.expiry_sweep must be positive, got %v", ec.ExpirySweep)
	}
	return nil
}

// EngineConfig converts the [gamification] and [notifications] sections
// into engine settings.
func (c Config) EngineConfig() (gamification.Config, error) {
	out := gamification.DefaultConfig()
	g := c.Gamification

	if g.Timezone != "" {
		loc, err := time.LoadLocation(g.Timezone)
		if err != nil {
			return out, fmt.Errorf("gamification.timezone: %w", err)
		}
		out.Location = loc
	}
	if g.EventMultiplier > 0 {
		out.EventMultiplier = g.EventMultiplier
	}
	if g.HistoryWindow > 0 {
		out.HistoryWindow = g.HistoryWindow
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"gamification.item_reward_ttl", g.ItemRewardTTL, &out.ItemRewardTTL},
		{"gamification.cooldown", g.Cooldown, &out.Cooldown},
		{"gamification.stagnant_after", g.StagnantAfter, &out.StagnantAfter},
		{"gamification.expiry_sweep", g.ExpirySweep, &out.ExpirySweep},
		{"lock.wait", c.Lock.Wait, &out.LockWait},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return out, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	out.Thresholds = g.Thresholds
	if c.Notifications.MaxPerDay > 0 {
		out.Notifications = c.Notifications
	}
	return out, nil
}

// piucaneHome returns the PiùCane data directory.
func piucaneHome() string {
	if env := os.Getenv("PIUCANE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".piucane")
}

// Home is exported for use by other packages.
func Home() string {
	return piucaneHome()
}
