package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"timelog/internal/platform/logging"
)

const (
	EnvPrefix      = "TIMELOG_"
	DefaultFile    = "timelog.yaml"
	DefaultTOML    = "timelog.toml"
	maxConfigBytes = 1 << 20
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverVault  = "vault"
	DriverMemory = "memory"
)

type Config struct {
	Store    StoreConfig    `koanf:"store"`
	Server   ServerConfig   `koanf:"server"`
	Logging  logging.Config `koanf:"logging"`
	Tracking TrackingConfig `koanf:"tracking"`
}

type StoreConfig struct {
	Driver  string `koanf:"driver"`
	DataDir string `koanf:"data_dir"`
	DBPath  string `koanf:"db_path"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type TrackingConfig struct {
	// AtomicActivation runs activate and deactivate-all in one store transaction
	// when the store supports it.
	AtomicActivation bool `koanf:"atomic_activation"`
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Overrides carries command-line flags; empty fields leave loaded values alone.
type Overrides struct {
	DataDir string
	Driver  string
}

// Load reads configuration with precedence env > YAML file > defaults.
//
// Environment variables use the TIMELOG_ prefix and split on the first
// underscore after it: TIMELOG_SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout.
// When path is empty, <data_dir>/timelog.yaml (or timelog.toml) is read if it
// exists. Files ending in .toml are parsed as TOML, everything else as YAML.
func Load(path string, overrides Overrides) (Config, error) {
	k := koanf.New(".")

	if path == "" {
		dataDir := overrides.DataDir
		if dataDir == "" {
			dataDir = os.Getenv(EnvPrefix + "STORE_DATA_DIR")
		}
		if dataDir == "" {
			dataDir = "."
		}
		for _, name := range []string{DefaultFile, DefaultTOML} {
			candidate := filepath.Join(dataDir, name)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(rawbytes.Provider(content), parserFor(path)); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if overrides.DataDir != "" {
		cfg.Store.DataDir = overrides.DataDir
	}
	if overrides.Driver != "" {
		cfg.Store.Driver = overrides.Driver
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return tomlParser{}
	}
	return yaml.Parser()
}

type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	var out map[string]any
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigBytes)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverSQLite
	}
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = "."
	}
	if cfg.Store.DBPath == "" {
		cfg.Store.DBPath = filepath.Join(cfg.Store.DataDir, ".timelog", "timelog.db")
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverVault, DriverMemory:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown timeout cannot be negative")
	}
	return c.Logging.Validate()
}
