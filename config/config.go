package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"stakevault/core/epoch"
	"stakevault/core/rewards"
)

// Config is the on-disk configuration of the staking daemon.
type Config struct {
	DataDir         string          `toml:"DataDir"`
	MetricsAddress  string          `toml:"MetricsAddress"`
	Environment     string          `toml:"Environment"`
	LogFile         string          `toml:"LogFile"`
	Authority       string          `toml:"Authority"`
	RewardRate      uint64          `toml:"RewardRate"`
	EpochSeconds    uint64          `toml:"EpochSeconds"`
	InitVaultOnBoot bool            `toml:"InitVaultOnBoot"`
	Telemetry       TelemetryConfig `toml:"Telemetry"`
}

// TelemetryConfig controls the OTLP trace exporter.
type TelemetryConfig struct {
	Traces   bool   `toml:"Traces"`
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		DataDir:        "./stakevault-data",
		MetricsAddress: ":9464",
		Environment:    "local",
		RewardRate:     rewards.DefaultRate,
		EpochSeconds:   epoch.DefaultSeconds,
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unknown field %q in %s", undecoded[0].String(), path)
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	cfg.Authority = strings.TrimSpace(cfg.Authority)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
