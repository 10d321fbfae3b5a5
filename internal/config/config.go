// Package config loads the process configuration from an optional YAML
// file, a .env file and CONTALEDGER_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/simonvc/contaledger/internal/log"
)

const (
	configDirPathEnv     = "CONTALEDGER_CONFIG_DIR"
	defaultConfigDirPath = "."
	configFileName       = "contaledger.yaml"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"CONTALEDGER_ADDR" env-default:":8888"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"CONTALEDGER_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type StorageConfig struct {
	// DataDir holds one SQLite database per tenant.
	DataDir string `yaml:"data_dir" env:"CONTALEDGER_DATA_DIR" env-default:"data"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"CONTALEDGER_LOG_LEVEL" env-default:"info"`
}

type MetricsConfig struct {
	// Addr serves /metrics on its own listener; empty mounts it on the API
	// router instead.
	Addr string `yaml:"addr" env:"CONTALEDGER_METRICS_ADDR" env-default:""`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8888", ShutdownTimeout: 5 * time.Second},
		Storage: StorageConfig{DataDir: "data"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the .env file and contaledger.yaml from the config directory
// (CONTALEDGER_CONFIG_DIR, default "."), then applies environment
// overrides. path selects an explicit YAML file instead.
func Load(path string, lg log.Logger) (*Config, error) {
	lg = lg.NewSystem("config")

	dir := os.Getenv(configDirPathEnv)
	if dir == "" {
		dir = defaultConfigDirPath
	}

	dotEnv := filepath.Join(dir, ".env")
	if err := godotenv.Load(dotEnv); err != nil {
		lg.Debug(".env file not loaded", "path", dotEnv)
	} else {
		lg.Info("loaded .env file", "path", dotEnv)
	}

	if path == "" {
		candidate := filepath.Join(dir, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	var cfg Config
	if path != "" {
		lg.Info("reading config file", "path", path)
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("config: server address is required")
	}
	if c.Storage.DataDir == "" {
		return errors.New("config: data directory is required")
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("config: shutdown timeout cannot be negative")
	}
	return nil
}

// Usage describes the environment variables understood by Load.
func Usage() (string, error) {
	var cfg Config
	return cleanenv.GetDescription(&cfg, nil)
}
