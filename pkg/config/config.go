// Package config loads shcd/shcctl configuration from file, environment,
// and defaults, adapted from the teacher's viper + validator +
// mapstructure stack.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/shardcache-go/shc/internal/bytesize"
	"github.com/shardcache-go/shc/pkg/wire"
)

// Config is the top-level shcd configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (SHC_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// Environment variables override only keys that appear in the
// configuration file; when no file is found, SHC_* variables are not read.
type Config struct {
	Listen  ListenConfig  `mapstructure:"listen" yaml:"listen"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Timeout TimeoutConfig `mapstructure:"timeout" yaml:"timeout"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ListenConfig configures the cache node's TCP listener.
type ListenConfig struct {
	// Address is a host, host:port, or "*" per spec.md §6's address grammar.
	Address string `mapstructure:"address" validate:"required" yaml:"address"`
	Port    int    `mapstructure:"port" validate:"min=1,max=65535" yaml:"port"`
	// UnixSocket, when set, makes the node listen on this Unix-domain path
	// instead of on Address and Port.
	UnixSocket string `mapstructure:"unix_socket" yaml:"unix_socket,omitempty"`
	// MaxConnections limits concurrent client connections; 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0" yaml:"max_connections"`
}

// AuthConfig selects the wire protocol's authenticator secret and
// signature mode (spec.md §3/§4.2).
type AuthConfig struct {
	Secret string `mapstructure:"secret" yaml:"secret,omitempty"`
	// SigMode is "none", "whole" (F0), or "chunk" (F1).
	SigMode string `mapstructure:"sig_mode" validate:"omitempty,oneof=none whole chunk" yaml:"sig_mode"`
}

// WireSigMode resolves the configured string into a wire.SigMode.
func (a AuthConfig) WireSigMode() wire.SigMode {
	switch strings.ToLower(a.SigMode) {
	case "chunk":
		return wire.SigChunk
	case "whole":
		return wire.SigWhole
	default:
		return wire.SigNone
	}
}

// TimeoutConfig controls the process-wide TCP idle timeout (spec.md §5).
type TimeoutConfig struct {
	TCP time.Duration `mapstructure:"tcp" validate:"gte=0" yaml:"tcp"`
}

// LoggingConfig controls logging behavior, mirroring the teacher's
// LoggingConfig shape.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// StorageConfig configures the reference storage backend (SPEC_FULL.md §3.1).
type StorageConfig struct {
	// Path is the directory Badger uses for its value log and LSM tree.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`
	// HotCacheSize bounds the Ristretto admission cache fronting Badger.
	// Supports human-readable sizes ("256MB", "1Gi").
	HotCacheSize bytesize.ByteSize `mapstructure:"hot_cache_size" yaml:"hot_cache_size,omitempty"`
}

// MetricsConfig configures the admin HTTP surface (SPEC_FULL.md §3.3/§3.4).
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Port        int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	RequireAuth bool   `mapstructure:"require_auth" yaml:"require_auth"`
	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`
}

// Defaults returns a Config with every field set to its documented
// default, mirroring the teacher's GetDefaultConfig/ApplyDefaults split.
func Defaults() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in any zero-valued field with its documented
// default. Explicit values loaded from file/env are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.Listen.Address == "" {
		cfg.Listen.Address = "*"
	}
	if cfg.Listen.Port == 0 {
		cfg.Listen.Port = wire.DefaultPort
	}

	if cfg.Auth.SigMode == "" {
		cfg.Auth.SigMode = "none"
	}

	if cfg.Timeout.TCP == 0 {
		cfg.Timeout.TCP = 5 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "/var/lib/shcd/data"
	}
	if cfg.Storage.HotCacheSize == 0 {
		cfg.Storage.HotCacheSize = 256 * bytesize.MB
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

var validate = validator.New()

// Validate checks cfg against its struct validation tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// Load reads configuration from configPath (or the default search path
// when empty), applies SHC_-prefixed environment overrides to the keys the
// file sets, fills defaults, and validates the result. When no
// configuration file is found it returns Defaults() as is: environment
// variables are then not applied.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return Defaults(), nil
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(byteSizeDecodeHook(), durationDecodeHook())
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SHC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "shcd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "shcd")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}
