// Package config loads formwizard settings with Viper.
//
// Precedence: flags > FORMWIZARD_* env vars > project file > global file >
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/protocol"
)

// Config validation errors.
var (
	ErrEmptyAddress    = errors.New("address must not be empty")
	ErrInvalidCodec    = errors.New("codec must be json or msgpack")
	ErrInvalidLogLevel = errors.New("invalid log level")
	ErrInvalidFormat   = errors.New("log format must be text or json")
	ErrInvalidTimeout  = errors.New("timeouts must be positive")
	ErrInvalidLimit    = errors.New("session and connection limits must be positive")
	ErrInvalidRate     = errors.New("message rate and burst must not be negative")
)

// Config holds all configuration values.
type Config struct {
	Address         string        `mapstructure:"address"`
	Template        string        `mapstructure:"template"`
	FormID          string        `mapstructure:"form_id"`
	Codec           string        `mapstructure:"codec"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	LogFile         string        `mapstructure:"log_file"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	InsecureDevMode bool          `mapstructure:"insecure_dev_mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	MaxErrors       int           `mapstructure:"max_errors"`
	MaxSessions     int           `mapstructure:"max_sessions"`
	MaxConnsPerIP   int           `mapstructure:"max_conns_per_ip"`
	TrustProxy      bool          `mapstructure:"trust_proxy"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MessageRate     float64       `mapstructure:"message_rate"`
	MessageBurst    int           `mapstructure:"message_burst"`
}

var keys = []string{
	"address", "template", "form_id", "codec",
	"log_level", "log_format", "log_file",
	"allowed_origins", "insecure_dev_mode",
	"read_timeout", "write_timeout", "ping_interval", "max_errors",
	"max_sessions", "max_conns_per_ip", "trust_proxy", "shutdown_timeout",
	"message_rate", "message_burst",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("address", ":8080")
	v.SetDefault("template", "")
	v.SetDefault("form_id", "")
	v.SetDefault("codec", "json")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("insecure_dev_mode", false)
	v.SetDefault("read_timeout", 30*time.Second)
	v.SetDefault("write_timeout", 10*time.Second)
	v.SetDefault("ping_interval", 30*time.Second)
	v.SetDefault("max_errors", 10)
	v.SetDefault("max_sessions", 1000)
	v.SetDefault("max_conns_per_ip", 20)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("shutdown_timeout", 15*time.Second)
	v.SetDefault("message_rate", 20.0)
	v.SetDefault("message_burst", 40)
}

// Load reads the configuration. A non-empty path replaces the global and
// project files. Flags are bound through v when it is not nil.
func Load(path string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("FORMWIZARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key, "FORMWIZARD_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		if global := GlobalPath(); fileExists(global) {
			v.SetConfigFile(global)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading global config: %w", err)
			}
		}
		if project := ProjectPath(); fileExists(project) {
			v.SetConfigFile(project)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return ErrEmptyAddress
	}
	if _, err := protocol.CodecByName(c.Codec); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCodec, c.Codec)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.LogFormat)
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.PingInterval <= 0 || c.ShutdownTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxSessions <= 0 || c.MaxConnsPerIP <= 0 {
		return ErrInvalidLimit
	}
	if c.MessageRate < 0 || c.MessageBurst < 0 {
		return ErrInvalidRate
	}
	return nil
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		File:   c.LogFile,
	}
}

// GlobalPath returns the XDG global config path.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "formwizard", "formwizard.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "formwizard", "formwizard.yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "formwizard.yml"
}

// file is the on-disk shape; durations are written in their string form.
type file struct {
	Address         string   `yaml:"address"`
	Template        string   `yaml:"template,omitempty"`
	FormID          string   `yaml:"form_id,omitempty"`
	Codec           string   `yaml:"codec"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`
	LogFile         string   `yaml:"log_file,omitempty"`
	AllowedOrigins  []string `yaml:"allowed_origins,omitempty"`
	InsecureDevMode bool     `yaml:"insecure_dev_mode"`
	ReadTimeout     string   `yaml:"read_timeout"`
	WriteTimeout    string   `yaml:"write_timeout"`
	PingInterval    string   `yaml:"ping_interval"`
	MaxErrors       int      `yaml:"max_errors"`
	MaxSessions     int      `yaml:"max_sessions"`
	MaxConnsPerIP   int      `yaml:"max_conns_per_ip"`
	TrustProxy      bool     `yaml:"trust_proxy"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	MessageRate     float64  `yaml:"message_rate"`
	MessageBurst    int      `yaml:"message_burst"`
}

// Marshal returns cfg in the YAML file format.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(file{
		Address:         cfg.Address,
		Template:        cfg.Template,
		FormID:          cfg.FormID,
		Codec:           cfg.Codec,
		LogLevel:        cfg.LogLevel,
		LogFormat:       cfg.LogFormat,
		LogFile:         cfg.LogFile,
		AllowedOrigins:  cfg.AllowedOrigins,
		InsecureDevMode: cfg.InsecureDevMode,
		ReadTimeout:     cfg.ReadTimeout.String(),
		WriteTimeout:    cfg.WriteTimeout.String(),
		PingInterval:    cfg.PingInterval.String(),
		MaxErrors:       cfg.MaxErrors,
		MaxSessions:     cfg.MaxSessions,
		MaxConnsPerIP:   cfg.MaxConnsPerIP,
		TrustProxy:      cfg.TrustProxy,
		ShutdownTimeout: cfg.ShutdownTimeout.String(),
		MessageRate:     cfg.MessageRate,
		MessageBurst:    cfg.MessageBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// Write stores cfg as YAML at path, creating parent directories.
func Write(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
