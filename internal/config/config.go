package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/devbook-dev/devbook/internal/session"
)

const (
	DefaultEndpoint = "wss://api.usedevbook.com"
	DefaultEnv      = "nodejs"
)

type Config struct {
	Endpoint     string          `yaml:"endpoint"`
	Token        string          `yaml:"token"`
	Environments []string        `yaml:"environments"`
	DefaultEnv   string          `yaml:"default_env"`
	Ports        []int           `yaml:"ports"`
	Debug        bool            `yaml:"debug"`
	HTTPTimeout  time.Duration   `yaml:"http_timeout"`
	Reconnect    ReconnectConfig `yaml:"reconnect"`
	Mock         MockConfig      `yaml:"mock"`
}

type ReconnectConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

type MockConfig struct {
	Tick time.Duration `yaml:"tick"`
}

// envOverrides is filled from DEVBOOK_* variables. Pointers distinguish an
// unset variable from an empty one.
type envOverrides struct {
	Endpoint *string `envconfig:"ENDPOINT"`
	Token    *string `envconfig:"TOKEN"`
	Debug    *bool   `envconfig:"DEBUG"`
}

func defaultConfig() *Config {
	return &Config{
		Endpoint:     DefaultEndpoint,
		Environments: []string{DefaultEnv, "python", "go"},
		DefaultEnv:   DefaultEnv,
		Ports:        []int{3000, 8080},
		HTTPTimeout:  15 * time.Second,
		Reconnect: ReconnectConfig{
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
		},
		Mock: MockConfig{
			Tick: 150 * time.Millisecond,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config { return defaultConfig() }

// Load reads path over the defaults. A missing file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// DefaultPath returns ~/.config/devbook/config.yaml, honouring
// XDG_CONFIG_HOME.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "devbook", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "devbook", "config.yaml")
}

// ApplyEnv overrides fields from DEVBOOK_ENDPOINT, DEVBOOK_TOKEN and
// DEVBOOK_DEBUG.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process("devbook", &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	if env.Endpoint != nil {
		c.Endpoint = *env.Endpoint
	}
	if env.Token != nil {
		c.Token = *env.Token
	}
	if env.Debug != nil {
		c.Debug = *env.Debug
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is empty"))
	}
	if len(c.Environments) == 0 {
		errs = append(errs, errors.New("no environments configured"))
	} else if !slices.Contains(c.Environments, c.DefaultEnv) {
		errs = append(errs, fmt.Errorf("default_env %q is not in environments", c.DefaultEnv))
	}
	for _, p := range c.Ports {
		if p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("port %d out of range", p))
		}
	}
	if c.Reconnect.InitialInterval <= 0 || c.Reconnect.MaxInterval < c.Reconnect.InitialInterval {
		errs = append(errs, fmt.Errorf("reconnect intervals invalid: initial %s, max %s",
			c.Reconnect.InitialInterval, c.Reconnect.MaxInterval))
	}
	return errors.Join(errs...)
}

// Remote returns the connection settings handed to the session client.
func (c *Config) Remote() session.Remote {
	return session.Remote{
		Endpoint:    c.Endpoint,
		Token:       c.Token,
		HTTPTimeout: c.HTTPTimeout,
	}
}

// EnvIndex returns the position of env in Environments, or 0.
func (c *Config) EnvIndex(env string) int {
	if i := slices.Index(c.Environments, env); i >= 0 {
		return i
	}
	return 0
}
