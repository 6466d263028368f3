package engine

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/germanamz/hostbridge/pkg/accountapi"
	"github.com/germanamz/hostbridge/pkg/inject"
	"github.com/germanamz/hostbridge/pkg/navigation"
	"github.com/germanamz/hostbridge/pkg/watcher"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// DefaultPollInterval is how often status and accounts are refetched.
const DefaultPollInterval = time.Minute

// Config is the top-level engine configuration.
type Config struct {
	Network    NetworkConfig    `yaml:"network"`
	Storage    StorageConfig    `yaml:"storage"`
	Service    ServiceConfig    `yaml:"service"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
	Poll       PollConfig       `yaml:"poll"`
	Navigation NavigationConfig `yaml:"navigation"`
	Bridge     BridgeConfig     `yaml:"bridge"`
}

// NetworkConfig selects the deployment environment. Empty endpoint fields
// fall back to the environment's defaults.
type NetworkConfig struct {
	Testnet  bool   `yaml:"testnet"`
	API      string `yaml:"api"`
	App      string `yaml:"app"`
	Realtime string `yaml:"realtime"`
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	Backend  string `yaml:"backend"` // memory (default), file or sqlite.
	Path     string `yaml:"path"`
	PoolSize int    `yaml:"pool_size"`
	// Migrations overrides the token store migration chain when set.
	Migrations []string `yaml:"migrations"`
}

// ServiceConfig tunes the account service client.
type ServiceConfig struct {
	Timeout string            `yaml:"timeout"` // Duration string, e.g. "30s".
	Headers map[string]string `yaml:"headers"`
}

// RealtimeConfig configures watchers.
type RealtimeConfig struct {
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig is the YAML form of watcher.ReconnectPolicy.
type ReconnectConfig struct {
	Delay       string  `yaml:"delay"`
	Multiplier  float64 `yaml:"multiplier"`
	MaxDelay    string  `yaml:"max_delay"`
	MaxAttempts int     `yaml:"max_attempts"`
}

// PollConfig configures periodic refresh.
type PollConfig struct {
	Interval string `yaml:"interval"`
}

// NavigationConfig configures query-driven navigation.
type NavigationConfig struct {
	QueryAPI   bool   `yaml:"query_api"`
	BackPolicy string `yaml:"back_policy"` // close (default), back or lock.
}

// BridgeConfig configures what embedded content may use.
type BridgeConfig struct {
	API           inject.API    `yaml:"api"`
	SafeArea      inject.Insets `yaml:"safe_area"`
	SafeDomains   []string      `yaml:"safe_domains"`
	TrustedOrigin string        `yaml:"trusted_origin"`
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing, so endpoints and headers can come from a .env file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig expands environment variables in data and decodes it.
func ParseConfig(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case "", StorageMemory:
	case StorageFile, StorageSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("engine: config: storage %q: path is required", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("engine: config: unknown storage backend %q", c.Storage.Backend)
	}

	if c.Storage.PoolSize < 0 {
		return errors.New("engine: config: storage pool_size must not be negative")
	}

	if p := c.Navigation.BackPolicy; p != "" && !navigation.BackPolicy(p).Valid() {
		return fmt.Errorf("engine: config: unknown back_policy %q", p)
	}

	if _, err := c.ReconnectPolicy(); err != nil {
		return err
	}
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	if _, err := c.ServiceTimeout(); err != nil {
		return err
	}

	if c.Realtime.Reconnect.MaxAttempts < 0 {
		return errors.New("engine: config: reconnect max_attempts must not be negative")
	}

	return nil
}

// Endpoints returns the service endpoints with configured overrides applied.
func (c Config) Endpoints() accountapi.Endpoints {
	ep := accountapi.DefaultEndpoints(c.Network.Testnet)

	if c.Network.API != "" {
		ep.API = c.Network.API
	}
	if c.Network.App != "" {
		ep.App = c.Network.App
	}
	if c.Network.Realtime != "" {
		ep.Realtime = c.Network.Realtime
	}

	return ep
}

// BackPolicy returns the configured default back policy.
func (c Config) BackPolicy() navigation.BackPolicy {
	if p := navigation.BackPolicy(c.Navigation.BackPolicy); p.Valid() {
		return p
	}

	return navigation.DefaultBackPolicy
}

// ReconnectPolicy converts the reconnect section, filling defaults.
func (c Config) ReconnectPolicy() (watcher.ReconnectPolicy, error) {
	p := watcher.DefaultReconnectPolicy()
	rc := c.Realtime.Reconnect

	delay, err := parseDuration("realtime.reconnect.delay", rc.Delay)
	if err != nil {
		return p, err
	}
	if delay > 0 {
		p.Delay = delay
	}

	maxDelay, err := parseDuration("realtime.reconnect.max_delay", rc.MaxDelay)
	if err != nil {
		return p, err
	}
	p.MaxDelay = maxDelay

	if rc.Multiplier != 0 {
		if rc.Multiplier < 1 {
			return p, fmt.Errorf("engine: config: realtime.reconnect.multiplier must be >= 1, got %v", rc.Multiplier)
		}
		p.Multiplier = rc.Multiplier
	}

	p.MaxAttempts = rc.MaxAttempts

	return p, nil
}

// PollInterval returns the poll interval, DefaultPollInterval when unset.
func (c Config) PollInterval() (time.Duration, error) {
	d, err := parseDuration("poll.interval", c.Poll.Interval)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return DefaultPollInterval, nil
	}

	return d, nil
}

// ServiceTimeout returns the per-request timeout, zero when unset.
func (c Config) ServiceTimeout() (time.Duration, error) {
	return parseDuration("service.timeout", c.Service.Timeout)
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("engine: config: %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("engine: config: %s must not be negative", field)
	}

	return d, nil
}
