// Package config provides configuration management for issuedeck.
// Values come from a YAML file, then ISSUEDECK_* environment variables,
// then command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/h0rv/issuedeck/internal/jira"
)

var (
	// ErrConfigFileParse indicates the config file is not valid YAML.
	ErrConfigFileParse = errors.New("failed to parse config file")
	// ErrInvalidConfig indicates a value failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Environment variables consulted by ApplyEnv.
const (
	EnvBaseURL        = "ISSUEDECK_BASE_URL"
	EnvDefaultProject = "ISSUEDECK_PROJECT"
	EnvMaxResults     = "ISSUEDECK_MAX_RESULTS"
	EnvStorePath      = "ISSUEDECK_STORE"
	EnvFetchStats     = "ISSUEDECK_FETCH_STATS"
	EnvStatsLimit     = "ISSUEDECK_STATS_LIMIT"
)

// Config represents the application configuration.
type Config struct {
	BaseURL         string        `yaml:"base_url"`
	DefaultProject  string        `yaml:"default_project"`
	MaxResults      int           `yaml:"max_results"`
	StorePath       string        `yaml:"store_path"`
	RelayURL        string        `yaml:"relay_url,omitempty"` // Replaces the built-in relay list when set
	FetchStats      bool          `yaml:"fetch_stats"`
	StatsLimit      int           `yaml:"stats_limit"`       // Projects that get issue statistics
	StatsBatchSize  int           `yaml:"stats_batch_size"`  // Concurrent statistics requests
	StatsBatchDelay time.Duration `yaml:"stats_batch_delay"` // Pause between statistics batches
	ProjectLimit    int           `yaml:"project_limit"`
}

// StatsPolicy returns the statistics policy described by the config.
func (c *Config) StatsPolicy() jira.StatsPolicy {
	return jira.StatsPolicy{
		Enabled:   c.FetchStats,
		Limit:     c.StatsLimit,
		BatchSize: c.StatsBatchSize,
		Delay:     c.StatsBatchDelay,
	}
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base_url cannot be empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base_url %q is not an absolute URL", ErrInvalidConfig, c.BaseURL)
	}
	if c.MaxResults < 1 {
		return fmt.Errorf("%w: max_results must be positive", ErrInvalidConfig)
	}
	if c.StatsLimit < 0 {
		return fmt.Errorf("%w: stats_limit cannot be negative", ErrInvalidConfig)
	}
	if c.StatsBatchSize < 1 {
		return fmt.Errorf("%w: stats_batch_size must be positive", ErrInvalidConfig)
	}
	if c.StatsBatchDelay < 0 {
		return fmt.Errorf("%w: stats_batch_delay cannot be negative", ErrInvalidConfig)
	}
	if c.ProjectLimit < 1 {
		return fmt.Errorf("%w: project_limit must be positive", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overrides values from ISSUEDECK_* environment variables.
// Unparsable numeric or boolean values are reported as errors.
func (c *Config) ApplyEnv() error {
	c.BaseURL = getEnvOrDefault(EnvBaseURL, c.BaseURL)
	c.DefaultProject = getEnvOrDefault(EnvDefaultProject, c.DefaultProject)
	c.StorePath = getEnvOrDefault(EnvStorePath, c.StorePath)

	if v := os.Getenv(EnvMaxResults); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvMaxResults, v)
		}
		c.MaxResults = n
	}
	if v := os.Getenv(EnvStatsLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvStatsLimit, v)
		}
		c.StatsLimit = n
	}
	if v := os.Getenv(EnvFetchStats); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvFetchStats, v)
		}
		c.FetchStats = b
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Manager loads and saves configuration files.
type Manager interface {
	LoadConfig(configPath string) (*Config, error)
	LoadConfigWithFallback(configPath string) (*Config, error)
	SaveConfig(configPath string, config *Config) error
	DefaultConfig() *Config
	DefaultConfigPath() string
}

type realManager struct{}

// NewManager creates a new Manager instance.
func NewManager() Manager {
	return &realManager{}
}

// LoadConfig loads configuration from the specified file path.
// Keys missing from the file keep their default values.
func (m *realManager) LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := m.DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigFileParse, err)
	}

	config.StorePath = expandTilde(config.StorePath)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigWithFallback loads configuration, falling back to defaults when the
// file does not exist. A file that exists but is invalid is still an error.
func (m *realManager) LoadConfigWithFallback(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return m.DefaultConfig(), nil
	}
	return m.LoadConfig(configPath)
}

// SaveConfig writes config to configPath as YAML.
func (m *realManager) SaveConfig(configPath string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

// DefaultConfig returns the default configuration.
func (m *realManager) DefaultConfig() *Config {
	policy := jira.DefaultStatsPolicy()
	return &Config{
		BaseURL:         jira.DefaultBaseURL,
		DefaultProject:  "FLINK",
		MaxResults:      jira.DefaultMaxResults,
		StorePath:       filepath.Join(dataDir(), "issuedeck", "store.json"),
		FetchStats:      policy.Enabled,
		StatsLimit:      policy.Limit,
		StatsBatchSize:  policy.BatchSize,
		StatsBatchDelay: policy.Delay,
		ProjectLimit:    jira.DefaultProjectLimit,
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/issuedeck/config.yaml, falling
// back to the platform config directory.
func (m *realManager) DefaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "issuedeck", "config.yaml")
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "issuedeck", "config.yaml")
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
