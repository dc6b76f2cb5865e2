// Package config loads shiplens configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all shiplens configuration.
type Config struct {
	// LLM collaborator
	LLM LLMConfig `yaml:"llm"`

	// Snapshot object storage
	Storage StorageConfig `yaml:"storage"`

	// Local snapshot cache
	Cache CacheConfig `yaml:"cache"`

	// Analytics execution
	Analytics AnalyticsConfig `yaml:"analytics"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the text-generation collaborator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// StorageConfig configures the snapshot object store.
type StorageConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`   // optional custom endpoint (minio, localstack)
	PathStyle bool   `yaml:"path_style"` // required by most custom endpoints
	ObjectKey string `yaml:"object_key"` // remote snapshot key
}

// CacheConfig configures the local snapshot cache.
type CacheConfig struct {
	Dir  string `yaml:"dir"`
	Mode string `yaml:"mode"` // "" or "test"

	// Prewarm lists consignee-code sets whose views are built at startup.
	Prewarm [][]string `yaml:"prewarm"`
}

// AnalyticsConfig configures fragment execution.
type AnalyticsConfig struct {
	Engine        string `yaml:"engine"` // sql or script
	SampleRows    int    `yaml:"sample_rows"`
	ScriptTimeout string `yaml:"script_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  "60s",
		},
		Storage: StorageConfig{
			Region:    "us-east-1",
			ObjectKey: "master_ds.db",
		},
		Cache: CacheConfig{
			Dir: "data/snapshots",
		},
		Analytics: AnalyticsConfig{
			Engine:        "sql",
			SampleRows:    5,
			ScriptTimeout: "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults;
// environment variables override in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if model := os.Getenv("SHIPLENS_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if bucket := os.Getenv("SHIPLENS_BUCKET"); bucket != "" {
		c.Storage.Bucket = bucket
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		c.Storage.Region = region
	}
	if endpoint := os.Getenv("SHIPLENS_S3_ENDPOINT"); endpoint != "" {
		c.Storage.Endpoint = endpoint
		c.Storage.PathStyle = true
	}
	if dir := os.Getenv("SHIPLENS_CACHE_DIR"); dir != "" {
		c.Cache.Dir = dir
	}
	if mode := os.Getenv("SHIPLENS_MODE"); mode != "" {
		c.Cache.Mode = mode
	}
	if eng := os.Getenv("SHIPLENS_ENGINE"); eng != "" {
		c.Analytics.Engine = eng
	}
	if level := os.Getenv("SHIPLENS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// ScriptTimeout parses the configured script timeout, defaulting on parse
// failure.
func (c *Config) ScriptTimeout() time.Duration {
	d, err := time.ParseDuration(c.Analytics.ScriptTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// LLMTimeout parses the configured collaborator timeout.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// Validate checks the parts that have no workable default.
func (c *Config) Validate() error {
	if c.Analytics.Engine != "sql" && c.Analytics.Engine != "script" {
		return fmt.Errorf("analytics.engine must be sql or script, got %q", c.Analytics.Engine)
	}
	if c.Cache.Mode != "" && c.Cache.Mode != "test" {
		return fmt.Errorf("cache.mode must be empty or test, got %q", c.Cache.Mode)
	}
	return nil
}
