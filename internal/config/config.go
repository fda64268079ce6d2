package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the deepsearch service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds document store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

// CacheConfig holds evaluation cache settings. Disabled means the evaluator
// calls the LLM directly.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLHours         int      `yaml:"ttl_hours"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LLMConfig holds inference provider settings shared by the planner,
// evaluator, and synthesizer roles.
type LLMConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RetrievalConfig holds search source settings.
type RetrievalConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	MaxAttempts    int    `yaml:"max_attempts"`
	BackoffBaseMS  int    `yaml:"backoff_base_ms"`
	BackoffMaxMS   int    `yaml:"backoff_max_ms"`
	MinIntervalSec int    `yaml:"min_interval_sec"`
}

// PipelineConfig holds the investigation loop policy.
type PipelineConfig struct {
	MaxDepth           int     `yaml:"max_depth"`
	CallBudget         int     `yaml:"call_budget"`
	InsightThreshold   float64 `yaml:"insight_threshold"`
	RelevanceThreshold int     `yaml:"relevance_threshold"`
	MaxQueries         int     `yaml:"max_queries"`
	EvalConcurrency    int     `yaml:"eval_concurrency"`
	DefaultSize        int     `yaml:"default_size"`
	ContextLines       int     `yaml:"context_lines"`
	TaskTimeoutSec     int     `yaml:"task_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "deepsearch.db"
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 60
	}
	if c.Retrieval.TimeoutSec <= 0 {
		c.Retrieval.TimeoutSec = 30
	}
	if c.Retrieval.MaxAttempts <= 0 {
		c.Retrieval.MaxAttempts = 4
	}
	if c.Retrieval.BackoffBaseMS <= 0 {
		c.Retrieval.BackoffBaseMS = 500
	}
	if c.Retrieval.BackoffMaxMS <= 0 {
		c.Retrieval.BackoffMaxMS = 8000
	}
	if c.Retrieval.MinIntervalSec <= 0 {
		c.Retrieval.MinIntervalSec = 2
	}
	if c.Pipeline.MaxDepth <= 0 {
		c.Pipeline.MaxDepth = 2
	}
	if c.Pipeline.CallBudget <= 0 {
		c.Pipeline.CallBudget = 12
	}
	if c.Pipeline.InsightThreshold <= 0 {
		c.Pipeline.InsightThreshold = 6.0
	}
	if c.Pipeline.RelevanceThreshold <= 0 {
		c.Pipeline.RelevanceThreshold = 5
	}
	if c.Pipeline.MaxQueries <= 0 {
		c.Pipeline.MaxQueries = 3
	}
	if c.Pipeline.EvalConcurrency <= 0 {
		c.Pipeline.EvalConcurrency = 4
	}
	if c.Pipeline.DefaultSize <= 0 {
		c.Pipeline.DefaultSize = 30
	}
	if c.Pipeline.ContextLines <= 0 {
		c.Pipeline.ContextLines = 2
	}
	if c.Pipeline.TaskTimeoutSec <= 0 {
		c.Pipeline.TaskTimeoutSec = 300
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if c.Retrieval.BaseURL == "" {
		return fmt.Errorf("retrieval.base_url is required")
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	if c.Pipeline.InsightThreshold > 10 {
		return fmt.Errorf("pipeline.insight_threshold must be within [0, 10], got %g", c.Pipeline.InsightThreshold)
	}
	if c.Pipeline.RelevanceThreshold > 10 {
		return fmt.Errorf("pipeline.relevance_threshold must be within [0, 10], got %d", c.Pipeline.RelevanceThreshold)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
