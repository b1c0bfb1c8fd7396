package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Identify    IdentifyConfig   `toml:"identify"`
	Fetch       FetchConfig      `toml:"fetch"`
	Enrichment  EnrichmentConfig `toml:"enrichment"`
	Jobs        JobsConfig       `toml:"jobs"`
	WebSocket   WebSocketConfig  `toml:"websocket"`
	Retention   RetentionConfig  `toml:"retention"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
	// MaxUploadBytes bounds the submitted image size
	MaxUploadBytes int64 `toml:"max_upload_bytes"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// IdentifyConfig contains configuration for the identification stage
type IdentifyConfig struct {
	Provider    string  `toml:"provider"`     // "claude" or "gemini"
	APIKey      string  `toml:"api_key"`      // Provider API key (env override: REPERIO_IDENTIFY_API_KEY)
	Model       string  `toml:"model"`        // Model name (provider-specific default when empty)
	Timeout     string  `toml:"timeout"`      // Stage timeout as duration string (default: "2m")
	MaxTokens   int     `toml:"max_tokens"`   // Maximum tokens in response (default: 2048)
	Temperature float32 `toml:"temperature"`  // Completion temperature (default: 0.2)
	MaxURLHints int     `toml:"max_url_hints"` // Cap on supplier URL hints taken from a candidate
}

// FetchConfig contains strategy-level fetch configuration. Each strategy has
// an independent timeout; attempt-level timeouts are always shorter than the
// per-task and per-job bounds.
type FetchConfig struct {
	UserAgent          string        `toml:"user_agent"`           // Default user agent for the plain strategy
	FingerprintsFile   string        `toml:"fingerprints_file"`    // YAML file with rotating browser fingerprints
	PlainTimeout       time.Duration `toml:"plain_timeout"`        // Plain strategy timeout (default: 15s)
	BypassTimeout      time.Duration `toml:"bypass_timeout"`       // Challenge-bypass strategy timeout (default: 20s)
	RenderedTimeout    time.Duration `toml:"rendered_timeout"`     // Rendered strategy timeout (default: 45s)
	MaxBodySize        int64         `toml:"max_body_size"`        // Maximum response body size in bytes
	DomainDelay        time.Duration `toml:"domain_delay"`         // Minimum delay between requests to the same domain
	BrowserPoolSize    int           `toml:"browser_pool_size"`    // Fixed capacity of rendered (chromedp) contexts
	BrowserHeadless    bool          `toml:"browser_headless"`     // Run Chrome headless
	BrowserNoSandbox   bool          `toml:"browser_no_sandbox"`   // Pass --no-sandbox (containers)
	JavaScriptWaitTime time.Duration `toml:"javascript_wait_time"` // Time to wait for JavaScript to render
	MinContentBytes    int           `toml:"min_content_bytes"`    // Byte-size floor below which content is treated as an unrendered shell
}

// EnrichmentConfig contains coordinator-level configuration
type EnrichmentConfig struct {
	Concurrency     int           `toml:"concurrency"`      // Global worker fan-out cap
	MaxAttempts     int           `toml:"max_attempts"`     // Hard per-task attempt cap
	TaskTimeout     time.Duration `toml:"task_timeout"`     // Per-task wall-clock bound
	Deadline        time.Duration `toml:"deadline"`         // Coordinator-wide hard deadline
	MinConfidence   float64       `toml:"min_confidence"`   // Below this, zero successful suppliers fails the job
	ProgressEvery   int           `toml:"progress_every"`   // Emit a sub-progress event every N resolved tasks (0 = every task)
}

// JobsConfig contains orchestrator-level configuration
type JobsConfig struct {
	HardDeadline time.Duration `toml:"hard_deadline"` // Whole-job bound covering identification and enrichment
}

// WebSocketConfig contains configuration for the progress stream
type WebSocketConfig struct {
	BufferSize       int    `toml:"buffer_size"`       // Per-subscriber event buffer before dropping
	ThrottleInterval string `toml:"throttle_interval"` // Minimum interval between sub-progress frames (e.g. "250ms")
}

// RetentionConfig controls the cron sweep of finished jobs
type RetentionConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
	MaxAge   string `toml:"max_age"`  // Terminal jobs older than this are purged (duration string)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings should be exposed in reperio.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:           8085,
			Host:           "localhost",
			MaxUploadBytes: 10 * 1024 * 1024, // 10MB
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Identify: IdentifyConfig{
			Provider:    "claude",
			Model:       "", // Provider default
			Timeout:     "2m",
			MaxTokens:   2048,
			Temperature: 0.2,
			MaxURLHints: 10,
		},
		Fetch: FetchConfig{
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			FingerprintsFile:   "./fingerprints.yaml",
			PlainTimeout:       15 * time.Second,
			BypassTimeout:      20 * time.Second,
			RenderedTimeout:    45 * time.Second,
			MaxBodySize:        10 * 1024 * 1024, // 10MB
			DomainDelay:        1 * time.Second,
			BrowserPoolSize:    2, // Rendered contexts are expensive; keep the pool small
			BrowserHeadless:    true,
			BrowserNoSandbox:   false,
			JavaScriptWaitTime: 3 * time.Second,
			MinContentBytes:    2048,
		},
		Enrichment: EnrichmentConfig{
			Concurrency:   4,
			MaxAttempts:   3,
			TaskTimeout:   90 * time.Second,
			Deadline:      4 * time.Minute,
			MinConfidence: 0.3,
			ProgressEvery: 1,
		},
		Jobs: JobsConfig{
			HardDeadline: 8 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			BufferSize:       64,
			ThrottleInterval: "250ms",
		},
		Retention: RetentionConfig{
			Enabled:  true,
			Schedule: "0 0 * * * *", // Hourly
			MaxAge:   "168h",        // 7 days
		},
	}
}

// LoadFromFiles loads configuration from defaults, then applies each file in
// order (later files override earlier ones), then environment overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies REPERIO_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("REPERIO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("REPERIO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if badgerPath := os.Getenv("REPERIO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if level := os.Getenv("REPERIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if provider := os.Getenv("REPERIO_IDENTIFY_PROVIDER"); provider != "" {
		config.Identify.Provider = provider
	}
	if apiKey := os.Getenv("REPERIO_IDENTIFY_API_KEY"); apiKey != "" {
		config.Identify.APIKey = apiKey
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" && config.Identify.APIKey == "" {
		config.Identify.APIKey = apiKey
	}
	if model := os.Getenv("REPERIO_IDENTIFY_MODEL"); model != "" {
		config.Identify.Model = model
	}
	if concurrency := os.Getenv("REPERIO_ENRICH_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Enrichment.Concurrency = c
		}
	}
	if deadline := os.Getenv("REPERIO_ENRICH_DEADLINE"); deadline != "" {
		if d, err := time.ParseDuration(deadline); err == nil {
			config.Enrichment.Deadline = d
		}
	}
	if poolSize := os.Getenv("REPERIO_BROWSER_POOL_SIZE"); poolSize != "" {
		if ps, err := strconv.Atoi(poolSize); err == nil {
			config.Fetch.BrowserPoolSize = ps
		}
	}
	if headless := os.Getenv("REPERIO_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Fetch.BrowserHeadless = h
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants that would otherwise surface as
// runtime misbehavior, in particular the compounding timeout ordering:
// per-attempt < per-task < enrichment deadline < job hard deadline.
func (c *Config) Validate() error {
	if c.Enrichment.Concurrency <= 0 {
		return fmt.Errorf("enrichment.concurrency must be greater than 0, got: %d", c.Enrichment.Concurrency)
	}
	if c.Enrichment.MaxAttempts <= 0 {
		return fmt.Errorf("enrichment.max_attempts must be greater than 0, got: %d", c.Enrichment.MaxAttempts)
	}
	if c.Fetch.BrowserPoolSize <= 0 {
		return fmt.Errorf("fetch.browser_pool_size must be greater than 0, got: %d", c.Fetch.BrowserPoolSize)
	}
	longestAttempt := c.Fetch.PlainTimeout
	if c.Fetch.BypassTimeout > longestAttempt {
		longestAttempt = c.Fetch.BypassTimeout
	}
	if c.Fetch.RenderedTimeout > longestAttempt {
		longestAttempt = c.Fetch.RenderedTimeout
	}
	if c.Enrichment.TaskTimeout <= longestAttempt {
		return fmt.Errorf("enrichment.task_timeout (%s) must exceed the longest strategy timeout (%s)",
			c.Enrichment.TaskTimeout, longestAttempt)
	}
	if c.Enrichment.Deadline <= c.Enrichment.TaskTimeout {
		return fmt.Errorf("enrichment.deadline (%s) must exceed enrichment.task_timeout (%s)",
			c.Enrichment.Deadline, c.Enrichment.TaskTimeout)
	}
	if c.Jobs.HardDeadline <= c.Enrichment.Deadline {
		return fmt.Errorf("jobs.hard_deadline (%s) must exceed enrichment.deadline (%s)",
			c.Jobs.HardDeadline, c.Enrichment.Deadline)
	}
	return nil
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
