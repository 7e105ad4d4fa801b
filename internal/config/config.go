// Package config loads configuration from an optional YAML file and
// environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all mirror configuration.
type Config struct {
	// Upstream listing server
	BaseURL    string `yaml:"base_url"`
	ListPath   string `yaml:"list_path"`
	EventsPath string `yaml:"events_path"`
	ResetPath  string `yaml:"reset_path"`
	PagePath   string `yaml:"page_path"`

	// Page template (optional; when empty the page is fetched from PagePath)
	TemplateFile string `yaml:"template_file"`

	// Rendering
	UploadsBase string   `yaml:"uploads_base"`
	Exclude     []string `yaml:"exclude"`
	Section     string   `yaml:"section"`

	// Sync
	PollInterval time.Duration `yaml:"poll_interval"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	FetchRetries int           `yaml:"fetch_retries"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Relay and metrics listeners (empty disables)
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Publish sinks
	OutputFile  string `yaml:"output_file"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Key       string `yaml:"s3_key"`
	S3Region    string `yaml:"s3_region"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		BaseURL:      "http://localhost:8888",
		ListPath:     "/list_html",
		EventsPath:   "/events",
		ResetPath:    "/__FORGET_FLAG.txt",
		PagePath:     "/files.html",
		UploadsBase:  "/uploads/",
		PollInterval: 3 * time.Second,
		FetchTimeout: 10 * time.Second,
		LogLevel:     "info",
		LogFormat:    "console",
		ListenAddr:   ":8890",
		S3Key:        "files.html",
		S3Region:     "us-east-1",
	}
}

// Load reads configuration: defaults, then the YAML file named by
// CRYPSHARE_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CRYPSHARE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.BaseURL = envOr("BASE_URL", c.BaseURL)
	c.ListPath = envOr("LIST_PATH", c.ListPath)
	c.EventsPath = envOr("EVENTS_PATH", c.EventsPath)
	c.ResetPath = envOr("RESET_PATH", c.ResetPath)
	c.PagePath = envOr("PAGE_PATH", c.PagePath)
	c.TemplateFile = envOr("TEMPLATE_FILE", c.TemplateFile)
	c.UploadsBase = envOr("UPLOADS_BASE", c.UploadsBase)
	c.Exclude = envList("EXCLUDE", c.Exclude)
	c.Section = envOr("SECTION", c.Section)
	c.PollInterval = envDuration("POLL_INTERVAL", c.PollInterval)
	c.FetchTimeout = envDuration("FETCH_TIMEOUT", c.FetchTimeout)
	c.FetchRetries = envInt("FETCH_RETRIES", c.FetchRetries)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.ListenAddr = envOr("LISTEN_ADDR", c.ListenAddr)
	c.MetricsAddr = envOr("METRICS_ADDR", c.MetricsAddr)
	c.OutputFile = envOr("OUTPUT_FILE", c.OutputFile)
	c.S3Endpoint = envOr("S3_ENDPOINT", c.S3Endpoint)
	c.S3Bucket = envOr("S3_BUCKET", c.S3Bucket)
	c.S3Key = envOr("S3_KEY", c.S3Key)
	c.S3Region = envOr("S3_REGION", c.S3Region)
	c.S3AccessKey = envOr("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = envOr("S3_SECRET_KEY", c.S3SecretKey)
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BASE_URL must be an absolute URL, got %q", c.BaseURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("FETCH_RETRIES must not be negative")
	}
	return nil
}

// URL joins the base URL with an endpoint path.
func (c *Config) URL(path string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// S3Enabled reports whether the S3 sink is configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
