package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the downloader
type Config struct {
	// Remote aggregation API settings
	API APIConfig `yaml:"api" json:"api"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds TikHub API configuration
type APIConfig struct {
	Key               string        `yaml:"key" json:"key"`
	BackupKeys        []string      `yaml:"backup_keys" json:"backup_keys"`
	BaseURLs          []string      `yaml:"base_urls" json:"base_urls"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	SkipExisting        bool          `yaml:"skip_existing" json:"skip_existing"`
	MediaTypes          []string      `yaml:"media_types" json:"media_types"`
	MaxPosts            int           `yaml:"max_posts" json:"max_posts"`
	MaxItems            int           `yaml:"max_items" json:"max_items"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURLs: []string{
				"https://api.tikhub.dev",
				"https://api.tikhub.io",
			},
			Timeout:           120 * time.Second,
			RequestsPerMinute: 120,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 10,
			DownloadTimeout:     300 * time.Second,
			SkipExisting:        true,
			MediaTypes:          []string{"image", "video"},
		},
		Output: OutputConfig{
			BaseDirectory: "output",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// API keys (primary plus numbered backups)
	if key := os.Getenv("TIKHUB_API_KEY"); key != "" {
		c.API.Key = key
	}
	if backup := os.Getenv("TIKHUB_API_KEY_BACKUP"); backup != "" {
		c.API.BackupKeys = append(c.API.BackupKeys, backup)
	}
	for i := 1; i < 10; i++ {
		if key := os.Getenv(fmt.Sprintf("TIKHUB_API_KEY_BACKUP_%d", i)); key != "" {
			c.API.BackupKeys = append(c.API.BackupKeys, key)
		}
	}

	if outputDir := os.Getenv("MEDIAGRAB_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}

	if concurrent := os.Getenv("MEDIAGRAB_CONCURRENT_DOWNLOADS"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}

	if types := os.Getenv("MEDIAGRAB_MEDIA_TYPES"); types != "" {
		c.Download.MediaTypes = splitAndTrim(types)
	}

	if logLevel := os.Getenv("MEDIAGRAB_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".mediagrab.yaml",
		".mediagrab.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "mediagrab", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "mediagrab", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".mediagrab.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. API key presence is checked
// separately by the command layer, after the credential stores have had a
// chance to supply one.
func (c *Config) Validate() error {
	var errs []error

	if len(c.API.BaseURLs) == 0 {
		errs = append(errs, errors.New("at least one API base URL is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("API timeout must be positive"))
	}
	if c.API.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.MaxPosts < 0 {
		errs = append(errs, errors.New("max posts cannot be negative"))
	}
	if c.Download.MaxItems < 0 {
		errs = append(errs, errors.New("max items cannot be negative"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if key, ok := flags["api-key"].(string); ok && key != "" {
		c.API.Key = key
	}
	if outputDir, ok := flags["output-dir"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if types, ok := flags["media-types"].([]string); ok && len(types) > 0 {
		c.Download.MediaTypes = types
	}
	if maxPosts, ok := flags["max-posts"].(int); ok && maxPosts > 0 {
		c.Download.MaxPosts = maxPosts
	}
	if maxItems, ok := flags["max-items"].(int); ok && maxItems > 0 {
		c.Download.MaxItems = maxItems
	}
	if skip, ok := flags["skip-existing"].(bool); ok {
		c.Download.SkipExisting = skip
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".mediagrab.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
