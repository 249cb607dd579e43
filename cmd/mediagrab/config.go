package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mediagrab/pkg/config"
	"mediagrab/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage mediagrab configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.mediagrab.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources.

Sensitive values like API keys will be masked for security.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	// Determine config file path
	configPath := configFile
	if configPath == "" {
		configPath = ".mediagrab.yaml"
	}

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	// Create example configuration
	exampleConfig := `# mediagrab Configuration File
#
# This file contains all available configuration options.
# API keys can also come from environment variables:
#   TIKHUB_API_KEY, TIKHUB_API_KEY_BACKUP, TIKHUB_API_KEY_BACKUP_1..9

# API configuration
api:
  # Primary API key (leave empty to use stored credentials or env vars)
  key: ""

  # Backup keys tried when the primary runs out of quota
  backup_keys: []

  # Base URLs tried in order for every request
  base_urls:
    - "https://api.tikhub.dev"
    - "https://api.tikhub.io"

  # Request timeout
  timeout: 2m

  # API requests per minute
  requests_per_minute: 120

# Download configuration
download:
  # Number of concurrent media downloads
  concurrent_downloads: 10

  # Per-file download timeout
  download_timeout: 5m

  # Skip files that already exist on disk
  skip_existing: true

  # Media types to download: image, video, audio
  media_types:
    - image
    - video

  # Maximum posts to fetch per account (0 = no limit)
  max_posts: 0

  # Maximum media items to download per account (0 = no limit)
  max_items: 0

# Output configuration
output:
  # Base directory; files land in <base>/<platform>/<username>/
  base_directory: "output"

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional, empty logs to stderr only)
  file: ""
`

	// Write configuration file
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Run 'mediagrab auth login' to store your API key")
	fmt.Println("2. Run 'mediagrab config validate' to check the configuration")
	fmt.Println("3. Start downloading with 'mediagrab download --url <url>'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Create a sanitized version for display
	displayCfg := *cfg
	displayCfg.API.Key = maskKey(displayCfg.API.Key)
	maskedBackups := make([]string, len(displayCfg.API.BackupKeys))
	for i, key := range displayCfg.API.BackupKeys {
		maskedBackups[i] = maskKey(key)
	}
	displayCfg.API.BackupKeys = maskedBackups

	// Convert to YAML for display
	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	// Show configuration sources
	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (TIKHUB_*, MEDIAGRAB_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (auto-detected)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	// Check if config file is specified
	if configFile == "" {
		// Try to find config file in common locations
		possiblePaths := []string{
			".mediagrab.yaml",
			".mediagrab.yml",
			filepath.Join(os.Getenv("HOME"), ".config", "mediagrab", "config.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "mediagrab", "config.yml"),
			filepath.Join(os.Getenv("HOME"), ".mediagrab.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating configuration", configFile)

	// Try to load and validate configuration
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	// Perform additional validation checks
	warnings := []string{}
	errors := []string{}

	// Check credentials
	if cfg.API.Key == "" && os.Getenv("TIKHUB_API_KEY") == "" {
		warnings = append(warnings, "no API key configured; stored credentials will be used if present")
	}

	// Check paths
	if cfg.Output.BaseDirectory != "" {
		if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("Cannot create output directory: %v", err))
		}
	}

	// Check logging file path
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	// Check value ranges
	if cfg.Download.ConcurrentDownloads < 1 || cfg.Download.ConcurrentDownloads > 50 {
		errors = append(errors, "concurrent_downloads must be between 1 and 50")
	}
	if cfg.API.RequestsPerMinute < 1 || cfg.API.RequestsPerMinute > 600 {
		errors = append(errors, "requests_per_minute must be between 1 and 600")
	}

	// Display results
	if len(errors) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, err := range errors {
			fmt.Printf("  - %s\n", err)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	// Show summary
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.API.RequestsPerMinute)
	fmt.Printf("  Media types: %v\n", cfg.Download.MediaTypes)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}

// maskKey masks all but the edges of an API key
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "********"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
