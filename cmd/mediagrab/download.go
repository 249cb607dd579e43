package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mediagrab/pkg/accounts"
	"mediagrab/pkg/auth"
	"mediagrab/pkg/config"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/scraper"
	"mediagrab/pkg/tikhub"
	"mediagrab/pkg/ui"
)

var (
	// Download command flags
	targetURL      string
	accountsFile   string
	outputDir      string
	mediaTypes     string
	imagesOnly     bool
	videosOnly     bool
	audioOnly      bool
	maxPosts       int
	maxItems       int
	concurrent     int
	noSkipExisting bool
	assumeYes      bool
	credentialName string
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download media from one URL or a batch of accounts",
	Long: `Download media from a profile or post URL, or from every account
listed in an accounts file.

The platform is detected from each URL. An accounts file may be plain
text (one URL per line, # for comments), a JSON array of URLs, or a
JSON object grouping URLs by category.

An API key is required. It is looked up in this order:
  - Stored credentials (use 'mediagrab auth login' to store)
  - TIKHUB_API_KEY environment variable (plus TIKHUB_API_KEY_BACKUP*)
  - Configuration file`,
	Example: `  # Download a whole Instagram profile
  mediagrab download --url https://www.instagram.com/natgeo/

  # Download a single Xiaohongshu note from a share link
  mediagrab download --url http://xhslink.com/m/AbCdEf

  # Batch download, images only, capped at 50 posts per account
  mediagrab download --accounts-file accounts.txt --images-only --max-posts 50

  # Re-download everything, ignoring files already on disk
  mediagrab download --url https://www.instagram.com/natgeo/ --no-skip-existing`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	registerDownloadFlags(downloadCmd.Flags())
	// Also on the root command so downloads work without the subcommand.
	registerDownloadFlags(rootCmd.Flags())
}

func registerDownloadFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&targetURL, "url", "u", "", "profile or post URL to download")
	flags.StringVarP(&accountsFile, "accounts-file", "f", "", "file listing account URLs")
	flags.StringVarP(&outputDir, "output-dir", "o", "", "output directory for downloads")
	flags.StringVar(&mediaTypes, "media-types", "", "comma-separated media types to download (image,video,audio)")
	flags.BoolVar(&imagesOnly, "images-only", false, "download images only")
	flags.BoolVar(&videosOnly, "videos-only", false, "download videos only")
	flags.BoolVar(&audioOnly, "audio-only", false, "download audio only")
	flags.IntVar(&maxPosts, "max-posts", 0, "maximum posts to fetch per account (0 = no limit)")
	flags.IntVar(&maxItems, "max-items", 0, "maximum media items to download per account (0 = no limit)")
	flags.IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
	flags.BoolVar(&noSkipExisting, "no-skip-existing", false, "re-download files that already exist")
	flags.BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	flags.StringVarP(&credentialName, "account", "a", "", "use a specific stored credential set")
}

func runDownload(cmd *cobra.Command, args []string) error {
	if targetURL == "" && accountsFile == "" {
		ui.PrintError("No download target", "specify --url or --accounts-file")
		os.Exit(1)
	}
	if targetURL != "" && accountsFile != "" {
		ui.PrintError("Conflicting targets", "--url and --accounts-file are mutually exclusive")
		os.Exit(1)
	}

	cfg, err := loadDownloadConfig()
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logging", err.Error())
		os.Exit(1)
	}
	logger.WithField("version", version).Info("mediagrab starting")

	pool, err := buildCredentialPool(cfg)
	if err != nil {
		ui.PrintError("No API credentials found", "")
		fmt.Println("\nTo store an API key securely, run:")
		fmt.Println("  mediagrab auth login")
		fmt.Println("\nOr set environment variables:")
		fmt.Println("  export TIKHUB_API_KEY=your_api_key")
		fmt.Println("  export TIKHUB_API_KEY_BACKUP=your_backup_key")
		os.Exit(1)
	}

	targets, err := collectTargets()
	if err != nil {
		ui.PrintError("Failed to load accounts", err.Error())
		os.Exit(1)
	}

	ui.PrintInfo("Accounts", fmt.Sprintf("%d to process", len(targets)))
	ui.PrintInfo("Output directory", cfg.Output.BaseDirectory)
	ui.PrintInfo("Media types", strings.Join(cfg.Download.MediaTypes, ", "))

	if !confirmRun(targets) {
		fmt.Println("Aborted.")
		return nil
	}

	log := logger.GetLogger()
	client := tikhub.NewClient(&cfg.API, cfg.Download.DownloadTimeout, pool, log)

	s, err := scraper.New(cfg, client, log)
	if err != nil {
		ui.PrintError("Failed to initialize downloader", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("[STARTING DOWNLOAD RUN]")
	summary := s.Run(context.Background(), targets)

	ui.PrintSummary(summary)

	if summary.AllFailed() {
		logger.Error("all accounts failed")
		ui.PrintError("ALL ACCOUNTS FAILED", "")
		os.Exit(1)
	}

	logger.Info("download run completed")
	ui.PrintSuccess("[DOWNLOAD RUN COMPLETED]")
	return nil
}

// loadDownloadConfig layers the command line flags over file, env and
// default configuration.
func loadDownloadConfig() (*config.Config, error) {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output-dir"] = outputDir
	}
	if concurrent > 0 {
		flags["concurrent"] = concurrent
	}
	if types := selectedMediaTypes(); len(types) > 0 {
		flags["media-types"] = types
	}
	if maxPosts > 0 {
		flags["max-posts"] = maxPosts
	}
	if maxItems > 0 {
		flags["max-items"] = maxItems
	}
	if noSkipExisting {
		flags["skip-existing"] = false
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	return config.Load(configFile, flags)
}

// selectedMediaTypes resolves the type filter flags. The *-only flags
// combine, so --images-only --videos-only means both.
func selectedMediaTypes() []string {
	var types []string
	if imagesOnly {
		types = append(types, "image")
	}
	if videosOnly {
		types = append(types, "video")
	}
	if audioOnly {
		types = append(types, "audio")
	}
	if len(types) > 0 {
		return types
	}
	if mediaTypes != "" {
		for _, part := range strings.Split(mediaTypes, ",") {
			if part = strings.TrimSpace(part); part != "" {
				types = append(types, part)
			}
		}
	}
	return types
}

// buildCredentialPool assembles the key rotation pool from config and
// stored credentials.
func buildCredentialPool(cfg *config.Config) (*tikhub.Pool, error) {
	// Keys from config (file, .env or environment) win.
	if cfg.API.Key != "" {
		return tikhub.NewPool(cfg.API.Key, cfg.API.BackupKeys...), nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return nil, err
	}

	var creds *auth.Credentials
	if credentialName != "" {
		creds, err = manager.Retrieve(credentialName)
	} else {
		creds, err = manager.RetrieveDefault()
	}
	if err != nil {
		return nil, err
	}

	logger.WithField("credentials", creds.Name).Info("using stored credentials")
	return tikhub.NewPool(creds.APIKey, creds.BackupKeys...), nil
}

func collectTargets() ([]accounts.Account, error) {
	if targetURL != "" {
		return []accounts.Account{{URL: strings.TrimSpace(targetURL)}}, nil
	}
	return accounts.Load(accountsFile)
}

// confirmRun asks before starting a batch unless --yes or quiet mode.
func confirmRun(targets []accounts.Account) bool {
	if assumeYes || quiet {
		return true
	}

	for i, account := range targets {
		label := account.URL
		if account.Category != "" {
			label += "  [" + account.Category + "]"
		}
		fmt.Printf("  %d. %s\n", i+1, label)
	}

	fmt.Print("\nContinue? (y/N): ")
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}
