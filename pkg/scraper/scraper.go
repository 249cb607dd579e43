// Package scraper orchestrates a batch run: platform detection, post
// fetching, media extraction and the download engine, per account.
package scraper

import (
	"context"
	"fmt"
	"strings"

	"mediagrab/internal/downloader"
	"mediagrab/pkg/accounts"
	"mediagrab/pkg/config"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/media"
	"mediagrab/pkg/metadata"
	"mediagrab/pkg/platform"
	"mediagrab/pkg/storage"
)

// Backend combines the API surface the platform clients need with raw
// media fetching for the download engine. *tikhub.Client satisfies it.
type Backend interface {
	platform.API
	downloader.MediaFetcher
}

// Result captures what happened for one account.
type Result struct {
	Account  accounts.Account
	Platform string
	Username string
	Posts    int
	Items    int
	Stats    downloader.Stats
	Err      error
}

// Summary aggregates a whole run.
type Summary struct {
	Results []Result
	Stats   downloader.Stats
}

// FailedAccounts counts accounts that produced an error.
func (s *Summary) FailedAccounts() int {
	failed := 0
	for _, r := range s.Results {
		if r.Err != nil {
			failed++
		}
	}
	return failed
}

// AllFailed reports whether no account completed.
func (s *Summary) AllFailed() bool {
	return len(s.Results) > 0 && s.FailedAccounts() == len(s.Results)
}

// clientFactory is swapped out in tests.
type clientFactory func(name string, api platform.API, log logger.Logger) (platform.Client, error)

// Scraper runs download batches against a backend.
type Scraper struct {
	cfg       *config.Config
	backend   Backend
	store     *storage.Manager
	logger    logger.Logger
	newClient clientFactory
}

// New creates a scraper rooted at the configured output directory.
func New(cfg *config.Config, backend Backend, log logger.Logger) (*Scraper, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	store, err := storage.NewManager(cfg.Output.BaseDirectory)
	if err != nil {
		return nil, fmt.Errorf("initializing output directory: %w", err)
	}
	return &Scraper{
		cfg:       cfg,
		backend:   backend,
		store:     store,
		logger:    log,
		newClient: platform.New,
	}, nil
}

// Run processes every account in order. A failing account is recorded in
// its result and does not stop the batch.
func (s *Scraper) Run(ctx context.Context, accts []accounts.Account) *Summary {
	allowed := media.ParseTypeList(strings.Join(s.cfg.Download.MediaTypes, ","))

	summary := &Summary{}
	for _, account := range accts {
		result := s.runAccount(ctx, account, allowed)
		if result.Err != nil {
			s.logger.WithError(result.Err).ErrorWithFields("account failed", map[string]interface{}{
				"url": account.URL,
			})
		}
		summary.Results = append(summary.Results, result)
		summary.Stats = summary.Stats.Merge(result.Stats)

		if ctx.Err() != nil {
			break
		}
	}
	return summary
}

func (s *Scraper) runAccount(ctx context.Context, account accounts.Account, allowed []media.Type) Result {
	result := Result{Account: account}

	name := platform.Detect(account.URL)
	if name == "" {
		result.Err = fmt.Errorf("unsupported platform url: %s", account.URL)
		return result
	}
	result.Platform = name

	client, err := s.newClient(name, s.backend, s.logger)
	if err != nil {
		result.Err = err
		return result
	}

	s.logger.InfoWithFields("fetching posts", map[string]interface{}{
		"platform": name,
		"url":      account.URL,
	})

	posts, err := client.FetchPosts(ctx, account.URL, s.cfg.Download.MaxPosts)
	if err != nil {
		result.Err = fmt.Errorf("fetching posts: %w", err)
		return result
	}
	result.Posts = len(posts)

	username := client.UsernameFromURL(account.URL)
	if username == "" {
		username = "unknown"
	}
	result.Username = username

	var items []media.Item
	for _, post := range posts {
		for _, item := range client.ExtractMedia(post, allowed) {
			item.Platform = name
			item.Username = username
			items = append(items, item)
		}
	}
	if max := s.cfg.Download.MaxItems; max > 0 && len(items) > max {
		items = items[:max]
	}
	result.Items = len(items)

	s.logger.InfoWithFields("starting downloads", map[string]interface{}{
		"platform": name,
		"username": username,
		"posts":    len(posts),
		"items":    len(items),
	})

	engine := downloader.NewEngine(
		s.cfg.Download.ConcurrentDownloads,
		s.backend,
		s.store,
		s.cfg.Download.SkipExisting,
		s.logger,
	)
	outcomes, stats := engine.Run(ctx, items)
	result.Stats = stats

	s.recordManifest(name, username, outcomes)
	return result
}

// recordManifest merges the run's successful downloads into the account's
// manifest sidecar. Manifest problems are logged, never fatal.
func (s *Scraper) recordManifest(platformName, username string, outcomes []downloader.Outcome) {
	downloaded := false
	for _, out := range outcomes {
		if out.Status == downloader.StatusSuccess {
			downloaded = true
			break
		}
	}
	if !downloaded {
		return
	}

	dir := s.store.AccountDir(platformName, username)
	manifest, err := metadata.Load(dir, platformName, username)
	if err != nil {
		s.logger.WithError(err).Warn("could not read download manifest")
		manifest = &metadata.Manifest{Platform: platformName, Username: username}
	}

	manifest.Record(outcomes)
	if err := manifest.Save(dir); err != nil {
		s.logger.WithError(err).Warn("could not write download manifest")
	}
}
