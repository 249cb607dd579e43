package ui

import (
	"fmt"

	"mediagrab/pkg/scraper"
)

// PrintSummary renders per-account results and the aggregate totals at
// the end of a run.
func PrintSummary(summary *scraper.Summary) {
	if quiet {
		return
	}

	fmt.Println()
	PrintHighlight("── Download Summary ──")
	for _, r := range summary.Results {
		if r.Err != nil {
			PrintError(fmt.Sprintf("  ✗ %s", r.Account.URL), r.Err)
			continue
		}
		line := fmt.Sprintf("  ✓ %s/%s: %d downloaded", r.Platform, r.Username, r.Stats.Success)
		if r.Stats.SkippedExisting > 0 {
			line += fmt.Sprintf(", %d already present", r.Stats.SkippedExisting)
		}
		if r.Stats.SkippedDuplicate > 0 {
			line += fmt.Sprintf(", %d duplicates", r.Stats.SkippedDuplicate)
		}
		if r.Stats.Failed > 0 {
			line += fmt.Sprintf(", %d failed", r.Stats.Failed)
		}
		fmt.Println(Green(line))
	}

	total := summary.Stats
	fmt.Println()
	PrintInfo("Accounts", fmt.Sprintf("%d processed, %d failed", len(summary.Results), summary.FailedAccounts()))
	PrintInfo("Media", fmt.Sprintf("%d downloaded, %d skipped, %d failed",
		total.Success, total.SkippedExisting+total.SkippedDuplicate, total.Failed))
}
