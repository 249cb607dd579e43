package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediagrab/pkg/platform"
	"mediagrab/pkg/ui"
)

// platformsCmd represents the platforms command
var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List supported platforms",
	Long: `List the platforms mediagrab can download from and the URL
patterns used to detect them.

Platform detection is automatic: pass any profile or post URL to the
download command and the matching platform client is selected.`,
	Run: runPlatforms,
}

func init() {
	rootCmd.AddCommand(platformsCmd)
}

func runPlatforms(cmd *cobra.Command, args []string) {
	ui.PrintHighlight("Supported platforms")
	fmt.Println()

	for _, name := range platform.Names() {
		fmt.Printf("  %s\n", name)
		fmt.Printf("    URL patterns: %s\n", strings.Join(platform.Patterns(name), ", "))
	}

	fmt.Println()
	fmt.Println("Example:")
	fmt.Println("  mediagrab download --url https://www.instagram.com/natgeo/")
}
