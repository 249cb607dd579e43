package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediagrab/pkg/auth"
	"mediagrab/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials",
	Long: `Manage stored TikHub API credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your API keys or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store an API key securely",
	Long: `Store a TikHub API key securely in the system keychain or an
encrypted file.

You will be prompted for:
  - A name for the credential set (if not provided)
  - The API key
  - Backup API keys (optional, used when the primary runs out of quota)

Get an API key from your TikHub account dashboard.`,
	Example: `  # Interactive login
  mediagrab auth login

  # Login with a named credential set
  mediagrab auth login work`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove stored credentials",
	Long: `Remove stored API credentials.

If no name is provided, you will be shown a list of stored credential
sets to choose from. You can also remove all of them at once.`,
	Example: `  # Interactive logout
  mediagrab auth logout

  # Remove a specific credential set
  mediagrab auth logout work`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored credential sets",
	Long:  `List all stored credential sets with key material masked.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if name == "" {
		fmt.Print("Credential set name (press Enter for 'default'): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read name", err.Error())
			os.Exit(1)
		}
		name = strings.TrimSpace(input)
		if name == "" {
			name = "default"
		}
	}

	// Check if credentials already exist
	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Credentials '%s' already exist. Update them? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\nEnter your API key (it will be hidden as you type):")
	fmt.Print("API key: ")
	apiKey, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read API key", err.Error())
		os.Exit(1)
	}
	if apiKey == "" {
		ui.PrintError("API key is required", "")
		os.Exit(1)
	}

	// Optional backup keys
	var backups []string
	for {
		fmt.Print("Backup API key (press Enter to finish): ")
		backup, err := readPassword()
		if err != nil || backup == "" {
			break
		}
		backups = append(backups, backup)
	}

	creds := &auth.Credentials{
		Name:         name,
		APIKey:       apiKey,
		BackupKeys:   backups,
		LastModified: time.Now(),
	}

	fmt.Println("\nStoring credentials securely...")
	if err := manager.Store(creds); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Credentials saved: %s (%d backup keys)", name, len(backups)))

	fmt.Println("\nQuick start:")
	fmt.Println("  mediagrab download --url https://www.instagram.com/<username>/")
	if name != "default" {
		fmt.Printf("  mediagrab download --account %s --url <url>\n", name)
	}
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if len(args) == 0 {
		all, err := manager.List()
		if err != nil || len(all) == 0 {
			ui.PrintError("No stored credentials found", "")
			return
		}

		if len(all) == 1 {
			creds := all[0]
			reader := bufio.NewReader(os.Stdin)
			fmt.Printf("Remove credentials '%s'? (y/N): ", creds.Name)
			input, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
				return
			}

			if err := manager.Delete(creds.Name); err != nil {
				ui.PrintError("Failed to remove credentials", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("Credentials removed: " + creds.Name)
			return
		}

		// Multiple sets, show menu
		fmt.Println("Select credentials to remove:")
		for i, creds := range all {
			fmt.Printf("  %d. %s\n", i+1, creds.Name)
		}
		fmt.Printf("  %d. Remove all\n", len(all)+1)
		fmt.Printf("  0. Cancel\n\n")

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

		switch {
		case choice == 0:
			return
		case choice == len(all)+1:
			fmt.Print("Remove ALL credentials? This cannot be undone! (yes/N): ")
			confirm, _ := reader.ReadString('\n')
			if strings.TrimSpace(confirm) != "yes" {
				return
			}
			if err := manager.DeleteAll(); err != nil {
				ui.PrintError("Failed to remove all credentials", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("All credentials removed")
		case choice > 0 && choice <= len(all):
			creds := all[choice-1]
			if err := manager.Delete(creds.Name); err != nil {
				ui.PrintError("Failed to remove credentials", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("Credentials removed: " + creds.Name)
		default:
			ui.PrintError("Invalid choice", "")
			os.Exit(1)
		}
		return
	}

	name := args[0]
	if err := manager.Delete(name); err != nil {
		ui.PrintError("Failed to remove credentials", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Credentials removed: " + name)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	all, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list credentials", err.Error())
		os.Exit(1)
	}

	if len(all) == 0 {
		ui.PrintInfo("No stored credentials", "Use 'mediagrab auth login' to add an API key")
		return
	}

	ui.PrintHighlight("Stored Credentials")
	fmt.Println()

	for i, creds := range all {
		sanitized := auth.Sanitize(creds)
		fmt.Printf("%d. Name: %s\n", i+1, sanitized.Name)
		fmt.Printf("   API Key: %s\n", sanitized.APIKey)
		for j, backup := range sanitized.BackupKeys {
			fmt.Printf("   Backup Key %d: %s\n", j+1, backup)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	// Try to read without echo
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after input
		if err == nil {
			return string(password), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
