// Package accounts loads the list of profile URLs to download.
package accounts

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Account is one download target.
type Account struct {
	URL      string `json:"url"`
	Category string `json:"category,omitempty"`
}

// Load reads an accounts file in any of three formats:
//
//  1. JSON array, mixing bare URL strings and {"url": ...} objects
//  2. JSON object keyed by category, each value a list as in (1)
//  3. plain text, one URL per line, "#" lines are comments
//
// The format is sniffed from the content, not the file extension.
func Load(path string) ([]Account, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return nil, fmt.Errorf("accounts file %s is empty", path)
	}

	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		accounts, err := parseJSON([]byte(trimmed))
		if err != nil {
			return nil, fmt.Errorf("parsing accounts file %s: %w", path, err)
		}
		return accounts, nil
	}
	return parseLines(trimmed), nil
}

// entry accepts either a bare URL string or an account object.
type entry struct {
	Account
}

func (e *entry) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var u string
		if err := json.Unmarshal(b, &u); err != nil {
			return err
		}
		e.Account = Account{URL: u}
		return nil
	}
	return json.Unmarshal(b, &e.Account)
}

func parseJSON(content []byte) ([]Account, error) {
	var flat []entry
	if err := json.Unmarshal(content, &flat); err == nil {
		accounts := make([]Account, 0, len(flat))
		for _, e := range flat {
			if e.URL != "" {
				accounts = append(accounts, e.Account)
			}
		}
		return accounts, nil
	}

	var byCategory map[string][]entry
	if err := json.Unmarshal(content, &byCategory); err != nil {
		return nil, err
	}
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var accounts []Account
	for _, category := range categories {
		for _, e := range byCategory[category] {
			if e.URL == "" {
				continue
			}
			account := e.Account
			if account.Category == "" {
				account.Category = category
			}
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func parseLines(content string) []Account {
	var accounts []Account
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		accounts = append(accounts, Account{URL: line})
	}
	return accounts
}
