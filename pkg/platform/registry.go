package platform

import (
	"fmt"
	"sort"
	"strings"

	"mediagrab/pkg/logger"
)

// Constructor builds a platform client bound to an API backend.
type Constructor func(api API, log logger.Logger) Client

type registration struct {
	name        string
	urlPatterns []string
	construct   Constructor
}

// registry is the static table of supported platforms. Adding a platform
// means adding an entry here.
var registry = []registration{
	{
		name:        "instagram",
		urlPatterns: []string{"instagram.com", "instagr.am", "www.instagram.com"},
		construct:   NewInstagram,
	},
	{
		name:        "xiaohongshu",
		urlPatterns: []string{"xiaohongshu.com", "xhslink.com", "www.xiaohongshu.com"},
		construct:   NewXiaohongshu,
	},
}

// Detect returns the platform name whose URL pattern matches rawURL, or
// the empty string when no platform claims it. When several patterns
// match, the longest one wins so that more specific patterns take
// precedence.
func Detect(rawURL string) string {
	lowered := strings.ToLower(rawURL)

	bestName := ""
	bestLen := 0
	for _, reg := range registry {
		for _, pattern := range reg.urlPatterns {
			if strings.Contains(lowered, pattern) && len(pattern) > bestLen {
				bestName = reg.name
				bestLen = len(pattern)
			}
		}
	}
	return bestName
}

// New constructs a client for the named platform.
func New(name string, api API, log logger.Logger) (Client, error) {
	for _, reg := range registry {
		if reg.name == strings.ToLower(name) {
			return reg.construct(api, log), nil
		}
	}
	return nil, fmt.Errorf("unsupported platform: %s", name)
}

// Names lists the supported platforms in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, reg := range registry {
		names = append(names, reg.name)
	}
	sort.Strings(names)
	return names
}

// Patterns returns the URL patterns the named platform matches on, or
// nil for an unknown platform.
func Patterns(name string) []string {
	for _, reg := range registry {
		if reg.name == strings.ToLower(name) {
			patterns := make([]string, len(reg.urlPatterns))
			copy(patterns, reg.urlPatterns)
			return patterns
		}
	}
	return nil
}
