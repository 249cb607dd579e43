// Package platform implements the per-site clients that turn a profile or
// post URL into a list of downloadable media items.
package platform

import (
	"context"
	"encoding/json"
	"net/url"

	"mediagrab/pkg/media"
)

// API is the subset of the aggregation client that platform
// implementations depend on.
type API interface {
	GetJSON(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error)
	ResolveRedirect(ctx context.Context, shortURL string) (string, error)
}

// Client fetches posts for one platform and extracts media from them.
// Implementations hold per-account state (such as a username resolved
// during fetching), so a fresh client is constructed for each account.
type Client interface {
	// Name returns the canonical platform identifier.
	Name() string

	// UsernameFromURL derives the account name used in output paths.
	// For platforms where the name is only known after fetching, this
	// returns the cached value from the last FetchPosts call.
	UsernameFromURL(rawURL string) string

	// FetchPosts retrieves up to maxPosts posts for the given profile or
	// post URL. maxPosts <= 0 means no limit.
	FetchPosts(ctx context.Context, profileURL string, maxPosts int) ([]json.RawMessage, error)

	// ExtractMedia pulls downloadable items out of a single raw post,
	// keeping only the allowed media types. Malformed posts yield no
	// items rather than an error.
	ExtractMedia(raw json.RawMessage, allowed []media.Type) []media.Item
}

// flexString decodes a JSON string or number into a string. Aggregation
// responses are inconsistent about numeric identifiers.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

func (s flexString) String() string { return string(s) }
