package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"mediagrab/pkg/logger"
	"mediagrab/pkg/media"
)

const igPageSize = 12

// Path segments that are never usernames.
var igReservedSegments = map[string]bool{
	"p":       true,
	"reel":    true,
	"stories": true,
	"explore": true,
}

// Instagram fetches user posts through the aggregation API's Instagram v1
// endpoints.
type Instagram struct {
	api API
	log logger.Logger
}

// NewInstagram creates an Instagram platform client.
func NewInstagram(api API, log logger.Logger) Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Instagram{api: api, log: log}
}

func (c *Instagram) Name() string { return "instagram" }

// UsernameFromURL extracts the account name from a profile URL such as
// https://www.instagram.com/username/ or /username/reels/.
func (c *Instagram) UsernameFromURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	for _, segment := range strings.Split(parsed.Path, "/") {
		if segment == "" {
			continue
		}
		if igReservedSegments[segment] {
			return ""
		}
		return segment
	}
	return ""
}

// FetchPosts looks up the numeric user ID for the profile's username and
// pages through the user's posts until maxPosts is reached or the feed
// reports no more items.
func (c *Instagram) FetchPosts(ctx context.Context, profileURL string, maxPosts int) ([]json.RawMessage, error) {
	username := c.UsernameFromURL(profileURL)
	if username == "" {
		return nil, fmt.Errorf("cannot extract username from url: %s", profileURL)
	}

	userID, err := c.lookupUserID(ctx, username)
	if err != nil {
		return nil, err
	}

	var posts []json.RawMessage
	maxID := ""
	for {
		params := url.Values{
			"user_id": {userID},
			"count":   {strconv.Itoa(igPageSize)},
		}
		if maxID != "" {
			params.Set("max_id", maxID)
		}

		raw, err := c.api.GetJSON(ctx, "/api/v1/instagram/v1/fetch_user_posts", params)
		if err != nil {
			return nil, fmt.Errorf("fetching posts for %s: %w", username, err)
		}

		var page struct {
			Items         []json.RawMessage `json:"items"`
			MoreAvailable bool              `json:"more_available"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decoding posts page for %s: %w", username, err)
		}

		for _, item := range page.Items {
			posts = append(posts, item)
			var cursor struct {
				ID flexString `json:"id"`
			}
			if err := json.Unmarshal(item, &cursor); err == nil && cursor.ID != "" {
				maxID = cursor.ID.String()
			}
		}

		c.log.DebugWithFields("fetched posts page", map[string]interface{}{
			"platform": "instagram",
			"username": username,
			"total":    len(posts),
			"more":     page.MoreAvailable,
		})

		if maxPosts > 0 && len(posts) >= maxPosts {
			posts = posts[:maxPosts]
			break
		}
		if !page.MoreAvailable || len(page.Items) == 0 {
			break
		}
	}
	return posts, nil
}

func (c *Instagram) lookupUserID(ctx context.Context, username string) (string, error) {
	raw, err := c.api.GetJSON(ctx, "/api/v1/instagram/v1/fetch_user_info_by_username", url.Values{
		"username": {username},
	})
	if err != nil {
		return "", fmt.Errorf("looking up user %s: %w", username, err)
	}

	var info struct {
		Data struct {
			User struct {
				ID flexString `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return "", fmt.Errorf("decoding user info for %s: %w", username, err)
	}
	if info.Data.User.ID == "" {
		return "", fmt.Errorf("no user id in response for %s", username)
	}
	return info.Data.User.ID.String(), nil
}

type igCandidate struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type igMedia struct {
	MediaType      int `json:"media_type"`
	ImageVersions2 struct {
		Candidates []igCandidate `json:"candidates"`
	} `json:"image_versions2"`
	VideoVersions []igCandidate `json:"video_versions"`
}

const (
	igMediaImage = 1
	igMediaVideo = 2
)

// ExtractMedia flattens a post into media items. Carousel entries keep
// their original position as the ordinal even when type filtering removes
// neighbours, so file names stay stable across runs with different
// filters.
func (c *Instagram) ExtractMedia(raw json.RawMessage, allowed []media.Type) []media.Item {
	var post struct {
		igMedia
		Code          string     `json:"code"`
		ID            flexString `json:"id"`
		CarouselMedia []igMedia  `json:"carousel_media"`
	}
	if err := json.Unmarshal(raw, &post); err != nil {
		c.log.WithError(err).Debug("skipping malformed post")
		return nil
	}

	postID := post.Code
	if postID == "" {
		postID = post.ID.String()
	}
	if postID == "" {
		postID = "unknown"
	}

	var items []media.Item
	if len(post.CarouselMedia) > 0 {
		for idx, entry := range post.CarouselMedia {
			if item, ok := igItemFromMedia(entry, allowed); ok {
				item.PostID = postID
				item.Ordinal = idx
				items = append(items, item)
			}
		}
		return items
	}

	if item, ok := igItemFromMedia(post.igMedia, allowed); ok {
		item.PostID = postID
		item.Ordinal = 0
		items = append(items, item)
	}
	return items
}

func igItemFromMedia(entry igMedia, allowed []media.Type) (media.Item, bool) {
	switch entry.MediaType {
	case igMediaImage:
		if !media.ContainsType(allowed, media.TypeImage) {
			return media.Item{}, false
		}
		best, ok := bestCandidate(entry.ImageVersions2.Candidates)
		if !ok {
			return media.Item{}, false
		}
		return media.Item{
			SourceURL: best.URL,
			Type:      media.TypeImage,
			Width:     best.Width,
			Height:    best.Height,
			Ext:       media.InferExtension(best.URL, media.TypeImage),
		}, true
	case igMediaVideo:
		if !media.ContainsType(allowed, media.TypeVideo) {
			return media.Item{}, false
		}
		best, ok := bestCandidate(entry.VideoVersions)
		if !ok {
			return media.Item{}, false
		}
		return media.Item{
			SourceURL: best.URL,
			Type:      media.TypeVideo,
			Width:     best.Width,
			Height:    best.Height,
			Ext:       media.InferExtension(best.URL, media.TypeVideo),
		}, true
	}
	return media.Item{}, false
}

// bestCandidate picks the rendition with the largest pixel area.
func bestCandidate(candidates []igCandidate) (igCandidate, bool) {
	best := igCandidate{}
	found := false
	for _, cand := range candidates {
		if cand.URL == "" {
			continue
		}
		if !found || cand.Width*cand.Height > best.Width*best.Height {
			best = cand
			found = true
		}
	}
	return best, found
}
