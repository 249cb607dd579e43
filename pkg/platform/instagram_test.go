package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/pkg/media"
)

func TestInstagramUsernameFromURL(t *testing.T) {
	c := NewInstagram(&stubAPI{}, nil)

	tests := []struct {
		url  string
		want string
	}{
		{"https://www.instagram.com/natgeo/", "natgeo"},
		{"https://www.instagram.com/natgeo/reels/", "natgeo"},
		{"https://instagram.com/natgeo", "natgeo"},
		{"https://www.instagram.com/p/Cxyz123/", ""},
		{"https://www.instagram.com/reel/Cxyz123/", ""},
		{"https://www.instagram.com/stories/highlights/123/", ""},
		{"https://www.instagram.com/", ""},
		{"not a url at all ://", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.UsernameFromURL(tt.url), "url: %s", tt.url)
	}
}

func igUserInfo(id interface{}) json.RawMessage {
	raw, _ := json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{
			"user": map[string]interface{}{"id": id},
		},
	})
	return raw
}

func igPostsPage(more bool, ids ...string) json.RawMessage {
	items := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]interface{}{"id": id, "code": "c_" + id})
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"items":          items,
		"more_available": more,
	})
	return raw
}

func TestInstagramFetchPostsPaginates(t *testing.T) {
	api := &stubAPI{}
	api.handler = func(endpoint string, params url.Values) (json.RawMessage, error) {
		switch endpoint {
		case "/api/v1/instagram/v1/fetch_user_info_by_username":
			assert.Equal(t, "natgeo", params.Get("username"))
			return igUserInfo(4280661), nil
		case "/api/v1/instagram/v1/fetch_user_posts":
			assert.Equal(t, "4280661", params.Get("user_id"))
			assert.Equal(t, "12", params.Get("count"))
			if params.Get("max_id") == "" {
				return igPostsPage(true, "a1", "a2"), nil
			}
			assert.Equal(t, "a2", params.Get("max_id"))
			return igPostsPage(false, "a3"), nil
		}
		return nil, fmt.Errorf("unexpected endpoint %s", endpoint)
	}

	c := NewInstagram(api, nil)
	posts, err := c.FetchPosts(context.Background(), "https://www.instagram.com/natgeo/", 0)
	require.NoError(t, err)
	assert.Len(t, posts, 3)
	assert.Len(t, api.callsTo("/api/v1/instagram/v1/fetch_user_posts"), 2)
}

func TestInstagramFetchPostsStopsAtMaxPosts(t *testing.T) {
	api := &stubAPI{}
	api.handler = func(endpoint string, params url.Values) (json.RawMessage, error) {
		switch endpoint {
		case "/api/v1/instagram/v1/fetch_user_info_by_username":
			return igUserInfo("99"), nil
		case "/api/v1/instagram/v1/fetch_user_posts":
			return igPostsPage(true, "a1", "a2", "a3"), nil
		}
		return nil, fmt.Errorf("unexpected endpoint %s", endpoint)
	}

	c := NewInstagram(api, nil)
	posts, err := c.FetchPosts(context.Background(), "https://www.instagram.com/natgeo/", 2)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Len(t, api.callsTo("/api/v1/instagram/v1/fetch_user_posts"), 1)
}

func TestInstagramFetchPostsRejectsBadURL(t *testing.T) {
	c := NewInstagram(&stubAPI{}, nil)
	_, err := c.FetchPosts(context.Background(), "https://www.instagram.com/p/Cxyz/", 0)
	assert.Error(t, err)
}

func TestInstagramFetchPostsMissingUserID(t *testing.T) {
	api := &stubAPI{}
	api.handler = func(endpoint string, params url.Values) (json.RawMessage, error) {
		return json.RawMessage(`{"data":{}}`), nil
	}
	c := NewInstagram(api, nil)
	_, err := c.FetchPosts(context.Background(), "https://www.instagram.com/natgeo/", 0)
	assert.Error(t, err)
}

const igCarouselPost = `{
	"code": "Cabc123",
	"carousel_media": [
		{
			"media_type": 1,
			"image_versions2": {"candidates": [
				{"url": "https://cdn.example.com/small.jpg", "width": 320, "height": 320},
				{"url": "https://cdn.example.com/large.jpg", "width": 1080, "height": 1080}
			]}
		},
		{
			"media_type": 2,
			"video_versions": [
				{"url": "https://cdn.example.com/clip.mp4", "width": 720, "height": 1280}
			]
		},
		{
			"media_type": 1,
			"image_versions2": {"candidates": [
				{"url": "https://cdn.example.com/third.jpg", "width": 1080, "height": 1350}
			]}
		}
	]
}`

func TestInstagramExtractMediaCarouselKeepsPositions(t *testing.T) {
	c := NewInstagram(&stubAPI{}, nil)

	// Filtering to images leaves a hole at position 1 so the files keep
	// the same names a full download would give them.
	items := c.ExtractMedia(json.RawMessage(igCarouselPost), []media.Type{media.TypeImage})
	require.Len(t, items, 2)
	assert.Equal(t, 0, items[0].Ordinal)
	assert.Equal(t, 2, items[1].Ordinal)
	assert.Equal(t, "https://cdn.example.com/large.jpg", items[0].SourceURL)
	assert.Equal(t, "Cabc123", items[0].PostID)

	videos := c.ExtractMedia(json.RawMessage(igCarouselPost), []media.Type{media.TypeVideo})
	require.Len(t, videos, 1)
	assert.Equal(t, 1, videos[0].Ordinal)
	assert.Equal(t, media.TypeVideo, videos[0].Type)
	assert.Equal(t, "mp4", videos[0].Ext)

	all := c.ExtractMedia(json.RawMessage(igCarouselPost), nil)
	assert.Len(t, all, 3)
}

func TestInstagramExtractMediaSinglePost(t *testing.T) {
	c := NewInstagram(&stubAPI{}, nil)

	post := json.RawMessage(`{
		"id": "3141592653",
		"media_type": 2,
		"video_versions": [
			{"url": "https://cdn.example.com/low.mp4", "width": 480, "height": 854},
			{"url": "https://cdn.example.com/high.mp4", "width": 1080, "height": 1920}
		]
	}`)
	items := c.ExtractMedia(post, nil)
	require.Len(t, items, 1)
	assert.Equal(t, "https://cdn.example.com/high.mp4", items[0].SourceURL)
	assert.Equal(t, "3141592653", items[0].PostID)
	assert.Equal(t, 0, items[0].Ordinal)
	assert.Equal(t, 1080, items[0].Width)
}

func TestInstagramExtractMediaMalformed(t *testing.T) {
	c := NewInstagram(&stubAPI{}, nil)
	assert.Empty(t, c.ExtractMedia(json.RawMessage(`{broken`), nil))
	assert.Empty(t, c.ExtractMedia(json.RawMessage(`{"media_type": 7}`), nil))
}
