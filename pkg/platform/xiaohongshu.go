package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"mediagrab/pkg/logger"
	"mediagrab/pkg/media"
)

var (
	xhsUserIDPattern = regexp.MustCompile(`/user/profile/([a-zA-Z0-9]+)`)
	xhsNoteIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/explore/([a-zA-Z0-9]+)`),
		regexp.MustCompile(`/discovery/item/([a-zA-Z0-9]+)`),
		regexp.MustCompile(`/note/([a-zA-Z0-9]+)`),
	}
)

// Xiaohongshu handles both profile URLs (all notes of a user) and note
// share links, including xhslink.com short links that need a redirect
// hop before the kind of link is known.
type Xiaohongshu struct {
	api API
	log logger.Logger

	// Resolved during FetchPosts: a nickname from note data when
	// available, otherwise the user ID from the URL.
	cachedUsername string
}

// NewXiaohongshu creates a Xiaohongshu platform client.
func NewXiaohongshu(api API, log logger.Logger) Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Xiaohongshu{api: api, log: log}
}

func (c *Xiaohongshu) Name() string { return "xiaohongshu" }

// UsernameFromURL returns the name cached by the last FetchPosts call
// when present, otherwise the user ID from a profile URL. Short links
// yield nothing until they have been resolved.
func (c *Xiaohongshu) UsernameFromURL(rawURL string) string {
	if c.cachedUsername != "" {
		return c.cachedUsername
	}
	if m := xhsUserIDPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

func isShortLink(rawURL string) bool {
	return strings.Contains(rawURL, "xhslink.com")
}

func noteIDFromURL(rawURL string) string {
	for _, pattern := range xhsNoteIDPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

func userIDFromURL(rawURL string) string {
	if m := xhsUserIDPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// FetchPosts resolves the URL to either a single note or a user's note
// feed. Profile URLs are paged through with a cursor until maxPosts is
// reached or the feed is exhausted.
func (c *Xiaohongshu) FetchPosts(ctx context.Context, profileURL string, maxPosts int) ([]json.RawMessage, error) {
	resolved := strings.TrimSpace(profileURL)

	if isShortLink(resolved) {
		full, err := c.api.ResolveRedirect(ctx, resolved)
		if err != nil {
			return nil, fmt.Errorf("resolving short link %s: %w", profileURL, err)
		}
		c.log.DebugWithFields("short link resolved", map[string]interface{}{"url": full})
		resolved = full
	}

	userID := ""
	if strings.Contains(resolved, "/user/profile/") {
		userID = userIDFromURL(resolved)
		if userID != "" {
			c.cachedUsername = userID
		}
	} else {
		if noteID := noteIDFromURL(resolved); noteID != "" {
			note, err := c.fetchNote(ctx, noteID)
			if err != nil {
				return nil, err
			}
			return []json.RawMessage{note}, nil
		}
		userID = userIDFromURL(resolved)
	}

	if userID == "" {
		return nil, fmt.Errorf("cannot extract user id from url: %s", profileURL)
	}
	return c.fetchUserNotes(ctx, userID, maxPosts)
}

// fetchNote retrieves a single note, trying the web endpoint first and
// falling back to the app one.
func (c *Xiaohongshu) fetchNote(ctx context.Context, noteID string) (json.RawMessage, error) {
	endpoints := []string{
		"/api/v1/xiaohongshu/web/get_note_info",
		"/api/v1/xiaohongshu/app/get_note_info",
	}

	var lastErr error
	for _, endpoint := range endpoints {
		raw, err := c.api.GetJSON(ctx, endpoint, url.Values{"note_id": {noteID}})
		if err != nil {
			lastErr = err
			continue
		}

		var wrapper struct {
			NoteInfo json.RawMessage `json:"note_info"`
			Note     json.RawMessage `json:"note"`
		}
		note := raw
		if err := json.Unmarshal(raw, &wrapper); err == nil {
			if len(wrapper.NoteInfo) > 0 {
				note = wrapper.NoteInfo
			} else if len(wrapper.Note) > 0 {
				note = wrapper.Note
			}
		}

		c.cachedUsername = noteAuthor(note)
		return note, nil
	}
	return nil, fmt.Errorf("fetching note %s: %w", noteID, lastErr)
}

// noteAuthor pulls a display name out of a note, falling back to a
// generic placeholder so output paths stay well formed.
func noteAuthor(note json.RawMessage) string {
	var wrapper struct {
		User struct {
			Nickname string     `json:"nickname"`
			NickName string     `json:"nick_name"`
			UserID   flexString `json:"user_id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(note, &wrapper); err == nil {
		switch {
		case wrapper.User.Nickname != "":
			return wrapper.User.Nickname
		case wrapper.User.NickName != "":
			return wrapper.User.NickName
		case wrapper.User.UserID != "":
			return wrapper.User.UserID.String()
		}
	}
	return "xhs_user"
}

type xhsNotesPage struct {
	Data       json.RawMessage   `json:"data"`
	Notes      []json.RawMessage `json:"notes"`
	Cursor     string            `json:"cursor"`
	LastCursor string            `json:"lastCursor"`
	HasMore    bool              `json:"has_more"`
}

func (p xhsNotesPage) nextCursor() string {
	if p.Cursor != "" {
		return p.Cursor
	}
	return p.LastCursor
}

// fetchUserNotes pages through a user's notes, preferring the app
// endpoint and falling back to the web one per page.
func (c *Xiaohongshu) fetchUserNotes(ctx context.Context, userID string, maxPosts int) ([]json.RawMessage, error) {
	var notes []json.RawMessage
	cursor := ""

	for {
		page, err := c.fetchNotesPage(ctx, userID, cursor)
		if err != nil {
			if len(notes) > 0 {
				// Keep what we have when a later page fails.
				c.log.WithError(err).Warn("stopping pagination after partial fetch")
				break
			}
			return nil, err
		}

		for _, note := range page.Notes {
			notes = append(notes, note)
			if c.cachedUsername == "" || c.cachedUsername == userID {
				if name := noteAuthor(note); name != "xhs_user" {
					c.cachedUsername = name
				}
			}
		}

		c.log.DebugWithFields("fetched notes page", map[string]interface{}{
			"platform": "xiaohongshu",
			"user_id":  userID,
			"total":    len(notes),
			"more":     page.HasMore,
		})

		if maxPosts > 0 && len(notes) >= maxPosts {
			notes = notes[:maxPosts]
			break
		}
		if !page.HasMore || len(page.Notes) == 0 {
			break
		}
		cursor = page.nextCursor()
	}
	return notes, nil
}

func (c *Xiaohongshu) fetchNotesPage(ctx context.Context, userID, cursor string) (*xhsNotesPage, error) {
	appParams := url.Values{"user_id": {userID}}
	if cursor != "" {
		appParams.Set("cursor", cursor)
	}
	raw, err := c.api.GetJSON(ctx, "/api/v1/xiaohongshu/app/get_user_notes", appParams)
	if err != nil {
		webParams := url.Values{"user_id": {userID}}
		if cursor != "" {
			webParams.Set("lastCursor", cursor)
		}
		raw, err = c.api.GetJSON(ctx, "/api/v1/xiaohongshu/web/get_user_notes", webParams)
		if err != nil {
			return nil, fmt.Errorf("fetching notes for %s: %w", userID, err)
		}
	}

	var page xhsNotesPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decoding notes page for %s: %w", userID, err)
	}
	// Some responses nest the payload one level deeper.
	if len(page.Notes) == 0 && len(page.Data) > 0 {
		var inner xhsNotesPage
		if err := json.Unmarshal(page.Data, &inner); err == nil && len(inner.Notes) > 0 {
			return &inner, nil
		}
	}
	return &page, nil
}

type xhsImage struct {
	InfoList []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"info_list"`
	URLSizeLarge string `json:"url_size_large"`
	URLDefault   string `json:"url_default"`
	URL          string `json:"url"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// bestURL prefers the largest rendition from info_list, then the direct
// URL fields in quality order.
func (img xhsImage) bestURL() string {
	best := ""
	bestArea := -1
	for _, info := range img.InfoList {
		if info.URL == "" {
			continue
		}
		if area := info.Width * info.Height; area > bestArea {
			best = info.URL
			bestArea = area
		}
	}
	if best != "" {
		return best
	}
	switch {
	case img.URLSizeLarge != "":
		return img.URLSizeLarge
	case img.URLDefault != "":
		return img.URLDefault
	}
	return img.URL
}

type xhsVideo struct {
	Media struct {
		Stream struct {
			H264 []struct {
				MasterURL  string   `json:"master_url"`
				BackupURLs []string `json:"backup_urls"`
				Width      int      `json:"width"`
				Height     int      `json:"height"`
			} `json:"h264"`
		} `json:"stream"`
	} `json:"media"`
	URL      string `json:"url"`
	H264720p struct {
		URL string `json:"url"`
	} `json:"h264_720p"`
	H264480p struct {
		URL string `json:"url"`
	} `json:"h264_480p"`
	H264360p struct {
		URL string `json:"url"`
	} `json:"h264_360p"`
}

// bestURL prefers the highest resolution h264 stream, then the direct
// URL fields in quality order.
func (v xhsVideo) bestURL() string {
	best := ""
	bestArea := -1
	for _, stream := range v.Media.Stream.H264 {
		streamURL := stream.MasterURL
		if streamURL == "" && len(stream.BackupURLs) > 0 {
			streamURL = stream.BackupURLs[0]
		}
		if streamURL == "" {
			continue
		}
		if area := stream.Width * stream.Height; area > bestArea {
			best = streamURL
			bestArea = area
		}
	}
	if best != "" {
		return best
	}
	switch {
	case v.URL != "":
		return v.URL
	case v.H264720p.URL != "":
		return v.H264720p.URL
	case v.H264480p.URL != "":
		return v.H264480p.URL
	}
	return v.H264360p.URL
}

// ExtractMedia pulls images or a video out of a note. Image ordinals
// follow the note's image list order.
func (c *Xiaohongshu) ExtractMedia(raw json.RawMessage, allowed []media.Type) []media.Item {
	var note struct {
		NoteID     string     `json:"note_id"`
		ID         flexString `json:"id"`
		Type       flexString `json:"type"`
		NoteType   flexString `json:"note_type"`
		ImageList  []xhsImage `json:"image_list"`
		ImagesList []xhsImage `json:"images_list"`
		Video      *xhsVideo  `json:"video"`
		VideoInfo  *xhsVideo  `json:"video_info"`
		NoteInfo   *struct {
			NoteID    string     `json:"note_id"`
			ImageList []xhsImage `json:"image_list"`
			Video     *xhsVideo  `json:"video"`
		} `json:"note_info"`
	}
	if err := json.Unmarshal(raw, &note); err != nil {
		c.log.WithError(err).Debug("skipping malformed note")
		return nil
	}

	noteID := note.NoteID
	if noteID == "" {
		noteID = note.ID.String()
	}
	if noteID == "" && note.NoteInfo != nil {
		noteID = note.NoteInfo.NoteID
	}
	if noteID == "" {
		noteID = "unknown"
	}

	noteType := note.Type.String()
	if noteType == "" {
		noteType = note.NoteType.String()
	}
	switch noteType {
	case "", "normal", "image", "1":
		noteType = "image"
	case "video", "2":
		noteType = "video"
	}

	var items []media.Item

	if noteType == "image" && media.ContainsType(allowed, media.TypeImage) {
		images := note.ImageList
		if len(images) == 0 {
			images = note.ImagesList
		}
		if len(images) == 0 && note.NoteInfo != nil {
			images = note.NoteInfo.ImageList
		}
		for idx, img := range images {
			imgURL := img.bestURL()
			if imgURL == "" {
				continue
			}
			items = append(items, media.Item{
				SourceURL: imgURL,
				Type:      media.TypeImage,
				PostID:    noteID,
				Ordinal:   idx,
				Width:     img.Width,
				Height:    img.Height,
				Ext:       media.InferExtension(imgURL, media.TypeImage),
			})
		}
	}

	if noteType == "video" && media.ContainsType(allowed, media.TypeVideo) {
		video := note.Video
		if video == nil {
			video = note.VideoInfo
		}
		if video == nil && note.NoteInfo != nil {
			video = note.NoteInfo.Video
		}
		if video != nil {
			if videoURL := video.bestURL(); videoURL != "" {
				items = append(items, media.Item{
					SourceURL: videoURL,
					Type:      media.TypeVideo,
					PostID:    noteID,
					Ordinal:   0,
					Ext:       media.InferExtension(videoURL, media.TypeVideo),
				})
			}
		}
	}

	return items
}
