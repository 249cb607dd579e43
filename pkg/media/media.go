package media

import (
	"net/url"
	"path"
	"strings"
)

// Type classifies a downloadable asset.
type Type string

const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
	TypeAudio Type = "audio"
)

// TypeFromString parses a media type name. Plural forms are accepted.
// Unrecognized names fall back to TypeImage.
func TypeFromString(s string) Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "images":
		return TypeImage
	case "video", "videos":
		return TypeVideo
	case "audio":
		return TypeAudio
	default:
		return TypeImage
	}
}

// ParseTypeList parses a comma-separated list of media type names.
// An empty or all-blank list yields every type.
func ParseTypeList(s string) []Type {
	var types []Type
	seen := make(map[Type]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t := TypeFromString(part)
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return []Type{TypeImage, TypeVideo, TypeAudio}
	}
	return types
}

// ContainsType reports whether t is in the allowed set. A nil or empty set
// allows everything.
func ContainsType(allowed []Type, t Type) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

// Item is a normalized reference to one downloadable asset within a post.
// Items are produced by a platform extractor and are immutable after that;
// the orchestrator stamps Platform and Username before handing them to the
// download engine.
type Item struct {
	SourceURL string
	Type      Type
	PostID    string
	Ordinal   int
	Platform  string
	Username  string
	Ext       string
	Width     int
	Height    int
}

// validExts maps each media type to the file extensions accepted from a
// source URL. Anything else falls back to the type's default.
var validExts = map[Type][]string{
	TypeImage: {"jpg", "jpeg", "png", "webp", "gif", "heic"},
	TypeVideo: {"mp4", "mov", "avi", "mkv", "webm", "m3u8"},
	TypeAudio: {"mp3", "m4a", "aac", "wav", "ogg", "flac"},
}

var defaultExts = map[Type]string{
	TypeImage: "jpg",
	TypeVideo: "mp4",
	TypeAudio: "mp3",
}

// Extension returns the file extension for the item, inferring it from the
// source URL when not already set.
func (i Item) Extension() string {
	if i.Ext != "" {
		return i.Ext
	}
	return InferExtension(i.SourceURL, i.Type)
}

// InferExtension derives a file extension from a source URL, validated
// against the set of known extensions for the media type.
func InferExtension(rawURL string, t Type) string {
	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
		for _, valid := range validExts[t] {
			if ext == valid {
				return ext
			}
		}
	}
	if def, ok := defaultExts[t]; ok {
		return def
	}
	return "bin"
}
