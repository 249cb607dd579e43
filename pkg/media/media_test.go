package media

import (
	"testing"
)

func TestTypeFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected Type
	}{
		{"image", TypeImage},
		{"images", TypeImage},
		{"IMAGE", TypeImage},
		{"video", TypeVideo},
		{"videos", TypeVideo},
		{"audio", TypeAudio},
		{"  video  ", TypeVideo},
		{"bogus", TypeImage},
		{"", TypeImage},
	}

	for _, tt := range tests {
		if got := TypeFromString(tt.input); got != tt.expected {
			t.Errorf("TypeFromString(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseTypeList(t *testing.T) {
	types := ParseTypeList("image,video")
	if len(types) != 2 || types[0] != TypeImage || types[1] != TypeVideo {
		t.Errorf("ParseTypeList(\"image,video\") = %v", types)
	}

	// Duplicates collapse
	types = ParseTypeList("image,images,image")
	if len(types) != 1 || types[0] != TypeImage {
		t.Errorf("expected single image type, got %v", types)
	}

	// Empty input means all types
	types = ParseTypeList("")
	if len(types) != 3 {
		t.Errorf("expected all 3 types for empty input, got %v", types)
	}

	types = ParseTypeList(" , ,")
	if len(types) != 3 {
		t.Errorf("expected all 3 types for blank input, got %v", types)
	}
}

func TestContainsType(t *testing.T) {
	allowed := []Type{TypeImage, TypeVideo}
	if !ContainsType(allowed, TypeImage) {
		t.Error("expected image to be allowed")
	}
	if ContainsType(allowed, TypeAudio) {
		t.Error("expected audio to be rejected")
	}
	if !ContainsType(nil, TypeAudio) {
		t.Error("nil set should allow everything")
	}
}

func TestInferExtension(t *testing.T) {
	tests := []struct {
		url      string
		mtype    Type
		expected string
	}{
		{"https://cdn.example.com/photo.jpg", TypeImage, "jpg"},
		{"https://cdn.example.com/photo.PNG", TypeImage, "png"},
		{"https://cdn.example.com/photo.jpg?token=abc&size=large", TypeImage, "jpg"},
		{"https://cdn.example.com/clip.mp4", TypeVideo, "mp4"},
		{"https://cdn.example.com/track.m4a", TypeAudio, "m4a"},
		// Extension not valid for the type falls back to the default
		{"https://cdn.example.com/clip.jpg", TypeVideo, "mp4"},
		{"https://cdn.example.com/noext", TypeImage, "jpg"},
		{"https://cdn.example.com/noext", TypeVideo, "mp4"},
		{"https://cdn.example.com/noext", TypeAudio, "mp3"},
	}

	for _, tt := range tests {
		if got := InferExtension(tt.url, tt.mtype); got != tt.expected {
			t.Errorf("InferExtension(%q, %q) = %q, want %q", tt.url, tt.mtype, got, tt.expected)
		}
	}
}

func TestItemExtension(t *testing.T) {
	item := Item{SourceURL: "https://cdn.example.com/a.webp", Type: TypeImage}
	if got := item.Extension(); got != "webp" {
		t.Errorf("expected webp, got %s", got)
	}

	item.Ext = "png"
	if got := item.Extension(); got != "png" {
		t.Errorf("explicit extension should win, got %s", got)
	}
}
