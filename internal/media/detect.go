// Package media classifies the files a user can hand to the editor.
package media

import (
	"path/filepath"
	"slices"
	"strings"
)

// Kind is what a path is used for.
type Kind int

const (
	KindUnknown Kind = iota
	KindAudio
	KindFlyer
)

var audioExts = []string{".mp3", ".wav", ".flac", ".ogg", ".aac", ".m4a", ".opus", ".webm", ".mp4"}

var flyerExts = []string{".yaml", ".yml"}

// IsSupportedExt reports whether ext is a playable audio format. Formats
// without a native decoder need ffmpeg at runtime.
func IsSupportedExt(ext string) bool {
	return slices.Contains(audioExts, strings.ToLower(ext))
}

// IsFlyerExt reports whether ext is a flyer document.
func IsFlyerExt(ext string) bool {
	return slices.Contains(flyerExts, strings.ToLower(ext))
}

// Classify decides what a path is by its extension.
func Classify(path string) Kind {
	ext := filepath.Ext(path)
	switch {
	case IsSupportedExt(ext):
		return KindAudio
	case IsFlyerExt(ext):
		return KindFlyer
	}
	return KindUnknown
}

// SupportedExtsList returns a human-readable list of audio formats.
func SupportedExtsList() string {
	return strings.Join(audioExts, ", ")
}
