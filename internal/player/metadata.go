package player

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
)

// Metadata holds track information shown next to the transport controls.
type Metadata struct {
	Title  string
	Artist string
	Album  string
}

// ReadMetadata reads tags from path, falling back to the file name. MP3s go
// through id3v2; other containers through dhowden/tag.
func ReadMetadata(path string) Metadata {
	var m Metadata
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		m = readID3(path)
	} else {
		m = readTag(path)
	}
	if m.Title == "" {
		base := filepath.Base(path)
		m.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return m
}

func readID3(path string) Metadata {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Metadata{}
	}
	defer t.Close()
	return Metadata{
		Title:  strings.TrimSpace(t.Title()),
		Artist: strings.TrimSpace(t.Artist()),
		Album:  strings.TrimSpace(t.Album()),
	}
}

func readTag(path string) Metadata {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}
	}
	defer f.Close()

	t, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{}
	}
	return Metadata{
		Title:  strings.TrimSpace(t.Title()),
		Artist: strings.TrimSpace(t.Artist()),
		Album:  strings.TrimSpace(t.Album()),
	}
}

// Label formats metadata as "Artist - Title" when an artist is known.
func (m Metadata) Label() string {
	if m.Artist == "" {
		return m.Title
	}
	return m.Artist + " - " + m.Title
}
