// ABOUTME: Stream metadata extraction
// ABOUTME: Reads ID3/Vorbis/MP4 tags with dhowden/tag and falls back to the file name
package engine

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dhowden/tag"
)

// Metadata describes the loaded stream
type Metadata struct {
	Title  string
	Artist string
	Album  string
	Genre  string
	Year   int
	Track  int
	Tags   string // Tag format, e.g. ID3v2.4
	Codec  string
}

func (m Metadata) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "title=%q", m.Title)
	if m.Artist != "" {
		fmt.Fprintf(&b, " artist=%q", m.Artist)
	}
	if m.Album != "" {
		fmt.Fprintf(&b, " album=%q", m.Album)
	}
	if m.Genre != "" {
		fmt.Fprintf(&b, " genre=%q", m.Genre)
	}
	if m.Year != 0 {
		fmt.Fprintf(&b, " year=%d", m.Year)
	}
	if m.Track != 0 {
		fmt.Fprintf(&b, " track=%d", m.Track)
	}
	if m.Codec != "" {
		fmt.Fprintf(&b, " codec=%s", m.Codec)
	}
	if m.Tags != "" {
		fmt.Fprintf(&b, " tags=%s", m.Tags)
	}
	return b.String()
}

// readTags reads tags from rs and rewinds it. A stream without tags is not an error.
func readTags(rs io.ReadSeeker, name string) (Metadata, error) {
	meta := Metadata{}

	// Unreadable or missing tags leave the audio playable
	if m, err := tag.ReadFrom(rs); err == nil {
		meta.Title = m.Title()
		meta.Artist = m.Artist()
		meta.Album = m.Album()
		meta.Genre = m.Genre()
		meta.Year = m.Year()
		meta.Track, _ = m.Track()
		meta.Tags = string(m.Format())
	}

	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(path.Base(name), path.Ext(name))
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return meta, fmt.Errorf("failed to rewind after tag read: %w", err)
	}
	return meta, nil
}
