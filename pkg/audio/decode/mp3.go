// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 to 16-bit stereo PCM using go-mp3
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/aptest/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3 decoder output is always 16-bit stereo
const mp3FrameSize = 4

// MP3Decoder decodes MP3 audio
type MP3Decoder struct {
	decoder  *mp3.Decoder
	seekable bool
}

// NewMP3 creates a new MP3 decoder
func NewMP3(r io.Reader) (Stream, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	_, seekable := r.(io.Seeker)

	return &MP3Decoder{
		decoder:  decoder,
		seekable: seekable,
	}, nil
}

// Format returns the decoded PCM format
func (d *MP3Decoder) Format() audio.Format {
	return audio.Format{
		SampleRate: d.decoder.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}
}

// Read decodes into p
func (d *MP3Decoder) Read(p []byte) (int, error) {
	n, err := d.decoder.Read(frameAligned(p, mp3FrameSize))
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("mp3 decode error: %w", err)
	}
	return n, err
}

// Length returns the total frame count when the source is seekable
func (d *MP3Decoder) Length() int64 {
	if !d.seekable {
		return -1
	}
	n := d.decoder.Length()
	if n < 0 {
		return -1
	}
	return n / mp3FrameSize
}

// Seekable reports whether the source reader can seek
func (d *MP3Decoder) Seekable() bool { return d.seekable }

// Seek moves to an absolute frame
func (d *MP3Decoder) Seek(frame int64) error {
	if !d.seekable {
		return ErrNotSeekable
	}
	if _, err := d.decoder.Seek(frame*mp3FrameSize, io.SeekStart); err != nil {
		return fmt.Errorf("mp3 seek failed: %w", err)
	}
	return nil
}

// Close releases decoder resources
func (d *MP3Decoder) Close() error {
	return nil
}
