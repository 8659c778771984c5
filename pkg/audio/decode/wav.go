// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE to 16-bit PCM using beep's wav streamer
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/aptest/pkg/audio"
	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// WAVDecoder decodes WAV audio
type WAVDecoder struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	seekable bool
	gain     float64
	buf      [][2]float64
}

// fullReader fills every Read whole, so beep never sees a partial frame
// before the end of the stream
type fullReader struct {
	r io.Reader
}

func (f fullReader) Read(p []byte) (int, error) {
	n, err := io.ReadFull(f.r, p)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	return n, err
}

func (f fullReader) Close() error {
	if c, ok := f.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewWAV creates a new WAV decoder
func NewWAV(r io.Reader) (Stream, error) {
	_, seekable := r.(io.Seeker)
	if !seekable {
		r = fullReader{r: r}
	}

	streamer, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create wav decoder: %w", err)
	}

	if format.NumChannels < 1 || format.NumChannels > 2 {
		streamer.Close()
		return nil, fmt.Errorf("unsupported wav channel count: %d", format.NumChannels)
	}

	// beep scales 16 and 24-bit samples into [-0.5, 0.5]
	gain := 1.0
	if format.Precision >= 2 {
		gain = 2
	}

	return &WAVDecoder{
		streamer: streamer,
		format:   format,
		seekable: seekable,
		gain:     gain,
	}, nil
}

// Format returns the decoded PCM format
func (d *WAVDecoder) Format() audio.Format {
	return audio.Format{
		SampleRate: int(d.format.SampleRate),
		Channels:   d.format.NumChannels,
		BitDepth:   16,
	}
}

// Read decodes into p
func (d *WAVDecoder) Read(p []byte) (int, error) {
	frameSize := d.format.NumChannels * 2
	frames := len(p) / frameSize
	if frames == 0 {
		return 0, nil
	}
	if cap(d.buf) < frames {
		d.buf = make([][2]float64, frames)
	}

	n, ok := d.streamer.Stream(d.buf[:frames])
	pos := 0
	for i := 0; i < n; i++ {
		for ch := 0; ch < d.format.NumChannels; ch++ {
			audio.PutInt16(p[pos:], audio.FloatToInt16(d.buf[i][ch]*d.gain))
			pos += 2
		}
	}

	if !ok && n == 0 {
		if err := d.streamer.Err(); err != nil {
			return 0, fmt.Errorf("wav decode error: %w", err)
		}
		return 0, io.EOF
	}
	return pos, nil
}

// Length returns the total frame count
func (d *WAVDecoder) Length() int64 {
	return int64(d.streamer.Len())
}

// Seekable reports whether the source reader can seek
func (d *WAVDecoder) Seekable() bool { return d.seekable }

// Seek moves to an absolute frame
func (d *WAVDecoder) Seek(frame int64) error {
	if !d.seekable {
		return ErrNotSeekable
	}
	if err := d.streamer.Seek(int(frame)); err != nil {
		return fmt.Errorf("wav seek failed: %w", err)
	}
	return nil
}

// Close releases decoder resources
func (d *WAVDecoder) Close() error {
	return d.streamer.Close()
}
