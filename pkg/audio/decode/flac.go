// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC frames to 16-bit interleaved PCM using mewkiz/flac
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/aptest/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct {
	stream   *flac.Stream
	bitDepth int
	channels int
	seekable bool

	// Converted PCM from the last parsed frame not yet returned by Read
	pending []byte
}

// NewFLAC creates a new FLAC decoder
func NewFLAC(r io.Reader) (Stream, error) {
	var (
		stream   *flac.Stream
		err      error
		seekable bool
	)

	if rs, ok := r.(io.ReadSeeker); ok {
		stream, err = flac.NewSeek(rs)
		seekable = true
	} else {
		stream, err = flac.New(r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create flac decoder: %w", err)
	}

	info := stream.Info
	if info.NChannels == 0 || info.SampleRate == 0 {
		stream.Close()
		return nil, fmt.Errorf("invalid flac stream info: %d channels at %dHz", info.NChannels, info.SampleRate)
	}

	return &FLACDecoder{
		stream:   stream,
		bitDepth: int(info.BitsPerSample),
		channels: int(info.NChannels),
		seekable: seekable,
	}, nil
}

// Format returns the decoded PCM format
func (d *FLACDecoder) Format() audio.Format {
	return audio.Format{
		SampleRate: int(d.stream.Info.SampleRate),
		Channels:   d.channels,
		BitDepth:   16,
	}
}

// Read decodes into p
func (d *FLACDecoder) Read(p []byte) (int, error) {
	p = frameAligned(p, d.channels*2)
	n := 0

	for n < len(p) {
		if len(d.pending) == 0 {
			if n > 0 {
				return n, nil
			}
			if err := d.parseNext(); err != nil {
				return n, err
			}
			continue
		}
		c := copy(p[n:], d.pending)
		d.pending = d.pending[c:]
		n += c
	}
	return n, nil
}

func (d *FLACDecoder) parseNext() error {
	frame, err := d.stream.ParseNext()
	if err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("flac decode error: %w", err)
	}

	blockSize := int(frame.BlockSize)
	out := make([]byte, blockSize*d.channels*2)
	pos := 0
	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < d.channels; ch++ {
			sample := audio.ScaleToInt16(frame.Subframes[ch].Samples[i], d.bitDepth)
			audio.PutInt16(out[pos:], sample)
			pos += 2
		}
	}
	d.pending = out
	return nil
}

// Length returns the total frame count from STREAMINFO, or -1 when absent
func (d *FLACDecoder) Length() int64 {
	if d.stream.Info.NSamples == 0 {
		return -1
	}
	return int64(d.stream.Info.NSamples)
}

// Seekable reports whether the source reader can seek
func (d *FLACDecoder) Seekable() bool { return d.seekable }

// Seek moves to an absolute frame
func (d *FLACDecoder) Seek(frame int64) error {
	if !d.seekable {
		return ErrNotSeekable
	}
	if frame < 0 {
		frame = 0
	}
	if _, err := d.stream.Seek(uint64(frame)); err != nil {
		return fmt.Errorf("flac seek failed: %w", err)
	}
	d.pending = nil
	return nil
}

// Close releases decoder resources
func (d *FLACDecoder) Close() error {
	return d.stream.Close()
}
