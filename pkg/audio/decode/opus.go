// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Decodes Ogg Opus files to 16-bit PCM at 48kHz using libopusfile via hraban/opus
package decode

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/aptest/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// libopusfile always decodes at 48kHz
const opusSampleRate = 48000

// The OpusHead packet sits in the first Ogg page
const oggHeadPeek = 512

var (
	opusHeadMagic   = []byte("OpusHead")
	vorbisHeadMagic = []byte("\x01vorbis")
)

// OpusDecoder decodes Ogg Opus audio
type OpusDecoder struct {
	stream   *opus.Stream
	channels int
	pcm      []int16
}

// NewOpus creates a new Ogg Opus decoder. Ogg Vorbis is rejected with ErrUnsupportedFormat.
func NewOpus(r io.Reader) (Stream, error) {
	br := bufio.NewReaderSize(r, oggHeadPeek)
	channels, err := opusChannels(br)
	if err != nil {
		return nil, err
	}

	stream, err := opus.NewStream(br)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		stream:   stream,
		channels: channels,
	}, nil
}

// opusChannels reads the channel count from the OpusHead packet without consuming it
func opusChannels(br *bufio.Reader) (int, error) {
	head, err := br.Peek(oggHeadPeek)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return 0, fmt.Errorf("failed to read ogg header: %w", err)
	}
	if !bytes.HasPrefix(head, []byte("OggS")) {
		return 0, fmt.Errorf("%w: not an ogg stream", ErrUnsupportedFormat)
	}
	if bytes.Contains(head, vorbisHeadMagic) {
		return 0, fmt.Errorf("%w: ogg vorbis", ErrUnsupportedFormat)
	}

	i := bytes.Index(head, opusHeadMagic)
	if i < 0 || i+10 > len(head) {
		return 0, fmt.Errorf("%w: ogg stream without an opus header", ErrUnsupportedFormat)
	}
	channels := int(head[i+9])
	if channels < 1 || channels > 2 {
		return 0, fmt.Errorf("unsupported opus channel count: %d", channels)
	}
	return channels, nil
}

// Format returns the decoded PCM format
func (d *OpusDecoder) Format() audio.Format {
	return audio.Format{
		SampleRate: opusSampleRate,
		Channels:   d.channels,
		BitDepth:   16,
	}
}

// Read decodes into p
func (d *OpusDecoder) Read(p []byte) (int, error) {
	samples := len(frameAligned(p, d.channels*2)) / 2
	if samples == 0 {
		return 0, nil
	}
	if cap(d.pcm) < samples {
		d.pcm = make([]int16, samples)
	}

	n, err := d.stream.Read(d.pcm[:samples])
	if err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("opus decode error: %w", err)
	}

	// n counts samples per channel
	pos := 0
	for _, s := range d.pcm[:n*d.channels] {
		audio.PutInt16(p[pos:], s)
		pos += 2
	}
	return pos, nil
}

// Length is unknown for Ogg Opus streams
func (d *OpusDecoder) Length() int64 { return -1 }

// Seekable reports false; libopusfile is driven as a forward-only stream
func (d *OpusDecoder) Seekable() bool { return false }

// Seek is not supported
func (d *OpusDecoder) Seek(int64) error { return ErrNotSeekable }

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return d.stream.Close()
}
