// ABOUTME: Decoder interface definition
// ABOUTME: Common stream interface for all audio decoders and codec selection
package decode

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/Resonate-Protocol/aptest/pkg/audio"
)

var (
	// ErrUnsupportedFormat is returned when no decoder handles a container
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrNotSeekable is returned by Seek when the underlying reader cannot seek
	ErrNotSeekable = errors.New("stream is not seekable")
)

// Codec names understood by New
const (
	CodecMP3  = "mp3"
	CodecFLAC = "flac"
	CodecWAV  = "wav"
	CodecOpus = "opus"
)

// Stream decodes an encoded byte stream into interleaved 16-bit PCM
type Stream interface {
	// Format is the PCM layout produced by Read
	Format() audio.Format

	// Read fills p with whole PCM frames
	Read(p []byte) (int, error)

	// Length returns the total number of frames, or -1 when unknown
	Length() int64

	// Seekable reports whether Seek can succeed
	Seekable() bool

	// Seek moves to an absolute frame
	Seek(frame int64) error

	// Close releases decoder resources
	Close() error
}

// New creates the decoder for codec over r; seeking works when r is an io.ReadSeeker
func New(codec string, r io.Reader) (Stream, error) {
	switch codec {
	case CodecMP3:
		return NewMP3(r)
	case CodecFLAC:
		return NewFLAC(r)
	case CodecWAV:
		return NewWAV(r)
	case CodecOpus:
		return NewOpus(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, codec)
	}
}

// CodecFromPath picks a codec from a file name or URL path extension
func CodecFromPath(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".mp3":
		return CodecMP3
	case ".flac":
		return CodecFLAC
	case ".wav", ".wave":
		return CodecWAV
	case ".opus", ".ogg", ".oga":
		return CodecOpus
	default:
		return ""
	}
}

// CodecFromContentType picks a codec from an HTTP Content-Type header
func CodecFromContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "audio/mpeg", "audio/mp3", "audio/mpeg3":
		return CodecMP3
	case "audio/flac", "audio/x-flac":
		return CodecFLAC
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return CodecWAV
	case "audio/ogg", "audio/opus", "application/ogg":
		return CodecOpus
	default:
		return ""
	}
}

func frameAligned(p []byte, frameSize int) []byte {
	return p[:len(p)-len(p)%frameSize]
}
