// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Provides the Stream interface and MP3, FLAC and WAV implementations
// Package decode turns encoded audio into interleaved 16-bit PCM.
//
// Supports: MP3 (go-mp3), FLAC (mewkiz/flac), WAV (beep)
//
// Decoders read from any io.Reader; when the reader is also an io.Seeker
// the stream reports its length and supports frame-accurate Seek.
//
// Example:
//
//	stream, err := decode.New(decode.CodecFromPath(path), file)
//	n, err := stream.Read(pcm)
package decode
