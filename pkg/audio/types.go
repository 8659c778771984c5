// ABOUTME: Audio type definitions
// ABOUTME: Defines the negotiated output format and 16-bit sample helpers
package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// OutputBitDepth is the only sample width the sinks accept
const OutputBitDepth = 16

// Format describes a PCM stream as negotiated between engine and sink
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Valid reports whether the format can be used to open a device
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && f.BitDepth > 0 && f.BitDepth%8 == 0
}

// FrameSize returns bytes per interleaved frame
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

// BytesFor returns the number of bytes covering d of audio, rounded down to a whole frame
func (f Format) BytesFor(d time.Duration) int {
	if !f.Valid() {
		return 0
	}
	frames := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return int(frames) * f.FrameSize()
}

// DurationOf returns the playing time of n bytes
func (f Format) DurationOf(n int) time.Duration {
	if !f.Valid() {
		return 0
	}
	frames := int64(n / f.FrameSize())
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// FramesFor converts a duration to a frame count
func (f Format) FramesFor(d time.Duration) int64 {
	if f.SampleRate <= 0 {
		return 0
	}
	return int64(d) * int64(f.SampleRate) / int64(time.Second)
}

// DurationOfFrames converts a frame count to a duration
func (f Format) DurationOfFrames(frames int64) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz %dch %dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// ScaleToInt16 narrows or widens a signed sample of the given bit depth to 16 bits
func ScaleToInt16(sample int32, bitDepth int) int16 {
	switch {
	case bitDepth > 16:
		return int16(sample >> (bitDepth - 16))
	case bitDepth < 16:
		return int16(sample << (16 - bitDepth))
	default:
		return int16(sample)
	}
}

// FloatToInt16 converts a [-1, 1] float sample to int16 with clipping
func FloatToInt16(sample float64) int16 {
	if sample > 1 {
		sample = 1
	} else if sample < -1 {
		sample = -1
	}
	return int16(sample * 32767)
}

// PutInt16 writes a little-endian sample at b[0:2]
func PutInt16(b []byte, sample int16) {
	binary.LittleEndian.PutUint16(b, uint16(sample))
}
