// ABOUTME: Tests for audio types
// ABOUTME: Tests format arithmetic and sample conversion functions
package audio

import (
	"testing"
	"time"
)

func TestFormatFrameSize(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		expected int
	}{
		{"stereo 16", Format{SampleRate: 44100, Channels: 2, BitDepth: 16}, 4},
		{"mono 16", Format{SampleRate: 8000, Channels: 1, BitDepth: 16}, 2},
		{"stereo 24", Format{SampleRate: 96000, Channels: 2, BitDepth: 24}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.FrameSize(); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestFormatDurations(t *testing.T) {
	f := Format{SampleRate: 48000, Channels: 2, BitDepth: 16}

	if got := f.BytesFor(time.Second); got != 48000*4 {
		t.Errorf("expected %d bytes for one second, got %d", 48000*4, got)
	}

	if got := f.DurationOf(48000 * 4); got != time.Second {
		t.Errorf("expected 1s, got %v", got)
	}

	if got := f.FramesFor(10 * time.Second); got != 480000 {
		t.Errorf("expected 480000 frames, got %d", got)
	}

	if got := f.DurationOfFrames(24000); got != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", got)
	}
}

func TestFormatInvalid(t *testing.T) {
	var f Format
	if f.Valid() {
		t.Fatal("zero format should be invalid")
	}
	if f.BytesFor(time.Second) != 0 {
		t.Error("invalid format should map to zero bytes")
	}
	if f.DurationOf(1024) != 0 {
		t.Error("invalid format should map to zero duration")
	}
}

func TestScaleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		bitDepth int
		expected int16
	}{
		{"16bit passthrough", -1234, 16, -1234},
		{"24bit max", 8388607, 24, 32767},
		{"24bit negative", -8388608, 24, -32768},
		{"8bit widen", 100, 8, 100 << 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScaleToInt16(tt.input, tt.bitDepth); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestFloatToInt16(t *testing.T) {
	tests := []struct {
		input    float64
		expected int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{2, 32767},
		{-3, -32767},
	}

	for _, tt := range tests {
		if got := FloatToInt16(tt.input); got != tt.expected {
			t.Errorf("FloatToInt16(%v): expected %d, got %d", tt.input, tt.expected, got)
		}
	}
}

func TestPutInt16(t *testing.T) {
	b := make([]byte, 2)
	PutInt16(b, -2)
	if b[0] != 0xFE || b[1] != 0xFF {
		t.Errorf("expected little-endian 0xFFFE, got %#x %#x", b[0], b[1])
	}
}
