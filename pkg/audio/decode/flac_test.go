// ABOUTME: Tests for FLAC decoder
// ABOUTME: Encodes a 24-bit stream in memory and checks conversion, buffering and seeking
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const (
	flacRate      = 8000
	flacBlockSize = 256
	flacFrames    = 4
)

// makeFLAC encodes a 24-bit stereo stream whose frame i holds i<<8 on the
// left channel and -(i<<8) on the right, so each 16-bit frame reads back as i, -i
func makeFLAC(t *testing.T) []byte {
	t.Helper()

	total := flacBlockSize * flacFrames
	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    flacRate,
		NChannels:     2,
		BitsPerSample: 24,
		NSamples:      uint64(total),
	}

	var buf bytes.Buffer
	enc, err := flac.NewEncoder(&buf, info)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	for offset := 0; offset < total; offset += flacBlockSize {
		left := make([]int32, flacBlockSize)
		right := make([]int32, flacBlockSize)
		for i := range left {
			left[i] = int32(offset+i) << 8
			right[i] = -left[i]
		}

		f := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         flacBlockSize,
				SampleRate:        flacRate,
				Channels:          frame.ChannelsLR,
				BitsPerSample:     24,
			},
			Subframes: []*frame.Subframe{
				{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: left, NSamples: flacBlockSize},
				{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: right, NSamples: flacBlockSize},
			},
		}
		if err := enc.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("encoder Close failed: %v", err)
	}
	return buf.Bytes()
}

func frameAt(pcm []byte, i int) (int16, int16) {
	return int16(binary.LittleEndian.Uint16(pcm[i*4:])), int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
}

func TestNewFLAC(t *testing.T) {
	stream, err := NewFLAC(bytes.NewReader(makeFLAC(t)))
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	defer stream.Close()

	format := stream.Format()
	if format.SampleRate != flacRate || format.Channels != 2 || format.BitDepth != 16 {
		t.Errorf("unexpected format: %s", format)
	}
	if got := stream.Length(); got != flacBlockSize*flacFrames {
		t.Errorf("expected length %d, got %d", flacBlockSize*flacFrames, got)
	}
	if !stream.Seekable() {
		t.Error("expected a seekable stream over bytes.Reader")
	}
}

func TestFLACDecode(t *testing.T) {
	stream, err := NewFLAC(bytes.NewReader(makeFLAC(t)))
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	defer stream.Close()

	// 99 bytes is not frame aligned and splits every parsed block across reads
	var pcm []byte
	buf := make([]byte, 99)
	for {
		n, err := stream.Read(buf)
		if n%4 != 0 {
			t.Fatalf("read %d bytes, want whole frames", n)
		}
		pcm = append(pcm, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
	}

	if len(pcm) != flacBlockSize*flacFrames*4 {
		t.Fatalf("expected %d PCM bytes, got %d", flacBlockSize*flacFrames*4, len(pcm))
	}
	for _, i := range []int{0, 1, 255, 256, 700, 1023} {
		left, right := frameAt(pcm, i)
		if int(left) != i || int(right) != -i {
			t.Errorf("frame %d = (%d, %d), want (%d, %d)", i, left, right, i, -i)
		}
	}
}

func TestFLACSeek(t *testing.T) {
	stream, err := NewFLAC(bytes.NewReader(makeFLAC(t)))
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	defer stream.Close()

	// Leave most of the first block pending before seeking
	buf := make([]byte, 8)
	if _, err := stream.Read(buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if err := stream.Seek(2 * flacBlockSize); err != nil {
		t.Fatalf("seek failed: %v", err)
	}

	buf = make([]byte, 16)
	n, err := stream.Read(buf)
	if err != nil || n != 16 {
		t.Fatalf("read after seek = %d, %v", n, err)
	}
	if left, _ := frameAt(buf, 0); int(left) != 2*flacBlockSize {
		t.Errorf("first frame after seek = %d, want %d", left, 2*flacBlockSize)
	}

	if err := stream.Seek(0); err != nil {
		t.Fatalf("seek to start failed: %v", err)
	}
	if _, err := stream.Read(buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if left, _ := frameAt(buf, 1); left != 1 {
		t.Errorf("second frame after rewind = %d, want 1", left)
	}
}

func TestFLACUnseekable(t *testing.T) {
	stream, err := NewFLAC(io.MultiReader(bytes.NewReader(makeFLAC(t))))
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	defer stream.Close()

	if stream.Seekable() {
		t.Error("expected an unseekable stream")
	}
	if err := stream.Seek(0); !errors.Is(err, ErrNotSeekable) {
		t.Errorf("expected ErrNotSeekable, got %v", err)
	}
	if got := stream.Length(); got != flacBlockSize*flacFrames {
		t.Errorf("expected length from STREAMINFO, got %d", got)
	}
}

func TestNewFLACRejectsGarbage(t *testing.T) {
	if _, err := NewFLAC(bytes.NewReader([]byte("not a flac stream"))); err == nil {
		t.Fatal("expected error for invalid input, got nil")
	}
}
