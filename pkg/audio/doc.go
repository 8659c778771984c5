// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and the 16-bit sample conversion helpers
// Package audio provides the PCM format exchanged between the playback
// engine and the audio sinks.
//
// Every sink in this module plays interleaved signed 16-bit little-endian
// PCM, so decoders narrow their native samples with ScaleToInt16 or
// FloatToInt16 before handing buffers on.
//
// Example:
//
//	format := audio.Format{
//	    SampleRate: 44100,
//	    Channels:   2,
//	    BitDepth:   audio.OutputBitDepth,
//	}
//
//	chunk := format.BytesFor(100 * time.Millisecond)
package audio
