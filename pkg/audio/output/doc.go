// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides Output and Backend interfaces with malgo, oto and null sinks
// Package output provides audio playback sinks.
//
// A Backend stands for the process-wide audio library (a miniaudio context,
// an oto context, or nothing at all for the null backend). Sinks are obtained
// from the backend, opened with a negotiated format, fed raw 16-bit PCM and
// closed again. Shutdown releases the library itself.
//
// Example:
//
//	backend, err := output.NewBackend(output.BackendMalgo)
//	out := backend.NewOutput()
//	err = out.Open(audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16})
//	err = out.Write(pcm)
//	err = out.Close()
//	err = backend.Shutdown()
package output
