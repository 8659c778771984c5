// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo, one device per opened sink on a shared context
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/aptest/pkg/audio"
	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"
)

// MalgoBackend owns the miniaudio context shared by all malgo sinks
type MalgoBackend struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
}

// NewMalgoBackend creates a backend; the context is initialized on first open
func NewMalgoBackend() *MalgoBackend {
	return &MalgoBackend{}
}

// Name returns the backend name
func (b *MalgoBackend) Name() string { return BackendMalgo }

// NewOutput returns an unopened malgo sink
func (b *MalgoBackend) NewOutput() Output {
	return &Malgo{backend: b}
}

func (b *MalgoBackend) context() (malgo.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return malgo.Context{}, fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		b.malgoCtx = ctx
	}
	return b.malgoCtx.Context, nil
}

// Shutdown uninitializes the miniaudio context
func (b *MalgoBackend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.malgoCtx == nil {
		return nil
	}
	if err := b.malgoCtx.Uninit(); err != nil {
		logrus.Warnf("malgo context uninit error: %v", err)
	}
	b.malgoCtx.Free()
	b.malgoCtx = nil
	return nil
}

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	backend *MalgoBackend
	device  *malgo.Device
	format  audio.Format

	// Ring buffer drained by the device callback
	ringBuffer *RingBuffer

	mu     sync.Mutex
	space  *sync.Cond
	closed bool
}

// RingBuffer provides a circular byte buffer for PCM data
type RingBuffer struct {
	buffer   []byte
	readPos  int
	writePos int
	size     int
	count    int // Number of bytes currently in buffer
}

// NewRingBuffer creates a ring buffer with given capacity (in bytes)
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]byte, capacity),
		size:   capacity,
	}
}

// Write adds bytes to the ring buffer and returns how many fit
func (rb *RingBuffer) Write(data []byte) int {
	written := 0
	for written < len(data) && rb.count < rb.size {
		chunk := rb.size - rb.writePos
		if free := rb.size - rb.count; chunk > free {
			chunk = free
		}
		if rest := len(data) - written; chunk > rest {
			chunk = rest
		}
		copy(rb.buffer[rb.writePos:], data[written:written+chunk])
		rb.writePos = (rb.writePos + chunk) % rb.size
		rb.count += chunk
		written += chunk
	}
	return written
}

// Read fills out from the ring buffer, zero-filling on underrun
func (rb *RingBuffer) Read(out []byte) int {
	read := 0
	for read < len(out) && rb.count > 0 {
		chunk := rb.size - rb.readPos
		if chunk > rb.count {
			chunk = rb.count
		}
		if rest := len(out) - read; chunk > rest {
			chunk = rest
		}
		copy(out[read:], rb.buffer[rb.readPos:rb.readPos+chunk])
		rb.readPos = (rb.readPos + chunk) % rb.size
		rb.count -= chunk
		read += chunk
	}

	for i := read; i < len(out); i++ {
		out[i] = 0
	}
	return read
}

// Available returns the number of bytes available to read
func (rb *RingBuffer) Available() int {
	return rb.count
}

// Free returns the number of free bytes in the buffer
func (rb *RingBuffer) Free() int {
	return rb.size - rb.count
}

// Open initializes a playback device with the specified format
func (m *Malgo) Open(format audio.Format) error {
	if err := checkFormat(format); err != nil {
		return err
	}

	m.mu.Lock()
	if m.device != nil {
		m.mu.Unlock()
		return fmt.Errorf("malgo output already open (%s)", m.format)
	}

	// 500ms of buffered audio
	m.ringBuffer = NewRingBuffer(format.BytesFor(500 * time.Millisecond))
	m.space = sync.NewCond(&m.mu)
	m.closed = false
	m.format = format
	m.mu.Unlock()

	ctx, err := m.backend.context()
	if err != nil {
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		m.dataCallback(pOutputSample, frameCount)
	}

	// The device thread calls back into m, so m.mu must not be held here
	device, err := malgo.InitDevice(ctx, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.mu.Lock()
	m.device = device
	m.mu.Unlock()

	logrus.Debugf("Audio output initialized: %s (malgo/S16)", format)

	return nil
}

// Write queues PCM bytes, waiting for the device to drain when the buffer is full
func (m *Malgo) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil || m.closed {
		return ErrNotOpen
	}

	for len(data) > 0 {
		n := m.ringBuffer.Write(data)
		data = data[n:]
		if len(data) == 0 {
			break
		}
		m.space.Wait()
		if m.closed {
			return ErrNotOpen
		}
	}
	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := int(frameCount) * m.format.FrameSize()
	if want > len(pOutput) {
		want = len(pOutput)
	}
	m.ringBuffer.Read(pOutput[:want])
	m.space.Broadcast()
}

// Close stops and uninitializes the device
func (m *Malgo) Close() error {
	m.mu.Lock()
	device := m.device
	m.device = nil
	m.closed = true
	if m.space != nil {
		m.space.Broadcast()
	}
	m.mu.Unlock()

	// Stop outside the lock: it waits for an in-flight data callback
	if device != nil {
		if err := device.Stop(); err != nil {
			logrus.Warnf("device stop error: %v", err)
		}
		device.Uninit()
	}
	return nil
}
