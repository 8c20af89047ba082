// internal/audio/capture.go
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized = errors.New("audio capture not initialized")
	ErrAlreadyRunning = errors.New("audio capture already running")
	ErrNotRunning     = errors.New("audio capture not running")
)

// Block is one fixed-size step of mono samples plus its position on the
// audio clock. Timestamp is the time of the block's first sample in seconds
// since capture started, derived from a running frame counter, so it is
// monotonically non-decreasing across blocks. The detector borrows a Block
// read-only for one processing step.
type Block struct {
	Samples   []float32
	Timestamp float64
}

// Config holds audio capture configuration
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 16000
	Channels    uint32 // 1 for mono
	BlockSize   uint32 // samples per emitted block
}

// DefaultConfig returns sensible defaults for whistle counting
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  16000,
		Channels:    1,
		BlockSize:   1024,
	}
}

// BlockCallback is called directly from the audio thread with each complete
// block. Use for low-latency processing. Must be non-blocking and fast.
type BlockCallback func(block Block)

// Capture handles real-time audio sampling from a capture device and
// assembles the raw callback stream into fixed-size timestamped blocks.
type Capture struct {
	config   Config
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	running  bool
	mu       sync.RWMutex
	callback BlockCallback

	// Block assembly state, touched only on the audio thread
	pending []float32
	frames  uint64

	// Anomaly counters (read from other goroutines for reporting)
	dropped  atomic.Uint64 // blocks discarded because Blocks was full
	overruns atomic.Uint64 // empty deliveries from the backend

	closed bool

	// Output channel for assembled blocks
	Blocks chan Block
}

// New creates a new audio capture instance
func New(cfg Config) *Capture {
	return &Capture{
		config:  cfg,
		pending: make([]float32, 0, cfg.BlockSize*2),
		Blocks:  make(chan Block, 64),
	}
}

// SetCallback sets a callback for real-time block processing.
// The callback is invoked directly from the audio thread - it must be
// non-blocking and fast. Set before calling Start().
func (c *Capture) SetCallback(cb BlockCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
}

// Init initializes the audio backend
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctxConfig := malgo.ContextConfig{}
	ctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx

	return nil
}

// ListDevices returns available capture devices
func (c *Capture) ListDevices() ([]malgo.DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	return infos, nil
}

// Start begins audio capture
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if c.ctx == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.mu.Unlock()

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Capture,
		SampleRate:         c.config.SampleRate,
		PeriodSizeInFrames: c.config.BlockSize,
		Capture: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: c.config.Channels,
		},
	}

	// Select specific device if requested
	var deviceID *malgo.DeviceID
	if c.config.DeviceIndex >= 0 {
		devices, err := c.ListDevices()
		if err != nil {
			return err
		}
		if c.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("device index %d out of range (have %d devices)",
				c.config.DeviceIndex, len(devices))
		}
		deviceID = &devices[c.config.DeviceIndex].ID
	}

	// Callback receives audio data
	onRecvFrames := func(outputSamples, inputSamples []byte, frameCount uint32) {
		if len(inputSamples) == 0 {
			// Backend delivered nothing; surface as an overrun, keep going
			c.overruns.Add(1)
			return
		}
		c.ingest(bytesToFloat32(inputSamples))
	}

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: onRecvFrames,
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}

	// Set device ID if specified
	if deviceID != nil {
		deviceConfig.Capture.DeviceID = deviceID.Pointer()
		// Reinitialize with specific device
		device.Uninit()
		device, err = malgo.InitDevice(c.ctx.Context, deviceConfig, deviceCallbacks)
		if err != nil {
			return fmt.Errorf("init device with ID: %w", err)
		}
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.running = true
	c.mu.Unlock()

	// Wait for context cancellation
	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	return nil
}

// ingest assembles raw samples into fixed-size blocks and hands each one to
// the callback and the Blocks channel. Runs only on the audio thread; blocks
// are timestamped from the running frame counter so a dropped block leaves a
// visible gap rather than shifting later timestamps.
func (c *Capture) ingest(samples []float32) {
	c.pending = append(c.pending, samples...)

	size := int(c.config.BlockSize)
	for len(c.pending) >= size {
		block := Block{
			Samples:   append([]float32(nil), c.pending[:size]...),
			Timestamp: float64(c.frames) / float64(c.config.SampleRate),
		}
		c.frames += uint64(size)

		copy(c.pending, c.pending[size:])
		c.pending = c.pending[:len(c.pending)-size]

		c.mu.RLock()
		cb := c.callback
		c.mu.RUnlock()
		if cb != nil {
			cb(block)
		}

		// Non-blocking send to prevent callback blocking
		select {
		case c.Blocks <- block:
		default:
			// Consumer too slow; count the gap instead of stalling
			c.dropped.Add(1)
		}
	}
}

// Dropped returns the number of blocks discarded because the consumer
// fell behind.
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// Overruns returns the number of empty deliveries reported by the backend.
func (c *Capture) Overruns() uint64 {
	return c.overruns.Load()
}

// Stop stops audio capture
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrNotRunning
	}

	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}

	c.running = false
	return nil
}

// Close releases all audio resources. Safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.running && c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
		c.running = false
	}

	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}

	close(c.Blocks)
	return nil
}

// IsRunning returns true if capture is active
func (c *Capture) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// bytesToFloat32 converts raw bytes to float32 samples
func bytesToFloat32(data []byte) []float32 {
	numSamples := len(data) / 4
	samples := make([]float32, numSamples)

	for i := 0; i < numSamples; i++ {
		offset := i * 4
		// Little-endian float32
		bits := uint32(data[offset]) |
			uint32(data[offset+1])<<8 |
			uint32(data[offset+2])<<16 |
			uint32(data[offset+3])<<24
		samples[i] = float32frombits(bits)
	}

	return samples
}

// float32frombits converts IEEE 754 binary representation to float32
func float32frombits(b uint32) float32 {
	return *(*float32)(unsafe.Pointer(&b))
}
