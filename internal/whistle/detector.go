// internal/whistle/detector.go
package whistle

import (
	"errors"
	"fmt"

	"github.com/ColonelBlimp/whistlecounter/internal/audio"
	"github.com/ColonelBlimp/whistlecounter/internal/dsp"
)

var (
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidBlockSize indicates block size must be positive
	ErrInvalidBlockSize = errors.New("block size must be positive")
)

// Config holds the full detector configuration, fixed at startup.
// All values should come from the application config file.
type Config struct {
	SampleRate int
	BlockSize  int

	Rise        float64
	Fall        float64
	Hold        float64
	MinDuration float64
	MaxDuration float64

	Alpha     float64
	Warmup    float64
	SeedFloor float64
}

// Detector orchestrates energy estimation, the noise floor and the state
// machine for each incoming block, and converts the capture layer's
// timestamps into an elapsed-time clock. All mutable state is owned here;
// ProcessBlock must be driven by exactly one goroutine at a time, in block
// arrival order.
type Detector struct {
	config  Config
	floor   *dsp.FloorTracker
	machine *Machine

	origin    float64
	originSet bool

	sink EventSink
}

// New creates a detector, validating the configuration before any block is
// processed. Construction fails on an inconsistent hysteresis band.
func New(cfg Config) (*Detector, error) {
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.BlockSize <= 0 {
		return nil, ErrInvalidBlockSize
	}

	floor, err := dsp.NewFloorTracker(dsp.FloorConfig{
		Alpha:     cfg.Alpha,
		Warmup:    cfg.Warmup,
		SeedFloor: cfg.SeedFloor,
	})
	if err != nil {
		return nil, fmt.Errorf("noise floor: %w", err)
	}

	machine, err := NewMachine(MachineConfig{
		Rise:        cfg.Rise,
		Fall:        cfg.Fall,
		Hold:        cfg.Hold,
		MinDuration: cfg.MinDuration,
		MaxDuration: cfg.MaxDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("state machine: %w", err)
	}

	return &Detector{
		config:  cfg,
		floor:   floor,
		machine: machine,
	}, nil
}

// SetSink registers an event sink notified of whistle starts and closes.
// The sink is called from whatever goroutine drives ProcessBlock and must
// not block it. Set before processing begins.
func (d *Detector) SetSink(sink EventSink) {
	d.sink = sink
}

// ProcessBlock runs one block through the pipeline: energy, floor update,
// then the state machine once warm-up has passed. The floor is updated
// before the threshold comparison on every block, including while a whistle
// is open, so a long whistle adapts its own baseline upward; that behavior
// is part of the contract. Returns the closed whistle's event, if any.
// An empty block is a defect in the capture layer and is surfaced, not
// skipped, since skipping would desynchronize the elapsed-time clock.
func (d *Detector) ProcessBlock(block audio.Block) (*Event, error) {
	energy, err := dsp.RMS(block.Samples)
	if err != nil {
		return nil, fmt.Errorf("block at %.3fs: %w", block.Timestamp, err)
	}

	if !d.originSet {
		d.origin = block.Timestamp
		d.originSet = true
	}
	now := block.Timestamp - d.origin

	floor, ready := d.floor.Observe(energy, now)
	if !ready {
		return nil, nil
	}

	opened, ev := d.machine.Step(energy, floor, now)
	if opened && d.sink != nil {
		d.sink.WhistleStarted(now)
	}
	if ev != nil && d.sink != nil {
		d.sink.WhistleEnded(*ev)
	}
	return ev, nil
}

// Floor returns the current noise floor estimate.
func (d *Detector) Floor() float64 {
	return d.floor.Floor()
}

// InWhistle reports whether a whistle is currently open.
func (d *Detector) InWhistle() bool {
	return d.machine.InWhistle()
}

// Count returns the running accepted-whistle total.
func (d *Detector) Count() int {
	return d.machine.Count()
}

// Config returns the current configuration
func (d *Detector) Config() Config {
	return d.config
}
