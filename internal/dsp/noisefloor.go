// internal/dsp/noisefloor.go
package dsp

import "errors"

var (
	// ErrInvalidAlpha indicates the smoothing factor must be in (0, 1]
	ErrInvalidAlpha = errors.New("alpha must be between 0 (exclusive) and 1")
	// ErrInvalidWarmup indicates the warm-up duration must be non-negative
	ErrInvalidWarmup = errors.New("warmup seconds must be non-negative")
	// ErrInvalidSeedFloor indicates the fixed seed floor must be non-negative
	ErrInvalidSeedFloor = errors.New("seed floor must be non-negative")
)

// FloorConfig holds configuration for the adaptive noise floor.
// All values should come from the application config file.
type FloorConfig struct {
	// Alpha is the exponential smoothing factor (from config: alpha).
	// Close to 0 gives a slow, noise-resistant floor; larger values track
	// faster but chase a long whistle's own energy upward.
	Alpha float64
	// Warmup is the initial detection-suppressed period in seconds,
	// measured from the first block (from config: warmup_seconds).
	// The floor adapts during warm-up; only its use is gated.
	Warmup float64
	// SeedFloor, when positive, fixes the initial floor instead of seeding
	// it from the first observed block (from config: seed_floor).
	SeedFloor float64
}

// FloorTracker maintains an exponentially smoothed estimate of ambient
// (non-whistle) energy. Once seeded the floor is strictly positive and is
// updated on every observed block, including while a whistle is open.
type FloorTracker struct {
	config FloorConfig
	floor  float64
	seeded bool
}

// NewFloorTracker creates a noise floor tracker with the given configuration.
func NewFloorTracker(cfg FloorConfig) (*FloorTracker, error) {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		return nil, ErrInvalidAlpha
	}
	if cfg.Warmup < 0 {
		return nil, ErrInvalidWarmup
	}
	if cfg.SeedFloor < 0 {
		return nil, ErrInvalidSeedFloor
	}

	t := &FloorTracker{config: cfg}
	if cfg.SeedFloor > 0 {
		t.floor = cfg.SeedFloor
		t.seeded = true
	}
	return t, nil
}

// Observe feeds one block's energy into the tracker. now is the elapsed
// time in seconds since the first block. It returns the floor as updated
// for this block and whether detection may use it: false while the block
// seeds the floor and during the warm-up window.
func (t *FloorTracker) Observe(energy, now float64) (floor float64, ready bool) {
	if !t.seeded {
		// First ever block seeds the floor and is not used for detection.
		t.floor = energy
		t.seeded = true
		return t.floor, false
	}

	t.floor = (1-t.config.Alpha)*t.floor + t.config.Alpha*energy
	return t.floor, now >= t.config.Warmup
}

// Floor returns the current floor estimate (zero before seeding).
func (t *FloorTracker) Floor() float64 {
	return t.floor
}

// Seeded reports whether the floor has been seeded yet.
func (t *FloorTracker) Seeded() bool {
	return t.seeded
}

// Config returns the current configuration
func (t *FloorTracker) Config() FloorConfig {
	return t.config
}
