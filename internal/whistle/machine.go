// internal/whistle/machine.go
// Package whistle implements the energy-envelope whistle counter: the
// hysteresis state machine that opens and closes whistle events and the
// per-block detector that drives it.
package whistle

import "errors"

var (
	// ErrInvalidRise indicates the rise multiplier must be positive
	ErrInvalidRise = errors.New("rise multiplier must be positive")
	// ErrInvalidFall indicates the fall multiplier must be positive
	ErrInvalidFall = errors.New("fall multiplier must be positive")
	// ErrNoHysteresis indicates the fall multiplier must be smaller than the
	// rise multiplier; equal or inverted thresholds would oscillate
	ErrNoHysteresis = errors.New("fall multiplier must be smaller than rise multiplier")
	// ErrInvalidHold indicates the hold time must be non-negative
	ErrInvalidHold = errors.New("hold seconds must be non-negative")
	// ErrInvalidDurations indicates 0 <= min <= max is required
	ErrInvalidDurations = errors.New("duration bounds must satisfy 0 <= min <= max")
)

// Event is an immutable record of one closed whistle. Times are seconds
// since stream start. Accepted is true iff the duration fell inside the
// configured window; Count is the running accepted total at the moment of
// acceptance, 0 for rejected events.
type Event struct {
	Start    float64
	End      float64
	Duration float64
	Accepted bool
	Count    int
}

// MachineConfig holds the hysteresis and acceptance parameters.
// All values should come from the application config file.
type MachineConfig struct {
	// Rise is the energy/floor ratio that opens a whistle (from config: rise_multiplier)
	Rise float64
	// Fall is the energy/floor ratio below which a whistle begins to close
	// (from config: fall_multiplier)
	Fall float64
	// Hold is the continuous low-energy dwell in seconds required before a
	// whistle closes (from config: hold_seconds)
	Hold float64
	// MinDuration and MaxDuration bound accepted whistle lengths in seconds
	// (from config: min_duration, max_duration)
	MinDuration float64
	MaxDuration float64
}

// lowMark is an explicit optional timestamp marking when energy most
// recently dropped below the fall threshold. Zero is a valid timestamp, so
// presence is tracked separately rather than with a sentinel value.
type lowMark struct {
	at  float64
	set bool
}

// Machine is the two-state hysteresis whistle detector. It opens a whistle
// when energy rises well above the noise floor and closes it only after the
// energy has stayed below the lower threshold for the full hold time, so a
// momentary dip inside a long whistle never fragments it into two events.
// Not safe for concurrent use; the detector is the single writer.
type Machine struct {
	config MachineConfig

	inWhistle bool
	start     float64
	low       lowMark
	count     int
}

// NewMachine creates a whistle state machine with the given configuration.
func NewMachine(cfg MachineConfig) (*Machine, error) {
	if cfg.Rise <= 0 {
		return nil, ErrInvalidRise
	}
	if cfg.Fall <= 0 {
		return nil, ErrInvalidFall
	}
	if cfg.Fall >= cfg.Rise {
		return nil, ErrNoHysteresis
	}
	if cfg.Hold < 0 {
		return nil, ErrInvalidHold
	}
	if cfg.MinDuration < 0 || cfg.MaxDuration < cfg.MinDuration {
		return nil, ErrInvalidDurations
	}
	return &Machine{config: cfg}, nil
}

// Step advances the machine by one block. energy and floor are the block's
// energy and the floor as updated for the same block; now is seconds since
// stream start. It reports whether a whistle opened on this block and
// returns a non-nil Event when one closed.
func (m *Machine) Step(energy, floor, now float64) (opened bool, ev *Event) {
	if !m.inWhistle {
		if energy > m.config.Rise*floor {
			m.inWhistle = true
			m.start = now
			m.low = lowMark{}
			return true, nil
		}
		return false, nil
	}

	if energy < m.config.Fall*floor {
		// Candidate close; the dwell timer runs from the first low block
		if !m.low.set {
			m.low = lowMark{at: now, set: true}
		}
		if now-m.low.at >= m.config.Hold {
			return false, m.close(now)
		}
		return false, nil
	}

	// Energy bounced back: discard any progress toward closing so the
	// dwell restarts from scratch on the next qualifying dip
	m.low = lowMark{}
	return false, nil
}

// close ends the current session and builds its event record.
func (m *Machine) close(now float64) *Event {
	duration := now - m.start
	accepted := duration >= m.config.MinDuration && duration <= m.config.MaxDuration

	m.inWhistle = false
	m.low = lowMark{}

	ev := &Event{
		Start:    m.start,
		End:      now,
		Duration: duration,
		Accepted: accepted,
	}
	if accepted {
		m.count++
		ev.Count = m.count
	}
	return ev
}

// InWhistle reports whether a whistle is currently open.
func (m *Machine) InWhistle() bool {
	return m.inWhistle
}

// Count returns the running accepted-whistle total.
func (m *Machine) Count() int {
	return m.count
}

// Config returns the current configuration
func (m *Machine) Config() MachineConfig {
	return m.config
}
