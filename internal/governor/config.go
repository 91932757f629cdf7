// internal/governor/config.go
//
// Playback timing configuration. These are tuning parameters, not
// correctness invariants: out-of-range values are clamped to the nearest
// valid value, never raised as errors.

package governor

import "time"

// Speed bounds for the playback multiplier.
const (
	MinSpeed = 0.1
	MaxSpeed = 10.0
)

// Defaults for unset or non-positive fields.
const (
	DefaultPhaseDuration  = 5 * time.Second
	DefaultEventsPerPhase = 5
	DefaultMinEventDelay  = 50 * time.Millisecond
	DefaultMaxEventDelay  = 2 * time.Second
)

// Config shapes the release cadence.
type Config struct {
	// PhaseDuration is the wall-time budget for one phase at speed 1.0.
	PhaseDuration time.Duration `yaml:"phase_duration"`
	// EventsPerPhase is the target count used to interpolate the
	// inter-event delay; the actual event count per phase may differ.
	EventsPerPhase int `yaml:"events_per_phase"`
	// Speed is the playback multiplier, clamped to [MinSpeed, MaxSpeed].
	Speed float64 `yaml:"speed"`
	// MinEventDelay and MaxEventDelay bound the interpolated interval.
	MinEventDelay time.Duration `yaml:"min_event_delay"`
	MaxEventDelay time.Duration `yaml:"max_event_delay"`
}

// Normalized returns the config with every field clamped into its valid
// range.
func (c Config) Normalized() Config {
	if c.PhaseDuration <= 0 {
		c.PhaseDuration = DefaultPhaseDuration
	}
	if c.EventsPerPhase <= 0 {
		c.EventsPerPhase = DefaultEventsPerPhase
	}
	if c.Speed == 0 {
		// Zero means unset, not "slowest".
		c.Speed = 1.0
	}
	c.Speed = ClampSpeed(c.Speed)
	if c.MinEventDelay < 0 {
		c.MinEventDelay = DefaultMinEventDelay
	}
	if c.MaxEventDelay <= 0 {
		c.MaxEventDelay = DefaultMaxEventDelay
	}
	if c.MaxEventDelay < c.MinEventDelay {
		c.MaxEventDelay = c.MinEventDelay
	}
	return c
}

// ClampSpeed forces a multiplier to the nearest value in
// [MinSpeed, MaxSpeed].
func ClampSpeed(speed float64) float64 {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// interval computes the inter-event delay for the current speed:
// clamp(phase_duration / speed / max(1, events_per_phase), min, max).
func (c Config) interval(speed float64) time.Duration {
	per := time.Duration(float64(c.PhaseDuration) / speed / float64(max(1, c.EventsPerPhase)))
	if per < c.MinEventDelay {
		return c.MinEventDelay
	}
	if per > c.MaxEventDelay {
		return c.MaxEventDelay
	}
	return per
}

// phaseBudget is the total wall-time budget for one phase at the given
// speed.
func (c Config) phaseBudget(speed float64) time.Duration {
	return time.Duration(float64(c.PhaseDuration) / speed)
}
