package swap

import (
	"fmt"
	"time"
)

// DefaultTimelock applies when the caller does not request a specific
// duration.
const DefaultTimelock = 24 * time.Hour

// TimelockPhase classifies an order's position relative to its expiry.
type TimelockPhase uint8

const (
	// PhaseLive means claims and fills are accepted.
	PhaseLive TimelockPhase = iota
	// PhaseGrace is the configurable window after nominal expiry during
	// which a valid secret still wins, tolerating clock skew and
	// propagation delay. Refunds are rejected inside it.
	PhaseGrace
	// PhaseExpired permits refunds only.
	PhaseExpired
)

func (p TimelockPhase) String() string {
	switch p {
	case PhaseLive:
		return "live"
	case PhaseGrace:
		return "grace"
	case PhaseExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ComputeExpiry returns the absolute unix expiry for a timelock starting at
// now. Sub-hour durations are supported; resolution is one second.
func ComputeExpiry(now int64, d time.Duration) (int64, error) {
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTimelock, d)
	}
	secs := int64(d / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return now + secs, nil
}

// ClassifyTimelock places now relative to the expiry and grace window. Pure
// computation over timestamps; it never fails.
func ClassifyTimelock(now, expiry int64, grace time.Duration) TimelockPhase {
	if now < expiry {
		return PhaseLive
	}
	if grace > 0 && now < expiry+int64(grace/time.Second) {
		return PhaseGrace
	}
	return PhaseExpired
}
