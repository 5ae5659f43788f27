package biometric

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuthenticityRejected is the taxonomy class for every reading
// rejection. The concrete reasons below wrap it, so callers can either
// errors.Is against the class or inspect the specific cause.
var (
	ErrAuthenticityRejected = errors.New("biometric reading rejected")

	ErrAuthenticityLow = fmt.Errorf("%w: device confidence below threshold", ErrAuthenticityRejected)
	ErrStaleReading    = fmt.Errorf("%w: reading outside freshness window", ErrAuthenticityRejected)
	ErrFutureReading   = fmt.Errorf("%w: reading timestamp ahead of node clock", ErrAuthenticityRejected)
	ErrCorrelationVeto = fmt.Errorf("%w: implausible heart-rate/stress correlation", ErrAuthenticityRejected)
)

const (
	// MinAuthenticity is the floor for the device confidence score.
	MinAuthenticity = 0.70

	// DefaultFreshnessWindow bounds how old a reading may be.
	DefaultFreshnessWindow = 5 * time.Minute

	// DefaultClockSkew tolerates device clocks running ahead of ours.
	DefaultClockSkew = 2 * time.Minute

	// A heart rate above SpoofHeartRateFloor paired with stress below
	// SpoofStressCeiling is treated as a replay/spoof signature. This
	// veto fires regardless of the nominal authenticity value.
	SpoofHeartRateFloor = 150.0
	SpoofStressCeiling  = 10.0
)

// Gate validates readings against plausibility and staleness rules. A Gate
// is an explicit value rather than package state so the registry owns its
// own acceptance policy.
type Gate struct {
	FreshnessWindow time.Duration
	ClockSkew       time.Duration
}

// DefaultGate returns a Gate with the protocol default windows.
func DefaultGate() Gate {
	return Gate{
		FreshnessWindow: DefaultFreshnessWindow,
		ClockSkew:       DefaultClockSkew,
	}
}

// Check verifies one reading at the given evaluation time. It returns nil
// for a genuine reading or the typed rejection reason. The correlation veto
// is checked first: it overrides authenticity and freshness, which are
// necessary but not sufficient on their own.
func (g Gate) Check(r Reading, now time.Time) error {
	if r.HeartRate > SpoofHeartRateFloor && r.StressLevel < SpoofStressCeiling {
		return ErrCorrelationVeto
	}
	if r.Authenticity < MinAuthenticity {
		return ErrAuthenticityLow
	}
	age := now.UnixMilli() - r.Timestamp
	if age > g.FreshnessWindow.Milliseconds() {
		return ErrStaleReading
	}
	if -age > g.ClockSkew.Milliseconds() {
		return ErrFutureReading
	}
	return nil
}

// VerifyReading checks a reading against the default gate and the current
// wall clock. Transaction attestations go through this path.
func VerifyReading(r Reading) error {
	return DefaultGate().Check(r, time.Now())
}

// IsGenuine is the boolean convenience wrapper around VerifyReading.
func IsGenuine(r Reading) bool {
	return VerifyReading(r) == nil
}
