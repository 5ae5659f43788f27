package biometric

import (
	"time"
)

// Reading is one biometric sample delivered by a validator's wearable or
// capture pipeline. Timestamps are epoch milliseconds, matching the device
// feed. Readings are consumed once per validation cycle and never persisted
// raw; only scores derived from them live in chain state.
type Reading struct {
	HeartRate    float64 `json:"heartRate"`    // beats per minute
	StressLevel  float64 `json:"stressLevel"`  // 0-100
	FocusLevel   float64 `json:"focusLevel"`   // 0-100
	Authenticity float64 `json:"authenticity"` // 0-1 device confidence
	Timestamp    int64   `json:"timestamp"`    // epoch ms
}

// NewReading stamps a reading with the current wall clock.
func NewReading(heartRate, stress, focus, authenticity float64) Reading {
	return Reading{
		HeartRate:    heartRate,
		StressLevel:  stress,
		FocusLevel:   focus,
		Authenticity: authenticity,
		Timestamp:    time.Now().UnixMilli(),
	}
}

// Time converts the epoch-ms timestamp back to a time.Time.
func (r Reading) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}
