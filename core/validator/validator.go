package validator

import (
	"github.com/google/uuid"

	"emochain/core/biometric"
)

// Eligibility cutoffs for block proposal. A validator needs both a passing
// emotional score and a high-confidence reading to enter the draw.
const (
	MinEligibilityScore        = 75.0
	MinEligibilityAuthenticity = 0.75
)

// Validator is one registered block producer. Validators are never deleted
// from the registry, only marked inactive. The raw reading is kept
// in-memory for the current cycle and never serialized; chain state sees
// only the derived scores.
type Validator struct {
	ID                 string  `json:"id"`
	Address            string  `json:"address"`
	EmotionalScore     float64 `json:"emotionalScore"`
	Authenticity       float64 `json:"authenticity"`
	Stake              int64   `json:"stake"`
	LastSelectedHeight int64   `json:"lastSelectedHeight"` // -1 until first selection
	Active             bool    `json:"active"`
	ReadingValid       bool    `json:"readingValid"`

	LastReading *biometric.Reading `json:"-"`
}

// NewValidator creates a validator, deriving its initial score from the
// optional seed reading. An empty id gets a fresh uuid.
func NewValidator(id, address string, stake int64, reading *biometric.Reading) *Validator {
	if id == "" {
		id = uuid.NewString()
	}
	v := &Validator{
		ID:                 id,
		Address:            address,
		Stake:              stake,
		LastSelectedHeight: -1,
		Active:             true,
	}
	if reading != nil {
		v.applyReading(*reading)
	}
	return v
}

func (v *Validator) applyReading(r biometric.Reading) {
	v.EmotionalScore = ComputeEmotionalScore(r)
	v.Authenticity = r.Authenticity
	v.LastReading = &r
	v.ReadingValid = true
}

// Eligible reports whether the validator may enter the proposer draw.
// Pure function of persisted validator state: the biometric gate runs at
// ingestion time, not here.
func (v *Validator) Eligible() bool {
	return v.Active &&
		v.ReadingValid &&
		v.EmotionalScore >= MinEligibilityScore &&
		v.Authenticity >= MinEligibilityAuthenticity
}

// ComputeEmotionalScore maps a reading to the 0-100 fitness score: equal
// 25% weights over the heart-rate band score, inverted stress, focus, and
// authenticity scaled to percent.
func ComputeEmotionalScore(r biometric.Reading) float64 {
	hr := heartRateScore(r.HeartRate)
	stress := 100 - r.StressLevel
	focus := r.FocusLevel
	auth := r.Authenticity * 100
	return 0.25*hr + 0.25*stress + 0.25*focus + 0.25*auth
}

// heartRateScore bands beats-per-minute into the fixed protocol scores.
// The band boundaries are consensus constants; changing them forks the
// chain.
func heartRateScore(bpm float64) float64 {
	switch {
	case bpm >= 60 && bpm <= 100:
		return 100
	case bpm >= 50 && bpm <= 120:
		return 80
	case bpm >= 40 && bpm <= 140:
		return 60
	default:
		return 30
	}
}
