package validator

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"emochain/core/biometric"
)

var (
	ErrUnknownValidator   = errors.New("validator not registered")
	ErrDuplicateValidator = errors.New("validator already registered")
)

// Registry owns the validator set for one node. It is an explicit value
// passed into the selector and block assembly, never a package global.
// Reading ingestion and height selection share the write lock, so two
// concurrent selection calls for the same height always agree.
type Registry struct {
	mu         sync.RWMutex
	gate       biometric.Gate
	validators map[string]*Validator // keyed by validator ID
	byAddress  map[string]string     // address -> ID
}

// NewRegistry creates an empty registry using the default biometric gate.
func NewRegistry() *Registry {
	return NewRegistryWithGate(biometric.DefaultGate())
}

// NewRegistryWithGate creates a registry with a custom acceptance policy.
func NewRegistryWithGate(gate biometric.Gate) *Registry {
	return &Registry{
		gate:       gate,
		validators: make(map[string]*Validator),
		byAddress:  make(map[string]string),
	}
}

// Register adds a validator. IDs and addresses must both be unique.
func (r *Registry) Register(v *Validator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.validators[v.ID]; exists {
		return fmt.Errorf("%w: id %s", ErrDuplicateValidator, v.ID)
	}
	if _, exists := r.byAddress[v.Address]; exists {
		return fmt.Errorf("%w: address %s", ErrDuplicateValidator, v.Address)
	}
	r.validators[v.ID] = v
	r.byAddress[v.Address] = v.ID
	return nil
}

// SubmitReading runs the authenticity gate and, when it passes, re-derives
// the validator's score from the new reading. A rejected reading clears the
// reading-valid flag, excluding the validator from selection until a
// genuine reading arrives, and returns the typed rejection reason.
func (r *Registry) SubmitReading(validatorID string, reading biometric.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[validatorID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownValidator, validatorID)
	}
	if err := r.gate.Check(reading, time.Now()); err != nil {
		v.ReadingValid = false
		return err
	}
	v.applyReading(reading)
	return nil
}

// SetActive toggles a validator in or out of the set. Validators are never
// removed; prolonged non-participation is handled by deactivation.
func (r *Registry) SetActive(validatorID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[validatorID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownValidator, validatorID)
	}
	v.Active = active
	return nil
}

// ExpireStaleReadings clears the reading-valid flag on validators whose
// last reading fell outside the freshness window. Called by the production
// loop before each selection so staleness is materialized into registry
// state and selection itself stays clock-free.
func (r *Registry) ExpireStaleReadings(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	expired := 0
	for _, v := range r.validators {
		if v.ReadingValid && v.LastReading != nil {
			if err := r.gate.Check(*v.LastReading, now); err != nil {
				v.ReadingValid = false
				expired++
			}
		}
	}
	return expired
}

// Get returns a copy of one validator.
func (r *Registry) Get(validatorID string) (Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[validatorID]
	if !ok {
		return Validator{}, false
	}
	return *v, true
}

// GetByAddress returns a copy of the validator controlling an address.
func (r *Registry) GetByAddress(address string) (Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAddress[address]
	if !ok {
		return Validator{}, false
	}
	return *r.validators[id], true
}

// Snapshot returns copies of all validators in address order.
func (r *Registry) Snapshot() []Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Validator, 0, len(r.validators))
	for _, v := range r.validators {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// eligibleLocked collects eligible validators in address order. Address
// order fixes the cumulative weight table, which the deterministic draw
// depends on. Caller holds at least the read lock.
func (r *Registry) eligibleLocked() []*Validator {
	eligible := make([]*Validator, 0, len(r.validators))
	for _, v := range r.validators {
		if v.Eligible() {
			eligible = append(eligible, v)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Address < eligible[j].Address })
	return eligible
}

// ConsensusScore is the network agreement metric attached to blocks: the
// stake-weighted mean of eligible validators' emotional scores, 0 when the
// eligible set is empty.
func (r *Registry) ConsensusScore() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	eligible := r.eligibleLocked()
	if len(eligible) == 0 {
		return 0
	}
	scores := make([]float64, len(eligible))
	weights := make([]float64, len(eligible))
	var staked bool
	for i, v := range eligible {
		scores[i] = v.EmotionalScore
		weights[i] = float64(v.Stake)
		if v.Stake > 0 {
			staked = true
		}
	}
	if !staked {
		weights = nil // fall back to the plain mean on an unstaked set
	}
	return stat.Mean(scores, weights)
}

// ScoreSpread is the standard deviation of eligible scores, reported by
// the status API as a dispersion signal.
func (r *Registry) ScoreSpread() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	eligible := r.eligibleLocked()
	if len(eligible) < 2 {
		return 0
	}
	scores := make([]float64, len(eligible))
	for i, v := range eligible {
		scores[i] = v.EmotionalScore
	}
	return stat.StdDev(scores, nil)
}

// Len reports the registered validator count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.validators)
}
