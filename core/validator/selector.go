package validator

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"
)

// ErrNoEligibleValidators is returned when the draw has an empty pool:
// every validator is inactive, below the cutoffs, or gated out.
var ErrNoEligibleValidators = errors.New("no eligible validators for selection")

// selectionDomain separates the proposer draw from any other use of the
// block height as HMAC input.
var selectionDomain = []byte("emochain/poe-selection/v1")

// selectionDraw maps a block height to a reproducible 64-bit draw. Every
// node computes the identical value for the same height without
// communication; there is no other randomness source in consensus.
func selectionDraw(height uint64) uint64 {
	mac := hmac.New(sha256.New, selectionDomain)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	mac.Write(buf[:])
	digest := mac.Sum(nil)
	return binary.BigEndian.Uint64(digest[:8])
}

// SelectByEmotion picks the proposer for a block height with a
// deterministic weighted draw: weights proportional to emotional score
// over the eligible set in address order, seeded only by the height. The
// winner's LastSelectedHeight is updated under the write lock, which also
// serializes selection against reading ingestion.
//
// The result is a pure function of (registry state, height): identical
// inputs always elect the identical validator.
func (r *Registry) SelectByEmotion(height uint64) (*Validator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	eligible := r.eligibleLocked()
	if len(eligible) == 0 {
		return nil, ErrNoEligibleValidators
	}

	// Fixed-point weights (hundredths of a score point) keep the
	// cumulative table free of float accumulation differences.
	weights := make([]uint64, len(eligible))
	var total uint64
	for i, v := range eligible {
		w := uint64(math.Round(v.EmotionalScore * 100))
		if w == 0 {
			w = 1
		}
		weights[i] = w
		total += w
	}

	point := selectionDraw(height) % total
	var cum uint64
	for i, v := range eligible {
		cum += weights[i]
		if point < cum {
			v.LastSelectedHeight = int64(height)
			winner := *v
			return &winner, nil
		}
	}
	// Unreachable: point < total and the weights sum to total.
	return nil, ErrNoEligibleValidators
}
