package server

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"emochain/core/storage"
)

// Progressive ban durations. A client that keeps tripping the rate limit
// climbs the ladder; past the last rung the ban is effectively permanent.
var banDurations = []time.Duration{
	10 * time.Minute,
	1 * time.Hour,
	24 * time.Hour,
}

const permabanDuration = 100 * 365 * 24 * time.Hour

const (
	banKeyPrefix      = "ban:"
	banCountKeyPrefix = "banCount:"
)

// clientLimiter enforces per-client request rates across API handlers.
// Active bans are persisted so they survive a node restart.
type clientLimiter struct {
	lock      sync.Mutex
	limiters  map[string]*rate.Limiter
	banned    map[string]time.Time
	banCounts map[string]int
	perMin    int
	store     *storage.Storage
}

func newClientLimiter(requestsPerMinute int, store *storage.Storage) *clientLimiter {
	cl := &clientLimiter{
		limiters:  make(map[string]*rate.Limiter),
		banned:    make(map[string]time.Time),
		banCounts: make(map[string]int),
		perMin:    requestsPerMinute,
		store:     store,
	}
	cl.loadPersistedBans()
	return cl
}

func (cl *clientLimiter) loadPersistedBans() {
	if cl.store == nil {
		return
	}
	iter := cl.store.Iterator()
	defer iter.Release()
	for iter.Next() {
		key := string(iter.Key())
		switch {
		case strings.HasPrefix(key, banKeyPrefix):
			expiry, err := time.Parse(time.RFC3339, string(iter.Value()))
			if err == nil && time.Now().Before(expiry) {
				cl.banned[strings.TrimPrefix(key, banKeyPrefix)] = expiry
			}
		case strings.HasPrefix(key, banCountKeyPrefix):
			if len(iter.Value()) == 8 {
				cl.banCounts[strings.TrimPrefix(key, banCountKeyPrefix)] = int(binary.BigEndian.Uint64(iter.Value()))
			}
		}
	}
}

// Allow records one request from the client and reports whether it is
// within the rate limit. Going over the limit bans the client.
func (cl *clientLimiter) Allow(address string) bool {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	if cl.isBannedLocked(address) {
		return false
	}
	lim, ok := cl.limiters[address]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(cl.perMin)/60.0), cl.perMin)
		cl.limiters[address] = lim
	}
	if lim.Allow() {
		return true
	}
	cl.banLocked(address)
	return false
}

// IsBanned reports whether the client is serving a ban. An expired ban is
// cleared on the way out.
func (cl *clientLimiter) IsBanned(address string) bool {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	return cl.isBannedLocked(address)
}

func (cl *clientLimiter) isBannedLocked(address string) bool {
	expiry, ok := cl.banned[address]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		fmt.Printf("[UNBAN] Ban expired for %s (was until %s)\n", address, expiry.Format(time.RFC3339))
		delete(cl.banned, address)
		if cl.store != nil {
			if err := cl.store.Delete(banKeyPrefix + address); err != nil {
				fmt.Printf("[ERROR] Failed to remove persistent ban for %s: %v\n", address, err)
			}
			if err := cl.store.Delete(banCountKeyPrefix + address); err != nil {
				fmt.Printf("[ERROR] Failed to remove persistent ban count for %s: %v\n", address, err)
			}
		}
		return false
	}
	return true
}

// banLocked escalates the client up the ban ladder and persists the ban.
func (cl *clientLimiter) banLocked(address string) {
	cl.banCounts[address]++
	banCount := cl.banCounts[address]
	var dur time.Duration
	if banCount > len(banDurations) {
		dur = permabanDuration
		fmt.Printf("[PERMABAN] Permanently banned %s after %d violations\n", address, banCount)
	} else {
		dur = banDurations[banCount-1]
		fmt.Printf("[BAN] %s banned for %s (violation #%d)\n", address, dur, banCount)
	}
	expiry := time.Now().Add(dur)
	cl.banned[address] = expiry
	if cl.store == nil {
		return
	}
	if err := cl.store.Put(banKeyPrefix+address, []byte(expiry.Format(time.RFC3339))); err != nil {
		fmt.Printf("[ERROR] Failed to persist ban for %s: %v\n", address, err)
	}
	countBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(countBytes, uint64(banCount))
	if err := cl.store.Put(banCountKeyPrefix+address, countBytes); err != nil {
		fmt.Printf("[ERROR] Failed to persist ban count for %s: %v\n", address, err)
	}
}
