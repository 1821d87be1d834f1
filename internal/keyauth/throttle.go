package keyauth

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// loginThrottle bounds license validation attempts per key, so a mistyped
// or brute-forced key cannot hammer the license authority. Keys are hashed
// before being used as map entries; the raw key is never stored.
type loginThrottle struct {
	mu       sync.Mutex
	limiters map[string]*throttleEntry
	burst    int
	interval time.Duration
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newLoginThrottle allows burst attempts immediately, refilling one
// attempt per interval.
func newLoginThrottle(burst int, interval time.Duration) *loginThrottle {
	return &loginThrottle{
		limiters: make(map[string]*throttleEntry),
		burst:    burst,
		interval: interval,
	}
}

// Allow reports whether another attempt for licenseKey may proceed now
func (t *loginThrottle) Allow(licenseKey string) bool {
	keyHash := hashThrottleKey(licenseKey)

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.limiters[keyHash]
	if !ok {
		entry = &throttleEntry{
			limiter: rate.NewLimiter(rate.Every(t.interval), t.burst),
		}
		t.limiters[keyHash] = entry
		t.evictStaleLocked()
	}
	entry.lastSeen = time.Now()

	return entry.limiter.Allow()
}

// evictStaleLocked drops entries idle long enough to be fully refilled
func (t *loginThrottle) evictStaleLocked() {
	cutoff := time.Now().Add(-t.interval * time.Duration(t.burst) * 2)
	for key, entry := range t.limiters {
		if entry.lastSeen.Before(cutoff) && !entry.lastSeen.IsZero() {
			delete(t.limiters, key)
		}
	}
}

func hashThrottleKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}
