package keyauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginThrottle_AllowsBurst(t *testing.T) {
	throttle := newLoginThrottle(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, throttle.Allow("KEY123"), "attempt %d should be allowed", i+1)
	}
	assert.False(t, throttle.Allow("KEY123"), "attempt past the burst should be denied")
}

func TestLoginThrottle_PerKeyIsolation(t *testing.T) {
	throttle := newLoginThrottle(1, time.Hour)

	assert.True(t, throttle.Allow("KEY-A"))
	assert.False(t, throttle.Allow("KEY-A"))

	// A different key has its own budget.
	assert.True(t, throttle.Allow("KEY-B"))
}

func TestLoginThrottle_DoesNotStoreRawKeys(t *testing.T) {
	throttle := newLoginThrottle(1, time.Hour)
	throttle.Allow("SECRET-LICENSE-KEY")

	throttle.mu.Lock()
	defer throttle.mu.Unlock()
	for stored := range throttle.limiters {
		assert.NotContains(t, stored, "SECRET")
		assert.Len(t, stored, 32)
	}
}
