package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintStable(t *testing.T) {
	fm := NewFingerprintManager()

	a, err := fm.Fingerprint()
	require.NoError(t, err)
	require.NotEmpty(t, a)
	assert.Len(t, a, 64) // hex sha256

	b, err := fm.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFingerprintDetails(t *testing.T) {
	fm := NewFingerprintManager()

	fp, err := fm.Get()
	require.NoError(t, err)

	assert.NotEmpty(t, fp.Hostname)
	assert.NotEmpty(t, fp.OS)
	assert.NotEmpty(t, fp.Arch)
	assert.False(t, fp.GeneratedAt.IsZero())
}

func TestFingerprintCached(t *testing.T) {
	fm := NewFingerprintManager()

	first, err := fm.Get()
	require.NoError(t, err)

	second, err := fm.Get()
	require.NoError(t, err)

	// Same cached instance until the TTL lapses.
	assert.Same(t, first, second)

	fm.mu.Lock()
	fm.cacheExpiry = time.Now().Add(-time.Minute)
	fm.mu.Unlock()

	third, err := fm.Get()
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, third.Fingerprint)
}
