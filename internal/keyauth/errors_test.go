package keyauth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyLicenseError(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantKind Kind
	}{
		{
			name:     "invalid key",
			message:  "Invalid license key",
			wantKind: KindInvalidLicense,
		},
		{
			name:     "key not found",
			message:  "Key not found",
			wantKind: KindInvalidLicense,
		},
		{
			name:     "license not found",
			message:  "License not found in database",
			wantKind: KindInvalidLicense,
		},
		{
			name:     "expired subscription",
			message:  "Your subscription has expired",
			wantKind: KindLicenseExpired,
		},
		{
			name:     "hwid mismatch",
			message:  "HWID mismatch detected",
			wantKind: KindHardwareMismatch,
		},
		{
			name:     "hardware wording",
			message:  "License bound to different hardware",
			wantKind: KindHardwareMismatch,
		},
		{
			name:     "banned",
			message:  "This key is banned",
			wantKind: KindBanned,
		},
		{
			name:     "invalid session classifies as session not license",
			message:  "Invalid session",
			wantKind: KindSession,
		},
		{
			name:     "session expired classifies as session not expired",
			message:  "Session expired",
			wantKind: KindSession,
		},
		{
			name:     "unrecognized message",
			message:  "something unexpected happened",
			wantKind: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyLicenseError(tt.message)
			require.NotNil(t, err)
			assert.Equal(t, tt.wantKind, err.Kind)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestClassifyLicenseError_PreservesServerMessage(t *testing.T) {
	err := classifyLicenseError("Key not found")
	require.Error(t, err.Err)
	assert.Contains(t, err.Err.Error(), "Key not found")
}

func TestErrorKindMatching(t *testing.T) {
	err := newError(KindInvalidLicense, "bad key")

	assert.True(t, errors.Is(err, &Error{Kind: KindInvalidLicense}))
	assert.False(t, errors.Is(err, &Error{Kind: KindBanned}))
}

func TestErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := wrapError(KindTransport, "network unavailable", inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "network unavailable")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindSession, KindOf(newError(KindSession, "dead session")))
	assert.Equal(t, KindTransport, KindOf(fmt.Errorf("wrapped: %w", newError(KindTransport, "down"))))
	assert.Equal(t, KindUnknown, KindOf(fmt.Errorf("plain error")))
}

func TestSuggestsFailover(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"forbidden status", 403, "", true},
		{"not found status", 404, "", true},
		{"rate limited status", 429, "", true},
		{"unavailable status", 503, "", true},
		{"server error status", 500, "", false},
		{"cloudflare body", 200, "Cloudflare blocked this request", true},
		{"redirect hint", 0, "Use keyauth.win instead", true},
		{"rate limit body", 0, "rate limit exceeded", true},
		{"plain failure", 500, "internal error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, suggestsFailover(tt.status, tt.body))
		})
	}
}

func TestMessageSuggestsFailover(t *testing.T) {
	assert.True(t, messageSuggestsFailover("Invalid session"))
	assert.True(t, messageSuggestsFailover("Session expired"))
	assert.True(t, messageSuggestsFailover("Use keyauth.win"))
	assert.False(t, messageSuggestsFailover("License expired"))
	assert.False(t, messageSuggestsFailover("banned"))
}
