package keyauth

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes client errors so callers can render a message without
// string-matching.
type Kind string

const (
	KindTransport        Kind = "transport"
	KindServer           Kind = "server"
	KindProtocol         Kind = "protocol"
	KindInvalidLicense   Kind = "invalid_license"
	KindLicenseExpired   Kind = "license_expired"
	KindHardwareMismatch Kind = "hardware_mismatch"
	KindBanned           Kind = "banned"
	KindSession          Kind = "session"
	KindNoLicenseStored  Kind = "no_license_stored"
	KindNotInitialized   Kind = "not_initialized"
	KindRateLimited      Kind = "rate_limited"
	KindUnknown          Kind = "unknown"
)

// Error is the structured error surfaced by the license client
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two client errors by kind, so callers can use
// errors.Is(err, &Error{Kind: KindInvalidLicense}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindUnknown for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// licenseErrorRules maps known server message substrings to error kinds.
// This is a best-effort heuristic layered on the structured success flag:
// the backend reports business failures only as free-text messages, so the
// table enumerates the phrasings observed in practice. Order matters; the
// first match wins.
var licenseErrorRules = []struct {
	substring string
	kind      Kind
	message   string
}{
	// Session phrasings ("Invalid session", "Session expired") must match
	// before the generic invalid/expired rules, because a session-kind
	// rejection is curable by a refresh while a license rejection is not.
	{"session", KindSession, "Session error. Please try again."},
	{"invalid", KindInvalidLicense, "Invalid license key. Please check and try again."},
	{"key not found", KindInvalidLicense, "Invalid license key. Please check and try again."},
	{"not found", KindInvalidLicense, "Invalid license key. Please check and try again."},
	{"expired", KindLicenseExpired, "Your license has expired. Please renew your subscription."},
	{"hwid", KindHardwareMismatch, "This license is already in use on another device."},
	{"hardware", KindHardwareMismatch, "This license is already in use on another device."},
	{"banned", KindBanned, "This license has been banned. Please contact support."},
}

// classifyLicenseError maps a server failure message from a license check
// to a structured error.
func classifyLicenseError(message string) *Error {
	lower := strings.ToLower(message)
	for _, rule := range licenseErrorRules {
		if strings.Contains(lower, rule.substring) {
			return &Error{Kind: rule.kind, Message: rule.message, Err: fmt.Errorf("server message: %s", message)}
		}
	}
	return &Error{Kind: KindUnknown, Message: "License validation failed: " + message}
}

// failoverSignals are response substrings suggesting the active endpoint is
// degraded (rate-limited, edge-blocked, or redirecting to the other host).
var failoverSignals = []string{
	"Use keyauth.win",
	"keyauth.win",
	"keyauth.cc",
	"Cloudflare",
	"rate limit",
}

// sessionFailoverSignals extend failoverSignals for structured failure
// messages, where a dead session on one host is sometimes cured by the
// other.
var sessionFailoverSignals = []string{
	"Invalid session",
	"Session expired",
	"not found",
}

// failoverStatusCodes are HTTP statuses treated as endpoint degradation
var failoverStatusCodes = map[int]bool{
	403: true,
	404: true,
	429: true,
	503: true,
}

// suggestsFailover reports whether a transport-level failure points at a
// degraded endpoint.
func suggestsFailover(statusCode int, body string) bool {
	if failoverStatusCodes[statusCode] {
		return true
	}
	return containsAny(body, failoverSignals)
}

// messageSuggestsFailover applies the failover heuristic to a structured
// error message from a success=false response.
func messageSuggestsFailover(message string) bool {
	return containsAny(message, failoverSignals) || containsAny(message, sessionFailoverSignals)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
