package keyauth

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Date layouts the license authority has been seen to use
const (
	expiryLayoutFull = "2006-01-02 15:04:05"
	expiryLayoutDate = "2006-01-02"
)

// defaultExpiryGrace is the provisional validity granted when the server
// response carries no parseable expiry date. This is a deliberate policy
// choice inherited from the backend's loose contract, not an error path:
// the server said the license is valid, it just didn't say until when.
const defaultExpiryGrace = 30 * 24 * time.Hour

// AuthResult is the structured outcome of a successful license check.
// Immutable once constructed; it is handed to the caller and discarded,
// never persisted.
type AuthResult struct {
	Success          bool
	Message          string
	ExpiryDate       time.Time
	RegistrationDate string
}

// RemainingDays returns whole days until expiry, negative when past
func (r *AuthResult) RemainingDays() int {
	return RemainingDays(r.ExpiryDate)
}

// RemainingDays returns whole days from now until expiry
func RemainingDays(expiry time.Time) int {
	return int(time.Until(expiry) / (24 * time.Hour))
}

var (
	expiryPattern  = regexp.MustCompile(`expiry[:\s]+(\d{4}-\d{2}-\d{2})`)
	createdPattern = regexp.MustCompile(`created[:\s]+(\d{4}-\d{2}-\d{2})`)
)

// licenseDates are the raw date strings recovered from a license response
type licenseDates struct {
	expiry  string
	created string
}

// extractLicenseDates recovers expiry and registration dates from the
// response's info payload. The payload is either an embedded JSON object
// with "expiry"/"created" fields or free text that is pattern-matched for
// date substrings. Missing dates come back empty; the caller applies the
// documented defaults.
func extractLicenseDates(info string) licenseDates {
	info = strings.TrimSpace(info)

	if strings.HasPrefix(info, "{") && strings.HasSuffix(info, "}") {
		var parsed struct {
			Expiry  string `json:"expiry"`
			Created string `json:"created"`
		}
		if err := json.Unmarshal([]byte(info), &parsed); err == nil {
			return licenseDates{expiry: parsed.Expiry, created: parsed.Created}
		}
	}

	var dates licenseDates
	if m := expiryPattern.FindStringSubmatch(info); m != nil {
		dates.expiry = m[1]
	}
	if m := createdPattern.FindStringSubmatch(info); m != nil {
		dates.created = m[1]
	}
	return dates
}

// parseExpiry parses an expiry string in either supported layout. The
// zero time and false signal an unparseable value.
func parseExpiry(s string) (time.Time, bool) {
	for _, layout := range []string{expiryLayoutFull, expiryLayoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// buildAuthResult post-processes a structurally successful license check
// into an AuthResult, applying the documented date-fallback policy and the
// local defense-in-depth expiry check.
func buildAuthResult(resp *apiResponse, now time.Time) (*AuthResult, error) {
	if !resp.HasInfo() {
		return nil, newError(KindInvalidLicense, "Invalid license key. Please check your license key.")
	}

	dates := extractLicenseDates(resp.InfoString())

	expiry, ok := parseExpiry(dates.expiry)
	if !ok {
		expiry = now.Add(defaultExpiryGrace)
	}

	registration := dates.created
	if registration == "" {
		registration = now.Format(expiryLayoutDate)
	}

	// The server may report success for a key it considers valid while the
	// embedded expiry is already past; trust the date over the flag.
	if expiry.Before(now) {
		return nil, newError(KindLicenseExpired, "License has expired. Please renew your subscription.")
	}

	return &AuthResult{
		Success:          true,
		Message:          "Login successful",
		ExpiryDate:       expiry,
		RegistrationDate: registration,
	}, nil
}

// NormalizeLicenseKey strips whitespace and hyphens, returning the bare
// key as sent to the server.
func NormalizeLicenseKey(key string) string {
	key = strings.ReplaceAll(key, "-", "")
	key = strings.ReplaceAll(key, " ", "")
	return strings.TrimSpace(key)
}

// FormatLicenseKey returns the canonical display form: the bare key with
// hyphens re-inserted every 6 characters. Purely cosmetic; the value on
// the wire is always hyphen-free.
func FormatLicenseKey(key string) string {
	clean := NormalizeLicenseKey(key)
	if len(clean) < 5 {
		return clean
	}

	var b strings.Builder
	for i, r := range clean {
		if i > 0 && i%6 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}
