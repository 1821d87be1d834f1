package keyauth

import (
	"strings"
	"sync"
)

// apiPath is the versioned API path appended to a custom domain
const apiPath = "api/1.2/"

// Selector tracks which license authority base URL is active. Exactly one
// of {custom, alternate, primary} is active at a time, resolved in that
// priority order. All transitions are pure state changes with no I/O.
type Selector struct {
	mu        sync.Mutex
	primary   string
	alternate string
	useAlt    bool
	customURL string
}

// NewSelector creates a selector over the primary and alternate base URLs
func NewSelector(primary, alternate string) *Selector {
	return &Selector{
		primary:   primary,
		alternate: alternate,
	}
}

// ActiveURL resolves the current base URL: custom domain if set, else the
// alternate if flagged, else the primary.
func (s *Selector) ActiveURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customURL != "" {
		return s.customURL
	}
	if s.useAlt {
		return s.alternate
	}
	return s.primary
}

// ForcePrimary makes the primary URL active and clears any custom domain
func (s *Selector) ForcePrimary() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.useAlt = false
	s.customURL = ""
}

// ForceAlternate makes the alternate URL active and clears any custom domain
func (s *Selector) ForceAlternate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.useAlt = true
	s.customURL = ""
}

// Toggle flips between primary and alternate and returns the new active
// URL. A custom domain replaces both endpoints, so while one is set the
// toggle is a no-op and the custom URL stays active.
func (s *Selector) Toggle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customURL != "" {
		return s.customURL
	}
	s.useAlt = !s.useAlt
	if s.useAlt {
		return s.alternate
	}
	return s.primary
}

// UsingAlternate reports whether the alternate flag is set
func (s *Selector) UsingAlternate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useAlt
}

// SetCustomDomain installs an operator-configured domain that replaces
// both primary and alternate. The domain is normalized: an https:// scheme
// is added when missing, a trailing slash is ensured and the API path is
// appended. An empty domain clears the override.
func (s *Selector) SetCustomDomain(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	domain = strings.TrimSpace(domain)
	if domain == "" {
		s.customURL = ""
		return
	}

	if !strings.HasPrefix(domain, "https://") && !strings.HasPrefix(domain, "http://") {
		domain = "https://" + domain
	}
	if !strings.HasSuffix(domain, "/") {
		domain += "/"
	}

	s.customURL = domain + apiPath
	s.useAlt = false
}

// ClearCustomDomain removes the custom domain override, reverting to
// primary/alternate resolution.
func (s *Selector) ClearCustomDomain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customURL = ""
}

// CustomDomain returns the configured custom domain without scheme or
// path, or "" when none is set.
func (s *Selector) CustomDomain() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customURL == "" {
		return ""
	}
	url := strings.TrimPrefix(strings.TrimPrefix(s.customURL, "https://"), "http://")
	if i := strings.Index(url, "/"); i > 0 {
		return url[:i]
	}
	return url
}

// UsingCustom reports whether a custom domain override is active
func (s *Selector) UsingCustom() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customURL != ""
}
