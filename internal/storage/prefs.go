package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Well-known preference keys
const (
	KeyLicenseKey   = "license_key"
	KeyLoggedIn     = "logged_in"
	KeySessionID    = "session_id"
	KeyCustomDomain = "custom_domain"
)

// Prefs is a small persisted key-value store backed by a JSON file.
// It holds the stored license key, the logged-in flag and the encrypted
// session envelope. Writes go through a temp file plus rename so a crash
// never leaves a half-written prefs file behind.
type Prefs struct {
	path string
	mu   sync.Mutex
	data map[string]string
}

// Open loads the prefs file at path, creating an empty store if the file
// does not exist yet.
func Open(path string) (*Prefs, error) {
	p := &Prefs{
		path: path,
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prefs file: %w", err)
	}

	if err := json.Unmarshal(raw, &p.data); err != nil {
		// A corrupt prefs file is recoverable state, not a fatal error:
		// start fresh and let the next write replace it.
		p.data = make(map[string]string)
	}

	return p, nil
}

// Get returns the value for key and whether it was present
func (p *Prefs) Get(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.data[key]
	return v, ok
}

// Set stores key=value and persists the store
func (p *Prefs) Set(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[key] = value
	return p.flushLocked()
}

// Delete removes key and persists the store
func (p *Prefs) Delete(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, key)
	return p.flushLocked()
}

// GetBool returns the value for key interpreted as a boolean
func (p *Prefs) GetBool(key string) bool {
	v, ok := p.Get(key)
	return ok && v == "true"
}

// SetBool stores a boolean value for key
func (p *Prefs) SetBool(key string, value bool) error {
	if value {
		return p.Set(key, "true")
	}
	return p.Set(key, "false")
}

// Clear removes all entries and persists the empty store
func (p *Prefs) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = make(map[string]string)
	return p.flushLocked()
}

func (p *Prefs) flushLocked() error {
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal prefs: %w", err)
	}

	if dir := filepath.Dir(p.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create prefs directory: %w", err)
		}
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("failed to write prefs file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace prefs file: %w", err)
	}
	return nil
}
