package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// DeviceFingerprint represents device identification information
type DeviceFingerprint struct {
	Fingerprint string    `json:"fingerprint"`
	Hostname    string    `json:"hostname"`
	MACAddress  string    `json:"mac_address"`
	OS          string    `json:"os"`
	Arch        string    `json:"arch"`
	GeneratedAt time.Time `json:"generated_at"`
}

// FingerprintManager derives a stable per-device identity string (HWID)
// from hostname, primary MAC address and platform, hashed so raw hardware
// identifiers never leave the machine.
type FingerprintManager struct {
	mu          sync.RWMutex
	cache       *DeviceFingerprint
	cacheExpiry time.Time
	cacheTTL    time.Duration
}

// NewFingerprintManager creates a new fingerprint manager with caching
func NewFingerprintManager() *FingerprintManager {
	return &FingerprintManager{
		cacheTTL: 1 * time.Hour,
	}
}

// Fingerprint returns the device fingerprint hash, computing and caching
// it on first use. Implements the Keystore HardwareID interface.
func (fm *FingerprintManager) Fingerprint() (string, error) {
	fp, err := fm.Get()
	if err != nil {
		return "", err
	}
	return fp.Fingerprint, nil
}

// Get returns the full device fingerprint, cached for the manager's TTL
func (fm *FingerprintManager) Get() (*DeviceFingerprint, error) {
	fm.mu.RLock()
	if fm.cache != nil && time.Now().Before(fm.cacheExpiry) {
		cached := fm.cache
		fm.mu.RUnlock()
		return cached, nil
	}
	fm.mu.RUnlock()

	fm.mu.Lock()
	defer fm.mu.Unlock()

	// Re-check after acquiring the write lock
	if fm.cache != nil && time.Now().Before(fm.cacheExpiry) {
		return fm.cache, nil
	}

	fp, err := fm.generate()
	if err != nil {
		return nil, err
	}

	fm.cache = fp
	fm.cacheExpiry = time.Now().Add(fm.cacheTTL)
	return fp, nil
}

func (fm *FingerprintManager) generate() (*DeviceFingerprint, error) {
	hostname, err := fm.hostname()
	if err != nil {
		return nil, err
	}

	mac, err := fm.macAddress()
	if err != nil {
		// A machine with no usable interface still gets a fingerprint,
		// just a weaker one.
		slog.Warn("no MAC address available for fingerprint",
			slog.String("error", err.Error()),
		)
		mac = "no-mac"
	}

	material := strings.Join([]string{hostname, mac, runtime.GOOS, runtime.GOARCH}, "|")
	sum := sha256.Sum256([]byte(material))

	return &DeviceFingerprint{
		Fingerprint: hex.EncodeToString(sum[:]),
		Hostname:    hostname,
		MACAddress:  mac,
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		GeneratedAt: time.Now(),
	}, nil
}

func (fm *FingerprintManager) hostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return "", fmt.Errorf("hostname is empty")
	}
	return hostname, nil
}

// macAddress returns the MAC of the first up, non-loopback interface,
// falling back to any interface with hardware address.
func (fm *FingerprintManager) macAddress() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to get network interfaces: %w", err)
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac, nil
		}
	}

	for _, iface := range interfaces {
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac, nil
		}
	}

	return "", fmt.Errorf("no valid MAC address found")
}
