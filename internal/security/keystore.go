package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Envelope format: base64(nonce) + envelopeSeparator + base64(ciphertext).
// The separator never appears in base64 output, so splitting is unambiguous.
const envelopeSeparator = "]"

const (
	keyFileSize = 32 // raw key material persisted per install
	nonceSize   = 12 // 96-bit GCM nonce
	aesKeyLen   = 32 // AES-256
)

// scrypt parameters (OWASP recommended minimum for interactive use)
const (
	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

var (
	// ErrDecryption indicates a malformed envelope, failed authentication
	// or unavailable key. Callers treat it as "no prior secret", not fatal.
	ErrDecryption = errors.New("decryption failed")

	// ErrKeystore indicates the key material could not be created or read.
	// Encryption cannot proceed; there is no plaintext fallback.
	ErrKeystore = errors.New("keystore unavailable")
)

// Keystore performs authenticated encryption of small secrets with an
// AES-256-GCM key unique to this install. The raw key material lives in a
// 0600 file created on first use; the working key is derived from it with
// scrypt, salted with the device fingerprint so a copied keyfile does not
// decrypt on another machine.
type Keystore struct {
	keyFile string
	hwid    HardwareID
}

// HardwareID provides a stable per-device identity string
type HardwareID interface {
	Fingerprint() (string, error)
}

// NewKeystore creates a keystore backed by the key file at keyFile
func NewKeystore(keyFile string, hwid HardwareID) *Keystore {
	return &Keystore{keyFile: keyFile, hwid: hwid}
}

// Encrypt performs authenticated encryption of plaintext with a fresh nonce
// and returns the persistable envelope. The install key is created on first
// use. Keystore failures wrap ErrKeystore and MUST NOT be worked around by
// storing the plaintext.
func (k *Keystore) Encrypt(plaintext string) (string, error) {
	gcm, err := k.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: failed to generate nonce: %v", ErrKeystore, err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(nonce) +
		envelopeSeparator +
		base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt authenticates and decrypts an envelope produced by Encrypt.
// Any malformed envelope, authentication failure or missing key yields
// ErrDecryption; wrong plaintext is never returned.
func (k *Keystore) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, envelopeSeparator)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: malformed envelope", ErrDecryption)
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: invalid nonce encoding", ErrDecryption)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext encoding", ErrDecryption)
	}

	gcm, err := k.aead()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("%w: bad nonce length", ErrDecryption)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}

	return string(plaintext), nil
}

// aead builds the AES-GCM cipher from the derived install key
func (k *Keystore) aead() (cipher.AEAD, error) {
	key, err := k.deriveKey()
	if err != nil {
		return nil, err
	}
	defer wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeystore, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeystore, err)
	}
	return gcm, nil
}

// deriveKey loads (or creates) the install key material and stretches it
// with scrypt, salted by the device fingerprint.
func (k *Keystore) deriveKey() ([]byte, error) {
	material, err := k.loadOrCreateKeyMaterial()
	if err != nil {
		return nil, err
	}
	defer wipe(material)

	salt := []byte("bearloader-keystore-v1")
	if k.hwid != nil {
		if fp, err := k.hwid.Fingerprint(); err == nil && fp != "" {
			salt = append(salt, []byte(fp)...)
		}
	}

	key, err := scrypt.Key(material, salt, scryptN, scryptR, scryptP, aesKeyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: key derivation failed: %v", ErrKeystore, err)
	}
	return key, nil
}

func (k *Keystore) loadOrCreateKeyMaterial() ([]byte, error) {
	material, err := os.ReadFile(k.keyFile)
	if err == nil {
		if len(material) != keyFileSize {
			return nil, fmt.Errorf("%w: key file has unexpected size %d", ErrKeystore, len(material))
		}
		return material, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %v", ErrKeystore, err)
	}

	material = make([]byte, keyFileSize)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("%w: failed to generate key material: %v", ErrKeystore, err)
	}
	if err := os.WriteFile(k.keyFile, material, 0600); err != nil {
		return nil, fmt.Errorf("%w: failed to persist key material: %v", ErrKeystore, err)
	}
	return material, nil
}

// DeleteKey removes the install key material. Existing envelopes become
// permanently undecryptable.
func (k *Keystore) DeleteKey() error {
	err := os.Remove(k.keyFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrKeystore, err)
	}
	return nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
