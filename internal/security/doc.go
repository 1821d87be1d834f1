// Package security implements the secure credential store and device
// fingerprinting for the loader.
//
// The Keystore performs AES-256-GCM authenticated encryption with an
// install-unique key derived via scrypt from a 0600 key file and the
// device fingerprint. Secrets are persisted as a base64(nonce) "]"
// base64(ciphertext) envelope. Keystore failure is fatal for persistence:
// there is deliberately no plaintext fallback, the session simply lives
// in memory for the current process and the next launch re-initializes.
//
// Decryption failure (tampered or legacy envelope, missing key file) is
// not fatal; SessionStore maps it to "no prior session" so the session
// lifecycle can start clean.
package security
