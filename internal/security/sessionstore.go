package security

import (
	"context"
	"errors"
	"log/slog"

	"bearloader/internal/infrastructure"
	"bearloader/internal/storage"
)

// SessionStore persists the session identifier as an encrypted envelope in
// the prefs store. Load treats a failed decryption as "no prior session" so
// the caller can re-initialize; Save never falls back to plaintext.
type SessionStore struct {
	keystore *Keystore
	prefs    *storage.Prefs
}

// NewSessionStore creates a session store over keystore and prefs
func NewSessionStore(keystore *Keystore, prefs *storage.Prefs) *SessionStore {
	return &SessionStore{keystore: keystore, prefs: prefs}
}

// Save encrypts sessionID and persists the envelope. A keystore failure is
// returned to the caller; the session stays in-memory only for this process.
func (s *SessionStore) Save(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	envelope, err := s.keystore.Encrypt(sessionID)
	if err != nil {
		infrastructure.LoggerWithContext(ctx).Error("failed to encrypt session id",
			slog.String("component", "session_store"),
			slog.String("error", err.Error()),
		)
		return err
	}

	if err := s.prefs.Set(storage.KeySessionID, envelope); err != nil {
		return err
	}

	infrastructure.LoggerWithContext(ctx).Debug("session id encrypted and saved",
		slog.String("component", "session_store"),
	)
	return nil
}

// Load retrieves and decrypts the persisted session identifier. Returns
// ("", false) when nothing usable is stored; a stale or tampered envelope
// is logged and treated as absent.
func (s *SessionStore) Load(ctx context.Context) (string, bool) {
	envelope, ok := s.prefs.Get(storage.KeySessionID)
	if !ok || envelope == "" {
		return "", false
	}

	sessionID, err := s.keystore.Decrypt(envelope)
	if err != nil {
		if errors.Is(err, ErrDecryption) {
			infrastructure.LoggerWithContext(ctx).Warn("stored session envelope not decryptable, treating as absent",
				slog.String("component", "session_store"),
				slog.String("error", err.Error()),
			)
			// Drop the dead envelope so the next load is a clean miss.
			_ = s.prefs.Delete(storage.KeySessionID)
			return "", false
		}
		infrastructure.LoggerWithContext(ctx).Error("failed to load session id",
			slog.String("component", "session_store"),
			slog.String("error", err.Error()),
		)
		return "", false
	}

	return sessionID, true
}

// Clear deletes the persisted envelope
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.prefs.Delete(storage.KeySessionID); err != nil {
		return err
	}
	infrastructure.LoggerWithContext(ctx).Debug("session id cleared from storage",
		slog.String("component", "session_store"),
	)
	return nil
}
