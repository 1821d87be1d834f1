package keyauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"bearloader/internal/config"
	"bearloader/internal/infrastructure"
)

// SessionState is the lifecycle state of the client session
type SessionState int

const (
	SessionUninitialized SessionState = iota
	SessionInitializing
	SessionActive
	SessionStale
)

func (s SessionState) String() string {
	switch s {
	case SessionInitializing:
		return "initializing"
	case SessionActive:
		return "active"
	case SessionStale:
		return "stale"
	default:
		return "uninitialized"
	}
}

// SessionPersister persists the session identifier across process restarts
type SessionPersister interface {
	Save(ctx context.Context, sessionID string) error
	Load(ctx context.Context) (string, bool)
	Clear(ctx context.Context) error
}

// SessionManager owns the session identifier and its lifecycle state
// machine. It is the only component that mutates the session id, and it
// keeps the in-memory id and the persisted one in lock-step: every
// successful init or refresh persists before the operation is considered
// durable. All public operations are safe for concurrent use; the mutex
// makes "load persisted id, decide it is stale, write a new one" a single
// critical section.
type SessionManager struct {
	orch    *orchestrator
	store   SessionPersister
	app     config.AppConfig
	timing  config.SessionConfig
	retry   config.RetryConfig
	metrics *Metrics

	mu              sync.Mutex
	sessionID       string
	state           SessionState
	lastRefreshedAt time.Time

	checkGroup singleflight.Group
	now        func() time.Time
}

// NewSessionManager creates a session manager
func NewSessionManager(orch *orchestrator, store SessionPersister, app config.AppConfig, timing config.SessionConfig, retry config.RetryConfig, metrics *Metrics) *SessionManager {
	return &SessionManager{
		orch:    orch,
		store:   store,
		app:     app,
		timing:  timing,
		retry:   retry,
		metrics: metrics,
		state:   SessionUninitialized,
		now:     time.Now,
	}
}

// sessionCheckKey is the cache key for validity checks of one session
func sessionCheckKey(sessionID string) string {
	return "session_check_" + sessionID
}

// baseForm returns the identity fields every request carries
func (m *SessionManager) baseForm(reqType, sessionID string) url.Values {
	form := url.Values{}
	form.Set("type", reqType)
	form.Set("name", m.app.Name)
	form.Set("ownerid", m.app.OwnerID)
	form.Set("ver", m.app.Version)
	if sessionID != "" {
		form.Set("sessionid", sessionID)
	}
	return form
}

// SessionID returns the current session identifier, "" when uninitialized
func (m *SessionManager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// State returns the current lifecycle state
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active reports whether the session is usable (active or stale-but-held)
func (m *SessionManager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == SessionActive || m.state == SessionStale
}

// LastRefreshedAt returns when the session last passed a server exchange
func (m *SessionManager) LastRefreshedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRefreshedAt
}

// RefreshDue reports whether the periodic refresh interval has elapsed
func (m *SessionManager) RefreshDue() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now().Sub(m.lastRefreshedAt) > m.timing.RefreshInterval
}

// Initialize establishes a usable session. Repeated calls within the
// refresh interval are a fast path: a session that recently passed a
// validity check is adopted without touching the network (the check itself
// is served from the response cache). Otherwise a persisted session is
// adopted if the server still accepts it; failing that, a brand-new
// session is registered, retrying the whole operation up to the configured
// ceiling.
func (m *SessionManager) Initialize(ctx context.Context) error {
	logger := infrastructure.LoggerWithContext(ctx)

	m.mu.Lock()
	if m.state == SessionActive && m.now().Sub(m.lastRefreshedAt) < m.timing.RefreshInterval {
		m.mu.Unlock()
		if m.IsValid(ctx) {
			logger.Debug("session already initialized and fresh",
				slog.String("component", "session_manager"),
			)
			return nil
		}
		m.mu.Lock()
	}

	m.state = SessionInitializing
	m.mu.Unlock()

	// Adopt a persisted session when the server still accepts it.
	if persisted, ok := m.store.Load(ctx); ok {
		logger.Debug("found persisted session id",
			slog.String("component", "session_manager"),
		)
		m.mu.Lock()
		m.sessionID = persisted
		m.mu.Unlock()

		if m.IsValid(ctx) {
			m.mu.Lock()
			m.state = SessionActive
			m.lastRefreshedAt = m.now()
			m.mu.Unlock()
			logger.Info("persisted session adopted",
				slog.String("component", "session_manager"),
			)
			return nil
		}
		logger.Debug("persisted session rejected by server, creating new session",
			slog.String("component", "session_manager"),
		)
	}

	var lastErr error
	for attempt := 0; attempt < m.retry.InitAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, m.retry.InitPause); err != nil {
				return wrapError(KindTransport, "initialize canceled", err)
			}
		}

		if err := m.registerNewSession(ctx); err != nil {
			lastErr = err
			logger.Warn("session initialization attempt failed",
				slog.String("component", "session_manager"),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			continue
		}

		logger.Info("session initialized",
			slog.String("component", "session_manager"),
		)
		return nil
	}

	m.mu.Lock()
	m.state = SessionUninitialized
	m.mu.Unlock()

	if lastErr == nil {
		lastErr = newError(KindTransport, "session initialization failed")
	}
	return lastErr
}

// registerNewSession generates a fresh session id and registers it with
// the server, persisting it on success.
func (m *SessionManager) registerNewSession(ctx context.Context) error {
	newID := uuid.New().String()

	resp, err := m.orch.execute(ctx, m.baseForm("init", newID), "")
	if err != nil {
		return err
	}
	if !resp.Success {
		return wrapError(KindSession, "session initialization rejected", fmt.Errorf("server message: %s", resp.Message))
	}

	m.adopt(ctx, newID)
	return nil
}

// adopt installs sessionID as the active session and persists it. A
// keystore failure is logged, not fatal: the session stays in-memory for
// this process and the next launch re-initializes.
func (m *SessionManager) adopt(ctx context.Context, sessionID string) {
	m.mu.Lock()
	m.sessionID = sessionID
	m.state = SessionActive
	m.lastRefreshedAt = m.now()
	m.mu.Unlock()

	// The server just accepted this session, which is as strong a proof of
	// validity as a check response; seed the cache so an immediate
	// follow-up check stays off the network.
	m.orch.cache.Put(sessionCheckKey(sessionID), &apiResponse{Success: true})

	if err := m.store.Save(ctx, sessionID); err != nil {
		infrastructure.LoggerWithContext(ctx).Warn("session not persisted, will re-initialize on next launch",
			slog.String("component", "session_manager"),
			slog.String("error", err.Error()),
		)
	}
}

// IsValid performs a live validity check against the server. The check is
// cache-eligible (keyed by session id) and deduplicated, so concurrent
// callers share one network call. Any transport or parse failure means
// invalid; this method never propagates an error.
func (m *SessionManager) IsValid(ctx context.Context) bool {
	m.mu.Lock()
	sessionID := m.sessionID
	m.mu.Unlock()

	if sessionID == "" {
		return false
	}

	result, _, _ := m.checkGroup.Do(sessionID, func() (interface{}, error) {
		resp, err := m.orch.execute(ctx, m.baseForm("check", sessionID), sessionCheckKey(sessionID))
		if err != nil {
			infrastructure.LoggerWithContext(ctx).Warn("session check failed",
				slog.String("component", "session_manager"),
				slog.String("error", err.Error()),
			)
			return false, nil
		}
		return resp.Success, nil
	})

	valid, _ := result.(bool)

	m.mu.Lock()
	if valid && m.sessionID == sessionID {
		m.lastRefreshedAt = m.now()
		if m.state == SessionStale {
			m.state = SessionActive
		}
	} else if !valid && m.sessionID == sessionID && m.state == SessionActive {
		m.state = SessionStale
	}
	m.mu.Unlock()

	return valid
}

// Refresh unconditionally rotates the session id. On success the new id is
// persisted, the response cache is cleared so nothing keyed to the old
// session survives, and the refresh timestamp advances. On failure the
// prior (presumed stale) id stays in place and the caller decides whether
// to escalate to a full Initialize.
func (m *SessionManager) Refresh(ctx context.Context) bool {
	logger := infrastructure.LoggerWithContext(ctx)
	logger.Debug("refreshing session", slog.String("component", "session_manager"))

	newID := uuid.New().String()

	resp, err := m.orch.execute(ctx, m.baseForm("init", newID), "")
	if err != nil {
		logger.Warn("session refresh failed",
			slog.String("component", "session_manager"),
			slog.String("error", err.Error()),
		)
		m.markStale()
		return false
	}
	if !resp.Success {
		logger.Warn("session refresh rejected",
			slog.String("component", "session_manager"),
			slog.String("message", resp.Message),
		)
		m.markStale()
		return false
	}

	// Drop everything keyed to the old session before adopt seeds the new
	// session's check entry.
	m.orch.cache.Clear()
	m.adopt(ctx, newID)
	m.metrics.recordRefresh(ctx)

	logger.Info("session refreshed", slog.String("component", "session_manager"))
	return true
}

func (m *SessionManager) markStale() {
	m.mu.Lock()
	if m.state == SessionActive {
		m.state = SessionStale
	}
	m.mu.Unlock()
}

// Clear drops the in-memory session and deletes the persisted envelope
func (m *SessionManager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.sessionID = ""
	m.state = SessionUninitialized
	m.lastRefreshedAt = time.Time{}
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		return err
	}

	infrastructure.LoggerWithContext(ctx).Info("session cleared",
		slog.String("component", "session_manager"),
	)
	return nil
}
