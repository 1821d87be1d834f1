package keyauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"bearloader/internal/config"
	"bearloader/internal/infrastructure"
	"bearloader/internal/storage"
)

const (
	// devModeDelay simulates network latency for development mode logins
	// so UI flows behave the same with and without a backend.
	devModeDelay = 500 * time.Millisecond

	loginThrottleBurst    = 5
	loginThrottleInterval = 10 * time.Second
)

// HardwareProvider supplies the device fingerprint bound to license
// validations.
type HardwareProvider interface {
	Fingerprint() (string, error)
}

// Dependencies carries the collaborators a Client needs. Store and
// Credentials are required; Hardware defaults to an empty fingerprint
// when nil, and Meter may be nil to disable metrics.
type Dependencies struct {
	Store       SessionPersister
	Credentials storage.Credentials
	Hardware    HardwareProvider
	Prefs       *storage.Prefs
	Meter       metric.Meter
}

// Client is the license validation facade. It owns the session
// lifecycle, endpoint selection and response caching, and serializes
// its public operations so callers may share one instance across
// goroutines.
//
// A Client must be released with Close, which waits for any in-flight
// background usage reports.
type Client struct {
	cfg       *config.Config
	endpoints *Selector
	cache     *ResponseCache
	transport *Transport
	orch      *orchestrator
	session   *SessionManager
	creds     storage.Credentials
	hardware  HardwareProvider
	prefs     *storage.Prefs
	throttle  *loginThrottle
	metrics   *Metrics

	mu sync.Mutex
	bg sync.WaitGroup

	closeMu sync.Mutex
	closed  bool
}

// NewClient wires a Client from configuration and its collaborators.
func NewClient(cfg *config.Config, deps Dependencies) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	var metrics *Metrics
	if deps.Meter != nil {
		var err error
		metrics, err = NewMetrics(deps.Meter)
		if err != nil {
			return nil, fmt.Errorf("initializing metrics: %w", err)
		}
	}

	endpoints := NewSelector(cfg.Endpoints.Primary, cfg.Endpoints.Alternate)
	switch {
	case cfg.Endpoints.Custom != "":
		endpoints.SetCustomDomain(cfg.Endpoints.Custom)
	case deps.Prefs != nil:
		// A custom domain set through a previous run survives restarts.
		if domain, ok := deps.Prefs.Get(storage.KeyCustomDomain); ok && domain != "" {
			endpoints.SetCustomDomain(domain)
		}
	}

	cache := NewResponseCache(cfg.Cache.TTL)
	transport := NewTransport(cfg.HTTP)
	orch := newOrchestrator(transport, endpoints, cache, cfg.Retry, metrics)
	session := NewSessionManager(orch, deps.Store, cfg.App, cfg.Session, cfg.Retry, metrics)

	return &Client{
		cfg:       cfg,
		endpoints: endpoints,
		cache:     cache,
		transport: transport,
		orch:      orch,
		session:   session,
		creds:     deps.Credentials,
		hardware:  deps.Hardware,
		prefs:     deps.Prefs,
		throttle:  newLoginThrottle(loginThrottleBurst, loginThrottleInterval),
		metrics:   metrics,
	}, nil
}

// Initialize establishes an authenticated session, reusing a fresh one
// when possible. In development mode it is a no-op.
func (c *Client) Initialize(ctx context.Context) error {
	ctx = infrastructure.EnsureTraceID(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.DevMode {
		c.logDebug(ctx, "initialize", "Skipped in development mode")
		return nil
	}

	ctx, span := tracer().Start(ctx, "keyauth.Initialize")
	defer span.End()

	return c.session.Initialize(ctx)
}

// Login validates a license key against the server and, on success,
// persists the key and marks the user as logged in.
func (c *Client) Login(ctx context.Context, licenseKey string) (*AuthResult, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login(ctx, licenseKey)
}

// ValidateCurrentLicense re-validates the previously stored license
// key. Returns ErrNoLicenseStored kind when no key has been saved.
func (c *Client) ValidateCurrentLicense(ctx context.Context) (*AuthResult, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.creds.LicenseKey()
	if key == "" {
		return nil, newError(KindNoLicenseStored, "No license key stored. Please log in first.")
	}
	return c.login(ctx, key)
}

func (c *Client) login(ctx context.Context, licenseKey string) (*AuthResult, error) {
	start := time.Now()
	ctx, span := tracer().Start(ctx, "keyauth.Login")
	defer span.End()
	defer func() {
		c.metrics.recordDuration(ctx, "login", float64(time.Since(start).Milliseconds()))
	}()

	if c.cfg.DevMode {
		return c.devLogin(ctx, licenseKey)
	}

	key := NormalizeLicenseKey(licenseKey)
	if key == "" {
		return nil, newError(KindInvalidLicense, "License key cannot be empty")
	}
	span.SetAttributes(attribute.String("license.hash", hashLicenseKey(key)))

	if !c.throttle.Allow(key) {
		c.logWarn(ctx, "login", "Login attempt throttled",
			slog.String("license_key", maskLicenseKey(key)))
		return nil, newError(KindRateLimited, "Too many login attempts. Please wait and try again.")
	}

	if err := c.ensureSession(ctx); err != nil {
		c.metrics.recordValidation(ctx, string(KindSession))
		return nil, err
	}

	result, err := c.validateKey(ctx, key, true)
	if err != nil {
		c.logWarn(ctx, "login", "License validation failed",
			slog.String("license_key", maskLicenseKey(key)),
			slog.String("error_kind", string(KindOf(err))))
		c.metrics.recordValidation(ctx, string(KindOf(err)))
		return nil, err
	}

	if err := c.creds.SetLicenseKey(FormatLicenseKey(key)); err != nil {
		c.logWarn(ctx, "login", "Failed to persist license key", slog.String("error", err.Error()))
	}
	if err := c.creds.SetLoggedIn(true); err != nil {
		c.logWarn(ctx, "login", "Failed to persist login state", slog.String("error", err.Error()))
	}

	c.logInfo(ctx, "login", "License validated",
		slog.String("license_key", maskLicenseKey(key)),
		slog.String("license_hash", hashLicenseKey(key)),
		slog.Int("remaining_days", result.RemainingDays()))
	c.metrics.recordValidation(ctx, "success")
	return result, nil
}

// ensureSession makes sure an authenticated session exists and is
// fresh, escalating from refresh to full re-initialization.
func (c *Client) ensureSession(ctx context.Context) error {
	if !c.session.Active() {
		return c.session.Initialize(ctx)
	}
	if c.session.RefreshDue() || !c.session.IsValid(ctx) {
		if !c.session.Refresh(ctx) {
			return c.session.Initialize(ctx)
		}
	}
	return nil
}

// validateKey performs the license request. A session-level rejection
// is retried exactly once behind a session refresh; every other
// failure surfaces as-is, the orchestrator has already spent its
// retry budget by the time an error reaches here.
func (c *Client) validateKey(ctx context.Context, key string, allowSessionRetry bool) (*AuthResult, error) {
	hwid := c.fingerprint(ctx)

	form := c.session.baseForm("license", c.session.SessionID())
	form.Set("key", key)
	form.Set("hwid", hwid)

	resp, err := c.orch.execute(ctx, form, "")
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		licErr := classifyLicenseError(resp.Message)
		if licErr.Kind == KindSession && allowSessionRetry {
			if c.session.Refresh(ctx) {
				c.logInfo(ctx, "license_check", "Session rejected, retrying after refresh")
				return c.validateKey(ctx, key, false)
			}
		}
		return nil, licErr
	}

	return buildAuthResult(resp, time.Now())
}

func (c *Client) fingerprint(ctx context.Context) string {
	if c.hardware == nil {
		return ""
	}
	hwid, err := c.hardware.Fingerprint()
	if err != nil {
		c.logWarn(ctx, "fingerprint", "Failed to compute device fingerprint",
			slog.String("error", err.Error()))
		return ""
	}
	return hwid
}

func (c *Client) devLogin(ctx context.Context, licenseKey string) (*AuthResult, error) {
	if err := sleepCtx(ctx, devModeDelay); err != nil {
		return nil, wrapError(KindTransport, "login cancelled", err)
	}

	now := time.Now()
	result := &AuthResult{
		Success:          true,
		Message:          "Development mode login successful",
		ExpiryDate:       now.Add(defaultExpiryGrace),
		RegistrationDate: now.AddDate(-1, 0, 0).Format(expiryLayoutDate),
	}

	key := NormalizeLicenseKey(licenseKey)
	if key != "" {
		if err := c.creds.SetLicenseKey(FormatLicenseKey(key)); err != nil {
			c.logWarn(ctx, "login", "Failed to persist license key", slog.String("error", err.Error()))
		}
	}
	if err := c.creds.SetLoggedIn(true); err != nil {
		c.logWarn(ctx, "login", "Failed to persist login state", slog.String("error", err.Error()))
	}

	c.logInfo(ctx, "login", "Development mode login",
		slog.String("license_key", maskLicenseKey(key)))
	return result, nil
}

// Logout clears stored credentials and discards the session on both
// sides of the keystore.
func (c *Client) Logout(ctx context.Context) error {
	ctx = infrastructure.EnsureTraceID(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.creds.ClearUserData(); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	if err := c.session.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	c.logInfo(ctx, "logout", "User logged out")
	return nil
}

// LoggedIn reports whether a successful login has been persisted.
func (c *Client) LoggedIn() bool {
	return c.creds.LoggedIn()
}

// StoredLicenseKey returns the persisted license key in display form,
// or empty when none is stored.
func (c *Client) StoredLicenseKey() string {
	return c.creds.LicenseKey()
}

// IsSessionValid checks the current session against the server.
// Results are cached per session ID, so repeated calls within the
// cache window do not hit the network.
func (c *Client) IsSessionValid(ctx context.Context) bool {
	ctx = infrastructure.EnsureTraceID(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.DevMode {
		return true
	}
	return c.session.IsValid(ctx)
}

// SessionState returns the current lifecycle state of the session.
func (c *Client) SessionState() SessionState {
	return c.session.State()
}

// SetCustomDomain overrides both API endpoints with an operator
// supplied domain and persists it for future runs. An empty domain
// reverts to the built-in endpoints.
func (c *Client) SetCustomDomain(ctx context.Context, domain string) error {
	ctx = infrastructure.EnsureTraceID(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endpoints.SetCustomDomain(domain)
	if c.prefs != nil {
		if domain == "" {
			if err := c.prefs.Delete(storage.KeyCustomDomain); err != nil {
				return fmt.Errorf("clearing custom domain: %w", err)
			}
		} else if err := c.prefs.Set(storage.KeyCustomDomain, c.endpoints.CustomDomain()); err != nil {
			return fmt.Errorf("persisting custom domain: %w", err)
		}
	}

	c.logInfo(ctx, "set_custom_domain", "API domain updated",
		slog.String("active_url", c.endpoints.ActiveURL()))
	return nil
}

// CustomDomain returns the active custom API domain, or empty when the
// built-in endpoints are in use.
func (c *Client) CustomDomain() string {
	return c.endpoints.CustomDomain()
}

// ReportUsage sends a best-effort usage event to the server. It never
// blocks the caller and failures are only logged. Reports are skipped
// in development mode and when no license is stored.
func (c *Client) ReportUsage(ctx context.Context, feature, data string) {
	if c.cfg.DevMode {
		return
	}
	if c.creds.LicenseKey() == "" {
		return
	}

	ctx = infrastructure.EnsureTraceID(ctx)
	sessionID := c.session.SessionID()
	if sessionID == "" {
		return
	}

	// Registering must be mutually exclusive with Close's wait: a report
	// racing Close could otherwise Add after Wait has begun.
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.bg.Add(1)
	c.closeMu.Unlock()

	go func() {
		defer c.bg.Done()

		form := c.session.baseForm("log", sessionID)
		form.Set("message", "Feature used: "+feature)
		form.Set("pcuser", data)

		reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.HTTP.ReadTimeout)
		defer cancel()

		status, _, err := c.transport.PostForm(reportCtx, c.endpoints.ActiveURL(), form)
		if err != nil {
			c.logDebug(ctx, "report_usage", "Usage report failed",
				slog.String("feature", feature),
				slog.String("error", err.Error()))
			return
		}
		c.logDebug(ctx, "report_usage", "Usage reported",
			slog.String("feature", feature),
			slog.Int("status", status))
	}()
}

// DownloadFile fetches a server-hosted file by ID over the active
// session. The session must be initialized first.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := tracer().Start(ctx, "keyauth.DownloadFile",
		oteltrace.WithAttributes(attribute.String("file.id", fileID)))
	defer span.End()

	if fileID == "" {
		return nil, newError(KindUnknown, "file ID cannot be empty")
	}
	if !c.session.Active() {
		return nil, newError(KindNotInitialized, "session not initialized; call Initialize first")
	}

	query := url.Values{}
	query.Set("type", "file")
	query.Set("fileid", fileID)
	query.Set("sessionid", c.session.SessionID())
	query.Set("name", c.cfg.App.Name)
	query.Set("ownerid", c.cfg.App.OwnerID)

	data, err := c.orch.downloadFile(ctx, c.cfg.Endpoints.File+"?"+query.Encode())
	if err != nil {
		return nil, err
	}

	c.logInfo(ctx, "download_file", "File downloaded",
		slog.String("file_id", fileID),
		slog.Int("bytes", len(data)))
	return data, nil
}

// Close waits for in-flight background reports to finish. The Client
// must not be used afterwards.
func (c *Client) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()
	c.bg.Wait()
	return nil
}
