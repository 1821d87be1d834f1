package keyauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bearloader/internal/config"
	"bearloader/internal/storage"
)

type fakeHardware struct {
	id  string
	err error
}

func (f fakeHardware) Fingerprint() (string, error) {
	return f.id, f.err
}

func testClientConfig(serverURL string) *config.Config {
	cfg := config.Default()
	cfg.Endpoints.Primary = serverURL + "/"
	cfg.Endpoints.Alternate = serverURL + "/"
	cfg.Endpoints.File = serverURL + "/"
	cfg.Retry = testRetryConfig()
	return cfg
}

func newTestClient(t *testing.T, cfg *config.Config) (*Client, *storage.Prefs) {
	t.Helper()

	prefs, err := storage.Open(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)

	client, err := NewClient(cfg, Dependencies{
		Store:       &fakeStore{},
		Credentials: storage.NewCredentials(prefs),
		Hardware:    fakeHardware{id: "test-device-fingerprint"},
		Prefs:       prefs,
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, prefs
}

func TestNewClient_RequiresCollaborators(t *testing.T) {
	prefs, err := storage.Open(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)

	_, err = NewClient(nil, Dependencies{Store: &fakeStore{}, Credentials: storage.NewCredentials(prefs)})
	assert.Error(t, err)

	_, err = NewClient(config.Default(), Dependencies{Credentials: storage.NewCredentials(prefs)})
	assert.Error(t, err)

	_, err = NewClient(config.Default(), Dependencies{Store: &fakeStore{}})
	assert.Error(t, err)
}

func TestClient_LoginSuccess(t *testing.T) {
	var licenseRequests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("type") == "license" {
			licenseRequests.Add(1)
			// Hyphens are display-only; the wire carries the bare key.
			assert.Equal(t, "ABCDEFGHIJKLMNOPQR", r.FormValue("key"))
			assert.Equal(t, "test-device-fingerprint", r.FormValue("hwid"))
			assert.NotEmpty(t, r.FormValue("sessionid"))
			w.Write([]byte(`{"success": true, "info": "{\"expiry\": \"2099-01-01 00:00:00\", \"created\": \"2025-06-01\"}"}`))
			return
		}
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))
	ctx := context.Background()

	result, err := client.Login(ctx, "ABCDEF-GHIJKL-MNOPQR")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2099, result.ExpiryDate.Year())
	assert.Equal(t, "2025-06-01", result.RegistrationDate)
	assert.Equal(t, int64(1), licenseRequests.Load())

	// Credentials persist in display form.
	assert.True(t, client.LoggedIn())
	assert.Equal(t, "ABCDEF-GHIJKL-MNOPQR", client.StoredLicenseKey())
}

func TestClient_LoginEmptyKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))

	_, err := client.Login(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, KindInvalidLicense, KindOf(err))
}

func TestClient_LoginInvalidKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("type") == "license" {
			w.Write([]byte(`{"success": false, "message": "Invalid license key"}`))
			return
		}
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))

	_, err := client.Login(context.Background(), "BADKEY")
	require.Error(t, err)
	assert.Equal(t, KindInvalidLicense, KindOf(err))
	assert.False(t, client.LoggedIn())
}

func TestClient_LoginRetriesOnceAfterSessionRejection(t *testing.T) {
	var licenseRequests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("type") == "license" {
			// First attempt is rejected at the session level, the retry
			// behind a refreshed session succeeds.
			if licenseRequests.Add(1) == 1 {
				w.Write([]byte(`{"success": false, "message": "Session error"}`))
				return
			}
			w.Write([]byte(`{"success": true, "info": "{\"expiry\": \"2099-01-01\"}"}`))
			return
		}
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))

	result, err := client.Login(context.Background(), "ABCDEFGHIJKLMNOPQR")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(2), licenseRequests.Load())
}

func TestClient_TransportFailureDoesNotRefreshSession(t *testing.T) {
	var initRequests, licenseRequests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.FormValue("type") {
		case "init":
			initRequests.Add(1)
			w.Write([]byte(`{"success": true}`))
		case "license":
			licenseRequests.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Write([]byte(`{"success": true}`))
		}
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))

	_, err := client.Login(context.Background(), "ABCDEFGHIJKLMNOPQR")
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))

	// The free endpoint switch plus the numeric budget, and nothing more:
	// a transport failure must not be laundered through a session refresh.
	assert.Equal(t, int64(4), licenseRequests.Load())
	assert.Equal(t, int64(1), initRequests.Load())
}

func TestClient_LoginThrottled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "info": "{\"expiry\": \"2099-01-01\"}"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))
	client.throttle = newLoginThrottle(1, time.Hour)
	ctx := context.Background()

	_, err := client.Login(ctx, "SAMEKEY")
	require.NoError(t, err)

	_, err = client.Login(ctx, "SAMEKEY")
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestClient_ValidateCurrentLicense(t *testing.T) {
	var sawKey atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("type") == "license" {
			sawKey.Store(r.FormValue("key"))
			w.Write([]byte(`{"success": true, "info": "{\"expiry\": \"2099-01-01\"}"}`))
			return
		}
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))
	ctx := context.Background()

	_, err := client.Login(ctx, "ABCDEFGHIJKLMNOPQR")
	require.NoError(t, err)

	_, err = client.ValidateCurrentLicense(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIJKLMNOPQR", sawKey.Load())
}

func TestClient_ValidateCurrentLicenseWithoutStoredKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))

	_, err := client.ValidateCurrentLicense(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNoLicenseStored, KindOf(err))
}

func TestClient_Logout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "info": "{\"expiry\": \"2099-01-01\"}"}`))
	}))
	defer server.Close()

	client, prefs := newTestClient(t, testClientConfig(server.URL))
	ctx := context.Background()

	_, err := client.Login(ctx, "ABCDEFGHIJKLMNOPQR")
	require.NoError(t, err)
	require.True(t, client.LoggedIn())

	require.NoError(t, client.Logout(ctx))

	assert.False(t, client.LoggedIn())
	assert.Empty(t, client.StoredLicenseKey())
	assert.Equal(t, SessionUninitialized, client.SessionState())

	_, ok := prefs.Get(storage.KeyLicenseKey)
	assert.False(t, ok)
}

func TestClient_DevModeLoginSkipsNetwork(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.DevMode = true
	client, _ := newTestClient(t, cfg)
	ctx := context.Background()

	require.NoError(t, client.Initialize(ctx))

	result, err := client.Login(ctx, "ANYKEYATALL")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Greater(t, result.RemainingDays(), 0)
	_, perr := time.Parse("2006-01-02", result.RegistrationDate)
	assert.NoError(t, perr, "registration date must be in canonical date form")
	assert.True(t, client.IsSessionValid(ctx))
	assert.True(t, client.LoggedIn())
	assert.Equal(t, int64(0), requests.Load())
}

func TestClient_DownloadFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			query := r.URL.Query()
			assert.Equal(t, "file", query.Get("type"))
			assert.Equal(t, "12345", query.Get("fileid"))
			assert.Equal(t, "com.bearmod.loader", query.Get("name"))
			assert.Equal(t, "yLoA9zcOEF", query.Get("ownerid"))
			assert.NotEmpty(t, query.Get("sessionid"))
			w.Write([]byte("binary payload"))
			return
		}
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))
	ctx := context.Background()
	require.NoError(t, client.Initialize(ctx))

	data, err := client.DownloadFile(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, []byte("binary payload"), data)
}

func TestClient_DownloadFileRequiresSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))

	_, err := client.DownloadFile(context.Background(), "12345")
	require.Error(t, err)
	assert.Equal(t, KindNotInitialized, KindOf(err))
}

func TestClient_ReportUsage(t *testing.T) {
	reported := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("type") == "log" {
			assert.Equal(t, "Feature used: export", r.FormValue("message"))
			assert.Equal(t, "operator1", r.FormValue("pcuser"))
			reported <- struct{}{}
		}
		w.Write([]byte(`{"success": true, "info": "{\"expiry\": \"2099-01-01\"}"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))
	ctx := context.Background()

	_, err := client.Login(ctx, "ABCDEFGHIJKLMNOPQR")
	require.NoError(t, err)

	client.ReportUsage(ctx, "export", "operator1")
	require.NoError(t, client.Close())

	select {
	case <-reported:
	default:
		t.Fatal("usage report never reached the server")
	}
}

func TestClient_ReportUsageSkippedWithoutLicense(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))

	client.ReportUsage(context.Background(), "export", "operator1")
	require.NoError(t, client.Close())

	assert.Equal(t, int64(0), requests.Load())
}

func TestClient_SetCustomDomainPersists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	client, prefs := newTestClient(t, cfg)
	ctx := context.Background()

	require.NoError(t, client.SetCustomDomain(ctx, "api.example.com"))
	assert.Equal(t, "api.example.com", client.CustomDomain())

	stored, ok := prefs.Get(storage.KeyCustomDomain)
	require.True(t, ok)
	assert.Equal(t, "api.example.com", stored)

	// A new client over the same prefs picks the domain back up.
	revived, err := NewClient(cfg, Dependencies{
		Store:       &fakeStore{},
		Credentials: storage.NewCredentials(prefs),
		Hardware:    fakeHardware{id: "test-device-fingerprint"},
		Prefs:       prefs,
	})
	require.NoError(t, err)
	defer revived.Close()
	assert.Equal(t, "api.example.com", revived.CustomDomain())

	// Clearing reverts to the built-in endpoints.
	require.NoError(t, client.SetCustomDomain(ctx, ""))
	assert.Empty(t, client.CustomDomain())
	_, ok = prefs.Get(storage.KeyCustomDomain)
	assert.False(t, ok)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	// Reports after Close are dropped, not queued.
	client.ReportUsage(context.Background(), "export", "x")
}

func TestClient_ReportUsageConcurrentWithClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "info": "{\"expiry\": \"2099-01-01\"}"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, testClientConfig(server.URL))
	ctx := context.Background()

	_, err := client.Login(ctx, "ABCDEFGHIJKLMNOPQR")
	require.NoError(t, err)

	// Reports racing Close must either register before the shutdown wait
	// or be dropped; neither path may trip the WaitGroup.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.ReportUsage(ctx, "export", "operator1")
		}()
	}
	require.NoError(t, client.Close())
	wg.Wait()
}
