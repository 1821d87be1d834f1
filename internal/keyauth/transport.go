package keyauth

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bearloader/internal/config"
)

// maxResponseBytes bounds how much of a response body is read into memory
// for API calls. File downloads are not subject to this limit.
const maxResponseBytes = 1 << 20

// Transport performs single HTTP exchanges against a chosen endpoint. It
// is the only component that touches the network. Timeouts are enforced
// per call and TLS is restricted to versions 1.2 and 1.3.
type Transport struct {
	client *http.Client
}

// NewTransport creates a transport with the configured timeouts
func NewTransport(cfg config.HTTPConfig) *Transport {
	dialer := &net.Dialer{
		Timeout: cfg.ConnectTimeout,
	}

	return &Transport{
		client: &http.Client{
			// Overall ceiling per call; reads and writes cannot outlive it.
			Timeout: cfg.ConnectTimeout + cfg.ReadTimeout + cfg.WriteTimeout,
			Transport: &http.Transport{
				DialContext:           dialer.DialContext,
				TLSHandshakeTimeout:   cfg.ConnectTimeout,
				ResponseHeaderTimeout: cfg.ReadTimeout,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
					MaxVersion: tls.VersionTLS13,
				},
			},
		},
	}
}

// PostForm issues one form-encoded POST and returns the status code and
// body. A non-2xx status is not an error at this layer; the orchestrator
// owns that decision.
func (t *Transport) PostForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

// Get issues one GET and returns the status code and the raw body.
// Used for file downloads, so the body is not size-limited.
func (t *Transport) Get(ctx context.Context, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
