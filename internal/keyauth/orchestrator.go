package keyauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"bearloader/internal/config"
	"bearloader/internal/infrastructure"
)

// retryContext tracks one logical call's retry state. It exists only for
// the duration of a single execute and is never persisted.
type retryContext struct {
	attempts       int
	alternateTried bool
}

// orchestrator composes the Transport, the endpoint Selector and the
// ResponseCache into one operation: make a logical API call, handling
// cache hits, endpoint failover and bounded retries transparently.
type orchestrator struct {
	transport *Transport
	endpoints *Selector
	cache     *ResponseCache
	retry     config.RetryConfig
	metrics   *Metrics
}

func newOrchestrator(transport *Transport, endpoints *Selector, cache *ResponseCache, retry config.RetryConfig, metrics *Metrics) *orchestrator {
	return &orchestrator{
		transport: transport,
		endpoints: endpoints,
		cache:     cache,
		retry:     retry,
		metrics:   metrics,
	}
}

// execute performs one logical API call. With a non-empty cacheKey a fresh
// cached response short-circuits the network entirely, and a successful
// response is stored before returning. Business failures (success=false)
// are returned as a response, not an error; only the one alternate-endpoint
// retry applies to them. The retry loop has no wall-clock deadline of its
// own; callers bound it through ctx.
func (o *orchestrator) execute(ctx context.Context, form url.Values, cacheKey string) (*apiResponse, error) {
	logger := infrastructure.LoggerWithContext(ctx)

	if cacheKey != "" {
		if resp, ok := o.cache.Get(cacheKey); ok {
			logger.Debug("using cached response",
				slog.String("component", "orchestrator"),
				slog.String("cache_key", cacheKey),
			)
			o.metrics.recordCacheHit(ctx)
			return resp, nil
		}
		o.metrics.recordCacheMiss(ctx)
	}

	var rc retryContext
	for {
		endpoint := o.endpoints.ActiveURL()
		logger.Debug("making API request",
			slog.String("component", "orchestrator"),
			slog.String("endpoint", endpoint),
			slog.Int("attempt", rc.attempts+1),
			slog.Bool("alternate_tried", rc.alternateTried),
		)

		status, body, err := o.transport.PostForm(ctx, endpoint, form)
		if err != nil {
			if ctx.Err() != nil {
				return nil, wrapError(KindTransport, "request canceled", ctx.Err())
			}
			if retryErr := o.handleFailure(ctx, &rc, 0, err.Error()); retryErr != nil {
				return nil, wrapError(KindTransport, "network unavailable", err)
			}
			continue
		}

		if status < 200 || status > 299 {
			logger.Warn("API request failed",
				slog.String("component", "orchestrator"),
				slog.String("endpoint", endpoint),
				slog.Int("status", status),
			)
			if retryErr := o.handleFailure(ctx, &rc, status, string(body)); retryErr != nil {
				// Statuses that signal endpoint degradation exhaust as a
				// connectivity problem; anything else is a server fault.
				if suggestsFailover(status, string(body)) {
					return nil, newError(KindTransport, fmt.Sprintf("endpoint unavailable, last status %d", status))
				}
				return nil, newError(KindServer, fmt.Sprintf("API request failed with status %d", status))
			}
			continue
		}

		resp, perr := parseResponse(body)
		if perr != nil {
			// Malformed bodies are never retried.
			return nil, perr
		}

		if !resp.Success {
			// One alternate-endpoint retry when the message suggests a
			// degraded endpoint or a host-bound dead session; all other
			// business failures surface to the caller untouched.
			if !rc.alternateTried && !o.endpoints.UsingCustom() && messageSuggestsFailover(resp.Message) {
				logger.Info("switching endpoint based on error message",
					slog.String("component", "orchestrator"),
					slog.String("message", resp.Message),
					slog.String("new_endpoint", o.endpoints.Toggle()),
				)
				rc.alternateTried = true
				o.metrics.recordFailover(ctx)
				continue
			}
			return resp, nil
		}

		if cacheKey != "" {
			o.cache.Put(cacheKey, resp)
		}
		return resp, nil
	}
}

// handleFailure decides what a transport-level failure (connection error or
// non-2xx status) means for the retry loop: a nil return means "retry now",
// a non-nil return means the budget is exhausted. The alternate-endpoint
// switch happens at most once per logical call and does not consume the
// numeric budget.
func (o *orchestrator) handleFailure(ctx context.Context, rc *retryContext, status int, body string) error {
	logger := infrastructure.LoggerWithContext(ctx)

	// A custom domain replaces both endpoints, leaving nothing to fail
	// over to; such failures go straight to the numeric budget.
	if !rc.alternateTried && !o.endpoints.UsingCustom() && suggestsFailover(status, body) {
		logger.Info("switching to alternate endpoint",
			slog.String("component", "orchestrator"),
			slog.Int("status", status),
			slog.String("new_endpoint", o.endpoints.Toggle()),
		)
		rc.alternateTried = true
		o.metrics.recordFailover(ctx)
		return nil
	}

	rc.attempts++
	if rc.attempts >= o.retry.MaxAttempts {
		return fmt.Errorf("retry budget exhausted after %d attempts", rc.attempts)
	}

	o.metrics.recordRetry(ctx)
	logger.Debug("retrying API request after backoff",
		slog.String("component", "orchestrator"),
		slog.Int("attempt", rc.attempts),
		slog.Duration("backoff", o.retry.Backoff),
	)
	if err := sleepCtx(ctx, o.retry.Backoff); err != nil {
		return err
	}
	return nil
}

// downloadFile fetches raw file bytes from the file endpoint. No caching,
// no failover; transport errors surface directly.
func (o *orchestrator) downloadFile(ctx context.Context, fileURL string) ([]byte, error) {
	status, body, err := o.transport.Get(ctx, fileURL)
	if err != nil {
		return nil, wrapError(KindTransport, "file download failed", err)
	}
	if status != http.StatusOK {
		return nil, newError(KindServer, fmt.Sprintf("file download failed with status %d", status))
	}
	return body, nil
}
