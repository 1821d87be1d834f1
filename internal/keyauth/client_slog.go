package keyauth

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"bearloader/internal/infrastructure"
)

// logAction logs a client action with structured data and trace correlation
func (c *Client) logAction(ctx context.Context, level slog.Level, action, result string, attrs ...slog.Attr) {
	logger := infrastructure.LoggerWithContext(ctx)

	allAttrs := []slog.Attr{
		slog.String("component", "license_client"),
		slog.String("action", action),
	}
	allAttrs = append(allAttrs, attrs...)

	logger.LogAttrs(ctx, level, result, allAttrs...)
}

func (c *Client) logDebug(ctx context.Context, action, result string, attrs ...slog.Attr) {
	c.logAction(ctx, slog.LevelDebug, action, result, attrs...)
}

func (c *Client) logInfo(ctx context.Context, action, result string, attrs ...slog.Attr) {
	c.logAction(ctx, slog.LevelInfo, action, result, attrs...)
}

func (c *Client) logWarn(ctx context.Context, action, result string, attrs ...slog.Attr) {
	c.logAction(ctx, slog.LevelWarn, action, result, attrs...)
}

func (c *Client) logError(ctx context.Context, action, result string, attrs ...slog.Attr) {
	c.logAction(ctx, slog.LevelError, action, result, attrs...)
}

// maskLicenseKey masks the license key for logging: first and last four
// characters only.
func maskLicenseKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// hashLicenseKey creates a short stable hash of the license key for audit
// correlation without exposing the key itself.
func hashLicenseKey(key string) string {
	if key == "" {
		return ""
	}
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h)[:16]
}
