package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/cuisync/api/validators"
	"github.com/angelmondragon/cuisync/pkg/logger"
)

type contextKey string

const (
	ctxDeviceID  contextKey = "device_id"
	ctxRequestID contextKey = "request_id"

	// ClientHeader names the terminal (register, kitchen screen) driving this device.
	ClientHeader = "X-Cuisync-Client"
)

// DeviceIDFromContext returns the id of the device serving the request.
func DeviceIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxDeviceID)
}

// RequestIDFromContext returns the id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRequestID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// WithDeviceID injects the device identifier into the context.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxDeviceID, deviceID)
}

// DeviceContext tags every request with the device this process runs as.
// The device itself is already on every log entry; only the calling
// terminal, when announced, is added to the request logs.
func DeviceContext(deviceID string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithDeviceID(r.Context(), deviceID)
			if client := validators.SanitizeString(r.Header.Get(ClientHeader), 64); client != "" && logg != nil {
				ctx = logg.WithField(ctx, "client", client)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
