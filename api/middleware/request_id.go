package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/cuisync/api/validators"
	"github.com/angelmondragon/cuisync/pkg/logger"
)

const (
	requestIDHeader     = "X-Request-Id"
	correlationIDHeader = "X-Correlation-Id"
	maxRequestIDLen     = 64
)

// RequestID keeps a caller supplied request id when it is a plain token and
// mints one otherwise. Minted ids carry the device name so a log line pulled
// from any terminal in the restaurant points back at the device that served
// it. The id is echoed back and logged.
func RequestID(deviceID string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := callerRequestID(r)
			if reqID == "" {
				reqID = mintRequestID(deviceID)
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := context.WithValue(r.Context(), ctxRequestID, reqID)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callerRequestID prefers X-Request-Id and falls back to X-Correlation-Id,
// which some tablet proxies set instead.
func callerRequestID(r *http.Request) string {
	for _, header := range []string{requestIDHeader, correlationIDHeader} {
		if id := r.Header.Get(header); validators.IsToken(id, maxRequestIDLen) {
			return id
		}
	}
	return ""
}

func mintRequestID(deviceID string) string {
	id := uuid.NewString()
	prefixed := deviceID + "-" + id
	if !validators.IsToken(prefixed, maxRequestIDLen) {
		return id
	}
	return prefixed
}
