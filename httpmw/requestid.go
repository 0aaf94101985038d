// Package httpmw holds the small cross-cutting HTTP middleware shared by
// the relay and keyserver services.
package httpmw

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type contextKey int

const requestIDKey contextKey = 0

// RequestIDHeader is the response (and, if present, request) header
// carrying the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// RequestID returns a mux middleware that assigns every request a UUIDv4
// correlation id, echoes it on the response, and binds it into a
// request-scoped logger stored on the request context. A caller-supplied
// id (a proxy or client that already minted one) is reused instead of
// replaced.
func RequestID(base zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, id)

			logger := base.With().Str("request_id", id).Logger()
			ctx := context.WithValue(r.Context(), requestIDKey, id)
			ctx = logger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext returns the correlation id bound by RequestID, or
// "" if the request never passed through the middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Logger returns the request-scoped logger bound by RequestID. Outside the
// middleware chain it returns zerolog's DefaultContextLogger when one is
// set, and a disabled logger otherwise.
func Logger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
