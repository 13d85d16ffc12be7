package telemetry

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/italolelis/youcast/internal/logctx"
)

type ctxKey string

const (
	requestIDKey    ctxKey = "request_id"
	RequestIDHeader        = "X-Request-ID"

	maxRequestIDLen = 128
)

// RequestID tags each API call with an id shared by its logs and its response.
// A caller-supplied X-Request-ID is kept when it looks sane so ids line up across
// proxies; anything else gets a fresh UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		ctx = logctx.WithAttrs(ctx, slog.String("request_id", id))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validRequestID accepts short ids made of visible ASCII, which keeps header
// values and log lines readable.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}

	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}

	return true
}

// GetRequestID reports the id attached by RequestID. Contexts outside a request
// yield "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)

	return id
}
