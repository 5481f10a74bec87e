package logging

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDMiddleware reads the X-Request-Id header, generating one with
// uuid.New when absent, echoes it back on the response, and stashes it on
// the request context for ContextHandler to surface on every log line the
// handler emits.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", reqID)
		r = r.WithContext(WithRequestID(r.Context(), reqID))
		next.ServeHTTP(w, r)
	})
}
