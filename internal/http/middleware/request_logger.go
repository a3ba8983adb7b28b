package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/curasoft/emr-assist/pkg/logging"
)

// RequestLogger emits one structured line per request, carrying the chi
// request ID and, where the route exposes it, the conversation the call
// belongs to, so a booking flow can be traced across turns.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			l := logger.With(
				"request_id", chimiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			if id := conversationID(r); id != "" {
				l = l.With("conversation_id", id)
			}
			l.Info("http request",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"remote_ip", r.RemoteAddr,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// conversationID pulls the conversation from wherever the route carries
// it: the REST path or the webchat session query parameter.
func conversationID(r *http.Request) string {
	if id := chiURLParam(r, "conversationID"); id != "" {
		return id
	}
	return r.URL.Query().Get("session")
}

func chiURLParam(r *http.Request, key string) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.URLParam(key)
	}
	return ""
}
