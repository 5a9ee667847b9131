package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

const sessionCookieName = "session"

type contextKey string

const sessionIDKey contextKey = "session_id"

// EnsureSession assigns every request a signed session id cookie. A fresh
// uuid is issued when the cookie is absent or fails signature verification,
// so a tampered cookie simply starts a new conversation.
func EnsureSession(codec *securecookie.SecureCookie) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sid string
			if cookie, err := r.Cookie(sessionCookieName); err == nil {
				if err := codec.Decode(sessionCookieName, cookie.Value, &sid); err != nil {
					slog.Debug("rejecting session cookie", "error", err)
					sid = ""
				}
			}
			if sid == "" {
				sid = uuid.NewString()
				if encoded, err := codec.Encode(sessionCookieName, sid); err == nil {
					http.SetCookie(w, &http.Cookie{
						Name:     sessionCookieName,
						Value:    encoded,
						Path:     "/",
						HttpOnly: true,
						SameSite: http.SameSiteLaxMode,
					})
				} else {
					slog.Error("failed to encode session cookie", "error", err)
				}
				slog.Info("new session", "session_id", sid, "ip", r.RemoteAddr)
			}

			ctx := context.WithValue(r.Context(), sessionIDKey, sid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionID returns the session id stored on the context by EnsureSession,
// or an empty string when the middleware did not run.
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}

// responseWriter captures the status code and body size for request logging.
type responseWriter struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(status int) {
	if rw.wroteHeader {
		return
	}
	rw.status = status
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// RequestLogger emits one structured log line per request, correlated with
// the session id and request id.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"bytes", wrapped.size,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
			"session_id", SessionID(r.Context()),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
