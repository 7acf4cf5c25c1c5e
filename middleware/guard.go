package middleware

import (
	"context"
	"net/http"

	"github.com/ibraheemosule/flybeth-sub002/backing"
)

// SessionHeader carries the opaque session key issued at login.
const SessionHeader = "X-Session-Key"

type sessionContextKey struct{}

// SessionFromContext returns the session record injected by
// [SessionGuard].
func SessionFromContext(ctx context.Context) (*backing.SessionRecord, bool) {
	record, ok := ctx.Value(sessionContextKey{}).(*backing.SessionRecord)
	return record, ok
}

// SessionGuard returns middleware that resolves the session key header
// against the session store and injects the record into the request
// context. A missing key, an expired session, and a backing store outage
// all reject with 401; the guard never fails open.
func SessionGuard(sessions *backing.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			key := r.Header.Get(SessionHeader)
			if key == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			record, err := sessions.Get(r.Context(), key)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, record)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
