package auth

import (
	"context"
	"errors"
	"log"
	"net/http"

	"ledgerline-backend/internal/models"
	"ledgerline-backend/internal/session"
)

type contextKey string

const sessionKey contextKey = "ledgerline_session"

// Middleware resolves the session cookie against the store and injects the
// snapshot into the request context. Requests without a valid session never
// reach the wrapped handler.
func Middleware(sessions session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			sess, err := sessions.Get(r.Context(), cookie.Value)
			if errors.Is(err, session.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if err != nil {
				log.Printf("ERROR Session lookup failed: %v", err)
				writeError(w, http.StatusInternalServerError, "Session lookup failed")
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*models.Session)
	return sess, ok
}
