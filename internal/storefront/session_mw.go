package storefront

import (
	"context"
	"errors"
	"net/http"

	"SpiceStore/internal/session"
	"SpiceStore/pkg/kit"
)

type ctxKey string

const sessionKey ctxKey = "session"

func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*session.Session)
	return s, ok
}

// RequireSession resolves the bearer token to a live session.
func RequireSession(tokens *session.TokenMaker, sessions *session.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := kit.BearerToken(r)
			if !ok {
				kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
				return
			}

			claims, err := tokens.Parse(tok)
			if err != nil {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			s, err := sessions.Get(claims.SessionID)
			if errors.Is(err, session.ErrNotFound) || (err == nil && s.Portal != claims.Portal) {
				kit.WriteError(w, r, http.StatusUnauthorized, "session expired", nil)
				return
			}
			if err != nil {
				kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
