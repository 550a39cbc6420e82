package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mingyuchen/activity-tracker-go/token"
	"github.com/mingyuchen/activity-tracker-go/user"
)

type userContextKey struct{}

// UserFromContext returns the identity attached by RequireAuth. Handlers
// behind the gate can rely on ok being true.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*user.User)
	return u, ok
}

// RequireAuth gates a handler behind bearer-token authentication. The token
// is validated purely by signature and expiry; the refresh-token registry is
// never consulted here. A token whose subject no longer resolves to a user
// (deleted account, stale token) is rejected, not admitted anonymously.
func RequireAuth(tokens *token.Manager, users user.Store, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}

			subject, err := tokens.ParseSubject(raw)
			if err != nil {
				// Internal kinds (malformed vs signature vs expired) are for
				// the log only; the client sees one outcome.
				log.Debug("access token rejected", zap.NamedError("reason", err))
				unauthorized(w, "invalid token")
				return
			}

			u, err := users.GetByEmail(r.Context(), subject)
			if err != nil {
				if errors.Is(err, user.ErrNotFound) {
					log.Debug("token subject unresolved", zap.String("subject", subject))
					unauthorized(w, "invalid token")
					return
				}
				// A store outage is not the client's fault; a 401 here would
				// push every caller back through login for nothing.
				log.Error("user lookup failed", zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	raw := header[len(prefix):]
	if raw == "" {
		return "", false
	}
	return raw, true
}

func unauthorized(w http.ResponseWriter, reason string) {
	http.Error(w, "Unauthorized: "+reason, http.StatusUnauthorized)
}
