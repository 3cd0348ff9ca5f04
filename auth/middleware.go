package auth

import (
	"context"
	"net/http"
	"strings"

	"liontech/database"
	"liontech/httpx"
	"liontech/model"
)

type ctxKey struct{}

// UserFromContext returns the user stored by RequireAuth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*model.User)
	return u, ok
}

func withUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// tokenFromRequest reads the session token from the Authorization header
// or the session cookie. Websocket upgrades may also pass it as the
// access_token query parameter, since browsers cannot set headers there.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// RequireAuth rejects requests without a valid session of an active user.
// The user row is reloaded so deactivation and role changes apply at once.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			httpx.WriteError(w, "Autenticação necessária.", http.StatusUnauthorized)
			return
		}
		claims, err := s.ParseToken(token)
		if err != nil {
			httpx.WriteError(w, "Sessão inválida ou expirada.", http.StatusUnauthorized)
			return
		}
		u, err := database.GetUserByID(r.Context(), s.db, claims.Subject)
		if err != nil || !u.Active {
			httpx.WriteError(w, "Sessão inválida ou expirada.", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}

// RequirePermission authenticates and then checks p against the user's
// role.
func (s *Service) RequirePermission(p Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, _ := UserFromContext(r.Context())
			if !Can(u.Role, p) {
				httpx.WriteError(w, "Você não tem permissão para esta ação.", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// Protect wraps a handler func with RequirePermission.
func (s *Service) Protect(p Permission, h http.HandlerFunc) http.Handler {
	return s.RequirePermission(p)(h)
}
