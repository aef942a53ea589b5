package middleware

import (
	"net/http"
	"strings"

	"github.com/HammerMeetNail/skillswap/internal/handlers"
	"github.com/HammerMeetNail/skillswap/internal/services"
)

const sessionCookieName = "session_token"

type AuthMiddleware struct {
	sessions services.SessionServiceInterface
}

func NewAuthMiddleware(sessions services.SessionServiceInterface) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// sessionToken reads the token from the session cookie or a bearer
// Authorization header. bearer reports which one was used.
func sessionToken(r *http.Request) (token string, bearer bool) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")), true
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value, false
	}
	return "", false
}

// Authenticate validates the session and adds user to context if valid.
// Does not reject unauthenticated requests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.sessions.ValidateSession(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := handlers.SetUserInContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects unauthenticated requests with 401.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handlers.GetUserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
