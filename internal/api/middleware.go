package api

import (
	"net/http"
	"strings"

	"lectoria/internal/auth"
	"lectoria/internal/db"
	"lectoria/internal/models"
)

type AuthMiddleware struct {
	jwtService *auth.JWTService
	users      *db.UserRepository
	roles      *db.RoleRepository
}

func NewAuthMiddleware(jwtService *auth.JWTService, users *db.UserRepository, roles *db.RoleRepository) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService, users: users, roles: roles}
}

// RequireAuth resolves the bearer token to a user loaded fresh from the
// database, roles included. A token whose session version trails the
// account's current one is treated as expired.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.resolve(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

// OptionalAuth attaches the user when a valid token is present and passes
// the request through anonymously otherwise. The booking endpoint uses this
// to link orders to signed-in visitors.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, ok := m.resolve(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

// RequireAdminAccess allows admins, editors, and lecturers flagged for
// back-office access. Must run after RequireAuth.
func RequireAdminAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdminOrEditor(r.Context()) {
			forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows only users holding the role. Must run after RequireAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.HasRole(r.Context(), role) {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *AuthMiddleware) resolve(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		unauthorized(w, "Authorization header required")
		return nil, false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		unauthorized(w, "Invalid authorization header format")
		return nil, false
	}

	claims, err := m.jwtService.ValidateAccessToken(parts[1])
	if err != nil {
		unauthorized(w, "Invalid or expired token")
		return nil, false
	}

	user, err := m.users.FindByID(r.Context(), claims.UserID)
	if err != nil {
		unauthorized(w, "Invalid or expired token")
		return nil, false
	}
	if !user.IsActive || user.SessionVersion != claims.SessionVersion {
		unauthorized(w, "Invalid or expired token")
		return nil, false
	}

	user.Roles, err = m.roles.ForUser(r.Context(), user.ID)
	if err != nil {
		internalError(w)
		return nil, false
	}

	return user, true
}
