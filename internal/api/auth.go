package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lectoria/internal/auth"
	"lectoria/internal/booking"
	"lectoria/internal/db"
	"lectoria/internal/models"
)

type AuthHandler struct {
	service    *booking.Service
	users      *db.UserRepository
	roles      *db.RoleRepository
	jwtService *auth.JWTService
}

func NewAuthHandler(service *booking.Service, users *db.UserRepository, roles *db.RoleRepository, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{service: service, users: users, roles: roles, jwtService: jwtService}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}

	user, err := h.service.Register(r.Context(), booking.RegisterRequest{
		Username:  r.PostFormValue("username"),
		Email:     r.PostFormValue("email"),
		Password:  r.PostFormValue("password"),
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
	})
	if err != nil {
		var verr *booking.ValidationError
		switch {
		case errors.As(err, &verr):
			badRequest(w, verr.Error())
		case errors.Is(err, db.ErrDuplicate):
			conflict(w, "Username or email already taken")
		default:
			internalError(w)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": publicUser(user)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}

	user, err := h.users.FindByEmail(r.Context(), r.PostFormValue("email"))
	if err != nil || !auth.VerifyPassword(user.PasswordHash, r.PostFormValue("password")) {
		authFailed(w)
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, ErrCodeAuthFailed, "Account is not activated")
		return
	}

	token, err := h.jwtService.GenerateAccessToken(user)
	if err != nil {
		internalError(w)
		return
	}

	user.Roles, err = h.roles.ForUser(r.Context(), user.ID)
	if err != nil {
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token.Token,
		"expiresAt": token.ExpiresAt,
		"user":      publicUser(user),
	})
}

// Logout bumps the session version, invalidating every outstanding token
// for the account.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		unauthorized(w, "Authentication required")
		return
	}

	if err := h.users.IncrementSessionVersion(r.Context(), user.ID); err != nil {
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "logged out"})
}

func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.ConfirmEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		if errors.Is(err, booking.ErrInvalidOrExpiredToken) {
			invalidToken(w)
			return
		}
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": publicUser(user)})
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}

	err := h.service.RequestPasswordReset(r.Context(), r.PostFormValue("email"))
	if err != nil {
		if errors.Is(err, booking.ErrAccountNotFound) {
			notFound(w, "No account with that email")
			return
		}
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "reset email sent"})
}

func (h *AuthHandler) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}

	user, err := h.service.CompletePasswordReset(r.Context(), chi.URLParam(r, "token"), r.PostFormValue("password"))
	if err != nil {
		var verr *booking.ValidationError
		switch {
		case errors.As(err, &verr):
			badRequest(w, verr.Error())
		case errors.Is(err, booking.ErrInvalidOrExpiredToken):
			invalidToken(w)
		default:
			internalError(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": publicUser(user)})
}

// publicUser strips fields that never leave the API.
func publicUser(u *models.User) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"username":  u.Username,
		"email":     u.Email,
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"avatar":    u.Avatar,
		"isActive":  u.IsActive,
		"roles":     u.Roles,
	}
}
