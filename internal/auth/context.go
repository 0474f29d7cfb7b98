package auth

import (
	"context"

	"lectoria/internal/models"
)

type contextKey string

const userContextKey contextKey = "authUser"

// WithUser stores the authenticated user on the request context. The user is
// loaded from the database on every request, so stale role or admin-flag
// state never outlives a single request.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok && user != nil
}

func IsAuthenticated(ctx context.Context) bool {
	_, ok := UserFromContext(ctx)
	return ok
}

func HasRole(ctx context.Context, role string) bool {
	user, ok := UserFromContext(ctx)
	return ok && user.HasRole(role)
}

// IsAdminOrEditor grants back-office access to admins, editors, and
// lecturers whose account carries the admin-access flag.
func IsAdminOrEditor(ctx context.Context) bool {
	user, ok := UserFromContext(ctx)
	if !ok {
		return false
	}
	if user.HasRole(models.RoleAdmin) || user.HasRole(models.RoleEditor) {
		return true
	}
	return user.HasRole(models.RoleLecturer) && user.CanAccessAdmin
}

func IsLecturerWithAdminAccess(ctx context.Context) bool {
	user, ok := UserFromContext(ctx)
	return ok && user.HasRole(models.RoleLecturer) && user.CanAccessAdmin
}
