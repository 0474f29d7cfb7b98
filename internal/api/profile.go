package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"lectoria/internal/auth"
	"lectoria/internal/blob"
	"lectoria/internal/db"
	"lectoria/internal/models"
)

type ProfileHandler struct {
	users  *db.UserRepository
	orders *db.OrderRepository
	blobs  *blob.Service
}

func NewProfileHandler(users *db.UserRepository, orders *db.OrderRepository, blobs *blob.Service) *ProfileHandler {
	return &ProfileHandler{users: users, orders: orders, blobs: blobs}
}

// Get returns the profile with the user's own orders. Lecturers also see
// the orders assigned to them, optionally windowed by from/to dates.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		unauthorized(w, "Authentication required")
		return
	}

	own, err := h.orders.ListByUser(r.Context(), user.ID)
	if err != nil {
		internalError(w)
		return
	}

	response := map[string]any{
		"user":   publicUser(user),
		"orders": own,
	}

	if user.HasRole(models.RoleLecturer) {
		from, err := parseDate(r.URL.Query().Get("from"))
		if err != nil {
			badRequest(w, "from must be a YYYY-MM-DD date")
			return
		}
		to, err := parseDate(r.URL.Query().Get("to"))
		if err != nil {
			badRequest(w, "to must be a YYYY-MM-DD date")
			return
		}
		if to != nil {
			// The window is inclusive of the to date, so the repository gets
			// the following midnight as its exclusive bound.
			end := to.Add(24 * time.Hour)
			to = &end
		}
		assigned, err := h.orders.ListByLecturer(r.Context(), user.ID, from, to)
		if err != nil {
			internalError(w)
			return
		}
		response["assignedOrders"] = assigned
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		unauthorized(w, "Authentication required")
		return
	}

	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}

	username := r.PostFormValue("username")
	email := r.PostFormValue("email")
	if username == "" {
		username = user.Username
	}
	if email == "" {
		email = user.Email
	}
	if _, err := mail.ParseAddress(email); err != nil {
		badRequest(w, "invalid email format")
		return
	}

	firstName := r.PostFormValue("first_name")
	lastName := r.PostFormValue("last_name")

	err := h.users.UpdateProfile(r.Context(), user.ID, username, email, firstName, lastName)
	if errors.Is(err, db.ErrDuplicate) {
		conflict(w, "Username or email already taken")
		return
	}
	if err != nil {
		internalError(w)
		return
	}

	updated, err := h.users.FindByID(r.Context(), user.ID)
	if err != nil {
		internalError(w)
		return
	}
	updated.Roles = user.Roles

	writeJSON(w, http.StatusOK, map[string]any{"user": publicUser(updated)})
}

// UploadAvatar replaces the user's avatar with an uploaded image. The old
// avatar file is removed once the new one is committed.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		unauthorized(w, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(nil, r.Body, h.blobs.MaxUploadBytes())
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			payloadTooLarge(w, "File exceeds maximum upload size")
		} else {
			badRequest(w, "Invalid multipart upload")
		}
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "File field 'file' is required")
		return
	}
	defer file.Close()

	stored, err := h.blobs.SaveAvatar(file)
	if errors.Is(err, blob.ErrFileTooLarge) {
		payloadTooLarge(w, "File exceeds maximum upload size")
		return
	}
	if errors.Is(err, blob.ErrDisallowedType) {
		badRequest(w, "Avatar must be a JPEG, PNG, GIF, or WebP image")
		return
	}
	if err != nil {
		slog.Error("error saving avatar", "error", err, "user_id", user.ID)
		internalError(w)
		return
	}

	avatarURL := "/media/" + stored.StoragePath
	if err := h.users.UpdateAvatar(r.Context(), user.ID, avatarURL); err != nil {
		_ = h.blobs.Delete(stored.StoragePath)
		internalError(w)
		return
	}

	if old := user.Avatar; old != nil {
		if path, found := strings.CutPrefix(*old, "/media/"); found {
			if err := h.blobs.Delete(path); err != nil {
				slog.Warn("error deleting previous avatar", "error", err, "user_id", user.ID)
			}
		}
	}

	updated, err := h.users.FindByID(r.Context(), user.ID)
	if err != nil {
		internalError(w)
		return
	}
	updated.Roles = user.Roles

	writeJSON(w, http.StatusOK, map[string]any{"user": publicUser(updated)})
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
