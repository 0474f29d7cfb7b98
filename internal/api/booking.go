package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lectoria/internal/auth"
	"lectoria/internal/booking"
)

type BookingHandler struct {
	service *booking.Service
}

func NewBookingHandler(service *booking.Service) *BookingHandler {
	return &BookingHandler{service: service}
}

// Submit takes the public order form. Signed-in visitors are linked by
// their token; everyone else by email.
func (h *BookingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}

	req := booking.BookingRequest{
		Name:         r.PostFormValue("name"),
		Email:        r.PostFormValue("email"),
		Phone:        r.PostFormValue("phone"),
		Organization: r.PostFormValue("organization"),
		Message:      r.PostFormValue("message"),
	}

	var callerID string
	if user, ok := auth.UserFromContext(r.Context()); ok {
		callerID = user.ID
	}

	result, err := h.service.SubmitBooking(r.Context(), chi.URLParam(r, "lectureID"), req, callerID)
	if err != nil {
		var verr *booking.ValidationError
		switch {
		case errors.As(err, &verr):
			badRequest(w, verr.Error())
		case errors.Is(err, booking.ErrLectureNotFound):
			notFound(w, "Lecture not found")
		default:
			internalError(w)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order":            result.Order,
		"accountCreated":   result.CreatedUser,
		"notificationSent": result.NotificationSent,
	})
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.ConfirmBooking(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		if errors.Is(err, booking.ErrInvalidOrExpiredToken) {
			invalidToken(w)
			return
		}
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}
