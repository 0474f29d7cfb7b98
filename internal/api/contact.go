package api

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"

	"lectoria/internal/email"
	"lectoria/internal/metrics"
)

type ContactFormHandler struct {
	mailer     email.Mailer
	metrics    metrics.Recorder
	siteName   string
	adminEmail string
}

func NewContactFormHandler(mailer email.Mailer, recorder metrics.Recorder, siteName, adminEmail string) *ContactFormHandler {
	return &ContactFormHandler{mailer: mailer, metrics: recorder, siteName: siteName, adminEmail: adminEmail}
}

// Submit handles the public contact form. An arithmetic captcha keeps the
// dumbest bots out: the form shows two numbers and posts them back with the
// visitor's sum.
func (h *ContactFormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}

	name := r.PostFormValue("name")
	fromEmail := r.PostFormValue("email")
	message := r.PostFormValue("message")

	if name == "" {
		badRequest(w, "name is required")
		return
	}
	if _, err := mail.ParseAddress(fromEmail); err != nil {
		badRequest(w, "invalid email format")
		return
	}
	if message == "" {
		badRequest(w, "message is required")
		return
	}

	x, errX := strconv.Atoi(r.PostFormValue("captcha_x"))
	y, errY := strconv.Atoi(r.PostFormValue("captcha_y"))
	answer, errA := strconv.Atoi(r.PostFormValue("captcha_answer"))
	if errX != nil || errY != nil || errA != nil || x+y != answer {
		badRequest(w, "wrong captcha answer")
		return
	}

	h.deliver(email.TemplateContactAdminAlert, "New contact form message", []string{h.adminEmail}, map[string]any{
		"Name":    name,
		"Email":   fromEmail,
		"Message": message,
	})
	h.deliver(email.TemplateContactConfirmation, "We received your message", []string{fromEmail}, map[string]any{
		"Name":     name,
		"SiteName": h.siteName,
		"Message":  message,
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "sent"})
}

func (h *ContactFormHandler) deliver(template, subject string, recipients []string, vars map[string]any) {
	if err := h.mailer.Deliver(subject, recipients, template, vars); err != nil {
		h.metrics.RecordEmailFailed(template)
		slog.Warn("email delivery failed", "component", "contact", "template", template, "error", err)
		return
	}
	h.metrics.RecordEmailSent(template)
}
