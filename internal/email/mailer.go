package email

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Template names accepted by Mailer.Deliver.
const (
	TemplateConfirmEmail             = "confirm_email"
	TemplateResetPassword            = "reset_password"
	TemplateOrderConfirmation        = "order_confirmation"
	TemplateOrderConfirmationNewUser = "order_confirmation_new_user"
	TemplateOrderAdminAlert          = "order_admin_alert"
	TemplateContactConfirmation      = "contact_confirmation"
	TemplateContactAdminAlert        = "contact_admin_alert"
)

// Mailer delivers a templated message to one or more recipients. Callers
// treat delivery as best effort: a failed send is logged and recorded, never
// allowed to roll back the state change that triggered it.
type Mailer interface {
	Deliver(subject string, recipients []string, templateName string, vars map[string]any) error
}

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

func renderTemplate(name string, vars map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".tmpl", vars); err != nil {
		return "", fmt.Errorf("rendering email template %q: %w", name, err)
	}
	return buf.String(), nil
}
