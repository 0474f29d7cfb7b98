// Package booking implements the request-confirm workflow behind the order
// form, together with the account lifecycle that hangs off it: email
// confirmation, password reset, and the auto-created accounts a booking
// leaves behind.
package booking

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"lectoria/internal/auth"
	"lectoria/internal/db"
	"lectoria/internal/email"
	"lectoria/internal/metrics"
	"lectoria/internal/models"
)

const usernameSuffixAttempts = 5

type Service struct {
	db       *db.DB
	users    *db.UserRepository
	roles    *db.RoleRepository
	lectures *db.LectureRepository
	orders   *db.OrderRepository
	mailer   email.Mailer
	metrics  metrics.Recorder
	logger   *slog.Logger

	siteName   string
	baseURL    string
	adminEmail string
	tokenTTL   time.Duration
}

type Config struct {
	SiteName   string
	BaseURL    string
	AdminEmail string
	TokenTTL   time.Duration
}

func NewService(database *db.DB, mailer email.Mailer, recorder metrics.Recorder, logger *slog.Logger, cfg Config) *Service {
	return &Service{
		db:         database,
		users:      db.NewUserRepository(database),
		roles:      db.NewRoleRepository(database),
		lectures:   db.NewLectureRepository(database),
		orders:     db.NewOrderRepository(database),
		mailer:     mailer,
		metrics:    recorder,
		logger:     logger,
		siteName:   cfg.SiteName,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		adminEmail: cfg.AdminEmail,
		tokenTTL:   cfg.TokenTTL,
	}
}

type BookingRequest struct {
	Name         string
	Email        string
	Phone        string
	Organization string
	Message      string
}

type SubmitResult struct {
	Order            *models.Order
	User             *models.User
	CreatedUser      bool
	NotificationSent bool
}

// SubmitBooking records a booking request for an active lecture and issues
// its confirmation token. The caller identity wins when present; otherwise
// the request email is matched against existing accounts, and failing that
// an inactive account is created on the visitor's behalf. The order, the
// token, and any new account commit in one transaction. Emails go out after
// the commit and never undo it.
func (s *Service) SubmitBooking(ctx context.Context, lectureID string, req BookingRequest, callerID string) (*SubmitResult, error) {
	if err := validateBookingRequest(&req); err != nil {
		return nil, err
	}

	lecture, err := s.lectures.FindActiveByID(ctx, lectureID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrLectureNotFound
	}
	if err != nil {
		return nil, err
	}

	user, created, err := s.resolveIdentity(ctx, req, callerID)
	if err != nil {
		return nil, err
	}

	rawToken, err := auth.GenerateToken()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if created {
		user, err = s.createAccountTx(ctx, tx, req)
		if err != nil {
			return nil, err
		}
	}

	order, err := s.orders.CreateTx(ctx, tx, db.CreateOrderParams{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Organization: req.Organization,
		Message:      req.Message,
		LectureID:    lecture.ID,
		UserID:       user.ID,
		TokenHash:    auth.HashToken(rawToken),
		TokenExpires: time.Now().Add(s.tokenTTL),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing booking: %w", err)
	}

	s.metrics.RecordBookingSubmitted()

	sent := s.notifyBookingSubmitted(req, lecture, user, created, rawToken)

	return &SubmitResult{
		Order:            order,
		User:             user,
		CreatedUser:      created,
		NotificationSent: sent,
	}, nil
}

// ConfirmBooking redeems a booking confirmation token. Redemption is
// strictly one-shot: the conditional update matches only a pending order
// whose token is unexpired, and clears the token as it confirms. When the
// order's account is still awaiting activation, confirming the booking
// activates it in the same transaction.
func (s *Service) ConfirmBooking(ctx context.Context, rawToken string) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.orders.ConfirmByTokenTx(ctx, tx, auth.HashToken(rawToken), time.Now())
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, err
	}

	if order.UserID != nil {
		if err := s.users.ActivateTx(ctx, tx, *order.UserID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing confirmation: %w", err)
	}

	s.metrics.RecordBookingConfirmed()
	s.logger.Info("booking confirmed", "component", "booking", "order_id", order.ID)

	return order, nil
}

type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates an inactive account and emails its confirmation link.
// Account, role, and token commit in one transaction so a storage failure
// cannot strand a half-created account that blocks the email forever.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := validateRegisterRequest(&req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	rawToken, err := auth.GenerateToken()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	user, err := s.users.CreateTx(ctx, tx, db.CreateUserParams{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	})
	if err != nil {
		return nil, err
	}
	if err := s.roles.AssignTx(ctx, tx, user.ID, models.RoleUser); err != nil {
		return nil, err
	}
	if err := s.users.SetConfirmationTokenTx(ctx, tx, user.ID, auth.HashToken(rawToken), time.Now().Add(s.tokenTTL)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing registration: %w", err)
	}

	s.deliver(email.TemplateConfirmEmail, "Confirm your email", []string{user.Email}, map[string]any{
		"Name":       displayName(user),
		"SiteName":   s.siteName,
		"ConfirmURL": s.baseURL + "/auth/confirm/" + rawToken,
		"Hours":      int(s.tokenTTL.Hours()),
	})

	return user, nil
}

// ConfirmEmail redeems an email confirmation token, activating the account.
func (s *Service) ConfirmEmail(ctx context.Context, rawToken string) (*models.User, error) {
	user, err := s.users.ConfirmByToken(ctx, auth.HashToken(rawToken), time.Now())
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RequestPasswordReset issues a reset token for the account owning the
// email. An unknown email fails visibly with ErrAccountNotFound rather than
// pretending to succeed.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	user, err := s.users.FindByEmail(ctx, emailAddr)
	if errors.Is(err, db.ErrNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}

	rawToken, err := auth.GenerateToken()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, auth.HashToken(rawToken), time.Now().Add(s.tokenTTL)); err != nil {
		return err
	}

	err = s.mailer.Deliver("Reset your password", []string{user.Email}, email.TemplateResetPassword, map[string]any{
		"Name":     displayName(user),
		"SiteName": s.siteName,
		"ResetURL": s.baseURL + "/auth/reset_password/" + rawToken,
		"Hours":    int(s.tokenTTL.Hours()),
	})
	if err != nil {
		s.metrics.RecordEmailFailed(email.TemplateResetPassword)
		return fmt.Errorf("sending reset email: %w", err)
	}
	s.metrics.RecordEmailSent(email.TemplateResetPassword)

	return nil
}

// CompletePasswordReset redeems a reset token and replaces the password.
// Completing a reset also bumps the session version so outstanding access
// tokens die with the old password.
func (s *Service) CompletePasswordReset(ctx context.Context, rawToken, newPassword string) (*models.User, error) {
	if len(newPassword) < 8 {
		return nil, &ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	user, err := s.users.ResetPasswordByToken(ctx, auth.HashToken(rawToken), hash, time.Now())
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, err
	}

	if err := s.users.IncrementSessionVersion(ctx, user.ID); err != nil {
		return nil, err
	}

	return user, nil
}

// resolveIdentity picks the account an order belongs to without writing
// anything. Account creation happens later, inside the order's transaction.
func (s *Service) resolveIdentity(ctx context.Context, req BookingRequest, callerID string) (*models.User, bool, error) {
	if callerID != "" {
		user, err := s.users.FindByID(ctx, callerID)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, err
	}

	return nil, true, nil
}

// createAccountTx creates the inactive account a visitor's first booking
// leaves behind. The handle derives from the email local part, with a
// random 3-digit suffix on collision. The password is random and never
// disclosed; the visitor picks their own through the reset flow.
func (s *Service) createAccountTx(ctx context.Context, tx *sql.Tx, req BookingRequest) (*models.User, error) {
	username, err := s.deriveUsername(ctx, tx, req.Email)
	if err != nil {
		return nil, err
	}

	throwaway, err := auth.RandomPassword()
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(throwaway)
	if err != nil {
		return nil, err
	}

	first, last := splitName(req.Name)
	user, err := s.users.CreateTx(ctx, tx, db.CreateUserParams{
		Username:     username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
	})
	if err != nil {
		return nil, err
	}
	if err := s.roles.AssignTx(ctx, tx, user.ID, models.RoleUser); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) deriveUsername(ctx context.Context, tx *sql.Tx, emailAddr string) (string, error) {
	base := strings.ToLower(strings.SplitN(emailAddr, "@", 2)[0])
	base = sanitizeHandle(base)
	if base == "" {
		base = "user"
	}

	taken, err := s.users.UsernameExistsTx(ctx, tx, base)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}

	for range usernameSuffixAttempts {
		n, err := rand.Int(rand.Reader, big.NewInt(1000))
		if err != nil {
			return "", fmt.Errorf("generating username suffix: %w", err)
		}
		candidate := fmt.Sprintf("%s%03d", base, n.Int64())
		taken, err := s.users.UsernameExistsTx(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no free username for %q", base)
}

func (s *Service) notifyBookingSubmitted(req BookingRequest, lecture *models.Lecture, user *models.User, created bool, rawToken string) bool {
	confirmURL := s.baseURL + "/order/confirm/" + rawToken
	hours := int(s.tokenTTL.Hours())

	template := email.TemplateOrderConfirmation
	vars := map[string]any{
		"Name":         req.Name,
		"SiteName":     s.siteName,
		"LectureTitle": lecture.Title,
		"ConfirmURL":   confirmURL,
		"Hours":        hours,
	}
	if created {
		template = email.TemplateOrderConfirmationNewUser
		vars["Username"] = user.Username
		vars["ResetFormURL"] = s.baseURL + "/auth/reset_password_request"
	}

	sent := s.deliver(template, "Confirm your booking request", []string{req.Email}, vars)

	s.deliver(email.TemplateOrderAdminAlert, "New booking request", []string{s.adminEmail}, map[string]any{
		"LectureTitle": lecture.Title,
		"Name":         req.Name,
		"Email":        req.Email,
		"Phone":        req.Phone,
		"Organization": req.Organization,
		"Message":      req.Message,
	})

	return sent
}

// deliver sends one templated email, logging and counting failures without
// propagating them.
func (s *Service) deliver(template, subject string, recipients []string, vars map[string]any) bool {
	if err := s.mailer.Deliver(subject, recipients, template, vars); err != nil {
		s.metrics.RecordEmailFailed(template)
		s.logger.Warn("email delivery failed",
			"component", "booking", "template", template, "error", err)
		return false
	}
	s.metrics.RecordEmailSent(template)
	return true
}

func validateBookingRequest(req *BookingRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if req.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if req.Email == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return &ValidationError{Field: "email", Reason: "is not a valid email address"}
	}
	return nil
}

func validateRegisterRequest(req *RegisterRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if req.Username == "" {
		return &ValidationError{Field: "username", Reason: "is required"}
	}
	if req.Email == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return &ValidationError{Field: "email", Reason: "is not a valid email address"}
	}
	if len(req.Password) < 8 {
		return &ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	return nil
}

func sanitizeHandle(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func displayName(u *models.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}
