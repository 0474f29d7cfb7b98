package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lectoria/internal/models"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so repository helpers can
// run inside multi-step transactions owned by the workflow layer.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const userColumns = `id, username, email, password_hash, first_name, last_name, avatar,
	is_active, email_confirmed, can_access_admin, session_version,
	confirmation_token_hash, confirmation_token_expires,
	reset_token_hash, reset_token_expires, created_at, updated_at`

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

type CreateUserParams struct {
	Username       string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	IsActive       bool
	EmailConfirmed bool
}

func (r *UserRepository) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	return createUser(ctx, r.db, p)
}

// CreateTx creates a user inside a caller-owned transaction.
func (r *UserRepository) CreateTx(ctx context.Context, tx *sql.Tx, p CreateUserParams) (*models.User, error) {
	return createUser(ctx, tx, p)
}

func createUser(ctx context.Context, q queryer, p CreateUserParams) (*models.User, error) {
	id, err := GenerateID("usr")
	if err != nil {
		return nil, fmt.Errorf("generating user ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = q.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, first_name, last_name,
		    is_active, email_confirmed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Username, p.Email, p.PasswordHash, p.FirstName, p.LastName,
		p.IsActive, p.EmailConfirmed, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return &models.User{
		ID:             id,
		Username:       p.Username,
		Email:          p.Email,
		PasswordHash:   p.PasswordHash,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		IsActive:       p.IsActive,
		EmailConfirmed: p.EmailConfirmed,
		SessionVersion: 1,
		CreatedAt:      now,
	}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return usernameExists(ctx, r.db, username)
}

func (r *UserRepository) UsernameExistsTx(ctx context.Context, tx *sql.Tx, username string) (bool, error) {
	return usernameExists(ctx, tx, username)
}

func usernameExists(ctx context.Context, q queryer, username string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking username availability: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, username, email, firstName, lastName string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, first_name = ?, last_name = ?, updated_at = ? WHERE id = ?`,
		username, email, firstName, lastName, time.Now().UTC(), id,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("updating profile: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id, avatar string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET avatar = ?, updated_at = ? WHERE id = ?`,
		avatar, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating avatar: %w", err)
	}
	return checkRowsAffected(result)
}

// SetConfirmationToken stores the digest of a freshly issued email
// confirmation token together with its expiry.
func (r *UserRepository) SetConfirmationToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	return setConfirmationToken(ctx, r.db, id, tokenHash, expiresAt)
}

func (r *UserRepository) SetConfirmationTokenTx(ctx context.Context, tx *sql.Tx, id, tokenHash string, expiresAt time.Time) error {
	return setConfirmationToken(ctx, tx, id, tokenHash, expiresAt)
}

func setConfirmationToken(ctx context.Context, q queryer, id, tokenHash string, expiresAt time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE users SET confirmation_token_hash = ?, confirmation_token_expires = ?, updated_at = ? WHERE id = ?`,
		tokenHash, expiresAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("storing confirmation token: %w", err)
	}
	return checkRowsAffected(result)
}

// ConfirmByToken activates the user owning an unexpired confirmation token
// and clears the token in the same statement, so redemption is one-shot.
func (r *UserRepository) ConfirmByToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users
		    SET is_active = 1, email_confirmed = 1,
		        confirmation_token_hash = NULL, confirmation_token_expires = NULL,
		        updated_at = ?
		  WHERE confirmation_token_hash = ?
		    AND confirmation_token_expires > ?
		 RETURNING `+userColumns,
		now.UTC(), tokenHash, now.UTC(),
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("confirming user by token: %w", err)
	}
	return u, nil
}

// ActivateTx marks a user active and email-confirmed, clearing any pending
// confirmation token. Used when a booking confirmation piggybacks on the
// auto-created account.
func (r *UserRepository) ActivateTx(ctx context.Context, tx *sql.Tx, id string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE users
		    SET is_active = 1, email_confirmed = 1,
		        confirmation_token_hash = NULL, confirmation_token_expires = NULL,
		        updated_at = ?
		  WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("activating user: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = ?, reset_token_expires = ?, updated_at = ? WHERE id = ?`,
		tokenHash, expiresAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}
	return checkRowsAffected(result)
}

// ResetPasswordByToken overwrites the password hash of the user owning an
// unexpired reset token and clears the token in the same statement.
func (r *UserRepository) ResetPasswordByToken(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users
		    SET password_hash = ?,
		        reset_token_hash = NULL, reset_token_expires = NULL,
		        updated_at = ?
		  WHERE reset_token_hash = ?
		    AND reset_token_expires > ?
		 RETURNING `+userColumns,
		newPasswordHash, now.UTC(), tokenHash, now.UTC(),
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resetting password by token: %w", err)
	}
	return u, nil
}

// IncrementSessionVersion invalidates every outstanding access token for the
// user.
func (r *UserRepository) IncrementSessionVersion(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET session_version = session_version + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("incrementing session version: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var avatar, confirmHash, resetHash sql.NullString
	var updatedAt, confirmExpires, resetExpires sql.NullTime

	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &avatar,
		&u.IsActive, &u.EmailConfirmed, &u.CanAccessAdmin, &u.SessionVersion,
		&confirmHash, &confirmExpires,
		&resetHash, &resetExpires,
		&u.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Avatar = nullStringToPtr(avatar)
	u.ConfirmationTokenHash = nullStringToPtr(confirmHash)
	u.ConfirmationTokenExpires = nullTimeToPtr(confirmExpires)
	u.ResetTokenHash = nullStringToPtr(resetHash)
	u.ResetTokenExpires = nullTimeToPtr(resetExpires)
	u.UpdatedAt = nullTimeToPtr(updatedAt)

	return &u, nil
}
