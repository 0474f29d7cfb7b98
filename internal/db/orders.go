package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"lectoria/internal/models"
)

const orderColumns = `id, name, email, phone, organization, message, lecture_id, user_id, lecturer_id,
	status, is_confirmed, confirmation_token_hash, confirmation_token_expires,
	lecture_date, created_at, updated_at`

type OrderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

type CreateOrderParams struct {
	Name         string
	Email        string
	Phone        string
	Organization string
	Message      string
	LectureID    string
	UserID       string
	TokenHash    string
	TokenExpires time.Time
}

// CreateTx persists a new pending, unconfirmed order carrying its
// confirmation token digest. The unique index on the digest column is the
// token-collision guard.
func (r *OrderRepository) CreateTx(ctx context.Context, tx *sql.Tx, p CreateOrderParams) (*models.Order, error) {
	id, err := GenerateID("ord")
	if err != nil {
		return nil, fmt.Errorf("generating order ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_forms (id, name, email, phone, organization, message, lecture_id, user_id,
		    status, is_confirmed, confirmation_token_hash, confirmation_token_expires, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		id, p.Name, p.Email, p.Phone, p.Organization, p.Message, p.LectureID, p.UserID,
		models.StatusPending, p.TokenHash, p.TokenExpires.UTC(), now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating order: %w", err)
	}

	userID := p.UserID
	return &models.Order{
		ID:                       id,
		Name:                     p.Name,
		Email:                    p.Email,
		Phone:                    p.Phone,
		Organization:             p.Organization,
		Message:                  p.Message,
		LectureID:                p.LectureID,
		UserID:                   &userID,
		Status:                   models.StatusPending,
		ConfirmationTokenHash:    &p.TokenHash,
		ConfirmationTokenExpires: &p.TokenExpires,
		CreatedAt:                now,
	}, nil
}

// ConfirmByTokenTx transitions the pending order owning an unexpired
// confirmation token to confirmed, clearing the token in the same statement.
// A cleared or expired token matches nothing, which makes redemption
// strictly one-shot.
func (r *OrderRepository) ConfirmByTokenTx(ctx context.Context, tx *sql.Tx, tokenHash string, now time.Time) (*models.Order, error) {
	row := tx.QueryRowContext(ctx,
		`UPDATE order_forms
		    SET status = ?, is_confirmed = 1,
		        confirmation_token_hash = NULL, confirmation_token_expires = NULL,
		        updated_at = ?
		  WHERE confirmation_token_hash = ?
		    AND confirmation_token_expires > ?
		    AND status = ?
		 RETURNING `+orderColumns,
		models.StatusConfirmed, now.UTC(), tokenHash, now.UTC(), models.StatusPending,
	)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("confirming order by token: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM order_forms WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]*models.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM order_forms ORDER BY created_at DESC`)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM order_forms WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// ListByLecturer returns orders assigned to a lecturer, optionally limited
// to a half-open lecture_date window [from, to). Orders without a scheduled
// date fall outside any window.
func (r *OrderRepository) ListByLecturer(ctx context.Context, lecturerID string, from, to *time.Time) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM order_forms WHERE lecturer_id = ?`
	args := []any{lecturerID}
	var conds []string
	if from != nil {
		conds = append(conds, `lecture_date >= ?`)
		args = append(args, from.UTC())
	}
	if to != nil {
		conds = append(conds, `lecture_date < ?`)
		args = append(args, to.UTC())
	}
	if len(conds) > 0 {
		query += ` AND ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY created_at DESC`
	return r.list(ctx, query, args...)
}

type OperatorUpdateParams struct {
	Status      *string
	LecturerID  *string
	LectureDate *time.Time
}

// OperatorUpdate applies an operator-side change to an order. Transition
// legality is the caller's responsibility.
func (r *OrderRepository) OperatorUpdate(ctx context.Context, id string, p OperatorUpdateParams) error {
	sets := []string{`updated_at = ?`}
	args := []any{time.Now().UTC()}
	if p.Status != nil {
		sets = append(sets, `status = ?`)
		args = append(args, *p.Status)
	}
	if p.LecturerID != nil {
		sets = append(sets, `lecturer_id = ?`)
		args = append(args, *p.LecturerID)
	}
	if p.LectureDate != nil {
		sets = append(sets, `lecture_date = ?`)
		args = append(args, p.LectureDate.UTC())
	}
	args = append(args, id)

	result, err := r.db.ExecContext(ctx,
		`UPDATE order_forms SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var userID, lecturerID, tokenHash sql.NullString
	var tokenExpires, lectureDate, updatedAt sql.NullTime

	err := row.Scan(&o.ID, &o.Name, &o.Email, &o.Phone, &o.Organization, &o.Message,
		&o.LectureID, &userID, &lecturerID,
		&o.Status, &o.IsConfirmed, &tokenHash, &tokenExpires,
		&lectureDate, &o.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	o.UserID = nullStringToPtr(userID)
	o.LecturerID = nullStringToPtr(lecturerID)
	o.ConfirmationTokenHash = nullStringToPtr(tokenHash)
	o.ConfirmationTokenExpires = nullTimeToPtr(tokenExpires)
	o.LectureDate = nullTimeToPtr(lectureDate)
	o.UpdatedAt = nullTimeToPtr(updatedAt)
	return &o, nil
}
