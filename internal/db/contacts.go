package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lectoria/internal/models"
)

const contactColumns = `id, name, email, phone, address, position, description, image, is_active, sort_order`

type ContactRepository struct {
	db *DB
}

func NewContactRepository(db *DB) *ContactRepository {
	return &ContactRepository{db: db}
}

type ContactParams struct {
	Name        string
	Email       string
	Phone       string
	Address     string
	Position    string
	Description string
	Image       *string
	IsActive    bool
	SortOrder   int
}

func (r *ContactRepository) Create(ctx context.Context, p ContactParams) (*models.Contact, error) {
	id, err := GenerateID("con")
	if err != nil {
		return nil, fmt.Errorf("generating contact ID: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO contacts (id, name, email, phone, address, position, description, image, is_active, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Name, p.Email, p.Phone, p.Address, p.Position, p.Description, p.Image, p.IsActive, p.SortOrder,
	)
	if err != nil {
		return nil, fmt.Errorf("creating contact: %w", err)
	}

	return &models.Contact{
		ID:          id,
		Name:        p.Name,
		Email:       p.Email,
		Phone:       p.Phone,
		Address:     p.Address,
		Position:    p.Position,
		Description: p.Description,
		Image:       p.Image,
		IsActive:    p.IsActive,
		SortOrder:   p.SortOrder,
	}, nil
}

func (r *ContactRepository) FindByID(ctx context.Context, id string) (*models.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying contact: %w", err)
	}
	return c, nil
}

func (r *ContactRepository) ListActive(ctx context.Context) ([]*models.Contact, error) {
	return r.list(ctx, `SELECT `+contactColumns+` FROM contacts WHERE is_active = 1 ORDER BY sort_order, name`)
}

func (r *ContactRepository) List(ctx context.Context) ([]*models.Contact, error) {
	return r.list(ctx, `SELECT `+contactColumns+` FROM contacts ORDER BY sort_order, name`)
}

func (r *ContactRepository) Update(ctx context.Context, id string, p ContactParams) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE contacts SET name = ?, email = ?, phone = ?, address = ?, position = ?,
		    description = ?, image = ?, is_active = ?, sort_order = ?
		  WHERE id = ?`,
		p.Name, p.Email, p.Phone, p.Address, p.Position, p.Description, p.Image, p.IsActive, p.SortOrder, id,
	)
	if err != nil {
		return fmt.Errorf("updating contact: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *ContactRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting contact: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *ContactRepository) list(ctx context.Context, query string, args ...any) ([]*models.Contact, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var c models.Contact
	var image sql.NullString

	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Position,
		&c.Description, &image, &c.IsActive, &c.SortOrder)
	if err != nil {
		return nil, err
	}

	c.Image = nullStringToPtr(image)
	return &c, nil
}
