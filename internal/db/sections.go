package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lectoria/internal/models"
)

const sectionColumns = `id, name, description, slug, image, position, is_active, created_at, updated_at`

type SectionRepository struct {
	db *DB
}

func NewSectionRepository(db *DB) *SectionRepository {
	return &SectionRepository{db: db}
}

type SectionParams struct {
	Name        string
	Description string
	Slug        string
	Image       *string
	Position    int
	IsActive    bool
}

func (r *SectionRepository) Create(ctx context.Context, p SectionParams) (*models.Section, error) {
	id, err := GenerateID("sec")
	if err != nil {
		return nil, fmt.Errorf("generating section ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sections (id, name, description, slug, image, position, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Name, p.Description, p.Slug, p.Image, p.Position, p.IsActive, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating section: %w", err)
	}

	return &models.Section{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Slug:        p.Slug,
		Image:       p.Image,
		Position:    p.Position,
		IsActive:    p.IsActive,
		CreatedAt:   now,
	}, nil
}

func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	return r.findOne(ctx, `SELECT `+sectionColumns+` FROM sections WHERE id = ?`, id)
}

// FindActiveBySlug matches slugs case-insensitively, as served URLs are not
// guaranteed to preserve case.
func (r *SectionRepository) FindActiveBySlug(ctx context.Context, slug string) (*models.Section, error) {
	return r.findOne(ctx,
		`SELECT `+sectionColumns+` FROM sections WHERE lower(slug) = lower(?) AND is_active = 1`, slug)
}

func (r *SectionRepository) ListActive(ctx context.Context) ([]*models.Section, error) {
	return r.list(ctx, `SELECT `+sectionColumns+` FROM sections WHERE is_active = 1 ORDER BY position, name`)
}

func (r *SectionRepository) List(ctx context.Context) ([]*models.Section, error) {
	return r.list(ctx, `SELECT `+sectionColumns+` FROM sections ORDER BY position, name`)
}

func (r *SectionRepository) Update(ctx context.Context, id string, p SectionParams) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sections SET name = ?, description = ?, slug = ?, image = ?, position = ?, is_active = ?, updated_at = ?
		  WHERE id = ?`,
		p.Name, p.Description, p.Slug, p.Image, p.Position, p.IsActive, time.Now().UTC(), id,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("updating section: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *SectionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting section: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *SectionRepository) list(ctx context.Context, query string, args ...any) ([]*models.Section, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()

	var sections []*models.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

func (r *SectionRepository) findOne(ctx context.Context, query string, args ...any) (*models.Section, error) {
	s, err := scanSection(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying section: %w", err)
	}
	return s, nil
}

func scanSection(row rowScanner) (*models.Section, error) {
	var s models.Section
	var image sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Slug, &image, &s.Position, &s.IsActive, &s.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.Image = nullStringToPtr(image)
	s.UpdatedAt = nullTimeToPtr(updatedAt)
	return &s, nil
}
