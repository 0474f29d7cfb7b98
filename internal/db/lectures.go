package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lectoria/internal/models"
)

const lectureColumns = `id, title, subtitle, description, content, image, slug, lecture_type,
	section_id, position, is_active, created_at, updated_at`

type LectureRepository struct {
	db *DB
}

func NewLectureRepository(db *DB) *LectureRepository {
	return &LectureRepository{db: db}
}

type LectureParams struct {
	Title       string
	Subtitle    string
	Description string
	Content     string
	Image       *string
	Slug        string
	LectureType string
	SectionID   *string
	Position    int
	IsActive    bool
}

func (r *LectureRepository) Create(ctx context.Context, p LectureParams) (*models.Lecture, error) {
	id, err := GenerateID("lec")
	if err != nil {
		return nil, fmt.Errorf("generating lecture ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO lectures (id, title, subtitle, description, content, image, slug, lecture_type,
		    section_id, position, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Title, p.Subtitle, p.Description, p.Content, p.Image, p.Slug, p.LectureType,
		p.SectionID, p.Position, p.IsActive, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating lecture: %w", err)
	}

	return &models.Lecture{
		ID:          id,
		Title:       p.Title,
		Subtitle:    p.Subtitle,
		Description: p.Description,
		Content:     p.Content,
		Image:       p.Image,
		Slug:        p.Slug,
		LectureType: p.LectureType,
		SectionID:   p.SectionID,
		Position:    p.Position,
		IsActive:    p.IsActive,
		CreatedAt:   now,
	}, nil
}

func (r *LectureRepository) FindByID(ctx context.Context, id string) (*models.Lecture, error) {
	return r.findOne(ctx, `SELECT `+lectureColumns+` FROM lectures WHERE id = ?`, id)
}

// FindActiveByID is the booking-side lookup: inactive lectures are not
// bookable and resolve as not found.
func (r *LectureRepository) FindActiveByID(ctx context.Context, id string) (*models.Lecture, error) {
	return r.findOne(ctx, `SELECT `+lectureColumns+` FROM lectures WHERE id = ? AND is_active = 1`, id)
}

func (r *LectureRepository) FindActiveBySlug(ctx context.Context, slug string) (*models.Lecture, error) {
	return r.findOne(ctx,
		`SELECT `+lectureColumns+` FROM lectures WHERE lower(slug) = lower(?) AND is_active = 1`, slug)
}

func (r *LectureRepository) ListActive(ctx context.Context) ([]*models.Lecture, error) {
	return r.list(ctx, `SELECT `+lectureColumns+` FROM lectures WHERE is_active = 1 ORDER BY position, title`)
}

func (r *LectureRepository) List(ctx context.Context) ([]*models.Lecture, error) {
	return r.list(ctx, `SELECT `+lectureColumns+` FROM lectures ORDER BY position, title`)
}

// ListBySection returns one page of a section's active lectures plus the
// total count, for the paginated section endpoint.
func (r *LectureRepository) ListBySection(ctx context.Context, sectionID string, limit, offset int) ([]*models.Lecture, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lectures WHERE section_id = ? AND is_active = 1`, sectionID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting section lectures: %w", err)
	}

	lectures, err := r.list(ctx,
		`SELECT `+lectureColumns+` FROM lectures
		  WHERE section_id = ? AND is_active = 1
		  ORDER BY position, title
		  LIMIT ? OFFSET ?`,
		sectionID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	return lectures, total, nil
}

// ListStale returns active lectures with content whose last update is at or
// before cutoff. Used by the description rewrite job.
func (r *LectureRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*models.Lecture, error) {
	return r.list(ctx,
		`SELECT `+lectureColumns+` FROM lectures
		  WHERE is_active = 1
		    AND content != ''
		    AND COALESCE(updated_at, created_at) <= ?`,
		cutoff.UTC(),
	)
}

func (r *LectureRepository) Update(ctx context.Context, id string, p LectureParams) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE lectures SET title = ?, subtitle = ?, description = ?, content = ?, image = ?,
		    slug = ?, lecture_type = ?, section_id = ?, position = ?, is_active = ?, updated_at = ?
		  WHERE id = ?`,
		p.Title, p.Subtitle, p.Description, p.Content, p.Image,
		p.Slug, p.LectureType, p.SectionID, p.Position, p.IsActive, time.Now().UTC(), id,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("updating lecture: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *LectureRepository) UpdateDescription(ctx context.Context, id, description string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE lectures SET description = ?, updated_at = ? WHERE id = ?`,
		description, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating lecture description: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *LectureRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lectures WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting lecture: %w", err)
	}
	return checkRowsAffected(result)
}

// HasOrders reports whether any booking references the lecture. A referenced
// lecture keeps its slug for the lifetime of those bookings.
func (r *LectureRepository) HasOrders(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_forms WHERE lecture_id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting lecture orders: %w", err)
	}
	return count > 0, nil
}

func (r *LectureRepository) list(ctx context.Context, query string, args ...any) ([]*models.Lecture, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying lectures: %w", err)
	}
	defer rows.Close()

	var lectures []*models.Lecture
	for rows.Next() {
		l, err := scanLecture(rows)
		if err != nil {
			return nil, err
		}
		lectures = append(lectures, l)
	}
	return lectures, rows.Err()
}

func (r *LectureRepository) findOne(ctx context.Context, query string, args ...any) (*models.Lecture, error) {
	l, err := scanLecture(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying lecture: %w", err)
	}
	return l, nil
}

func scanLecture(row rowScanner) (*models.Lecture, error) {
	var l models.Lecture
	var image, sectionID sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(&l.ID, &l.Title, &l.Subtitle, &l.Description, &l.Content, &image, &l.Slug,
		&l.LectureType, &sectionID, &l.Position, &l.IsActive, &l.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	l.Image = nullStringToPtr(image)
	l.SectionID = nullStringToPtr(sectionID)
	l.UpdatedAt = nullTimeToPtr(updatedAt)
	return &l, nil
}
