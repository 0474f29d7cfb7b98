package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lectoria/internal/models"
)

// SiteRepository covers the small CMS tables: menu items and home blocks.
type SiteRepository struct {
	db *DB
}

func NewSiteRepository(db *DB) *SiteRepository {
	return &SiteRepository{db: db}
}

type MenuItemParams struct {
	Name     string
	URL      string
	Position int
	IsActive bool
	ParentID *string
}

func (r *SiteRepository) CreateMenuItem(ctx context.Context, p MenuItemParams) (*models.MenuItem, error) {
	id, err := GenerateID("mnu")
	if err != nil {
		return nil, fmt.Errorf("generating menu item ID: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO menu_items (id, name, url, position, is_active, parent_id) VALUES (?, ?, ?, ?, ?, ?)`,
		id, p.Name, p.URL, p.Position, p.IsActive, p.ParentID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating menu item: %w", err)
	}

	return &models.MenuItem{
		ID:       id,
		Name:     p.Name,
		URL:      p.URL,
		Position: p.Position,
		IsActive: p.IsActive,
		ParentID: p.ParentID,
	}, nil
}

func (r *SiteRepository) FindMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var m models.MenuItem
	var parentID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, url, position, is_active, parent_id FROM menu_items WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &m.URL, &m.Position, &m.IsActive, &parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying menu item: %w", err)
	}
	m.ParentID = nullStringToPtr(parentID)
	return &m, nil
}

func (r *SiteRepository) ListMenuItems(ctx context.Context, activeOnly bool) ([]*models.MenuItem, error) {
	query := `SELECT id, name, url, position, is_active, parent_id FROM menu_items`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY position, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying menu items: %w", err)
	}
	defer rows.Close()

	var items []*models.MenuItem
	for rows.Next() {
		var m models.MenuItem
		var parentID sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &m.URL, &m.Position, &m.IsActive, &parentID); err != nil {
			return nil, fmt.Errorf("scanning menu item: %w", err)
		}
		m.ParentID = nullStringToPtr(parentID)
		items = append(items, &m)
	}
	return items, rows.Err()
}

func (r *SiteRepository) UpdateMenuItem(ctx context.Context, id string, p MenuItemParams) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE menu_items SET name = ?, url = ?, position = ?, is_active = ?, parent_id = ? WHERE id = ?`,
		p.Name, p.URL, p.Position, p.IsActive, p.ParentID, id,
	)
	if err != nil {
		return fmt.Errorf("updating menu item: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *SiteRepository) DeleteMenuItem(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM menu_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting menu item: %w", err)
	}
	return checkRowsAffected(result)
}

type HomeBlockParams struct {
	Title      string
	Content    string
	Image      *string
	ButtonText string
	ButtonURL  string
	Position   int
	BlockType  string
	Template   string
	Slug       string
	IsActive   bool
}

func (r *SiteRepository) CreateHomeBlock(ctx context.Context, p HomeBlockParams) (*models.HomeBlock, error) {
	id, err := GenerateID("blk")
	if err != nil {
		return nil, fmt.Errorf("generating home block ID: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO home_blocks (id, title, content, image, button_text, button_url, position, block_type, template, slug, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Title, p.Content, p.Image, p.ButtonText, p.ButtonURL, p.Position, p.BlockType, p.Template, p.Slug, p.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("creating home block: %w", err)
	}

	return &models.HomeBlock{
		ID:         id,
		Title:      p.Title,
		Content:    p.Content,
		Image:      p.Image,
		ButtonText: p.ButtonText,
		ButtonURL:  p.ButtonURL,
		Position:   p.Position,
		BlockType:  p.BlockType,
		Template:   p.Template,
		Slug:       p.Slug,
		IsActive:   p.IsActive,
	}, nil
}

func (r *SiteRepository) FindHomeBlock(ctx context.Context, id string) (*models.HomeBlock, error) {
	b, err := scanHomeBlock(r.db.QueryRowContext(ctx,
		`SELECT id, title, content, image, button_text, button_url, position, block_type, template, slug, is_active
		   FROM home_blocks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying home block: %w", err)
	}
	return b, nil
}

func (r *SiteRepository) ListHomeBlocks(ctx context.Context, activeOnly bool) ([]*models.HomeBlock, error) {
	query := `SELECT id, title, content, image, button_text, button_url, position, block_type, template, slug, is_active FROM home_blocks`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying home blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*models.HomeBlock
	for rows.Next() {
		b, err := scanHomeBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (r *SiteRepository) UpdateHomeBlock(ctx context.Context, id string, p HomeBlockParams) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE home_blocks SET title = ?, content = ?, image = ?, button_text = ?, button_url = ?,
		    position = ?, block_type = ?, template = ?, slug = ?, is_active = ?
		  WHERE id = ?`,
		p.Title, p.Content, p.Image, p.ButtonText, p.ButtonURL, p.Position, p.BlockType, p.Template, p.Slug, p.IsActive, id,
	)
	if err != nil {
		return fmt.Errorf("updating home block: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *SiteRepository) DeleteHomeBlock(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM home_blocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting home block: %w", err)
	}
	return checkRowsAffected(result)
}

func scanHomeBlock(row rowScanner) (*models.HomeBlock, error) {
	var b models.HomeBlock
	var image sql.NullString

	err := row.Scan(&b.ID, &b.Title, &b.Content, &image, &b.ButtonText, &b.ButtonURL,
		&b.Position, &b.BlockType, &b.Template, &b.Slug, &b.IsActive)
	if err != nil {
		return nil, err
	}

	b.Image = nullStringToPtr(image)
	return &b, nil
}
